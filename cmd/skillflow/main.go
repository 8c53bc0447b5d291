// =============================================================================
// SkillFlow 主入口
// =============================================================================
// 使用方法:
//
//	skillflow ask "what is 17 times 23"          # 处理一条请求并输出回答
//	skillflow ask --transcript "..."             # 同时输出调度记录（JSON）
//	skillflow invoke calculator '{"a":2,"b":3,"operation":"add"}'
//	skillflow skills [--json]                    # 列出注册表
//	skillflow serve --config skillflow.yaml      # 启动 HTTP 服务
//	skillflow health --addr http://localhost:8080
//	skillflow version
// =============================================================================

// @title SkillFlow API
// @version 1.0.0
// @description Semantic skill selection and dispatch: pick skills for a request, bind their arguments with a language model, run them and compose the answer.
// @BasePath /

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/skillflow/api/handlers"
	"github.com/BaSui01/skillflow/config"
	"github.com/BaSui01/skillflow/internal/metrics"
	"github.com/BaSui01/skillflow/internal/telemetry"
	"github.com/BaSui01/skillflow/quick"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// newEngine 组装 Engine，测试中替换为使用模拟模型的版本
var newEngine = quick.New

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 2
	}

	switch args[0] {
	case "ask":
		return runAsk(ctx, args[1:], stdout, stderr)
	case "invoke":
		return runInvoke(ctx, args[1:], stdout, stderr)
	case "skills":
		return runSkills(ctx, args[1:], stdout, stderr)
	case "serve":
		return runServe(ctx, args[1:], stderr)
	case "health":
		return runHealthCheck(args[1:], stdout, stderr)
	case "version":
		printVersion(stdout)
		return 0
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		printUsage(stderr)
		return 2
	}
}

// =============================================================================
// 💬 ask / invoke / skills 命令
// =============================================================================

func runAsk(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("ask", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to config file")
	showTranscript := fs.Bool("transcript", false, "Print the dispatch transcript as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if query == "" {
		fmt.Fprintln(stderr, "Usage: skillflow ask [--config path] [--transcript] <query>")
		return 2
	}

	eng, logger, code := cliEngine(ctx, *configPath, stderr)
	if eng == nil {
		return code
	}
	defer logger.Sync()
	defer eng.Close()

	res, err := eng.HandleWithTranscript(ctx, query)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, res.Answer)
	if *showTranscript {
		if err := writeJSON(stdout, res.Transcript); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	}
	return 0
}

func runInvoke(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("invoke", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to config file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 || fs.NArg() > 2 {
		fmt.Fprintln(stderr, "Usage: skillflow invoke [--config path] <skill> ['{json arguments}']")
		return 2
	}

	arguments := map[string]any{}
	if fs.NArg() == 2 {
		if err := json.Unmarshal([]byte(fs.Arg(1)), &arguments); err != nil {
			fmt.Fprintf(stderr, "Invalid arguments JSON: %v\n", err)
			return 2
		}
	}

	eng, logger, code := cliEngine(ctx, *configPath, stderr)
	if eng == nil {
		return code
	}
	defer logger.Sync()
	defer eng.Close()

	result, err := eng.Invoke(ctx, fs.Arg(0), arguments)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if err := writeJSON(stdout, result); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func runSkills(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("skills", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to config file")
	asJSON := fs.Bool("json", false, "Print the registry as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	eng, logger, code := cliEngine(ctx, *configPath, stderr)
	if eng == nil {
		return code
	}
	defer logger.Sync()
	defer eng.Close()

	desc := handlers.DescribeRegistry(eng.Registry())
	if *asJSON {
		if err := writeJSON(stdout, desc); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	fmt.Fprintf(stdout, "mode: %s\n\n", desc.Mode)
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "GROUP\tSKILL\tDESCRIPTION")
	for _, s := range desc.Skills {
		group := s.Group
		if group == "" {
			group = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", group, s.Name, s.Description)
	}
	_ = tw.Flush()
	return 0
}

// cliEngine 为一次性命令组装 Engine。日志写到 stderr，stdout 只留给结果。
func cliEngine(ctx context.Context, configPath string, stderr io.Writer) (*quick.Engine, *zap.Logger, int) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return nil, nil, 1
	}
	cfg.Log.OutputPaths = []string{"stderr"}
	if cfg.Log.Level == "info" {
		cfg.Log.Level = "warn"
	}
	logger := initLogger(cfg.Log)

	eng, err := newEngine(ctx, cfg, quick.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(stderr, "Failed to build engine: %v\n", err)
		_ = logger.Sync()
		return nil, nil, 1
	}
	return eng, logger, 0
}

// =============================================================================
// 🖥️ serve 命令
// =============================================================================

func runServe(ctx context.Context, args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to config file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return 1
	}

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("Starting SkillFlow",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	otelProviders, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}

	collector := metrics.NewCollector("skillflow", logger)
	eng, err := newEngine(ctx, cfg, quick.WithLogger(logger), quick.WithMetrics(collector))
	if err != nil {
		logger.Error("Failed to build engine", zap.Error(err))
		return 1
	}

	srv := NewServer(cfg, eng, collector, logger)
	if err := srv.Start(); err != nil {
		logger.Error("Failed to start server", zap.Error(err))
		_ = eng.Close()
		return 1
	}

	code := 0
	if err := srv.Wait(ctx); err != nil {
		logger.Error("Server failed", zap.Error(err))
		code = 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", zap.Error(err))
		code = 1
	}
	if otelProviders != nil {
		if err := otelProviders.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown error", zap.Error(err))
		}
	}

	logger.Info("SkillFlow stopped")
	return code
}

// =============================================================================
// 🏥 健康检查命令
// =============================================================================

func runHealthCheck(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", "http://localhost:8080", "Server address")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(strings.TrimRight(*addr, "/") + "/health")
	if err != nil {
		fmt.Fprintf(stderr, "Health check failed: %v\n", err)
		return 1
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(stderr, "Health check failed: status %d\n", resp.StatusCode)
		return 1
	}

	fmt.Fprintln(stdout, "OK")
	return 0
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "SkillFlow %s\n", Version)
	fmt.Fprintf(w, "  Build Time: %s\n", BuildTime)
	fmt.Fprintf(w, "  Git Commit: %s\n", GitCommit)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `SkillFlow - semantic skill selection and dispatch

Usage:
  skillflow <command> [options]

Commands:
  ask       Handle one natural-language request and print the answer
  invoke    Run a skill by name with JSON arguments
  skills    List the skill registry
  serve     Start the HTTP server
  health    Check server health
  version   Show version information
  help      Show this help message

Common options:
  --config <path>   Path to configuration file (YAML); SKILLFLOW_* env vars override it

Examples:
  skillflow ask "what is 17 times 23"
  skillflow ask --transcript "send a slack message to #ops saying the deploy is done"
  skillflow invoke calculator '{"a": 2, "b": 3, "operation": "add"}'
  skillflow skills --json
  skillflow serve --config /etc/skillflow/config.yaml
  skillflow health --addr http://localhost:8080`)
}

// =============================================================================
// 🔧 配置与日志
// =============================================================================

func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	if path != "" {
		loader = loader.WithConfigPath(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func initLogger(cfg config.LogConfig) *zap.Logger {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}

	zapConfig := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       cfg.Format == "console",
		DisableCaller:     !cfg.EnableCaller,
		DisableStacktrace: !cfg.EnableStacktrace,
		Encoding:          encoding,
		EncoderConfig:     encoderConfig,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
	}

	logger, err := zapConfig.Build()
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}
	return logger.With(zap.String("service", "skillflow"))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
