// =============================================================================
// 📦 SkillFlow 默认配置
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Dispatch:  DefaultDispatchConfig(),
		Skills:    SkillsConfig{},
		Builtin:   DefaultBuiltinConfig(),
		LLM:       DefaultLLMConfig(),
		Embedding: DefaultEmbeddingConfig(),
		Cache:     DefaultCacheConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    3 * time.Minute,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    20,
		RateLimitBurst:  40,
	}
}

// DefaultDispatchConfig 返回默认调度配置（与 dispatch.DefaultConfig 一致）
func DefaultDispatchConfig() DispatchConfig {
	return DispatchConfig{
		TopK:              3,
		GroupTopK:         1,
		MaxConcurrency:    4,
		InvocationTimeout: 30 * time.Second,
		RequestTimeout:    2 * time.Minute,
		CompositionGrace:  10 * time.Second,
		NoSkillPolicy:     "answer_directly",
		MaxResultTokens:   1024,
	}
}

// DefaultBuiltinConfig 返回默认内置技能配置
func DefaultBuiltinConfig() BuiltinConfig {
	return BuiltinConfig{DefaultChannel: "#general"}
}

// DefaultLLMConfig 返回默认 LLM 配置
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:    "openai",
		BaseURL:     "https://api.openai.com",
		Model:       "gpt-4o-mini",
		Timeout:     time.Minute,
		MaxRetries:  2,
		Temperature: 0.3,
		MaxTokens:   1024,
	}
}

// DefaultEmbeddingConfig 返回默认嵌入配置
func DefaultEmbeddingConfig() EmbeddingConfig {
	return EmbeddingConfig{
		Model:      "text-embedding-3-small",
		Timeout:    30 * time.Second,
		MaxRetries: 2,
	}
}

// DefaultCacheConfig 返回默认缓存配置
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:   false,
		Addr:      "localhost:6379",
		TTL:       24 * time.Hour,
		KeyPrefix: "skillflow:",
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		Insecure:     true,
		ServiceName:  "skillflow",
		SampleRate:   0.1,
	}
}
