package builtin

import (
	_ "embed"
	"net/http"
	"time"

	"github.com/BaSui01/skillflow/internal/tlsutil"
	"github.com/BaSui01/skillflow/skills"
)

//go:embed default_skills.yaml
var defaultManifest []byte

// Handler 键
const (
	HandlerCalculator = "calculator"
	HandlerWebhook    = "zapier_webhook"
	HandlerSlack      = "slack_message"
	HandlerClock      = "clock"
)

// Config 配置内置技能的外部依赖
type Config struct {
	HTTPClient       *http.Client
	ZapierWebhookURL string `yaml:"zapier_webhook_url" env:"ZAPIER_WEBHOOK_URL"`
	SlackWebhookURL  string `yaml:"slack_webhook_url" env:"SLACK_WEBHOOK_URL"`
	DefaultChannel   string `yaml:"default_channel" env:"DEFAULT_CHANNEL"`
	Now              func() time.Time `yaml:"-"`
}

// Handlers 返回内置技能的处理器能力表
func Handlers(cfg Config) skills.HandlerTable {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = tlsutil.Client(10 * time.Second)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return skills.HandlerTable{
		HandlerCalculator: Calculator,
		HandlerWebhook:    Webhook(cfg.HTTPClient, cfg.ZapierWebhookURL),
		HandlerSlack:      SlackMessage(cfg.HTTPClient, cfg.SlackWebhookURL, cfg.DefaultChannel),
		HandlerClock:      Clock(cfg.Now),
	}
}

// DefaultManifest 用内置处理器解析默认清单（分层模式，四个分组）
func DefaultManifest(cfg Config) (*skills.Manifest, error) {
	return skills.ParseManifest(defaultManifest, Handlers(cfg))
}
