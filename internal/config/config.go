// Package config loads the engine's configuration from the environment
// (spec.md §6), structured as nested sub-configs per concern the way the
// teacher's internal/config.Config groups server/SLM/kubernetes/actions.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/fleetward/remediator/pkg/types"
)

type ServerConfig struct {
	Port        string
	MetricsPort string
}

type DatabaseConfig struct {
	URL string
}

type KubernetesConfig struct {
	Namespace        string
	Context          string
	Kubeconfig       string
	AuthMode         string // "kubeconfig" (default) or "oidc"
	OIDCTokenURL     string
	OIDCClientID     string
	OIDCClientSecret string
	APIServerHost    string
	Insecure         bool
}

type LLMConfig struct {
	Provider        string // "openai" (default), "anthropic", "bedrock"
	OpenAIAPIKey    string
	OpenAIModel     string
	AnthropicAPIKey string
	BedrockModelID  string
	Timeout         time.Duration
}

type RedisConfig struct {
	URL string // empty disables the adjudication determinism cache
}

type SlackConfig struct {
	WebhookURL string // empty disables critical-incident notification
}

type RunbookConfig struct {
	Dir   string
	Watch bool
}

type LoggingConfig struct {
	Level  string
	Format string
}

type TelemetryConfig struct {
	OTLPEndpoint string // empty = no-op tracer
}

type Config struct {
	ClusterName string
	AgentMode   types.Mode
	Server      ServerConfig
	Database    DatabaseConfig
	Kubernetes  KubernetesConfig
	LLM         LLMConfig
	Redis       RedisConfig
	Slack       SlackConfig
	Runbook     RunbookConfig
	Logging     LoggingConfig
	Telemetry   TelemetryConfig
}

// Load reads configuration from the environment and fails fast on any
// required variable that is missing, per spec.md §6's table.
func Load() (*Config, error) {
	cfg := &Config{
		ClusterName: getenvDefault("CLUSTER_NAME", "unknown"),
		AgentMode:   types.Mode(getenvDefault("AGENT_MODE", string(types.ModeRecommend))),
		Server: ServerConfig{
			Port:        getenvDefault("WEBHOOK_PORT", "8080"),
			MetricsPort: getenvDefault("METRICS_PORT", "9090"),
		},
		Kubernetes: KubernetesConfig{
			Namespace:        getenvDefault("KUBE_NAMESPACE", "default"),
			Context:          os.Getenv("KUBE_CONTEXT"),
			Kubeconfig:       os.Getenv("KUBECONFIG"),
			AuthMode:         getenvDefault("CLUSTER_AUTH_MODE", "kubeconfig"),
			OIDCTokenURL:     os.Getenv("OIDC_TOKEN_URL"),
			OIDCClientID:     os.Getenv("OIDC_CLIENT_ID"),
			OIDCClientSecret: os.Getenv("OIDC_CLIENT_SECRET"),
			APIServerHost:    os.Getenv("KUBE_API_SERVER_HOST"),
		},
		LLM: LLMConfig{
			Provider:        resolveLLMProvider(),
			OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
			OpenAIModel:     os.Getenv("OPENAI_MODEL"),
			AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
			BedrockModelID:  os.Getenv("BEDROCK_MODEL_ID"),
			Timeout:         30 * time.Second,
		},
		Redis: RedisConfig{URL: os.Getenv("REDIS_URL")},
		Slack: SlackConfig{WebhookURL: os.Getenv("SLACK_WEBHOOK_URL")},
		Runbook: RunbookConfig{
			Dir:   getenvDefault("RUNBOOK_DIR", "./runbooks"),
			Watch: getenvBoolDefault("RUNBOOK_WATCH", false),
		},
		Logging: LoggingConfig{
			Level:  getenvDefault("LOG_LEVEL", "INFO"),
			Format: getenvDefault("LOG_FORMAT", "json"),
		},
		Telemetry: TelemetryConfig{OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")},
	}

	cfg.Database.URL = os.Getenv("DATABASE_URL")

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveLLMProvider infers the adjudicator backend from which credential is
// set, defaulting to openai per spec.md §6. OPENAI_API_KEY is required only
// when the resolved provider is openai; setting BEDROCK_MODEL_ID or
// ANTHROPIC_API_KEY (without LLM_PROVIDER) selects that provider instead.
func resolveLLMProvider() string {
	if provider := os.Getenv("LLM_PROVIDER"); provider != "" {
		return provider
	}
	if os.Getenv("BEDROCK_MODEL_ID") != "" {
		return "bedrock"
	}
	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		return "anthropic"
	}
	return "openai"
}

func validate(cfg *Config) error {
	if cfg.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	switch cfg.LLM.Provider {
	case "openai":
		if cfg.LLM.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required")
		}
	case "anthropic":
		if cfg.LLM.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required when LLM_PROVIDER=anthropic")
		}
	case "bedrock":
		if cfg.LLM.BedrockModelID == "" {
			return fmt.Errorf("BEDROCK_MODEL_ID is required when LLM_PROVIDER=bedrock")
		}
	default:
		return fmt.Errorf("unsupported LLM provider %q", cfg.LLM.Provider)
	}
	if cfg.AgentMode != types.ModeAuto && cfg.AgentMode != types.ModeRecommend {
		return fmt.Errorf("AGENT_MODE must be %q or %q, got %q", types.ModeAuto, types.ModeRecommend, cfg.AgentMode)
	}
	if cfg.Kubernetes.AuthMode != "kubeconfig" && cfg.Kubernetes.AuthMode != "oidc" {
		return fmt.Errorf("CLUSTER_AUTH_MODE must be \"kubeconfig\" or \"oidc\", got %q", cfg.Kubernetes.AuthMode)
	}
	if cfg.Kubernetes.AuthMode == "oidc" {
		if cfg.Kubernetes.OIDCTokenURL == "" || cfg.Kubernetes.OIDCClientID == "" || cfg.Kubernetes.OIDCClientSecret == "" {
			return fmt.Errorf("OIDC_TOKEN_URL, OIDC_CLIENT_ID and OIDC_CLIENT_SECRET are required when CLUSTER_AUTH_MODE=oidc")
		}
	}
	return nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
