package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	LogLevel   string           `mapstructure:"log_level"`
	MongoDB    MongoDBConfig    `mapstructure:"mongodb"`
	RabbitMQ   RabbitMQConfig   `mapstructure:"rabbitmq"`
	Webhook    WebhookConfig    `mapstructure:"webhook"`
	Notify     NotifyConfig     `mapstructure:"notify"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Security   SecurityConfig   `mapstructure:"security"`
}

type ServerConfig struct {
	Port int
	Host string
}

type MongoDBConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type RabbitMQConfig struct {
	URL       string `mapstructure:"url"`
	Exchange  string `mapstructure:"exchange"`
	QueueName string `mapstructure:"queueName"`
}

// WebhookConfig drives the inbound verification and dedup pipeline.
type WebhookConfig struct {
	Secret              string `mapstructure:"secret"`
	SignatureHeader     string `mapstructure:"signatureHeader"`
	TimestampHeader     string `mapstructure:"timestampHeader"`
	EventTypeHeader     string `mapstructure:"eventTypeHeader"`
	EventIDHeader       string `mapstructure:"eventIdHeader"`
	ToleranceSeconds    int    `mapstructure:"toleranceSeconds"`
	IdempotencyTTLHours int    `mapstructure:"idempotencyTtlHours"`
	StoreTimeoutSeconds int    `mapstructure:"storeTimeoutSeconds"`
}

func (w WebhookConfig) Tolerance() time.Duration {
	return time.Duration(w.ToleranceSeconds) * time.Second
}

func (w WebhookConfig) IdempotencyTTL() time.Duration {
	return time.Duration(w.IdempotencyTTLHours) * time.Hour
}

func (w WebhookConfig) StoreTimeout() time.Duration {
	return time.Duration(w.StoreTimeoutSeconds) * time.Second
}

type NotifyConfig struct {
	SlackWebhookURL string `mapstructure:"slackWebhookUrl"`
}

type MonitoringConfig struct {
	PrometheusPort int    `mapstructure:"prometheusPort"`
	MetricsPath    string `mapstructure:"metricsPath"`
}

type SecurityConfig struct {
	APIKeyHeader string            `mapstructure:"apiKeyHeader"`
	APIKeys      map[string]string `mapstructure:"apiKeys"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("monitoring.prometheusPort", 9090)
	viper.SetDefault("monitoring.metricsPath", "/metrics")
	viper.SetDefault("webhook.signatureHeader", "X-Webhook-Signature")
	viper.SetDefault("webhook.timestampHeader", "X-Webhook-Timestamp")
	viper.SetDefault("webhook.eventTypeHeader", "X-Webhook-Event")
	viper.SetDefault("webhook.eventIdHeader", "X-Webhook-Id")
	viper.SetDefault("webhook.toleranceSeconds", 300)
	viper.SetDefault("webhook.idempotencyTtlHours", 24)
	viper.SetDefault("webhook.storeTimeoutSeconds", 5)
	viper.SetDefault("security.apiKeyHeader", "X-API-Key")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Override with environment variables
	if port := os.Getenv("APP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}

	if promPort := os.Getenv("PROMETHEUS_PORT"); promPort != "" {
		if p, err := strconv.Atoi(promPort); err == nil {
			cfg.Monitoring.PrometheusPort = p
		}
	}

	if uri := os.Getenv("MONGODB_URI"); uri != "" {
		cfg.MongoDB.URI = uri
	}
	if db := os.Getenv("MONGODB_DATABASE"); db != "" {
		cfg.MongoDB.Database = db
	}

	// Support both CLOUDAMQP_URL and RABBITMQ_URI for backwards compatibility
	if cloudamqpURL := os.Getenv("CLOUDAMQP_URL"); cloudamqpURL != "" {
		cfg.RabbitMQ.URL = cloudamqpURL
	} else if rabbitURL := os.Getenv("RABBITMQ_URI"); rabbitURL != "" {
		cfg.RabbitMQ.URL = rabbitURL
	}

	if exchange := os.Getenv("RABBITMQ_EXCHANGE"); exchange != "" {
		cfg.RabbitMQ.Exchange = exchange
	}
	if queue := os.Getenv("RABBITMQ_QUEUE"); queue != "" {
		cfg.RabbitMQ.QueueName = queue
	}

	if secret := os.Getenv("WEBHOOK_SECRET"); secret != "" {
		cfg.Webhook.Secret = secret
	}
	if tol := os.Getenv("WEBHOOK_TOLERANCE_SECONDS"); tol != "" {
		if t, err := strconv.Atoi(tol); err == nil {
			cfg.Webhook.ToleranceSeconds = t
		}
	}
	if ttl := os.Getenv("IDEMPOTENCY_TTL_HOURS"); ttl != "" {
		if t, err := strconv.Atoi(ttl); err == nil {
			cfg.Webhook.IdempotencyTTLHours = t
		}
	}

	if url := os.Getenv("SLACK_WEBHOOK_URL"); url != "" {
		cfg.Notify.SlackWebhookURL = url
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	if header := os.Getenv("API_KEY_HEADER"); header != "" {
		cfg.Security.APIKeyHeader = header
	}

	// Load admin API keys from environment
	cfg.Security.APIKeys = loadAPIKeysFromEnv()

	return &cfg, nil
}

// loadAPIKeysFromEnv picks up admin client keys from variables named
// CLIENT_NAME_API_KEY, keyed by the lowercased client name.
func loadAPIKeysFromEnv() map[string]string {
	apiKeys := make(map[string]string)

	for _, env := range os.Environ() {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) != 2 {
			continue
		}

		envName := parts[0]
		envValue := parts[1]

		if strings.HasSuffix(envName, "_API_KEY") {
			clientName := strings.ToLower(strings.TrimSuffix(envName, "_API_KEY"))
			apiKeys[clientName] = envValue
		}
	}

	return apiKeys
}
