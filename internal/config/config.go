package config

import (
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"

	"github.com/kittoju/flume/internal/pathutil"
)

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Connectors ConnectorsConfig `koanf:"connectors"`
}

type ServerConfig struct {
	LogLevel        string `koanf:"log_level"`
	ShutdownTimeout string `koanf:"shutdown_timeout"`
	// Buffer bounds the merged event stream and the envelope output.
	Buffer int `koanf:"buffer"`
}

type ConnectorsConfig struct {
	Slack    SlackConfig    `koanf:"slack"`
	Telegram TelegramConfig `koanf:"telegram"`
	SMS      SMSConfig      `koanf:"sms"`
}

type SlackConfig struct {
	Enabled       bool   `koanf:"enabled"`
	BotToken      string `koanf:"bot_token"`
	SigningSecret string `koanf:"signing_secret"`
	WebhookPort   int    `koanf:"webhook_port"`
	AsUser        bool   `koanf:"as_user"`
}

type TelegramConfig struct {
	Enabled       bool   `koanf:"enabled"`
	BotToken      string `koanf:"bot_token"`
	UpdateTimeout int    `koanf:"update_timeout"`
}

type SMSConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Token       string `koanf:"token"`
	TokenSecret string `koanf:"token_secret"`
	Username    string `koanf:"username"`
	WebhookURL  string `koanf:"webhook_url"`
	WebhookPort int    `koanf:"webhook_port"`
	APIBaseURL  string `koanf:"api_base_url"`
}

const (
	DefaultLogLevel        = "info"
	DefaultShutdownTimeout = "5s"
	DefaultBuffer          = 128

	DefaultSlackWebhookPort      = 8080
	DefaultTelegramUpdateTimeout = 30
	DefaultSMSWebhookPort        = 8081
	DefaultSMSUsername           = "SMS"
	DefaultSMSAPIBaseURL         = "https://api.callr.com/json-rpc/v1.1/"
)

// Load layers defaults, an optional YAML file, FLUME_* environment
// variables and command-line flags, in that order.
func Load(cmd *cobra.Command) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.log_level":                   DefaultLogLevel,
		"server.shutdown_timeout":            DefaultShutdownTimeout,
		"server.buffer":                      DefaultBuffer,
		"connectors.slack.webhook_port":      DefaultSlackWebhookPort,
		"connectors.slack.as_user":           true,
		"connectors.telegram.update_timeout": DefaultTelegramUpdateTimeout,
		"connectors.sms.webhook_port":        DefaultSMSWebhookPort,
		"connectors.sms.username":            DefaultSMSUsername,
		"connectors.sms.api_base_url":        DefaultSMSAPIBaseURL,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	configPath := ""
	if cmd != nil {
		if flag := cmd.Flags().Lookup("config"); flag != nil {
			configPath = strings.TrimSpace(flag.Value.String())
		}
	}
	if configPath != "" {
		resolved, err := pathutil.Expand(configPath)
		if err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(resolved), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	if err := k.Load(env.Provider("FLUME_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "FLUME_")), "__", ".")
	}), nil); err != nil {
		return nil, err
	}

	if cmd != nil {
		if err := k.Load(posflag.Provider(cmd.Flags(), ".", k), nil); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
