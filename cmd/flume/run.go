package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kittoju/flume/internal/activity"
	"github.com/kittoju/flume/internal/concurrency"
	"github.com/kittoju/flume/internal/config"
	"github.com/kittoju/flume/internal/connector"
	"github.com/kittoju/flume/internal/errors"
	"github.com/kittoju/flume/internal/platform"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the configured connectors",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func buildConnectors(cfg *config.Config) []*connector.Connector {
	var connectors []*connector.Connector

	if cfg.Connectors.Slack.Enabled {
		connectors = append(connectors, connector.New(
			platform.NewSlack(platform.SlackConfig{
				BotToken:      cfg.Connectors.Slack.BotToken,
				SigningSecret: cfg.Connectors.Slack.SigningSecret,
				WebhookPort:   cfg.Connectors.Slack.WebhookPort,
				AsUser:        cfg.Connectors.Slack.AsUser,
			}),
			connector.WithBuffer(cfg.Server.Buffer),
		))
	}

	if cfg.Connectors.Telegram.Enabled {
		connectors = append(connectors, connector.New(
			platform.NewTelegram(platform.TelegramConfig{
				BotToken:      cfg.Connectors.Telegram.BotToken,
				UpdateTimeout: cfg.Connectors.Telegram.UpdateTimeout,
			}),
			connector.WithBuffer(cfg.Server.Buffer),
		))
	}

	if cfg.Connectors.SMS.Enabled {
		sms := cfg.Connectors.SMS
		transport := platform.NewCallrClient(sms.APIBaseURL, sms.Token, sms.TokenSecret)
		connectors = append(connectors, connector.New(
			platform.NewSMS(platform.SMSConfig{
				Token:       sms.Token,
				TokenSecret: sms.TokenSecret,
				Username:    sms.Username,
				WebhookURL:  sms.WebhookURL,
				WebhookPort: sms.WebhookPort,
			}, transport),
			connector.WithBuffer(cfg.Server.Buffer),
		))
	}

	return connectors
}

func run(ctx context.Context) error {
	connectors := buildConnectors(cfg)
	if len(connectors) == 0 {
		return errors.Internal("no connectors enabled")
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTimeout, err := config.DurationOrDefault(cfg.Server.ShutdownTimeout, config.DefaultShutdownTimeout)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	var mu sync.Mutex
	emit := func(env *activity.Envelope) {
		mu.Lock()
		defer mu.Unlock()
		if err := encoder.Encode(env); err != nil {
			slog.Error("Failed to write envelope", "error", err)
		}
	}

	var wg sync.WaitGroup
	for _, conn := range connectors {
		conn := conn
		status, err := conn.Connect(ctx)
		if err != nil {
			slog.Error("Connector failed to connect", "platform", conn.Name(), "error", err)
			continue
		}
		slog.Info("Connector up", "platform", conn.Name(), "status", status.Type, "service_id", status.ServiceID)

		wg.Add(1)
		concurrency.SafeGo(func() {
			defer wg.Done()
			for env := range conn.Envelopes() {
				emit(env)
			}
			if err := conn.Err(); err != nil {
				slog.Error("Connector stream ended", "platform", conn.Name(), "error", err)
			}
		}, nil)
	}

	<-ctx.Done()
	slog.Info("Shutting down connectors")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, conn := range connectors {
		if err := conn.Disconnect(shutdownCtx); err != nil {
			slog.Warn("Disconnect failed", "platform", conn.Name(), "error", err)
		}
	}

	wg.Wait()
	return nil
}
