// Package platform holds the per-service connector halves: transport
// dialing, payload interpretation and outbound transmission for Slack,
// Telegram and SMS.
package platform

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/kittoju/flume/internal/activity"
	"github.com/kittoju/flume/internal/cache"
	"github.com/kittoju/flume/internal/concurrency"
	"github.com/kittoju/flume/internal/connector"
	"github.com/kittoju/flume/internal/errors"
	"github.com/kittoju/flume/internal/pipeline"
	"github.com/kittoju/flume/internal/source"
)

// SMSTransport is the collaborator executing SMS API calls. The
// connector only constructs requests; subscription and delivery are
// delegated.
type SMSTransport interface {
	// Subscribe registers the webhook URL for an event type.
	Subscribe(ctx context.Context, eventType, webhookURL string) error
	// Send delivers one message from the given sender name.
	Send(ctx context.Context, from, to, content string) error
}

// SMSConfig configures the SMS connector.
type SMSConfig struct {
	Token       string
	TokenSecret string
	// Username is the sender name stamped on outbound messages.
	Username    string
	WebhookURL  string
	WebhookPort int
}

// SMS is a webhook-only connector: inbound sms.mo callbacks in, API
// sends out.
type SMS struct {
	cfg       SMSConfig
	transport SMSTransport

	webhook *source.PushSource
	server  *source.WebhookServer
	stop    context.CancelFunc
}

// NewSMS builds the SMS platform around a transport collaborator.
func NewSMS(cfg SMSConfig, transport SMSTransport) *SMS {
	if cfg.Username == "" {
		cfg.Username = "SMS"
	}
	return &SMS{cfg: cfg, transport: transport}
}

func (s *SMS) Name() string { return "sms" }

// Connect subscribes the webhook and starts the listener. Missing
// credentials fail fast with no state touched.
func (s *SMS) Connect(ctx context.Context) (*connector.Session, error) {
	if s.cfg.Token == "" || s.cfg.TokenSecret == "" {
		return nil, errors.MissingCredential("sms token and token secret")
	}
	if s.cfg.WebhookURL == "" {
		return nil, errors.MissingCredential("sms webhook url")
	}

	if err := s.transport.Subscribe(ctx, "sms.mo", s.cfg.WebhookURL); err != nil {
		if !IsBenignConnectError(s.Name(), err) {
			return nil, errors.Wrap(err, "subscribing sms webhook")
		}
		slog.Debug("Webhook subscription already in place", "platform", s.Name())
	}

	s.webhook = source.NewPushSource("sms-webhook", 64)

	if s.cfg.WebhookPort > 0 {
		s.server = source.NewWebhookServer(s.cfg.WebhookPort, s.webhook.Handler(decodeSMSBody))
		serverCtx, cancel := context.WithCancel(context.Background())
		s.stop = cancel
		concurrency.SafeGo(func() {
			if err := s.server.Start(serverCtx); err != nil {
				slog.Error("SMS webhook server failed", "error", err)
			}
		}, nil)
	}

	return &connector.Session{
		Sources: []connector.Registration{
			{Source: s.webhook, Role: source.RolePrimary},
		},
		Normalizer: func(*cache.Store) pipeline.Normalizer {
			return &smsNormalizer{}
		},
	}, nil
}

// Webhook exposes the push source so an external HTTP mux can feed it
// when the embedded listener is disabled.
func (s *SMS) Webhook() *source.PushSource { return s.webhook }

// Close stops the webhook listener. Safe to call repeatedly.
func (s *SMS) Close(ctx context.Context) error {
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
	if s.server != nil {
		return s.server.Stop(ctx)
	}
	return nil
}

// Send translates the intent into one sms.send call. Image and Video
// travel as their URL.
func (s *SMS) Send(ctx context.Context, serviceID string, intent *activity.Intent) (*connector.Status, error) {
	to := intent.To.ID
	if to == "" {
		to = intent.To.Name
	}

	content := intent.Object.Content
	if content == "" {
		content = intent.Object.Name
	}
	if intent.Object.Type == activity.TypeImage || intent.Object.Type == activity.TypeVideo {
		if intent.Object.URL != "" {
			content = intent.Object.URL
		}
	}

	if err := s.transport.Send(ctx, s.cfg.Username, to, content); err != nil {
		return nil, errors.Wrap(err, "sending sms")
	}

	return &connector.Status{Type: "sent", ServiceID: serviceID}, nil
}

// smsInbound is the sms.mo webhook body shape.
type smsInbound struct {
	Type    string `json:"type"`
	EventID string `json:"event_id"`
	EventAt string `json:"event_at"`
	Data    struct {
		From string `json:"from"`
		To   string `json:"to"`
		Text string `json:"text"`
	} `json:"data"`
}

func decodeSMSBody(r *http.Request) (any, error) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		// Empty bodies travel through so the normalizer owns the drop.
		return smsInbound{}, nil
	}

	var body smsInbound
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}
	return body, nil
}

type smsNormalizer struct{}

// Normalize accepts sms.mo events only. SMS is point to point, so both
// actor and target are persons.
func (smsNormalizer) Normalize(_ context.Context, evt source.RawEvent) (*pipeline.Record, error) {
	body, ok := evt.Payload.(smsInbound)
	if !ok {
		return nil, nil
	}
	if body.Type != "sms.mo" {
		return nil, nil
	}

	var ts int64
	if body.EventAt != "" {
		if at, err := time.Parse(time.RFC3339, body.EventAt); err == nil {
			ts = at.Unix()
		}
	}

	return &pipeline.Record{
		EventID:    body.EventID,
		SenderID:   body.Data.From,
		SenderName: body.Data.From,
		TargetID:   body.Data.To,
		TargetName: body.Data.To,
		TargetIM:   true,
		Text:       body.Data.Text,
		Timestamp:  ts,
	}, nil
}
