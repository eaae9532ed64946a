package platform

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"github.com/kittoju/flume/internal/cache"
	"github.com/kittoju/flume/internal/concurrency"
	"github.com/kittoju/flume/internal/connector"
	"github.com/kittoju/flume/internal/errors"
	"github.com/kittoju/flume/internal/pipeline"
	"github.com/kittoju/flume/internal/source"
)

// SlackConfig configures the Slack connector.
type SlackConfig struct {
	BotToken      string
	SigningSecret string
	// WebhookPort enables the Events API / interactive message listener
	// when positive.
	WebhookPort int
	// AsUser posts outbound messages as the authed user.
	AsUser bool
}

// Slack is the socket-class connector: the RTM stream is the primary
// source, the webhook listener an auxiliary one for interactive
// messages and slash commands.
type Slack struct {
	cfg    SlackConfig
	client *slack.Client
	rtm    *slack.RTM
	httpc  *http.Client

	webhook *source.PushSource
	server  *source.WebhookServer
	stop    context.CancelFunc
}

// NewSlack builds the Slack platform.
func NewSlack(cfg SlackConfig) *Slack {
	return &Slack{cfg: cfg, httpc: http.DefaultClient}
}

func (s *Slack) Name() string { return "slack" }

// Connect dials the RTM socket and starts the webhook listener.
func (s *Slack) Connect(ctx context.Context) (*connector.Session, error) {
	if s.cfg.BotToken == "" {
		return nil, errors.MissingCredential("slack bot token")
	}

	s.client = slack.New(s.cfg.BotToken)
	s.rtm = s.client.NewRTM()
	concurrency.SafeGo(s.rtm.ManageConnection, nil)

	sources := []connector.Registration{
		{Source: &slackRTMSource{rtm: s.rtm}, Role: source.RolePrimary},
	}

	if s.cfg.WebhookPort > 0 {
		s.webhook = source.NewPushSource("slack-webhook", 64)
		s.server = source.NewWebhookServer(s.cfg.WebhookPort, s.webhookHandler())
		serverCtx, cancel := context.WithCancel(context.Background())
		s.stop = cancel
		concurrency.SafeGo(func() {
			if err := s.server.Start(serverCtx); err != nil {
				slog.Error("Slack webhook server failed", "error", err)
			}
		}, nil)
		sources = append(sources, connector.Registration{Source: s.webhook, Role: source.RoleAuxiliary})
	}

	return &connector.Session{
		Sources: sources,
		Fetcher: s.fetchMetadata,
		Normalizer: func(meta *cache.Store) pipeline.Normalizer {
			return &slackNormalizer{meta: meta}
		},
	}, nil
}

// Close disconnects the RTM session and the webhook listener.
func (s *Slack) Close(ctx context.Context) error {
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
	if s.server != nil {
		if err := s.server.Stop(ctx); err != nil {
			slog.Warn("Slack webhook shutdown failed", "error", err)
		}
	}
	if s.rtm != nil {
		return s.rtm.Disconnect()
	}
	return nil
}

// fetchMetadata resolves "user:<id>" and "channel:<id>" keys through
// the Web API.
func (s *Slack) fetchMetadata(ctx context.Context, key string) (any, error) {
	kind, id, ok := strings.Cut(key, ":")
	if !ok || id == "" {
		return nil, errors.NotFound("malformed metadata key " + key)
	}

	switch kind {
	case "user":
		user, err := s.client.GetUserInfoContext(ctx, id)
		if err != nil {
			return nil, err
		}
		return user, nil
	case "channel":
		channel, err := s.client.GetConversationInfoContext(ctx, &slack.GetConversationInfoInput{ChannelID: id})
		if err != nil {
			return nil, err
		}
		return channel, nil
	default:
		return nil, errors.NotFound("unknown metadata kind " + kind)
	}
}

// slackInbound is the uniform raw payload both Slack sources produce.
// Only the normalizer interprets it.
type slackInbound struct {
	Type        string
	Subtype     string
	Channel     string
	User        string
	Text        string
	TS          string
	BotID       string
	Username    string
	CallbackID  string
	ResponseURL string
	Files       []slack.File
}

// slackRTMSource adapts the RTM event loop into a Source.
type slackRTMSource struct {
	rtm *slack.RTM
}

func (s *slackRTMSource) Name() string { return "slack-rtm" }

func (s *slackRTMSource) Run(ctx context.Context, emit source.EmitFunc) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-s.rtm.IncomingEvents:
			if !ok {
				return errors.Transient("rtm event stream closed")
			}
			switch data := evt.Data.(type) {
			case *slack.ConnectedEvent:
				slog.Info("Slack RTM connected", "attempt", data.ConnectionCount)
			case *slack.InvalidAuthEvent:
				return errors.Transient("slack rejected credentials")
			case *slack.RTMError:
				slog.Warn("Slack RTM error", "error", data.Error())
			case *slack.MessageEvent:
				raw := slackInbound{
					Type:     data.Type,
					Subtype:  data.SubType,
					Channel:  data.Channel,
					User:     data.User,
					Text:     data.Text,
					TS:       data.Timestamp,
					BotID:    data.BotID,
					Username: data.Username,
					Files:    data.Files,
				}
				if err := emit(ctx, source.RawEvent{Source: s.Name(), Payload: raw}); err != nil {
					return nil
				}
			}
		}
	}
}

// webhookHandler packages Events API callbacks, interactive messages
// and slash commands into the push source. The URL verification
// handshake is answered inline; everything else gets a bare 200.
func (s *Slack) webhookHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if payload := r.FormValue("payload"); payload != "" {
			s.submitInteractive(r.Context(), payload)
			w.WriteHeader(http.StatusOK)
			return
		}

		if cmd, err := slack.SlashCommandParse(r); err == nil && cmd.Command != "" {
			s.submit(r.Context(), slackInbound{
				Type:    "message",
				Subtype: "slash_command",
				Channel: cmd.ChannelID,
				User:    cmd.UserID,
				Text:    cmd.Text,
			})
			w.WriteHeader(http.StatusOK)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil || len(body) == 0 {
			w.WriteHeader(http.StatusOK)
			return
		}

		event, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
		if err != nil {
			slog.Debug("Slack webhook payload dropped", "error", err)
			w.WriteHeader(http.StatusOK)
			return
		}

		if event.Type == slackevents.URLVerification {
			var challenge slackevents.ChallengeResponse
			if err := json.Unmarshal(body, &challenge); err == nil {
				w.Header().Set("Content-Type", "text/plain")
				w.Write([]byte(challenge.Challenge))
				return
			}
			w.WriteHeader(http.StatusOK)
			return
		}

		if event.Type == slackevents.CallbackEvent {
			if msg, ok := event.InnerEvent.Data.(*slackevents.MessageEvent); ok {
				s.submit(r.Context(), slackInbound{
					Type:     "message",
					Subtype:  "event_callback",
					Channel:  msg.Channel,
					User:     msg.User,
					Text:     msg.Text,
					TS:       msg.TimeStamp,
					BotID:    msg.BotID,
					Username: msg.Username,
				})
			}
		}

		w.WriteHeader(http.StatusOK)
	})
}

func (s *Slack) submitInteractive(ctx context.Context, payload string) {
	var cb struct {
		CallbackID  string `json:"callback_id"`
		ResponseURL string `json:"response_url"`
		ActionTS    string `json:"action_ts"`
		Channel     struct {
			ID string `json:"id"`
		} `json:"channel"`
		User struct {
			ID string `json:"id"`
		} `json:"user"`
		Actions []struct {
			Value string `json:"value"`
		} `json:"actions"`
	}
	if err := json.Unmarshal([]byte(payload), &cb); err != nil {
		slog.Debug("Slack interactive payload dropped", "error", err)
		return
	}
	if cb.CallbackID == "" {
		return
	}

	text := ""
	if len(cb.Actions) > 0 {
		text = cb.Actions[0].Value
	}

	s.submit(ctx, slackInbound{
		Type:        "message",
		Subtype:     "interactive_message",
		Channel:     cb.Channel.ID,
		User:        cb.User.ID,
		Text:        text,
		TS:          cb.ActionTS,
		CallbackID:  cb.CallbackID,
		ResponseURL: cb.ResponseURL,
	})
}

func (s *Slack) submit(ctx context.Context, raw slackInbound) {
	if err := s.webhook.Submit(ctx, raw); err != nil {
		slog.Debug("Slack webhook submit failed", "error", err)
	}
}

// slackNormalizer interprets slackInbound payloads, resolving sender
// and channel descriptors through the metadata cache.
type slackNormalizer struct {
	meta *cache.Store
}

// droppedSubtypes are message subtypes the pipeline never emits for.
var droppedSubtypes = map[string]bool{
	"channel_join":    true,
	"message_changed": true,
}

func (n *slackNormalizer) Normalize(ctx context.Context, evt source.RawEvent) (*pipeline.Record, error) {
	msg, ok := evt.Payload.(slackInbound)
	if !ok {
		return nil, nil
	}

	if msg.Type != "message" || droppedSubtypes[msg.Subtype] {
		return nil, nil
	}
	if msg.Text == "" && len(msg.Files) == 0 {
		return nil, nil
	}

	rec := &pipeline.Record{
		EventID:     msg.TS,
		Text:        msg.Text,
		Subtype:     msg.Subtype,
		CallbackID:  msg.CallbackID,
		ResponseURL: msg.ResponseURL,
		Timestamp:   slackTS(msg.TS),
		Meta:        map[string]any{},
	}

	if msg.Subtype == "bot_message" {
		// Bot posts carry no user id; synthesize an application actor.
		rec.SenderID = msg.BotID
		rec.SenderName = msg.Username
		rec.SenderBot = true
	} else {
		rec.SenderID = msg.User
		rec.SenderName = msg.User
		if desc, err := n.meta.Lookup(ctx, "user:"+msg.User); err == nil {
			if user, ok := desc.(*slack.User); ok {
				rec.SenderName = user.Name
				rec.SenderBot = user.IsBot
				rec.Meta["user"] = user
			}
		} else {
			slog.Debug("User descriptor unavailable", "user", msg.User, "error", err)
		}
	}

	rec.TargetID = msg.Channel
	rec.TargetName = msg.Channel
	if desc, err := n.meta.Lookup(ctx, "channel:"+msg.Channel); err == nil {
		if channel, ok := desc.(*slack.Channel); ok {
			if channel.Name != "" {
				rec.TargetName = channel.Name
			}
			rec.TargetIM = channel.IsIM
			rec.Meta["channel"] = channel
		}
	} else {
		slog.Debug("Channel descriptor unavailable", "channel", msg.Channel, "error", err)
	}

	if len(msg.Files) > 0 {
		rec.File = fileRef(msg.Files[0])
	}

	return rec, nil
}

func fileRef(f slack.File) *pipeline.FileRef {
	return &pipeline.FileRef{
		URL:       f.PermalinkPublic,
		MediaType: f.Mimetype,
		Name:      f.Name,
		Preview:   f.Thumb1024,
	}
}

// slackTS converts Slack's "<seconds>.<sequence>" event ids to epoch
// seconds. Downstream stages assume seconds, never the raw float id.
func slackTS(ts string) int64 {
	secs, _, _ := strings.Cut(ts, ".")
	n, err := strconv.ParseInt(secs, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

var _ connector.Platform = (*Slack)(nil)
var _ connector.Platform = (*SMS)(nil)
