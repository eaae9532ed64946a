package platform

import (
	"context"
	"log/slog"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kittoju/flume/internal/activity"
	"github.com/kittoju/flume/internal/cache"
	"github.com/kittoju/flume/internal/connector"
	"github.com/kittoju/flume/internal/errors"
	"github.com/kittoju/flume/internal/pipeline"
	"github.com/kittoju/flume/internal/source"
)

// TelegramConfig configures the Telegram connector.
type TelegramConfig struct {
	BotToken      string
	UpdateTimeout int
}

// Telegram is the poll-class connector: long polling for updates is the
// single primary source.
type Telegram struct {
	cfg TelegramConfig
	bot *tgbotapi.BotAPI
}

// NewTelegram builds the Telegram platform.
func NewTelegram(cfg TelegramConfig) *Telegram {
	if cfg.UpdateTimeout <= 0 {
		cfg.UpdateTimeout = 30
	}
	return &Telegram{cfg: cfg}
}

func (t *Telegram) Name() string { return "telegram" }

// Connect authenticates the bot and opens the update poll loop.
func (t *Telegram) Connect(ctx context.Context) (*connector.Session, error) {
	if t.cfg.BotToken == "" {
		return nil, errors.MissingCredential("telegram bot token")
	}

	bot, err := tgbotapi.NewBotAPI(t.cfg.BotToken)
	if err != nil {
		return nil, errors.Wrap(err, "authenticating telegram bot")
	}
	t.bot = bot
	slog.Info("Telegram bot authenticated", "user", bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = t.cfg.UpdateTimeout
	updates := bot.GetUpdatesChan(u)

	selfKey := "user:" + strconv.FormatInt(bot.Self.ID, 10)

	return &connector.Session{
		Sources: []connector.Registration{
			{Source: &telegramPollSource{updates: updates}, Role: source.RolePrimary},
		},
		Seed: map[string]any{selfKey: bot.Self},
		Normalizer: func(*cache.Store) pipeline.Normalizer {
			return &telegramNormalizer{fileURL: bot.GetFileDirectURL}
		},
	}, nil
}

// Close stops the poll loop. Safe to call repeatedly.
func (t *Telegram) Close(context.Context) error {
	if t.bot != nil {
		t.bot.StopReceivingUpdates()
	}
	return nil
}

// Send dispatches one outbound intent: delete for empty content with a
// message id, edit for a message id, otherwise a fresh Note, photo or
// video send.
func (t *Telegram) Send(ctx context.Context, serviceID string, intent *activity.Intent) (*connector.Status, error) {
	if t.bot == nil {
		return nil, errors.NotConnected("telegram session")
	}

	target := intent.To.ID
	if target == "" {
		target = intent.To.Name
	}
	chatID, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return nil, errors.SchemaViolation("telegram target must be a numeric chat id")
	}

	obj := intent.Object

	if obj.ID != "" {
		messageID, err := strconv.Atoi(obj.ID)
		if err != nil {
			return nil, errors.SchemaViolation("telegram message id must be numeric")
		}
		if obj.Content == "" && obj.URL == "" {
			if _, err := t.bot.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
				return nil, errors.Wrap(err, "deleting telegram message")
			}
			return &connector.Status{Type: "sent", ServiceID: serviceID}, nil
		}
		if _, err := t.bot.Send(tgbotapi.NewEditMessageText(chatID, messageID, obj.Content)); err != nil {
			return nil, errors.Wrap(err, "editing telegram message")
		}
		return &connector.Status{Type: "sent", ServiceID: serviceID}, nil
	}

	var msg tgbotapi.Chattable
	switch obj.Type {
	case activity.TypeImage:
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(obj.URL))
		photo.Caption = obj.Content
		msg = photo
	case activity.TypeVideo:
		video := tgbotapi.NewVideo(chatID, tgbotapi.FileURL(obj.URL))
		video.Caption = obj.Content
		msg = video
	default:
		content := obj.Content
		if content == "" {
			content = obj.Name
		}
		msg = tgbotapi.NewMessage(chatID, content)
	}

	if _, err := t.bot.Send(msg); err != nil {
		return nil, errors.Wrap(err, "sending telegram message")
	}
	return &connector.Status{Type: "sent", ServiceID: serviceID}, nil
}

// telegramPollSource adapts the update channel into a Source.
type telegramPollSource struct {
	updates tgbotapi.UpdatesChannel
}

func (t *telegramPollSource) Name() string { return "telegram-poll" }

func (t *telegramPollSource) Run(ctx context.Context, emit source.EmitFunc) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-t.updates:
			if !ok {
				return errors.Transient("telegram update stream closed")
			}
			if err := emit(ctx, source.RawEvent{Source: t.Name(), Payload: update}); err != nil {
				return nil
			}
		}
	}
}

type telegramNormalizer struct {
	// fileURL resolves an attachment file id to a fetchable URL.
	fileURL func(fileID string) (string, error)
}

func (n *telegramNormalizer) Normalize(_ context.Context, evt source.RawEvent) (*pipeline.Record, error) {
	update, ok := evt.Payload.(tgbotapi.Update)
	if !ok {
		return nil, nil
	}

	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return nil, nil
	}

	rec := &pipeline.Record{
		EventID:    strconv.Itoa(msg.MessageID),
		SenderID:   strconv.FormatInt(msg.From.ID, 10),
		SenderName: msg.From.UserName,
		SenderBot:  msg.From.IsBot,
		TargetID:   strconv.FormatInt(msg.Chat.ID, 10),
		TargetName: msg.Chat.Title,
		TargetIM:   msg.Chat.IsPrivate(),
		Text:       msg.Text,
		Timestamp:  int64(msg.Date),
	}
	if rec.SenderName == "" {
		rec.SenderName = msg.From.FirstName
	}
	if rec.TargetIM && rec.TargetName == "" {
		rec.TargetName = msg.Chat.UserName
	}

	if len(msg.Photo) > 0 {
		best := msg.Photo[len(msg.Photo)-1]
		if n.fileURL != nil {
			if url, err := n.fileURL(best.FileID); err == nil {
				rec.File = &pipeline.FileRef{
					URL:       url,
					MediaType: "image/jpeg",
					Content:   msg.Caption,
				}
			} else {
				slog.Debug("Telegram file URL unavailable", "file", best.FileID, "error", err)
			}
		}
	}

	if rec.Text == "" && rec.File == nil {
		return nil, nil
	}

	return rec, nil
}

var _ connector.Platform = (*Telegram)(nil)
