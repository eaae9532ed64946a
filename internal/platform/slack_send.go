package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/slack-go/slack"

	"github.com/kittoju/flume/internal/activity"
	"github.com/kittoju/flume/internal/connector"
	"github.com/kittoju/flume/internal/errors"
)

// Send dispatches one outbound intent to exactly one transmission
// path: interactive reply through the response URL, delete for empty
// content with a message id, update for a message id, plain post
// otherwise.
func (s *Slack) Send(ctx context.Context, serviceID string, intent *activity.Intent) (*connector.Status, error) {
	if s.client == nil {
		return nil, errors.NotConnected("slack session")
	}

	target := intent.To.ID
	if target == "" {
		target = intent.To.Name
	}

	body, attachments := renderSlackMessage(intent)

	if intent.Object.Context != nil {
		callbackID, responseURL, ok := activity.DecodeCallback(intent.Object.Context.Content)
		if !ok || responseURL == "" {
			return nil, errors.SchemaViolation("interactive context is missing its response URL")
		}
		if err := s.postResponseURL(ctx, responseURL, target, body, attachments); err != nil {
			return nil, errors.Wrap(err, "replying through response url")
		}
		return &connector.Status{Type: "sent", ServiceID: serviceID, CallbackID: callbackID}, nil
	}

	messageID := intent.Object.ID

	switch {
	case body == "" && len(attachments) == 0 && messageID != "":
		if _, _, err := s.client.DeleteMessageContext(ctx, target, messageID); err != nil {
			return nil, errors.Wrap(err, "deleting message")
		}
	case messageID != "":
		opts := []slack.MsgOption{slack.MsgOptionText(body, false)}
		if len(attachments) > 0 {
			opts = append(opts, slack.MsgOptionAttachments(attachments...))
		}
		if _, _, _, err := s.client.UpdateMessageContext(ctx, target, messageID, opts...); err != nil {
			return nil, errors.Wrap(err, "updating message")
		}
	default:
		opts := []slack.MsgOption{slack.MsgOptionText(body, false), slack.MsgOptionAsUser(s.cfg.AsUser)}
		if len(attachments) > 0 {
			opts = append(opts, slack.MsgOptionAttachments(attachments...))
		}
		if _, _, err := s.client.PostMessageContext(ctx, target, opts...); err != nil {
			return nil, errors.Wrap(err, "posting message")
		}
	}

	return &connector.Status{Type: "sent", ServiceID: serviceID}, nil
}

// renderSlackMessage translates the intent object into message text and
// attachments. Images travel as attachments, videos as a composed text
// body.
func renderSlackMessage(intent *activity.Intent) (string, []slack.Attachment) {
	obj := intent.Object

	switch obj.Type {
	case activity.TypeImage:
		body := obj.Content
		if body == "" {
			body = obj.Name
		}
		return body, []slack.Attachment{{
			ImageURL: obj.URL,
			Title:    obj.Name,
			Text:     "",
		}}
	case activity.TypeVideo:
		parts := make([]string, 0, 3)
		if obj.Name != "" {
			parts = append(parts, obj.Name)
		}
		if obj.URL != "" {
			parts = append(parts, obj.URL)
		}
		if obj.Content != "" {
			parts = append(parts, obj.Content)
		}
		return strings.Join(parts, "\n"), nil
	default:
		return obj.Content, nil
	}
}

func (s *Slack) postResponseURL(ctx context.Context, responseURL, channel, text string, attachments []slack.Attachment) error {
	payload := map[string]any{
		"channel": channel,
		"text":    text,
	}
	if len(attachments) > 0 {
		payload["attachments"] = attachments
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, responseURL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return errors.Transient("response url returned " + resp.Status)
	}
	return nil
}
