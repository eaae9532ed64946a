package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kittoju/flume/internal/errors"
)

// CallrClient is the default SMSTransport: a thin JSON-RPC client for
// the Callr API. The connector core never calls it directly; it is
// injected into NewSMS.
type CallrClient struct {
	baseURL     string
	token       string
	tokenSecret string
	httpc       *http.Client
}

// NewCallrClient builds the JSON-RPC transport.
func NewCallrClient(baseURL, token, tokenSecret string) *CallrClient {
	return &CallrClient{
		baseURL:     baseURL,
		token:       token,
		tokenSecret: tokenSecret,
		httpc:       http.DefaultClient,
	}
}

// Subscribe registers the webhook endpoint for an event type.
func (c *CallrClient) Subscribe(ctx context.Context, eventType, webhookURL string) error {
	_, err := c.call(ctx, "webhooks.subscribe", []any{eventType, webhookURL, nil})
	return err
}

// Send delivers one outbound SMS.
func (c *CallrClient) Send(ctx context.Context, from, to, content string) error {
	_, err := c.call(ctx, "sms.send", []any{from, to, content, nil})
	return err
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *CallrClient) call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	payload, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.token, c.tokenSecret)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "calling "+method)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, errors.Transient(fmt.Sprintf("%s returned %s", method, resp.Status))
	}

	var rpc rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpc); err != nil {
		return nil, errors.Wrap(err, "decoding "+method+" response")
	}
	if rpc.Error != nil {
		return nil, fmt.Errorf("%s failed: %s", method, rpc.Error.Message)
	}
	return rpc.Result, nil
}

var _ SMSTransport = (*CallrClient)(nil)
