package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const apiBaseURL = "https://api.telegram.org"

// SendResult is the normalized shape of a successful outbound call.
type SendResult struct {
	ProviderMessageID int `json:"providerMessageId,omitempty"`
}

type apiEnvelope struct {
	OK          bool            `json:"ok"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

type resultWithMessageID struct {
	MessageID int `json:"message_id"`
}

// Client posts outbound calls to the Telegram Bot API.
type Client struct {
	botToken   string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client for the given bot token.
func NewClient(botToken string) *Client {
	return &Client{botToken: botToken, baseURL: apiBaseURL, httpClient: http.DefaultClient}
}

// newClientWithBaseURL is used by tests to point the client at an httptest server.
func newClientWithBaseURL(botToken, baseURL string) *Client {
	return &Client{botToken: botToken, baseURL: baseURL, httpClient: http.DefaultClient}
}

// Send POSTs {method: params} to https://api.telegram.org/bot<token>/<method>.
// On ok:true it returns the provider message ID when the result carries one.
// On ok:false or a non-2xx response, it fails with telegram_api_error:<code>:<description>.
func (c *Client) Send(ctx context.Context, method string, params map[string]any) (SendResult, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return SendResult{}, fmt.Errorf("marshal params: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.botToken, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return SendResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return SendResult{}, err
	}
	defer resp.Body.Close()

	var env apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return SendResult{}, fmt.Errorf("telegram_api_error:%d:malformed response", resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !env.OK {
		return SendResult{}, fmt.Errorf("telegram_api_error:%d:%s", env.ErrorCode, env.Description)
	}

	var out SendResult
	if len(env.Result) > 0 {
		var r resultWithMessageID
		if err := json.Unmarshal(env.Result, &r); err == nil && r.MessageID != 0 {
			out.ProviderMessageID = r.MessageID
		}
	}
	return out, nil
}

// SendMessage is a convenience wrapper over Send for the sendMessage method.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) (SendResult, error) {
	return c.Send(ctx, "sendMessage", map[string]any{
		"chat_id": chatID,
		"text":    text,
	})
}

// EditMessageText is a convenience wrapper over Send for the editMessageText method.
func (c *Client) EditMessageText(ctx context.Context, chatID int64, messageID int, text string) (SendResult, error) {
	return c.Send(ctx, "editMessageText", map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
	})
}
