package notify

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"strings"
)

// DefaultTelegramAPI is the Bot API root.
const DefaultTelegramAPI = "https://api.telegram.org"

// TelegramSender delivers alerts through the Bot API sendMessage method.
type TelegramSender struct {
	endpoint string
	chatID   string
	client   *http.Client
}

// NewTelegramSender creates a TelegramSender for a bot token and chat. An
// empty baseURL means DefaultTelegramAPI; a nil client gets a 10s timeout.
func NewTelegramSender(baseURL, token, chatID string, client *http.Client) *TelegramSender {
	if baseURL == "" {
		baseURL = DefaultTelegramAPI
	}
	return &TelegramSender{
		endpoint: fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(baseURL, "/"), token),
		chatID:   chatID,
		client:   defaultClient(client),
	}
}

// RenderTelegram formats a as Telegram HTML with every value escaped.
func RenderTelegram(a Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>", html.EscapeString(a.Title))
	for _, f := range a.Fields {
		fmt.Fprintf(&b, "\n%s: <code>%s</code>", html.EscapeString(f.Name), html.EscapeString(f.Value))
	}
	if a.Footer != "" {
		fmt.Fprintf(&b, "\n<i>%s</i>", html.EscapeString(a.Footer))
	}
	return b.String()
}

// Send posts a to the configured chat.
func (t *TelegramSender) Send(ctx context.Context, a Alert) error {
	payload := map[string]any{
		"chat_id":                  t.chatID,
		"text":                     RenderTelegram(a),
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	}
	if err := postJSON(ctx, t.client, t.endpoint, payload); err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	return nil
}

// Name returns "telegram".
func (t *TelegramSender) Name() string { return "telegram" }
