package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// TelegramOptions parameterise the Telegram notifier.
type TelegramOptions struct {
	BotToken string
	ChatID   string
	APIBase  string
	Timeout  time.Duration
}

// TelegramNotifier 把告警作为文本消息推送到一个 chat。图表不随消息发送。
type TelegramNotifier struct {
	opts   TelegramOptions
	client *http.Client
	logger zerolog.Logger
}

type telegramMessage struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type telegramReply struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// NewTelegramNotifier 构造 Telegram 告警器。
func NewTelegramNotifier(opts TelegramOptions, logger zerolog.Logger) *TelegramNotifier {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	opts.APIBase = strings.TrimRight(opts.APIBase, "/")
	if opts.APIBase == "" {
		opts.APIBase = "https://api.telegram.org"
	}
	return &TelegramNotifier{
		opts:   opts,
		client: &http.Client{Timeout: opts.Timeout},
		logger: logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify posts the alert through sendMessage. A reply with ok=false is a delivery failure.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload, err := json.Marshal(telegramMessage{
		ChatID:                n.opts.ChatID,
		Text:                  telegramText(note),
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("encode telegram message: %w", err)
	}

	endpoint := n.opts.APIBase + "/bot" + n.opts.BotToken + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		// the URL embeds the bot token; keep it out of the error text
		return fmt.Errorf("telegram sendMessage: %s", strings.ReplaceAll(err.Error(), n.opts.BotToken, "***"))
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var reply telegramReply
	decodeErr := json.Unmarshal(raw, &reply)

	switch {
	case decodeErr == nil && !reply.OK:
		return fmt.Errorf("telegram rejected alert %q (%d): %s", note.Trigger, reply.ErrorCode, reply.Description)
	case resp.StatusCode/100 != 2:
		return fmt.Errorf("telegram sendMessage: http %d", resp.StatusCode)
	}

	n.logger.Info().Str("trigger", note.Trigger).
		Str("chat_id", n.opts.ChatID).
		Int("charts_omitted", len(note.Attachments)).
		Msg("告警已推送 (Telegram)")
	return nil
}

// telegramText renders subject, body and a note about omitted charts.
func telegramText(note Notification) string {
	var b strings.Builder
	b.WriteString(note.Subject)
	if note.Trigger != "" {
		b.WriteString(" [")
		b.WriteString(note.Trigger)
		b.WriteString("]")
	}
	b.WriteString("\n\n")
	b.WriteString(note.Body)
	if n := len(note.Attachments); n > 0 {
		fmt.Fprintf(&b, "\n\n(%d chart(s) sent by email only)", n)
	}
	return b.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
