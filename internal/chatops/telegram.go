// Package chatops posts order summaries to the operations chat.
package chatops

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"storefront/internal/config"
	"storefront/internal/jobs"
	"storefront/internal/model"

	"github.com/rs/zerolog"
)

// JobType is the queue job that posts one order summary.
const JobType = "chatops.order_summary"

const defaultTelegramURL = "https://api.telegram.org"

// Notifier announces committed orders.
type Notifier interface {
	PostOrderSummary(ctx context.Context, order *model.OrderResponse) error
}

// TelegramNotifier sends Markdown messages through the Bot API.
type TelegramNotifier struct {
	baseURL string
	token   string
	chatID  string
	client  *http.Client
	logger  zerolog.Logger
}

// NewTelegramNotifier creates a notifier for cfg.ChatID.
func NewTelegramNotifier(cfg config.TelegramConfig, logger zerolog.Logger) *TelegramNotifier {
	base := cfg.BaseURL
	if base == "" {
		base = defaultTelegramURL
	}
	return &TelegramNotifier{
		baseURL: strings.TrimRight(base, "/"),
		token:   cfg.BotToken,
		chatID:  cfg.ChatID,
		client:  &http.Client{Timeout: 5 * time.Second},
		logger:  logger.With().Str("component", "telegram").Logger(),
	}
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// PostOrderSummary implements Notifier.
func (n *TelegramNotifier) PostOrderSummary(ctx context.Context, order *model.OrderResponse) error {
	raw, err := json.Marshal(sendMessageRequest{
		ChatID:    n.chatID,
		Text:      FormatOrderSummary(order),
		ParseMode: "Markdown",
	})
	if err != nil {
		return fmt.Errorf("telegram: marshal: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("telegram: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("telegram: sendMessage returned HTTP %d", resp.StatusCode)
	}

	n.logger.Debug().Str("order_id", order.ID.String()).Msg("order summary posted")
	return nil
}

// markdownEscaper backslash-escapes the characters that open an entity in
// Telegram's legacy Markdown parse mode.
var markdownEscaper = strings.NewReplacer(
	"_", `\_`,
	"*", `\*`,
	"`", "\\`",
	"[", `\[`,
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// FormatOrderSummary renders the message posted for a new order. Customer
// and catalogue text is escaped.
func FormatOrderSummary(order *model.OrderResponse) string {
	var b strings.Builder

	b.WriteString("📦 *New order*\n")
	fmt.Fprintf(&b, "*Order:* `%s`\n", order.ID)
	if c := order.Customer; c != nil {
		name := c.Username
		if name == "" {
			name = "Unknown"
		}
		fmt.Fprintf(&b, "👤 *Customer:* %s\n", escapeMarkdown(name))
		fmt.Fprintf(&b, "📱 *Phone:* %s\n", escapeMarkdown(c.PhoneNumber))
		fmt.Fprintf(&b, "🏛 *Government:* %s\n", escapeMarkdown(c.Government))
		fmt.Fprintf(&b, "📍 *Address:* %s\n", escapeMarkdown(c.Address))
	}

	b.WriteString("\n🛒 *Items*\n")
	for _, it := range order.Items {
		fmt.Fprintf(&b, "- %s (x%d) @ %s each\n", escapeMarkdown(it.ProductName), it.Quantity, it.UnitPrice.StringFixed(2))
	}

	b.WriteString("\n")
	if order.CouponCode != nil && order.Discount.IsPositive() {
		fmt.Fprintf(&b, "🏷 *Coupon %s:* -%s\n", escapeMarkdown(*order.CouponCode), order.Discount.StringFixed(2))
	}
	fmt.Fprintf(&b, "💰 *Total:* %s", order.Total.StringFixed(2))

	return b.String()
}

// LogNotifier writes summaries to the log when Telegram is disabled.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "chatops_log").Logger()}
}

func (n *LogNotifier) PostOrderSummary(_ context.Context, order *model.OrderResponse) error {
	n.logger.Info().
		Str("order_id", order.ID.String()).
		Str("total", order.Total.StringFixed(2)).
		Int("items", len(order.Items)).
		Msg("order committed")
	return nil
}

// NewNotifier picks the Telegram notifier when it is enabled.
func NewNotifier(cfg config.TelegramConfig, logger zerolog.Logger) Notifier {
	if cfg.Enabled {
		return NewTelegramNotifier(cfg, logger)
	}
	return NewLogNotifier(logger)
}

// Handler adapts a Notifier to a queue job handler.
func Handler(n Notifier) jobs.Handler {
	return func(ctx context.Context, payload json.RawMessage) error {
		var order model.OrderResponse
		if err := json.Unmarshal(payload, &order); err != nil {
			return fmt.Errorf("chatops: decode job: %w", err)
		}
		return n.PostOrderSummary(ctx, &order)
	}
}
