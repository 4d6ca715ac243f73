// Package push fans notifications out to registered iOS and Android devices
// through an HTTP push relay.
package push

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

// JobType is the queue job that delivers one notification to one device.
const JobType = "push.notify"

// Notification is the job payload.
type Notification struct {
	Token    string         `json:"token"`
	Platform model.Platform `json:"platform"`
	Title    string         `json:"title"`
	Body     string         `json:"body"`
}

// Gateway delivers a single notification.
type Gateway interface {
	Notify(ctx context.Context, n Notification) error
}

// RelayGateway posts notifications to a push relay that speaks APNs and FCM.
type RelayGateway struct {
	url    string
	apiKey string
	client *http.Client
	logger zerolog.Logger
}

// NewRelayGateway creates a gateway for the relay at cfg.GatewayURL.
func NewRelayGateway(cfg config.PushConfig, logger zerolog.Logger) *RelayGateway {
	return &RelayGateway{
		url:    strings.TrimRight(cfg.GatewayURL, "/"),
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger.With().Str("component", "push_relay").Logger(),
	}
}

type relayRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	Sound    string `json:"sound,omitempty"`
}

// Notify implements Gateway.
func (g *RelayGateway) Notify(ctx context.Context, n Notification) error {
	body := relayRequest{
		Token:    n.Token,
		Platform: string(n.Platform),
		Title:    n.Title,
		Body:     n.Body,
	}
	if n.Platform == model.PlatformIOS {
		body.Sound = "default"
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("push: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url+"/v1/send", bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("push: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("push: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("push: relay returned HTTP %d", resp.StatusCode)
	}

	g.logger.Debug().Str("platform", body.Platform).Msg("push notification sent")
	return nil
}

// LogGateway only logs notifications. Used when no relay is configured.
type LogGateway struct {
	logger zerolog.Logger
}

// NewLogGateway creates a LogGateway.
func NewLogGateway(logger zerolog.Logger) *LogGateway {
	return &LogGateway{logger: logger.With().Str("component", "push_log").Logger()}
}

func (g *LogGateway) Notify(_ context.Context, n Notification) error {
	g.logger.Info().
		Str("platform", string(n.Platform)).
		Str("title", n.Title).
		Msg("push delivery disabled, notification logged")
	return nil
}

// NewGateway picks the relay gateway when push is enabled.
func NewGateway(cfg config.PushConfig, logger zerolog.Logger) Gateway {
	if cfg.Enabled {
		return NewRelayGateway(cfg, logger)
	}
	return NewLogGateway(logger)
}

// Handler adapts a Gateway to a queue job handler.
func Handler(gw Gateway) jobs.Handler {
	return func(ctx context.Context, payload json.RawMessage) error {
		var n Notification
		if err := json.Unmarshal(payload, &n); err != nil {
			return fmt.Errorf("push: decode job: %w", err)
		}
		if !n.Platform.Valid() {
			return fmt.Errorf("push: %w: %q", model.ErrInvalidPlatform, n.Platform)
		}
		return gw.Notify(ctx, n)
	}
}

// Enqueuer is the part of the job queue used to schedule deliveries.
type Enqueuer interface {
	Dispatch(ctx context.Context, jobType string, payload any) error
}

// FanOut enqueues one delivery per device and returns how many were queued.
// A device that cannot be queued is logged and skipped.
func FanOut(ctx context.Context, q Enqueuer, devices []model.DeviceToken, title, body string, logger zerolog.Logger) int {
	queued := 0
	for _, d := range devices {
		err := q.Dispatch(ctx, JobType, Notification{
			Token:    d.Token,
			Platform: d.Platform,
			Title:    title,
			Body:     body,
		})
		if err != nil {
			logger.Warn().Err(err).Int64("device_id", d.ID).Msg("failed to enqueue push notification")
			continue
		}
		queued++
	}
	return queued
}
