// Package messaging delivers one-time codes to customers' phones.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"storefront/internal/config"
	"storefront/internal/otp"

	"github.com/rs/zerolog"
	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// messageCreator is the slice of the Twilio API used here.
type messageCreator interface {
	CreateMessage(params *twilioapi.CreateMessageParams) (*twilioapi.ApiV2010Message, error)
}

// WhatsAppSender sends codes through a Twilio WhatsApp content template
// whose first variable is the code.
type WhatsAppSender struct {
	api        messageCreator
	from       string
	contentSID string
	logger     zerolog.Logger
}

// NewWhatsAppSender creates a sender from Twilio configuration.
func NewWhatsAppSender(cfg config.TwilioConfig, logger zerolog.Logger) *WhatsAppSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return newWhatsAppSender(client.Api, cfg.From, cfg.ContentSID, logger)
}

func newWhatsAppSender(api messageCreator, from, contentSID string, logger zerolog.Logger) *WhatsAppSender {
	return &WhatsAppSender{
		api:        api,
		from:       whatsappAddress(from),
		contentSID: contentSID,
		logger:     logger.With().Str("component", "whatsapp").Logger(),
	}
}

func whatsappAddress(phone string) string {
	if strings.HasPrefix(phone, "whatsapp:") {
		return phone
	}
	return "whatsapp:" + phone
}

// SendOTP implements otp.Sender. The Twilio client is synchronous and does
// not take a context, so cancellation is only checked before the call.
func (s *WhatsAppSender) SendOTP(ctx context.Context, phone string, code otp.Code) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	vars, err := json.Marshal(map[string]string{"1": code.String()})
	if err != nil {
		return fmt.Errorf("failed to encode content variables: %w", err)
	}

	params := &twilioapi.CreateMessageParams{}
	params.SetTo(whatsappAddress(phone))
	params.SetFrom(s.from)
	params.SetContentSid(s.contentSID)
	params.SetContentVariables(string(vars))

	msg, err := s.api.CreateMessage(params)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to send whatsapp message")
		return fmt.Errorf("failed to send whatsapp message: %w", err)
	}

	if msg != nil && msg.Sid != nil {
		s.logger.Debug().Str("message_sid", *msg.Sid).Msg("whatsapp message queued")
	}
	return nil
}

// LogSender writes codes to the log instead of delivering them. It is meant
// for local development where no gateway is configured.
type LogSender struct {
	logger zerolog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{logger: logger.With().Str("component", "otp_log_sender").Logger()}
}

// SendOTP implements otp.Sender.
func (s *LogSender) SendOTP(_ context.Context, phone string, code otp.Code) error {
	s.logger.Warn().Str("phone", phone).Str("code", code.String()).Msg("otp delivery disabled, code logged")
	return nil
}

// NewSender picks the WhatsApp sender when Twilio is enabled.
func NewSender(cfg config.TwilioConfig, logger zerolog.Logger) otp.Sender {
	if cfg.Enabled {
		return NewWhatsAppSender(cfg, logger)
	}
	return NewLogSender(logger)
}
