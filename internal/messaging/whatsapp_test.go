package messaging

import (
	"context"
	"errors"
	"testing"

	"storefront/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
)

type mockMessageCreator struct {
	mock.Mock
}

func (m *mockMessageCreator) CreateMessage(params *twilioapi.CreateMessageParams) (*twilioapi.ApiV2010Message, error) {
	args := m.Called(params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*twilioapi.ApiV2010Message), args.Error(1)
}

func TestWhatsAppSender_SendOTP(t *testing.T) {
	api := new(mockMessageCreator)
	sender := newWhatsAppSender(api, "+14155238886", "HX123", zerolog.Nop())

	sid := "SM1"
	api.On("CreateMessage", mock.MatchedBy(func(p *twilioapi.CreateMessageParams) bool {
		return *p.To == "whatsapp:+201000000000" &&
			*p.From == "whatsapp:+14155238886" &&
			*p.ContentSid == "HX123" &&
			*p.ContentVariables == `{"1":"482913"}`
	})).Return(&twilioapi.ApiV2010Message{Sid: &sid}, nil)

	err := sender.SendOTP(context.Background(), "+201000000000", "482913")

	require.NoError(t, err)
	api.AssertExpectations(t)
}

func TestWhatsAppSender_SendOTP_GatewayError(t *testing.T) {
	api := new(mockMessageCreator)
	sender := newWhatsAppSender(api, "whatsapp:+14155238886", "HX123", zerolog.Nop())
	api.On("CreateMessage", mock.Anything).Return(nil, errors.New("status 503"))

	err := sender.SendOTP(context.Background(), "+201000000000", "482913")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}

func TestWhatsAppSender_SendOTP_CancelledContext(t *testing.T) {
	api := new(mockMessageCreator)
	sender := newWhatsAppSender(api, "+1", "HX", zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, sender.SendOTP(ctx, "+2", "111111"), context.Canceled)
	api.AssertNotCalled(t, "CreateMessage", mock.Anything)
}

func TestNewSender(t *testing.T) {
	_, isLog := NewSender(config.TwilioConfig{}, zerolog.Nop()).(*LogSender)
	assert.True(t, isLog)

	_, isWhatsApp := NewSender(config.TwilioConfig{Enabled: true, AccountSID: "AC", AuthToken: "t"}, zerolog.Nop()).(*WhatsAppSender)
	assert.True(t, isWhatsApp)
}
