package whatsapp

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/blablabl4/StreamAssist/internal/config"
	"github.com/blablabl4/StreamAssist/internal/domain/ports/adapter"
	"github.com/blablabl4/StreamAssist/internal/infra/logging"
)

var _ adapter.MessageTransport = (*TwilioTransport)(nil)

// TwilioTransport delivers outbound text over the Twilio WhatsApp API.
type TwilioTransport struct {
	client *twilio.RestClient
	from   string
	log    *zerolog.Logger
}

func NewTwilioTransport(cfg config.WhatsAppConfig, logger *zerolog.Logger) (*TwilioTransport, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.From == "" {
		return nil, errors.New("twilio account_sid/auth_token/from are required")
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	l := logger.With().Str("component", "TwilioTransport").Logger()
	return &TwilioTransport{client: client, from: cfg.From, log: &l}, nil
}

func (t *TwilioTransport) Send(ctx context.Context, phone, text string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(t.from)
	params.SetTo(fmt.Sprintf("whatsapp:+%s", phone))
	params.SetBody(text)

	resp, err := t.client.Api.CreateMessage(params)
	if err != nil {
		t.log.Error().Err(err).Str("phone", logging.MaskPhone(phone)).Msg("send failed")
		return fmt.Errorf("twilio send: %w", err)
	}
	if resp.Sid != nil {
		t.log.Debug().Str("sid", *resp.Sid).Str("phone", logging.MaskPhone(phone)).Msg("message sent")
	}
	return nil
}
