// Package messaging handles the inbound messaging channel: trigger
// matching, control words, asynchronous webhook processing, and replies
// through the provider's REST API.
package messaging

import (
	"fmt"
	"os"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/chronicle-ai/chronicle/pkg/config"
	"github.com/chronicle-ai/chronicle/pkg/models"
)

// Sender delivers one outbound reply to a recipient.
type Sender interface {
	Send(to, body string) error
}

// TwilioSender sends replies through the Twilio messages API.
type TwilioSender struct {
	client *twilio.RestClient
	from   string
}

// NewTwilioSender builds the sender; credentials come from the
// environment variables named in the configuration.
func NewTwilioSender(cfg *config.MessagingConfig) (*TwilioSender, error) {
	sid := os.Getenv(cfg.AccountSIDEnv)
	token := os.Getenv(cfg.AuthTokenEnv)
	if sid == "" || token == "" {
		return nil, fmt.Errorf("messaging credentials missing: %s and %s must be set",
			cfg.AccountSIDEnv, cfg.AuthTokenEnv)
	}
	return &TwilioSender{
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: sid,
			Password: token,
		}),
		from: cfg.FromNumber,
	}, nil
}

// Send posts one message to the provider.
func (s *TwilioSender) Send(to, body string) error {
	params := &openapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(body)

	if _, err := s.client.Api.CreateMessage(params); err != nil {
		return models.NewFault(models.FaultTransientExternal, "messaging.send", err)
	}
	return nil
}
