package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultTwilioBaseUrl = "https://api.twilio.com"
	DefaultWhatsAppFrom  = "whatsapp:+14155238886"
)

type TwilioConfig struct {
	AccountSid string `json:"account_sid"`
	AuthToken  string `json:"auth_token"`
	From       string `json:"from"`
	ContentSid string `json:"content_sid"`
	BaseUrl    string `json:"base_url"`
}

var e164Regex = regexp.MustCompile(`^\+\d{7,15}$`)

// WhatsAppAddress turns an E.164 number into a twilio whatsapp address, it
// returns "" when phone is not one.
func WhatsAppAddress(phone string) string {
	phone = strings.TrimSpace(phone)
	if strings.HasPrefix(phone, "whatsapp:") {
		return phone
	}
	if e164Regex.MatchString(phone) {
		return "whatsapp:" + phone
	}
	return ""
}

// WhatsAppChannel sends alerts as a whatsapp content template through the
// twilio messages api.
type WhatsAppChannel struct {
	config TwilioConfig
	client *resty.Client
}

func NewWhatsAppChannel(config TwilioConfig) (WhatsAppChannel, error) {
	if config.AccountSid == "" || config.AuthToken == "" {
		return WhatsAppChannel{}, fmt.Errorf("twilio account sid and auth token are required")
	}
	if config.ContentSid == "" {
		return WhatsAppChannel{}, fmt.Errorf("twilio content sid is required")
	}
	if config.From == "" {
		config.From = DefaultWhatsAppFrom
	}
	if config.BaseUrl == "" {
		config.BaseUrl = DefaultTwilioBaseUrl
	}

	client := resty.New()
	client.SetBaseURL(config.BaseUrl)
	client.SetBasicAuth(config.AccountSid, config.AuthToken)
	client.SetHeader("accept", "application/json")

	return WhatsAppChannel{config: config, client: client}, nil
}

func (WhatsAppChannel) Name() string {
	return "whatsapp"
}

type twilioError struct {
	Message      string `json:"message"`
	ErrorMessage string `json:"error_message"`
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func (c WhatsAppChannel) Notify(ctx context.Context, officer Officer, alert Alert) error {
	if strings.TrimSpace(officer.Phone) == "" {
		return ErrNoAddress
	}
	to := WhatsAppAddress(officer.Phone)
	if to == "" {
		return fmt.Errorf("invalid phone number %q, expected E.164 like +917451898577", officer.Phone)
	}

	link := alert.Tender.DetailUrl
	if link == "" {
		link = "No URL available"
	}
	variables, err := json.Marshal(map[string]string{
		"1": truncate(headline(alert.Tender, "New Tender"), 100),
		"2": link,
	})
	if err != nil {
		return err
	}

	res, err := c.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"From":             c.config.From,
			"To":               to,
			"ContentSid":       c.config.ContentSid,
			"ContentVariables": string(variables),
		}).
		Post(fmt.Sprintf("/2010-04-01/Accounts/%s/Messages.json", url.PathEscape(c.config.AccountSid)))
	if err != nil {
		return err
	}
	if res.IsError() {
		var body twilioError
		_ = json.Unmarshal(res.Body(), &body)
		msg := body.Message
		if msg == "" {
			msg = body.ErrorMessage
		}
		if msg == "" {
			msg = "twilio api failed"
		}
		return fmt.Errorf("%s (status %d)", msg, res.StatusCode())
	}
	return nil
}
