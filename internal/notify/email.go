package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"regexp"
	"strings"

	"github.com/jordan-wright/email"
)

type SmtpConfig struct {
	Server       string `json:"server"`
	Port         int    `json:"port"`
	EmailAddress string `json:"email_address"`
	Password     string `json:"password"`
	// FromName is shown as the sender, defaults to "Tender Alerts".
	FromName string `json:"from_name"`
}

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type sendFunc = func(mail *email.Email, addr string, auth smtp.Auth) error

// EmailChannel sends alerts over smtp.
type EmailChannel struct {
	config SmtpConfig
	send   sendFunc
}

func NewEmailChannel(config SmtpConfig) EmailChannel {
	return EmailChannel{
		config: config,
		send: func(mail *email.Email, addr string, auth smtp.Auth) error {
			return mail.Send(addr, auth)
		},
	}
}

func (EmailChannel) Name() string {
	return "email"
}

func (c EmailChannel) Notify(ctx context.Context, officer Officer, alert Alert) error {
	to := strings.TrimSpace(officer.Email)
	if to == "" {
		return ErrNoAddress
	}
	if !emailRegex.MatchString(to) {
		return fmt.Errorf("invalid email address %q", to)
	}

	fromName := c.config.FromName
	if fromName == "" {
		fromName = "Tender Alerts"
	}

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("%s <%s>", fromName, c.config.EmailAddress)
	mail.To = []string{to}
	mail.Subject = Subject(alert)
	mail.Text = []byte("A new tender has been found!\n\n" + Details(alert))

	addr := fmt.Sprintf("%s:%d", c.config.Server, c.config.Port)
	err := c.send(
		mail,
		addr,
		smtp.PlainAuth("", c.config.EmailAddress, c.config.Password, c.config.Server),
	)
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = c.send(mail, addr, nil)
	}
	return err
}
