package smtp

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/guardian-api/internal/config"
	"github.com/guardian-api/internal/domain"
)

// Mailer delivers recovery codes by email.
type Mailer interface {
	SendRecoveryCode(ctx context.Context, to, codeType, code string) error
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type mailer struct {
	host     string
	port     string
	from     string
	username string
	password string
	send     sendFunc
}

func NewMailer(cfg *config.Config) Mailer {
	return &mailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		from:     cfg.SMTPFrom,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		send:     smtp.SendMail,
	}
}

var subjects = map[string]string{
	domain.RecoveryVerifyEmailAddress: "Verify your email address",
	domain.RecoveryChangeEmailAddress: "Confirm your email address change",
	domain.RecoveryResetPassword:      "Reset your password",
	domain.RecoveryDeleteAccount:      "Confirm account deletion",
}

func (m *mailer) SendRecoveryCode(ctx context.Context, to, codeType, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	subject, ok := subjects[codeType]
	if !ok {
		subject = "Your recovery code"
	}
	body := fmt.Sprintf("Your %s code is:\r\n\r\n%s\r\n\r\nIt expires in one hour.", codeType, code)
	return m.sendEmail(to, subject, body)
}

func (m *mailer) sendEmail(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", m.from, to, subject, body)
	addr := fmt.Sprintf("%s:%s", m.host, m.port)

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}
	if err := m.send(addr, auth, m.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}
