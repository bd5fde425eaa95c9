package mail

import (
	"context"
	"errors"
	"fmt"

	gomail "gopkg.in/gomail.v2"
)

// ErrDispatch indicates the mail transport failed. Callers treat it as
// non-fatal: state committed before the dispatch attempt stands.
var ErrDispatch = errors.New("mail: dispatch failed")

// Dispatcher delivers transactional mail to an address out-of-band.
type Dispatcher interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// SMTPDispatcher sends mail over an authenticated SMTP connection.
type SMTPDispatcher struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTP builds a dispatcher for the given SMTP endpoint. The from address
// doubles as the authentication username.
func NewSMTP(host string, port int, from, password string) *SMTPDispatcher {
	return &SMTPDispatcher{
		dialer: gomail.NewDialer(host, port, from, password),
		from:   from,
	}
}

// Send dials the SMTP server and delivers one message. The underlying
// transport does not support cancellation, so ctx only gates the attempt.
func (d *SMTPDispatcher) Send(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", d.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	if err := d.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("%w: %v", ErrDispatch, err)
	}
	return nil
}
