package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/netip"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"git.unix.lgbt/diamondburned/ipmon/ipmon"
	"git.unix.lgbt/diamondburned/ipmon/ipmon/config"
	"github.com/pkg/errors"
)

// DefaultTimeout bounds a notifier whose configuration gives no timeout.
var DefaultTimeout = 30 * time.Second

// SendMailFunc sends a mail. It must give up once ctx is done.
type SendMailFunc func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mail sends a mail for every change.
type Mail struct {
	Addr    string
	Auth    smtp.Auth
	From    string
	To      []string
	Subject string
	// Timeout bounds the whole send. Zero means DefaultTimeout.
	Timeout time.Duration

	// SendMail defaults to SendMail.
	SendMail SendMailFunc
}

var _ ipmon.Notifier = (*Mail)(nil)

// NewMail creates a mail notifier from its configuration. PLAIN
// authentication is used if a username is given.
func NewMail(cfg config.Mail) *Mail {
	m := &Mail{
		Addr:    net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		From:    cfg.From,
		To:      cfg.To,
		Subject: cfg.Subject,
		Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
	}

	if cfg.Username != "" {
		m.Auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	return m
}

// Notify sends the mail, giving up once the timeout passes or ctx is done.
func (m *Mail) Notify(ctx context.Context, old, new netip.Addr) error {
	timeout := m.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	send := m.SendMail
	if send == nil {
		send = SendMail
	}

	if err := send(ctx, m.Addr, m.Auth, m.From, m.To, m.message(old, new)); err != nil {
		return &PerformerError{MailName, errors.Wrap(err, "failed to send mail")}
	}

	return nil
}

func (m *Mail) message(old, new netip.Addr) []byte {
	var b bytes.Buffer

	fmt.Fprintf(&b, "From: %s\r\n", m.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(m.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", m.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "The public IP address has changed.\r\n\r\n")
	fmt.Fprintf(&b, "Old address: %s\r\n", addrString(old))
	fmt.Fprintf(&b, "New address: %s\r\n", addrString(new))

	return b.Bytes()
}

// SendMail works like smtp.SendMail, except that the connection is bound to
// ctx: once ctx is done, whatever exchange is in progress is aborted and the
// returned error wraps ctx.Err().
func SendMail(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) (err error) {
	defer func() {
		if err != nil && ctx.Err() != nil {
			err = errors.Wrap(ctx.Err(), err.Error())
		}
	}()

	var dialer net.Dialer

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return errors.Wrap(err, "failed to dial")
	}

	// Unblock any pending read or write once ctx is done, which includes its
	// deadline passing.
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	host, _, _ := net.SplitHostPort(addr)

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return errors.Wrap(err, "failed to greet server")
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return errors.Wrap(err, "failed to start TLS")
		}
	}

	if a != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(a); err != nil {
				return errors.Wrap(err, "failed to authenticate")
			}
		}
	}

	if err := c.Mail(from); err != nil {
		return errors.Wrap(err, "sender rejected")
	}

	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return errors.Wrapf(err, "recipient %s rejected", rcpt)
		}
	}

	w, err := c.Data()
	if err != nil {
		return errors.Wrap(err, "failed to start data")
	}

	if _, err := w.Write(msg); err != nil {
		return errors.Wrap(err, "failed to write message")
	}

	if err := w.Close(); err != nil {
		return errors.Wrap(err, "failed to finish message")
	}

	return c.Quit()
}
