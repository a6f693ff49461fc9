package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// Message is one outbound email with both HTML and plain text bodies.
type Message struct {
	To      string
	ToName  string
	Subject string
	HTML    string
	Text    string
}

// Transport delivers composed messages.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPTransport sends mail through an SMTP relay, upgrading with STARTTLS when offered.
type SMTPTransport struct {
	addr     string
	from     *mail.Address
	username string
	password string
}

func NewSMTPTransport(host string, port int, username, password, from string) *SMTPTransport {
	return &SMTPTransport{
		addr:     net.JoinHostPort(host, strconv.Itoa(port)),
		from:     &mail.Address{Name: "PartnerHub", Address: from},
		username: username,
		password: password,
	}
}

func (t *SMTPTransport) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := compose(t.from, msg, time.Now())
	if err != nil {
		return err
	}

	var auth sasl.Client
	if t.username != "" {
		auth = sasl.NewPlainClient("", t.username, t.password)
	}
	if err := smtp.SendMail(t.addr, auth, t.from.Address, []string{msg.To}, bytes.NewReader(body)); err != nil {
		return fmt.Errorf("sending mail to %s via %s: %w", msg.To, t.addr, err)
	}
	return nil
}

// compose renders msg as a multipart/alternative MIME message.
func compose(from *mail.Address, msg Message, date time.Time) ([]byte, error) {
	var h mail.Header
	h.SetDate(date)
	h.SetAddressList("From", []*mail.Address{from})
	h.SetAddressList("To", []*mail.Address{{Name: msg.ToName, Address: msg.To}})
	h.SetSubject(msg.Subject)

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("creating mail writer: %w", err)
	}

	tw, err := mw.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("creating inline part: %w", err)
	}
	if err := writePart(tw, "text/plain", msg.Text); err != nil {
		return nil, err
	}
	if err := writePart(tw, "text/html", msg.HTML); err != nil {
		return nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writePart(tw *mail.InlineWriter, contentType, body string) error {
	var ph mail.InlineHeader
	ph.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	w, err := tw.CreatePart(ph)
	if err != nil {
		return fmt.Errorf("creating %s part: %w", contentType, err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		w.Close()
		return fmt.Errorf("writing %s part: %w", contentType, err)
	}
	return w.Close()
}
