// Package email delivers prints to guests over SMTP.
package email

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/moonback/photoboot/internal/assets"
)

// ErrDisabled is returned when SMTP is not configured.
var ErrDisabled = errors.New("email disabled")

// MaxAttachmentBytes bounds the print attached to one message.
const MaxAttachmentBytes = 20 << 20

// SendFunc has the signature of smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer sends one print per message. A Mailer with no Host is disabled.
type Mailer struct {
	Host      string
	Port      int
	Username  string
	Password  string
	From      string
	EventName string

	// Send defaults to smtp.SendMail.
	Send SendFunc
	// Now defaults to time.Now.
	Now func() time.Time
}

// Enabled reports whether a server and sender are configured.
func (m *Mailer) Enabled() bool {
	return m != nil && m.Host != "" && m.From != ""
}

// SendPrint mails the attachment to a single recipient.
func (m *Mailer) SendPrint(ctx context.Context, to, filename string, attachment []byte) error {
	if !m.Enabled() {
		return ErrDisabled
	}
	rcpt, err := mail.ParseAddress(to)
	if err != nil {
		return fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	if len(attachment) == 0 {
		return errors.New("empty attachment")
	}
	if len(attachment) > MaxAttachmentBytes {
		return fmt.Errorf("attachment too large: %d bytes", len(attachment))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := m.Build(rcpt.Address, filename, attachment)
	if err != nil {
		return err
	}

	send := m.Send
	if send == nil {
		send = smtp.SendMail
	}
	var auth smtp.Auth
	if m.Username != "" {
		auth = smtp.PlainAuth("", m.Username, m.Password, m.Host)
	}
	addr := net.JoinHostPort(m.Host, strconv.Itoa(m.port()))

	start := time.Now()
	if err := send(addr, auth, m.From, []string{rcpt.Address}, msg); err != nil {
		return fmt.Errorf("send mail via %s: %w", addr, err)
	}
	log.Info().
		Str("to", rcpt.Address).
		Str("filename", filename).
		Int("bytes", len(attachment)).
		Dur("duration", time.Since(start)).
		Msg("Print emailed")
	return nil
}

func (m *Mailer) port() int {
	if m.Port == 0 {
		return 587
	}
	return m.Port
}

// Build renders the MIME message: a plain-text part and the attachment.
func (m *Mailer) Build(to, filename string, attachment []byte) ([]byte, error) {
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	ts := now()
	data := assets.EmailData{
		EventName: m.EventName,
		Filename:  filename,
		Date:      ts.Format("2006-01-02"),
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", m.From)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", strings.TrimSpace(assets.RenderEmailSubject(data))))
	fmt.Fprintf(&buf, "Date: %s\r\n", ts.Format(time.RFC1123Z))
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", mw.Boundary())

	text, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/plain; charset=utf-8"},
		"Content-Transfer-Encoding": {"8bit"},
	})
	if err != nil {
		return nil, fmt.Errorf("create text part: %w", err)
	}
	if _, err := text.Write([]byte(assets.RenderEmailBody(data))); err != nil {
		return nil, fmt.Errorf("write text part: %w", err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {contentType},
		"Content-Transfer-Encoding": {"base64"},
		"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": filename})},
	})
	if err != nil {
		return nil, fmt.Errorf("create attachment part: %w", err)
	}
	if err := writeBase64Lines(part, attachment); err != nil {
		return nil, fmt.Errorf("write attachment: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}
	return buf.Bytes(), nil
}

// writeBase64Lines wraps encoded output at 76 characters (RFC 2045).
func writeBase64Lines(w interface{ Write([]byte) (int, error) }, data []byte) error {
	enc := base64.StdEncoding.EncodeToString(data)
	for len(enc) > 0 {
		n := min(76, len(enc))
		if _, err := w.Write([]byte(enc[:n] + "\r\n")); err != nil {
			return err
		}
		enc = enc[n:]
	}
	return nil
}
