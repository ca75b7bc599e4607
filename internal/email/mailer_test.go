package email

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/smtp"
	"strings"
	"testing"
	"time"
)

type sent struct {
	addr string
	auth smtp.Auth
	from string
	to   []string
	msg  []byte
}

func testMailer(out *sent) *Mailer {
	return &Mailer{
		Host:      "smtp.example.com",
		Username:  "booth",
		Password:  "secret",
		From:      "booth@example.com",
		EventName: "Gala",
		Now:       func() time.Time { return time.Date(2026, 6, 1, 20, 0, 0, 0, time.UTC) },
		Send: func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
			*out = sent{addr, a, from, to, msg}
			return nil
		},
	}
}

func TestSendPrint(t *testing.T) {
	var got sent
	m := testMailer(&got)
	attachment := bytes.Repeat([]byte{0x89, 'P', 'N', 'G'}, 50)

	if err := m.SendPrint(context.Background(), "Guest <guest@example.org>", "print_strip.png", attachment); err != nil {
		t.Fatalf("SendPrint() error = %v", err)
	}
	if got.addr != "smtp.example.com:587" {
		t.Errorf("addr = %q, want smtp.example.com:587", got.addr)
	}
	if got.auth == nil {
		t.Error("auth = nil, want PlainAuth")
	}
	if len(got.to) != 1 || got.to[0] != "guest@example.org" {
		t.Errorf("to = %v, want [guest@example.org]", got.to)
	}

	msg, err := mail.ReadMessage(bytes.NewReader(got.msg))
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	subject, _ := new(mime.WordDecoder).DecodeHeader(msg.Header.Get("Subject"))
	if subject != "Gala: your photobooth print" {
		t.Errorf("Subject = %q", subject)
	}
	_, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	if err != nil {
		t.Fatal(err)
	}

	mr := multipart.NewReader(msg.Body, params["boundary"])
	text, err := mr.NextPart()
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(text)
	if !strings.Contains(string(body), "at Gala") || !strings.Contains(string(body), "2026-06-01") {
		t.Errorf("body = %q", body)
	}

	file, err := mr.NextPart()
	if err != nil {
		t.Fatal(err)
	}
	if file.FileName() != "print_strip.png" {
		t.Errorf("attachment name = %q", file.FileName())
	}
	raw, _ := io.ReadAll(file)
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(string(raw), "\r\n", ""))
	if err != nil {
		t.Fatalf("decode attachment: %v", err)
	}
	if !bytes.Equal(decoded, attachment) {
		t.Error("attachment bytes differ")
	}
}

func TestSendPrint_Errors(t *testing.T) {
	var got sent
	ctx := context.Background()

	if err := (&Mailer{}).SendPrint(ctx, "a@b.c", "x.png", []byte{1}); !errors.Is(err, ErrDisabled) {
		t.Errorf("disabled: error = %v, want ErrDisabled", err)
	}

	m := testMailer(&got)
	if err := m.SendPrint(ctx, "not an address", "x.png", []byte{1}); err == nil {
		t.Error("bad recipient: error = nil")
	}
	if err := m.SendPrint(ctx, "a@b.c", "x.png", nil); err == nil {
		t.Error("empty attachment: error = nil")
	}

	m.Send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("421 busy") }
	if err := m.SendPrint(ctx, "a@b.c", "x.png", []byte{1}); err == nil || !strings.Contains(err.Error(), "421") {
		t.Errorf("send failure: error = %v", err)
	}
}

func TestSendPrint_NoAuthWithoutUsername(t *testing.T) {
	var got sent
	m := testMailer(&got)
	m.Username = ""
	m.Port = 25
	if err := m.SendPrint(context.Background(), "a@b.c", "x.png", []byte{1}); err != nil {
		t.Fatal(err)
	}
	if got.auth != nil || got.addr != "smtp.example.com:25" {
		t.Errorf("auth = %v addr = %q, want nil and port 25", got.auth, got.addr)
	}
}
