package email

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	gomail "gopkg.in/gomail.v2"
)

// Part is one body part of a Message. Attachments carry a FileName; the
// content body does not.
type Part struct {
	ContentType string
	FileName    string
	Data        []byte
}

// IsAttachment reports whether p is an attachment rather than the body.
func (p Part) IsAttachment() bool {
	return p.FileName != ""
}

// Message is a transport-ready email. It owns copies of everything it
// carries, so it can cross goroutines after the Draft that built it is
// discarded.
type Message struct {
	ID          string // Message-ID without angle brackets
	FromName    string
	FromAddress string
	To          string
	Subject     string
	Date        time.Time
	Charset     string
	// Multipart is set for HTML messages. Parts[0] is always the body.
	Multipart bool
	Parts     []Part
}

// Sender returns the From value in "<name> <address>" form. The name is
// empty when neither the draft nor the config supplied one.
func (m *Message) Sender() string {
	return fmt.Sprintf("%v <%v>", m.FromName, m.FromAddress)
}

// Attachments returns the parts that carry a file name.
func (m *Message) Attachments() []Part {
	var a []Part
	for _, p := range m.Parts {
		if p.IsAttachment() {
			a = append(a, p)
		}
	}
	return a
}

// WriteTo renders m as a MIME message, implementing io.WriterTo. Text parts
// are quoted-printable and attachments base64. A multipart/mixed envelope
// is only written when the message has attachments.
func (m *Message) WriteTo(w io.Writer) (int64, error) {
	gm, err := m.compose()
	if err != nil {
		return 0, err
	}
	return gm.WriteTo(w)
}

func (m *Message) compose() (*gomail.Message, error) {
	charset, tr, err := lookupCharset(m.Charset)
	if err != nil {
		return nil, err
	}
	if len(m.Parts) == 0 {
		return nil, ErrEmptyContent
	}

	gm := gomail.NewMessage(
		gomail.SetCharset(charset),
		gomail.SetEncoding(gomail.QuotedPrintable),
	)
	if m.ID != "" {
		gm.SetHeader("Message-ID", "<"+m.ID+">")
	}
	gm.SetAddressHeader("From", m.FromAddress, tr(m.FromName))
	gm.SetHeader("To", m.To)
	gm.SetHeader("Subject", tr(m.Subject))
	gm.SetDateHeader("Date", m.Date)

	body := m.Parts[0]
	gm.SetBody(body.ContentType, tr(string(body.Data)))

	for _, p := range m.Attachments() {
		data := p.Data
		gm.Attach(
			p.FileName,
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(data)
				return err
			}),
			gomail.SetHeader(map[string][]string{
				"Content-Type": {p.ContentType},
			}),
		)
	}

	return gm, nil
}

// newMessageID returns a unique id scoped to the sender's domain.
func newMessageID(from string) string {
	domain := "localhost"
	if i := strings.LastIndex(from, "@"); i >= 0 && i < len(from)-1 {
		domain = from[i+1:]
	}
	return uuid.NewString() + "@" + domain
}
