package email

import (
	"bytes"
	"context"
	"fmt"
	"time"
)

// DefaultSubject is used when a draft's subject is never set.
const DefaultSubject = "Notitle"

type attachment struct {
	name      string
	data      []byte
	mediaType string
}

// Draft accumulates one outgoing message. A Draft belongs to the goroutine
// that created it and can be sent once.
type Draft struct {
	cfg        *Config
	from       string
	fromName   string
	to         string
	subject    string
	content    string
	charset    string
	issuer     string
	attachment *attachment
	spent      bool
}

// To sets the recipient. An invalid address is rejected right away and the
// previous recipient, if any, is kept.
func (d *Draft) To(addr string) (*Draft, error) {
	if !d.cfg.validator(addr) {
		return d, fmt.Errorf("%w: recipient %q", ErrInvalidAddress, addr)
	}
	d.to = addr
	return d, nil
}

// Subject sets the subject line.
func (d *Draft) Subject(s string) *Draft {
	d.subject = s
	return d
}

// Content sets the message body.
func (d *Draft) Content(s string) *Draft {
	d.content = s
	return d
}

// Issuer sets the display name shown next to the sender address.
func (d *Draft) Issuer(s string) *Draft {
	d.issuer = s
	return d
}

// Charset overrides the Config's charset for this message.
func (d *Draft) Charset(s string) *Draft {
	d.charset = s
	return d
}

// Attachment attaches data under name with the given media type. It
// replaces any earlier attachment. Attachments are only sent for HTML
// content.
func (d *Draft) Attachment(name string, data []byte, mediaType string) *Draft {
	d.attachment = &attachment{
		name:      name,
		data:      data,
		mediaType: mediaType,
	}
	return d
}

// Send validates the draft and dispatches it. In synchronous mode a
// transport failure is returned wrapped in ErrDispatch. In asynchronous
// mode Send returns once the message is handed to the pool, and delivery
// failures are only logged.
//
// Once dispatch starts the draft is spent and further calls return
// ErrDraftSpent. Validation failures leave the draft usable.
func (d *Draft) Send(ctx context.Context) error {
	if d.spent {
		return ErrDraftSpent
	}
	if d.content == "" {
		return ErrEmptyContent
	}
	if d.to == "" {
		return ErrNoRecipient
	}

	m, err := d.message(time.Now())
	if err != nil {
		return err
	}

	d.spent = true
	return d.cfg.mode.dispatch(ctx, d.cfg, m)
}

// message copies the draft into a Message.
func (d *Draft) message(now time.Time) (*Message, error) {
	charset, _, err := lookupCharset(d.charset)
	if err != nil {
		return nil, err
	}

	name := d.issuer
	if name == "" {
		name = d.fromName
	}

	m := &Message{
		ID:          newMessageID(d.from),
		FromName:    name,
		FromAddress: d.from,
		To:          d.to,
		Subject:     d.subject,
		Date:        now,
		Charset:     charset,
	}

	body := Part{
		ContentType: d.cfg.contentType.MIMEType(),
		Data:        []byte(d.content),
	}

	if d.cfg.contentType == Plain {
		m.Parts = []Part{body}
		return m, nil
	}

	m.Multipart = true
	m.Parts = []Part{body}
	if d.attachment != nil {
		m.Parts = append(m.Parts, Part{
			ContentType: d.attachment.mediaType,
			FileName:    d.attachment.name,
			Data:        bytes.Clone(d.attachment.data),
		})
	}
	return m, nil
}
