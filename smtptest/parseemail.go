package smtptest

import (
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"
)

// Part is one decoded MIME part of a received message.
type Part struct {
	ContentType string // media type without parameters
	Params      map[string]string
	FileName    string
	Body        []byte
}

// ParsedMessage is a received message split into headers and parts.
type ParsedMessage struct {
	Header    mail.Header
	Multipart bool
	Parts     []Part
}

// ParseEmail decodes a raw message body as stored by the in-process
// server. Transfer encodings are undone so Part.Body holds the original
// bytes.
func ParseEmail(raw string) (*ParsedMessage, error) {
	msg, err := mail.ReadMessage(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("can't read the message: %v", err)
	}

	pm := &ParsedMessage{Header: msg.Header}
	mt, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("can't parse the message content type: %v", err)
	}

	if !strings.HasPrefix(mt, "multipart/") {
		b, err := decode(msg.Body, msg.Header.Get("Content-Transfer-Encoding"))
		if err != nil {
			return nil, err
		}
		pm.Parts = []Part{{ContentType: mt, Params: params, Body: b}}
		return pm, nil
	}

	pm.Multipart = true
	rdr := multipart.NewReader(msg.Body, params["boundary"])
	for {
		p, err := rdr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("can't read a MIME part: %v", err)
		}
		pmt, pparams, err := mime.ParseMediaType(p.Header.Get("Content-Type"))
		if err != nil {
			return nil, fmt.Errorf("can't parse a part content type: %v", err)
		}
		// multipart.Reader already undoes quoted-printable and drops the
		// header when it does.
		b, err := decode(p, p.Header.Get("Content-Transfer-Encoding"))
		if err != nil {
			return nil, err
		}
		pm.Parts = append(pm.Parts, Part{
			ContentType: pmt,
			Params:      pparams,
			FileName:    p.FileName(),
			Body:        b,
		})
	}
	return pm, nil
}

func decode(r io.Reader, cte string) ([]byte, error) {
	switch strings.ToLower(cte) {
	case "base64":
		r = base64.NewDecoder(base64.StdEncoding, r)
	case "quoted-printable":
		r = quotedprintable.NewReader(r)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("can't decode a %q body: %v", cte, err)
	}
	return b, nil
}
