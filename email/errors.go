package email

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAddress is returned as soon as a sender or recipient
	// address fails validation.
	ErrInvalidAddress = errors.New("invalid email address")
	// ErrEmptyContent is returned by Send when the draft has no body.
	ErrEmptyContent = errors.New("mail content is empty")
	// ErrNoRecipient is returned by Send when no recipient was set.
	ErrNoRecipient = errors.New("mail has no recipient")
	// ErrDraftSpent is returned by Send when the draft was already
	// dispatched.
	ErrDraftSpent = errors.New("draft has already been sent")
	// ErrDispatch wraps transport failures in synchronous mode.
	ErrDispatch = errors.New("could not dispatch the message")
	// ErrNoTransport is returned by Build when no transport was given.
	ErrNoTransport = errors.New("no transport configured")
	// ErrUnknownContentType is returned for anything but plain or HTML.
	ErrUnknownContentType = errors.New("unknown content type")
	// ErrUnknownCharset is returned when a charset name can't be resolved.
	ErrUnknownCharset = errors.New("unknown charset")
	// ErrInsecureAuth is returned by SMTPTransport instead of sending
	// credentials over a session without TLS.
	ErrInsecureAuth = errors.New("refusing to authenticate without TLS")
)

// TransportError describes a failed step of delivering a message to the
// relay.
type TransportError struct {
	// Op is the step that failed, e.g. "dial", "auth" or "rcpt".
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("smtp %v: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
