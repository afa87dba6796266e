package email

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// DefaultCharset is used when neither the Config nor the Draft names one.
const DefaultCharset = "UTF-8"

// transcoder converts UTF-8 text into a target charset.
type transcoder func(s string) string

// lookupCharset resolves name to its canonical label and a transcoder. UTF-8
// returns the identity transcoder. Characters the target can't represent
// are replaced rather than failing the whole message.
func lookupCharset(name string) (string, transcoder, error) {
	if strings.TrimSpace(name) == "" {
		name = DefaultCharset
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %q", ErrUnknownCharset, name)
	}
	canonical, err := htmlindex.Name(enc)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %q", ErrUnknownCharset, name)
	}
	canonical = strings.ToUpper(canonical)
	if canonical == DefaultCharset {
		return canonical, func(s string) string { return s }, nil
	}

	return canonical, func(s string) string {
		// A new encoder per call since encoders carry state.
		out, err := encoding.ReplaceUnsupported(enc.NewEncoder()).String(s)
		if err != nil {
			return s
		}
		return out
	}, nil
}
