package address

import (
	"regexp"
	"strings"
)

// The local part allows letters, digits and ._%+- and the domain must end in
// a 2-6 letter label. Only ASCII letters match, in either case. (?i) would
// fold in characters such as U+017F and U+212A.
var addressPattern = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,6}$`)

// Validator reports whether s is an acceptable email address. The email
// Builder accepts one so callers can swap in a stricter policy; IsValid is
// used otherwise.
type Validator func(s string) bool

// IsValid returns false for empty or blank input and otherwise reports
// whether s matches the address pattern in full.
func IsValid(s string) bool {
	if strings.TrimSpace(s) == "" {
		return false
	}
	return addressPattern.MatchString(s)
}

// IsValidPtr is IsValid for optional values. A nil pointer is never valid.
func IsValidPtr(s *string) bool {
	if s == nil {
		return false
	}
	return IsValid(*s)
}
