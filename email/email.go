package email

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/docker/go-units"
	"github.com/ptgott/mailprovider/address"
)

const (
	smtpScheme string = "smtp://"

	// defaultMaxAttachmentSize caps files attached from the command line.
	defaultMaxAttachmentSize int64 = 10 * units.MiB
)

var schemePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)

// UserConfig represents the "email" section of the config file. Not meant
// to be used for sending email before CheckAndSetDefaults.
type UserConfig struct {
	SMTPServerHost       string
	SMTPServerPort       int
	Username             string
	Password             string
	FromAddress          string
	FromName             string
	ToAddress            string // optional default recipient for the CLI
	ContentType          ContentType
	Charset              string
	Workers              int
	Timeout              time.Duration
	MaxAttachmentSize    int64
	SkipCertVerification bool
	ImplicitTLS          bool
	AllowInsecureAuth    bool
}

// UnmarshalYAML parses a user-provided YAML configuration, returning any
// parsing errors. Validation that doesn't depend on defaults happens here.
func (uc *UserConfig) UnmarshalYAML(unmarshal func(interface{}) error) error {
	v := make(map[string]string)
	err := unmarshal(&v)

	if err != nil {
		return fmt.Errorf("can't parse the email config: %v", err)
	}

	ra, ok := v["smtpServerAddress"]
	if !ok || ra == "" {
		return errors.New("the email config must include an SMTP server address")
	}

	// Don't require the user to include a scheme. If we can't find one,
	// use one for SMTP.
	if !schemePattern.MatchString(ra) {
		ra = smtpScheme + ra
	}

	u, err := url.Parse(ra)
	if err != nil {
		return fmt.Errorf("can't parse the SMTP server address: %v", err)
	}
	if u.Scheme != "smtp" && u.Scheme != "smtps" {
		return fmt.Errorf("the SMTP server address has unsupported scheme %q", u.Scheme)
	}
	if u.Port() == "" {
		return errors.New("the SMTP server address must include a port")
	}
	p, err := strconv.Atoi(u.Port())
	if err != nil {
		return fmt.Errorf("can't parse the SMTP server port: %v", err)
	}
	uc.SMTPServerHost = u.Hostname()
	uc.SMTPServerPort = p
	// Same default as NewSMTPTransport unless the scheme or implicitTLS
	// says otherwise.
	uc.ImplicitTLS = u.Scheme == "smtps" || p == smtpsPort

	// Relays either need both or neither.
	uc.Username = v["username"]
	uc.Password = v["password"]
	if (uc.Username == "") != (uc.Password == "") {
		return errors.New("must supply both a username and a password, or neither")
	}

	fa, ok := v["fromAddress"]
	if !ok {
		return errors.New("the email config must include a \"from\" address")
	}
	if !address.IsValid(fa) {
		return fmt.Errorf("%w: fromAddress %q", ErrInvalidAddress, fa)
	}
	uc.FromAddress = fa
	uc.FromName = v["fromName"]

	if ta, ok := v["toAddress"]; ok {
		if !address.IsValid(ta) {
			return fmt.Errorf("%w: toAddress %q", ErrInvalidAddress, ta)
		}
		uc.ToAddress = ta
	}

	if ct, ok := v["contentType"]; ok {
		c, err := ParseContentType(ct)
		if err != nil {
			return err
		}
		uc.ContentType = c
	}

	if cs, ok := v["charset"]; ok {
		if _, _, err := lookupCharset(cs); err != nil {
			return err
		}
		uc.Charset = cs
	}

	if w, ok := v["workers"]; ok {
		n, err := strconv.Atoi(w)
		if err != nil || n < 0 {
			return fmt.Errorf("workers must be a non-negative integer, got %q", w)
		}
		uc.Workers = n
	}

	if t, ok := v["timeout"]; ok {
		d, err := time.ParseDuration(t)
		if err != nil {
			return fmt.Errorf("can't parse the SMTP timeout as a duration: %v", err)
		}
		uc.Timeout = d
	}

	if s, ok := v["maxAttachmentSize"]; ok {
		n, err := units.RAMInBytes(s)
		if err != nil {
			return fmt.Errorf("can't parse the maximum attachment size: %v", err)
		}
		uc.MaxAttachmentSize = n
	}

	if s, ok := v["skipCertVerification"]; ok {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return fmt.Errorf("skipCertVerification must be true or false, got %q", s)
		}
		uc.SkipCertVerification = b
	}

	if s, ok := v["implicitTLS"]; ok {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return fmt.Errorf("implicitTLS must be true or false, got %q", s)
		}
		uc.ImplicitTLS = b
	}

	if s, ok := v["allowInsecureAuth"]; ok {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return fmt.Errorf("allowInsecureAuth must be true or false, got %q", s)
		}
		uc.AllowInsecureAuth = b
	}

	return nil
}

// CheckAndSetDefaults validates uc and either returns a copy of uc with
// default settings applied or returns an error due to an invalid
// configuration
func (uc *UserConfig) CheckAndSetDefaults() (UserConfig, error) {
	c := *uc

	if c.SMTPServerHost == "" || c.SMTPServerPort == 0 {
		return UserConfig{}, errors.New("must supply an SMTP server address")
	}
	if c.FromAddress == "" {
		return UserConfig{}, errors.New("must supply a \"from\" address")
	}
	if c.Charset == "" {
		c.Charset = DefaultCharset
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxAttachmentSize <= 0 {
		c.MaxAttachmentSize = defaultMaxAttachmentSize
	}

	return c, nil
}

// Transport returns an SMTPTransport for the configured relay.
func (uc UserConfig) Transport() *SMTPTransport {
	t := NewSMTPTransport(uc.SMTPServerHost, uc.SMTPServerPort, uc.Username, uc.Password)
	t.Timeout = uc.Timeout
	t.SkipCertVerification = uc.SkipCertVerification
	t.ImplicitTLS = uc.ImplicitTLS
	t.AllowInsecureAuth = uc.AllowInsecureAuth
	return t
}

// NewBuilder returns a Builder preloaded with uc's transport and sender
// settings. Callers add a pool, journal or logger as needed.
func (uc UserConfig) NewBuilder() *Builder {
	return NewBuilder().
		WithTransportClient(uc.Transport()).
		WithSenderAddress(uc.FromAddress).
		WithSenderName(uc.FromName).
		WithContentType(uc.ContentType).
		WithCharset(uc.Charset)
}
