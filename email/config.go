package email

import (
	"context"
	"fmt"

	"github.com/ptgott/mailprovider/address"
	"github.com/ptgott/mailprovider/workerpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Transport delivers a composed Message. Implementations own connection
// handling and any timeouts; a non-nil error means the message was not
// accepted.
type Transport interface {
	SendMessage(ctx context.Context, m *Message) error
}

// Pool runs tasks on goroutines it owns. Submit must not wait for task to
// finish.
type Pool interface {
	Submit(task func())
}

// Builder collects sender settings and produces a Config. Methods return
// the Builder for chaining. An invalid sender address is detected when it
// is set, and the first such error is returned by Build.
type Builder struct {
	transport   Transport
	from        string
	fromName    string
	contentType ContentType
	pool        Pool
	charset     string
	journal     Journal
	logger      *zerolog.Logger
	validator   address.Validator
	err         error
}

// NewBuilder returns a Builder for plain-text, synchronous sending.
func NewBuilder() *Builder {
	return &Builder{
		contentType: Plain,
		charset:     DefaultCharset,
		validator:   address.IsValid,
	}
}

// WithTransport sends through the SMTP relay at host:port, authenticating
// as user. The relay isn't contacted until a message is sent.
func (b *Builder) WithTransport(host string, port int, user, secret string) *Builder {
	b.transport = NewSMTPTransport(host, port, user, secret)
	return b
}

// WithTransportClient sends through t instead of an SMTP relay.
func (b *Builder) WithTransportClient(t Transport) *Builder {
	b.transport = t
	return b
}

// WithValidator replaces address.IsValid for the sender and every draft
// recipient. Call it before WithSenderAddress, since the sender is checked
// when it is set. A nil v is ignored.
func (b *Builder) WithValidator(v address.Validator) *Builder {
	if v != nil {
		b.validator = v
	}
	return b
}

// WithSenderAddress sets the From address. The address is validated here.
func (b *Builder) WithSenderAddress(addr string) *Builder {
	if !b.validator(addr) {
		b.setErr(fmt.Errorf("%w: sender %q", ErrInvalidAddress, addr))
		return b
	}
	b.from = addr
	return b
}

// WithSenderName sets the display name used when a draft has no issuer.
func (b *Builder) WithSenderName(name string) *Builder {
	b.fromName = name
	return b
}

// WithWorkerPool makes Send asynchronous. Passing nil, or a nil
// *workerpool.Pool, keeps Send synchronous. A nil pointer of any other type
// is treated as a pool.
func (b *Builder) WithWorkerPool(p Pool) *Builder {
	if wp, ok := p.(*workerpool.Pool); ok && wp == nil {
		p = nil
	}
	b.pool = p
	return b
}

// WithContentType chooses between Plain and HTML bodies.
func (b *Builder) WithContentType(ct ContentType) *Builder {
	b.contentType = ct
	return b
}

// WithCharset sets the default charset for drafts, e.g. "ISO-2022-JP".
func (b *Builder) WithCharset(name string) *Builder {
	b.charset = name
	return b
}

// WithJournal records the outcome of every dispatch in j.
func (b *Builder) WithJournal(j Journal) *Builder {
	b.journal = j
	return b
}

// WithLogger replaces the global logger for this Config.
func (b *Builder) WithLogger(l zerolog.Logger) *Builder {
	b.logger = &l
	return b
}

// Err returns the first error recorded while configuring b.
func (b *Builder) Err() error {
	return b.err
}

func (b *Builder) setErr(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Build validates the settings and returns an immutable Config. It does not
// contact the transport.
func (b *Builder) Build() (*Config, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.transport == nil {
		return nil, ErrNoTransport
	}
	if !b.contentType.valid() {
		return nil, fmt.Errorf("%w: %v", ErrUnknownContentType, b.contentType)
	}
	charset, _, err := lookupCharset(b.charset)
	if err != nil {
		return nil, err
	}

	var mode dispatchMode = synchronous{}
	if b.pool != nil {
		mode = asynchronous{pool: b.pool}
	}

	l := log.Logger
	if b.logger != nil {
		l = *b.logger
	}

	j := b.journal
	if j == nil {
		j = nopJournal{}
	}

	return &Config{
		transport:   b.transport,
		from:        b.from,
		fromName:    b.fromName,
		contentType: b.contentType,
		charset:     charset,
		mode:        mode,
		journal:     j,
		validator:   b.validator,
		logger:      l.With().Str("component", "email").Logger(),
	}, nil
}

// Config is the reusable sender configuration produced by Builder.Build.
// It is read-only and safe for concurrent use by many drafts.
type Config struct {
	transport   Transport
	from        string
	fromName    string
	contentType ContentType
	charset     string
	mode        dispatchMode
	journal     Journal
	validator   address.Validator
	logger      zerolog.Logger
}

// SenderAddress returns the configured From address, which may be empty.
func (c *Config) SenderAddress() string {
	return c.from
}

// ContentType returns the body packaging used by drafts.
func (c *Config) ContentType() ContentType {
	return c.contentType
}

// Charset returns the default charset for drafts.
func (c *Config) Charset() string {
	return c.charset
}

// Async reports whether Send hands messages to a worker pool.
func (c *Config) Async() bool {
	_, ok := c.mode.(asynchronous)
	return ok
}

// NewDraft starts a message from this Config's sender.
func (c *Config) NewDraft() *Draft {
	return &Draft{
		cfg:      c,
		from:     c.from,
		fromName: c.fromName,
		subject:  DefaultSubject,
		charset:  c.charset,
	}
}

// To starts a message addressed to addr.
func (c *Config) To(addr string) (*Draft, error) {
	return c.NewDraft().To(addr)
}
