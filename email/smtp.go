package email

import (
	"context"
	"crypto/tls"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// DefaultTimeout bounds a whole SMTP session when SMTPTransport.Timeout is
// zero.
const DefaultTimeout = 30 * time.Second

const smtpsPort = 465

// SMTPTransport delivers messages to an SMTP relay. Unless ImplicitTLS is
// set, it upgrades the connection with STARTTLS whenever the relay offers
// it. It authenticates with PLAIN when a Username is set, and only over TLS
// unless AllowInsecureAuth is set.
type SMTPTransport struct {
	Host     string
	Port     int
	Username string
	Password string
	// Timeout covers dialing through QUIT.
	Timeout time.Duration
	// SkipCertVerification accepts any certificate from the relay, e.g.
	// a self-signed one in a test environment.
	SkipCertVerification bool
	// LocalName is sent with EHLO. Defaults to "localhost".
	LocalName string
	// ImplicitTLS starts TLS before the greeting (SMTPS). Set by
	// NewSMTPTransport for port 465.
	ImplicitTLS bool
	// AllowInsecureAuth sends credentials even if the session isn't
	// encrypted.
	AllowInsecureAuth bool
}

// NewSMTPTransport returns an SMTPTransport for the relay at host:port.
func NewSMTPTransport(host string, port int, user, secret string) *SMTPTransport {
	return &SMTPTransport{
		Host:        host,
		Port:        port,
		Username:    user,
		Password:    secret,
		Timeout:     DefaultTimeout,
		ImplicitTLS: port == smtpsPort,
	}
}

// Address returns the host:port of the relay.
func (st *SMTPTransport) Address() string {
	return net.JoinHostPort(st.Host, strconv.Itoa(st.Port))
}

// SendMessage runs one SMTP session for m. A nil error means the relay
// accepted the message. Failures are returned as *TransportError.
func (st *SMTPTransport) SendMessage(ctx context.Context, m *Message) error {
	timeout := st.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := st.dial(ctx)
	if err != nil {
		return &TransportError{Op: "dial", Err: err}
	}
	if dl, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(dl); err != nil {
			conn.Close()
			return &TransportError{Op: "dial", Err: err}
		}
	}

	c, err := smtp.NewClient(conn, st.Host)
	if err != nil {
		conn.Close()
		return &TransportError{Op: "greeting", Err: err}
	}
	// Close after a successful Quit only reports that the connection is
	// already closed.
	defer c.Close()

	if err := c.Hello(st.localName()); err != nil {
		return &TransportError{Op: "ehlo", Err: err}
	}

	if !st.ImplicitTLS {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(st.tlsConfig()); err != nil {
				return &TransportError{Op: "starttls", Err: err}
			}
		}
	}

	if st.Username != "" {
		if _, ok := c.TLSConnectionState(); !ok && !st.AllowInsecureAuth {
			return &TransportError{Op: "auth", Err: ErrInsecureAuth}
		}
		if err := c.Auth(sasl.NewPlainClient("", st.Username, st.Password)); err != nil {
			return &TransportError{Op: "auth", Err: err}
		}
	}

	if err := c.Mail(m.FromAddress, nil); err != nil {
		return &TransportError{Op: "mail", Err: err}
	}
	if err := c.Rcpt(m.To); err != nil {
		return &TransportError{Op: "rcpt", Err: err}
	}

	w, err := c.Data()
	if err != nil {
		return &TransportError{Op: "data", Err: err}
	}
	if _, err := m.WriteTo(w); err != nil {
		w.Close()
		return &TransportError{Op: "data", Err: err}
	}
	if err := w.Close(); err != nil {
		return &TransportError{Op: "data", Err: err}
	}

	if err := c.Quit(); err != nil {
		return &TransportError{Op: "quit", Err: err}
	}
	return nil
}

func (st *SMTPTransport) dial(ctx context.Context) (net.Conn, error) {
	if st.ImplicitTLS {
		d := tls.Dialer{Config: st.tlsConfig()}
		return d.DialContext(ctx, "tcp", st.Address())
	}
	var d net.Dialer
	return d.DialContext(ctx, "tcp", st.Address())
}

func (st *SMTPTransport) localName() string {
	if st.LocalName == "" {
		return "localhost"
	}
	return st.LocalName
}

func (st *SMTPTransport) tlsConfig() *tls.Config {
	return &tls.Config{
		ServerName:         st.Host,
		InsecureSkipVerify: st.SkipCertVerification,
	}
}
