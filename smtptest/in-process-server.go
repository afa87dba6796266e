package smtptest

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/docker/go-units"
	"github.com/emersion/go-smtp"
)

// messageData includes the envelope, body and created timestamp for an
// email message, allowing us to inspect messages before/after a timestamp
// for correctness.
type messageData struct {
	created time.Time
	from    string
	to      []string
	body    string
}

// Envelope is the SMTP envelope of a received message.
type Envelope struct {
	From string
	To   []string
}

// Backend implements smtp.Backend. It's a thin authentication wrapper
// for an InMemoryEmailStore.
type Backend struct {
	*InMemoryEmailStore
}

// Login implements smtp.Backend. Any username/password is fine, since we
// don't want to couple this with specific test configurations.
func (be *Backend) Login(_ *smtp.ConnectionState, username string, password string) (smtp.Session, error) {
	if username != "" && password != "" {
		return &session{store: be.InMemoryEmailStore}, nil
	}
	return nil, errors.New("no username or password provided")
}

// AnonymousLogin implements smtp.Backend. Not supported since we want to
// enforce AUTH.
func (be *Backend) AnonymousLogin(_ *smtp.ConnectionState) (smtp.Session, error) {
	return nil, smtp.ErrAuthUnsupported
}

// session implements smtp.Session for a single connection.
type session struct {
	store *InMemoryEmailStore
	from  string
	to    []string
}

// Reset implements smtp.Session.
func (s *session) Reset() {
	s.from = ""
	s.to = nil
}

// Logout implements smtp.Session. No-op here.
func (s *session) Logout() error { return nil }

// Mail implements smtp.Session.
func (s *session) Mail(from string, _ smtp.MailOptions) error {
	s.from = from
	return nil
}

// Rcpt implements smtp.Session. Recipients registered with
// RejectRecipient get a permanent failure.
func (s *session) Rcpt(to string) error {
	if s.store.rejects(to) {
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 1, 1},
			Message:      fmt.Sprintf("no such user: %v", to),
		}
	}
	s.to = append(s.to, to)
	return nil
}

// Data implements smtp.Session. Stores the email data in memory for
// retrieval at the end of the test.
func (s *session) Data(r io.Reader) error {
	// doubtful we'll get an email this big, but we need a limit
	var maxEmailSize int64 = 100 * units.MiB
	buf, err := io.ReadAll(io.LimitReader(r, maxEmailSize))
	if err != nil {
		return err
	}

	str := &strings.Builder{}
	if _, err := str.Write(buf); err != nil {
		return err
	}
	s.store.saveEmail(s.from, s.to, str.String())
	return nil
}

// InMemoryEmailStore retains email bodies in memory for comparison against
// a test's expected output. Designed to be goroutine safe since we don't
// know how many goroutines will be hitting the server at once.
type InMemoryEmailStore struct {
	mu       *sync.Mutex
	messages []messageData
	rejected map[string]struct{}
}

// RejectRecipient makes the server refuse RCPT TO for addr.
func (es *InMemoryEmailStore) RejectRecipient(addr string) {
	es.mu.Lock()
	defer es.mu.Unlock()
	es.rejected[strings.ToLower(addr)] = struct{}{}
}

func (es *InMemoryEmailStore) rejects(addr string) bool {
	es.mu.Lock()
	defer es.mu.Unlock()
	_, ok := es.rejected[strings.ToLower(addr)]
	return ok
}

// InProcessServer is an SMTP server that runs in the same process as the
// test suite, letting us inspect sent emails. You must initialize this
// via NewInProcessServer
type InProcessServer struct {
	*smtp.Server
	*InMemoryEmailStore
	listener net.Listener
}

// NewInProcessServer creates an InProcessServer listening on a random
// local port, including configuring its SMTP server to store incoming
// messages in memory. Must provide the paths to the key and cert used for
// TLS. The cert must be a root cert. Clients upgrade with STARTTLS.
func NewInProcessServer(keypath string, certpath string) *InProcessServer {
	srv, is := newSMTPServer()
	srv.TLSConfig = loadTLSConfig(keypath, certpath)
	return listen(srv, is, false)
}

// NewInProcessTLSServer is like NewInProcessServer, but the connection is
// TLS from the first byte, as with SMTPS on port 465.
func NewInProcessTLSServer(keypath string, certpath string) *InProcessServer {
	srv, is := newSMTPServer()
	srv.TLSConfig = loadTLSConfig(keypath, certpath)
	return listen(srv, is, true)
}

// NewInProcessPlainServer creates an InProcessServer without any TLS. It
// doesn't offer STARTTLS but still accepts AUTH, so tests can check how
// clients behave on a cleartext session.
func NewInProcessPlainServer() *InProcessServer {
	srv, is := newSMTPServer()
	srv.AllowInsecureAuth = true
	return listen(srv, is, false)
}

func newSMTPServer() (*smtp.Server, *InMemoryEmailStore) {
	is := &InMemoryEmailStore{
		mu:       &sync.Mutex{},
		messages: []messageData{},
		rejected: map[string]struct{}{},
	}

	srv := smtp.NewServer(&Backend{
		is,
	})

	srv.Domain = "localhost"
	srv.AllowInsecureAuth = false // need AUTH here
	srv.AuthDisabled = false      // need AUTH here
	// Strict enforces <address> syntax in MAIL and RCPT commands.
	srv.Strict = true
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second

	return srv, is
}

func loadTLSConfig(keypath string, certpath string) *tls.Config {
	cert, err := tls.LoadX509KeyPair(certpath, keypath)

	// No way to carry on without a cert, so we panic. We're in a test
	// suite, so this should be fine.
	if err != nil {
		panic(err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
	}
}

func listen(srv *smtp.Server, is *InMemoryEmailStore, implicitTLS bool) *InProcessServer {
	// Listening here rather than in Start means Address is usable before
	// the server goroutine is scheduled.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		panic(err)
	}
	srv.Addr = l.Addr().String()

	if implicitTLS {
		l = tls.NewListener(l, srv.TLSConfig)
	}

	return &InProcessServer{
		Server:             srv,
		InMemoryEmailStore: is,
		listener:           l,
	}
}

// saveEmail stores the message in memory along with a timestamp created
// just prior to saving
func (es *InMemoryEmailStore) saveEmail(from string, to []string, bod string) {
	es.mu.Lock()
	defer es.mu.Unlock()

	es.messages = append(es.messages, messageData{
		created: time.Now(),
		from:    from,
		to:      append([]string(nil), to...),
		body:    bod,
	})
}

// Start starts the test server. Blocking.
func (is *InProcessServer) Start() error {
	// The listener is already wrapped in TLS for implicit TLS servers
	return is.Server.Serve(is.listener)
}

// Close shuts down the test server daemon. You must initialize a new
// InProcessServer instead of restarting this one.
func (is *InProcessServer) Close() {
	is.Server.Close()
}

// RetrieveEmails returns a slice of all message bodies (as strings)
// sent after epoch nanoseconds t
// Satisfies smtptest.Server but isn't expected to return an error.
func (es *InMemoryEmailStore) RetrieveEmails(t int64) ([]string, error) {
	es.mu.Lock()
	defer es.mu.Unlock()

	r := make([]string, 0, len(es.messages))
	for _, m := range es.messages {
		if m.created.UnixNano() >= t {
			r = append(r, m.body)
		}
	}
	return r, nil
}

// Envelopes returns the envelopes of all received messages in arrival
// order.
func (es *InMemoryEmailStore) Envelopes() []Envelope {
	es.mu.Lock()
	defer es.mu.Unlock()

	r := make([]Envelope, 0, len(es.messages))
	for _, m := range es.messages {
		r = append(r, Envelope{From: m.from, To: m.to})
	}
	return r
}

// Address returns the host:port of the test SMTP server.
func (is *InProcessServer) Address() string {
	return is.listener.Addr().String()
}
