package email

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/ptgott/mailprovider/smtptest"
	"github.com/ptgott/mailprovider/workerpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gopkg.in/yaml.v2"
)

func TestUnmarshalYAML(t *testing.T) {
	testCases := []struct {
		description   string
		input         string
		shouldBeError bool
	}{
		{
			description: "valid case",
			input: `smtpServerAddress: smtp://0.0.0.0:123
fromAddress: mynewsletter@example.com
toAddress: recipient@example.com
username: MyUser123
password: 123456-A_BCDE
contentType: html
charset: iso-2022-jp
workers: 4
timeout: 10s
maxAttachmentSize: 5MB
skipCertVerification: true
`,
			shouldBeError: false,
		},
		{
			description: "wrong scheme",
			input: `smtpServerAddress: https://0.0.0.0:123
fromAddress: mynewsletter@example.com
`,
			shouldBeError: true,
		},
		// We should allow this because smtp:// is self evident
		{
			description: "no scheme",
			input: `smtpServerAddress: 0.0.0.0:123
fromAddress: mynewsletter@example.com
`,
			shouldBeError: false,
		},
		{
			description: "no port",
			input: `smtpServerAddress: smtp://0.0.0.0
fromAddress: mynewsletter@example.com
`,
			shouldBeError: true,
		},
		{
			description: "username without password",
			input: `smtpServerAddress: smtp://0.0.0.0:123
fromAddress: mynewsletter@example.com
username: MyUser123
`,
			shouldBeError: true,
		},
		{
			description: "password without username",
			input: `smtpServerAddress: smtp://0.0.0.0:123
fromAddress: mynewsletter@example.com
password: 123456-A_BCDE
`,
			shouldBeError: true,
		},
		{
			description: "no from address",
			input: `smtpServerAddress: smtp://0.0.0.0:123
toAddress: recipient@example.com`,
			shouldBeError: true,
		},
		{
			description: "invalid from address",
			input: `smtpServerAddress: smtp://0.0.0.0:123
fromAddress: newsletter#example.com`,
			shouldBeError: true,
		},
		{
			description: "invalid to address",
			input: `smtpServerAddress: smtp://0.0.0.0:123
fromAddress: mynewsletter@example.com
toAddress: recipient@`,
			shouldBeError: true,
		},
		{
			description: "no server address",
			input: `fromAddress: mynewsletter@example.com
toAddress: recipient@example.com`,
			shouldBeError: true,
		},
		{
			description: "unknown content type",
			input: `smtpServerAddress: 0.0.0.0:123
fromAddress: mynewsletter@example.com
contentType: rtf`,
			shouldBeError: true,
		},
		{
			description: "unknown charset",
			input: `smtpServerAddress: 0.0.0.0:123
fromAddress: mynewsletter@example.com
charset: klingon`,
			shouldBeError: true,
		},
		{
			description: "negative workers",
			input: `smtpServerAddress: 0.0.0.0:123
fromAddress: mynewsletter@example.com
workers: -1`,
			shouldBeError: true,
		},
		{
			description: "timeout not a duration",
			input: `smtpServerAddress: 0.0.0.0:123
fromAddress: mynewsletter@example.com
timeout: 10`,
			shouldBeError: true,
		},
		{
			description: "attachment size not a size",
			input: `smtpServerAddress: 0.0.0.0:123
fromAddress: mynewsletter@example.com
maxAttachmentSize: lots`,
			shouldBeError: true,
		},
		{
			description:   "not a map[string]string",
			input:         `[]`,
			shouldBeError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			var uc UserConfig
			buf := bytes.NewBuffer([]byte(tc.input))
			dec := yaml.NewDecoder(buf)
			err := dec.Decode(&uc)
			if (err != nil) != tc.shouldBeError {
				t.Errorf(
					"%v: unexpected error status--wanted %v but got %v with error %v",
					tc.description,
					tc.shouldBeError,
					err != nil,
					err,
				)
			}
		})
	}
}

func TestUserConfigCheckAndSetDefaults(t *testing.T) {
	var uc UserConfig
	err := yaml.Unmarshal([]byte(`smtpServerAddress: mail.example.com:587
fromAddress: mynewsletter@example.com
contentType: html
`), &uc)
	require.NoError(t, err)

	c, err := uc.CheckAndSetDefaults()
	require.NoError(t, err)
	assert.Equal(t, "mail.example.com", c.SMTPServerHost)
	assert.Equal(t, 587, c.SMTPServerPort)
	assert.Equal(t, HTML, c.ContentType)
	assert.Equal(t, DefaultCharset, c.Charset)
	assert.Equal(t, DefaultTimeout, c.Timeout)
	assert.Equal(t, defaultMaxAttachmentSize, c.MaxAttachmentSize)
	assert.Equal(t, 0, c.Workers)

	_, err = (&UserConfig{}).CheckAndSetDefaults()
	assert.Error(t, err)
}

// serverConfig returns a UserConfig pointing at srv, the way the CLI would
// build one from a config file.
func serverConfig(t *testing.T, srv *smtptest.InProcessServer) UserConfig {
	t.Helper()
	host, port, err := net.SplitHostPort(srv.Address())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)

	uc := UserConfig{
		SMTPServerHost:       host,
		SMTPServerPort:       p,
		Username:             "myuser",
		Password:             "mypassword",
		FromAddress:          "me@example.com",
		FromName:             "Me",
		SkipCertVerification: true, // since it's a self-signed cert
		Timeout:              10 * time.Second,
	}
	c, err := uc.CheckAndSetDefaults()
	require.NoError(t, err)
	return c
}

// TestSend is meant to test the minimal expected behavior of an SMTP
// delivery, including STARTTLS and AUTH against the in-process server.
func TestSend(t *testing.T) {
	srv := smtptest.StartServer(t)
	uc := serverConfig(t, srv)
	uc.ContentType = HTML

	cfg, err := uc.NewBuilder().WithLogger(zerolog.Nop()).Build()
	require.NoError(t, err)

	bodHTML := "<html><body>Hello this is my email body.</body></html>"
	attachment := []byte("col1,col2\n1,2\n")

	d, err := cfg.To("you@example.com")
	require.NoError(t, err)
	err = d.Subject("Report").
		Content(bodHTML).
		Attachment("report.csv", attachment, "text/csv").
		Send(context.Background())
	require.NoError(t, err, "unexpected error when sending the email")

	b, err := srv.RetrieveEmails(0)
	require.NoError(t, err)
	require.Len(t, b, 1, "expected to have sent one email")

	env := srv.Envelopes()
	require.Len(t, env, 1)
	assert.Equal(t, "me@example.com", env[0].From)
	assert.Equal(t, []string{"you@example.com"}, env[0].To)

	pm, err := smtptest.ParseEmail(b[0])
	require.NoError(t, err)
	assert.Equal(t, "Report", pm.Header.Get("Subject"))
	require.True(t, pm.Multipart)
	require.Len(t, pm.Parts, 2)
	assert.Equal(t, "text/html", pm.Parts[0].ContentType)
	assert.Equal(t, bodHTML, string(pm.Parts[0].Body))
	assert.Equal(t, "text/csv", pm.Parts[1].ContentType)
	assert.Equal(t, "report.csv", pm.Parts[1].FileName)
	assert.Equal(t, attachment, pm.Parts[1].Body)
}

func TestSendRejectedRecipient(t *testing.T) {
	srv := smtptest.StartServer(t)
	srv.RejectRecipient("nobody@example.com")
	uc := serverConfig(t, srv)

	cfg, err := uc.NewBuilder().WithLogger(zerolog.Nop()).Build()
	require.NoError(t, err)

	d, err := cfg.To("nobody@example.com")
	require.NoError(t, err)
	err = d.Content("Hello").Send(context.Background())

	assert.ErrorIs(t, err, ErrDispatch)
	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "rcpt", te.Op)

	b, err := srv.RetrieveEmails(0)
	require.NoError(t, err)
	assert.Empty(t, b)
}

func TestSendAsyncThroughServer(t *testing.T) {
	srv := smtptest.StartServer(t)
	uc := serverConfig(t, srv)

	wp := workerpool.New(2)
	cfg, err := uc.NewBuilder().
		WithWorkerPool(wp).
		WithLogger(zerolog.Nop()).
		Build()
	require.NoError(t, err)

	for _, to := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		d, err := cfg.To(to)
		require.NoError(t, err)
		require.NoError(t, d.Content("Hello "+to).Send(context.Background()))
	}
	wp.Wait()

	b, err := srv.RetrieveEmails(0)
	require.NoError(t, err)
	assert.Len(t, b, 3)
}

func TestSendUnreachableRelay(t *testing.T) {
	// Grab a free port and close it so nothing is listening.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().(*net.TCPAddr)
	l.Close()

	tr := NewSMTPTransport("127.0.0.1", addr.Port, "", "")
	tr.Timeout = 2 * time.Second
	cfg, err := NewBuilder().
		WithTransportClient(tr).
		WithSenderAddress("me@example.com").
		WithLogger(zerolog.Nop()).
		Build()
	require.NoError(t, err)

	d, err := cfg.To("you@example.com")
	require.NoError(t, err)
	err = d.Content("Hello").Send(context.Background())

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "dial", te.Op)
}

func TestWriterTransport(t *testing.T) {
	var out bytes.Buffer
	cfg, err := NewBuilder().
		WithTransportClient(&WriterTransport{W: &out}).
		WithSenderAddress("me@example.com").
		Build()
	require.NoError(t, err)

	d, err := cfg.To("you@example.com")
	require.NoError(t, err)
	require.NoError(t, d.Subject("Dry run").Content("Hello").Send(context.Background()))

	assert.Contains(t, out.String(), "Subject: Dry run")
	assert.Contains(t, out.String(), "Hello")
}

func TestUnmarshalYAMLTLSMode(t *testing.T) {
	testCases := []struct {
		description  string
		input        string
		implicitTLS  bool
		insecureAuth bool
	}{
		{
			description: "submission port",
			input: `smtpServerAddress: mail.example.com:587
fromAddress: mynewsletter@example.com`,
			implicitTLS: false,
		},
		{
			description: "smtps port",
			input: `smtpServerAddress: mail.example.com:465
fromAddress: mynewsletter@example.com`,
			implicitTLS: true,
		},
		{
			description: "smtps scheme",
			input: `smtpServerAddress: smtps://mail.example.com:2465
fromAddress: mynewsletter@example.com`,
			implicitTLS: true,
		},
		{
			description: "explicit setting wins over the port",
			input: `smtpServerAddress: mail.example.com:465
fromAddress: mynewsletter@example.com
implicitTLS: false`,
			implicitTLS: false,
		},
		{
			description: "insecure auth",
			input: `smtpServerAddress: localhost:25
fromAddress: mynewsletter@example.com
allowInsecureAuth: true`,
			insecureAuth: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			var uc UserConfig
			require.NoError(t, yaml.Unmarshal([]byte(tc.input), &uc))
			assert.Equal(t, tc.implicitTLS, uc.ImplicitTLS)
			assert.Equal(t, tc.insecureAuth, uc.AllowInsecureAuth)

			tr := uc.Transport()
			assert.Equal(t, tc.implicitTLS, tr.ImplicitTLS)
			assert.Equal(t, tc.insecureAuth, tr.AllowInsecureAuth)
		})
	}

	var uc UserConfig
	assert.Error(t, yaml.Unmarshal([]byte(`smtpServerAddress: mail.example.com:465
fromAddress: mynewsletter@example.com
implicitTLS: sometimes`), &uc))
}

func TestNewSMTPTransportImplicitTLSDefault(t *testing.T) {
	assert.True(t, NewSMTPTransport("mail.example.com", 465, "", "").ImplicitTLS)
	assert.False(t, NewSMTPTransport("mail.example.com", 587, "", "").ImplicitTLS)
}

func TestSendImplicitTLS(t *testing.T) {
	srv := smtptest.StartTLSServer(t)
	uc := serverConfig(t, srv)
	uc.ImplicitTLS = true

	cfg, err := uc.NewBuilder().WithLogger(zerolog.Nop()).Build()
	require.NoError(t, err)

	d, err := cfg.To("you@example.com")
	require.NoError(t, err)
	require.NoError(t, d.Content("Hello over SMTPS").Send(context.Background()))

	b, err := srv.RetrieveEmails(0)
	require.NoError(t, err)
	assert.Len(t, b, 1)
}

func TestSendRefusesCleartextAuth(t *testing.T) {
	srv := smtptest.StartPlainServer(t)
	uc := serverConfig(t, srv)

	cfg, err := uc.NewBuilder().WithLogger(zerolog.Nop()).Build()
	require.NoError(t, err)

	d, err := cfg.To("you@example.com")
	require.NoError(t, err)
	err = d.Content("Hello").Send(context.Background())

	assert.ErrorIs(t, err, ErrInsecureAuth)
	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "auth", te.Op)

	b, err := srv.RetrieveEmails(0)
	require.NoError(t, err)
	assert.Empty(t, b)
}

func TestSendInsecureAuthAllowed(t *testing.T) {
	srv := smtptest.StartPlainServer(t)
	uc := serverConfig(t, srv)
	uc.AllowInsecureAuth = true

	cfg, err := uc.NewBuilder().WithLogger(zerolog.Nop()).Build()
	require.NoError(t, err)

	d, err := cfg.To("you@example.com")
	require.NoError(t, err)
	require.NoError(t, d.Content("Hello").Send(context.Background()))

	b, err := srv.RetrieveEmails(0)
	require.NoError(t, err)
	assert.Len(t, b, 1)
}
