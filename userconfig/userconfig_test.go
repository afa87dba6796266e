package userconfig

import (
	"bytes"
	"reflect"
	"testing"
	"time"

	"github.com/ptgott/mailprovider/email"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	// Asserting deep equality between the expected and actual Meta would
	// be really convoluted and brittle, so we should make sure nothing
	// fails unexpectedly and test knottier marshaling/validation situations
	// elswhere.
	testCases := []struct {
		description   string
		conf          string
		shouldBeError bool
		shouldBeEmpty bool
	}{
		{
			description:   "valid case",
			shouldBeError: false,
			shouldBeEmpty: false,
			conf: `---
email:
    smtpServerAddress: 0.0.0.0:123
    fromAddress: mynewsletter@example.com
    toAddress: recipient@example.com
    contentType: html
    workers: 2
journal:
    storageDir: ./tempTestDir3012705204
    keyTTL: "168h"
    cleanupInterval: "10m"`,
		},
		{
			description:   "no journal",
			shouldBeError: false,
			shouldBeEmpty: false,
			conf: `---
email:
    smtpServerAddress: 0.0.0.0:123
    fromAddress: mynewsletter@example.com`,
		},
		{
			description:   "no email section",
			shouldBeError: true,
			shouldBeEmpty: true,
			conf: `---
journal:
    storageDir: ./tempTestDir3012705204
    keyTTL: "168h"
    cleanupInterval: "10m"`,
		},
		{
			description:   "invalid journal",
			shouldBeError: true,
			shouldBeEmpty: true,
			conf: `---
email:
    smtpServerAddress: 0.0.0.0:123
    fromAddress: mynewsletter@example.com
journal:
    keyTTL: "168h"`,
		},
		{
			description:   "not yaml",
			shouldBeError: true,
			shouldBeEmpty: true,
			conf:          `this is not yaml`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			b := bytes.NewBuffer([]byte(tc.conf))
			m, err := Parse(b)

			if (err != nil) != tc.shouldBeError {
				t.Errorf(
					"%v: unexpected error status: wanted %v but got %v with error %v",
					tc.description,
					tc.shouldBeError,
					err != nil,
					err,
				)
			}

			if reflect.DeepEqual(*m, Meta{}) != tc.shouldBeEmpty {
				l := map[bool]string{
					true:  "to be",
					false: "not to be",
				}
				t.Errorf(
					"%v: expected the Meta %v nil, but got the opposite",
					tc.description,
					l[tc.shouldBeEmpty],
				)
			}
		})

	}

}

func TestMetaCheckAndSetDefaults(t *testing.T) {
	m, err := Parse(bytes.NewBufferString(`email:
    smtpServerAddress: mail.example.com:25
    fromAddress: mynewsletter@example.com
journal:
    storageDir: ./journal
    keyTTL: "168h"
    cleanupInterval: "10m"`))
	require.NoError(t, err)

	c, err := m.CheckAndSetDefaults()
	require.NoError(t, err)
	assert.Equal(t, email.DefaultCharset, c.EmailSettings.Charset)
	assert.Equal(t, email.DefaultTimeout, c.EmailSettings.Timeout)
	require.NotNil(t, c.Journal)
	assert.Equal(t, 168*time.Hour, c.Journal.KeyTTLDuration)

	// The copy doesn't share the journal settings with the original.
	c.Journal.StorageDirPath = "elsewhere"
	assert.Equal(t, "./journal", m.Journal.StorageDirPath)

	m.Journal.KeyTTLDuration = 0
	_, err = m.CheckAndSetDefaults()
	assert.Error(t, err)
}
