package userconfig

import (
	"errors"
	"fmt"
	"io"

	"github.com/ptgott/mailprovider/email"
	"github.com/ptgott/mailprovider/storage"
	"github.com/rs/zerolog/log"

	yaml "gopkg.in/yaml.v2"
)

// Meta represents all current config options that the application can use,
// i.e., after validation and parsing
type Meta struct {
	EmailSettings email.UserConfig `yaml:"email"`
	// Journal is nil if the config has no "journal" section, in which case
	// dispatch outcomes aren't stored.
	Journal *storage.KVConfig `yaml:"journal"`
}

// CheckAndSetDefaults validates m and either returns a copy of m with default
// settings applied or returns an error due to an invalid configuration
func (m *Meta) CheckAndSetDefaults() (Meta, error) {
	c := Meta{}

	e, err := m.EmailSettings.CheckAndSetDefaults()
	if err != nil {
		return Meta{}, err
	}
	c.EmailSettings = e

	if m.Journal != nil {
		j := *m.Journal
		if j.KeyTTLDuration <= 0 {
			return Meta{}, errors.New("the journal keyTTL must be positive")
		}
		if j.CleanupInterval <= 0 {
			return Meta{}, errors.New("the journal cleanupInterval must be positive")
		}
		c.Journal = &j
	}

	return c, nil

}

// Parse generates usable configurations from possibly arbitrary user input.
// An error indicates a problem with parsing or validation. The Reader r
// can be either JSON or YAML.
func Parse(r io.Reader) (*Meta, error) {
	var m Meta
	err := yaml.NewDecoder(r).Decode(&m)
	if err != nil {
		return &Meta{}, fmt.Errorf("can't read the config file as YAML: %v", err)
	}

	var es email.UserConfig = email.UserConfig{}
	if m.EmailSettings == es {
		return &Meta{}, errors.New("must include an \"email\" section")
	}

	if m.Journal == nil {
		log.Debug().Msg(
			"no journal section, so dispatch outcomes won't be stored",
		)
	}

	return &m, nil

}
