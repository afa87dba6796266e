package storage

import (
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/ptgott/mailprovider/email"
	"github.com/rs/zerolog/log"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const outcomePrefix = "outcome/"

// Journal implements email.Journal on top of a KeyValue. Each message id
// maps to the latest outcome recorded for it.
type Journal struct {
	kv KeyValue
}

// NewJournal returns a Journal that writes to kv.
func NewJournal(kv KeyValue) *Journal {
	return &Journal{kv: kv}
}

// Record stores o under its message id, replacing any earlier outcome.
// Nothing is stored, and no error returned, when the Journal is backed by a
// NoOpDB.
func (j *Journal) Record(o email.Outcome) error {
	if o.MessageID == "" {
		return fmt.Errorf("can't record an outcome without a message id")
	}
	b, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("can't encode the outcome: %v", err)
	}
	err = j.kv.Put(KVEntry{
		Key:   outcomeKey(o.MessageID),
		Value: b,
	})
	if errors.Is(err, ErrNoOp) {
		log.Debug().
			Str("messageId", o.MessageID).
			Str("status", string(o.Status)).
			Msg("not storing the outcome")
		return nil
	}
	return err
}

// Lookup returns the latest outcome for messageID. It returns ErrNotFound
// if nothing was recorded or the record expired.
func (j *Journal) Lookup(messageID string) (email.Outcome, error) {
	e, err := j.kv.Read(outcomeKey(messageID))
	if err != nil {
		return email.Outcome{}, err
	}
	var o email.Outcome
	if err := json.Unmarshal(e.Value, &o); err != nil {
		return email.Outcome{}, fmt.Errorf("can't decode the outcome for %v: %v", messageID, err)
	}
	return o, nil
}

func outcomeKey(messageID string) []byte {
	return []byte(outcomePrefix + messageID)
}
