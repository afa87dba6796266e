package email

import "time"

// Status is the result of one dispatch attempt.
type Status string

const (
	// StatusSubmitted means the message was handed off without an error.
	// It says nothing about final delivery.
	StatusSubmitted Status = "submitted"
	// StatusFailed means the transport rejected the message.
	StatusFailed Status = "failed"
)

// Outcome records a single dispatch attempt.
type Outcome struct {
	MessageID string    `json:"messageId"`
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	Mode      string    `json:"mode"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}

// Journal stores outcomes. Record may be called from pool goroutines, so
// implementations must be goroutine safe.
type Journal interface {
	Record(Outcome) error
}

type nopJournal struct{}

func (nopJournal) Record(Outcome) error { return nil }

// record writes the outcome of sending m. Journal failures are logged and
// never change the result of Send.
func (c *Config) record(m *Message, mode dispatchMode, sendErr error) {
	o := Outcome{
		MessageID: m.ID,
		To:        m.To,
		Subject:   m.Subject,
		Mode:      mode.String(),
		Status:    StatusSubmitted,
		At:        time.Now(),
	}
	if sendErr != nil {
		o.Status = StatusFailed
		o.Error = sendErr.Error()
	}
	if err := c.journal.Record(o); err != nil {
		c.logger.Warn().
			Err(err).
			Str("messageId", m.ID).
			Msg("could not record the dispatch outcome")
	}
}
