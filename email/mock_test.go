package email

import (
	"context"
	"sync"
)

// recordingTransport remembers every message it is asked to send. If
// release is set, SendMessage waits on it before returning err.
type recordingTransport struct {
	mu       sync.Mutex
	messages []*Message
	err      error
	started  chan struct{}
	release  chan struct{}
}

func (rt *recordingTransport) SendMessage(_ context.Context, m *Message) error {
	rt.mu.Lock()
	rt.messages = append(rt.messages, m)
	rt.mu.Unlock()

	if rt.started != nil {
		rt.started <- struct{}{}
	}
	if rt.release != nil {
		<-rt.release
	}
	return rt.err
}

func (rt *recordingTransport) calls() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return len(rt.messages)
}

func (rt *recordingTransport) last() *Message {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if len(rt.messages) == 0 {
		return nil
	}
	return rt.messages[len(rt.messages)-1]
}

// memJournal keeps the latest outcome per message id.
type memJournal struct {
	mu       sync.Mutex
	outcomes map[string][]Outcome
}

func newMemJournal() *memJournal {
	return &memJournal{outcomes: map[string][]Outcome{}}
}

func (mj *memJournal) Record(o Outcome) error {
	mj.mu.Lock()
	defer mj.mu.Unlock()
	mj.outcomes[o.MessageID] = append(mj.outcomes[o.MessageID], o)
	return nil
}

func (mj *memJournal) history(id string) []Outcome {
	mj.mu.Lock()
	defer mj.mu.Unlock()
	return append([]Outcome(nil), mj.outcomes[id]...)
}
