// Package notify delivers booking notifications to the parties involved.
//
// Delivery is fire and forget: the booking core hands a Message to a Gateway
// after its transaction commits and never fails a request because of it.
package notify

import (
	"context"
	"sync"
)

// Message is a rendered e-mail.
type Message struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	HTMLBody string `json:"html_body"`
}

type Gateway interface {
	Notify(ctx context.Context, msg Message) error
}

// Noop drops every message. It is used when no queue is configured.
type Noop struct{}

func (Noop) Notify(context.Context, Message) error { return nil }

// Recorder keeps every message in memory.
type Recorder struct {
	mu   sync.Mutex
	msgs []Message
	Err  error
}

func (r *Recorder) Notify(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.msgs = append(r.msgs, msg)
	return nil
}

// Messages returns a copy of the recorded messages.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.msgs...)
}

// To returns the recorded messages addressed to one recipient.
func (r *Recorder) To(addr string) []Message {
	var out []Message
	for _, m := range r.Messages() {
		if m.To == addr {
			out = append(out, m)
		}
	}
	return out
}
