// Package natstest provides in-memory stand-ins for JetStream consumers and
// publishers.
package natstest

import (
	"context"
	"sync"

	"github.com/nats-io/nats.go/jetstream"
)

// Msg is a jetstream.Msg carrying only a payload and ack state.
type Msg struct {
	jetstream.Msg

	subject string
	data    []byte

	mu         sync.Mutex
	acked      bool
	nacked     bool
	terminated bool
	progressed int
}

func NewMsg(subject string, data []byte) *Msg {
	return &Msg{subject: subject, data: data}
}

func (m *Msg) Data() []byte    { return m.data }
func (m *Msg) Subject() string { return m.subject }

func (m *Msg) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acked = true
	return nil
}

func (m *Msg) Nak() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nacked = true
	return nil
}

func (m *Msg) InProgress() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progressed++
	return nil
}

func (m *Msg) Term() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.terminated = true
	return nil
}

func (m *Msg) Acked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acked
}

func (m *Msg) Nacked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nacked
}

func (m *Msg) Terminated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.terminated
}

// Progressed reports how many times InProgress was called.
func (m *Msg) Progressed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.progressed
}

type batch struct {
	ch chan jetstream.Msg
}

func (b *batch) Messages() <-chan jetstream.Msg { return b.ch }
func (b *batch) Error() error                   { return nil }

// Fetcher hands out queued messages one batch per Fetch call and returns
// jetstream.ErrNoMessages when the queue is empty.
type Fetcher struct {
	mu    sync.Mutex
	queue []jetstream.Msg
}

func (f *Fetcher) Push(msgs ...jetstream.Msg) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, msgs...)
}

func (f *Fetcher) Fetch(n int, _ ...jetstream.FetchOpt) (jetstream.MessageBatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		return nil, jetstream.ErrNoMessages
	}
	if n > len(f.queue) {
		n = len(f.queue)
	}
	b := &batch{ch: make(chan jetstream.Msg, n)}
	for _, m := range f.queue[:n] {
		b.ch <- m
	}
	close(b.ch)
	f.queue = f.queue[n:]
	return b, nil
}

// Published is one recorded publish.
type Published struct {
	Subject string
	Data    []byte
}

// Publisher records Publish calls. Err, when set, is returned instead.
type Publisher struct {
	jetstream.Publisher

	mu   sync.Mutex
	msgs []Published
	Err  error
}

func (p *Publisher) Publish(_ context.Context, subject string, data []byte, _ ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return nil, p.Err
	}
	p.msgs = append(p.msgs, Published{Subject: subject, Data: data})
	return &jetstream.PubAck{Stream: "test", Sequence: uint64(len(p.msgs))}, nil
}

func (p *Publisher) Messages() []Published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Published(nil), p.msgs...)
}
