package xmpp

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gosrc.io/xmpp/stanza"

	"github.com/soless-ai/soless/internal/chat"
	inats "github.com/soless-ai/soless/internal/nats"
	"github.com/soless-ai/soless/internal/nats/natstest"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []stanza.Packet
	err  error
}

func (s *recordingSender) Send(p stanza.Packet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, p)
	return nil
}

func (s *recordingSender) packets() []stanza.Packet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]stanza.Packet(nil), s.sent...)
}

type recordingPublisher struct {
	msgs []inats.InboundMessage
	err  error
}

func (p *recordingPublisher) PublishInboundMessage(_ context.Context, msg inats.InboundMessage) error {
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func chatMsg(from, to, body string) stanza.Message {
	return stanza.Message{
		Attrs: stanza.Attrs{From: from, To: to, Type: stanza.MessageTypeChat},
		Body:  body,
	}
}

func TestHandleMessage_PublishesInbound(t *testing.T) {
	pub := &recordingPublisher{}
	h := NewHandler(pub)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return fixed }
	s := &recordingSender{}

	h.handleMessage(s, chatMsg("alice@example.org/phone", "bot.soless.local", "What is SOLess?"))

	require.Len(t, pub.msgs, 1)
	got := pub.msgs[0]
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "alice@example.org/phone", got.FromJID)
	assert.Equal(t, "bot.soless.local", got.ToJID)
	assert.Equal(t, "What is SOLess?", got.Body)
	assert.Equal(t, "chat", got.StanzaType)
	assert.Equal(t, fixed, got.ReceivedAt)
	assert.Empty(t, s.packets())
}

func TestHandleMessage_IgnoresEmptyAndErrorStanzas(t *testing.T) {
	pub := &recordingPublisher{}
	h := NewHandler(pub)
	s := &recordingSender{}

	h.handleMessage(s, chatMsg("alice@example.org", "bot.soless.local", "   "))
	errStanza := chatMsg("alice@example.org", "bot.soless.local", "boom")
	errStanza.Type = stanza.MessageTypeError
	h.handleMessage(s, errStanza)

	assert.Empty(t, pub.msgs)
	assert.Empty(t, s.packets())
}

func TestHandleMessage_RepliesWhenQueueUnavailable(t *testing.T) {
	h := NewHandler(&recordingPublisher{err: errors.New("nats down")})
	s := &recordingSender{}

	h.handleMessage(s, chatMsg("alice@example.org", "bot.soless.local", "hello"))

	pkts := s.packets()
	require.Len(t, pkts, 1)
	msg, ok := pkts[0].(stanza.Message)
	require.True(t, ok)
	assert.Equal(t, "alice@example.org", msg.To)
	assert.Equal(t, "bot.soless.local", msg.From)
	assert.Equal(t, chat.ApologyText, msg.Body, "same apology as the other channels")
}

func TestHandlePresence_ApprovesSubscribe(t *testing.T) {
	h := NewHandler(&recordingPublisher{})
	s := &recordingSender{}

	h.handlePresence(s, stanza.Presence{Attrs: stanza.Attrs{
		From: "alice@example.org", To: "bot.soless.local", Type: stanza.PresenceTypeSubscribe,
	}})
	h.handlePresence(s, stanza.Presence{Attrs: stanza.Attrs{From: "alice@example.org", To: "bot.soless.local"}})

	pkts := s.packets()
	require.Len(t, pkts, 1)
	pres, ok := pkts[0].(stanza.Presence)
	require.True(t, ok)
	assert.Equal(t, stanza.PresenceTypeSubscribed, pres.Type)
	assert.Equal(t, "alice@example.org", pres.To)
}

func TestBareJID(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"alice@example.org", "alice@example.org"},
		{"alice@example.org/phone", "alice@example.org"},
		{"Alice@Example.org/Laptop", "alice@example.org"},
		{"example.org", "example.org"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, BareJID(tt.in))
		})
	}
}

func TestOutboundRelay_Handle(t *testing.T) {
	h := NewHandler(&recordingPublisher{})
	s := &recordingSender{}
	relay := NewOutboundRelay(h, s)

	payload, err := json.Marshal(inats.OutboundMessage{
		ID: "r1", ToJID: "alice@example.org", FromJID: "bot.soless.local", Body: "SOLess is...", InReplyTo: "m1",
	})
	require.NoError(t, err)
	msg := natstest.NewMsg(inats.SubjectOutboundMessage, payload)

	relay.handle(context.Background(), msg)

	assert.True(t, msg.Acked())
	pkts := s.packets()
	require.Len(t, pkts, 1)
	sent := pkts[0].(stanza.Message)
	assert.Equal(t, "SOLess is...", sent.Body)
	assert.Equal(t, "alice@example.org", sent.To)
	assert.Equal(t, "r1", sent.Id)
}

func TestOutboundRelay_MalformedIsTerminated(t *testing.T) {
	relay := NewOutboundRelay(NewHandler(&recordingPublisher{}), &recordingSender{})
	msg := natstest.NewMsg(inats.SubjectOutboundMessage, []byte("{not json"))

	relay.handle(context.Background(), msg)

	assert.True(t, msg.Terminated())
	assert.False(t, msg.Acked())
}

func TestOutboundRelay_SendFailureIsRetried(t *testing.T) {
	relay := NewOutboundRelay(NewHandler(&recordingPublisher{}), &recordingSender{err: errors.New("not connected")})
	payload, _ := json.Marshal(inats.OutboundMessage{ID: "r1", ToJID: "alice@example.org", Body: "x"})
	msg := natstest.NewMsg(inats.SubjectOutboundMessage, payload)

	relay.handle(context.Background(), msg)

	assert.True(t, msg.Nacked())
	assert.False(t, msg.Acked())
}
