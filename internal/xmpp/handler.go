package xmpp

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gosrc.io/xmpp"
	"gosrc.io/xmpp/stanza"

	"github.com/soless-ai/soless/internal/chat"
	"github.com/soless-ai/soless/internal/metrics"
	inats "github.com/soless-ai/soless/internal/nats"
)

// PublishTimeout bounds handing an inbound message to NATS.
const PublishTimeout = 5 * time.Second

// UnavailableText is sent when an inbound message cannot be queued.
const UnavailableText = chat.ApologyText

// StanzaSender is the part of xmpp.Sender the handler writes through.
type StanzaSender interface {
	Send(p stanza.Packet) error
}

// InboundPublisher queues received messages for the bot bridge.
type InboundPublisher interface {
	PublishInboundMessage(ctx context.Context, msg inats.InboundMessage) error
}

// Handler turns incoming XMPP stanzas into NATS messages.
type Handler struct {
	publisher InboundPublisher
	now       func() time.Time
}

func NewHandler(publisher InboundPublisher) *Handler {
	return &Handler{publisher: publisher, now: time.Now}
}

// HandleMessage publishes chat <message> stanzas with a body.
func (h *Handler) HandleMessage(s xmpp.Sender, p stanza.Packet) {
	var msg stanza.Message
	switch m := p.(type) {
	case stanza.Message:
		msg = m
	case *stanza.Message:
		msg = *m
	default:
		return
	}
	h.handleMessage(s, msg)
}

func (h *Handler) handleMessage(s StanzaSender, msg stanza.Message) {
	if msg.Type == stanza.MessageTypeError || strings.TrimSpace(msg.Body) == "" {
		return
	}

	slog.Debug("XMPP message received", "from", msg.From, "to", msg.To, "type", string(msg.Type))
	metrics.BotMessagesTotal.WithLabelValues("inbound").Inc()

	inbound := inats.InboundMessage{
		ID:         uuid.New().String(),
		FromJID:    msg.From,
		ToJID:      msg.To,
		Body:       msg.Body,
		StanzaType: string(msg.Type),
		ReceivedAt: h.now().UTC(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
	defer cancel()

	if err := h.publisher.PublishInboundMessage(ctx, inbound); err != nil {
		slog.Error("publishing inbound message", "error", err, "from", msg.From)
		h.reply(s, msg.To, msg.From, "", UnavailableText)
	}
}

// HandlePresence auto-approves subscription requests so users can add the bot.
func (h *Handler) HandlePresence(s xmpp.Sender, p stanza.Packet) {
	var pres stanza.Presence
	switch m := p.(type) {
	case stanza.Presence:
		pres = m
	case *stanza.Presence:
		pres = *m
	default:
		return
	}
	h.handlePresence(s, pres)
}

func (h *Handler) handlePresence(s StanzaSender, pres stanza.Presence) {
	slog.Debug("XMPP presence received", "from", pres.From, "to", pres.To, "type", string(pres.Type))

	if pres.Type != stanza.PresenceTypeSubscribe {
		return
	}
	reply := stanza.Presence{
		Attrs: stanza.Attrs{
			From: pres.To,
			To:   pres.From,
			Type: stanza.PresenceTypeSubscribed,
		},
	}
	if err := s.Send(reply); err != nil {
		slog.Error("sending presence subscribed reply", "error", err)
	}
}

// SendOutbound delivers a bot reply as a chat message.
func (h *Handler) SendOutbound(s StanzaSender, out inats.OutboundMessage) error {
	return s.Send(chatMessage(out.FromJID, out.ToJID, out.ID, out.Body))
}

func (h *Handler) reply(s StanzaSender, from, to, id, body string) {
	if err := s.Send(chatMessage(from, to, id, body)); err != nil {
		slog.Error("sending XMPP reply", "error", err, "to", to)
	}
}

func chatMessage(from, to, id, body string) stanza.Message {
	return stanza.Message{
		Attrs: stanza.Attrs{
			From: from,
			To:   to,
			Type: stanza.MessageTypeChat,
			Id:   id,
		},
		Body: body,
	}
}

// BareJID strips the resource part, so every client session of one account
// maps to the same identity.
func BareJID(jid string) string {
	if idx := strings.Index(jid, "/"); idx >= 0 {
		jid = jid[:idx]
	}
	return strings.ToLower(jid)
}
