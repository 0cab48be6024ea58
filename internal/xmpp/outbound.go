package xmpp

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/soless-ai/soless/internal/metrics"
	inats "github.com/soless-ai/soless/internal/nats"
)

// OutboundRelay consumes queued replies from NATS and sends them via XMPP.
type OutboundRelay struct {
	handler *Handler
	sender  StanzaSender
}

func NewOutboundRelay(handler *Handler, sender StanzaSender) *OutboundRelay {
	return &OutboundRelay{handler: handler, sender: sender}
}

// Run consumes from c until ctx is cancelled. Replies are sent one at a time
// so a user sees them in the order they were queued.
func (r *OutboundRelay) Run(ctx context.Context, c inats.Fetcher) error {
	slog.Info("outbound relay started", "consumer", "outbound-relay")
	return inats.Consume(ctx, "outbound-relay", c, 1, r.handle)
}

func (r *OutboundRelay) handle(_ context.Context, msg jetstream.Msg) {
	var out inats.OutboundMessage
	if err := json.Unmarshal(msg.Data(), &out); err != nil {
		slog.Error("unmarshaling outbound message", "error", err)
		// Malformed payloads never become valid; drop them.
		_ = msg.Term()
		return
	}

	if err := r.handler.SendOutbound(r.sender, out); err != nil {
		slog.Error("sending outbound XMPP message", "error", err, "to", out.ToJID)
		_ = msg.Nak()
		return
	}

	metrics.BotMessagesTotal.WithLabelValues("outbound").Inc()
	slog.Debug("sent outbound XMPP message", "to", out.ToJID, "in_reply_to", out.InReplyTo)
	_ = msg.Ack()
}
