package bot

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/soless-ai/soless/internal/conversation"
	"github.com/soless-ai/soless/internal/metrics"
	inats "github.com/soless-ai/soless/internal/nats"
	"github.com/soless-ai/soless/internal/xmpp"
)

// Chat is the conversation surface the bridge drives.
type Chat interface {
	CreateConversation(ctx context.Context) (string, error)
	SendMessage(ctx context.Context, id, text string) (string, error)
}

// OutboundPublisher queues replies for delivery.
type OutboundPublisher interface {
	PublishOutboundMessage(ctx context.Context, msg inats.OutboundMessage) error
}

// Switch reports whether the bot should answer at all.
type Switch interface {
	Enabled() bool
}

// DefaultWorkers is how many inbound messages the bridge answers at once.
const DefaultWorkers = 8

// ProgressInterval is how often a message in a running turn has its ack
// deadline pushed back. It must stay below the consumer's AckWait.
const ProgressInterval = 10 * time.Second

// Bridge answers messaging-platform users, keeping one conversation per
// identity. Turns for different identities run concurrently; turns on one
// conversation are ordered by the chat service.
type Bridge struct {
	chat       Chat
	identities IdentityStore
	enabled    Switch
	publisher  OutboundPublisher

	workers  int
	progress time.Duration
}

func NewBridge(chat Chat, identities IdentityStore, enabled Switch, publisher OutboundPublisher) *Bridge {
	return &Bridge{
		chat:       chat,
		identities: identities,
		enabled:    enabled,
		publisher:  publisher,
		workers:    DefaultWorkers,
		progress:   ProgressInterval,
	}
}

// Reply computes the bot's answer to text from identity. It never fails;
// problems are logged and turned into an apology.
func (b *Bridge) Reply(ctx context.Context, identity, text string) string {
	switch parseCommand(text) {
	case cmdStart:
		if _, err := b.identities.Resolve(ctx, identity, b.chat.CreateConversation); err != nil {
			slog.Error("starting bot conversation", "error", err, "identity", identity)
			return ConnectFailedText
		}
		return WelcomeText
	case cmdHelp, cmdUnknown:
		return HelpText
	case cmdAbout:
		return AboutText
	}

	if strings.TrimSpace(text) == "" {
		return HelpText
	}

	id, err := b.identities.Resolve(ctx, identity, b.chat.CreateConversation)
	if err != nil {
		slog.Error("resolving bot conversation", "error", err, "identity", identity)
		return ConnectFailedText
	}

	reply, err := b.chat.SendMessage(ctx, id, text)
	if errors.Is(err, conversation.ErrNotFound) {
		// The conversation expired under the binding; start a fresh one.
		slog.Info("bot conversation expired, rebinding", "identity", identity, "conversation_id", id)
		if ferr := b.identities.Forget(ctx, identity, id); ferr != nil {
			slog.Error("forgetting expired bot conversation", "error", ferr, "identity", identity)
			return ApologyText
		}
		id, err = b.identities.Resolve(ctx, identity, b.chat.CreateConversation)
		if err != nil {
			slog.Error("resolving bot conversation", "error", err, "identity", identity)
			return ConnectFailedText
		}
		reply, err = b.chat.SendMessage(ctx, id, text)
	}
	if err != nil {
		slog.Error("processing bot message", "error", err, "identity", identity, "conversation_id", id)
		return ApologyText
	}
	return reply
}

// Run consumes inbound messages from c until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context, c inats.Fetcher) error {
	slog.Info("bot bridge started", "consumer", "bot-bridge", "workers", b.workers)
	return inats.Consume(ctx, "bot-bridge", c, b.workers, b.handle)
}

func (b *Bridge) handle(ctx context.Context, msg jetstream.Msg) {
	var in inats.InboundMessage
	if err := json.Unmarshal(msg.Data(), &in); err != nil {
		slog.Error("unmarshaling inbound message", "error", err)
		_ = msg.Term()
		return
	}

	if !b.enabled.Enabled() {
		slog.Debug("bot disabled, dropping message", "id", in.ID, "from", in.FromJID)
		_ = msg.Ack()
		return
	}

	// Completions can outlive the ack wait; keep the message from redelivery.
	_ = msg.InProgress()
	stop := inats.KeepAlive(ctx, msg, b.progress)
	body := b.Reply(ctx, xmpp.BareJID(in.FromJID), in.Body)
	stop()

	kind := "reply"
	if body == ApologyText || body == ConnectFailedText {
		kind = "apology"
	}
	metrics.BotMessagesTotal.WithLabelValues(kind).Inc()

	out := inats.OutboundMessage{
		ID:        uuid.New().String(),
		ToJID:     in.FromJID,
		FromJID:   in.ToJID,
		Body:      body,
		InReplyTo: in.ID,
	}
	if err := b.publisher.PublishOutboundMessage(ctx, out); err != nil {
		// The turn is already recorded; redelivery would run it twice.
		slog.Error("publishing bot reply", "error", err, "to", in.FromJID)
	}
	_ = msg.Ack()
}
