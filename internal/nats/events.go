package nats

import "time"

// FetchTimeout bounds each batch fetch from a consumer.
const FetchTimeout = 2 * time.Second

// StreamMessages holds both directions of bot traffic as a work queue.
const StreamMessages = "SOLESS_MESSAGES"

// Subjects.
const (
	SubjectMessages        = "soless.messages.>"
	SubjectInboundMessage  = "soless.messages.inbound"
	SubjectOutboundMessage = "soless.messages.outbound"
)

// InboundMessage is published when a chat message reaches the XMPP component.
type InboundMessage struct {
	ID         string    `json:"id"`
	FromJID    string    `json:"from_jid"`
	ToJID      string    `json:"to_jid"`
	Body       string    `json:"body"`
	StanzaType string    `json:"stanza_type"`
	ReceivedAt time.Time `json:"received_at"`
}

// OutboundMessage is published to deliver a bot reply over XMPP.
type OutboundMessage struct {
	ID        string `json:"id"`
	ToJID     string `json:"to_jid"`
	FromJID   string `json:"from_jid"`
	Body      string `json:"body"`
	InReplyTo string `json:"in_reply_to,omitempty"`
}
