package xmpp

import (
	"context"
	"log/slog"

	"gosrc.io/xmpp"

	"github.com/soless-ai/soless/internal/config"
)

// Component manages the XMPP external component lifecycle (XEP-0114).
type Component struct {
	sm   *xmpp.StreamManager
	comp *xmpp.Component
}

// NewComponent creates an XMPP component that routes stanzas to handler.
// secret overrides cfg.ComponentSecret when non-empty.
func NewComponent(cfg config.XMPPConfig, secret string, handler *Handler) (*Component, error) {
	if secret == "" {
		secret = cfg.ComponentSecret
	}

	router := xmpp.NewRouter()
	router.HandleFunc("message", handler.HandleMessage)
	router.HandleFunc("presence", handler.HandlePresence)

	opts := xmpp.ComponentOptions{
		TransportConfiguration: xmpp.TransportConfiguration{
			Address: cfg.ComponentAddr(),
			Domain:  cfg.ComponentName,
		},
		Domain:   cfg.ComponentName,
		Secret:   secret,
		Name:     "SOLess Guide",
		Category: "client",
		Type:     "bot",
	}

	comp, err := xmpp.NewComponent(opts, router, func(err error) {
		slog.Error("XMPP component error", "error", err)
	})
	if err != nil {
		return nil, err
	}

	sm := xmpp.NewStreamManager(comp, func(xmpp.Sender) {
		slog.Info("XMPP component connected", "domain", cfg.ComponentName)
	})

	return &Component{sm: sm, comp: comp}, nil
}

// Run connects the component and blocks until ctx is cancelled or the
// stream manager gives up.
func (c *Component) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.sm.Run()
	}()

	select {
	case <-ctx.Done():
		c.sm.Stop()
		return nil
	case err := <-errCh:
		return err
	}
}

// Sender returns the underlying component for sending stanzas.
func (c *Component) Sender() xmpp.Sender {
	return c.comp
}
