package control

import (
	"github.com/sonetlumiere/vj/pkg/logger"
)

// Channel is the Control Channel (C9) facade the coordinator talks to: it
// owns both transport legs and presents them as one inbound Handler and
// one outbound Broadcast.
type Channel struct {
	local   *Local
	remote  *Server
	handler Handler
}

// NewChannel returns a Channel with its Local transport always active.
// AttachServer wires the cross-host listen leg in separately, since its
// address is only known once §6.5's control-port setting is resolved.
func NewChannel() *Channel {
	return &Channel{local: NewLocal()}
}

// AttachServer wires a WebSocket listen leg bound to addr and starts it
// accepting connections in the background. Call at most once per
// Channel, after Handle.
func (c *Channel) AttachServer(addr string) {
	c.remote = NewServer(addr)
	c.remote.Handle(c.handler)
	go func() {
		if err := c.remote.ListenAndServe(); err != nil {
			logger.GetLogger().Error("control: remote listener stopped", "error", err)
		}
	}()
}

// Handle installs the single callback that receives every inbound
// Envelope, whatever transport it arrived on.
func (c *Channel) Handle(h Handler) {
	c.handler = h
	c.local.Handle(h)
	if c.remote != nil {
		c.remote.Handle(h)
	}
}

// Broadcast sends env on the local channel always, and additionally to
// any attached remote clients. Per §4.11, zero connected remote clients
// is not an error: local broadcast is the standing fallback.
func (c *Channel) Broadcast(env Envelope) {
	c.local.Send(env)
	if c.remote == nil {
		return
	}
	if err := c.remote.Send(env); err != nil {
		logger.GetLogger().Warn("control: broadcast to remote failed", "error", err)
	}
}

// Subscribe exposes the local broadcast leg for in-process listeners
// (e.g. a diagnostics window).
func (c *Channel) Subscribe() (<-chan Envelope, func()) {
	return c.local.Subscribe()
}

// RemoteConnected reports whether at least one remote client is
// currently attached; false if the listen leg was never attached.
func (c *Channel) RemoteConnected() bool {
	return c.remote != nil && c.remote.Connected()
}
