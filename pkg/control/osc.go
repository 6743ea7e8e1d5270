package control

import (
	"fmt"
	"strconv"

	"github.com/hypebeast/go-osc/osc"

	"github.com/sonetlumiere/vj/pkg/logger"
)

// OSCServer is the OSC Client (C12): an address-routed receiver over a
// bidirectional relay (§4.12), delivering recognised addresses to the
// coordinator as equivalent Envelopes.
type OSCServer struct {
	addr       string
	dispatcher *osc.StandardDispatcher
	server     *osc.Server
	client     *osc.Client
	handler    Handler
}

// NewOSCServer builds an OSCServer bound to host:port (§6.5's
// `oscServer` setting). It does not start listening until ListenAndServe
// is called.
func NewOSCServer(host string, port int) *OSCServer {
	dispatcher := osc.NewStandardDispatcher()
	s := &OSCServer{
		addr:       fmt.Sprintf("%s:%d", host, port),
		dispatcher: dispatcher,
		server:     &osc.Server{Addr: fmt.Sprintf("%s:%d", host, port), Dispatcher: dispatcher},
		client:     osc.NewClient(host, port),
	}
	s.registerRoutes()
	return s
}

// Handle installs the callback invoked for every recognised address.
func (s *OSCServer) Handle(h Handler) {
	s.handler = h
}

func (s *OSCServer) registerRoutes() {
	s.dispatcher.AddMsgHandler("/preset/milkdrop/select", func(msg *osc.Message) {
		s.deliver(CmdMilkdropSelect, firstArgAsInt(msg))
	})
	s.dispatcher.AddMsgHandler("/preset/milkdrop/next", func(msg *osc.Message) {
		s.deliver(CmdMilkdropNext, nil)
	})
	s.dispatcher.AddMsgHandler("/preset/milkdrop/prev", func(msg *osc.Message) {
		s.deliver(CmdMilkdropPrev, nil)
	})
	s.dispatcher.AddMsgHandler("/preset/mode", func(msg *osc.Message) {
		s.deliver(CmdSwitchMode, firstArgAsString(msg))
	})
}

func (s *OSCServer) deliver(cmd Command, data any) {
	if s.handler == nil {
		return
	}
	s.handler(Envelope{Command: cmd, Data: data})
}

// ListenAndServe blocks servicing incoming OSC packets until the
// underlying connection errors or is closed.
func (s *OSCServer) ListenAndServe() error {
	logger.GetLogger().Info("control: osc server listening", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Send sends an OSC message with the given address and arguments through
// the server's client, which targets the server's own host:port.
func (s *OSCServer) Send(address string, args ...any) error {
	msg := osc.NewMessage(address)
	for _, a := range args {
		msg.Append(a)
	}
	return s.client.Send(msg)
}

func firstArgAsInt(msg *osc.Message) int {
	if len(msg.Arguments) == 0 {
		return 0
	}
	switch v := msg.Arguments[0].(type) {
	case int32:
		return int(v)
	case float32:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}

func firstArgAsString(msg *osc.Message) string {
	if len(msg.Arguments) == 0 {
		return ""
	}
	s, _ := msg.Arguments[0].(string)
	return s
}
