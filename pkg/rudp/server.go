package rudp

import (
	"context"
	"fmt"
	"net"
	"time"

	"golang.org/x/sync/errgroup"

	"go-rudp/internal/scheduler"
	"go-rudp/internal/transport"
	"go-rudp/internal/wire"
)

// ServerHandler extends Handler with the server-specific "peer_new"
// notification, fired once a listening peer completes its handshake,
// mirroring ClientHandler.Connected for the inbound-connection role.
type ServerHandler interface {
	Handler
	PeerNew(p *Peer)
}

// ServerHandlerFuncs adapts function values into a ServerHandler.
type ServerHandlerFuncs struct {
	HandlerFuncs
	OnPeerNew func(p *Peer)
}

func (h ServerHandlerFuncs) PeerNew(p *Peer) {
	if h.OnPeerNew != nil {
		h.OnPeerNew(p)
	}
}

// Server is the listening role described in SPEC_FULL.md §4.4: one bound
// UDP socket demultiplexing datagrams to per-remote-address Peer values,
// created lazily on an unrecognised CONN_REQ and discarded once DEAD.
//
// The reference keeps peers in a fixed-size array scanned linearly; this
// keeps the same "one Peer per known remote address" model but substitutes
// a map keyed by the address's string form for O(1) lookup, which
// SPEC_FULL.md §4.4 explicitly endorses as the allowed Go substitution.
type Server struct {
	cfg       Config
	transport *transport.UDPTransport
	loop      *scheduler.Loop
	handler   ServerHandler

	peers    map[string]*Peer
	userData map[string]any
}

// NewServer binds addr and returns a Server ready to Serve.
func NewServer(cfg Config, addr *net.UDPAddr, handler ServerHandler) (*Server, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, fmt.Errorf("%w: handler is nil", ErrInvalidArgument)
	}
	t, err := transport.Listen(addr)
	if err != nil {
		return nil, fmt.Errorf("rudp: server bind: %w", err)
	}
	return &Server{
		cfg:       cfg,
		transport: t,
		loop:      scheduler.NewLoop(),
		handler:   handler,
		peers:     make(map[string]*Peer),
		userData:  make(map[string]any),
	}, nil
}

// LocalAddr returns the bound listening address.
func (s *Server) LocalAddr() net.Addr { return s.transport.LocalAddr() }

// Serve starts the loop goroutine and the datagram reader goroutine under a
// shared errgroup bound to ctx, returning it so the caller can Wait.
func (s *Server) Serve(ctx context.Context) *errgroup.Group {
	g, gctx := scheduler.Group(ctx)
	g.Go(func() error { return s.loop.Run(gctx) })
	transport.ServeDatagrams(gctx, g, s.transport, s.loop, s.cfg.ReceiveBufferSize, s.onDatagram)
	g.Go(func() error { return s.reapLoop(gctx) })
	return g
}

// Shutdown closes the listening socket. The Server is unusable afterward.
func (s *Server) Shutdown() error {
	return s.transport.Close()
}

// PeerCount returns the number of tracked peers, including those still
// mid-handshake.
func (s *Server) PeerCount() int { return len(s.peers) }

// Peers returns a snapshot slice of every tracked peer, for diagnostics
// (mirroring the teacher's GetOnlinePlayers-style enumeration,
// source/server/server.go).
func (s *Server) Peers() []*Peer {
	out := make([]*Peer, 0, len(s.peers))
	for _, p := range s.peers {
		out = append(out, p)
	}
	return out
}

// PeerUserData returns the opaque value previously attached to p via
// SetPeerUserData, or nil if none was set.
func (s *Server) PeerUserData(p *Peer) any {
	return s.userData[p.RemoteAddr().String()]
}

// SetPeerUserData attaches an arbitrary application value to p, retrievable
// later via PeerUserData. This is the supplemented per-peer opaque-pointer
// slot from the original implementation's user_data field.
func (s *Server) SetPeerUserData(p *Peer, v any) {
	s.userData[p.RemoteAddr().String()] = v
}

// Close sends a bare CLOSE to p and removes it from the server's tracking
// immediately, without waiting for the liveness timeout.
func (s *Server) Close(p *Peer) {
	p.CloseWithoutQueue()
	s.forget(p)
}

func (s *Server) forget(p *Peer) {
	key := p.RemoteAddr().String()
	delete(s.peers, key)
	delete(s.userData, key)
	s.cfg.Metrics.PeersLive.Set(float64(len(s.peers)))
}

func (s *Server) onDatagram(data []byte, from net.Addr) {
	h, body, err := wire.Decode(data)
	if err != nil {
		s.cfg.Metrics.MalformedDropped.Inc()
		s.cfg.Logger.Debug().Err(err).Str("from", from.String()).Msg("rudp: server dropping malformed datagram")
		return
	}

	key := from.String()
	now := s.cfg.Clock.NowMs()

	p, ok := s.peers[key]
	if !ok {
		if h.Command != wire.CmdConnReq {
			s.cfg.Logger.Debug().Str("from", key).Msg("rudp: dropping datagram from unknown peer")
			return
		}
		p = newPeer(s.cfg, from, s.transport, s.loop, s.handler, func(created *Peer) {
			s.handler.PeerNew(created)
		}, now)
		s.peers[key] = p
		s.cfg.Metrics.PeersLive.Set(float64(len(s.peers)))
	}
	p.receive(h, body, now)
	if p.state == StateDead {
		s.forget(p)
	}
}

// reapLoop periodically sweeps dead peers that reached StateDead via their
// own liveness timer rather than during a datagram dispatch (e.g. a peer
// that simply stopped sending and whose deadline fired with no further
// datagram to trigger the onDatagram reap above).
func (s *Server) reapLoop(ctx context.Context) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.loop.Post(s.sweepDead)
		}
	}
}

func (s *Server) sweepDead() {
	for key, p := range s.peers {
		if p.state == StateDead {
			delete(s.peers, key)
			delete(s.userData, key)
		}
	}
	s.cfg.Metrics.PeersLive.Set(float64(len(s.peers)))
}
