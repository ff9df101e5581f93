package rudp

import (
	"context"
	"fmt"
	"net"

	"golang.org/x/sync/errgroup"

	"go-rudp/internal/scheduler"
	"go-rudp/internal/transport"
	"go-rudp/internal/wire"
)

// ClientHandler extends Handler with the client-specific "connected"
// notification a server-side peer has no equivalent for (a server instead
// exposes ServerHandler.PeerNew).
type ClientHandler interface {
	Handler
	Connected(p *Peer)
}

// ClientHandlerFuncs adapts three function values into a ClientHandler,
// mirroring HandlerFuncs.
type ClientHandlerFuncs struct {
	HandlerFuncs
	OnConnected func(p *Peer)
}

func (h ClientHandlerFuncs) Connected(p *Peer) {
	if h.OnConnected != nil {
		h.OnConnected(p)
	}
}

// Client is the single-peer role described in SPEC_FULL.md §4.3: one
// reusable Peer bound to a wildcard local address, connected and
// disconnected from repeatedly over its lifetime.
type Client struct {
	cfg       Config
	transport *transport.UDPTransport
	loop      *scheduler.Loop
	handler   ClientHandler
	family    transport.AddressFamily

	peer *Peer
}

// NewClient binds a UDP socket on the wildcard address of the requested
// family and returns a Client ready to Connect, plus the underlying
// scheduler.Loop for callers that need to Post their own tasks onto the
// same serialized goroutine the engine runs on. Call Serve to actually
// start the loop and the datagram reader.
func NewClient(cfg Config, family transport.AddressFamily, handler ClientHandler) (*Client, *scheduler.Loop, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.validate(); err != nil {
		return nil, nil, err
	}
	if handler == nil {
		return nil, nil, fmt.Errorf("%w: handler is nil", ErrInvalidArgument)
	}

	t, err := transport.Listen(transport.WildcardFor(family))
	if err != nil {
		return nil, nil, fmt.Errorf("rudp: client bind: %w", err)
	}

	loop := scheduler.NewLoop()
	return &Client{cfg: cfg, transport: t, loop: loop, handler: handler, family: family}, loop, nil
}

// Serve starts the loop goroutine and the datagram reader goroutine under a
// shared errgroup bound to ctx (SPEC_FULL.md §5's Go rendition) and returns
// it so the caller can Wait on clean shutdown.
func (c *Client) Serve(ctx context.Context) *errgroup.Group {
	g, gctx := scheduler.Group(ctx)
	g.Go(func() error { return c.loop.Run(gctx) })
	transport.ServeDatagrams(gctx, g, c.transport, c.loop, c.cfg.ReceiveBufferSize, c.onDatagram)
	return g
}

// Connect resolves host:port and enqueues a reliable CONN_REQ toward the
// first candidate address, reusing the Client's existing Peer value if one
// already exists (the reference's connection-context reuse, SPEC_FULL.md
// §4.3).
func (c *Client) Connect(ctx context.Context, host string, port int) error {
	addrs, err := transport.Resolve(ctx, host, port, c.family)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrResolveFailed, err)
	}
	if len(addrs) == 0 {
		return ErrAddressExhausted
	}
	remote := addrs[0]

	now := c.cfg.Clock.NowMs()
	if c.peer == nil {
		c.peer = newPeer(c.cfg, remote, c.transport, c.loop, c.handler, func(p *Peer) {
			c.handler.Connected(p)
		}, now)
	} else {
		c.peer.remoteAddr = remote
		c.peer.reset(now)
		c.peer.onRun = func(p *Peer) { c.handler.Connected(p) }
	}
	c.peer.sendConnect(now)
	return nil
}

// Peer returns the client's current peer, or nil before the first Connect.
func (c *Client) Peer() *Peer { return c.peer }

// Send enqueues an application payload on the current peer.
func (c *Client) Send(userCommand uint8, payload []byte, reliable bool) error {
	if c.peer == nil {
		return ErrNotConnected
	}
	return c.peer.Send(userCommand, payload, reliable)
}

// Close sends a bare CLOSE to the current peer and tears it down locally.
// The underlying Peer value remains reusable for a subsequent Connect.
func (c *Client) Close() {
	if c.peer != nil {
		c.peer.CloseWithoutQueue()
	}
}

// Shutdown closes the underlying UDP socket. The Client is unusable after
// this call.
func (c *Client) Shutdown() error {
	return c.transport.Close()
}

func (c *Client) onDatagram(data []byte, from net.Addr) {
	if c.peer == nil || c.peer.remoteAddr.String() != from.String() {
		return
	}
	h, body, err := wire.Decode(data)
	if err != nil {
		c.cfg.Metrics.MalformedDropped.Inc()
		c.cfg.Logger.Debug().Err(err).Msg("rudp: client dropping malformed datagram")
		return
	}
	c.peer.receive(h, body, c.cfg.Clock.NowMs())
}
