// Package transport implements the datagram-transport and address-resolution
// collaborators the protocol engine consumes as narrow interfaces (see
// SPEC_FULL.md §6). It wraps *net.UDPConn directly, the same primitive the
// teacher's source/server/server.go bound with net.ListenUDP — the
// specification forbids reaching past the interface from the engine, but
// does not forbid the engine's own default implementation from being a thin
// net.UDPConn wrapper, matching how the teacher did it.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"

	"golang.org/x/sync/errgroup"

	"go-rudp/internal/scheduler"
)

// AddressFamily selects which IP family address resolution should prefer.
type AddressFamily int

const (
	IPAny AddressFamily = iota
	IPv4Only
	IPv6Only
)

// Transport is the narrow datagram-send/receive capability the engine
// requires. Any implementation must preserve net.Error semantics
// (Timeout()/Temporary()) through SendTo, per SPEC_FULL.md §6.
type Transport interface {
	SendTo(addr net.Addr, data []byte) error
	LocalAddr() net.Addr
	Close() error
}

// UDPTransport is a Transport backed by a real *net.UDPConn.
type UDPTransport struct {
	conn *net.UDPConn
}

// Listen binds a UDP socket to addr (which may carry a zero port for an
// ephemeral bind, as the client role uses for its wildcard local address).
func Listen(addr *net.UDPAddr) (*UDPTransport, error) {
	conn, err := net.ListenUDP(udpNetworkFor(addr), addr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s: %w", addr, err)
	}
	return &UDPTransport{conn: conn}, nil
}

func udpNetworkFor(addr *net.UDPAddr) string {
	if addr != nil && addr.IP != nil && addr.IP.To4() == nil {
		return "udp6"
	}
	return "udp4"
}

// SendTo implements Transport.
func (t *UDPTransport) SendTo(addr net.Addr, data []byte) error {
	udpAddr, ok := addr.(*net.UDPAddr)
	if !ok {
		return fmt.Errorf("transport: address %v is not a *net.UDPAddr", addr)
	}
	_, err := t.conn.WriteToUDP(data, udpAddr)
	return err
}

// LocalAddr implements Transport.
func (t *UDPTransport) LocalAddr() net.Addr { return t.conn.LocalAddr() }

// Close implements Transport.
func (t *UDPTransport) Close() error { return t.conn.Close() }

// DatagramHandler receives one inbound datagram and its source address.
// It is always invoked on the owning scheduler.Loop goroutine.
type DatagramHandler func(data []byte, from net.Addr)

// ServeDatagrams registers a reader goroutine on group that reads datagrams
// from t and Posts each one to loop for dispatch by onDatagram. This is the
// Go rendition of "register a readable fd source with a callback": the
// underlying net.UDPConn read is blocking, but every delivery to engine code
// is serialized through loop.Post exactly as a reactor's readability
// callback would be. Callers share one errgroup between this reader and the
// loop's own Run goroutine so either's failure cancels both.
func ServeDatagrams(gctx context.Context, group *errgroup.Group, t *UDPTransport, loop *scheduler.Loop, bufSize int, onDatagram DatagramHandler) {
	group.Go(func() error {
		buf := make([]byte, bufSize)
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			n, from, err := t.conn.ReadFromUDP(buf)
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return nil
				}
				if gctx.Err() != nil {
					return gctx.Err()
				}
				continue
			}
			data := make([]byte, n)
			copy(data, buf[:n])
			loop.Post(func() { onDatagram(data, from) })
		}
	})
}
