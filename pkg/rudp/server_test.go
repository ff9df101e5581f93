package rudp

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-rudp/internal/bufpool"
	"go-rudp/internal/clock"
	"go-rudp/internal/randseq"
	"go-rudp/internal/transport"
)

func newRealConfig() Config {
	c := NewConfig()
	c.Clock = clock.NewSystem()
	c.PRNG = randseq.System{}
	c.Allocator = bufpool.NewDefault()
	c.ActionTimeout = 200 * time.Millisecond
	c.DropTimeout = 600 * time.Millisecond
	return c
}

func TestClientServerHandshakeAndAppExchange(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	received := make(chan string, 1)
	peerNew := make(chan *Peer, 1)
	srvHandler := ServerHandlerFuncs{
		HandlerFuncs: HandlerFuncs{
			OnPacket: func(p *Peer, userCommand uint8, payload []byte) {
				received <- string(payload)
			},
		},
		OnPeerNew: func(p *Peer) { peerNew <- p },
	}
	srv, err := NewServer(newRealConfig(), &net.UDPAddr{IP: net.IPv4zero, Port: 0}, srvHandler)
	require.NoError(t, err)
	defer srv.Shutdown()
	srvGroup := srv.Serve(ctx)

	connected := make(chan *Peer, 1)
	cliHandler := ClientHandlerFuncs{
		OnConnected: func(p *Peer) { connected <- p },
	}
	serverAddr := srv.LocalAddr().(*net.UDPAddr)
	cli, _, err := NewClient(newRealConfig(), transport.IPAny, cliHandler)
	require.NoError(t, err)
	defer cli.Shutdown()
	cliGroup := cli.Serve(ctx)

	require.NoError(t, cli.Connect(ctx, "127.0.0.1", serverAddr.Port))

	select {
	case <-connected:
	case <-ctx.Done():
		t.Fatal("client never saw Connected")
	}
	select {
	case <-peerNew:
	case <-ctx.Done():
		t.Fatal("server never saw PeerNew")
	}

	require.NoError(t, cli.Send(0, []byte("hello"), true))

	select {
	case msg := <-received:
		require.Equal(t, "hello", msg)
	case <-ctx.Done():
		t.Fatal("server never received payload")
	}

	require.Equal(t, 1, srv.PeerCount())

	cancel()
	_ = srvGroup.Wait()
	_ = cliGroup.Wait()
}
