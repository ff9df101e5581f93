package rudp

import (
	"testing"

	"github.com/stretchr/testify/require"

	"go-rudp/internal/transport"
)

func TestClientSendBeforeConnectReturnsNotConnected(t *testing.T) {
	cli, _, err := NewClient(newRealConfig(), transport.IPAny, ClientHandlerFuncs{})
	require.NoError(t, err)
	defer cli.Shutdown()

	err = cli.Send(0, []byte("x"), true)
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestNewClientRejectsNilHandler(t *testing.T) {
	_, _, err := NewClient(newRealConfig(), transport.IPAny, nil)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestNewServerRejectsNilHandler(t *testing.T) {
	_, err := NewServer(newRealConfig(), nil, nil)
	require.Error(t, err)
}
