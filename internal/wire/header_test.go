package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		h    Header
		body []byte
	}{
		{"noop", Header{Command: CmdNoop}, nil},
		{"close", Header{Command: CmdClose, Opt: OptReliable, Reliable: 7, Unreliable: 0}, nil},
		{"conn_req", Header{Command: CmdConnReq, Opt: OptReliable, Reliable: 0x1234}, EncodeConnReq()},
		{"conn_rsp", Header{Command: CmdConnRsp, Reliable: 0, Unreliable: 1}, EncodeConnRsp()},
		{"ping", Header{Command: CmdPing, Opt: OptReliable, Reliable: 5, Unreliable: 0}, EncodePingPong(123456)},
		{"app", Header{Command: CmdAppBase + 3, Opt: OptReliable | OptAck, ReliableAck: 9, Reliable: 10, Unreliable: 0}, []byte("hello")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := Encode(tc.h, tc.body)
			got, body, err := Decode(raw)
			require.NoError(t, err)
			require.Equal(t, tc.h, got)
			if len(tc.body) == 0 {
				require.Empty(t, body)
			} else {
				require.Equal(t, tc.body, body)
			}
		})
	}
}

func TestDecodeRejectsShortDatagram(t *testing.T) {
	_, _, err := Decode([]byte{0, 1, 2})
	require.Error(t, err)
}

func TestDecodeRejectsUnrecognisedCommand(t *testing.T) {
	raw := make([]byte, HeaderSize)
	raw[0] = 0x0F // between CmdPong(5) and CmdAppBase(0x10): unrecognised
	_, _, err := Decode(raw)
	require.Error(t, err)
}

func TestDecodeRejectsBadBodyLength(t *testing.T) {
	h := Header{Command: CmdConnReq}
	raw := Encode(h, []byte{1, 2}) // wrong length nonce
	_, _, err := Decode(raw)
	require.Error(t, err)
}

// A command byte can only carry user commands 0..MaxUserCommand, so the
// out-of-range case is exercised on the encoding side.
func TestNewAppCommandRejectsUserCommandOutOfRange(t *testing.T) {
	_, err := NewAppCommand(MaxUserCommand + 1)
	require.Error(t, err)
}

func TestPingPongTimestampRoundTrip(t *testing.T) {
	body := EncodePingPong(1_700_000_000_123)
	require.Equal(t, int64(1_700_000_000_123), DecodePingPong(body))
}

func TestSeqDeltaWrap(t *testing.T) {
	require.True(t, SeqGreater(0xFFFE, 0xFFFF))
	require.True(t, SeqGreater(0xFFFF, 0x0000))
	require.False(t, SeqGreater(0x0001, 0x0000))
	require.Equal(t, int16(1), SeqDelta(0xFFFF, 0x0000))
}
