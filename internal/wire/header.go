// Package wire implements the fixed 8-byte datagram header used by the
// rudp protocol engine, plus validation of the command/option combinations
// that ride on top of it.
package wire

import (
	"encoding/binary"
	"fmt"
)

// Command identifies the payload carried by a datagram.
type Command uint8

const (
	CmdNoop    Command = 0
	CmdClose   Command = 1
	CmdConnReq Command = 2
	CmdConnRsp Command = 3
	CmdPing    Command = 4
	CmdPong    Command = 5

	// CmdAppBase is the first command code reserved for application
	// traffic. A datagram's user command is Command - CmdAppBase.
	CmdAppBase Command = 0x10
)

// MaxUserCommand is the highest user command value an APP datagram may carry.
const MaxUserCommand = 0xEF

// Option bits carried in the header's opt byte.
const (
	OptReliable      uint8 = 0x01
	OptAck           uint8 = 0x02
	OptRetransmitted uint8 = 0x04
)

// HeaderSize is the fixed, command-independent size of a rudp header.
const HeaderSize = 8

// Body sizes for fixed-body commands.
const (
	connReqBodySize = 4 // 32-bit nonce
	connRspBodySize = 4 // 32-bit accepted
	pingPongBodySize = 8 // millisecond timestamp
)

// Header is the decoded form of the 8-byte on-wire header.
type Header struct {
	Command     Command
	Opt         uint8
	ReliableAck uint16
	Reliable    uint16
	Unreliable  uint16
}

// IsReliable reports whether the RELIABLE option bit is set.
func (h Header) IsReliable() bool { return h.Opt&OptReliable != 0 }

// IsAck reports whether the ACK option bit is set.
func (h Header) IsAck() bool { return h.Opt&OptAck != 0 }

// IsRetransmitted reports whether the RETRANSMITTED option bit is set.
func (h Header) IsRetransmitted() bool { return h.Opt&OptRetransmitted != 0 }

// IsApp reports whether Command addresses application traffic, and if so
// returns the user-visible command byte (Command - CmdAppBase).
func (h Header) IsApp() (userCommand uint8, ok bool) {
	if h.Command < CmdAppBase {
		return 0, false
	}
	return uint8(h.Command - CmdAppBase), true
}

// Encode serializes the header followed by body into a newly allocated
// buffer of HeaderSize+len(body) bytes. It returns the full datagram.
func Encode(h Header, body []byte) []byte {
	buf := make([]byte, HeaderSize+len(body))
	buf[0] = byte(h.Command)
	buf[1] = h.Opt
	binary.BigEndian.PutUint16(buf[2:4], h.ReliableAck)
	binary.BigEndian.PutUint16(buf[4:6], h.Reliable)
	binary.BigEndian.PutUint16(buf[6:8], h.Unreliable)
	copy(buf[HeaderSize:], body)
	return buf
}

// EncodeInto serializes h and body into dst when dst has enough capacity,
// reusing it in place; otherwise it allocates exactly like Encode. This is
// the hook pooled callers (pkg/rudp's Allocator) use to avoid an allocation
// per outbound datagram.
func EncodeInto(dst []byte, h Header, body []byte) []byte {
	total := HeaderSize + len(body)
	if cap(dst) < total {
		dst = make([]byte, total)
	} else {
		dst = dst[:total]
	}
	dst[0] = byte(h.Command)
	dst[1] = h.Opt
	binary.BigEndian.PutUint16(dst[2:4], h.ReliableAck)
	binary.BigEndian.PutUint16(dst[4:6], h.Reliable)
	binary.BigEndian.PutUint16(dst[6:8], h.Unreliable)
	copy(dst[HeaderSize:], body)
	return dst
}

// Decode parses a raw datagram into its header and body. It rejects
// datagrams shorter than HeaderSize, datagrams whose command code is not
// recognised, and datagrams whose body length does not match what the
// command requires — all three are "garbage" per the wire contract and are
// meant to be logged and dropped by the caller, never to crash the engine.
func Decode(data []byte) (Header, []byte, error) {
	if len(data) < HeaderSize {
		return Header{}, nil, fmt.Errorf("wire: short datagram (%d bytes < %d)", len(data), HeaderSize)
	}
	h := Header{
		Command:     Command(data[0]),
		Opt:         data[1],
		ReliableAck: binary.BigEndian.Uint16(data[2:4]),
		Reliable:    binary.BigEndian.Uint16(data[4:6]),
		Unreliable:  binary.BigEndian.Uint16(data[6:8]),
	}
	body := data[HeaderSize:]

	if err := validate(h, body); err != nil {
		return Header{}, nil, err
	}
	return h, body, nil
}

func validate(h Header, body []byte) error {
	switch {
	case h.Command == CmdNoop, h.Command == CmdClose:
		return nil
	case h.Command == CmdConnReq:
		if len(body) != connReqBodySize {
			return fmt.Errorf("wire: CONN_REQ body = %d bytes, want %d", len(body), connReqBodySize)
		}
		return nil
	case h.Command == CmdConnRsp:
		if len(body) != connRspBodySize {
			return fmt.Errorf("wire: CONN_RSP body = %d bytes, want %d", len(body), connRspBodySize)
		}
		return nil
	case h.Command == CmdPing, h.Command == CmdPong:
		if len(body) != pingPongBodySize {
			return fmt.Errorf("wire: PING/PONG body = %d bytes, want %d", len(body), pingPongBodySize)
		}
		return nil
	case h.Command >= CmdAppBase:
		userCmd := uint8(h.Command - CmdAppBase)
		if userCmd > MaxUserCommand {
			return fmt.Errorf("wire: user command 0x%02X exceeds max 0x%02X", userCmd, MaxUserCommand)
		}
		return nil
	default:
		return fmt.Errorf("wire: unrecognised command 0x%02X", h.Command)
	}
}

// EncodeConnReq builds a CONN_REQ body. The nonce is currently always zero.
func EncodeConnReq() []byte {
	return make([]byte, connReqBodySize)
}

// EncodeConnRsp builds a CONN_RSP body with accepted=1.
func EncodeConnRsp() []byte {
	body := make([]byte, connRspBodySize)
	binary.BigEndian.PutUint32(body, 1)
	return body
}

// EncodePingPong builds a PING/PONG body carrying a millisecond timestamp.
func EncodePingPong(timestampMs int64) []byte {
	body := make([]byte, pingPongBodySize)
	binary.BigEndian.PutUint64(body, uint64(timestampMs))
	return body
}

// DecodePingPong extracts the millisecond timestamp from a PING/PONG body.
// Callers must have already validated the body length via Decode.
func DecodePingPong(body []byte) int64 {
	return int64(binary.BigEndian.Uint64(body))
}

// NewAppCommand converts a user command (0..MaxUserCommand) to the Command
// value placed on the wire.
func NewAppCommand(userCommand uint8) (Command, error) {
	if userCommand > MaxUserCommand {
		return 0, fmt.Errorf("wire: user command 0x%02X exceeds max 0x%02X", userCommand, MaxUserCommand)
	}
	return CmdAppBase + Command(userCommand), nil
}
