package rudp

import (
	"fmt"
	"net"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"

	"go-rudp/internal/scheduler"
	"go-rudp/internal/wire"
)

// State is one of the four lifecycle states a Peer moves through
// (SPEC_FULL.md §3).
type State int

const (
	StateNew State = iota
	StateConnecting
	StateRun
	StateDead
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateConnecting:
		return "connecting"
	case StateRun:
		return "run"
	case StateDead:
		return "dead"
	default:
		return "unknown"
	}
}

// inSeqReliableSentinel is the "no reliable datagram accepted yet" value a
// fresh or reset peer's in_seq_reliable holds. The handshake datagram that
// completes a NEW or CONNECTING peer bypasses sequence classification (see
// receive), so its Reliable value is adopted whatever it is, including
// 0x0000 and this sentinel.
const inSeqReliableSentinel uint16 = 0xFFFF

// Peer is one reliable-transport connection endpoint: the protocol engine's
// entire state machine (SPEC_FULL.md §3, §4.2) lives here, exercised
// identically whether the Peer was created by a Client's single outbound
// connection or by a Server's inbound demux.
//
// A Peer has no internal lock. Client/Server post every inbound datagram
// onto the owning internal/scheduler.Loop goroutine, and the peer's own
// timer callbacks are posted onto the same loop. Exported methods (Send,
// CloseWithoutQueue, and the Client/Server methods that reach a Peer) do
// no posting of their own: they run on whichever goroutine calls them.
type Peer struct {
	id         xid.ID
	remoteAddr net.Addr
	state      State

	inSeqReliable   uint16
	inSeqUnreliable uint16
	outSeqReliable  uint16
	outSeqAcked     uint16
	outSeqUnreliable uint16

	srttMs   int64
	rttvarMs int64
	rtoMs    int64

	lastOutTimeMs        int64
	absTimeoutDeadlineMs int64
	// mustAck is set on every reliable receipt and only cleared by
	// initSequenceState, so once set every later datagram carries the ACK
	// bit (the reference's idempotent-piggyback quirk, kept as is).
	mustAck              bool
	sendErr              error

	queue sendQueue
	timer scheduler.TimerHandle

	cfg       Config
	transport Transport
	loop      *scheduler.Loop
	handler   Handler
	log       zerolog.Logger

	actionTimeoutMs int64
	dropTimeoutMs   int64
	maxRTOms        int64

	// onRun fires exactly once, the first time the peer reaches StateRun —
	// it is the client's "connected" callback or the server's "peer_new"
	// callback, depending on which role created the peer.
	onRun func(*Peer)
}

func newPeer(cfg Config, remoteAddr net.Addr, transport Transport, loop *scheduler.Loop, handler Handler, onRun func(*Peer), now int64) *Peer {
	p := &Peer{
		id:         xid.New(),
		remoteAddr: remoteAddr,
		cfg:        cfg,
		transport:  transport,
		loop:       loop,
		handler:    handler,
		log:        cfg.Logger.With().Str("peer", "").Logger(),
		onRun:      onRun,

		actionTimeoutMs: cfg.ActionTimeout.Milliseconds(),
		dropTimeoutMs:   cfg.DropTimeout.Milliseconds(),
		maxRTOms:        cfg.MaxRTO.Milliseconds(),
	}
	p.log = cfg.Logger.With().Str("peer", p.id.String()).Logger()
	p.initSequenceState(now)
	return p
}

func (p *Peer) initSequenceState(now int64) {
	p.state = StateNew
	p.outSeqReliable = p.cfg.PRNG.Uint16()
	p.outSeqAcked = p.outSeqReliable - 1
	p.outSeqUnreliable = 0
	p.inSeqReliable = inSeqReliableSentinel
	p.inSeqUnreliable = 0
	p.srttMs = p.cfg.InitialSRTT.Milliseconds()
	p.rttvarMs = p.cfg.InitialRTTVar.Milliseconds()
	p.rtoMs = p.maxRTOms
	p.mustAck = false
	p.sendErr = nil
	p.lastOutTimeMs = now
	p.refreshDeadline(now)
}

// reset returns a peer to StateNew with a fresh sequence epoch, discarding
// its queue — the client role's reconnect path reuses the same Peer value
// rather than allocating a new one (SPEC_FULL.md §4.3).
func (p *Peer) reset(now int64) {
	p.cancelTimer()
	p.queue.drain()
	p.initSequenceState(now)
}

// --- public accessors -----------------------------------------------------

func (p *Peer) ID() string          { return p.id.String() }
func (p *Peer) RemoteAddr() net.Addr { return p.remoteAddr }
func (p *Peer) State() State         { return p.state }
func (p *Peer) SRTTMillis() int64    { return p.srttMs }
func (p *Peer) RTTVarMillis() int64  { return p.rttvarMs }
func (p *Peer) RTOMillis() int64     { return p.rtoMs }
func (p *Peer) QueueDepth() int      { return p.queue.len() }

// LinkInfo returns a one-line diagnostic summary, in the spirit of the
// teacher's GetPlayerCount/debug-line helpers (source/server/server.go).
func (p *Peer) LinkInfo() string {
	return fmt.Sprintf("peer=%s addr=%s state=%s srtt=%dms rttvar=%dms rto=%dms queue=%d",
		p.id, p.remoteAddr, p.state, p.srttMs, p.rttvarMs, p.rtoMs, p.queue.len())
}

// takeSendError returns and clears any error the transport surfaced during
// the most recent service pass — surfaced lazily, on the next user-visible Send
// call, per SPEC_FULL.md §7.
func (p *Peer) takeSendError() error {
	err := p.sendErr
	p.sendErr = nil
	return err
}

// --- sending ---------------------------------------------------------------

// Send enqueues an application payload, reliably or unreliably.
func (p *Peer) Send(userCommand uint8, payload []byte, reliable bool) error {
	if p.state == StateDead {
		return ErrPeerDead
	}
	if p.state != StateRun {
		return fmt.Errorf("%w: peer is %s, not run", ErrInvalidArgument, p.state)
	}
	cmd, err := wire.NewAppCommand(userCommand)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	body := append([]byte(nil), payload...)
	if reliable {
		p.enqueueReliable(cmd, body)
	} else {
		p.enqueueUnreliable(cmd, body)
	}
	if sendErr := p.takeSendError(); sendErr != nil {
		return fmt.Errorf("%w: %v", ErrTransport, sendErr)
	}
	return nil
}

// sendConnect moves a freshly created peer into CONNECTING by enqueuing a
// reliable CONN_REQ, the client role's local send_connect (SPEC_FULL.md
// §4.3).
func (p *Peer) sendConnect(now int64) {
	p.state = StateConnecting
	p.enqueueReliable(wire.CmdConnReq, wire.EncodeConnReq())
}

func (p *Peer) enqueueConnRsp() {
	p.enqueueUnreliable(wire.CmdConnRsp, wire.EncodeConnRsp())
}

func (p *Peer) enqueueReliable(command wire.Command, body []byte) {
	seq := p.outSeqReliable
	p.outSeqReliable++
	p.outSeqUnreliable = 0
	p.queue.pushBack(chainEntry{command: command, reliable: true, reliableSeq: seq, body: body})
	p.service(p.cfg.Clock.NowMs())
}

func (p *Peer) enqueueUnreliable(command wire.Command, body []byte) {
	p.outSeqUnreliable++
	p.queue.pushBack(chainEntry{
		command:  command,
		reliable: false,
		// Tagged with the last reliable sequence assigned (the current
		// epoch), which is what the remote holds as in_seq_reliable.
		reliableSeq:   p.outSeqReliable - 1,
		unreliableSeq: p.outSeqUnreliable,
		body:          body,
	})
	p.service(p.cfg.Clock.NowMs())
}

// CloseWithoutQueue transmits a bare CLOSE directly, bypassing the send
// queue and the service pass entirely, then tears the peer down locally
// (SPEC_FULL.md §4.3's close path). It is the only packet the engine ever
// sends without going through enqueue+service.
func (p *Peer) CloseWithoutQueue() {
	if p.state == StateDead {
		return
	}
	p.outSeqUnreliable++
	hdr := wire.Header{Command: wire.CmdClose, Reliable: p.outSeqReliable - 1, Unreliable: p.outSeqUnreliable}
	buf := p.cfg.Allocator.Get(p.cfg.ReceiveBufferSize)
	raw := wire.EncodeInto(buf, hdr, nil)
	err := p.transport.SendTo(p.remoteAddr, raw)
	p.cfg.Allocator.Put(buf)
	if err != nil {
		p.log.Debug().Err(err).Msg("rudp: close-without-queue send failed")
	}
	p.cancelTimer()
	p.queue.drain()
	p.state = StateDead
}

// --- reception pipeline (SPEC_FULL.md §4.2) --------------------------------

// receive runs one inbound datagram through the full reception pipeline:
// ack processing, sequence classification, dispatch, and liveness refresh.
func (p *Peer) receive(h wire.Header, body []byte, now int64) {
	if p.state == StateDead {
		return
	}

	if h.IsAck() {
		if !p.processAck(h.ReliableAck) {
			p.log.Debug().Err(ErrAckUnsent).Msg("rudp: rejecting datagram")
			return
		}
	}

	var sequenced, retransmitted, unsequenced bool
	if (p.state == StateNew && h.Command == wire.CmdConnReq) ||
		(p.state == StateConnecting && h.Command == wire.CmdConnRsp) {
		// Handshake pairing is decided by state, not by sequence number.
		unsequenced = true
	} else if h.IsReliable() {
		switch {
		case h.Reliable == p.inSeqReliable:
			retransmitted = true
		case wire.SeqDelta(p.inSeqReliable, h.Reliable) == 1:
			sequenced = true
		default:
			unsequenced = true
		}
	} else {
		switch {
		case h.Reliable != p.inSeqReliable:
			unsequenced = true
		case wire.SeqGreater(p.inSeqUnreliable, h.Unreliable):
			sequenced = true
		default:
			unsequenced = true
		}
	}

	if h.IsReliable() {
		p.mustAck = true
	}

	switch {
	case unsequenced:
		p.handleUnsequenced(h, now)
	case retransmitted:
		p.refreshDeadline(now)
	case sequenced:
		if h.IsReliable() {
			p.inSeqReliable = h.Reliable
			p.inSeqUnreliable = 0
		} else {
			p.inSeqUnreliable = h.Unreliable
		}
		p.refreshDeadline(now)
		p.dispatch(h, body, now)
	}

	p.service(now)
}

// handleUnsequenced covers the two handshake pairings the protocol
// recognises outside of normal sequence order, plus the garbage-drop
// default.
func (p *Peer) handleUnsequenced(h wire.Header, now int64) {
	switch {
	case p.state == StateNew && h.Command == wire.CmdConnReq:
		p.inSeqReliable = h.Reliable
		p.inSeqUnreliable = 0
		p.refreshDeadline(now)
		p.enqueueConnRsp()
		p.transitionToRun()
	case p.state == StateConnecting && h.Command == wire.CmdConnRsp:
		p.inSeqReliable = h.Reliable
		p.inSeqUnreliable = 0
		p.refreshDeadline(now)
		p.transitionToRun()
	default:
		p.log.Debug().Uint8("command", uint8(h.Command)).Msg("rudp: dropping unsequenced datagram")
	}
}

func (p *Peer) transitionToRun() {
	if p.state == StateRun {
		return
	}
	p.state = StateRun
	if p.onRun != nil {
		fn := p.onRun
		p.onRun = nil
		fn(p)
	}
}

// dispatch handles an in-order (SEQUENCED) datagram's command.
func (p *Peer) dispatch(h wire.Header, body []byte, now int64) {
	switch h.Command {
	case wire.CmdClose:
		p.die()
	case wire.CmdPing:
		if p.state == StateRun && !h.IsRetransmitted() {
			p.enqueueUnreliable(wire.CmdPong, append([]byte(nil), body...))
		}
	case wire.CmdPong:
		if p.state == StateRun && !h.IsRetransmitted() {
			p.updateRTT(now - wire.DecodePingPong(body))
		}
	case wire.CmdNoop, wire.CmdConnReq, wire.CmdConnRsp:
		// Handshake commands carry no post-acceptance payload semantics.
	default:
		if p.state != StateRun {
			return
		}
		if userCmd, ok := h.IsApp(); ok {
			p.handler.HandlePacket(p, userCmd, body)
		}
	}
}

func (p *Peer) refreshDeadline(now int64) {
	p.absTimeoutDeadlineMs = now + p.dropTimeoutMs
}

func (p *Peer) die() {
	if p.state == StateDead {
		return
	}
	p.state = StateDead
	p.cancelTimer()
	p.queue.drain()
	if p.handler != nil {
		p.handler.Dropped(p)
	}
}

// --- ack processing (SPEC_FULL.md §4.2) ------------------------------------

// processAck folds an incoming reliable_ack into the peer's outbound state.
// It returns false when the whole datagram must be rejected: the ack claims
// a sequence the peer never sent.
func (p *Peer) processAck(ack uint16) bool {
	if wire.SeqDelta(p.outSeqAcked, ack) < 0 {
		// Stale ack: acknowledges something already acknowledged. Ignored,
		// not rejected.
		return true
	}
	if wire.SeqDelta(p.outSeqReliable, ack) > 0 {
		return false
	}
	p.outSeqAcked = ack
	var ackedCount int
	p.queue.removeAckedPrefix(func(e chainEntry) bool {
		qualifies := e.reliable && e.retransmitted && wire.SeqDelta(ack, e.reliableSeq) <= 0
		if qualifies {
			ackedCount++
		}
		return qualifies
	})
	p.cfg.Metrics.ReliableAcked.Add(float64(ackedCount))
	return true
}

// updateRTT folds one fresh round-trip sample into the Jacobson/Karels
// estimator (SPEC_FULL.md §4.2).
func (p *Peer) updateRTT(sampleMs int64) {
	if sampleMs < 0 {
		return
	}
	diff := sampleMs - p.srttMs
	if diff < 0 {
		diff = -diff
	}
	p.rttvarMs = (3*p.rttvarMs + diff) / 4
	p.srttMs = (7*p.srttMs + sampleMs) / 8
	p.rtoMs = p.srttMs
	if p.rtoMs > p.maxRTOms {
		p.rtoMs = p.maxRTOms
	}
	p.cfg.Metrics.SRTTMillis.Observe(float64(p.srttMs))
	p.cfg.Metrics.RTOMillis.Observe(float64(p.rtoMs))
}

// --- service / send pass (SPEC_FULL.md §4.2, §9) ---------------------------

// service is the single procedure that turns queued entries into datagrams,
// ages the retransmission timer, enqueues keepalive traffic, and checks the
// absolute liveness deadline. It runs inline after every enqueue and
// reception, and again whenever its own armed timer fires.
func (p *Peer) service(now int64) {
	if p.state == StateDead {
		return
	}
	if now >= p.absTimeoutDeadlineMs {
		p.die()
		return
	}

	if p.queue.empty() && p.state == StateRun && now-p.lastOutTimeMs >= p.actionTimeoutMs {
		p.outSeqUnreliable = 0 // keepalive is reliable; mirrors enqueueReliable's invariant
		p.enqueueReliableNoRecurse(wire.CmdPing, wire.EncodePingPong(now))
	}

	rescheduleDelay := p.actionTimeoutMs
	broke := false
	kept := make([]chainEntry, 0, p.queue.len())

	for i := 0; i < p.queue.len(); i++ {
		e := p.queue.at(i)
		if broke {
			kept = append(kept, e)
			continue
		}

		hdr := wire.Header{Command: e.command, Reliable: e.reliableSeq, Unreliable: e.unreliableSeq}
		if e.reliable {
			hdr.Opt |= wire.OptReliable
			hdr.Unreliable = 0
			if e.retransmitted {
				hdr.Opt |= wire.OptRetransmitted
			}
		}
		if p.mustAck {
			hdr.Opt |= wire.OptAck
			hdr.ReliableAck = p.inSeqReliable
		}
		buf := p.cfg.Allocator.Get(p.cfg.ReceiveBufferSize)
		raw := wire.EncodeInto(buf, hdr, e.body)
		if err := p.transport.SendTo(p.remoteAddr, raw); err != nil {
			p.sendErr = err
		}
		p.cfg.Allocator.Put(buf)
		p.lastOutTimeMs = now

		switch {
		case e.reliable && e.retransmitted:
			p.rtoMs *= 2
			if p.rtoMs > p.maxRTOms {
				p.rtoMs = p.maxRTOms
			}
			p.cfg.Metrics.ReliableRetransmitted.Inc()
			kept = append(kept, e)
			if p.rtoMs < rescheduleDelay {
				rescheduleDelay = p.rtoMs
			}
			broke = true
		case e.reliable:
			e.retransmitted = true
			p.cfg.Metrics.ReliableSent.Inc()
			kept = append(kept, e)
			if p.rtoMs < rescheduleDelay {
				rescheduleDelay = p.rtoMs
			}
		default:
			// Unreliable: transmitted once, then discarded.
			p.cfg.Metrics.UnreliableSent.Inc()
		}
	}
	p.queue.rewrite(kept)

	if p.state == StateDead {
		return
	}
	if remain := p.absTimeoutDeadlineMs - now; remain < rescheduleDelay {
		rescheduleDelay = remain
	}
	if rescheduleDelay < 1 {
		rescheduleDelay = 1
	}
	p.armTimer(time.Duration(rescheduleDelay) * time.Millisecond)
}

// enqueueReliableNoRecurse is enqueueReliable without the trailing inline
// service() call, used from inside service() itself to avoid recursing.
func (p *Peer) enqueueReliableNoRecurse(command wire.Command, body []byte) {
	seq := p.outSeqReliable
	p.outSeqReliable++
	p.queue.pushBack(chainEntry{command: command, reliable: true, reliableSeq: seq, body: body})
}

func (p *Peer) armTimer(d time.Duration) {
	p.cancelTimer()
	p.timer = p.loop.After(d, func() {
		p.service(p.cfg.Clock.NowMs())
	})
}

func (p *Peer) cancelTimer() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}
