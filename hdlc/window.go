package hdlc

import (
	"errors"
	"fmt"
	"slices"

	"github.com/cybroslabs/dlms-session-go/base"
	"go.uber.org/zap"
)

var (
	ErrWindowFull        = errors.New("send window is full")
	ErrPeerBusy          = errors.New("peer is not ready to receive")
	ErrInvalidSequence   = errors.New("invalid sequence number")
	ErrNotSupervisory    = errors.New("not a supervisory frame")
	ErrNotInformation    = errors.New("not an information frame")
	ErrUnknownRetransmit = errors.New("frame requested for retransmission is not pending")
)

type pending struct {
	ns   byte
	info []byte
}

// Retransmission is an I frame to be sent again, control octet already carries the current N(R).
type Retransmission struct {
	Control byte
	Info    []byte
}

// Window keeps N(S)/N(R) numbering and unacknowledged I frames of one connection.
type Window struct {
	logger     *zap.SugaredLogger
	size       int
	vs         byte // next N(S) to send
	vr         byte // next N(S) expected from peer
	unacked    []pending
	peerbusy   bool
	retries    int
	maxretries int
}

func NewWindow(limits Limits, maxretries int) *Window {
	if maxretries <= 0 {
		maxretries = DefaultMaxRetries
	}
	return &Window{
		size:       max(int(limits.WindowSizeTX), 1),
		maxretries: maxretries,
	}
}

func (w *Window) SetLogger(logger *zap.SugaredLogger) {
	w.logger = logger
}

func (w *Window) logf(format string, v ...any) {
	if w.logger != nil {
		w.logger.Debugf(format, v...)
	}
}

// Reset clears sequence numbers, used after SNRM/UA.
func (w *Window) Reset() {
	w.vs = 0
	w.vr = 0
	w.unacked = nil
	w.peerbusy = false
	w.retries = 0
}

func (w *Window) Outstanding() int {
	return len(w.unacked)
}

func (w *Window) PeerBusy() bool {
	return w.peerbusy
}

// NextInformation numbers an outgoing I frame and keeps info until acknowledged.
func (w *Window) NextInformation(info []byte, final bool) (byte, error) {
	if w.peerbusy {
		return 0, base.NewFramingError(ErrPeerBusy)
	}
	if len(w.unacked) >= w.size {
		return 0, base.NewFramingError(fmt.Errorf("%w: %d frames outstanding", ErrWindowFull, len(w.unacked)))
	}
	c := InformationControl(w.vs, w.vr, final)
	w.unacked = append(w.unacked, pending{ns: w.vs, info: slices.Clone(info)})
	w.vs = (w.vs + 1) & 7
	return c, nil
}

// ReceiveInformation checks numbering of a received I frame. When the frame is out of sequence the reply is
// REJ and the frame has to be dropped, otherwise the reply is RR acknowledging it.
func (w *Window) ReceiveInformation(control byte) (accepted bool, reply byte, err error) {
	ns, nr, ok := InformationOf(control)
	if !ok {
		return false, 0, base.NewFramingError(ErrNotInformation)
	}
	if err = w.acknowledge(nr); err != nil {
		return false, 0, err
	}
	if ns != w.vr {
		w.logf("hdlc: out of sequence I frame, N(S)=%d expected %d", ns, w.vr)
		return false, SupervisoryControl(ControlReject, w.vr, true), nil
	}
	w.vr = (w.vr + 1) & 7
	return true, SupervisoryControl(ControlReceiveReady, w.vr, true), nil
}

// ReceiveSupervisory processes RR, RNR, REJ and SREJ and returns frames to be sent again.
func (w *Window) ReceiveSupervisory(control byte) ([]Retransmission, error) {
	ct, nr, ok := SupervisoryOf(control)
	if !ok {
		return nil, base.NewFramingError(ErrNotSupervisory)
	}
	switch ct {
	case ControlReceiveReady:
		w.peerbusy = false
		return nil, w.acknowledge(nr)
	case ControlReceiveNotReady:
		w.peerbusy = true
		return nil, w.acknowledge(nr)
	case ControlReject:
		if err := w.acknowledge(nr); err != nil {
			return nil, err
		}
		if err := w.retry(); err != nil {
			return nil, err
		}
		r := make([]Retransmission, 0, len(w.unacked))
		for _, p := range w.unacked {
			r = append(r, Retransmission{Control: InformationControl(p.ns, w.vr, false), Info: p.info})
		}
		if len(r) > 0 {
			r[len(r)-1].Control |= controlFinal
		}
		w.logf("hdlc: REJ from %d, resending %d frames", nr, len(r))
		return r, nil
	default: // selective reject does not acknowledge anything
		idx := slices.IndexFunc(w.unacked, func(p pending) bool { return p.ns == nr })
		if idx < 0 {
			return nil, base.NewFramingError(fmt.Errorf("%w: N(R)=%d", ErrUnknownRetransmit, nr))
		}
		if err := w.retry(); err != nil {
			return nil, err
		}
		p := w.unacked[idx]
		return []Retransmission{{Control: InformationControl(p.ns, w.vr, true), Info: p.info}}, nil
	}
}

func (w *Window) retry() error {
	w.retries++
	if w.retries > w.maxretries {
		return base.NewLinkError(fmt.Errorf("%w: %d retransmissions", ErrRetriesExhausted, w.retries-1))
	}
	return nil
}

// acknowledge drops frames up to N(R)-1, N(R) has to be inside outstanding range or equal to V(S).
func (w *Window) acknowledge(nr byte) error {
	cnt := int((nr - w.base()) & 7)
	if cnt > len(w.unacked) {
		return base.NewFramingError(fmt.Errorf("%w: N(R)=%d, V(S)=%d, outstanding %d", ErrInvalidSequence, nr, w.vs, len(w.unacked)))
	}
	if cnt > 0 {
		w.unacked = w.unacked[cnt:]
		w.retries = 0
	}
	return nil
}

func (w *Window) base() byte {
	if len(w.unacked) == 0 {
		return w.vs
	}
	return w.unacked[0].ns
}
