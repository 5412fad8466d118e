package hdlc

import (
	"context"
	"errors"
	"fmt"

	"github.com/cybroslabs/dlms-session-go/base"
	"github.com/looplab/fsm"
	"go.uber.org/zap"
)

type LinkState string

const (
	StateDisconnected  LinkState = "disconnected"
	StateConnecting    LinkState = "connecting"
	StateConnected     LinkState = "connected"
	StateDisconnecting LinkState = "disconnecting"
)

const (
	eventSNRM         = "snrm"
	eventUA           = "ua"
	eventDisconnect   = "disconnect"
	eventDisconnected = "disconnected"
	eventMode         = "dm"

	DefaultMaxRetries = 3
)

var (
	ErrUnexpectedFrame  = errors.New("unexpected frame for link state")
	ErrFrameRejected    = errors.New("frame rejected by peer")
	ErrRetriesExhausted = errors.New("retransmission budget exhausted")
)

type Direction byte

const (
	DirectionReceived Direction = 0
	DirectionSent     Direction = 1
)

func (d Direction) String() string {
	if d == DirectionSent {
		return "sent"
	}
	return "received"
}

// LinkSettings configures a Link.
type LinkSettings struct {
	MaxRetries int // tolerated rejections of one frame, 0 means DefaultMaxRetries
	Logger     *zap.SugaredLogger
}

// Link tracks the HDLC connection state, one instance per connection.
type Link struct {
	machine      *fsm.FSM
	logger       *zap.SugaredLogger
	maxretries   int
	rejections   int
	ondisconnect []func()
}

func NewLink(settings *LinkSettings) *Link {
	l := &Link{maxretries: DefaultMaxRetries}
	if settings != nil {
		l.logger = settings.Logger
		if settings.MaxRetries > 0 {
			l.maxretries = settings.MaxRetries
		}
	}
	l.machine = fsm.NewFSM(
		string(StateDisconnected),
		fsm.Events{
			{Name: eventSNRM, Src: []string{string(StateDisconnected)}, Dst: string(StateConnecting)},
			{Name: eventUA, Src: []string{string(StateConnecting)}, Dst: string(StateConnected)},
			{Name: eventDisconnect, Src: []string{string(StateConnected)}, Dst: string(StateDisconnecting)},
			{Name: eventDisconnected, Src: []string{string(StateDisconnecting)}, Dst: string(StateDisconnected)},
			{Name: eventMode, Src: []string{string(StateConnecting), string(StateConnected), string(StateDisconnecting)}, Dst: string(StateDisconnected)},
		},
		fsm.Callbacks{
			"enter_state": l.onenter,
		},
	)
	return l
}

func (l *Link) logf(format string, v ...any) {
	if l.logger != nil {
		l.logger.Infof(format, v...)
	}
}

func (l *Link) SetLogger(logger *zap.SugaredLogger) {
	l.logger = logger
}

// OnDisconnect registers a hook run every time the link enters disconnected state, session reset belongs here.
func (l *Link) OnDisconnect(f func()) {
	l.ondisconnect = append(l.ondisconnect, f)
}

func (l *Link) State() LinkState {
	return LinkState(l.machine.Current())
}

func (l *Link) IsConnected() bool {
	return l.State() == StateConnected
}

// Receive applies a frame received from the peer.
func (l *Link) Receive(ctx context.Context, ft FrameType) error {
	return l.apply(ctx, ft, DirectionReceived)
}

// Send applies a frame about to be sent to the peer.
func (l *Link) Send(ctx context.Context, ft FrameType) error {
	return l.apply(ctx, ft, DirectionSent)
}

func (l *Link) apply(ctx context.Context, ft FrameType, dir Direction) error {
	state := l.State()
	var event string
	switch ft {
	case FrameSNRM:
		event = eventSNRM
	case FrameUA:
		event = eventUA
		if state == StateDisconnecting {
			event = eventDisconnected // UA is a valid answer to DISC as well
		}
	case FrameDisconnectRequest:
		event = eventDisconnect
	case FrameDisconnectResponse:
		event = eventDisconnected
	case FrameDisconnectMode:
		event = eventMode
	case FrameAARQ, FrameAARE: // association layer, link state is kept
		if state != StateConnected {
			return l.unexpected(ft, dir, state)
		}
		if dir == DirectionReceived {
			l.Acknowledged()
		}
		return nil
	case FrameRejected:
		if state != StateConnected {
			return l.unexpected(ft, dir, state)
		}
		if dir == DirectionSent {
			return nil
		}
		l.rejections++
		if l.rejections > l.maxretries {
			l.logf("link: %d rejections received, giving up", l.rejections)
			return base.NewLinkError(fmt.Errorf("%w: %d rejections", ErrRetriesExhausted, l.rejections))
		}
		return base.NewFramingError(fmt.Errorf("%w (%d/%d)", ErrFrameRejected, l.rejections, l.maxretries))
	default:
		return l.unexpected(ft, dir, state)
	}

	if !l.machine.Can(event) {
		return l.unexpected(ft, dir, state)
	}
	if err := l.machine.Event(ctx, event); err != nil {
		return base.NewFramingError(fmt.Errorf("link transition %s failed: %w", event, err))
	}
	if ft == FrameUA && l.State() == StateConnected {
		l.rejections = 0
	}
	return nil
}

// Acknowledged is called when the peer answered a frame, the rejection budget is per frame.
func (l *Link) Acknowledged() {
	l.rejections = 0
}

// Reset forces disconnected state, used after transport failure or timeout.
func (l *Link) Reset(ctx context.Context) {
	if l.State() == StateDisconnected {
		return
	}
	if err := l.machine.Event(ctx, eventMode); err != nil {
		l.machine.SetState(string(StateDisconnected))
		l.rundisconnect()
	}
}

func (l *Link) unexpected(ft FrameType, dir Direction, state LinkState) error {
	return base.NewFramingError(fmt.Errorf("%w: %s %s in state %s", ErrUnexpectedFrame, ft, dir, state))
}

func (l *Link) onenter(_ context.Context, e *fsm.Event) {
	l.logf("link: %s -> %s (%s)", e.Src, e.Dst, e.Event)
	if e.Dst == string(StateDisconnected) {
		l.rejections = 0
		l.rundisconnect()
	}
}

func (l *Link) rundisconnect() {
	for _, f := range l.ondisconnect {
		f()
	}
}
