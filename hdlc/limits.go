package hdlc

import (
	"fmt"

	"github.com/cybroslabs/dlms-session-go/base"
)

const (
	DefaultMaxInfo    = 128
	DefaultWindowSize = 1

	minInfo   = 32
	maxInfo   = 2030
	maxWindow = 7

	paramMaxInfoTX    = 5
	paramMaxInfoRX    = 6
	paramWindowSizeTX = 7
	paramWindowSizeRX = 8
)

// Limits are the negotiated HDLC flow control parameters seen from the local station.
type Limits struct {
	MaxInfoTX    uint16
	MaxInfoRX    uint16
	WindowSizeTX uint8
	WindowSizeRX uint8
}

func DefaultLimits() Limits {
	return Limits{
		MaxInfoTX:    DefaultMaxInfo,
		MaxInfoRX:    DefaultMaxInfo,
		WindowSizeTX: DefaultWindowSize,
		WindowSizeRX: DefaultWindowSize,
	}
}

func (l Limits) Validate() error {
	if l.MaxInfoTX < minInfo || l.MaxInfoTX > maxInfo {
		return fmt.Errorf("%w: max info TX %d out of range", base.ErrInvalidArgument, l.MaxInfoTX)
	}
	if l.MaxInfoRX < minInfo || l.MaxInfoRX > maxInfo {
		return fmt.Errorf("%w: max info RX %d out of range", base.ErrInvalidArgument, l.MaxInfoRX)
	}
	if l.WindowSizeTX < 1 || l.WindowSizeTX > maxWindow {
		return fmt.Errorf("%w: window size TX %d out of range", base.ErrInvalidArgument, l.WindowSizeTX)
	}
	if l.WindowSizeRX < 1 || l.WindowSizeRX > maxWindow {
		return fmt.Errorf("%w: window size RX %d out of range", base.ErrInvalidArgument, l.WindowSizeRX)
	}
	return nil
}

// IsDefault reports that SNRM/UA can be sent without parameters at all.
func (l Limits) IsDefault() bool {
	return l == DefaultLimits()
}

// Parameters encodes the SNRM or UA information field proposing these limits.
func (l Limits) Parameters() []byte {
	p := make([]byte, 0, 23)
	// format identifier, group identifier, group length
	p = append(p, 0x81, 0x80, 0)
	if l.MaxInfoTX > 0xff || l.MaxInfoRX > 0xff {
		// longer snrm
		p = append(p, paramMaxInfoTX, 2, byte(l.MaxInfoTX>>8), byte(l.MaxInfoTX), paramMaxInfoRX, 2, byte(l.MaxInfoRX>>8), byte(l.MaxInfoRX))
	} else {
		p = append(p, paramMaxInfoTX, 1, byte(l.MaxInfoTX), paramMaxInfoRX, 1, byte(l.MaxInfoRX))
	}
	p = append(p, paramWindowSizeTX, 4, 0, 0, 0, l.WindowSizeTX, paramWindowSizeRX, 4, 0, 0, 0, l.WindowSizeRX)
	p[2] = byte(len(p) - 3)
	return p
}

// Negotiate takes the peer's proposal (its own point of view) and returns limits usable by both sides.
// Empty info keeps the defaults as required by the standard.
func (l Limits) Negotiate(info []byte) (Limits, error) {
	peer := DefaultLimits()
	if len(info) != 0 {
		var err error
		peer, err = parseparameters(info)
		if err != nil {
			return l, err
		}
	}
	r := l
	r.MaxInfoTX = min(l.MaxInfoTX, peer.MaxInfoRX)
	r.MaxInfoRX = min(l.MaxInfoRX, peer.MaxInfoTX)
	r.WindowSizeTX = min(l.WindowSizeTX, peer.WindowSizeRX)
	r.WindowSizeRX = min(l.WindowSizeRX, peer.WindowSizeTX)
	if err := r.Validate(); err != nil {
		return l, base.NewFramingError(fmt.Errorf("unusable negotiated limits: %w", err))
	}
	return r, nil
}

func parseparameters(ua []byte) (Limits, error) {
	r := DefaultLimits()
	if len(ua) < 3 {
		return r, base.NewFramingError(fmt.Errorf("%w: too short snrm/ua parameters", ErrInvalidFrame))
	}
	if ua[0] != 0x81 || ua[1] != 0x80 {
		return r, base.NewFramingError(fmt.Errorf("%w: invalid snrm/ua parameters header", ErrInvalidFrame))
	}
	if len(ua) != int(ua[2])+3 {
		return r, base.NewFramingError(fmt.Errorf("%w: invalid snrm/ua parameters length", ErrInvalidFrame))
	}
	for i := 3; i < len(ua); i++ {
		con, t, err := readparameter(ua[i+1:])
		if err != nil {
			return r, err
		}
		switch ua[i] {
		case paramMaxInfoTX:
			r.MaxInfoTX = uint16(min(t, maxInfo))
		case paramMaxInfoRX:
			r.MaxInfoRX = uint16(min(t, maxInfo))
		case paramWindowSizeTX:
			r.WindowSizeTX = uint8(min(t, maxWindow))
		case paramWindowSizeRX:
			r.WindowSizeRX = uint8(min(t, maxWindow))
		default:
			return r, base.NewFramingError(fmt.Errorf("%w: invalid snrm/ua parameter tag: %v", ErrInvalidFrame, ua[i]))
		}
		i += con
	}
	return r, nil
}

func readparameter(t []byte) (int, uint, error) {
	if len(t) < 2 {
		return 0, 0, base.NewFramingError(fmt.Errorf("%w: too short tag", ErrInvalidFrame))
	}
	switch t[0] {
	case 1:
		return 2, uint(t[1]), nil
	case 2:
		if len(t) < 3 {
			return 0, 0, base.NewFramingError(fmt.Errorf("%w: too short tag", ErrInvalidFrame))
		}
		return 3, (uint(t[1]) << 8) | uint(t[2]), nil
	case 4:
		if len(t) < 5 {
			return 0, 0, base.NewFramingError(fmt.Errorf("%w: too short tag", ErrInvalidFrame))
		}
		return 5, (uint(t[1]) << 24) | (uint(t[2]) << 16) | (uint(t[3]) << 8) | uint(t[4]), nil
	default:
		return 0, 0, base.NewFramingError(fmt.Errorf("%w: invalid tag length", ErrInvalidFrame))
	}
}
