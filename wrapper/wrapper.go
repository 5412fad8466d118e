// Package wrapper implements the DLMS Wrapper header used instead of HDLC on TCP/IP.
//
// The wrapper adds a 8-byte header containing:
//   - Version (2 bytes): Always 0x0001
//   - Source WPORT (2 bytes): Logical address of sender
//   - Destination WPORT (2 bytes): Logical address of receiver
//   - Length (2 bytes): Payload length
//
// Usage:
//
//	w := wrapper.New(1, 1)
//	frame, err := w.Encode(nil, apdu)
//	w.Feed(received)
//	apdu, err = w.Next()
package wrapper

import (
	"errors"
	"fmt"
	"io"

	"github.com/cybroslabs/dlms-session-go/base"
	"go.uber.org/zap"
)

const (
	Version       = 0x0001
	HeaderLength  = 8
	MaxPayloadLen = 0xffff
)

var (
	ErrInvalidVersion  = errors.New("invalid wrapper version")
	ErrAddressMismatch = errors.New("invalid source or destination")
)

type Header struct {
	Version     uint16
	Source      uint16
	Destination uint16
	Length      uint16
}

// ParseHeader decodes the first 8 bytes, the version is not checked here.
func ParseHeader(b []byte) (h Header, err error) {
	if len(b) < HeaderLength {
		return h, base.NewFramingError(fmt.Errorf("short wrapper header: %d bytes", len(b)))
	}
	h.Version = uint16(b[0])<<8 | uint16(b[1])
	h.Source = uint16(b[2])<<8 | uint16(b[3])
	h.Destination = uint16(b[4])<<8 | uint16(b[5])
	h.Length = uint16(b[6])<<8 | uint16(b[7])
	return h, nil
}

func (h Header) Append(dst []byte) []byte {
	return append(dst,
		byte(h.Version>>8), byte(h.Version),
		byte(h.Source>>8), byte(h.Source),
		byte(h.Destination>>8), byte(h.Destination),
		byte(h.Length>>8), byte(h.Length))
}

// Wrapper frames outgoing apdus and cuts incoming byte stream into apdus of one source/destination pair.
// Incoming data are buffered until the whole announced payload arrived.
type Wrapper struct {
	logger      *zap.SugaredLogger
	source      uint16
	destination uint16
	buffer      []byte // received, not yet consumed bytes
}

func (w *Wrapper) logf(format string, v ...any) {
	if w.logger != nil {
		w.logger.Infof(format, v...)
	}
}

func (w *Wrapper) dlogf(format string, v ...any) {
	if w.logger != nil {
		w.logger.Debugf(format, v...)
	}
}

// New creates a wrapper layer, source and destination are WPORT addresses of this side and the peer.
func New(source uint16, destination uint16) *Wrapper {
	return &Wrapper{
		source:      source,
		destination: destination,
	}
}

func (w *Wrapper) SetLogger(logger *zap.SugaredLogger) {
	w.logger = logger
}

func (w *Wrapper) Source() uint16 {
	return w.source
}

func (w *Wrapper) Destination() uint16 {
	return w.destination
}

// Encode appends header and apdu to dst.
func (w *Wrapper) Encode(dst []byte, apdu []byte) ([]byte, error) {
	if len(apdu) > MaxPayloadLen {
		return dst, fmt.Errorf("%w: packet too big: size=%d max=%d", base.ErrInvalidArgument, len(apdu), MaxPayloadLen)
	}
	h := Header{Version: Version, Source: w.source, Destination: w.destination, Length: uint16(len(apdu))}
	dst = h.Append(dst)
	w.dlogf("%s", base.LogHex("wrapper TX", apdu))
	return append(dst, apdu...), nil
}

// Feed stores received bytes, they are consumed by Next.
func (w *Wrapper) Feed(b []byte) {
	w.buffer = append(w.buffer, b...)
}

// Buffered returns amount of received bytes not consumed yet.
func (w *Wrapper) Buffered() int {
	return len(w.buffer)
}

// Next returns the next complete apdu or nil if it hasnt fully arrived yet.
// Frame with wrong version or addresses is dropped and reported as framing error.
func (w *Wrapper) Next() ([]byte, error) {
	if len(w.buffer) < HeaderLength {
		return nil, nil
	}
	h, _ := ParseHeader(w.buffer)
	if h.Version != Version {
		// the stream can't be resynchronized
		w.buffer = w.buffer[:0]
		return nil, base.NewFramingError(fmt.Errorf("%w: 0x%04x", ErrInvalidVersion, h.Version))
	}
	total := HeaderLength + int(h.Length)
	if len(w.buffer) < total {
		return nil, nil
	}
	apdu := make([]byte, h.Length)
	copy(apdu, w.buffer[HeaderLength:total])
	w.buffer = append(w.buffer[:0], w.buffer[total:]...)

	if err := w.check(h); err != nil {
		return nil, err
	}
	w.dlogf("%s", base.LogHex("wrapper RX", apdu))
	return apdu, nil
}

func (w *Wrapper) check(h Header) error {
	if h.Source != w.destination || h.Destination != w.source {
		w.logf("dropping wrapper frame from %d to %d, expecting %d to %d", h.Source, h.Destination, w.destination, w.source)
		return base.NewFramingError(fmt.Errorf("%w: got %d->%d", ErrAddressMismatch, h.Source, h.Destination))
	}
	return nil
}

// ReadFrame reads exactly one frame from r, the header is read first and then the announced payload.
func (w *Wrapper) ReadFrame(r io.Reader) ([]byte, error) {
	var hdr [HeaderLength]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	h, _ := ParseHeader(hdr[:])
	if h.Version != Version {
		return nil, base.NewFramingError(fmt.Errorf("%w: 0x%04x", ErrInvalidVersion, h.Version))
	}
	apdu := make([]byte, h.Length)
	if _, err := io.ReadFull(r, apdu); err != nil {
		return nil, err
	}
	if err := w.check(h); err != nil {
		return nil, err
	}
	w.dlogf("%s", base.LogHex("wrapper RX", apdu))
	return apdu, nil
}
