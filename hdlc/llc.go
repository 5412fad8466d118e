package hdlc

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/cybroslabs/dlms-session-go/base"
)

var ErrInvalidLLC = errors.New("invalid LLC header")

var (
	llcRequest  = []byte{0xe6, 0xe6, 0x00}
	llcResponse = []byte{0xe6, 0xe7, 0x00}
)

// AddLLC prefixes an APDU with the LLC header, request direction is client to server.
func AddLLC(dst []byte, apdu []byte, request bool) []byte {
	if request {
		dst = append(dst, llcRequest...)
	} else {
		dst = append(dst, llcResponse...)
	}
	return append(dst, apdu...)
}

// StripLLC removes the LLC header of the first I frame of a message, request tells the expected direction.
func StripLLC(info []byte, request bool) ([]byte, error) {
	exp := llcResponse
	if request {
		exp = llcRequest
	}
	if len(info) < len(exp) {
		return nil, base.NewFramingError(fmt.Errorf("%w: too short", ErrInvalidLLC))
	}
	if !bytes.Equal(info[:len(exp)], exp) {
		return nil, base.NewFramingError(fmt.Errorf("%w: % x", ErrInvalidLLC, info[:len(exp)]))
	}
	return info[len(exp):], nil
}
