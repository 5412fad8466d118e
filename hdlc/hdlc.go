// Package hdlc implements the HDLC link layer pieces used beneath DLMS APDUs.
//
// It covers frame encoding and decoding (addresses, control octet, HCS/FCS),
// frame type and supervisory control classification, SNRM/UA parameter
// negotiation of the link limits, the connect/disconnect state machine and
// the N(S)/N(R) window used for acknowledgement and retransmission.
//
// No I/O is performed here, callers push received frames in and take encoded
// frames out, the transport itself is not part of this package.
package hdlc

import (
	"errors"
	"fmt"

	"github.com/cybroslabs/dlms-session-go/base"
)

const (
	flag             = 0x7e
	formatType       = 0xa0
	formatSegmented  = 0x08
	maxFrameLength   = 0x7ff
	controlFinal     = 0x10
	minFrameLength   = 7 // format(2), dest(1), src(1), control(1), fcs(2)
	maxAddressLength = 4
)

var (
	ErrInvalidFrame   = errors.New("invalid frame")
	ErrChecksum       = errors.New("checksum mismatch")
	ErrInvalidAddress = errors.New("invalid address")
)

// Address is an HDLC address, client addresses use Upper only.
type Address struct {
	Upper uint16 // logical device for server, client SAP for client
	Lower uint16 // physical device
}

func (a Address) length() int {
	if a.Upper <= 0x7f {
		if a.Lower == 0 {
			return 1
		}
		if a.Lower <= 0x7f {
			return 2
		}
	}
	return 4
}

func (a Address) validate() error {
	if a.Upper > 0x3fff || a.Lower > 0x3fff {
		return fmt.Errorf("%w: address out of range %v/%v", base.ErrInvalidArgument, a.Upper, a.Lower)
	}
	return nil
}

func (a Address) encode(dst []byte) []byte {
	switch a.length() {
	case 1:
		return append(dst, byte(a.Upper<<1)|1)
	case 2:
		return append(dst, byte(a.Upper<<1), byte(a.Lower<<1)|1)
	default:
		return append(dst, byte(a.Upper>>7)<<1, byte(a.Upper<<1), byte(a.Lower>>7)<<1, byte(a.Lower<<1)|1)
	}
}

func decodeaddress(src []byte) (a Address, n int, err error) {
	for n < len(src) && n < maxAddressLength {
		n++
		if src[n-1]&1 != 0 {
			break
		}
	}
	if n == 0 || src[n-1]&1 == 0 {
		return a, 0, fmt.Errorf("%w: there is no termination bit in address field", ErrInvalidAddress)
	}
	switch n {
	case 1:
		a.Upper = uint16(src[0] >> 1)
	case 2:
		a.Upper = uint16(src[0] >> 1)
		a.Lower = uint16(src[1] >> 1)
	case 4:
		a.Upper = uint16(src[0]>>1)<<7 | uint16(src[1]>>1)
		a.Lower = uint16(src[2]>>1)<<7 | uint16(src[3]>>1)
	default:
		return a, 0, fmt.Errorf("%w: invalid address field length %d", ErrInvalidAddress, n)
	}
	return a, n, nil
}

// Frame is a single HDLC frame of format type 3.
type Frame struct {
	Segmented   bool
	Destination Address
	Source      Address
	Control     byte
	Info        []byte
}

// Final reports P/F bit of the control octet.
func (f *Frame) Final() bool {
	return f.Control&controlFinal != 0
}

// Encode appends the frame including both flags to dst.
func (f *Frame) Encode(dst []byte) ([]byte, error) {
	if err := f.Destination.validate(); err != nil {
		return nil, err
	}
	if err := f.Source.validate(); err != nil {
		return nil, err
	}
	hdrlen := 2 + f.Destination.length() + f.Source.length() + 1
	length := hdrlen + 2
	if len(f.Info) > 0 {
		length += 2 + len(f.Info)
	}
	if length > maxFrameLength {
		return nil, fmt.Errorf("%w: too long packet to encode, %d bytes", base.ErrInvalidArgument, length)
	}

	start := len(dst)
	dst = append(dst, flag)
	format := byte(formatType) | byte(length>>8)&7
	if f.Segmented {
		format |= formatSegmented
	}
	dst = append(dst, format, byte(length))
	dst = f.Destination.encode(dst)
	dst = f.Source.encode(dst)
	dst = append(dst, f.Control)
	body := dst[start+1:]
	if len(f.Info) > 0 {
		hcs := mac_crc16(body)
		dst = append(dst, byte(hcs), byte(hcs>>8))
		dst = append(dst, f.Info...)
		body = dst[start+1:]
	}
	fcs := mac_crc16(body)
	dst = append(dst, byte(fcs), byte(fcs>>8), flag)
	return dst, nil
}

// FrameLength returns full length (flags included) announced by a frame header, 0 if src is too short.
// Frames must not be decoded before this amount of bytes is received.
func FrameLength(src []byte) (int, error) {
	if len(src) < 3 {
		return 0, nil
	}
	if src[0] != flag {
		return 0, base.NewFramingError(fmt.Errorf("%w: missing opening flag", ErrInvalidFrame))
	}
	if src[1]&0xf0 != formatType {
		return 0, base.NewFramingError(fmt.Errorf("%w: invalid starting packet: %X", ErrInvalidFrame, src[1]))
	}
	return int(src[1]&7)<<8 | int(src[2]) + 2, nil
}

// Decode parses one frame including both flags, src has to contain exactly one frame.
func Decode(src []byte) (f Frame, err error) {
	total, err := FrameLength(src)
	if err != nil {
		return f, err
	}
	if total == 0 || len(src) != total {
		return f, base.NewFramingError(fmt.Errorf("%w: announced length %d, have %d bytes", ErrInvalidFrame, total, len(src)))
	}
	if total-2 < minFrameLength {
		return f, base.NewFramingError(fmt.Errorf("%w: too short packet", ErrInvalidFrame))
	}
	if src[total-1] != flag {
		return f, base.NewFramingError(fmt.Errorf("%w: there is no closing tag found", ErrInvalidFrame))
	}
	ori := src[1 : total-1]
	f.Segmented = ori[0]&formatSegmented != 0

	offset := 2
	var n int
	f.Destination, n, err = decodeaddress(ori[offset:])
	if err != nil {
		return f, base.NewFramingError(err)
	}
	offset += n
	f.Source, n, err = decodeaddress(ori[offset:])
	if err != nil {
		return f, base.NewFramingError(err)
	}
	offset += n
	if offset >= len(ori)-2 {
		return f, base.NewFramingError(fmt.Errorf("%w: no space for control field", ErrInvalidFrame))
	}
	f.Control = ori[offset]
	offset++

	rem := len(ori) - offset
	switch {
	case rem == 2: // just fcs and no info
		fcs := mac_crc16(ori[:offset])
		if fcs != uint16(ori[offset])|uint16(ori[offset+1])<<8 {
			return f, base.NewFramingError(fmt.Errorf("fcs: %w", ErrChecksum))
		}
	case rem <= 4:
		return f, base.NewFramingError(fmt.Errorf("%w: invalid packet length", ErrInvalidFrame))
	default: // having some info
		hcs, fcs := mac_crc16_r(ori[:len(ori)-2], offset)
		if hcs != uint16(ori[offset])|uint16(ori[offset+1])<<8 {
			return f, base.NewFramingError(fmt.Errorf("hcs: %w", ErrChecksum))
		}
		if fcs != uint16(ori[len(ori)-2])|uint16(ori[len(ori)-1])<<8 {
			return f, base.NewFramingError(fmt.Errorf("fcs: %w", ErrChecksum))
		}
		f.Info = ori[offset+2 : len(ori)-2] // no copy, info references src
	}
	return f, nil
}

var fcstab = [...]uint16{
	0x0000, 0x1189, 0x2312, 0x329b, 0x4624, 0x57ad, 0x6536, 0x74bf,
	0x8c48, 0x9dc1, 0xaf5a, 0xbed3, 0xca6c, 0xdbe5, 0xe97e, 0xf8f7,
	0x1081, 0x0108, 0x3393, 0x221a, 0x56a5, 0x472c, 0x75b7, 0x643e,
	0x9cc9, 0x8d40, 0xbfdb, 0xae52, 0xdaed, 0xcb64, 0xf9ff, 0xe876,
	0x2102, 0x308b, 0x0210, 0x1399, 0x6726, 0x76af, 0x4434, 0x55bd,
	0xad4a, 0xbcc3, 0x8e58, 0x9fd1, 0xeb6e, 0xfae7, 0xc87c, 0xd9f5,
	0x3183, 0x200a, 0x1291, 0x0318, 0x77a7, 0x662e, 0x54b5, 0x453c,
	0xbdcb, 0xac42, 0x9ed9, 0x8f50, 0xfbef, 0xea66, 0xd8fd, 0xc974,
	0x4204, 0x538d, 0x6116, 0x709f, 0x0420, 0x15a9, 0x2732, 0x36bb,
	0xce4c, 0xdfc5, 0xed5e, 0xfcd7, 0x8868, 0x99e1, 0xab7a, 0xbaf3,
	0x5285, 0x430c, 0x7197, 0x601e, 0x14a1, 0x0528, 0x37b3, 0x263a,
	0xdecd, 0xcf44, 0xfddf, 0xec56, 0x98e9, 0x8960, 0xbbfb, 0xaa72,
	0x6306, 0x728f, 0x4014, 0x519d, 0x2522, 0x34ab, 0x0630, 0x17b9,
	0xef4e, 0xfec7, 0xcc5c, 0xddd5, 0xa96a, 0xb8e3, 0x8a78, 0x9bf1,
	0x7387, 0x620e, 0x5095, 0x411c, 0x35a3, 0x242a, 0x16b1, 0x0738,
	0xffcf, 0xee46, 0xdcdd, 0xcd54, 0xb9eb, 0xa862, 0x9af9, 0x8b70,
	0x8408, 0x9581, 0xa71a, 0xb693, 0xc22c, 0xd3a5, 0xe13e, 0xf0b7,
	0x0840, 0x19c9, 0x2b52, 0x3adb, 0x4e64, 0x5fed, 0x6d76, 0x7cff,
	0x9489, 0x8500, 0xb79b, 0xa612, 0xd2ad, 0xc324, 0xf1bf, 0xe036,
	0x18c1, 0x0948, 0x3bd3, 0x2a5a, 0x5ee5, 0x4f6c, 0x7df7, 0x6c7e,
	0xa50a, 0xb483, 0x8618, 0x9791, 0xe32e, 0xf2a7, 0xc03c, 0xd1b5,
	0x2942, 0x38cb, 0x0a50, 0x1bd9, 0x6f66, 0x7eef, 0x4c74, 0x5dfd,
	0xb58b, 0xa402, 0x9699, 0x8710, 0xf3af, 0xe226, 0xd0bd, 0xc134,
	0x39c3, 0x284a, 0x1ad1, 0x0b58, 0x7fe7, 0x6e6e, 0x5cf5, 0x4d7c,
	0xc60c, 0xd785, 0xe51e, 0xf497, 0x8028, 0x91a1, 0xa33a, 0xb2b3,
	0x4a44, 0x5bcd, 0x6956, 0x78df, 0x0c60, 0x1de9, 0x2f72, 0x3efb,
	0xd68d, 0xc704, 0xf59f, 0xe416, 0x90a9, 0x8120, 0xb3bb, 0xa232,
	0x5ac5, 0x4b4c, 0x79d7, 0x685e, 0x1ce1, 0x0d68, 0x3ff3, 0x2e7a,
	0xe70e, 0xf687, 0xc41c, 0xd595, 0xa12a, 0xb0a3, 0x8238, 0x93b1,
	0x6b46, 0x7acf, 0x4854, 0x59dd, 0x2d62, 0x3ceb, 0x0e70, 0x1ff9,
	0xf78f, 0xe606, 0xd49d, 0xc514, 0xb1ab, 0xa022, 0x92b9, 0x8330,
	0x7bc7, 0x6a4e, 0x58d5, 0x495c, 0x3de3, 0x2c6a, 0x1ef1, 0x0f78,
}

func mac_crc16(d []byte) uint16 {
	c := uint16(0xffff)
	for _, b := range d {
		c = fcstab[byte(c)^b] ^ (c >> 8)
	}
	return c ^ 0xffff
}

// hcs over d[:ih], fcs over d[:ih] + hcs + d[ih+2:]
func mac_crc16_r(d []byte, ih int) (hcs uint16, fcs uint16) {
	c := uint16(0xffff)
	for i := 0; i < ih; i++ {
		c = fcstab[byte(c)^d[i]] ^ (c >> 8)
	}
	hcs = c ^ 0xffff
	for i := ih; i < len(d); i++ {
		c = fcstab[byte(c)^d[i]] ^ (c >> 8)
	}
	return hcs, c ^ 0xffff
}
