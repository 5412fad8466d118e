package base

import "golang.org/x/crypto/cryptobyte"

// AppendLength appends A-XDR/BER definite length.
func AppendLength(dst []byte, n uint) []byte {
	switch {
	case n < 128:
		return append(dst, byte(n))
	case n < 256:
		return append(dst, 0x81, byte(n))
	case n < 65536:
		return append(dst, 0x82, byte(n>>8), byte(n))
	case n < 16777216:
		return append(dst, 0x83, byte(n>>16), byte(n>>8), byte(n))
	default:
		return append(dst, 0x84, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	}
}

// LengthSize returns the amount of bytes AppendLength produces.
func LengthSize(n uint) int {
	switch {
	case n < 128:
		return 1
	case n < 256:
		return 2
	case n < 65536:
		return 3
	case n < 16777216:
		return 4
	default:
		return 5
	}
}

// ReadLength consumes a length from s, false means truncated or invalid encoding.
func ReadLength(s *cryptobyte.String) (uint, bool) {
	var b uint8
	if !s.ReadUint8(&b) {
		return 0, false
	}
	if b&0x80 == 0 {
		return uint(b), true
	}
	cnt := int(b & 0x7f)
	if cnt == 0 || cnt > 4 {
		return 0, false
	}
	var raw []byte
	if !s.ReadBytes(&raw, cnt) {
		return 0, false
	}
	var n uint
	for _, v := range raw {
		n = n<<8 | uint(v)
	}
	return n, true
}
