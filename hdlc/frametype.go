package hdlc

// FrameType identifies frames driving the link state machine, the value is the control octet with P/F set.
type FrameType byte

const (
	FrameSNRM               FrameType = 0x93
	FrameUA                 FrameType = 0x73
	FrameAARQ               FrameType = 0x10
	FrameAARE               FrameType = 0x30
	FrameRejected           FrameType = 0x97
	FrameDisconnectRequest  FrameType = 0x53
	FrameDisconnectResponse FrameType = 0x52
	FrameDisconnectMode     FrameType = 0x1f
)

var frameTypeNames = map[FrameType]string{
	FrameSNRM:               "SNRM",
	FrameUA:                 "UA",
	FrameAARQ:               "AARQ",
	FrameAARE:               "AARE",
	FrameRejected:           "REJECTED",
	FrameDisconnectRequest:  "DISCONNECT_REQUEST",
	FrameDisconnectResponse: "DISCONNECT_RESPONSE",
	FrameDisconnectMode:     "DISCONNECT_MODE",
}

func (f FrameType) String() string {
	if n, ok := frameTypeNames[f]; ok {
		return n
	}
	return "unknown"
}

// Code returns the wire octet.
func (f FrameType) Code() byte {
	return byte(f)
}

// FrameTypeOf maps wire octet to frame type.
func FrameTypeOf(code byte) (FrameType, bool) {
	_, ok := frameTypeNames[FrameType(code)]
	return FrameType(code), ok
}

// UnnumberedType classifies a received U frame control octet regardless of its P/F bit.
func UnnumberedType(control byte) (FrameType, bool) {
	if !IsUnnumbered(control) {
		return 0, false
	}
	return FrameTypeOf(control | controlFinal)
}

// ControlType is the supervisory function carried in S frames.
type ControlType byte

const (
	ControlReceiveReady    ControlType = 0
	ControlReceiveNotReady ControlType = 1
	ControlReject          ControlType = 2
	ControlSelectiveReject ControlType = 3
)

var controlTypeNames = [...]string{"RR", "RNR", "REJ", "SREJ"}

func (c ControlType) String() string {
	if int(c) < len(controlTypeNames) {
		return controlTypeNames[c]
	}
	return "unknown"
}

// Code returns the 2-bit wire code.
func (c ControlType) Code() byte {
	return byte(c) & 3
}

// ControlTypeOf maps 2-bit wire code to control type.
func ControlTypeOf(code byte) (ControlType, bool) {
	if code > 3 {
		return 0, false
	}
	return ControlType(code), true
}

// IsInformation reports I frame control octet.
func IsInformation(control byte) bool {
	return control&1 == 0
}

// IsSupervisory reports S frame control octet.
func IsSupervisory(control byte) bool {
	return control&3 == 1
}

// IsUnnumbered reports U frame control octet.
func IsUnnumbered(control byte) bool {
	return control&3 == 3
}

// SupervisoryOf returns function and N(R) of an S frame.
func SupervisoryOf(control byte) (ct ControlType, nr byte, ok bool) {
	if !IsSupervisory(control) {
		return 0, 0, false
	}
	return ControlType((control >> 2) & 3), control >> 5, true
}

// SupervisoryControl builds an S frame control octet.
func SupervisoryControl(ct ControlType, nr byte, final bool) byte {
	r := (nr&7)<<5 | ct.Code()<<2 | 1
	if final {
		r |= controlFinal
	}
	return r
}

// InformationControl builds an I frame control octet.
func InformationControl(ns byte, nr byte, final bool) byte {
	r := (nr&7)<<5 | (ns&7)<<1
	if final {
		r |= controlFinal
	}
	return r
}

// InformationOf returns N(S) and N(R) of an I frame.
func InformationOf(control byte) (ns byte, nr byte, ok bool) {
	if !IsInformation(control) {
		return 0, 0, false
	}
	return (control >> 1) & 7, control >> 5, true
}
