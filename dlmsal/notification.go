package dlmsal

import (
	"fmt"
	"slices"
	"time"

	"github.com/cybroslabs/dlms-session-go/base"
	"golang.org/x/crypto/cryptobyte"
)

const (
	longInvokeIDMask   = 0x00ffffff
	longInvokePriority = 1 << 31
	longInvokeConfirm  = 1 << 30
)

// DataNotification is a decoded unsolicited LN data notification.
type DataNotification struct {
	InvokeID  uint32
	Priority  bool // high priority
	Confirmed bool
	Time      *DlmsDateTime
	Data      []byte // encoded notification body
}

// Timestamp converts the carried date time, ok is false when it is missing or not specified.
func (n *DataNotification) Timestamp() (time.Time, bool) {
	if n.Time == nil {
		return time.Time{}, false
	}
	t, err := n.Time.ToTime()
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ParseDataNotification decodes long invoke id, optional date time and the body of data notification apdu.
func ParseDataNotification(apdu []byte) (n DataNotification, err error) {
	s := cryptobyte.String(apdu)
	var cmd, tl uint8
	if !s.ReadUint8(&cmd) {
		return n, base.NewFramingError(fmt.Errorf("empty data notification"))
	}
	if base.CosemTag(cmd) != base.TagDataNotification {
		return n, base.NewFramingError(fmt.Errorf("%w: %v is not data notification", ErrUnsupportedCommand, base.CosemTag(cmd)))
	}
	var id uint32
	if !s.ReadUint32(&id) || !s.ReadUint8(&tl) {
		return n, base.NewFramingError(fmt.Errorf("short data notification header"))
	}
	n.InvokeID = id & longInvokeIDMask
	n.Priority = id&longInvokePriority != 0
	n.Confirmed = id&longInvokeConfirm != 0

	switch tl {
	case 0:
	case dateTimeLength:
		var raw []byte
		if !s.ReadBytes(&raw, dateTimeLength) {
			return n, base.NewFramingError(fmt.Errorf("short data notification date time"))
		}
		dt, err := NewDlmsDateTimeFromSlice(raw)
		if err != nil {
			return n, base.NewFramingError(err)
		}
		n.Time = &dt
	default:
		return n, base.NewFramingError(fmt.Errorf("invalid data notification date time length %d", tl))
	}
	n.Data = slices.Clone([]byte(s))
	return n, nil
}
