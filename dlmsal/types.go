package dlmsal

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

type DlmsObis struct {
	A byte
	B byte
	C byte
	D byte
	E byte
	F byte
}

func (o DlmsObis) String() string {
	return fmt.Sprintf("%d-%d:%d.%d.%d.%d", o.A, o.B, o.C, o.D, o.E, o.F)
}

func (o DlmsObis) Bytes() []byte {
	return []byte{o.A, o.B, o.C, o.D, o.E, o.F}
}

func NewDlmsObisFromSlice(src []byte) (ob DlmsObis, err error) {
	if len(src) < 6 {
		err = fmt.Errorf("invalid length")
		return
	}
	return DlmsObis{A: src[0], B: src[1], C: src[2], D: src[3], E: src[4], F: src[5]}, nil
}

var obisformat = regexp.MustCompile(`^(\d+)-(\d+):(\d+)\.(\d+)\.(\d+)\.(\d+)$`)

// NewDlmsObisFromString parses full A-B:C.D.E.F notation.
func NewDlmsObisFromString(src string) (ob DlmsObis, err error) {
	m := obisformat.FindStringSubmatch(src)
	if m == nil {
		err = fmt.Errorf("invalid format")
		return
	}
	var v [6]byte
	for i := range v {
		n, err := strconv.ParseUint(m[i+1], 10, 8)
		if err != nil {
			return ob, fmt.Errorf("invalid obis group %d: %w", i, err)
		}
		v[i] = byte(n)
	}
	return NewDlmsObisFromSlice(v[:])
}

type DlmsDate struct {
	Year      uint16
	Month     byte
	Day       byte
	DayOfWeek byte
}

type DlmsTime struct {
	Hour       byte
	Minute     byte
	Second     byte
	Hundredths byte
}

// DlmsDateTime is the 12 byte date-time carried by notifications.
type DlmsDateTime struct {
	Date      DlmsDate
	Time      DlmsTime
	Deviation int16
	Status    byte
}

const (
	DateTimeInvalidDeviation int16 = -32768
	dateTimeLength                 = 12
)

func (t *DlmsDateTime) String() string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d.%02d UTC%+03d Status: %02x",
		t.Date.Year, t.Date.Month, t.Date.Day,
		t.Time.Hour, t.Time.Minute, t.Time.Second, t.Time.Hundredths, t.Deviation, t.Status)
}

func (t *DlmsDateTime) ToTime() (tt time.Time, err error) {
	if t.Date.Year == 0xffff || t.Date.Month == 0xff || t.Date.Day == 0xff || t.Time.Hour == 0xff || t.Time.Minute == 0xff {
		return tt, fmt.Errorf("invalid date or time")
	}
	ns := 0
	if t.Time.Hundredths != 0xff {
		ns = int(t.Time.Hundredths) * 10000000
	}
	dev := 0
	if t.Deviation != DateTimeInvalidDeviation {
		dev = int(t.Deviation)
	}
	tt = time.Date(int(t.Date.Year), time.Month(t.Date.Month), int(t.Date.Day), int(t.Time.Hour), int(t.Time.Minute), int(t.Time.Second), ns, time.FixedZone("UTC", dev*60))
	return
}

// encode writes the raw 12 bytes, no length.
func (t *DlmsDateTime) encode(dst *bytes.Buffer) {
	dst.WriteByte(byte(t.Date.Year >> 8))
	dst.WriteByte(byte(t.Date.Year))
	dst.WriteByte(t.Date.Month)
	dst.WriteByte(t.Date.Day)
	dst.WriteByte(t.Date.DayOfWeek)
	dst.WriteByte(t.Time.Hour)
	dst.WriteByte(t.Time.Minute)
	dst.WriteByte(t.Time.Second)
	dst.WriteByte(t.Time.Hundredths)
	dst.WriteByte(byte(t.Deviation >> 8))
	dst.WriteByte(byte(t.Deviation))
	dst.WriteByte(t.Status)
}

func NewDlmsDateTimeFromTime(src time.Time) DlmsDateTime {
	wd := byte(src.Weekday())
	if wd == 0 {
		wd = 7
	}
	_, off := src.Zone()
	return DlmsDateTime{
		Date:      DlmsDate{Year: uint16(src.Year()), Month: byte(src.Month()), Day: byte(src.Day()), DayOfWeek: wd},
		Time:      DlmsTime{Hour: byte(src.Hour()), Minute: byte(src.Minute()), Second: byte(src.Second()), Hundredths: byte(src.Nanosecond() / 10000000)},
		Deviation: int16(off / 60),
		Status:    0,
	}
}

func NewDlmsDateTimeFromSlice(src []byte) (val DlmsDateTime, err error) {
	if len(src) < dateTimeLength {
		err = fmt.Errorf("invalid length")
		return
	}
	return DlmsDateTime{
		Date:      DlmsDate{Year: uint16(src[0])<<8 | uint16(src[1]), Month: src[2], Day: src[3], DayOfWeek: src[4]},
		Time:      DlmsTime{Hour: src[5], Minute: src[6], Second: src[7], Hundredths: src[8]},
		Deviation: int16(src[9])<<8 | int16(src[10]),
		Status:    src[11],
	}, nil
}
