package hdlc

import (
	"testing"

	"github.com/cybroslabs/dlms-session-go/base"
	"github.com/stretchr/testify/require"
)

func TestEncodeSNRM(t *testing.T) {
	require := require.New(t)

	f := Frame{
		Destination: Address{Upper: 1},
		Source:      Address{Upper: 0x10},
		Control:     FrameSNRM.Code(),
	}
	out, err := f.Encode(nil)
	require.NoError(err)
	require.Equal([]byte{0x7e, 0xa0, 0x07, 0x03, 0x21, 0x93, 0x0f, 0x01, 0x7e}, out)

	d, err := Decode(out)
	require.NoError(err)
	require.Equal(f.Destination, d.Destination)
	require.Equal(f.Source, d.Source)
	require.True(d.Final())
	require.Empty(d.Info)

	ft, ok := UnnumberedType(d.Control)
	require.True(ok)
	require.Equal(FrameSNRM, ft)
}

func TestFrameWithInfo(t *testing.T) {
	require := require.New(t)

	f := Frame{
		Segmented:   true,
		Destination: Address{Upper: 1, Lower: 0x1234},
		Source:      Address{Upper: 0x10},
		Control:     InformationControl(2, 5, false),
		Info:        AddLLC(nil, []byte{0xc0, 0x01, 0xc1, 0x00, 0x01}, true),
	}
	out, err := f.Encode([]byte{0xaa})
	require.NoError(err)
	require.Equal(byte(0xaa), out[0])
	out = out[1:]

	n, err := FrameLength(out)
	require.NoError(err)
	require.Equal(len(out), n)

	d, err := Decode(out)
	require.NoError(err)
	require.True(d.Segmented)
	require.Equal(f.Destination, d.Destination)
	require.Equal(f.Source, d.Source)
	require.Equal(f.Info, d.Info)
	ns, nr, ok := InformationOf(d.Control)
	require.True(ok)
	require.Equal(byte(2), ns)
	require.Equal(byte(5), nr)

	apdu, err := StripLLC(d.Info, true)
	require.NoError(err)
	require.Equal([]byte{0xc0, 0x01, 0xc1, 0x00, 0x01}, apdu)
}

func TestDecodeErrors(t *testing.T) {
	require := require.New(t)

	f := Frame{Destination: Address{Upper: 1}, Source: Address{Upper: 0x10}, Control: 0x10, Info: []byte{1, 2, 3}}
	out, err := f.Encode(nil)
	require.NoError(err)

	bad := append([]byte(nil), out...)
	bad[len(bad)-5] ^= 0xff
	_, err = Decode(bad)
	require.ErrorIs(err, ErrChecksum)
	c, ok := base.ClassOf(err)
	require.True(ok)
	require.Equal(base.ClassFraming, c)

	_, err = Decode(out[:len(out)-1])
	require.ErrorIs(err, ErrInvalidFrame)

	n, err := FrameLength(out[:2])
	require.NoError(err)
	require.Zero(n)

	_, err = FrameLength([]byte{0x7e, 0x10, 0x00})
	require.ErrorIs(err, ErrInvalidFrame)

	_, err = (&Frame{Destination: Address{Upper: 0x4000}}).Encode(nil)
	require.ErrorIs(err, base.ErrInvalidArgument)

	_, err = StripLLC([]byte{0xe6, 0xe6, 0x00, 0x01}, false)
	require.ErrorIs(err, ErrInvalidLLC)
}

func TestFrameTypeTables(t *testing.T) {
	require := require.New(t)

	for ft, name := range frameTypeNames {
		got, ok := FrameTypeOf(ft.Code())
		require.True(ok)
		require.Equal(ft, got)
		require.Equal(name, got.String())
	}
	_, ok := FrameTypeOf(0x01)
	require.False(ok)

	for code := byte(0); code < 4; code++ {
		ct, ok := ControlTypeOf(code)
		require.True(ok)
		require.Equal(code, ct.Code())
	}
	_, ok = ControlTypeOf(4)
	require.False(ok)
	require.Equal("SREJ", ControlSelectiveReject.String())

	c := SupervisoryControl(ControlReceiveNotReady, 3, true)
	require.True(IsSupervisory(c))
	require.False(IsInformation(c))
	ct, nr, ok := SupervisoryOf(c)
	require.True(ok)
	require.Equal(ControlReceiveNotReady, ct)
	require.Equal(byte(3), nr)

	require.True(IsUnnumbered(FrameUA.Code()))
	require.True(IsUnnumbered(FrameDisconnectMode.Code()))
}

func TestLimitsNegotiation(t *testing.T) {
	require := require.New(t)

	d := DefaultLimits()
	require.True(d.IsDefault())
	require.NoError(d.Validate())
	require.Equal([]byte{
		0x81, 0x80, 0x12,
		0x05, 0x01, 0x80,
		0x06, 0x01, 0x80,
		0x07, 0x04, 0x00, 0x00, 0x00, 0x01,
		0x08, 0x04, 0x00, 0x00, 0x00, 0x01,
	}, d.Parameters())

	local := Limits{MaxInfoTX: 256, MaxInfoRX: 256, WindowSizeTX: 7, WindowSizeRX: 7}
	require.NoError(local.Validate())
	require.Equal(byte(0x02), local.Parameters()[4])

	ua := []byte{
		0x81, 0x80, 0x12,
		0x05, 0x01, 0xc8,
		0x06, 0x01, 0x64,
		0x07, 0x04, 0x00, 0x00, 0x00, 0x03,
		0x08, 0x04, 0x00, 0x00, 0x00, 0x02,
	}
	r, err := local.Negotiate(ua)
	require.NoError(err)
	require.Equal(Limits{MaxInfoTX: 100, MaxInfoRX: 200, WindowSizeTX: 2, WindowSizeRX: 3}, r)

	r, err = local.Negotiate(nil)
	require.NoError(err)
	require.Equal(DefaultLimits(), r)

	_, err = local.Negotiate([]byte{0x81, 0x80, 0x03, 0x09, 0x01, 0x00})
	require.ErrorIs(err, ErrInvalidFrame)

	require.ErrorIs(Limits{MaxInfoTX: 10, MaxInfoRX: 128, WindowSizeTX: 1, WindowSizeRX: 1}.Validate(), base.ErrInvalidArgument)
	require.ErrorIs(Limits{MaxInfoTX: 128, MaxInfoRX: 128, WindowSizeTX: 8, WindowSizeRX: 1}.Validate(), base.ErrInvalidArgument)
}
