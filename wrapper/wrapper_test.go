package wrapper

import (
	"bytes"
	"io"
	"testing"

	"github.com/cybroslabs/dlms-session-go/base"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var getRequest = []byte{0xc0, 0x01, 0xc1, 0x00, 0x03, 0x01, 0x00, 0x01, 0x08, 0x00, 0xff, 0x02, 0x00}

func TestEncode(t *testing.T) {
	require := require.New(t)

	w := New(0x10, 0x01)
	w.SetLogger(zap.NewNop().Sugar())
	frame, err := w.Encode(nil, getRequest)
	require.NoError(err)
	require.Equal([]byte{0x00, 0x01, 0x00, 0x10, 0x00, 0x01, 0x00, 0x0d}, frame[:HeaderLength])
	require.Equal(getRequest, frame[HeaderLength:])

	h, err := ParseHeader(frame)
	require.NoError(err)
	require.Equal(Header{Version: Version, Source: 0x10, Destination: 0x01, Length: 13}, h)

	_, err = w.Encode(nil, make([]byte, MaxPayloadLen+1))
	require.ErrorIs(err, base.ErrInvalidArgument)
	_, err = ParseHeader(frame[:7])
	require.Error(err)
}

func TestNextWaitsForWholeFrame(t *testing.T) {
	require := require.New(t)

	client := New(0x10, 0x01)
	meter := New(0x01, 0x10)
	frame, err := meter.Encode(nil, getRequest)
	require.NoError(err)
	frame, err = meter.Encode(frame, []byte{0xc4})
	require.NoError(err)

	for i := 0; i < len(getRequest)+HeaderLength-1; i++ {
		client.Feed(frame[i : i+1])
		apdu, err := client.Next()
		require.NoError(err)
		require.Nil(apdu)
	}
	client.Feed(frame[len(getRequest)+HeaderLength-1:])
	apdu, err := client.Next()
	require.NoError(err)
	require.Equal(getRequest, apdu)
	apdu, err = client.Next()
	require.NoError(err)
	require.Equal([]byte{0xc4}, apdu)
	require.Zero(client.Buffered())
}

func TestNextRejectsForeignFrames(t *testing.T) {
	require := require.New(t)

	client := New(0x10, 0x01)
	other, err := New(0x02, 0x10).Encode(nil, []byte{1, 2})
	require.NoError(err)
	ok, err := New(0x01, 0x10).Encode(nil, []byte{3})
	require.NoError(err)

	client.Feed(other)
	client.Feed(ok)
	_, err = client.Next()
	require.ErrorIs(err, ErrAddressMismatch)
	c, _ := base.ClassOf(err)
	require.Equal(base.ClassFraming, c)
	apdu, err := client.Next()
	require.NoError(err)
	require.Equal([]byte{3}, apdu)

	client.Feed([]byte{0x00, 0x02, 0x00, 0x01, 0x00, 0x10, 0x00, 0x00})
	_, err = client.Next()
	require.ErrorIs(err, ErrInvalidVersion)
	require.Zero(client.Buffered())
}

func TestReadFrame(t *testing.T) {
	require := require.New(t)

	frame, err := New(0x01, 0x10).Encode(nil, getRequest)
	require.NoError(err)
	client := New(0x10, 0x01)
	apdu, err := client.ReadFrame(bytes.NewReader(frame))
	require.NoError(err)
	require.Equal(getRequest, apdu)

	_, err = client.ReadFrame(bytes.NewReader(frame[:10]))
	require.ErrorIs(err, io.ErrUnexpectedEOF)
}
