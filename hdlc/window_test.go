package hdlc

import (
	"testing"

	"github.com/cybroslabs/dlms-session-go/base"
	"github.com/stretchr/testify/require"
)

func TestWindowSend(t *testing.T) {
	require := require.New(t)

	w := NewWindow(Limits{WindowSizeTX: 2}, 2)
	c, err := w.NextInformation([]byte{1}, false)
	require.NoError(err)
	require.Equal(byte(0x00), c)
	c, err = w.NextInformation([]byte{2}, true)
	require.NoError(err)
	require.Equal(byte(0x12), c)

	_, err = w.NextInformation([]byte{3}, true)
	require.ErrorIs(err, ErrWindowFull)

	r, err := w.ReceiveSupervisory(SupervisoryControl(ControlReceiveReady, 1, true))
	require.NoError(err)
	require.Empty(r)
	require.Equal(1, w.Outstanding())

	r, err = w.ReceiveSupervisory(SupervisoryControl(ControlReject, 1, true))
	require.NoError(err)
	require.Len(r, 1)
	require.Equal([]byte{2}, r[0].Info)
	require.Equal(InformationControl(1, 0, true), r[0].Control)

	_, err = w.ReceiveSupervisory(SupervisoryControl(ControlReject, 1, true))
	require.NoError(err)
	_, err = w.ReceiveSupervisory(SupervisoryControl(ControlReject, 1, true))
	require.ErrorIs(err, ErrRetriesExhausted)
	require.True(base.IsFatal(err))

	_, err = w.ReceiveSupervisory(SupervisoryControl(ControlReceiveReady, 2, true))
	require.NoError(err)
	require.Zero(w.Outstanding())

	_, err = w.ReceiveSupervisory(SupervisoryControl(ControlReceiveReady, 5, true))
	require.ErrorIs(err, ErrInvalidSequence)

	_, err = w.ReceiveSupervisory(InformationControl(0, 0, true))
	require.ErrorIs(err, ErrNotSupervisory)
}

func TestWindowBusyAndSelectiveReject(t *testing.T) {
	require := require.New(t)

	w := NewWindow(Limits{WindowSizeTX: 7}, 0)
	for i := byte(0); i < 3; i++ {
		_, err := w.NextInformation([]byte{i}, i == 2)
		require.NoError(err)
	}

	r, err := w.ReceiveSupervisory(SupervisoryControl(ControlSelectiveReject, 1, true))
	require.NoError(err)
	require.Len(r, 1)
	require.Equal([]byte{1}, r[0].Info)
	require.Equal(3, w.Outstanding())

	_, err = w.ReceiveSupervisory(SupervisoryControl(ControlSelectiveReject, 5, true))
	require.ErrorIs(err, ErrUnknownRetransmit)

	_, err = w.ReceiveSupervisory(SupervisoryControl(ControlReceiveNotReady, 3, true))
	require.NoError(err)
	require.True(w.PeerBusy())
	require.Zero(w.Outstanding())
	_, err = w.NextInformation([]byte{9}, true)
	require.ErrorIs(err, ErrPeerBusy)

	_, err = w.ReceiveSupervisory(SupervisoryControl(ControlReceiveReady, 3, true))
	require.NoError(err)
	require.False(w.PeerBusy())
	c, err := w.NextInformation([]byte{9}, true)
	require.NoError(err)
	ns, _, _ := InformationOf(c)
	require.Equal(byte(3), ns)

	w.Reset()
	require.Zero(w.Outstanding())
}

func TestWindowReceive(t *testing.T) {
	require := require.New(t)

	w := NewWindow(DefaultLimits(), 0)
	ok, reply, err := w.ReceiveInformation(InformationControl(0, 0, true))
	require.NoError(err)
	require.True(ok)
	require.Equal(byte(0x31), reply)

	ok, reply, err = w.ReceiveInformation(InformationControl(2, 0, true))
	require.NoError(err)
	require.False(ok)
	require.Equal(byte(0x39), reply)

	_, _, err = w.ReceiveInformation(SupervisoryControl(ControlReceiveReady, 0, true))
	require.ErrorIs(err, ErrNotInformation)
}
