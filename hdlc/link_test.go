package hdlc

import (
	"context"
	"testing"

	"github.com/cybroslabs/dlms-session-go/base"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLinkConnectDisconnect(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	l := NewLink(&LinkSettings{Logger: zap.NewNop().Sugar()})
	resets := 0
	l.OnDisconnect(func() { resets++ })

	require.Equal(StateDisconnected, l.State())
	require.NoError(l.Receive(ctx, FrameSNRM))
	require.Equal(StateConnecting, l.State())
	require.NoError(l.Send(ctx, FrameUA))
	require.True(l.IsConnected())

	require.NoError(l.Receive(ctx, FrameAARQ))
	require.NoError(l.Send(ctx, FrameAARE))
	require.True(l.IsConnected())

	require.NoError(l.Receive(ctx, FrameDisconnectRequest))
	require.Equal(StateDisconnecting, l.State())
	require.NoError(l.Send(ctx, FrameDisconnectResponse))
	require.Equal(StateDisconnected, l.State())
	require.Equal(1, resets)
}

func TestLinkUnexpectedFrames(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	l := NewLink(nil)
	err := l.Receive(ctx, FrameAARQ)
	require.ErrorIs(err, ErrUnexpectedFrame)
	c, _ := base.ClassOf(err)
	require.Equal(base.ClassFraming, c)

	require.ErrorIs(l.Receive(ctx, FrameUA), ErrUnexpectedFrame)
	require.ErrorIs(l.Receive(ctx, FrameDisconnectRequest), ErrUnexpectedFrame)
	require.ErrorIs(l.Receive(ctx, FrameType(0x01)), ErrUnexpectedFrame)
	require.Equal(StateDisconnected, l.State())

	require.NoError(l.Send(ctx, FrameSNRM))
	require.ErrorIs(l.Receive(ctx, FrameSNRM), ErrUnexpectedFrame)
	require.NoError(l.Receive(ctx, FrameDisconnectMode))
	require.Equal(StateDisconnected, l.State())
}

func TestLinkRejections(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	l := NewLink(&LinkSettings{MaxRetries: 2})
	resets := 0
	l.OnDisconnect(func() { resets++ })
	require.NoError(l.Send(ctx, FrameSNRM))
	require.NoError(l.Receive(ctx, FrameUA))

	for i := 0; i < 2; i++ {
		err := l.Receive(ctx, FrameRejected)
		require.ErrorIs(err, ErrFrameRejected)
		require.False(base.IsFatal(err))
	}
	err := l.Receive(ctx, FrameRejected)
	require.ErrorIs(err, ErrRetriesExhausted)
	c, _ := base.ClassOf(err)
	require.Equal(base.ClassLink, c)
	require.True(base.IsFatal(err))

	l.Reset(ctx)
	require.Equal(StateDisconnected, l.State())
	require.Equal(1, resets)

	// budget starts over on the next connection
	require.NoError(l.Send(ctx, FrameSNRM))
	require.NoError(l.Receive(ctx, FrameUA))
	require.ErrorIs(l.Receive(ctx, FrameRejected), ErrFrameRejected)

	require.NoError(l.Send(ctx, FrameDisconnectRequest))
	require.NoError(l.Receive(ctx, FrameUA))
	require.Equal(StateDisconnected, l.State())
	require.Equal(2, resets)
}

func TestLinkRejectionBudgetPerFrame(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	l := NewLink(&LinkSettings{MaxRetries: 2})
	require.NoError(l.Send(ctx, FrameSNRM))
	require.NoError(l.Receive(ctx, FrameUA))

	// every exchange is rejected once and then answered
	for i := 0; i < 5; i++ {
		require.NoError(l.Send(ctx, FrameAARQ))
		require.ErrorIs(l.Receive(ctx, FrameRejected), ErrFrameRejected)
		require.NoError(l.Send(ctx, FrameAARQ))
		require.NoError(l.Receive(ctx, FrameAARE))
	}
	require.True(l.IsConnected())

	require.ErrorIs(l.Receive(ctx, FrameRejected), ErrFrameRejected)
	require.ErrorIs(l.Receive(ctx, FrameRejected), ErrFrameRejected)
	l.Acknowledged()
	require.ErrorIs(l.Receive(ctx, FrameRejected), ErrFrameRejected)
	require.ErrorIs(l.Receive(ctx, FrameRejected), ErrFrameRejected)
	require.ErrorIs(l.Receive(ctx, FrameRejected), ErrRetriesExhausted)
}
