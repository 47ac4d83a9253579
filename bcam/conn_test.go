package bcam

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipeDelivery(t *testing.T) {
	a, b := Pipe(4)
	defer a.Close()
	defer b.Close()

	require.NoError(t, a.Send([]byte("hello")))

	got, err := b.Recv(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
}

func TestPipePreservesBoundaries(t *testing.T) {
	a, b := Pipe(4)
	defer a.Close()
	defer b.Close()

	require.NoError(t, a.Send([]byte{1, 2}))
	require.NoError(t, a.Send([]byte{3}))

	first, err := b.Recv(context.Background())
	require.NoError(t, err)
	second, err := b.Recv(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []byte{1, 2}, first)
	assert.Equal(t, []byte{3}, second)
}

func TestPipeCopiesSendBuffer(t *testing.T) {
	a, b := Pipe(1)
	defer a.Close()
	defer b.Close()

	buf := []byte{0xAA}
	require.NoError(t, a.Send(buf))
	buf[0] = 0x55

	got, err := b.Recv(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA}, got)
}

func TestPipeRejectsOversized(t *testing.T) {
	a, _ := Pipe(1)
	defer a.Close()

	err := a.Send(make([]byte, MaxMessageSize+1))
	require.ErrorIs(t, err, ErrMessageTooLarge)
}

func TestPipeRecvContextCancel(t *testing.T) {
	a, b := Pipe(1)
	defer a.Close()
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := b.Recv(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPipeClose(t *testing.T) {
	a, b := Pipe(2)

	require.NoError(t, a.Send([]byte{1}))
	require.NoError(t, a.Close())

	// Buffered message is still readable after close.
	got, err := b.Recv(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, got)

	_, err = b.Recv(context.Background())
	require.ErrorIs(t, err, ErrConnClosed)

	require.ErrorIs(t, b.Send([]byte{2}), ErrConnClosed)
	require.NoError(t, a.Close(), "close is idempotent")
}
