package pru

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beaglecam/camlink/bcam"
)

type batchRecorder struct {
	sent []*bcam.CaptureMessage
}

func (r *batchRecorder) flush(msg *bcam.CaptureMessage) error {
	r.sent = append(r.sent, msg)
	return nil
}

func TestBatcherCoalescesSameSection(t *testing.T) {
	rec := &batchRecorder{}
	b := newCapBatcher(rec.flush)

	unit := bytes.Repeat([]byte{0xAB}, UnitDataSize)
	for i := 0; i < 4; i++ {
		require.NoError(t, b.Add(bcam.SectionBody, unit))
	}

	assert.Empty(t, rec.sent, "body units coalesce until a flush condition")

	require.NoError(t, b.Flush())
	require.Len(t, rec.sent, 1)
	assert.Equal(t, bcam.SectionBody, rec.sent[0].Section)
	assert.Len(t, rec.sent[0].Payload, 4*UnitDataSize)
}

func TestBatcherFlushesOnSectionChange(t *testing.T) {
	rec := &batchRecorder{}
	b := newCapBatcher(rec.flush)

	unit := make([]byte, UnitDataSize)
	require.NoError(t, b.Add(bcam.SectionStart, unit))
	require.NoError(t, b.Add(bcam.SectionBody, unit))

	require.Len(t, rec.sent, 1)
	assert.Equal(t, bcam.SectionStart, rec.sent[0].Section)
	assert.Len(t, rec.sent[0].Payload, UnitDataSize)
}

func TestBatcherFlushesAtCapacity(t *testing.T) {
	rec := &batchRecorder{}
	b := newCapBatcher(rec.flush)

	unit := make([]byte, UnitDataSize)
	unitsPerMsg := bcam.MaxCapturePayload / UnitDataSize

	require.NoError(t, b.Add(bcam.SectionStart, unit))
	for i := 0; i < 2*unitsPerMsg; i++ {
		require.NoError(t, b.Add(bcam.SectionBody, unit))
	}

	// The start message plus one body message filled to the last whole unit;
	// the rest remains pending.
	require.Len(t, rec.sent, 2)
	assert.Len(t, rec.sent[1].Payload, unitsPerMsg*UnitDataSize)

	for _, msg := range rec.sent {
		assert.LessOrEqual(t, len(msg.Encode()), bcam.MaxMessageSize)
	}
}

func TestBatcherFlushesEndImmediately(t *testing.T) {
	rec := &batchRecorder{}
	b := newCapBatcher(rec.flush)

	unit := make([]byte, UnitDataSize)
	require.NoError(t, b.Add(bcam.SectionEnd, unit))

	require.Len(t, rec.sent, 1)
	assert.Equal(t, bcam.SectionEnd, rec.sent[0].Section)
}

func TestBatcherPartSeq(t *testing.T) {
	rec := &batchRecorder{}
	b := newCapBatcher(rec.flush)

	unit := make([]byte, UnitDataSize)

	// Two full frames: Start, Body, End each flush as separate messages.
	for frame := 0; frame < 2; frame++ {
		require.NoError(t, b.Add(bcam.SectionStart, unit))
		require.NoError(t, b.Add(bcam.SectionBody, unit))
		require.NoError(t, b.Add(bcam.SectionEnd, unit))
	}
	require.NoError(t, b.Flush())

	require.Len(t, rec.sent, 6)
	for i, msg := range rec.sent {
		assert.Equal(t, uint16(i%3), msg.PartSeq, "part sequence restarts every frame")
	}
}

func TestBatcherReset(t *testing.T) {
	rec := &batchRecorder{}
	b := newCapBatcher(rec.flush)

	require.NoError(t, b.Add(bcam.SectionBody, make([]byte, UnitDataSize)))
	b.Reset()

	require.NoError(t, b.Flush())
	assert.Empty(t, rec.sent)
}

func TestBatcherRejectsOversizedUnit(t *testing.T) {
	b := newCapBatcher(func(*bcam.CaptureMessage) error { return nil })

	err := b.Add(bcam.SectionBody, make([]byte, bcam.MaxCapturePayload+1))
	require.ErrorIs(t, err, bcam.ErrMessageTooLarge)
}
