package host

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beaglecam/camlink/bcam"
)

// fakeCore answers host commands the way the orchestrator core does, and
// streams the given frames after a start command.
type fakeCore struct {
	conn   bcam.MessageConn
	frames [][]byte
	logs   []string
}

func (f *fakeCore) run(ctx context.Context) {
	for {
		raw, err := f.conn.Recv(ctx)
		if err != nil {
			return
		}

		cmd, err := bcam.DecodeCommand(raw)
		if err != nil {
			continue
		}

		switch cmd.ID {
		case bcam.CmdGetVersion:
			f.send((&bcam.InfoMessage{Data: []byte("0.0.2")}).Encode())
		case bcam.CmdGetStatus:
			f.send((&bcam.InfoMessage{Data: []byte("stopped")}).Encode())
		case bcam.CmdCapStart:
			for _, log := range f.logs {
				f.send((&bcam.LogMessage{Level: bcam.LogInfo, Text: log}).Encode())
			}
			for _, frame := range f.frames {
				f.streamFrame(frame)
			}
		}
	}
}

func (f *fakeCore) send(data []byte) { _ = f.conn.Send(data) }

func (f *fakeCore) streamFrame(data []byte) {
	const chunk = 32

	part := uint16(0)
	for off := 0; off < len(data); off += chunk {
		end := off + chunk
		if end > len(data) {
			end = len(data)
		}

		section := bcam.SectionBody
		if off == 0 {
			section = bcam.SectionStart
		}
		if end == len(data) {
			section = bcam.SectionEnd
		}

		f.send((&bcam.CaptureMessage{Section: section, PartSeq: part, Payload: data[off:end]}).Encode())
		part++
	}
}

func newTestCamera(t *testing.T, core *fakeCore, opts ...CameraOption) *Camera {
	t.Helper()

	coreConn, hostConn := bcam.Pipe(64)
	core.conn = coreConn

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go core.run(ctx)

	cam, err := NewCamera(hostConn, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cam.Close() })

	return cam
}

func testConfig() bcam.CaptureConfig {
	// 64-byte frames keep the tests quick.
	return bcam.CaptureConfig{XRes: 16, YRes: 4, BitsPerPixel: 8, TestMode: true, TestClockMHz: 1}
}

func TestCameraLifecycle(t *testing.T) {
	cam := newTestCamera(t, &fakeCore{})
	ctx := context.Background()

	require.NoError(t, cam.Open(ctx))

	version, err := cam.GetVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0.0.2", version)

	status, err := cam.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, "stopped", status)

	require.NoError(t, cam.Close())
	require.NoError(t, cam.Close(), "close is idempotent")
}

func TestCameraStateErrors(t *testing.T) {
	cam := newTestCamera(t, &fakeCore{})
	ctx := context.Background()

	require.ErrorIs(t, cam.Start(ctx), ErrNotOpen)
	require.ErrorIs(t, cam.Stop(ctx), ErrNotOpen)
	_, err := cam.GetVersion(ctx)
	require.ErrorIs(t, err, ErrNotOpen)
	_, err = cam.NextFrame(ctx)
	require.ErrorIs(t, err, ErrNotOpen)

	require.NoError(t, cam.Open(ctx))
	require.ErrorIs(t, cam.Open(ctx), ErrAlreadyOpen)

	require.NoError(t, cam.Close())

	conn, _ := bcam.Pipe(1)
	fresh, err := NewCamera(conn)
	require.NoError(t, err)
	require.NoError(t, fresh.Close())
	require.ErrorIs(t, fresh.Open(ctx), ErrCameraClosed)
}

func TestCameraInvalidOptions(t *testing.T) {
	conn, _ := bcam.Pipe(1)

	_, err := NewCamera(nil)
	require.Error(t, err)

	_, err = NewCamera(conn, WithRingSize(0))
	require.Error(t, err)

	_, err = NewCamera(conn, WithReplyTimeout(0))
	require.Error(t, err)

	_, err = NewCamera(conn, WithCaptureConfig(bcam.CaptureConfig{}))
	require.ErrorIs(t, err, bcam.ErrInvalidConfig)

	_, err = NewCamera(conn, WithCameraLogger(nil))
	require.Error(t, err)
}

func TestCameraReplyTimeout(t *testing.T) {
	// A core that never answers.
	coreConn, hostConn := bcam.Pipe(4)
	defer coreConn.Close()

	cam, err := NewCamera(hostConn, WithReplyTimeout(20*time.Millisecond))
	require.NoError(t, err)
	defer cam.Close()

	require.NoError(t, cam.Open(context.Background()))

	_, err = cam.GetVersion(context.Background())
	require.ErrorIs(t, err, bcam.ErrReplyTimeout)
}

func TestCameraReceivesFrames(t *testing.T) {
	cfg := testConfig()

	frameA := make([]byte, cfg.ImageSize())
	frameB := make([]byte, cfg.ImageSize())
	for i := range frameA {
		frameA[i] = byte(i)
		frameB[i] = byte(i + 1)
	}

	cam := newTestCamera(t,
		&fakeCore{frames: [][]byte{frameA, frameB}, logs: []string{"capture started"}},
		WithCaptureConfig(cfg),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, cam.Open(ctx))
	require.NoError(t, cam.Start(ctx))

	first, err := cam.NextFrame(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), first.Seq)
	assert.Equal(t, frameA, first.Data)

	second, err := cam.NextFrame(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), second.Seq)
	assert.Equal(t, frameB, second.Data)

	require.Eventually(t, func() bool { return cam.Metrics().LogsReceived() == 1 },
		time.Second, time.Millisecond)
	assert.Equal(t, int64(2), cam.Metrics().FramesDelivered())
	assert.Equal(t, int64(0), cam.Metrics().FramesDiscarded())
}

func TestCameraDiscardsBrokenFrame(t *testing.T) {
	cfg := testConfig()

	cam := newTestCamera(t, &fakeCore{}, WithCaptureConfig(cfg))

	ctx := context.Background()
	require.NoError(t, cam.Open(ctx))

	// Feed the receiver directly through the assembler path: an aborted
	// frame counts as discarded, a complete one is delivered.
	cam.handleCapture(capMsg(bcam.SectionStart, 0, make([]byte, 32)))
	cam.handleCapture(capMsg(bcam.SectionInvalid, 1, nil))
	assert.Equal(t, int64(1), cam.Metrics().FramesDiscarded())

	cam.handleCapture(capMsg(bcam.SectionStart, 0, make([]byte, 32)))
	cam.handleCapture(capMsg(bcam.SectionEnd, 1, make([]byte, 32)))
	assert.Equal(t, int64(1), cam.Metrics().FramesDelivered())

	f := cam.TryNextFrame()
	require.NotNil(t, f)
	assert.Equal(t, uint32(0), f.Seq)
}

func TestCameraCloseUnblocksNextFrame(t *testing.T) {
	cam := newTestCamera(t, &fakeCore{})

	ctx := context.Background()
	require.NoError(t, cam.Open(ctx))

	errCh := make(chan error, 1)
	go func() {
		_, err := cam.NextFrame(ctx)
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, cam.Close())

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, ErrCameraClosed)
	case <-time.After(time.Second):
		t.Fatal("NextFrame never unblocked")
	}
}
