package host

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/beaglecam/camlink/bcam"
	"github.com/beaglecam/camlink/internal/pool"
	"github.com/beaglecam/camlink/logger"
)

const defaultReplyTimeout = 500 * time.Millisecond

var (
	// ErrCameraClosed indicates the camera was closed while an operation was
	// in flight.
	ErrCameraClosed = errors.New("host: camera closed")

	// ErrAlreadyOpen indicates a second Open on the same camera.
	ErrAlreadyOpen = errors.New("host: camera already open")

	// ErrNotOpen indicates an operation requiring an opened camera.
	ErrNotOpen = errors.New("host: camera not open")
)

// Camera is the host-side handle to one capture pipeline. It pairs a message
// channel to the orchestrator core with a receiver task that demultiplexes
// Info replies, core logs and capture traffic, reassembles frames and queues
// them for consumption.
type Camera struct {
	id     uuid.UUID
	conn   bcam.MessageConn
	cfg    bcam.CaptureConfig
	logger logger.Logger
	metric *CameraMetrics

	ringSize int
	ring     *FrameRing
	asm      atomic.Pointer[FrameAssembler]
	tasks    *taskManager

	// Command/reply correlation. Info replies carry no request id, so
	// requests are serialized under cmdMu and curReq names the pending
	// request the next Info reply answers.
	cmdMu        sync.Mutex
	replies      *xsync.MapOf[uint64, chan []byte]
	reqID        atomic.Uint64
	curReq       atomic.Uint64
	replyTimeout time.Duration

	opened  atomic.Bool
	closed  atomic.Bool
	recvErr atomic.Value
}

// NewCamera creates a camera over the given message channel. The camera does
// not communicate until Open is called.
func NewCamera(conn bcam.MessageConn, opts ...CameraOption) (*Camera, error) {
	if conn == nil {
		return nil, errors.New("connection cannot be nil")
	}

	c := &Camera{
		id:           uuid.New(),
		conn:         conn,
		cfg:          bcam.DefaultCaptureConfig(),
		metric:       &CameraMetrics{},
		replies:      xsync.NewMapOf[uint64, chan []byte](),
		ringSize:     DefaultRingSize,
		replyTimeout: defaultReplyTimeout,
	}
	c.logger = logger.GetLogger().With("camera", c.id.String())

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// ID returns the camera's session identifier.
func (c *Camera) ID() uuid.UUID { return c.id }

// Config returns the capture configuration in effect.
func (c *Camera) Config() bcam.CaptureConfig { return c.cfg }

// Metrics returns the camera's metrics collector.
func (c *Camera) Metrics() *CameraMetrics { return c.metric }

// Err returns the receiver error that terminated the camera, if any.
func (c *Camera) Err() error {
	if err, ok := c.recvErr.Load().(error); ok {
		return err
	}

	return nil
}

// Open starts the receiver task and pushes the capture configuration to the
// cores. The camera's background tasks outlive ctx; Close tears them down.
func (c *Camera) Open(ctx context.Context) error {
	if c.closed.Load() {
		return ErrCameraClosed
	}
	if !c.opened.CompareAndSwap(false, true) {
		return ErrAlreadyOpen
	}

	c.ring = NewFrameRing(c.ringSize)
	c.asm.Store(NewFrameAssembler(c.cfg.ImageSize()))
	c.tasks = newTaskManager(context.Background(), c.logger)
	c.tasks.Start("camera-receiver", c.receive)

	if err := c.send(bcam.CmdCapSetup, bcam.EncodeCapSetup(c.cfg)); err != nil {
		return err
	}

	c.logger.Info("camera opened", "config", c.cfg)

	return nil
}

// Configure pushes a new capture configuration. Only valid while capture is
// stopped; the cores reject it otherwise.
func (c *Camera) Configure(ctx context.Context, cfg bcam.CaptureConfig) error {
	if !c.opened.Load() {
		return ErrNotOpen
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := c.send(bcam.CmdCapSetup, bcam.EncodeCapSetup(cfg)); err != nil {
		return err
	}

	c.cfg = cfg
	c.asm.Store(NewFrameAssembler(cfg.ImageSize()))

	return nil
}

// Start begins frame streaming.
func (c *Camera) Start(ctx context.Context) error {
	if !c.opened.Load() {
		return ErrNotOpen
	}

	c.asm.Load().Reset()

	return c.send(bcam.CmdCapStart, nil)
}

// Stop halts frame streaming. Frames already queued remain consumable.
func (c *Camera) Stop(ctx context.Context) error {
	if !c.opened.Load() {
		return ErrNotOpen
	}

	return c.send(bcam.CmdCapStop, nil)
}

// GetVersion returns the core firmware version string.
func (c *Camera) GetVersion(ctx context.Context) (string, error) {
	data, err := c.request(ctx, bcam.CmdGetVersion, nil)
	if err != nil {
		return "", err
	}

	return string(data), nil
}

// GetStatus returns the cores' capture state as a string.
func (c *Camera) GetStatus(ctx context.Context) (string, error) {
	data, err := c.request(ctx, bcam.CmdGetStatus, nil)
	if err != nil {
		return "", err
	}

	return string(data), nil
}

// NextFrame blocks until a reassembled frame is available, the context is
// canceled, or the camera is closed.
func (c *Camera) NextFrame(ctx context.Context) (*Frame, error) {
	if !c.opened.Load() {
		return nil, ErrNotOpen
	}

	f, err := c.ring.Next(ctx)
	if errors.Is(err, ErrRingClosed) {
		if recvErr := c.Err(); recvErr != nil {
			return nil, recvErr
		}

		return nil, ErrCameraClosed
	}

	return f, err
}

// TryNextFrame returns a queued frame without blocking, or nil.
func (c *Camera) TryNextFrame() *Frame {
	if !c.opened.Load() {
		return nil
	}

	return c.ring.TryNext()
}

// Close stops the receiver, closes the channel and wakes any blocked
// consumers. It is idempotent.
func (c *Camera) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	if c.opened.Load() {
		c.tasks.Stop()
		c.ring.Close()
	}

	err := c.conn.Close()
	c.logger.Info("camera closed")

	return err
}

func (c *Camera) send(id bcam.CmdID, payload []byte) error {
	cmd := &bcam.Command{ID: id, Payload: payload}
	return c.conn.Send(cmd.Encode())
}

// request sends a command and waits for the matching Info reply. Requests
// are serialized because replies carry no correlation id.
func (c *Camera) request(ctx context.Context, id bcam.CmdID, payload []byte) ([]byte, error) {
	if !c.opened.Load() {
		return nil, ErrNotOpen
	}

	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	req := c.reqID.Add(1)
	ch := make(chan []byte, 1)
	c.replies.Store(req, ch)
	c.curReq.Store(req)
	defer c.replies.Delete(req)

	if err := c.send(id, payload); err != nil {
		return nil, err
	}

	timer := pool.GetTimer(c.replyTimeout)
	defer pool.PutTimer(timer)

	select {
	case data := <-ch:
		return data, nil
	case <-timer.C:
		return nil, bcam.ErrReplyTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.tasks.Context().Done():
		return nil, ErrCameraClosed
	}
}

// receive is the receiver task body: read one message and dispatch it.
func (c *Camera) receive() bool {
	raw, err := c.conn.Recv(c.tasks.Context())
	if err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, bcam.ErrConnClosed) {
			c.recvErr.Store(err)
			c.logger.Error("receive failed", "error", err)
		}
		c.ring.Close()

		return false
	}

	c.metric.incMessagesReceived()
	c.metric.addBytesReceived(len(raw))

	msg, err := bcam.DecodeMessage(raw)
	if err != nil {
		c.logger.Warn("dropping malformed message", "error", err)
		return true
	}

	switch m := msg.(type) {
	case *bcam.InfoMessage:
		c.dispatchInfo(m)
	case *bcam.LogMessage:
		c.metric.incLogsReceived()
		c.forwardLog(m)
	case *bcam.CaptureMessage:
		c.handleCapture(m)
	}

	return true
}

func (c *Camera) dispatchInfo(m *bcam.InfoMessage) {
	ch, ok := c.replies.Load(c.curReq.Load())
	if !ok {
		c.logger.Debug("unsolicited info message", "size", len(m.Data))
		return
	}

	select {
	case ch <- m.Data:
	default:
	}
}

func (c *Camera) forwardLog(m *bcam.LogMessage) {
	switch m.Level {
	case bcam.LogDebug:
		c.logger.Debug("core: " + m.Text)
	case bcam.LogInfo:
		c.logger.Info("core: " + m.Text)
	case bcam.LogWarn:
		c.logger.Warn("core: " + m.Text)
	default:
		c.logger.Error("core: " + m.Text)
	}
}

func (c *Camera) handleCapture(m *bcam.CaptureMessage) {
	frame, err := c.asm.Load().Feed(m)
	if err != nil {
		if errors.Is(err, bcam.ErrDesynced) {
			c.metric.incDesyncs()
		} else {
			c.metric.incFramesDiscarded()
		}
		c.logger.Warn("frame discarded", "error", err)

		return
	}
	if frame == nil {
		return
	}

	if c.ring.Push(frame) {
		c.metric.incFramesDelivered()
	} else {
		c.metric.incFramesDropped()
		c.logger.Warn("frame ring full, dropping frame", "seq", frame.Seq)
	}
}
