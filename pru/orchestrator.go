package pru

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/beaglecam/camlink/bcam"
	"github.com/beaglecam/camlink/logger"
)

// FirmwareVersion is reported in response to a GetVersion command.
const FirmwareVersion = "0.0.2"

const (
	defaultAckTimeout  = time.Millisecond
	defaultUnitTimeout = 5 * time.Millisecond
	ackPollPeriod      = 10 * time.Microsecond
)

// OrchestratorCore models the host-facing core. It executes host commands,
// drives the acquisition core through the shared command registers, consumes
// capture units from the scratch slots, classifies them into frame sections
// and streams them to the host as batched capture messages.
//
// A capture session cycles Paused -> Started -> Paused, one frame per cycle:
// Paused applies the frame-start delay and starts the producer, Started
// consumes units until the frame completes or aborts, and the producer is
// stopped again between frames. A unit timeout forces the session to Stopped;
// the host recovers by issuing a new start command.
type OrchestratorCore struct {
	mem     *SharedMem
	conn    bcam.MessageConn
	clock   Clock
	logger  logger.Logger
	metric  *CoreMetrics
	batcher *capBatcher

	state capStateVar

	ackTimeout      time.Duration
	unitTimeout     time.Duration
	frameStartDelay time.Duration

	// Streaming position. expectedSeq is the next unit sequence number to
	// consume; frameBytes is the byte offset within the current frame.
	expectedSeq uint32
	frameBytes  int
	imageSize   int
}

// OrchOption configures an OrchestratorCore.
type OrchOption func(*OrchestratorCore) error

// WithAckTimeout bounds the wait for the acquisition core to acknowledge a
// start or stop command.
func WithAckTimeout(d time.Duration) OrchOption {
	return func(c *OrchestratorCore) error {
		if d <= 0 {
			return fmt.Errorf("ack timeout must be positive, got %v", d)
		}

		c.ackTimeout = d

		return nil
	}
}

// WithUnitTimeout bounds the wait for the next capture unit while streaming.
func WithUnitTimeout(d time.Duration) OrchOption {
	return func(c *OrchestratorCore) error {
		if d <= 0 {
			return fmt.Errorf("unit timeout must be positive, got %v", d)
		}

		c.unitTimeout = d

		return nil
	}
}

// WithFrameStartDelay delays each frame's capture start, giving the sensor
// pipeline time to settle between frames.
func WithFrameStartDelay(d time.Duration) OrchOption {
	return func(c *OrchestratorCore) error {
		if d < 0 {
			return fmt.Errorf("frame start delay cannot be negative, got %v", d)
		}

		c.frameStartDelay = d

		return nil
	}
}

// WithOrchClock replaces the core's clock.
func WithOrchClock(clock Clock) OrchOption {
	return func(c *OrchestratorCore) error {
		if clock == nil {
			return errors.New("clock cannot be nil")
		}

		c.clock = clock

		return nil
	}
}

// WithOrchLogger replaces the core's logger.
func WithOrchLogger(l logger.Logger) OrchOption {
	return func(c *OrchestratorCore) error {
		if l == nil {
			return errors.New("logger cannot be nil")
		}

		c.logger = l

		return nil
	}
}

// WithOrchMetrics attaches a shared metrics collector.
func WithOrchMetrics(m *CoreMetrics) OrchOption {
	return func(c *OrchestratorCore) error {
		if m == nil {
			return errors.New("metrics cannot be nil")
		}

		c.metric = m

		return nil
	}
}

// NewOrchestratorCore creates an orchestrator core bound to the given shared
// memory and host channel.
func NewOrchestratorCore(mem *SharedMem, conn bcam.MessageConn, opts ...OrchOption) (*OrchestratorCore, error) {
	if conn == nil {
		return nil, errors.New("host connection cannot be nil")
	}

	c := &OrchestratorCore{
		mem:         mem,
		conn:        conn,
		clock:       SystemClock{},
		logger:      logger.GetLogger().With("core", "orchestrator"),
		metric:      &CoreMetrics{},
		ackTimeout:  defaultAckTimeout,
		unitTimeout: defaultUnitTimeout,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	c.batcher = newCapBatcher(func(msg *bcam.CaptureMessage) error {
		return c.sendMessage(msg)
	})

	return c, nil
}

// State returns the core's current capture state.
func (c *OrchestratorCore) State() CapState { return c.state.get() }

// Metrics returns the core's metrics collector.
func (c *OrchestratorCore) Metrics() *CoreMetrics { return c.metric }

// Run drives the core loop until the context is canceled or the host channel
// closes. Commands and capture streaming are interleaved on this single
// goroutine; only the command pump runs separately, and it never writes to
// the channel, preserving the single-writer rule.
func (c *OrchestratorCore) Run(ctx context.Context) error {
	c.logger.Debug("orchestrator core running")

	cmdCh := make(chan []byte, 8)
	go c.pumpCommands(ctx, cmdCh)

	defer func() {
		if c.state.is(CapStarted) {
			c.mem.SendToAcquisition(CoreCmdCapStop, 0)
		}
		c.state.set(CapStopped)
	}()

	for {
		if c.state.is(CapStopped) {
			select {
			case <-ctx.Done():
				return nil
			case raw, ok := <-cmdCh:
				if !ok {
					c.logger.Debug("host channel closed")
					return nil
				}
				c.handleCommand(ctx, raw)
			}

			continue
		}

		// While a session is active, commands are polled between frame steps
		// so a stop request is observed within one unit timeout.
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-cmdCh:
			if !ok {
				c.logger.Debug("host channel closed")
				return nil
			}
			c.handleCommand(ctx, raw)
		default:
			var err error
			if c.state.is(CapPaused) {
				err = c.beginFrame(ctx)
			} else {
				err = c.captureStep(ctx)
			}
			if err != nil {
				return nil
			}
		}
	}
}

// pumpCommands moves raw command buffers from the host channel to the main
// loop. It is a pure reader: decode errors and replies are the main loop's
// business.
func (c *OrchestratorCore) pumpCommands(ctx context.Context, cmdCh chan<- []byte) {
	defer close(cmdCh)

	for {
		raw, err := c.conn.Recv(ctx)
		if err != nil {
			return
		}

		select {
		case cmdCh <- raw:
		case <-ctx.Done():
			return
		}
	}
}

func (c *OrchestratorCore) handleCommand(ctx context.Context, raw []byte) {
	cmd, err := bcam.DecodeCommand(raw)
	if err != nil {
		c.logger.Warn("dropping malformed command", "error", err)
		return
	}

	c.logger.Debug("host command", "id", cmd.ID)

	switch cmd.ID {
	case bcam.CmdGetVersion:
		c.sendInfo([]byte(FirmwareVersion))

	case bcam.CmdGetStatus:
		c.sendInfo([]byte(c.state.get().String()))

	case bcam.CmdCapSetup:
		c.handleCapSetup(cmd.Payload)

	case bcam.CmdCapStart:
		if !c.state.is(CapStopped) {
			return
		}

		c.imageSize = c.mem.Config().ImageSize()
		c.batcher.Reset()
		c.state.set(CapPaused)
		c.logger.Info("capture session started", "image_size", c.imageSize)

	case bcam.CmdCapStop:
		if c.state.is(CapStopped) {
			return
		}

		if err := c.stopSession(ctx); err != nil {
			c.sendLog(bcam.LogError, "capture stop failed: "+err.Error())
		}
	}
}

func (c *OrchestratorCore) handleCapSetup(payload []byte) {
	if !c.state.is(CapStopped) {
		c.sendLog(bcam.LogWarn, "capture setup rejected: capture is active")
		return
	}

	cfg, err := bcam.DecodeCapSetup(payload)
	if err != nil {
		c.sendLog(bcam.LogError, "capture setup rejected: "+err.Error())
		return
	}

	c.mem.SetConfig(cfg)
	c.sendLog(bcam.LogInfo, fmt.Sprintf("capture configured: %dx%d at %d bpp",
		cfg.XRes, cfg.YRes, cfg.BitsPerPixel))
}

// beginFrame starts the producer for the next frame. The returned error is
// non-nil only when the context is canceled; a failed start handshake forces
// the session to Stopped instead.
func (c *OrchestratorCore) beginFrame(ctx context.Context) error {
	if c.frameStartDelay > 0 {
		if err := c.clock.Sleep(ctx, c.frameStartDelay); err != nil {
			return err
		}
	}

	if err := c.commandAcquisition(ctx, CoreCmdCapStart); err != nil {
		if errors.Is(err, bcam.ErrAckTimeout) {
			c.sendLog(bcam.LogError, "capture start failed: "+err.Error())
			return nil
		}

		return err
	}

	c.expectedSeq = 1
	c.frameBytes = 0
	c.state.set(CapStarted)

	return nil
}

// stopSession ends the capture session on a host stop command. A partial
// frame is aborted so the host does not wait on a tail that will never
// arrive.
func (c *OrchestratorCore) stopSession(ctx context.Context) error {
	var err error
	if c.state.is(CapStarted) {
		err = c.commandAcquisition(ctx, CoreCmdCapStop)
		if c.frameBytes > 0 {
			c.abortFrame()
		}
	}

	c.batcher.Reset()
	c.state.set(CapStopped)
	c.logger.Info("capture stopped")

	return err
}

// pauseSession stops the producer between frames. A missing stop ack forces
// Stopped inside commandAcquisition, which takes precedence over Paused.
func (c *OrchestratorCore) pauseSession(ctx context.Context) error {
	err := c.commandAcquisition(ctx, CoreCmdCapStop)
	if err == nil {
		c.state.set(CapPaused)
		return nil
	}

	if errors.Is(err, bcam.ErrAckTimeout) {
		return nil
	}

	return err
}

// commandAcquisition sends a start/stop command to the acquisition core and
// polls for its acknowledgment until the ack timeout expires. On timeout the
// session is forced stopped; re-issuing start is the recovery path.
func (c *OrchestratorCore) commandAcquisition(ctx context.Context, id CoreCmdID) error {
	c.mem.SendToAcquisition(id, 0)

	timer := newDeadlineTimer(c.clock, c.ackTimeout)
	for {
		if ack, _ := c.mem.TakeOrchestratorCmd(); ack == CoreCmdAck {
			return nil
		}

		if timer.expired() {
			c.metric.incAckTimeouts()
			c.state.set(CapStopped)
			c.logger.Error("acquisition core did not acknowledge", "cmd", id, "timeout", c.ackTimeout)

			return bcam.ErrAckTimeout
		}

		if err := c.clock.Sleep(ctx, ackPollPeriod); err != nil {
			return err
		}
	}
}

// captureStep waits for the next capture unit and forwards it, ending the
// frame cycle when the unit completes the frame or reveals a gap. The
// returned error is non-nil only when the context is canceled.
func (c *OrchestratorCore) captureStep(ctx context.Context) error {
	u, err := c.awaitUnit(ctx)
	if err != nil {
		return err
	}
	if u == nil {
		return c.handleUnitTimeout(ctx)
	}

	if u.Seq != c.expectedSeq {
		return c.handleSeqSkip(ctx, u)
	}

	c.expectedSeq = u.Seq + 1
	c.metric.incUnitsConsumed()

	if !c.forwardUnit(u.Data) {
		return nil
	}

	// Frame complete. The producer rests until the next cycle.
	return c.pauseSession(ctx)
}

// awaitUnit blocks until the expected unit is available, the unit timeout
// expires (nil unit), or the context is canceled.
func (c *OrchestratorCore) awaitUnit(ctx context.Context) (*CaptureUnit, error) {
	deadline := c.clock.After(c.unitTimeout)

	for {
		u := c.mem.PeekUnit(c.expectedSeq)
		if u != nil && u.Seq >= c.expectedSeq {
			return u, nil
		}

		select {
		case <-c.mem.UnitReady():
		case <-deadline:
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// handleUnitTimeout forces the session to Stopped after the producer went
// quiet. The host recovers by issuing a new start command.
func (c *OrchestratorCore) handleUnitTimeout(ctx context.Context) error {
	c.metric.incUnitTimeouts()
	c.logger.Error("capture unit timeout", "error", bcam.ErrUnitTimeout,
		"expected_seq", c.expectedSeq, "frame_bytes", c.frameBytes)

	if c.frameBytes > 0 {
		c.abortFrame()
	}

	err := c.commandAcquisition(ctx, CoreCmdCapStop)
	if err != nil && !errors.Is(err, bcam.ErrAckTimeout) {
		return err
	}

	c.state.set(CapStopped)
	c.sendLog(bcam.LogError, "capture aborted: "+bcam.ErrUnitTimeout.Error())

	return nil
}

// handleSeqSkip aborts the frame holed by units lost to slot overwrites. The
// next cycle restarts the producer, so the session resynchronizes at a fresh
// frame boundary.
func (c *OrchestratorCore) handleSeqSkip(ctx context.Context, u *CaptureUnit) error {
	gap := int64(u.Seq - c.expectedSeq)
	c.metric.addUnitsMissed(gap)
	c.logger.Warn("capture units missed", "error", bcam.ErrSeqMismatch,
		"expected_seq", c.expectedSeq, "got_seq", u.Seq)

	c.abortFrame()
	c.sendLog(bcam.LogWarn, "frame dropped: "+bcam.ErrSeqMismatch.Error())

	return c.pauseSession(ctx)
}

// forwardUnit classifies the unit's bytes into a frame section by stream
// position and hands them to the batcher, clipping any bytes past the frame
// boundary. It reports whether the unit completed the frame.
func (c *OrchestratorCore) forwardUnit(data []byte) bool {
	if excess := c.frameBytes + len(data) - c.imageSize; excess > 0 {
		data = data[:len(data)-excess]
	}

	var section bcam.FrameSection
	switch {
	case c.frameBytes == 0:
		section = bcam.SectionStart
	case c.frameBytes+len(data) == c.imageSize:
		section = bcam.SectionEnd
	default:
		section = bcam.SectionBody
	}

	c.frameBytes += len(data)
	done := c.frameBytes == c.imageSize

	if err := c.batcher.Add(section, data); err != nil {
		c.logger.Error("capture message send failed", "error", err)
		return done
	}

	if done {
		// A frame that fits in a single unit still needs its End marker.
		if section == bcam.SectionStart {
			if err := c.batcher.Add(bcam.SectionEnd, nil); err != nil {
				c.logger.Error("capture message send failed", "error", err)
				return done
			}
		}

		c.metric.incFramesStreamed()
	}

	return done
}

// abortFrame tells the host to discard the in-progress frame.
func (c *OrchestratorCore) abortFrame() {
	if err := c.batcher.Add(bcam.SectionInvalid, nil); err != nil {
		c.logger.Error("frame abort send failed", "error", err)
	}
	c.metric.incFramesInvalidated()
}

func (c *OrchestratorCore) sendInfo(data []byte) {
	msg := &bcam.InfoMessage{Data: data}
	if err := c.conn.Send(msg.Encode()); err != nil {
		c.logger.Error("info send failed", "error", err)
		return
	}
	c.metric.incMessagesSent()
}

func (c *OrchestratorCore) sendLog(level bcam.LogLevel, text string) {
	msg := &bcam.LogMessage{Level: level, Text: text}
	if err := c.conn.Send(msg.Encode()); err != nil {
		c.logger.Error("log send failed", "error", err)
		return
	}
	c.metric.incMessagesSent()
}

func (c *OrchestratorCore) sendMessage(msg *bcam.CaptureMessage) error {
	if err := c.conn.Send(msg.Encode()); err != nil {
		return err
	}
	c.metric.incMessagesSent()

	return nil
}
