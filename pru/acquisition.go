package pru

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/beaglecam/camlink/bcam"
	"github.com/beaglecam/camlink/logger"
)

const defaultUnitPeriod = 20 * time.Microsecond

// AcquisitionCore models the sensor-facing core. It polls its command
// register for start/stop requests from the orchestrator, acknowledges them,
// and while started packs sensor bytes into capture units published through
// the shared scratch slots.
type AcquisitionCore struct {
	mem    *SharedMem
	source UnitSource
	clock  Clock
	logger logger.Logger
	metric *CoreMetrics

	state capStateVar

	// unitPeriod paces unit production. On hardware the sensor pixel clock
	// sets the pace; the model sleeps instead.
	unitPeriod time.Duration

	// unitLimit caps the number of units produced per capture, zero meaning
	// unbounded. Used by deterministic tests and examples.
	unitLimit uint32

	cfg      bcam.CaptureConfig
	seq      uint32
	produced uint32
}

// AcqOption configures an AcquisitionCore.
type AcqOption func(*AcquisitionCore) error

// WithUnitPeriod sets the interval between published units.
func WithUnitPeriod(d time.Duration) AcqOption {
	return func(c *AcquisitionCore) error {
		if d <= 0 {
			return fmt.Errorf("unit period must be positive, got %v", d)
		}

		c.unitPeriod = d

		return nil
	}
}

// WithUnitLimit caps the number of units produced per capture session.
func WithUnitLimit(n uint32) AcqOption {
	return func(c *AcquisitionCore) error {
		c.unitLimit = n
		return nil
	}
}

// WithAcqClock replaces the core's clock.
func WithAcqClock(clock Clock) AcqOption {
	return func(c *AcquisitionCore) error {
		if clock == nil {
			return errors.New("clock cannot be nil")
		}

		c.clock = clock

		return nil
	}
}

// WithAcqSource replaces the unit source.
func WithAcqSource(src UnitSource) AcqOption {
	return func(c *AcquisitionCore) error {
		if src == nil {
			return errors.New("unit source cannot be nil")
		}

		c.source = src

		return nil
	}
}

// WithAcqLogger replaces the core's logger.
func WithAcqLogger(l logger.Logger) AcqOption {
	return func(c *AcquisitionCore) error {
		if l == nil {
			return errors.New("logger cannot be nil")
		}

		c.logger = l

		return nil
	}
}

// WithAcqMetrics attaches a shared metrics collector.
func WithAcqMetrics(m *CoreMetrics) AcqOption {
	return func(c *AcquisitionCore) error {
		if m == nil {
			return errors.New("metrics cannot be nil")
		}

		c.metric = m

		return nil
	}
}

// NewAcquisitionCore creates an acquisition core bound to the given shared
// memory. By default it runs the synthetic pattern source against the
// system clock.
func NewAcquisitionCore(mem *SharedMem, opts ...AcqOption) (*AcquisitionCore, error) {
	c := &AcquisitionCore{
		mem:        mem,
		cfg:        mem.Config(),
		source:     NewPatternSource(mem.Config()),
		clock:      SystemClock{},
		logger:     logger.GetLogger().With("core", "acquisition"),
		metric:     &CoreMetrics{},
		unitPeriod: defaultUnitPeriod,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// State returns the core's current capture state.
func (c *AcquisitionCore) State() CapState { return c.state.get() }

// Metrics returns the core's metrics collector.
func (c *AcquisitionCore) Metrics() *CoreMetrics { return c.metric }

// Run drives the core loop until the context is canceled. Each iteration
// handles at most one pending command and, while started, publishes one unit.
func (c *AcquisitionCore) Run(ctx context.Context) error {
	c.logger.Debug("acquisition core running")
	defer c.state.set(CapStopped)

	for {
		c.handleCommand()

		if c.state.is(CapStarted) {
			c.produceUnit()
		}

		if err := c.clock.Sleep(ctx, c.unitPeriod); err != nil {
			c.logger.Debug("acquisition core stopping", "reason", err)
			return nil
		}
	}
}

func (c *AcquisitionCore) handleCommand() {
	id, _ := c.mem.TakeAcquisitionCmd()

	switch id {
	case CoreCmdNone:
		return

	case CoreCmdCapStart:
		// Clear stale units before the first publish so the consumer cannot
		// read leftovers from a previous capture. Sequence numbers restart
		// at 1; an empty slot is nil and a slot from this capture never is.
		c.mem.InvalidateSlots()
		if cfg := c.mem.Config(); cfg != c.cfg {
			c.cfg = cfg
			c.source.Reset(cfg)
		} else {
			c.source.Rewind()
		}
		c.seq = 1
		c.produced = 0
		c.state.set(CapStarted)
		c.mem.SendToOrchestrator(CoreCmdAck, 0)
		c.logger.Debug("capture started", "config", c.cfg)

	case CoreCmdCapStop:
		c.state.set(CapStopped)
		c.mem.SendToOrchestrator(CoreCmdAck, 0)
		c.logger.Debug("capture stopped")

	default:
		c.logger.Warn("unexpected core command", "id", id)
	}
}

func (c *AcquisitionCore) produceUnit() {
	u := &CaptureUnit{Seq: c.seq, Data: make([]byte, UnitDataSize)}
	c.source.Fill(u.Data)

	c.mem.PublishUnit(u)
	c.metric.incUnitsProduced()

	c.seq++
	c.produced++

	if c.unitLimit > 0 && c.produced >= c.unitLimit {
		c.state.set(CapStopped)
		c.logger.Debug("unit limit reached", "produced", c.produced)
	}
}
