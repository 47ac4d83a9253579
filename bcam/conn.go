package bcam

import (
	"context"
	"fmt"
	"sync"
)

// MessageConn is a bidirectional, message-oriented channel between the
// orchestrator core and the host. It preserves message boundaries: every
// Send is delivered as exactly one Recv on the peer, never split or merged.
//
// Send and Recv are independently safe for one concurrent caller each
// (single writer, single reader per direction).
type MessageConn interface {
	// Send transmits one message of at most MaxMessageSize bytes.
	Send(data []byte) error

	// Recv blocks until one message arrives, the context is canceled, or the
	// channel is closed. The returned slice is owned by the caller.
	Recv(ctx context.Context) ([]byte, error)

	// Close tears down both directions. Pending and subsequent calls fail
	// with ErrConnClosed.
	Close() error
}

// pipeConn is one endpoint of an in-memory MessageConn pair.
type pipeConn struct {
	sendCh chan []byte
	recvCh chan []byte

	closeOnce sync.Once
	done      chan struct{}
	peerDone  chan struct{}
}

// Pipe creates a connected pair of in-memory message channels, each direction
// buffered to depth messages. It is the loopback transport used by tests and
// the example pipeline; on target hardware the same interface fronts the
// kernel character device.
func Pipe(depth int) (MessageConn, MessageConn) {
	if depth < 1 {
		depth = 1
	}

	aToB := make(chan []byte, depth)
	bToA := make(chan []byte, depth)
	aDone := make(chan struct{})
	bDone := make(chan struct{})

	a := &pipeConn{sendCh: aToB, recvCh: bToA, done: aDone, peerDone: bDone}
	b := &pipeConn{sendCh: bToA, recvCh: aToB, done: bDone, peerDone: aDone}

	return a, b
}

func (p *pipeConn) Send(data []byte) error {
	if len(data) > MaxMessageSize {
		return fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(data))
	}

	// Copy so the caller may reuse its buffer immediately after Send returns.
	msg := make([]byte, len(data))
	copy(msg, data)

	select {
	case <-p.done:
		return ErrConnClosed
	case <-p.peerDone:
		return ErrConnClosed
	case p.sendCh <- msg:
		return nil
	}
}

func (p *pipeConn) Recv(ctx context.Context) ([]byte, error) {
	// Drain buffered messages even after close, so a shutdown does not drop
	// frames already in flight.
	select {
	case msg := <-p.recvCh:
		return msg, nil
	default:
	}

	select {
	case msg := <-p.recvCh:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.done:
		return nil, ErrConnClosed
	case <-p.peerDone:
		return nil, ErrConnClosed
	}
}

func (p *pipeConn) Close() error {
	p.closeOnce.Do(func() { close(p.done) })
	return nil
}
