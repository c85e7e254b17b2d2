package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/strangerlink/match-signaling-service/internal/domain/event"
)

// Interface guard
var _ Connector = (*connect)(nil)

// Connector is the per-connection outbound channel the matchmaker writes to
// and the transport handler drains. It decouples the matching core from the
// WebSocket write path and allows mocking in tests.
type Connector interface {
	GetID() uuid.UUID
	Send(ev event.Eventer, timeout time.Duration) bool // Thread-safe send with backpressure handling
	Recv() <-chan event.Eventer
	Close() // Terminate connection and release resources
}

// connect is the concrete implementation (unexported to force interface usage).
type connect struct {
	id        uuid.UUID
	createdAt time.Time
	ctx       context.Context
	cancelFn  context.CancelFunc

	// mu orders Send against Close: the matchmaker may still hold a reference
	// captured before the transport died, and a send must never hit a closed
	// channel.
	mu     sync.RWMutex
	sendCh chan event.Eventer

	closeOnce      *sync.Once
	lastActivityAt int64  // atomic
	droppedCount   uint64 // atomic
}

// connectPool recycles connection objects to reduce GC pressure under churn.
var connectPool = sync.Pool{
	New: func() any {
		return &connect{}
	},
}

// NewConnector acquires a connector from the pool and binds it to the caller's
// context. The connection_id is assigned here and is unique for the lifetime
// of the connection.
func NewConnector(ctx context.Context, bufferSize int) Connector {
	c := connectPool.Get().(*connect)
	c.reset(ctx, bufferSize)
	return c
}

// reset re-initializes a pooled object, wiping stale state and re-arming the
// close guard.
func (c *connect) reset(ctx context.Context, bufferSize int) {
	childCtx, cancel := context.WithCancel(ctx)

	c.id = uuid.New()
	c.createdAt = time.Now()
	c.ctx = childCtx
	c.cancelFn = cancel
	c.mu.Lock()
	c.sendCh = make(chan event.Eventer, bufferSize)
	c.mu.Unlock()
	c.closeOnce = new(sync.Once)
	atomic.StoreInt64(&c.lastActivityAt, time.Now().UnixNano())
	atomic.StoreUint64(&c.droppedCount, 0)
}

func (c *connect) GetID() uuid.UUID { return c.id }

// Send attempts to push an event into the mailbox, waiting up to timeout for
// space. A dead transport fails immediately; a saturated one falls through to
// priority-based shedding.
func (c *connect) Send(ev event.Eventer, timeout time.Duration) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.sendCh == nil {
		return false
	}

	atomic.StoreInt64(&c.lastActivityAt, time.Now().UnixNano())

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	select {
	case <-c.ctx.Done():
		return false
	case c.sendCh <- ev:
		return true
	case <-ctx.Done():
		return c.handleBackpressure(ev, timeout)
	}
}

// handleBackpressure manages full mailboxes by dropping low-priority events.
// State notifications (matched/waiting/partner-*) are high priority and will
// evict relayed traffic rather than be lost.
func (c *connect) handleBackpressure(ev event.Eventer, timeout time.Duration) bool {
	if ev.GetPriority() <= event.PriorityLow {
		atomic.AddUint64(&c.droppedCount, 1)
		return false
	}

	select {
	case oldEv := <-c.sendCh:
		if oldEv.GetPriority() < ev.GetPriority() {
			// A concurrent sender can refill the freed slot; never block
			// past the caller's deadline.
			select {
			case c.sendCh <- ev:
				return true
			case <-time.After(timeout):
			}
		} else {
			// The evicted event was not lower priority; put it back best effort.
			select {
			case c.sendCh <- oldEv:
			default:
			}
		}
	case <-time.After(timeout):
	}

	atomic.AddUint64(&c.droppedCount, 1)
	return false
}

func (c *connect) Recv() <-chan event.Eventer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sendCh
}

// Close terminates the connection, unblocks the transport write loop and
// recycles the object. Safe to call from the handler's defer and the
// matchmaker's teardown concurrently.
func (c *connect) Close() {
	c.closeOnce.Do(func() {
		c.cancelFn()

		// Closing the channel signals the write pump (via !ok) to flush a
		// final close frame and exit. Taking the write lock waits out any
		// in-flight Send first.
		c.mu.Lock()
		if c.sendCh != nil {
			close(c.sendCh)
		}
		c.sendCh = nil
		c.mu.Unlock()

		connectPool.Put(c)
	})
}
