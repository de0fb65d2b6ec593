package server

import (
	"context"
	"io"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// UploadQueueCapacity is the fixed capacity of the upload queue (spec.md
// §3).
const UploadQueueCapacity = 5

// DefaultTransferDelay is the simulated transfer duration the Transfer
// worker sleeps for after dequeueing a FileTransfer (spec.md §4.5). It is
// long enough to make a sixth concurrent /sendfile observe backpressure,
// per spec.md's design notes. Configurable via WithTransferDelay.
const DefaultTransferDelay = 2 * time.Second

// FileTransfer is a pending file transfer record (spec.md §3). Payload is
// an opaque handle to the transferred bytes; the engine never reads it —
// it is released (closed) once the Transfer worker is done with the
// record, whether delivery succeeded or not. Payload may be nil for a
// notification-only transfer.
type FileTransfer struct {
	Filename   string
	Sender     string
	Receiver   string
	Size       int64
	EnqueuedAt time.Time
	Payload    io.Closer
}

func (ft *FileTransfer) release() {
	if ft.Payload != nil {
		_ = ft.Payload.Close()
	}
}

// uploadQueue is the bounded producer/consumer queue described in spec.md
// §3/§4.5/§9: a fixed-capacity circular buffer guarded by a mutex, with two
// counting semaphores (slots, items) as the authoritative coordination
// primitives. golang.org/x/sync/semaphore.Weighted implements the counting
// semaphore directly — each Acquire/Release moves exactly one unit of
// weight — so the hand-rolled channel-of-tokens trick the teacher's own
// bandwidth limiter avoids needing is unnecessary here too.
//
// Producers: slots.Acquire (or TryAcquire) -> mu -> items.Release.
// Consumer:  items.Acquire -> mu -> slots.Release.
// The count field mirrored in the struct is advisory only, per spec.md §3.
type uploadQueue struct {
	capacity int
	slots    *semaphore.Weighted // free slots
	items    *semaphore.Weighted // filled slots

	mu    sync.Mutex
	buf   []*FileTransfer
	head  int
	tail  int
	count int

	// shutdownCtx/shutdownCancel let wake() unblock a consumer parked in
	// pop() without touching the items semaphore: cancelling it never
	// changes how many permits are held, so it can never drive items.cur
	// negative the way an extra Release(1) could when the queue is already
	// saturated (capacity held) at shutdown time.
	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
}

func newUploadQueue(capacity int) *uploadQueue {
	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	q := &uploadQueue{
		capacity:       capacity,
		slots:          semaphore.NewWeighted(int64(capacity)),
		items:          semaphore.NewWeighted(int64(capacity)),
		buf:            make([]*FileTransfer, capacity),
		shutdownCtx:    shutdownCtx,
		shutdownCancel: shutdownCancel,
	}
	// items starts at 0: drain every permit so a consumer blocks until a
	// producer posts one via push().
	_ = q.items.Acquire(context.Background(), int64(capacity))
	return q
}

// tryReserveSlot attempts a non-blocking acquire of one free slot.
func (q *uploadQueue) tryReserveSlot() bool {
	return q.slots.TryAcquire(1)
}

// reserveSlot blocks until a free slot is available or ctx is done.
func (q *uploadQueue) reserveSlot(ctx context.Context) error {
	return q.slots.Acquire(ctx, 1)
}

// push commits ft into the buffer and posts one item permit. The caller
// must have already reserved a slot (tryReserveSlot or reserveSlot).
// Returns the advisory queue size after the push.
func (q *uploadQueue) push(ft *FileTransfer) int {
	q.mu.Lock()
	q.buf[q.tail] = ft
	q.tail = (q.tail + 1) % q.capacity
	q.count++
	size := q.count
	q.mu.Unlock()

	q.items.Release(1)
	return size
}

// pop blocks until an item permit is available, then dequeues the head
// record in producer-commit order. A pending item is always acquired
// first regardless of shutdown state, so a wake() during shutdown still
// lets the consumer drain whatever is already queued; ok is false only
// once the queue is empty and wake has been called, meaning it is time
// to exit rather than retrying forever.
func (q *uploadQueue) pop() (ft *FileTransfer, ok bool) {
	if err := q.items.Acquire(q.shutdownCtx, 1); err != nil {
		// Acquire fails as soon as the shutdown context is done, even with
		// permits available; take any item still queued before giving up.
		if !q.items.TryAcquire(1) {
			return nil, false
		}
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	ft = q.buf[q.head]
	q.buf[q.head] = nil
	q.head = (q.head + 1) % q.capacity
	q.count--
	return ft, true
}

// releaseSlot frees the slot held by a delivered (or abandoned) transfer.
func (q *uploadQueue) releaseSlot() {
	q.slots.Release(1)
}

// wake unblocks a consumer parked in pop() once the queue has no more
// items to drain, used by Shutdown (spec.md §4.7). Safe to call more than
// once. It never touches the items semaphore, so it cannot drive it past
// zero even when the queue is already at capacity.
func (q *uploadQueue) wake() {
	q.shutdownCancel()
}

// len returns the advisory current size of the queue.
func (q *uploadQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// transferWorker is the single consumer of the upload queue (spec.md
// §4.5). All in-flight transfers are serialized: multiple /sendfile
// requests queue in producer-commit order and deliver in that same order.
func (s *Server) transferWorker() {
	defer s.wg.Done()
	for {
		// pop only returns ok=false once wake() has been called and the
		// queue has fully drained, so no running-flag check is needed here:
		// a queued item is always processed before exit, shutdown or not.
		ft, ok := s.uploads.pop()
		if !ok {
			return
		}

		queueWait := time.Since(ft.EnqueuedAt)

		delay := s.transferDelay
		transferStart := time.Now()
		if delay > 0 {
			time.Sleep(delay)
		}
		transferDuration := time.Since(transferStart)

		delivered := s.deliverTransfer(ft)
		if s.metrics != nil {
			s.metrics.RecordTransfer(ft.Size, queueWait, transferDuration, delivered)
		}
		ft.release()
		s.uploads.releaseSlot()
	}
}

// deliverTransfer resolves the receiver and, if still online, sends the
// notification line mandated by spec.md §4.5. Delivery failures (receiver
// offline or a dead socket) are logged, never retried. It reports whether
// delivery succeeded.
func (s *Server) deliverTransfer(ft *FileTransfer) bool {
	receiver, ok := s.users.lookup(ft.Receiver)
	if !ok {
		s.eventLog.record(tagSendFile, "failed: "+ft.Receiver+" offline at delivery, dropping "+ft.Filename)
		return false
	}

	line := "[FILE] Received '" + ft.Filename + "' from " + ft.Sender + " (" + strconv.FormatInt(ft.Size, 10) + " bytes)"
	if err := receiver.send(line); err != nil {
		s.eventLog.record(tagSendFile, "failed: delivery to "+ft.Receiver+" errored: "+err.Error())
		return false
	}
	s.eventLog.record(tagSendFile, "delivered "+ft.Filename+" from "+ft.Sender+" to "+ft.Receiver)
	return true
}
