package vkframe

// Releaser is a deferred cleanup action. Implementations own exactly the
// handles they free.
type Releaser interface {
	Release()
}

// ReleaseFunc adapts a closure to a Releaser.
type ReleaseFunc func()

func (f ReleaseFunc) Release() { f() }

// DeletionQueue defers destruction of GPU objects until the GPU can no longer
// be using them. Entries run in reverse push order.
//
// The queue is not safe for concurrent use. Each frame slot has its own
// queue, flushed after that slot's fence wait; the device owns a global one
// flushed at shutdown.
type DeletionQueue struct {
	entries []Releaser
	spare   []Releaser
}

func NewDeletionQueue(capacity int) *DeletionQueue {
	if capacity < 0 {
		capacity = 0
	}
	return &DeletionQueue{
		entries: make([]Releaser, 0, capacity),
		spare:   make([]Releaser, 0, capacity),
	}
}

// Push appends r. Nil entries are ignored.
func (q *DeletionQueue) Push(r Releaser) {
	if r == nil {
		return
	}
	q.entries = append(q.entries, r)
}

func (q *DeletionQueue) PushFunc(fn func()) {
	if fn == nil {
		return
	}
	q.Push(ReleaseFunc(fn))
}

func (q *DeletionQueue) Len() int {
	return len(q.entries)
}

// Flush runs every queued entry, last pushed first, and empties the queue.
// Entries pushed while flushing are kept for the next flush.
func (q *DeletionQueue) Flush() {
	if len(q.entries) == 0 {
		return
	}
	pending := q.entries
	q.entries = q.spare[:0]
	for i := len(pending) - 1; i >= 0; i-- {
		r := pending[i]
		pending[i] = nil
		r.Release()
	}
	q.spare = pending[:0]
}

type fenceReleaser struct {
	drv   SyncDriver
	fence Fence
}

func (r fenceReleaser) Release() { r.drv.DestroyFence(r.fence) }

type semaphoreReleaser struct {
	drv SyncDriver
	sem Semaphore
}

func (r semaphoreReleaser) Release() { r.drv.DestroySemaphore(r.sem) }

type commandPoolReleaser struct {
	drv  CommandDriver
	pool CommandPool
}

// Freeing the pool frees the command buffers allocated from it.
func (r commandPoolReleaser) Release() { r.drv.DestroyCommandPool(r.pool) }

type imageViewReleaser struct {
	drv  MemoryDriver
	view ImageView
}

func (r imageViewReleaser) Release() { r.drv.DestroyImageView(r.view) }
