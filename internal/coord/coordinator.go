// Package coord tracks the one active sync run per album and serializes album mutations.
package coord

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kozaktomas/pinalbum/internal/album"
)

// Cancellation causes attached to a run's context.
var (
	ErrSuperseded = errors.New("run superseded by reload")
	ErrCancelled  = errors.New("run cancelled")
)

// Coordinator owns the album -> run registry and per-album locks.
// All methods are safe for concurrent use.
type Coordinator struct {
	mu    sync.Mutex
	runs  map[string]*Run
	locks map[string]*albumLock
}

// albumLock is dropped from the registry once no goroutine holds or waits on it.
type albumLock struct {
	mu   sync.Mutex
	refs int
}

// New creates an empty Coordinator.
func New() *Coordinator {
	return &Coordinator{
		runs:  make(map[string]*Run),
		locks: make(map[string]*albumLock),
	}
}

// Run is one sync execution for an album. Its context is cancelled when the run is
// superseded, cancelled or released.
type Run struct {
	albumID string
	coord   *Coordinator
	ctx     context.Context
	cancel  context.CancelCauseFunc
	done    chan struct{}
	once    sync.Once
	err     error
}

// AlbumID returns the album the run belongs to.
func (r *Run) AlbumID() string {
	return r.albumID
}

// Context is live while the run owns the album.
func (r *Run) Context() context.Context {
	return r.ctx
}

// Done is closed after Release.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Err returns the error the run was released with. Only meaningful after Done.
func (r *Run) Err() error {
	select {
	case <-r.done:
		return r.err
	default:
		return nil
	}
}

// Release ends the run, records err and frees the album. Calls after the first are ignored.
func (r *Run) Release(err error) {
	r.once.Do(func() {
		r.coord.mu.Lock()
		if r.coord.runs[r.albumID] == r {
			delete(r.coord.runs, r.albumID)
		}
		r.coord.mu.Unlock()

		r.err = err
		r.cancel(ErrCancelled)
		close(r.done)
	})
}

func (c *Coordinator) newRun(parent context.Context, albumID string) *Run {
	ctx, cancel := context.WithCancelCause(parent)
	return &Run{
		albumID: albumID,
		coord:   c,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// Acquire registers a new run for albumID. It fails with album.ErrConcurrentSync
// while another run is registered.
func (c *Coordinator) Acquire(parent context.Context, albumID string) (*Run, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, busy := c.runs[albumID]; busy {
		return nil, fmt.Errorf("album %s: %w", albumID, album.ErrConcurrentSync)
	}
	r := c.newRun(parent, albumID)
	c.runs[albumID] = r
	return r, nil
}

// Supersede installs a new run for albumID, cancels the previous one and waits until
// it has been released. A concurrent Acquire fails from the moment Supersede is called.
func (c *Coordinator) Supersede(parent context.Context, albumID string) (*Run, error) {
	c.mu.Lock()
	prev := c.runs[albumID]
	r := c.newRun(parent, albumID)
	c.runs[albumID] = r
	c.mu.Unlock()

	if prev != nil {
		prev.cancel(ErrSuperseded)
		select {
		case <-prev.done:
		case <-parent.Done():
			r.Release(parent.Err())
			return nil, parent.Err()
		}
	}
	return r, nil
}

// Cancel stops the active run of albumID, if any, and waits for its release.
func (c *Coordinator) Cancel(ctx context.Context, albumID string) error {
	c.mu.Lock()
	r := c.runs[albumID]
	c.mu.Unlock()

	if r == nil {
		return nil
	}
	r.cancel(ErrCancelled)
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Active reports whether albumID has a registered run.
func (c *Coordinator) Active(albumID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.runs[albumID]
	return ok
}

// Lock acquires the album's mutation lock and returns its unlock function.
func (c *Coordinator) Lock(albumID string) func() {
	c.mu.Lock()
	l, ok := c.locks[albumID]
	if !ok {
		l = &albumLock{}
		c.locks[albumID] = l
	}
	l.refs++
	c.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		c.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(c.locks, albumID)
		}
		c.mu.Unlock()
	}
}
