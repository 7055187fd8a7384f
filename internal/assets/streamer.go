package assets

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/Faultbox/facefx-go/internal/facefx"
	"github.com/Faultbox/facefx-go/internal/logger"
)

// DefaultPreloadWorkers bounds concurrent loads in Preload.
const DefaultPreloadWorkers = 4

// Request is an in-flight dataset load.
type Request struct {
	name string
	done chan struct{}

	dataset *facefx.ActorDataset
	err     error
}

// Name returns the requested dataset name.
func (r *Request) Name() string { return r.name }

// Done reports whether the load has finished.
func (r *Request) Done() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Result returns the loaded dataset. It must only be called once Done
// reports true.
func (r *Request) Result() (*facefx.ActorDataset, error) {
	select {
	case <-r.done:
		return r.dataset, r.err
	default:
		return nil, fmt.Errorf("dataset %s: still loading", r.name)
	}
}

// Wait blocks until the load finishes or ctx is done.
func (r *Request) Wait(ctx context.Context) (*facefx.ActorDataset, error) {
	select {
	case <-r.done:
		return r.dataset, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Streamer loads datasets in the background. Concurrent requests for the
// same dataset share one load.
type Streamer struct {
	m     *Manager
	group singleflight.Group

	mu       sync.Mutex
	datasets map[string]*facefx.ActorDataset
}

// NewStreamer creates a streamer over m.
func NewStreamer(m *Manager) *Streamer {
	return &Streamer{
		m:        m,
		datasets: make(map[string]*facefx.ActorDataset),
	}
}

// Dataset loads a dataset synchronously, reusing a completed load.
func (s *Streamer) Dataset(name string) (*facefx.ActorDataset, error) {
	s.mu.Lock()
	ds, ok := s.datasets[name]
	s.mu.Unlock()
	if ok {
		return ds, nil
	}

	v, err, shared := s.group.Do(name, func() (any, error) {
		return s.m.LoadDataset(name)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logger.Debug("dataset load shared", zap.String("dataset", name))
	}

	ds = v.(*facefx.ActorDataset)
	s.mu.Lock()
	s.datasets[name] = ds
	s.mu.Unlock()
	return ds, nil
}

// RequestDataset starts loading a dataset in the background.
func (s *Streamer) RequestDataset(name string) *Request {
	r := &Request{name: name, done: make(chan struct{})}
	go func() {
		defer close(r.done)
		r.dataset, r.err = s.Dataset(name)
		if r.err != nil {
			logger.Warn("dataset load failed", zap.String("dataset", name), zap.Error(r.err))
		}
	}()
	return r
}

// Forget drops a completed dataset so the next request reloads it.
func (s *Streamer) Forget(name string) {
	s.mu.Lock()
	delete(s.datasets, name)
	s.mu.Unlock()
	s.group.Forget(name)
}

// ForgetAll drops every completed dataset.
func (s *Streamer) ForgetAll() {
	s.mu.Lock()
	for name := range s.datasets {
		s.group.Forget(name)
	}
	s.datasets = make(map[string]*facefx.ActorDataset)
	s.mu.Unlock()
}

// Preload loads the named datasets with at most workers loads in flight.
// It returns the first error.
func (s *Streamer) Preload(ctx context.Context, names []string, workers int) error {
	if workers <= 0 {
		workers = DefaultPreloadWorkers
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, name := range names {
		name := name
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			_, err := s.Dataset(name)
			return err
		})
	}
	return g.Wait()
}
