package catalog

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// RemoteSource loads the catalog once from a Client. There is no retry and
// no refetch: once Ready or Failed, the source never changes again.
type RemoteSource struct {
	client *Client
	log    *zap.Logger

	once sync.Once
	done chan struct{}

	mu        sync.RWMutex
	state     State
	products  []Product
	err       error
	discarded bool
}

func NewRemoteSource(client *Client, log *zap.Logger) *RemoteSource {
	if log == nil {
		log = zap.NewNop()
	}
	return &RemoteSource{
		client: client,
		log:    log,
		done:   make(chan struct{}),
		state:  StateLoading,
	}
}

// Start issues the single fetch in the background. Later calls do nothing.
func (s *RemoteSource) Start(ctx context.Context) {
	s.once.Do(func() {
		go s.load(ctx)
	})
}

func (s *RemoteSource) load(ctx context.Context) {
	defer close(s.done)

	products, err := s.client.ListProducts(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.discarded {
		s.log.Debug("catalog result discarded", zap.Error(err))
		return
	}

	if err != nil {
		s.state = StateFailed
		s.err = fmt.Errorf("failed to load products: %w", err)
		s.products = nil
		s.log.Error("catalog load failed", zap.Error(err))
		return
	}

	s.state = StateReady
	s.products = products
	s.err = nil
	s.log.Info("catalog loaded", zap.Int("products", len(products)))
}

// Close drops whatever the pending fetch returns. It does not interrupt it.
func (s *RemoteSource) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discarded = true
}

// Done is closed once the fetch has finished, applied or discarded.
func (s *RemoteSource) Done() <-chan struct{} { return s.done }

func (s *RemoteSource) Products() []Product {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Product, len(s.products))
	copy(out, s.products)
	return out
}

func (s *RemoteSource) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *RemoteSource) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}
