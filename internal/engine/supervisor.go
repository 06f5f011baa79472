package engine

import (
	"github.com/panjf2000/ants/v2"

	"github.com/richtraders/hft-core/internal/logging"
)

// Supervisor starts and stops every symbol's TradeEngine through a bounded
// goroutine pool rather than raw unmanaged `go func()` fan-out, so a
// misconfigured deployment with hundreds of symbols can't exhaust OS
// threads. Each TradeEngine still owns its own two long-lived consumer
// goroutines once submitted; the pool only bounds how many engines can be
// in their Start() call concurrently.
type Supervisor struct {
	pool    *ants.Pool
	engines []*TradeEngine
	log     logging.Producer
}

// NewSupervisor constructs a Supervisor whose pool admits at most
// maxConcurrentStarts simultaneous engine Start() calls.
func NewSupervisor(maxConcurrentStarts int, log logging.Producer) (*Supervisor, error) {
	pool, err := ants.NewPool(maxConcurrentStarts)
	if err != nil {
		return nil, err
	}
	return &Supervisor{pool: pool, log: log}, nil
}

// Add registers eng with the supervisor so StartAll/StopAll reach it.
func (s *Supervisor) Add(eng *TradeEngine) {
	s.engines = append(s.engines, eng)
}

// StartAll submits every registered engine's Start to the bounded pool and
// waits until every submitted Start call has returned.
func (s *Supervisor) StartAll() error {
	done := make(chan error, len(s.engines))
	for _, eng := range s.engines {
		eng := eng
		if err := s.pool.Submit(func() {
			eng.Start()
			done <- nil
		}); err != nil {
			return err
		}
	}
	for range s.engines {
		if err := <-done; err != nil {
			return err
		}
	}
	return nil
}

// StopAll stops every registered engine and releases the pool.
func (s *Supervisor) StopAll() {
	for _, eng := range s.engines {
		eng.Stop()
	}
	s.pool.Release()
}
