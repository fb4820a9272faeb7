package service

import (
	"context"
	"log"
	"sync"
	"time"

	"cardshop-bot/internal/repository"
)

// SweeperConfig holds configuration for the charge sweeper.
type SweeperConfig struct {
	// SweepInterval is how often expired pending charges are collected.
	SweepInterval time.Duration
}

// DefaultSweeperConfig returns default sweeper configuration.
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		SweepInterval: 10 * time.Minute,
	}
}

// ChargeSweeper periodically expires pending charges that were never paid,
// so the payments table does not accumulate dead entries.
type ChargeSweeper struct {
	charges  repository.PaymentRepository
	config   SweeperConfig
	ticker   *time.Ticker
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewChargeSweeper creates a sweeper over the payments store.
func NewChargeSweeper(charges repository.PaymentRepository, config SweeperConfig) *ChargeSweeper {
	if config.SweepInterval <= 0 {
		config = DefaultSweeperConfig()
	}
	return &ChargeSweeper{
		charges: charges,
		config:  config,
		stopCh:  make(chan struct{}),
	}
}

// Start launches the background sweep loop.
func (s *ChargeSweeper) Start() {
	s.ticker = time.NewTicker(s.config.SweepInterval)
	go s.run()
	log.Printf("[ChargeSweeper] Started, interval=%v", s.config.SweepInterval)
}

func (s *ChargeSweeper) run() {
	for {
		select {
		case <-s.ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

func (s *ChargeSweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	expired, err := s.charges.ExpirePending(ctx, time.Now())
	if err != nil {
		log.Printf("[ChargeSweeper] Sweep failed: %v", err)
		return
	}
	if expired > 0 {
		log.Printf("[ChargeSweeper] Expired %d pending charges", expired)
	}
}

// Stop halts the sweep loop.
func (s *ChargeSweeper) Stop() {
	s.stopOnce.Do(func() {
		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
	})
}
