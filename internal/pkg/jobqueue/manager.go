package jobqueue

import (
	"context"
	"sync"
	"time"

	"github.com/ManuelReschke/CoinFox/internal/pkg/webhooks"
	"github.com/gofiber/fiber/v2/log"
)

const minRecoveryInterval = time.Minute

type ManagerConfig struct {
	// Queue is nil when events are not dispatched through Redis.
	Queue      *Queue
	Sweeper    *webhooks.Sweeper
	MaxRetries int
	// SweepInterval of 0 disables the in-process sweeper (external cron only).
	SweepInterval time.Duration
	// StaleAfter of 0 disables stale pending recovery.
	StaleAfter time.Duration
}

// Manager owns the queue workers and the periodic retry and recovery tasks.
type Manager struct {
	cfg              ManagerConfig
	recoveryInterval time.Duration
	sweepTicker      *time.Ticker
	recoveryTicker   *time.Ticker
	stopCh           chan struct{}
	wg               sync.WaitGroup
	mu               sync.Mutex
	running          bool
}

func NewManager(cfg ManagerConfig) *Manager {
	interval := cfg.StaleAfter / 3
	if interval < minRecoveryInterval {
		interval = minRecoveryInterval
	}
	return &Manager{
		cfg:              cfg,
		recoveryInterval: interval,
	}
}

// GetQueue returns the managed queue, nil outside queue dispatch mode.
func (m *Manager) GetQueue() *Queue {
	return m.cfg.Queue
}

// Start starts the queue and background tasks
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting webhook workers and background tasks")

	if m.cfg.Queue != nil {
		m.cfg.Queue.Start()
	}

	if m.cfg.Sweeper != nil && m.cfg.SweepInterval > 0 {
		m.sweepTicker = time.NewTicker(m.cfg.SweepInterval)
		m.wg.Add(1)
		go m.sweepWorker(m.sweepTicker, m.stopCh)
	}

	if m.cfg.Sweeper != nil && m.cfg.StaleAfter > 0 {
		m.recoveryTicker = time.NewTicker(m.recoveryInterval)
		m.wg.Add(1)
		go m.recoveryWorker(m.recoveryTicker, m.stopCh)
	}

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops background tasks first, then the queue
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping webhook workers and background tasks...")

	if m.sweepTicker != nil {
		m.sweepTicker.Stop()
	}
	if m.recoveryTicker != nil {
		m.recoveryTicker.Stop()
	}

	close(m.stopCh)
	m.running = false
	m.wg.Wait()

	if m.cfg.Queue != nil {
		m.cfg.Queue.Stop()
	}

	log.Info("[JobQueue Manager] Stopped successfully")
}

func (m *Manager) sweepWorker(ticker *time.Ticker, stopCh chan struct{}) {
	defer m.wg.Done()
	log.Infof("[JobQueue Manager] Started retry sweeper (interval: %s, max retries: %d)", m.cfg.SweepInterval, m.cfg.MaxRetries)

	for {
		select {
		case <-stopCh:
			log.Info("[JobQueue Manager] Retry sweeper stopping")
			return
		case <-ticker.C:
			if _, err := m.RunSweepOnce(context.Background()); err != nil {
				log.Errorf("[JobQueue Manager] Retry sweep error: %v", err)
			}
		}
	}
}

func (m *Manager) recoveryWorker(ticker *time.Ticker, stopCh chan struct{}) {
	defer m.wg.Done()
	log.Infof("[JobQueue Manager] Started stale pending recovery (older than %s, every %s)", m.cfg.StaleAfter, m.recoveryInterval)

	for {
		select {
		case <-stopCh:
			log.Info("[JobQueue Manager] Stale pending recovery stopping")
			return
		case <-ticker.C:
			if _, err := m.RunRecoveryOnce(context.Background()); err != nil {
				log.Errorf("[JobQueue Manager] Stale pending recovery error: %v", err)
			}
		}
	}
}

// RunSweepOnce runs a single retry sweep with the configured ceiling.
func (m *Manager) RunSweepOnce(ctx context.Context) (webhooks.SweepReport, error) {
	return m.cfg.Sweeper.Sweep(ctx, m.cfg.MaxRetries)
}

// RunRecoveryOnce reprocesses pending events older than StaleAfter.
func (m *Manager) RunRecoveryOnce(ctx context.Context) (int, error) {
	return m.cfg.Sweeper.RecoverStale(ctx, m.cfg.StaleAfter)
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
