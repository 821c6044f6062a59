package driver

import (
	"sync"
	"time"
)

// UtilizationLevel classifies pool pressure.
type UtilizationLevel string

const (
	UtilizationNormal   UtilizationLevel = "normal"
	UtilizationWarning  UtilizationLevel = "warning"
	UtilizationCritical UtilizationLevel = "critical"
)

const (
	defaultWarningThreshold  = 0.80
	defaultCriticalThreshold = 0.95
)

// MonitorConfig configures the pool-utilization supervisor. Callbacks fire
// only on entry edges into their level; OnRecovery fires on return to normal.
type MonitorConfig struct {
	Interval          time.Duration
	WarningThreshold  float64
	CriticalThreshold float64
	OnWarning         func(PoolStats)
	OnCritical        func(PoolStats)
	OnRecovery        func(PoolStats)
}

// PoolMonitor polls pool statistics and classifies utilization.
type PoolMonitor struct {
	cfg   MonitorConfig
	stats func() PoolStats

	mu      sync.Mutex
	level   UtilizationLevel
	stopCh  chan struct{}
	running bool
}

// NewPoolMonitor builds a monitor over any stats source. Pass
// driver.GetPoolStats in production; tests substitute a fake.
func NewPoolMonitor(stats func() PoolStats, cfg MonitorConfig) *PoolMonitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.WarningThreshold <= 0 {
		cfg.WarningThreshold = defaultWarningThreshold
	}
	if cfg.CriticalThreshold <= 0 {
		cfg.CriticalThreshold = defaultCriticalThreshold
	}
	return &PoolMonitor{cfg: cfg, stats: stats, level: UtilizationNormal}
}

// Level returns the current classification.
func (m *PoolMonitor) Level() UtilizationLevel {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.level
}

// Check polls once, reclassifies, and fires edge callbacks. It is exported
// so callers (and tests) can drive the monitor without the timer.
func (m *PoolMonitor) Check() UtilizationLevel {
	s := m.stats()
	next := m.classify(s)

	m.mu.Lock()
	prev := m.level
	m.level = next
	m.mu.Unlock()

	if next == prev {
		return next
	}
	switch next {
	case UtilizationCritical:
		if m.cfg.OnCritical != nil {
			m.cfg.OnCritical(s)
		}
	case UtilizationWarning:
		if m.cfg.OnWarning != nil {
			m.cfg.OnWarning(s)
		}
	case UtilizationNormal:
		if m.cfg.OnRecovery != nil {
			m.cfg.OnRecovery(s)
		}
	}
	return next
}

// classify treats a zero-size pool as normal.
func (m *PoolMonitor) classify(s PoolStats) UtilizationLevel {
	if s.Max <= 0 {
		return UtilizationNormal
	}
	ratio := float64(s.InUse) / float64(s.Max)
	switch {
	case ratio >= m.cfg.CriticalThreshold:
		return UtilizationCritical
	case ratio >= m.cfg.WarningThreshold:
		return UtilizationWarning
	default:
		return UtilizationNormal
	}
}

// Start launches periodic polling.
func (m *PoolMonitor) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	stopCh := m.stopCh
	m.mu.Unlock()

	go func() {
		ticker := time.NewTicker(m.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-stopCh:
				return
			case <-ticker.C:
				m.Check()
			}
		}
	}()
}

// Stop halts polling.
func (m *PoolMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.running = false
	close(m.stopCh)
}
