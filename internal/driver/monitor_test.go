package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type statsSource struct {
	inUse int
	max   int
}

func (s *statsSource) stats() PoolStats {
	return PoolStats{InUse: s.inUse, Max: s.max}
}

func TestMonitorEdgeTriggeredCallbacks(t *testing.T) {
	src := &statsSource{max: 20}
	var warnings, criticals, recoveries int
	m := NewPoolMonitor(src.stats, MonitorConfig{
		OnWarning:  func(PoolStats) { warnings++ },
		OnCritical: func(PoolStats) { criticals++ },
		OnRecovery: func(PoolStats) { recoveries++ },
	})

	// Exactly at the warning threshold: 16/20 = 0.80.
	src.inUse = 16
	assert.Equal(t, UtilizationWarning, m.Check())
	assert.Equal(t, 1, warnings)

	// Staying in warning does not re-fire.
	src.inUse = 17
	m.Check()
	assert.Equal(t, 1, warnings)

	// Exactly at critical: 19/20 = 0.95.
	src.inUse = 19
	assert.Equal(t, UtilizationCritical, m.Check())
	assert.Equal(t, 1, criticals)

	// Recovery fires once on return to normal.
	src.inUse = 2
	assert.Equal(t, UtilizationNormal, m.Check())
	assert.Equal(t, 1, recoveries)

	// Re-entering warning fires again.
	src.inUse = 18
	m.Check()
	assert.Equal(t, 2, warnings)
}

func TestMonitorZeroMaxIsNormal(t *testing.T) {
	src := &statsSource{inUse: 5, max: 0}
	m := NewPoolMonitor(src.stats, MonitorConfig{})
	assert.Equal(t, UtilizationNormal, m.Check())
}

func TestMonitorCustomThresholds(t *testing.T) {
	src := &statsSource{max: 10}
	m := NewPoolMonitor(src.stats, MonitorConfig{WarningThreshold: 0.5, CriticalThreshold: 0.9})

	src.inUse = 5
	assert.Equal(t, UtilizationWarning, m.Check())
	src.inUse = 9
	assert.Equal(t, UtilizationCritical, m.Check())
}
