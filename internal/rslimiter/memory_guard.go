package rslimiter

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/mem"
)

// ErrMemoryPressure is returned when system memory is above the guard threshold.
var ErrMemoryPressure = errors.New("system memory above threshold")

// MemoryProbe reports used system memory as a fraction in [0, 1].
type MemoryProbe func() (float64, error)

// SystemMemoryProbe reads used memory from the OS.
func SystemMemoryProbe() (float64, error) {
	vmStat, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return vmStat.UsedPercent / 100, nil
}

// MemoryGuard refuses memory hungry work, such as launching a browser tab,
// while the host is under memory pressure.
type MemoryGuard struct {
	threshold float64
	probe     MemoryProbe
	logger    zerolog.Logger
}

// NewMemoryGuard creates a guard. A threshold <= 0 or >= 1 disables it.
func NewMemoryGuard(threshold float64, logger zerolog.Logger) *MemoryGuard {
	return &MemoryGuard{
		threshold: threshold,
		probe:     SystemMemoryProbe,
		logger:    logger.With().Str("component", "MemoryGuard").Logger(),
	}
}

// WithProbe replaces the memory probe.
func (g *MemoryGuard) WithProbe(probe MemoryProbe) *MemoryGuard {
	g.probe = probe
	return g
}

// Check returns ErrMemoryPressure when used memory exceeds the threshold.
// A probe failure lets the work proceed.
func (g *MemoryGuard) Check() error {
	if g == nil || g.threshold <= 0 || g.threshold >= 1 {
		return nil
	}

	used, err := g.probe()
	if err != nil {
		g.logger.Debug().Err(err).Msg("Memory probe failed, allowing work")
		return nil
	}
	if used > g.threshold {
		g.logger.Warn().
			Float64("used", used).
			Float64("threshold", g.threshold).
			Msg("Refusing work under memory pressure")
		return fmt.Errorf("%w: %.2f > %.2f", ErrMemoryPressure, used, g.threshold)
	}
	return nil
}
