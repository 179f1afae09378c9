package app

import (
	"time"

	"github.com/jmmolins87/NeuronIA-sub001/internal/clock"
)

// resolveNow prefers an explicit override when the transport let one
// through; otherwise the injected clock decides.
func resolveNow(clk clock.Clock, override *time.Time) time.Time {
	if override != nil {
		return override.UTC()
	}
	return clk.Now()
}
