package fastload

import (
	"context"
	"strings"

	healthuc "github.com/kailas-cloud/fastload/internal/usecase/health"
)

const presetCheckPrefix = "preset:"

// HealthStatus reports the hash store and every preset directory.
type HealthStatus struct {
	// Status is "ok", "degraded" (some checks failed) or "error" (all failed).
	Status string
	// Database is "ok" or "error".
	Database string
	// Presets maps preset name to "ok" or "error".
	Presets map[string]string
}

// OK reports whether every check passed.
func (h HealthStatus) OK() bool { return h.Status == string(healthuc.Healthy) }

// Health pings the hash store and checks that every preset is a readable directory.
func (c *Client) Health(ctx context.Context) HealthStatus {
	report := c.healthSvc.Check(ctx)
	h := HealthStatus{Status: string(report.Status), Presets: make(map[string]string)}
	for name, res := range report.Checks {
		if preset, ok := strings.CutPrefix(name, presetCheckPrefix); ok {
			h.Presets[preset] = string(res)
			continue
		}
		h.Database = string(res)
	}
	return h
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}
