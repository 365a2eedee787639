package health

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/kailas-cloud/fastload/internal/domain"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates every check failed.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	db      DBPinger
	dirs    DirStater
	presets map[string]string
}

// New creates a Service. dirs defaults to the local filesystem.
func New(db DBPinger, dirs DirStater, presets map[string]string) *Service {
	if dirs == nil {
		dirs = osDirs{}
	}
	return &Service{db: db, dirs: dirs, presets: presets}
}

// Check pings the database and stats every preset directory.
// Preset checks are reported as "preset:<name>".
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult, len(s.presets)+1)

	if err := s.db.Ping(ctx); err != nil {
		checks["database"] = CheckError
	} else {
		checks["database"] = CheckOK
	}

	names := make([]string, 0, len(s.presets))
	for name := range s.presets {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if err := s.dirs.StatDir(s.presets[name]); err != nil {
			checks["preset:"+name] = CheckError
		} else {
			checks["preset:"+name] = CheckOK
		}
	}

	failed := 0
	for _, v := range checks {
		if v == CheckError {
			failed++
		}
	}

	status := Healthy
	switch {
	case failed == len(checks):
		status = Unhealthy
	case failed > 0:
		status = Degraded
	}

	return Report{Status: status, Checks: checks}
}

type osDirs struct{}

func (osDirs) StatDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", domain.ErrNotDirectory, dir)
	}
	return nil
}
