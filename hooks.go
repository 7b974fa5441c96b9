package staffmap

import (
	"sync"

	"github.com/agentstation/staffmap/pkg/hierarchy"
	"github.com/agentstation/staffmap/pkg/report"
)

// Hook function types for run events
type (
	// ReportHook is called with every finished report
	ReportHook func(r *report.Report)

	// DegradedHook is called when a ledger was missing or empty
	DegradedHook func(r *report.Report)

	// ViolationHook is called once per level that failed its integrity check
	ViolationHook func(runID string, level *hierarchy.LevelResult)
)

// hooks manages event callbacks for finished runs
type hooks struct {
	mu          sync.RWMutex
	onReport    []ReportHook
	onDegraded  []DegradedHook
	onViolation []ViolationHook
}

// newHooks creates a new hooks instance
func newHooks() *hooks {
	return &hooks{}
}

// OnReport registers a callback for every finished report
func (h *hooks) OnReport(fn ReportHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onReport = append(h.onReport, fn)
}

// OnDegraded registers a callback for runs with a missing ledger
func (h *hooks) OnDegraded(fn DegradedHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onDegraded = append(h.onDegraded, fn)
}

// OnViolation registers a callback for levels that failed integrity
func (h *hooks) OnViolation(fn ViolationHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onViolation = append(h.onViolation, fn)
}

// trigger runs the hooks that apply to a finished report
func (h *hooks) trigger(r *report.Report) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if r.Levels != nil {
		for _, level := range r.Levels.All() {
			if level == nil || !level.IntegrityFailed {
				continue
			}
			for _, hook := range h.onViolation {
				hook(r.Metadata.RunID, level)
			}
		}
	}

	if r.Metadata.Degraded {
		for _, hook := range h.onDegraded {
			hook(r)
		}
	}

	for _, hook := range h.onReport {
		hook(r)
	}
}
