package audit

import (
	"context"
	"time"

	"github.com/nerrad567/catalog-session/internal/infrastructure/logging"
	"github.com/nerrad567/catalog-session/internal/session"
)

// SourceClient is the audit source for operations started on this client.
const SourceClient = "client"

// MetricsWriter receives one point per session operation.
// *influxdb.Client satisfies it.
type MetricsWriter interface {
	WriteAuthExchange(op, outcome, role string, duration time.Duration, at time.Time)
}

// RecorderDeps holds the dependencies of a Recorder.
type RecorderDeps struct {
	Repo   Repository
	Logger *logging.Logger

	// Metrics is optional.
	Metrics MetricsWriter

	// Source labels every entry; SourceClient when empty.
	Source string
}

// Recorder turns session events into audit entries and telemetry points.
// It satisfies session.Recorder.
type Recorder struct {
	repo    Repository
	metrics MetricsWriter
	logger  *logging.Logger
	source  string
}

// NewRecorder creates a Recorder.
func NewRecorder(deps RecorderDeps) *Recorder {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}
	source := deps.Source
	if source == "" {
		source = SourceClient
	}
	return &Recorder{
		repo:    deps.Repo,
		metrics: deps.Metrics,
		logger:  logger.With("component", "audit"),
		source:  source,
	}
}

// Record implements session.Recorder. Failures are logged, never returned:
// auditing must not change the outcome of a session operation.
func (r *Recorder) Record(ctx context.Context, ev session.Event) {
	if r.metrics != nil {
		r.metrics.WriteAuthExchange(string(ev.Op), string(ev.Outcome), string(ev.Role), ev.Duration, ev.At)
	}
	if r.repo == nil {
		return
	}

	details := map[string]any{
		"duration_ms": ev.Duration.Milliseconds(),
	}
	if ev.Err != nil {
		details["error"] = ev.Err.Error()
	}

	entry := &AuditLog{
		Action:    string(ev.Op),
		Outcome:   string(ev.Outcome),
		UserID:    ev.UserID,
		Role:      string(ev.Role),
		Source:    r.source,
		Details:   details,
		CreatedAt: ev.At,
	}
	if err := r.repo.Create(context.WithoutCancel(ctx), entry); err != nil {
		r.logger.Error("writing audit entry", "action", entry.Action, "error", err)
	}
}
