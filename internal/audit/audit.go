package audit

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"churchreg/entity"
	"churchreg/lib/sl"
)

type Database interface {
	SaveAuditEntry(entry *entity.AuditEntry) error
}

// Recorder appends entries to the security audit log. Writes are
// best-effort: a failed store write falls back to the service log instead
// of failing the operation being audited.
type Recorder struct {
	db  Database
	log *slog.Logger
}

func New(db Database, log *slog.Logger) *Recorder {
	return &Recorder{db: db, log: log.With(sl.Module("audit"))}
}

func (r *Recorder) Record(entry *entity.AuditEntry) {
	if entry.Id == "" {
		entry.Id = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if entry.RiskLevel == "" {
		entry.RiskLevel = entity.RiskLow
	}

	if r.db != nil {
		err := r.db.SaveAuditEntry(entry)
		if err == nil {
			return
		}
		r.log.Error("audit write failed", sl.Err(err))
	}
	// fallback keeps a trace in the service log when the sink is down
	r.log.Warn("audit entry",
		slog.String("actor", entry.ActorId),
		slog.String("action", entry.Action),
		slog.String("target", entry.TargetId),
		slog.String("result", entry.Result),
		slog.String("risk", string(entry.RiskLevel)),
		slog.String("details", entry.Details),
	)
}
