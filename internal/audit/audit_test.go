package audit

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"churchreg/entity"
)

type fakeDB struct {
	saved   []*entity.AuditEntry
	saveErr error
}

func (f *fakeDB) SaveAuditEntry(entry *entity.AuditEntry) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, entry)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecordFillsDefaults(t *testing.T) {
	db := &fakeDB{}
	recorder := New(db, testLogger())

	entry := &entity.AuditEntry{
		ActorId: "pastor.kim",
		Action:  entity.ActionApprove,
		Result:  entity.ResultSuccess,
	}
	recorder.Record(entry)

	require.Len(t, db.saved, 1)
	assert.NotEmpty(t, entry.Id)
	assert.False(t, entry.CreatedAt.IsZero())
	assert.Equal(t, entity.RiskLow, entry.RiskLevel)
}

func TestRecordKeepsExplicitRisk(t *testing.T) {
	db := &fakeDB{}
	recorder := New(db, testLogger())

	recorder.Record(&entity.AuditEntry{
		ActorId:   "pastor.kim",
		Action:    entity.ActionApprove,
		Result:    entity.ResultDenied,
		RiskLevel: entity.RiskHigh,
	})

	require.Len(t, db.saved, 1)
	assert.Equal(t, entity.RiskHigh, db.saved[0].RiskLevel)
}

func TestRecordSurvivesSinkFailure(t *testing.T) {
	db := &fakeDB{saveErr: assert.AnError}
	recorder := New(db, testLogger())

	entry := &entity.AuditEntry{
		ActorId: "pastor.kim",
		Action:  entity.ActionReject,
		Result:  entity.ResultDenied,
	}
	require.NotPanics(t, func() {
		recorder.Record(entry)
	})

	// the failed write still stamps the entry for the log fallback
	assert.NotEmpty(t, entry.Id)
	assert.False(t, entry.CreatedAt.IsZero())
	assert.Equal(t, entity.RiskLow, entry.RiskLevel)
	assert.Empty(t, db.saved)
}

func TestRecordWithoutDatabase(t *testing.T) {
	recorder := New(nil, testLogger())

	require.NotPanics(t, func() {
		recorder.Record(&entity.AuditEntry{
			ActorId: "pastor.kim",
			Action:  entity.ActionTokenCreate,
			Result:  entity.ResultSuccess,
		})
	})
}
