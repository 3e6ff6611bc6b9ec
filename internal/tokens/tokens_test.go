package tokens

import (
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"churchreg/entity"
)

type fakeDB struct {
	mu       sync.Mutex
	byCode   map[string]*entity.RegistrationToken
	failNext int
	collide  bool
}

func newFakeDB() *fakeDB {
	return &fakeDB{byCode: map[string]*entity.RegistrationToken{}}
}

func (f *fakeDB) CreateToken(token *entity.RegistrationToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.collide {
		return entity.ErrDuplicateToken
	}
	if _, exists := f.byCode[token.Token]; exists {
		return entity.ErrDuplicateToken
	}
	cp := *token
	f.byCode[token.Token] = &cp
	return nil
}

func (f *fakeDB) GetToken(code string) (*entity.RegistrationToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext > 0 {
		f.failNext--
		return nil, fmt.Errorf("transient store error")
	}
	token, ok := f.byCode[code]
	if !ok {
		return nil, entity.ErrNotFound
	}
	cp := *token
	return &cp, nil
}

func (f *fakeDB) ListTokens(activeOnly bool) ([]*entity.RegistrationToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.RegistrationToken
	for _, token := range f.byCode {
		if activeOnly && !token.IsActive {
			continue
		}
		cp := *token
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeDB) DeactivateToken(code string) (*entity.RegistrationToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	token, ok := f.byCode[code]
	if !ok || !token.IsActive {
		return nil, entity.ErrNotFound
	}
	token.IsActive = false
	cp := *token
	return &cp, nil
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []*entity.AuditEntry
}

func (f *fakeAudit) Record(entry *entity.AuditEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
}

func (f *fakeAudit) byResult(result string) []*entity.AuditEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.AuditEntry
	for _, e := range f.entries {
		if e.Result == result {
			out = append(out, e)
		}
	}
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newService(db Database, audit AuditRecorder) *Service {
	return New(db, audit, testLogger(), 8, 5, "http://localhost:8080")
}

func TestCreateToken(t *testing.T) {
	db := newFakeDB()
	svc := newService(db, &fakeAudit{})

	tok, err := svc.CreateToken(&entity.CreateTokenParams{Purpose: "sunday service", MaxUses: 10}, "admin")
	require.NoError(t, err)

	assert.Len(t, tok.Token, 8)
	assert.Regexp(t, regexp.MustCompile(`^[A-Za-z0-9]+$`), tok.Token)
	assert.True(t, tok.IsActive)
	assert.Zero(t, tok.CurrentUses)
	assert.Equal(t, 10, tok.MaxUses)
	assert.Equal(t, "admin", tok.CreatedBy)
	assert.NotEmpty(t, tok.Id)
}

func TestCreateTokenRejectsBadLimits(t *testing.T) {
	svc := newService(newFakeDB(), &fakeAudit{})

	_, err := svc.CreateToken(&entity.CreateTokenParams{Purpose: "x", MaxUses: -5}, "admin")
	assert.Error(t, err)

	past := time.Now().Add(-time.Minute)
	_, err = svc.CreateToken(&entity.CreateTokenParams{Purpose: "x", MaxUses: 1, ExpiresAt: &past}, "admin")
	assert.Error(t, err)
}

func TestCreateTokenGenerationExhausted(t *testing.T) {
	db := newFakeDB()
	db.collide = true
	svc := newService(db, &fakeAudit{})

	_, err := svc.CreateToken(&entity.CreateTokenParams{Purpose: "x", MaxUses: 1}, "admin")
	assert.ErrorIs(t, err, entity.ErrGenerationExhausted)
}

func TestValidateOrderOfChecks(t *testing.T) {
	db := newFakeDB()
	svc := newService(db, &fakeAudit{})

	check, err := svc.Validate("token with spaces")
	require.NoError(t, err)
	assert.False(t, check.Valid)
	assert.Equal(t, entity.ReasonInvalidFormat, check.Reason)

	check, err = svc.Validate("Unknown1")
	require.NoError(t, err)
	assert.False(t, check.Valid)
	assert.Equal(t, entity.ReasonNotFound, check.Reason)

	expired := time.Now().Add(-time.Hour)
	db.byCode["Expired1"] = &entity.RegistrationToken{
		Token: "Expired1", IsActive: true, MaxUses: 5, ExpiresAt: &expired,
	}
	check, err = svc.Validate("Expired1")
	require.NoError(t, err)
	assert.Equal(t, entity.ReasonExpired, check.Reason)

	// inactive wins over expired: checks short-circuit in fixed order
	db.byCode["Expired1"].IsActive = false
	check, err = svc.Validate("Expired1")
	require.NoError(t, err)
	assert.Equal(t, entity.ReasonInactive, check.Reason)

	db.byCode["UsedUp01"] = &entity.RegistrationToken{
		Token: "UsedUp01", IsActive: true, MaxUses: 2, CurrentUses: 2,
	}
	check, err = svc.Validate("UsedUp01")
	require.NoError(t, err)
	assert.Equal(t, entity.ReasonExhausted, check.Reason)
}

func TestValidateIsIdempotent(t *testing.T) {
	db := newFakeDB()
	db.byCode["Live1234"] = &entity.RegistrationToken{
		Token: "Live1234", IsActive: true, MaxUses: 3, CurrentUses: 1,
	}
	svc := newService(db, &fakeAudit{})

	first, err := svc.Validate("Live1234")
	require.NoError(t, err)
	second, err := svc.Validate("Live1234")
	require.NoError(t, err)

	assert.True(t, first.Valid)
	assert.True(t, second.Valid)
	assert.Equal(t, first.Token.CurrentUses, second.Token.CurrentUses,
		"validation must not consume usage")
	assert.Equal(t, 1, db.byCode["Live1234"].CurrentUses)
}

func TestValidateRetriesTransientReadOnce(t *testing.T) {
	db := newFakeDB()
	db.byCode["Live1234"] = &entity.RegistrationToken{
		Token: "Live1234", IsActive: true, MaxUses: 3,
	}
	db.failNext = 1
	svc := newService(db, &fakeAudit{})

	check, err := svc.Validate("Live1234")
	require.NoError(t, err)
	assert.True(t, check.Valid)

	db.failNext = 2
	_, err = svc.Validate("Live1234")
	assert.Error(t, err, "second consecutive failure is returned")
}

func TestDeactivateFlipsExactlyOnce(t *testing.T) {
	db := newFakeDB()
	db.byCode["Live1234"] = &entity.RegistrationToken{
		Id: "t1", Token: "Live1234", IsActive: true, MaxUses: 3,
	}
	recorder := &fakeAudit{}
	svc := newService(db, recorder)

	tok, err := svc.Deactivate("Live1234", "admin")
	require.NoError(t, err)
	assert.False(t, tok.IsActive)

	_, err = svc.Deactivate("Live1234", "admin")
	assert.ErrorIs(t, err, entity.ErrAlreadyDeactivated)
	assert.False(t, db.byCode["Live1234"].IsActive, "flag never reverses")

	denied := recorder.byResult(entity.ResultDenied)
	assert.Len(t, denied, 1)

	_, err = svc.Deactivate("Missing1", "admin")
	assert.ErrorIs(t, err, entity.ErrNotFound)
}
