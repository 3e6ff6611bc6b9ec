package tokens

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"regexp"
	"time"

	"github.com/google/uuid"

	"churchreg/entity"
	"churchreg/lib/sl"
)

// codeAlphabet is alphanumeric only: a token travels inside a QR-encoded
// query string and must never need URL escaping.
const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

var codeFormat = regexp.MustCompile(`^[A-Za-z0-9]+$`)

type Database interface {
	CreateToken(token *entity.RegistrationToken) error
	GetToken(code string) (*entity.RegistrationToken, error)
	ListTokens(activeOnly bool) ([]*entity.RegistrationToken, error)
	DeactivateToken(code string) (*entity.RegistrationToken, error)
}

type AuditRecorder interface {
	Record(entry *entity.AuditEntry)
}

type Service struct {
	db          Database
	audit       AuditRecorder
	log         *slog.Logger
	codeLength  int
	maxAttempts int
	baseUrl     string
}

func New(db Database, audit AuditRecorder, log *slog.Logger, codeLength, maxAttempts int, baseUrl string) *Service {
	if codeLength <= 0 {
		codeLength = 8
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Service{
		db:          db,
		audit:       audit,
		log:         log.With(sl.Module("tokens")),
		codeLength:  codeLength,
		maxAttempts: maxAttempts,
		baseUrl:     baseUrl,
	}
}

// EntryURL is the address the generated QR code points at.
func (s *Service) EntryURL(token *entity.RegistrationToken) string {
	return token.EntryURL(s.baseUrl)
}

// CreateToken mints a new registration token. The code comes from a
// cryptographically secure source; a store-level collision on the unique
// token index is retried up to the configured attempt count.
func (s *Service) CreateToken(params *entity.CreateTokenParams, createdBy string) (*entity.RegistrationToken, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not connected")
	}
	if params.MaxUses != entity.UnlimitedUses && params.MaxUses <= 0 {
		return nil, fmt.Errorf("max uses must be positive or %d for unlimited", entity.UnlimitedUses)
	}
	now := time.Now()
	if params.ExpiresAt != nil && !params.ExpiresAt.After(now) {
		return nil, fmt.Errorf("expiry must be in the future")
	}

	token := &entity.RegistrationToken{
		Id:        uuid.NewString(),
		CreatedBy: createdBy,
		CreatedAt: now,
		ExpiresAt: params.ExpiresAt,
		MaxUses:   params.MaxUses,
		IsActive:  true,
		Metadata: entity.TokenMetadata{
			Purpose:   params.Purpose,
			Notes:     params.Notes,
			EventDate: params.EventDate,
			Location:  params.Location,
		},
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		code, err := generateCode(s.codeLength)
		if err != nil {
			return nil, fmt.Errorf("generate token code: %w", err)
		}
		token.Token = code

		err = s.db.CreateToken(token)
		if err == nil {
			s.log.Info("token created",
				slog.String("id", token.Id),
				slog.String("purpose", token.Metadata.Purpose),
				slog.Int("max_uses", token.MaxUses),
			)
			if s.audit != nil {
				s.audit.Record(&entity.AuditEntry{
					ActorId:   createdBy,
					Action:    entity.ActionTokenCreate,
					TargetId:  token.Id,
					Result:    entity.ResultSuccess,
					RiskLevel: entity.RiskLow,
					Details:   token.Metadata.Purpose,
				})
			}
			return token, nil
		}
		if !errors.Is(err, entity.ErrDuplicateToken) {
			return nil, fmt.Errorf("store token: %w", err)
		}
		s.log.Warn("token code collision", slog.Int("attempt", attempt), sl.Secret("code", code))
	}
	return nil, entity.ErrGenerationExhausted
}

// Validate is the read-only gate checked at form load and again before a
// submission is accepted. Checks short-circuit in a fixed order so each
// failure maps to one distinct reason code. It never touches usage counts:
// validating the same live token twice gives the same answer.
func (s *Service) Validate(code string) (*entity.TokenCheck, error) {
	if code == "" || !codeFormat.MatchString(code) {
		return &entity.TokenCheck{Valid: false, Reason: entity.ReasonInvalidFormat}, nil
	}
	if s.db == nil {
		return nil, fmt.Errorf("database not connected")
	}

	token, err := s.getTokenOnce(code)
	if errors.Is(err, entity.ErrNotFound) {
		return &entity.TokenCheck{Valid: false, Reason: entity.ReasonNotFound}, nil
	}
	if err != nil {
		return nil, err
	}
	if !token.IsActive {
		return &entity.TokenCheck{Valid: false, Reason: entity.ReasonInactive}, nil
	}
	if token.IsExpired(time.Now()) {
		return &entity.TokenCheck{Valid: false, Reason: entity.ReasonExpired}, nil
	}
	if token.IsExhausted() {
		return &entity.TokenCheck{Valid: false, Reason: entity.ReasonExhausted}, nil
	}
	return &entity.TokenCheck{Valid: true, Token: token}, nil
}

// getTokenOnce retries a transient read failure a single time. Mutations are
// never retried anywhere in this service.
func (s *Service) getTokenOnce(code string) (*entity.RegistrationToken, error) {
	token, err := s.db.GetToken(code)
	if err == nil || errors.Is(err, entity.ErrNotFound) {
		return token, err
	}
	s.log.Warn("token read failed, retrying once", sl.Err(err))
	return s.db.GetToken(code)
}

func (s *Service) ListTokens(activeOnly bool) ([]*entity.RegistrationToken, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not connected")
	}
	return s.db.ListTokens(activeOnly)
}

// Deactivate retires a token. The flag flips exactly once: a repeat call
// finds no active document and reports ErrAlreadyDeactivated.
func (s *Service) Deactivate(code string, actorId string) (*entity.RegistrationToken, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not connected")
	}
	token, err := s.db.DeactivateToken(code)
	if errors.Is(err, entity.ErrNotFound) {
		existing, getErr := s.db.GetToken(code)
		if getErr != nil {
			return nil, getErr
		}
		if s.audit != nil {
			s.audit.Record(&entity.AuditEntry{
				ActorId:   actorId,
				Action:    entity.ActionTokenDeactivate,
				TargetId:  existing.Id,
				Result:    entity.ResultDenied,
				RiskLevel: entity.RiskMedium,
				Details:   "token already deactivated",
			})
		}
		return nil, entity.ErrAlreadyDeactivated
	}
	if err != nil {
		return nil, err
	}
	s.log.Info("token deactivated", slog.String("id", token.Id), slog.String("actor", actorId))
	if s.audit != nil {
		s.audit.Record(&entity.AuditEntry{
			ActorId:   actorId,
			Action:    entity.ActionTokenDeactivate,
			TargetId:  token.Id,
			Result:    entity.ResultSuccess,
			RiskLevel: entity.RiskLow,
		})
	}
	return token, nil
}

func generateCode(length int) (string, error) {
	alphabetLen := big.NewInt(int64(len(codeAlphabet)))
	code := make([]byte, length)
	for i := range code {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", err
		}
		code[i] = codeAlphabet[n.Int64()]
	}
	return string(code), nil
}
