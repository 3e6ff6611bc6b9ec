package intake

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"churchreg/entity"
	"churchreg/lib/sl"
)

type Database interface {
	ConsumeTokenUse(code string, now time.Time) (*entity.RegistrationToken, error)
	CreateRegistration(reg *entity.PendingRegistration) error
	FindDuplicates(normEmail, normPhone string) ([]*entity.DuplicateCandidate, error)
}

// Validator is the read-only token gate, used here only to produce a precise
// reason code after the conditional consume found no eligible token.
type Validator interface {
	Validate(code string) (*entity.TokenCheck, error)
}

type Service struct {
	db        Database
	validator Validator
	log       *slog.Logger
}

func New(db Database, validator Validator, log *slog.Logger) *Service {
	return &Service{
		db:        db,
		validator: validator,
		log:       log.With(sl.Module("intake")),
	}
}

// Submit accepts a visitor form. Consuming a unit of token usage is a single
// conditional write: the store increments current_uses only while the cap
// holds, so over-admission cannot happen no matter how many visitors race.
// Only after the consume succeeds is the pending registration persisted.
func (s *Service) Submit(form *entity.RegistrationForm) (*entity.PendingRegistration, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not connected")
	}

	now := time.Now()
	token, err := s.db.ConsumeTokenUse(form.Token, now)
	if errors.Is(err, entity.ErrNotFound) {
		return nil, s.diagnoseRefusal(form.Token)
	}
	if err != nil {
		return nil, fmt.Errorf("consume token use: %w", err)
	}

	reg := &entity.PendingRegistration{
		Id:              uuid.NewString(),
		TokenId:         token.Id,
		Name:            form.Name,
		Email:           form.Email,
		Phone:           form.Phone,
		NormalizedEmail: entity.NormalizeEmail(form.Email),
		NormalizedPhone: entity.NormalizePhone(form.Phone),
		BirthDate:       form.BirthDate,
		Gender:          form.Gender,
		Address:         form.Address,
		MemberStatus:    form.MemberStatus,
		SubmittedAt:     now,
		ApprovalStatus:  entity.StatusPending,
	}

	if err = s.db.CreateRegistration(reg); err != nil {
		// the consumed use is not rolled back: the token document is the
		// admission ledger and a lost unit is preferable to over-admission
		s.log.Error("registration persist failed after token consume",
			slog.String("token_id", token.Id), sl.Err(err))
		return nil, fmt.Errorf("persist registration: %w", err)
	}

	s.log.Info("registration submitted",
		slog.String("id", reg.Id),
		slog.String("token_id", token.Id),
		slog.Int("uses_left", token.UsesLeft()),
	)
	return reg, nil
}

// diagnoseRefusal turns a failed conditional consume into a caller-facing
// error. A read-only validation names the failed condition; if the token
// still reads as valid, another submitter won the last unit between our
// write and this read.
func (s *Service) diagnoseRefusal(code string) error {
	if s.validator == nil {
		return &entity.ValidationError{Reason: entity.ReasonNotFound}
	}
	check, err := s.validator.Validate(code)
	if err != nil {
		return fmt.Errorf("validate after refused consume: %w", err)
	}
	if check.Valid {
		return entity.ErrConcurrentExhaustion
	}
	s.log.Debug("submission refused", sl.Reason(string(check.Reason)), sl.Secret("token", code))
	return &entity.ValidationError{Reason: check.Reason}
}

// FindDuplicates looks for records sharing a normalized contact identifier.
// Advisory only: the result never blocks a submission or an approval.
func (s *Service) FindDuplicates(email, phone string) ([]*entity.DuplicateCandidate, error) {
	normEmail := entity.NormalizeEmail(email)
	normPhone := entity.NormalizePhone(phone)
	if normEmail == "" && normPhone == "" {
		return []*entity.DuplicateCandidate{}, nil
	}
	if s.db == nil {
		return nil, fmt.Errorf("database not connected")
	}
	return s.db.FindDuplicates(normEmail, normPhone)
}
