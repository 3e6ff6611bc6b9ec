package members

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"churchreg/entity"
	"churchreg/lib/sl"
)

type Database interface {
	CreateMember(member *entity.Member) error
	DeleteMember(id string) error
}

// Service creates directory members from approved registrations.
type Service struct {
	db  Database
	log *slog.Logger
}

func New(db Database, log *slog.Logger) *Service {
	return &Service{db: db, log: log.With(sl.Module("members"))}
}

// CreateMember writes a new member document carrying the registration's
// personal fields. It runs before the approval transition commits, so a
// failure here leaves the registration pending.
func (s *Service) CreateMember(reg *entity.PendingRegistration, approverId string) (*entity.Member, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not connected")
	}
	member := &entity.Member{
		Id:              uuid.NewString(),
		Name:            reg.Name,
		Email:           reg.Email,
		Phone:           reg.Phone,
		NormalizedEmail: reg.NormalizedEmail,
		NormalizedPhone: reg.NormalizedPhone,
		BirthDate:       reg.BirthDate,
		Gender:          reg.Gender,
		Address:         reg.Address,
		MemberStatus:    reg.MemberStatus,
		RegistrationId:  reg.Id,
		ApprovedBy:      approverId,
		JoinedAt:        time.Now(),
	}
	if err := s.db.CreateMember(member); err != nil {
		return nil, fmt.Errorf("create member: %w", err)
	}
	s.log.Info("member created",
		slog.String("id", member.Id),
		slog.String("registration_id", reg.Id),
	)
	return member, nil
}

// RemoveMember compensates a lost approval race: the member document was
// written but another approver committed the transition first.
func (s *Service) RemoveMember(id string) error {
	if s.db == nil {
		return fmt.Errorf("database not connected")
	}
	return s.db.DeleteMember(id)
}
