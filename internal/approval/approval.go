package approval

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"churchreg/entity"
	"churchreg/lib/sl"
)

type Database interface {
	GetRegistration(id string) (*entity.PendingRegistration, error)
	ApproveRegistration(id, approverId, memberId string, at time.Time) (*entity.PendingRegistration, error)
	RejectRegistration(id, approverId, reason string, at time.Time) (*entity.PendingRegistration, error)
}

// MemberService is the member-creation collaborator. Its failure must keep
// the registration pending, so it runs before the state transition commits.
type MemberService interface {
	CreateMember(reg *entity.PendingRegistration, approverId string) (*entity.Member, error)
	RemoveMember(id string) error
}

type AuditRecorder interface {
	Record(entry *entity.AuditEntry)
}

// Service is the approval state machine. Pending is the only state a record
// can leave, and it leaves exactly once: both transitions are committed as a
// conditional update guarded on approval_status == pending.
type Service struct {
	db        Database
	members   MemberService
	audit     AuditRecorder
	log       *slog.Logger
	bulkLimit int
}

func New(db Database, members MemberService, audit AuditRecorder, log *slog.Logger, bulkLimit int) *Service {
	if bulkLimit <= 0 {
		bulkLimit = 4
	}
	return &Service{
		db:        db,
		members:   members,
		audit:     audit,
		log:       log.With(sl.Module("approval")),
		bulkLimit: bulkLimit,
	}
}

// Approve converts a pending registration into a member record. The member
// document is written first; only then is the pending -> approved transition
// committed. Losing that commit to a concurrent approver removes the member
// document again and reports ErrAlreadyProcessed.
func (s *Service) Approve(id, approverId string) (*entity.Member, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not connected")
	}
	if s.members == nil {
		return nil, fmt.Errorf("member service not connected")
	}

	reg, err := s.db.GetRegistration(id)
	if err != nil {
		return nil, err
	}
	if reg.ApprovalStatus.Terminal() {
		s.denied(approverId, entity.ActionApprove, id,
			fmt.Sprintf("registration already %s", reg.ApprovalStatus))
		return nil, entity.ErrAlreadyProcessed
	}

	member, err := s.members.CreateMember(reg, approverId)
	if err != nil {
		s.log.Error("member creation failed, approval not committed",
			slog.String("registration_id", id), sl.Err(err))
		return nil, fmt.Errorf("member creation: %w", err)
	}

	_, err = s.db.ApproveRegistration(id, approverId, member.Id, time.Now())
	if errors.Is(err, entity.ErrNotFound) {
		// another admin committed a transition between our read and write
		if rmErr := s.members.RemoveMember(member.Id); rmErr != nil {
			s.log.Error("orphan member cleanup failed",
				slog.String("member_id", member.Id), sl.Err(rmErr))
		}
		s.denied(approverId, entity.ActionApprove, id, "lost approval race")
		return nil, entity.ErrAlreadyProcessed
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("registration approved",
		slog.String("registration_id", id),
		slog.String("member_id", member.Id),
		slog.String("approver", approverId),
	)
	if s.audit != nil {
		s.audit.Record(&entity.AuditEntry{
			ActorId:   approverId,
			Action:    entity.ActionApprove,
			TargetId:  id,
			Result:    entity.ResultSuccess,
			RiskLevel: entity.RiskLow,
			Details:   "member " + member.Id,
		})
	}
	return member, nil
}

// Reject closes a pending registration with a terminal rejection. The reason
// is mandatory; an empty one changes nothing and returns ErrInvalidReason.
func (s *Service) Reject(id, approverId, reason string) error {
	if s.db == nil {
		return fmt.Errorf("database not connected")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return entity.ErrInvalidReason
	}

	_, err := s.db.RejectRegistration(id, approverId, reason, time.Now())
	if errors.Is(err, entity.ErrNotFound) {
		// no pending document matched: either unknown id or already terminal
		if _, getErr := s.db.GetRegistration(id); getErr != nil {
			return getErr
		}
		s.denied(approverId, entity.ActionReject, id, "registration not pending")
		return entity.ErrAlreadyProcessed
	}
	if err != nil {
		return err
	}

	s.log.Info("registration rejected",
		slog.String("registration_id", id),
		slog.String("approver", approverId),
	)
	if s.audit != nil {
		s.audit.Record(&entity.AuditEntry{
			ActorId:   approverId,
			Action:    entity.ActionReject,
			TargetId:  id,
			Result:    entity.ResultSuccess,
			RiskLevel: entity.RiskLow,
			Details:   reason,
		})
	}
	return nil
}

// ApproveMany fans the batch out over Approve with a bounded number of
// in-flight operations. Every id is processed exactly once and every outcome
// is collected; one failed item never cancels its siblings. Only a malformed
// batch fails as a whole.
func (s *Service) ApproveMany(ids []string, approverId string) (*entity.BulkApprovalResult, error) {
	if len(ids) == 0 {
		return nil, entity.ErrEmptyBatch
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: %s", entity.ErrDuplicateBatchIds, id)
		}
		seen[id] = struct{}{}
	}

	result := &entity.BulkApprovalResult{
		Successful: []*entity.Member{},
		Failed:     []entity.BulkFailure{},
	}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(s.bulkLimit)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			member, err := s.Approve(id, approverId)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed = append(result.Failed, entity.BulkFailure{Id: id, Error: err.Error()})
				return nil
			}
			result.Successful = append(result.Successful, member)
			return nil
		})
	}
	_ = g.Wait()

	s.log.Info("bulk approval finished",
		slog.String("approver", approverId),
		slog.Int("requested", len(ids)),
		slog.Int("successful", len(result.Successful)),
		slog.Int("failed", len(result.Failed)),
	)
	return result, nil
}

// denied writes the HIGH-risk audit entry required for refused attempts,
// which may signal a double-submit or two admins racing.
func (s *Service) denied(actorId, action, targetId, details string) {
	s.log.Warn("operation denied",
		slog.String("actor", actorId),
		slog.String("action", action),
		slog.String("target", targetId),
		slog.String("details", details),
	)
	if s.audit == nil {
		return
	}
	s.audit.Record(&entity.AuditEntry{
		ActorId:   actorId,
		Action:    action,
		TargetId:  targetId,
		Result:    entity.ResultDenied,
		RiskLevel: entity.RiskHigh,
		Details:   details,
	})
}
