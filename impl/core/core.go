package core

import (
	"fmt"
	"log/slog"

	"churchreg/entity"
	"churchreg/internal/approval"
	"churchreg/internal/intake"
	"churchreg/internal/tokens"
	"churchreg/lib/sl"
)

type AuthService interface {
	ActorByToken(token string) (*entity.Admin, error)
}

type TokenService interface {
	CreateToken(params *entity.CreateTokenParams, createdBy string) (*entity.RegistrationToken, error)
	Validate(code string) (*entity.TokenCheck, error)
	ListTokens(activeOnly bool) ([]*entity.RegistrationToken, error)
	Deactivate(code, actorId string) (*entity.RegistrationToken, error)
	EntryURL(token *entity.RegistrationToken) string
}

type IntakeService interface {
	Submit(form *entity.RegistrationForm) (*entity.PendingRegistration, error)
	FindDuplicates(email, phone string) ([]*entity.DuplicateCandidate, error)
}

type RegistrationStore interface {
	ListRegistrations(status entity.ApprovalStatus, tokenId string) ([]*entity.PendingRegistration, error)
}

type ApprovalService interface {
	Approve(id, approverId string) (*entity.Member, error)
	Reject(id, approverId, reason string) error
	ApproveMany(ids []string, approverId string) (*entity.BulkApprovalResult, error)
}

type AuditRecorder interface {
	Record(entry *entity.AuditEntry)
}

// Core glues the services to the HTTP layer. Handlers depend on the narrow
// interfaces it satisfies, never on the services directly.
type Core struct {
	auth     AuthService
	tokens   TokenService
	intake   IntakeService
	approval ApprovalService
	store    RegistrationStore
	audit    AuditRecorder
	log      *slog.Logger
}

func New(tokenSvc *tokens.Service, intakeSvc *intake.Service, approvalSvc *approval.Service, store RegistrationStore, log *slog.Logger) *Core {
	return &Core{
		tokens:   tokenSvc,
		intake:   intakeSvc,
		approval: approvalSvc,
		store:    store,
		log:      log.With(sl.Module("core")),
	}
}

func (c *Core) SetAuthService(auth AuthService) {
	c.auth = auth
}

func (c *Core) SetAuditRecorder(audit AuditRecorder) {
	c.audit = audit
}

// RecordAudit lets the HTTP layer log denied attempts it refuses itself,
// such as role-gate failures.
func (c *Core) RecordAudit(entry *entity.AuditEntry) {
	if c.audit == nil {
		c.log.Warn("audit recorder not connected", slog.String("action", entry.Action))
		return
	}
	c.audit.Record(entry)
}

func (c *Core) AuthenticateByToken(token string) (*entity.Admin, error) {
	if c.auth == nil {
		return nil, fmt.Errorf("auth service not connected")
	}
	return c.auth.ActorByToken(token)
}

func (c *Core) CreateToken(params *entity.CreateTokenParams, createdBy string) (*entity.RegistrationToken, error) {
	if c.tokens == nil {
		return nil, fmt.Errorf("token service not connected")
	}
	return c.tokens.CreateToken(params, createdBy)
}

func (c *Core) ValidateToken(code string) (*entity.TokenCheck, error) {
	if c.tokens == nil {
		return nil, fmt.Errorf("token service not connected")
	}
	return c.tokens.Validate(code)
}

func (c *Core) ListTokens(activeOnly bool) ([]*entity.RegistrationToken, error) {
	if c.tokens == nil {
		return nil, fmt.Errorf("token service not connected")
	}
	return c.tokens.ListTokens(activeOnly)
}

func (c *Core) DeactivateToken(code, actorId string) (*entity.RegistrationToken, error) {
	if c.tokens == nil {
		return nil, fmt.Errorf("token service not connected")
	}
	return c.tokens.Deactivate(code, actorId)
}

func (c *Core) TokenEntryURL(token *entity.RegistrationToken) string {
	if c.tokens == nil {
		return ""
	}
	return c.tokens.EntryURL(token)
}

func (c *Core) SubmitRegistration(form *entity.RegistrationForm) (*entity.PendingRegistration, error) {
	if c.intake == nil {
		return nil, fmt.Errorf("intake service not connected")
	}
	return c.intake.Submit(form)
}

func (c *Core) FindDuplicates(email, phone string) ([]*entity.DuplicateCandidate, error) {
	if c.intake == nil {
		return nil, fmt.Errorf("intake service not connected")
	}
	return c.intake.FindDuplicates(email, phone)
}

func (c *Core) ListRegistrations(status entity.ApprovalStatus, tokenId string) ([]*entity.PendingRegistration, error) {
	if c.store == nil {
		return nil, fmt.Errorf("registration store not connected")
	}
	return c.store.ListRegistrations(status, tokenId)
}

func (c *Core) ApproveRegistration(id, approverId string) (*entity.Member, error) {
	if c.approval == nil {
		return nil, fmt.Errorf("approval service not connected")
	}
	return c.approval.Approve(id, approverId)
}

func (c *Core) RejectRegistration(id, approverId, reason string) error {
	if c.approval == nil {
		return fmt.Errorf("approval service not connected")
	}
	return c.approval.Reject(id, approverId, reason)
}

func (c *Core) ApproveRegistrations(ids []string, approverId string) (*entity.BulkApprovalResult, error) {
	if c.approval == nil {
		return nil, fmt.Errorf("approval service not connected")
	}
	return c.approval.ApproveMany(ids, approverId)
}
