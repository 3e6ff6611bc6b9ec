package entity

import "time"

// RiskLevel tags audit entries for review triage. HIGH marks events that may
// indicate a double-submit or an admin race, not just routine activity.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Audit actions. Every approve, reject and deactivate writes one entry, as
// does every denied attempt.
const (
	ActionTokenCreate     = "token.create"
	ActionTokenDeactivate = "token.deactivate"
	ActionApprove         = "registration.approve"
	ActionReject          = "registration.reject"
)

const (
	ResultSuccess = "success"
	ResultDenied  = "denied"
)

// AuditEntry is an append-only record for the security log.
type AuditEntry struct {
	Id        string    `json:"id" bson:"id"`
	ActorId   string    `json:"actor_id" bson:"actor_id"`
	Action    string    `json:"action" bson:"action"`
	TargetId  string    `json:"target_id" bson:"target_id"`
	Result    string    `json:"result" bson:"result"`
	RiskLevel RiskLevel `json:"risk_level" bson:"risk_level"`
	Details   string    `json:"details,omitempty" bson:"details,omitempty"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}
