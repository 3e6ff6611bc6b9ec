package entity

import (
	"net/http"

	"churchreg/lib/validate"
)

// BulkApprovalRequest is the admin payload for approving several
// registrations at once. Ids must be unique; the orchestrator refuses
// malformed batches outright instead of deduplicating silently.
type BulkApprovalRequest struct {
	Ids []string `json:"ids" validate:"required,min=1,unique,dive,required"`
}

func (b *BulkApprovalRequest) Bind(_ *http.Request) error {
	return validate.Struct(b)
}

type BulkFailure struct {
	Id    string `json:"id"`
	Error string `json:"error"`
}

// BulkApprovalResult collects every per-item outcome. A failed item never
// aborts its siblings, so both lists can be non-empty at once.
type BulkApprovalResult struct {
	Successful []*Member     `json:"successful"`
	Failed     []BulkFailure `json:"failed"`
}
