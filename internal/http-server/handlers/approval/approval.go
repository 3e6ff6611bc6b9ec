package approval

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"churchreg/entity"
	"churchreg/lib/api/cont"
	"churchreg/lib/api/response"
	"churchreg/lib/sl"
)

type Core interface {
	ApproveRegistration(id, approverId string) (*entity.Member, error)
	RejectRegistration(id, approverId, reason string) error
	ApproveRegistrations(ids []string, approverId string) (*entity.BulkApprovalResult, error)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (rr *rejectRequest) Bind(_ *http.Request) error {
	return nil // reason emptiness is validated by the service
}

func Approve(logger *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.approval")
		id := chi.URLParam(r, "id")

		log := logger.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("registration_id", id),
		)

		actor := cont.GetActor(r.Context())

		if handler == nil {
			log.Error("approval service not available")
			render.JSON(w, r, response.Error("Approval service not available"))
			return
		}

		member, err := handler.ApproveRegistration(id, actor.Username)
		if err != nil {
			log.Warn("approval failed", sl.Err(err))
			render.Status(r, statusFor(err))
			render.JSON(w, r, response.Error(fmt.Sprintf("Request failed: %v", err)))
			return
		}
		log.With(
			slog.String("member_id", member.Id),
		).Debug("registration approved")

		render.JSON(w, r, response.Ok(member))
	}
}

func Reject(logger *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.approval")
		id := chi.URLParam(r, "id")

		log := logger.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("registration_id", id),
		)

		actor := cont.GetActor(r.Context())

		if handler == nil {
			log.Error("approval service not available")
			render.JSON(w, r, response.Error("Approval service not available"))
			return
		}

		var req rejectRequest
		if err := render.Bind(r, &req); err != nil {
			log.Warn("invalid request body", sl.Err(err))
			render.Status(r, 400)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
			return
		}

		if err := handler.RejectRegistration(id, actor.Username, req.Reason); err != nil {
			log.Warn("rejection failed", sl.Err(err))
			render.Status(r, statusFor(err))
			render.JSON(w, r, response.Error(fmt.Sprintf("Request failed: %v", err)))
			return
		}
		log.Debug("registration rejected")

		render.JSON(w, r, response.Ok(nil))
	}
}

// Bulk approves a batch of registrations. Partial failure is a normal
// outcome: per-item errors land in the failed list of an OK response, only
// a malformed batch is refused outright.
func Bulk(logger *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.approval")

		log := logger.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		actor := cont.GetActor(r.Context())

		if handler == nil {
			log.Error("approval service not available")
			render.JSON(w, r, response.Error("Approval service not available"))
			return
		}

		var req entity.BulkApprovalRequest
		if err := render.Bind(r, &req); err != nil {
			log.Warn("invalid request body", sl.Err(err))
			render.Status(r, 400)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
			return
		}
		log = log.With(slog.Int("batch_size", len(req.Ids)))

		result, err := handler.ApproveRegistrations(req.Ids, actor.Username)
		if err != nil {
			log.Warn("bulk approval failed", sl.Err(err))
			render.Status(r, 400)
			render.JSON(w, r, response.Error(fmt.Sprintf("Request failed: %v", err)))
			return
		}
		log.With(
			slog.Int("successful", len(result.Successful)),
			slog.Int("failed", len(result.Failed)),
		).Debug("bulk approval finished")

		render.JSON(w, r, response.Ok(result))
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, entity.ErrNotFound):
		return 404
	case errors.Is(err, entity.ErrAlreadyProcessed):
		return 409
	case errors.Is(err, entity.ErrInvalidReason):
		return 400
	default:
		return 500
	}
}
