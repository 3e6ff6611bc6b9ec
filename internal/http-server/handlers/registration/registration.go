package registration

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"churchreg/entity"
	"churchreg/lib/api/response"
	"churchreg/lib/sl"
)

type Core interface {
	ValidateToken(code string) (*entity.TokenCheck, error)
	SubmitRegistration(form *entity.RegistrationForm) (*entity.PendingRegistration, error)
	ListRegistrations(status entity.ApprovalStatus, tokenId string) ([]*entity.PendingRegistration, error)
	FindDuplicates(email, phone string) ([]*entity.DuplicateCandidate, error)
}

// qrCheckView is the public shape of a token check. The endpoint is
// unauthenticated, so the full token document never leaves the server:
// visitors get the verdict and the event context, not issuer details.
type qrCheckView struct {
	Valid     bool   `json:"valid"`
	Reason    string `json:"reason,omitempty"`
	Purpose   string `json:"purpose,omitempty"`
	EventDate string `json:"event_date,omitempty"`
	Location  string `json:"location,omitempty"`
}

func publicCheck(check *entity.TokenCheck) *qrCheckView {
	view := &qrCheckView{
		Valid:  check.Valid,
		Reason: string(check.Reason),
	}
	if check.Token != nil {
		view.Purpose = check.Token.Metadata.Purpose
		view.EventDate = check.Token.Metadata.EventDate
		view.Location = check.Token.Metadata.Location
	}
	return view
}

// ValidateQr answers the form-load check behind the scanned link. It is
// read-only: loading the form any number of times consumes nothing.
func ValidateQr(logger *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.registration")
		code := r.URL.Query().Get("token")

		log := logger.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
			sl.Secret("token", code),
		)

		if handler == nil {
			log.Error("registration service not available")
			render.JSON(w, r, response.Error("Registration service not available"))
			return
		}

		check, err := handler.ValidateToken(code)
		if err != nil {
			log.Error("token validation", sl.Err(err))
			render.JSON(w, r, response.Error("Validation temporarily unavailable"))
			return
		}
		if !check.Valid {
			log.Debug("token refused", sl.Reason(string(check.Reason)))
		}

		render.JSON(w, r, response.Ok(publicCheck(check)))
	}
}

func Submit(logger *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.registration")

		log := logger.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		if handler == nil {
			log.Error("registration service not available")
			render.JSON(w, r, response.Error("Registration service not available"))
			return
		}

		var form entity.RegistrationForm
		if err := render.Bind(r, &form); err != nil {
			log.Warn("invalid request body", sl.Err(err))
			render.Status(r, 400)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
			return
		}
		log = log.With(sl.Secret("token", form.Token))

		reg, err := handler.SubmitRegistration(&form)
		if err != nil {
			if ve, ok := entity.AsValidationError(err); ok {
				log.Debug("submission refused", sl.Reason(string(ve.Reason)))
				render.Status(r, 400)
				render.JSON(w, r, response.Error(string(ve.Reason)))
				return
			}
			if errors.Is(err, entity.ErrConcurrentExhaustion) {
				log.Debug("submission lost usage race")
				render.Status(r, 409)
				render.JSON(w, r, response.Error("Token was used up by another registration"))
				return
			}
			log.Error("submission failed", sl.Err(err))
			render.Status(r, 500)
			render.JSON(w, r, response.Error("Registration could not be saved"))
			return
		}
		log.With(
			slog.String("registration_id", reg.Id),
		).Debug("registration submitted")

		render.JSON(w, r, response.Ok(reg))
	}
}

func List(logger *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.registration")

		log := logger.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		if handler == nil {
			log.Error("registration service not available")
			render.JSON(w, r, response.Error("Registration service not available"))
			return
		}

		status := entity.ApprovalStatus(r.URL.Query().Get("status"))
		if status != "" && !status.Valid() {
			render.Status(r, 400)
			render.JSON(w, r, response.Error("Unknown status filter"))
			return
		}
		tokenId := r.URL.Query().Get("token_id")

		list, err := handler.ListRegistrations(status, tokenId)
		if err != nil {
			log.Error("registration listing", sl.Err(err))
			render.JSON(w, r, response.Error(fmt.Sprintf("Request failed: %v", err)))
			return
		}
		render.JSON(w, r, response.Ok(list))
	}
}

// Duplicates surfaces advisory matches for the review screen. An empty
// result is a normal answer, not an error.
func Duplicates(logger *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.registration")

		log := logger.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		if handler == nil {
			log.Error("registration service not available")
			render.JSON(w, r, response.Error("Registration service not available"))
			return
		}

		email := r.URL.Query().Get("email")
		phone := r.URL.Query().Get("phone")

		candidates, err := handler.FindDuplicates(email, phone)
		if err != nil {
			log.Error("duplicate lookup", sl.Err(err))
			render.JSON(w, r, response.Error(fmt.Sprintf("Request failed: %v", err)))
			return
		}
		render.JSON(w, r, response.Ok(candidates))
	}
}
