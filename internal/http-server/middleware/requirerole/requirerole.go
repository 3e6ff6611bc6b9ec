package requirerole

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"churchreg/entity"
	"churchreg/lib/api/cont"
	"churchreg/lib/api/response"
	"churchreg/lib/sl"
)

type Auditor interface {
	RecordAudit(entry *entity.AuditEntry)
}

// Disposer admits only actors allowed to mint tokens and dispose of
// registrations. Every refused attempt is written to the security audit log
// before the caller sees the error.
func Disposer(log *slog.Logger, auditor Auditor) func(next http.Handler) http.Handler {
	mod := sl.Module("middleware.requirerole")

	return func(next http.Handler) http.Handler {

		fn := func(w http.ResponseWriter, r *http.Request) {
			actor := cont.GetActor(r.Context())
			if actor.CanDispose() {
				next.ServeHTTP(w, r)
				return
			}

			log.With(
				mod,
				slog.String("actor", actor.Username),
				slog.String("role", string(actor.Role)),
				slog.String("path", r.URL.Path),
			).Warn("insufficient role")

			if auditor != nil {
				auditor.RecordAudit(&entity.AuditEntry{
					ActorId:   actor.Username,
					Action:    r.Method + " " + r.URL.Path,
					Result:    entity.ResultDenied,
					RiskLevel: entity.RiskMedium,
					Details:   entity.ErrUnauthorized.Error(),
				})
			}

			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, response.Error("Insufficient role"))
		}

		return http.HandlerFunc(fn)
	}
}
