package token

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
	CreateToken(params *entity.CreateTokenParams, createdBy string) (*entity.RegistrationToken, error)
	ListTokens(activeOnly bool) ([]*entity.RegistrationToken, error)
	DeactivateToken(code, actorId string) (*entity.RegistrationToken, error)
	TokenEntryURL(token *entity.RegistrationToken) string
}

// tokenView decorates a token with its scannable entry link.
type tokenView struct {
	*entity.RegistrationToken
	EntryUrl string `json:"entry_url"`
}

func Create(logger *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.token")

		log := logger.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		actor := cont.GetActor(r.Context())

		if handler == nil {
			log.Error("token service not available")
			render.JSON(w, r, response.Error("Token service not available"))
			return
		}

		var params entity.CreateTokenParams
		if err := render.Bind(r, &params); err != nil {
			log.Warn("invalid request body", sl.Err(err))
			render.Status(r, 400)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
			return
		}

		tok, err := handler.CreateToken(&params, actor.Username)
		if err != nil {
			log.Error("token creation", sl.Err(err))
			render.Status(r, 400)
			render.JSON(w, r, response.Error(fmt.Sprintf("Request failed: %v", err)))
			return
		}
		log.With(
			slog.String("token_id", tok.Id),
		).Debug("token created")

		render.JSON(w, r, response.Ok(&tokenView{
			RegistrationToken: tok,
			EntryUrl:          handler.TokenEntryURL(tok),
		}))
	}
}

func List(logger *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.token")

		log := logger.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		if handler == nil {
			log.Error("token service not available")
			render.JSON(w, r, response.Error("Token service not available"))
			return
		}

		activeOnly := r.URL.Query().Get("active") == "true"
		list, err := handler.ListTokens(activeOnly)
		if err != nil {
			log.Error("token listing", sl.Err(err))
			render.JSON(w, r, response.Error(fmt.Sprintf("Request failed: %v", err)))
			return
		}

		views := make([]*tokenView, 0, len(list))
		for _, tok := range list {
			views = append(views, &tokenView{
				RegistrationToken: tok,
				EntryUrl:          handler.TokenEntryURL(tok),
			})
		}
		render.JSON(w, r, response.Ok(views))
	}
}

func Deactivate(logger *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.token")
		code := chi.URLParam(r, "token")

		log := logger.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
			sl.Secret("token", code),
		)

		actor := cont.GetActor(r.Context())

		if handler == nil {
			log.Error("token service not available")
			render.JSON(w, r, response.Error("Token service not available"))
			return
		}

		tok, err := handler.DeactivateToken(code, actor.Username)
		if err != nil {
			log.Warn("token deactivation", sl.Err(err))
			render.Status(r, statusFor(err))
			render.JSON(w, r, response.Error(fmt.Sprintf("Request failed: %v", err)))
			return
		}
		log.With(
			slog.String("token_id", tok.Id),
		).Debug("token deactivated")

		render.JSON(w, r, response.Ok(tok))
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, entity.ErrNotFound):
		return 404
	case errors.Is(err, entity.ErrAlreadyDeactivated):
		return 409
	default:
		return 500
	}
}
