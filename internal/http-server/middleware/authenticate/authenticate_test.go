package authenticate

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/stretchr/testify/assert"

	"churchreg/entity"
	"churchreg/lib/api/cont"
)

type fakeAuth struct {
	actor *entity.Admin
}

func (f *fakeAuth) AuthenticateByToken(token string) (*entity.Admin, error) {
	if f.actor != nil && f.actor.Token == token {
		return f.actor, nil
	}
	return nil, entity.ErrNotFound
}

func testRouter(auth Authenticate) http.Handler {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Use(New(log, auth))
	r.Get("/v1/ping", func(w http.ResponseWriter, r *http.Request) {
		actor := cont.GetActor(r.Context())
		w.Write([]byte(actor.Username))
	})
	return r
}

func TestAuthenticateKnownToken(t *testing.T) {
	auth := &fakeAuth{actor: &entity.Admin{Username: "pastor.kim", Token: "secret1", Role: entity.RolePastor}}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/ping", nil)
	req.Header.Set("Authorization", "Bearer secret1")

	testRouter(auth).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pastor.kim", rec.Body.String())
	assert.Equal(t, "pastor.kim", rec.Header().Get("X-Actor"))
}

func TestAuthenticateUnknownToken(t *testing.T) {
	auth := &fakeAuth{actor: &entity.Admin{Username: "pastor.kim", Token: "secret1"}}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/ping", nil)
	req.Header.Set("Authorization", "Bearer wrong")

	testRouter(auth).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticateMissingHeader(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/ping", nil)

	testRouter(&fakeAuth{}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticateBareBearerHeader(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/ping", nil)
	req.Header.Set("Authorization", "Bearer")

	// a header with no token after the scheme must refuse, not panic
	assert.NotPanics(t, func() {
		testRouter(&fakeAuth{}).ServeHTTP(rec, req)
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
