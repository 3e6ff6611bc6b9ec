package api

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"churchreg/internal/config"
	"churchreg/internal/http-server/handlers/approval"
	"churchreg/internal/http-server/handlers/errors"
	"churchreg/internal/http-server/handlers/registration"
	"churchreg/internal/http-server/handlers/token"
	"churchreg/internal/http-server/middleware/authenticate"
	"churchreg/internal/http-server/middleware/requirerole"
	"churchreg/internal/http-server/middleware/timeout"
	"churchreg/lib/sl"
)

type Server struct {
	conf       *config.Config
	httpServer *http.Server
	log        *slog.Logger
}

type Handler interface {
	authenticate.Authenticate
	requirerole.Auditor
	token.Core
	registration.Core
	approval.Core
}

func New(conf *config.Config, log *slog.Logger, handler Handler) error {

	server := Server{
		conf: conf,
		log:  log.With(sl.Module("api.server")),
	}

	router := chi.NewRouter()
	router.Use(timeout.Timeout(5))
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(render.SetContentType(render.ContentTypeJSON))

	router.NotFound(errors.NotFound(log))
	router.MethodNotAllowed(errors.NotAllowed(log))

	// public surface behind the scanned QR link, no authentication
	router.Route("/register", func(pub chi.Router) {
		pub.Get("/qr", registration.ValidateQr(log, handler))
		pub.Post("/submit", registration.Submit(log, handler))
	})

	router.Route("/v1", func(rootApi chi.Router) {
		rootApi.Use(authenticate.New(log, handler))
		disposer := requirerole.Disposer(log, handler)
		rootApi.Route("/tokens", func(tk chi.Router) {
			tk.Get("/", token.List(log, handler))
			tk.With(disposer).Post("/", token.Create(log, handler))
			tk.With(disposer).Post("/{token}/deactivate", token.Deactivate(log, handler))
		})
		rootApi.Route("/registrations", func(reg chi.Router) {
			reg.Get("/", registration.List(log, handler))
			reg.Get("/duplicates", registration.Duplicates(log, handler))
			reg.With(disposer).Post("/approve", approval.Bulk(log, handler))
			reg.With(disposer).Post("/{id}/approve", approval.Approve(log, handler))
			reg.With(disposer).Post("/{id}/reject", approval.Reject(log, handler))
		})
	})

	httpLog := slog.NewLogLogger(log.Handler(), slog.LevelError)
	server.httpServer = &http.Server{
		Handler:      router,
		ErrorLog:     httpLog,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverAddress := fmt.Sprintf("%s:%s", conf.Listen.BindIp, conf.Listen.Port)
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}

	server.log.Info("starting api server", slog.String("address", serverAddress))

	return server.httpServer.Serve(listener)
}
