package main

import (
	"flag"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"churchreg/impl/auth"
	"churchreg/impl/core"
	"churchreg/internal/approval"
	"churchreg/internal/audit"
	"churchreg/internal/config"
	"churchreg/internal/database"
	"churchreg/internal/http-server/api"
	"churchreg/internal/intake"
	"churchreg/internal/members"
	"churchreg/internal/tokens"
	"churchreg/lib/sl"
)

const (
	envLocal    = "local"
	envDev      = "dev"
	envProd     = "prod"
	logFileName = "churchreg.log"
)

func main() {
	configPath := flag.String("conf", "config.yml", "path to config file")
	logPath := flag.String("log", "/var/log/", "path to log file directory")
	flag.Parse()

	conf := config.MustLoad(*configPath)
	logger := setupLogger(conf.Env, *logPath)
	logger.Info("starting churchreg", slog.String("config", *configPath), slog.String("env", conf.Env))

	mongo := database.NewMongoClient(conf)
	if mongo == nil {
		log.Fatal("mongodb is disabled in config; a document store is required")
	}
	if err := mongo.EnsureIndexes(); err != nil {
		logger.Error("index creation failed", sl.Err(err))
	}

	recorder := audit.New(mongo, logger)
	tokenSvc := tokens.New(mongo, recorder, logger,
		conf.Registration.TokenLength,
		conf.Registration.TokenAttempts,
		conf.Registration.BaseUrl,
	)
	intakeSvc := intake.New(mongo, tokenSvc, logger)
	memberSvc := members.New(mongo, logger)
	approvalSvc := approval.New(mongo, memberSvc, recorder, logger, conf.Registration.BulkLimit)

	handler := core.New(tokenSvc, intakeSvc, approvalSvc, mongo, logger)
	handler.SetAuthService(auth.New(mongo))
	handler.SetAuditRecorder(recorder)

	if err := api.New(conf, logger, handler); err != nil {
		logger.Error("api server stopped", sl.Err(err))
		os.Exit(1)
	}
}

func setupLogger(env, path string) *slog.Logger {
	var logger *slog.Logger
	var logFile *os.File
	var err error

	if env != envLocal {
		logPath := filepath.Join(path, logFileName)
		logFile, err = os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			log.Fatal("error opening log file: ", err)
		}
		log.Printf("env: %s; log file: %s", env, logPath)
	}

	switch env {
	case envLocal:
		logger = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		logger = slog.New(
			slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		logger = slog.New(
			slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log.Fatal("invalid environment: ", env)
	}

	return logger
}
