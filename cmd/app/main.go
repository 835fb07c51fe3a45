package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"clinic-session-service/internal/config"
	"clinic-session-service/internal/finalizer"
	"clinic-session-service/internal/hardware"
	apptCancel "clinic-session-service/internal/http-server/handlers/appointments/cancel"
	apptConfirm "clinic-session-service/internal/http-server/handlers/appointments/confirm"
	apptCreate "clinic-session-service/internal/http-server/handlers/appointments/create"
	apptGet "clinic-session-service/internal/http-server/handlers/appointments/get"
	doctorList "clinic-session-service/internal/http-server/handlers/doctors/list"
	hwPorts "clinic-session-service/internal/http-server/handlers/hardware/ports"
	hwSelect "clinic-session-service/internal/http-server/handlers/hardware/selectport"
	hwState "clinic-session-service/internal/http-server/handlers/hardware/state"
	resultCreate "clinic-session-service/internal/http-server/handlers/sessionresults/create"
	resultGet "clinic-session-service/internal/http-server/handlers/sessionresults/get"
	sessionAbandon "clinic-session-service/internal/http-server/handlers/sessions/abandon"
	sessionDemographics "clinic-session-service/internal/http-server/handlers/sessions/demographics"
	sessionEnd "clinic-session-service/internal/http-server/handlers/sessions/end"
	sessionGet "clinic-session-service/internal/http-server/handlers/sessions/get"
	sessionOpen "clinic-session-service/internal/http-server/handlers/sessions/open"
	sessionPort "clinic-session-service/internal/http-server/handlers/sessions/port"
	sessionSamples "clinic-session-service/internal/http-server/handlers/sessions/samples"
	sessionStart "clinic-session-service/internal/http-server/handlers/sessions/start"
	sessionTemperature "clinic-session-service/internal/http-server/handlers/sessions/temperature"
	slotDelete "clinic-session-service/internal/http-server/handlers/slots/delete"
	slotGenerate "clinic-session-service/internal/http-server/handlers/slots/generate"
	slotGet "clinic-session-service/internal/http-server/handlers/slots/get"
	"clinic-session-service/internal/inference"
	"clinic-session-service/internal/lock"
	"clinic-session-service/internal/monitor"
	svc "clinic-session-service/internal/service"
	"clinic-session-service/internal/session"
	"clinic-session-service/internal/storage/postgres"
	slogpretty "clinic-session-service/pkg/handlers/slogPretty"
	"clinic-session-service/pkg/middleware/mwLogger"
	"clinic-session-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {
	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info("Starting clinic session service", slog.String("env", cfg.Env))
	log.Debug("Debug messages are enabled")

	storage, err := postgres.New(cfg.StoragePath)
	if err != nil {
		log.Error("Failed to init storage", sl.Err(err))
		os.Exit(1)
	}

	locker, err := lock.NewRedisLock(cfg.RedisAddr)
	if err != nil {
		log.Error("Failed to init redis lock", sl.Err(err))
		os.Exit(1)
	}

	bridge := hardware.New(log, cfg.Hardware.URL, cfg.Hardware.Timeout)
	predictor := inference.New(log, cfg.Inference.URL, cfg.Inference.Timeout)

	fin := finalizer.New(log, storage, finalizer.RetryPolicy{
		MaxAttempts:     cfg.Finalizer.MaxAttempts,
		InitialInterval: cfg.Finalizer.InitialInterval,
		MaxInterval:     cfg.Finalizer.MaxInterval,
	})

	sessions := session.NewManager(log, storage, locker, bridge, predictor, fin, session.Options{
		LockTTL:      cfg.Session.LockTTL,
		PollInterval: cfg.Hardware.PollInterval,
		Tick:         cfg.Session.Tick,
	})

	service := svc.NewService(log, storage)

	var consumer *monitor.Consumer
	if cfg.MQTT.Broker != "" {
		consumer = monitor.NewConsumer(log, cfg.MQTT, sessions)
		if err := consumer.Start(); err != nil {
			log.Error("Failed to start monitor consumer, continuing without it", sl.Err(err))
			consumer = nil
		}
	} else {
		log.Info("MQTT broker not configured, monitor consumer disabled")
	}

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(mwLogger.New(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)
	router.Use(CORS)

	// Appointments
	router.Post("/appointments", apptCreate.New(log, service))
	router.Get("/appointments/{id}", apptGet.New(log, service))
	router.Put("/appointments/{id}/confirm", apptConfirm.New(log, service))
	router.Put("/appointments/{id}/cancel", apptCancel.New(log, service))

	// Slots
	router.Get("/doctors", doctorList.New(log, service))
	router.Get("/doctors/{id}/slots", slotGet.New(log, service))
	router.Post("/doctors/{id}/slots", slotGenerate.New(log, service))
	router.Delete("/doctors/{id}/slots", slotDelete.New(log, service))

	// Hardware bridge
	router.Get("/hardware/ports", hwPorts.New(log, bridge))
	router.Post("/hardware/ports/select", hwSelect.New(log, bridge))
	router.Get("/hardware/state", hwState.New(log, bridge))

	// Sessions
	router.Route("/sessions/{appointmentId}", func(r chi.Router) {
		r.Post("/", sessionOpen.New(log, sessions))
		r.Get("/", sessionGet.New(log, sessions))
		r.Delete("/", sessionAbandon.New(log, sessions))
		r.Post("/port", sessionPort.New(log, sessions))
		r.Post("/temperature", sessionTemperature.New(log, sessions))
		r.Put("/demographics", sessionDemographics.New(log, sessions))
		r.Post("/start", sessionStart.New(log, sessions))
		r.Post("/samples", sessionSamples.New(log, sessions))
		r.Post("/end", sessionEnd.New(log, sessions))
	})

	// Session results
	router.Post("/session-results", resultCreate.New(log, fin))
	router.Get("/session-results", resultGet.New(log, fin))

	serv := &http.Server{
		Addr:         cfg.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	serverErrCh := make(chan error, 1)

	go func() {
		log.Info("Starting HTTP server", slog.String("addr", cfg.Address))
		if err := serv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		} else {
			serverErrCh <- nil
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case err := <-serverErrCh:
		if err != nil {
			log.Error("HTTP server stopped unexpectedly", sl.Err(err))
		} else {
			log.Info("HTTP server stopped gracefully")
		}
	}

	shutdownTimeout := cfg.HTTPServer.ShutdownTimeout

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	log.Info("Shutting down HTTP server", slog.String("timeout", shutdownTimeout.String()))

	if err := serv.Shutdown(ctx); err != nil {
		log.Error("Server shutdown failed", sl.Err(err))
	} else {
		log.Info("Server shutdown complete")
	}

	if consumer != nil {
		consumer.Stop()
	}

	// running sessions are abandoned; nothing unsaved is persisted
	sessions.Close()
	log.Info("Sessions closed")

	if err := storage.Close(); err != nil {
		log.Error("Failed to close storage", sl.Err(err))
	} else {
		log.Info("Storage closed")
	}

	if err := locker.Close(); err != nil {
		log.Error("Failed to close locker", sl.Err(err))
	} else {
		log.Info("Locker closed")
	}

	log.Info("Shutdown finished, server stopped")
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}
