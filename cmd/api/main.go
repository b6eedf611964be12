package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"meeting-router-go/internal/config"
	"meeting-router-go/internal/logger"
	"meeting-router-go/internal/metrics"
	"meeting-router-go/internal/processor"
	"meeting-router-go/internal/transcription"
)

func main() {
	log := logger.New()
	log.WithField("service", "meeting-router-api").Info("starting service")

	cfg, err := config.Load(os.Getenv("MEETING_ROUTER_CONFIG"), log.Entry)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	log = logger.NewWithLevel(cfg.LogLevel)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	proc, err := processor.New(cfg, log, metrics.New(reg))
	if err != nil {
		log.WithError(err).Fatal("failed to set up processor")
	}

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      newMux(proc, reg, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("graceful shutdown failed")
		}
	}()

	log.WithField("addr", cfg.ListenAddr).Info("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("server terminated")
	}
}

func newMux(proc *processor.Processor, reg *prometheus.Registry, log *logger.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		log.WithRequest(r).Debug("health check")
		fmt.Fprint(w, "ok")
	})

	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	mux.HandleFunc("/process", func(w http.ResponseWriter, r *http.Request) {
		reqLog := log.WithRequest(r).WithField("handler", "process")
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		ctx := logger.IntoContext(r.Context(), reqLog)

		var (
			res *processor.Result
			err error
		)
		if url := r.URL.Query().Get("transcript_url"); url != "" {
			reqLog = reqLog.WithField("transcript_url", url)
			res, err = proc.ProcessURL(ctx, url)
			if err != nil {
				reqLog.WithError(err).Warn("transcript download failed")
				http.Error(w, err.Error(), http.StatusBadGateway)
				return
			}
		} else {
			body, err := io.ReadAll(io.LimitReader(r.Body, transcription.MaxTranscriptBytes+1))
			if err != nil {
				http.Error(w, "failed to read body", http.StatusBadRequest)
				return
			}
			if len(body) > transcription.MaxTranscriptBytes {
				http.Error(w, "transcript too large", http.StatusRequestEntityTooLarge)
				return
			}
			if len(body) == 0 {
				reqLog.Warn("missing transcript")
				http.Error(w, "missing transcript body or transcript_url", http.StatusBadRequest)
				return
			}
			text, latin1 := transcription.Decode(body)
			if latin1 {
				reqLog.Warn("transcript is not valid UTF-8, decoded as Latin-1")
			}
			source := r.URL.Query().Get("source")
			if source == "" {
				source = "request"
			}
			res = proc.ProcessText(ctx, source, text)
		}

		reqLog.WithField("duration_ms", res.DurationMs).WithField("state", res.State).Info("processor finished")
		w.Header().Set("Content-Type", "application/json")
		if res.Err != nil {
			w.WriteHeader(http.StatusInternalServerError)
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			reqLog.WithError(err).Error("failed to write response")
		}
	})

	return mux
}
