package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/review3/liveness-cam/internal/config"
	"github.com/review3/liveness-cam/internal/logger"
	"github.com/review3/liveness-cam/internal/metrics"
	"github.com/review3/liveness-cam/internal/predict"
	"github.com/review3/liveness-cam/internal/session"
	"github.com/review3/liveness-cam/internal/webui"
)

func main() {
	cfg := config.FromEnv()

	flag.StringVar(&cfg.PredictURL, "predict-url", cfg.PredictURL, "Prediction service URL (http(s) or ws(s))")
	flag.DurationVar(&cfg.PredictInterval, "predict-interval", cfg.PredictInterval, "Interval between prediction cycles")
	flag.DurationVar(&cfg.RequestTimeout, "request-timeout", cfg.RequestTimeout, "Prediction request timeout")
	flag.StringVar(&cfg.AuthenticLabel, "authentic-label", cfg.AuthenticLabel, "Label rendered in the authentic color")
	flag.StringVar(&cfg.Device, "device", cfg.Device, "Camera device (or \"test\" for the synthetic pattern)")
	flag.IntVar(&cfg.Width, "width", cfg.Width, "Capture width")
	flag.IntVar(&cfg.Height, "height", cfg.Height, "Capture height")
	flag.IntVar(&cfg.TargetFPS, "fps", cfg.TargetFPS, "Render loop rate")
	flag.IntVar(&cfg.JPEGQuality, "jpeg-quality", cfg.JPEGQuality, "JPEG quality for published frames")
	flag.StringVar(&cfg.HTTPAddr, "http", cfg.HTTPAddr, "HTTP server address")
	flag.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Metrics server address")
	flag.BoolVar(&cfg.Autostart, "autostart", cfg.Autostart, "Start the capture session at boot")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error, silent)")
	flag.BoolVar(&cfg.LogColor, "log-color", cfg.LogColor, "Enable colored log output")
	flag.Parse()

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	logger.Init(level, os.Stderr, cfg.LogColor)

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Info("Main", "liveness camera client starting...")
	logger.Info("Main", "predict endpoint: %s (every %s)", cfg.PredictURL, cfg.PredictInterval)
	logger.Info("Main", "camera: %s @ %dx%d", cfg.Device, cfg.Width, cfg.Height)

	m := metrics.New()

	predictor, err := predict.New(predict.Options{
		URL:         cfg.PredictURL,
		JPEGQuality: cfg.JPEGQuality,
	})
	if err != nil {
		log.Fatalf("Failed to create predictor: %v", err)
	}

	store := predict.NewStore()
	broadcaster := webui.NewFrameBroadcaster()
	controller := session.NewController(cfg, store, predictor, broadcaster, m, nil)
	server := webui.NewServer(controller, broadcaster, m)

	go func() {
		logger.Info("Main", "metrics server on %s", cfg.MetricsAddr)
		if err := m.StartServer(cfg.MetricsAddr); err != nil {
			logger.Error("Main", "metrics server: %v", err)
		}
	}()

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: server.Handler(),
	}
	go func() {
		logger.Info("Main", "web UI on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	if cfg.Autostart {
		if err := controller.Start(); err != nil {
			logger.Error("Main", "autostart failed: %v", err)
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Main", "shutting down...")
	controller.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("Main", "shutdown: %v", err)
	}

	logger.Info("Main", "stopped")
}
