// Command poseanalyzerd runs the pose analysis daemon: the python pose engine
// and keypoint extractor workers, MQTT result publishing and control, and the
// /health and /readiness endpoints.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sameeksha0725/basketball-pose-analyser/internal/config"
	"github.com/sameeksha0725/basketball-pose-analyser/internal/core"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "Path to configuration file")
	healthPort := flag.Int("health-port", 0, "Port for /health and /readiness (default: health_port from config)")
	checkConfig := flag.Bool("check-config", false, "Validate the configuration, print a summary and exit")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	if *checkConfig {
		os.Exit(checkConfigFile(*configPath, os.Stdout))
	}
	os.Exit(run(*configPath, *healthPort))
}

// checkConfigFile loads and validates a configuration file without starting
// any worker.
func checkConfigFile(path string, out io.Writer) int {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(out, "%s: %v\n", path, err)
		return 1
	}

	mqtt := "disabled"
	if cfg.MQTT.Broker != "" {
		mqtt = cfg.MQTT.Broker
	}
	fmt.Fprintf(out, "%s: ok\n", path)
	fmt.Fprintf(out, "  instance:  %s\n", cfg.InstanceID)
	fmt.Fprintf(out, "  model:     %s (%s)\n", cfg.Engine.ModelPath, cfg.Engine.Device)
	fmt.Fprintf(out, "  health:    :%d, published %s\n", cfg.HealthPort, cfg.HealthSchedule)
	fmt.Fprintf(out, "  mqtt:      %s\n", mqtt)
	fmt.Fprintf(out, "  coach:     %t\n", cfg.Coach.Enabled)
	return 0
}

func run(configPath string, healthPort int) int {
	slog.Info("starting pose analyzer", "config", configPath, "pid", os.Getpid())

	daemon, err := core.NewDaemon(configPath)
	if err != nil {
		slog.Error("failed to create pose analyzer", "error", err)
		return 1
	}

	// Bind before starting workers so a busy port fails fast
	if err := daemon.StartHealthServer(healthPort); err != nil {
		slog.Error("failed to start health server", "error", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- daemon.Run(ctx)
	}()

	exitCode := 0
	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
		// Run owns the control handler until it returns
		<-errChan
	case err := <-errChan:
		if err != nil {
			slog.Error("pose analyzer failed", "error", err)
			exitCode = 1
		}
	}

	shutdownTimeout := daemon.ShutdownTimeout()
	slog.Info("shutting down gracefully", "timeout", shutdownTimeout)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := daemon.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", "error", err)
		return 1
	}

	slog.Info("pose analyzer stopped",
		"instance_id", daemon.Config().InstanceID,
		"analyses", daemon.Service().HealthCheck().Analyses,
	)
	return exitCode
}
