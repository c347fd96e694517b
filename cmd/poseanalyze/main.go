package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sameeksha0725/basketball-pose-analyser/internal/config"
	"github.com/sameeksha0725/basketball-pose-analyser/internal/core"
	"github.com/sameeksha0725/basketball-pose-analyser/internal/keypoints"
	"github.com/sameeksha0725/basketball-pose-analyser/internal/types"
)

const usage = `Usage:
  poseanalyze [flags] files...   analyze images or videos, one JSON result per line
  poseanalyze classes            list the pose classes in model order

Flags:
`

func main() {
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}

	configPath := flag.String("config", config.DefaultPath, "Path to configuration file")
	mode := flag.String("mode", "image", "Input kind: image or video")
	fromKeypoints := flag.Bool("keypoints", false, "Inputs are JSON keypoint dumps instead of media files")
	concurrency := flag.Int("concurrency", 0, "Maximum analyses in flight (default: batch.concurrency)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	logLevel := slog.LevelWarn
	if *debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	args := flag.Args()
	if len(args) == 1 && args[0] == "classes" {
		printClasses()
		return
	}
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if *mode != "image" && *mode != "video" {
		fmt.Fprintf(os.Stderr, "unknown mode %q (must be image or video)\n", *mode)
		os.Exit(2)
	}

	os.Exit(run(*configPath, *mode, *fromKeypoints, *concurrency, args))
}

func run(configPath, mode string, fromKeypoints bool, concurrency int, files []string) int {
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}
	if concurrency <= 0 {
		concurrency = cfg.Batch.Concurrency
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, err := core.NewEngine(cfg)
	if err != nil {
		slog.Error("failed to create engine", "error", err)
		return 1
	}
	narrator, err := core.NewNarrator(cfg)
	if err != nil {
		slog.Error("failed to create coach", "error", err)
		return 1
	}

	opts := core.Options{
		Config:   cfg,
		Engine:   engine,
		Narrator: narrator,
		Workers:  []core.Worker{engine.Process()},
	}
	if fromKeypoints {
		opts.Provider = keypoints.NewFileProvider()
	} else {
		extractor, err := core.NewExtractor(cfg)
		if err != nil {
			slog.Error("failed to create extractor", "error", err)
			return 1
		}
		opts.Provider = extractor
		opts.Workers = append(opts.Workers, extractor.Process())
	}

	svc, err := core.NewService(opts)
	if err != nil {
		slog.Error("failed to create service", "error", err)
		return 1
	}
	if err := svc.Start(ctx); err != nil {
		slog.Error("failed to start workers", "error", err)
		return 1
	}
	defer svc.Stop()

	analyze := func(ctx context.Context, path string) (types.Result, error) {
		if mode == "video" {
			res, err := svc.AnalyzeVideoFile(ctx, path)
			if err != nil {
				return nil, err
			}
			return res, nil
		}
		res, err := svc.AnalyzeImageFile(ctx, path)
		if err != nil {
			return nil, err
		}
		return res, nil
	}

	report := runBatch(ctx, files, concurrency, analyze, os.Stderr)

	out := bufio.NewWriter(os.Stdout)
	for _, line := range report.Lines {
		out.Write(line)
		out.WriteByte('\n')
	}
	if err := out.Flush(); err != nil {
		slog.Error("failed to write results", "error", err)
		return 1
	}

	if report.Failures > 0 {
		slog.Warn("some files could not be analyzed", "failed", report.Failures, "total", len(files))
		return 1
	}
	return 0
}

func printClasses() {
	out, _ := json.Marshal(map[string]interface{}{
		"pose_classes":  types.PoseClasses(),
		"total_classes": types.NumPoseClasses,
	})
	fmt.Println(string(out))
}
