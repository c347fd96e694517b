package core

import (
	"context"

	"github.com/sameeksha0725/basketball-pose-analyser/internal/emitter"
	"github.com/sameeksha0725/basketball-pose-analyser/internal/types"
	"github.com/sameeksha0725/basketball-pose-analyser/internal/worker"
)

// KeypointProvider extracts pose landmarks from media files
type KeypointProvider interface {
	// ExtractFrame returns the landmarks of an image, or nil when no pose is found
	ExtractFrame(ctx context.Context, path string) (types.KeypointFrame, error)
	// ExtractSequence returns the landmarks of every video frame with a detected pose
	ExtractSequence(ctx context.Context, path string) (types.KeypointSequence, error)
}

// Publisher publishes results and health snapshots to a message broker
type Publisher interface {
	Publish(result types.Result) error
	PublishHealth(payload []byte) error
	Stats() emitter.Stats
}

// Worker is a supervised subprocess backing the engine or the extractor
type Worker interface {
	ID() string
	Start(ctx context.Context) error
	Stop() error
	Restart(ctx context.Context) error
	IsActive() bool
	Metrics() worker.Metrics
}
