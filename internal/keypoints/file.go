// Package keypoints provides keypoint sources backed by pre-extracted landmark dumps.
package keypoints

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sameeksha0725/basketball-pose-analyser/internal/types"
)

// Point is one landmark as stored in a dump file.
type Point struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility,omitempty"`
}

// FrameRecord holds the named landmarks of one video frame. An empty
// Landmarks map means no pose was detected in that frame.
type FrameRecord struct {
	Frame     int              `json:"frame"`
	Landmarks map[string]Point `json:"landmarks"`
}

// Dump is the on-disk landmark format:
//
//	{"frames": [{"frame": 0, "landmarks": {"nose": {"x": 0.5, "y": 0.2, "z": -0.1}, ...}}]}
type Dump struct {
	Frames []FrameRecord `json:"frames"`
}

// Decode reads a dump from r.
func Decode(r io.Reader) (*Dump, error) {
	var d Dump
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return nil, fmt.Errorf("%w: failed to parse keypoint dump: %v", types.ErrInvalidInput, err)
	}
	return &d, nil
}

// Load reads a dump file.
func Load(path string) (*Dump, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open keypoint dump: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// ToFrame converts a record to a KeypointFrame. It returns nil for a record
// without landmarks and ErrInvalidInput when the landmark set is incomplete
// or names an unknown landmark.
func (r FrameRecord) ToFrame() (types.KeypointFrame, error) {
	if len(r.Landmarks) == 0 {
		return nil, nil
	}

	frame := make(types.KeypointFrame, types.NumLandmarks)
	seen := 0
	for name, p := range r.Landmarks {
		idx, ok := types.LandmarkIndex(name)
		if !ok {
			return nil, fmt.Errorf("%w: frame %d: unknown landmark %q", types.ErrInvalidInput, r.Frame, name)
		}
		frame[idx] = types.Keypoint{X: p.X, Y: p.Y, Z: p.Z}
		seen++
	}
	if seen != types.NumLandmarks {
		return nil, fmt.Errorf("%w: frame %d has %d of %d landmarks", types.ErrInvalidInput, r.Frame, seen, types.NumLandmarks)
	}
	return frame, nil
}

// Sequence returns the detected frames of the dump in file order.
func (d *Dump) Sequence() (types.KeypointSequence, error) {
	seq := make(types.KeypointSequence, 0, len(d.Frames))
	for _, rec := range d.Frames {
		frame, err := rec.ToFrame()
		if err != nil {
			return nil, err
		}
		if frame != nil {
			seq = append(seq, frame)
		}
	}
	return seq, nil
}

// FromFrame builds a dump record from a frame.
func FromFrame(index int, frame types.KeypointFrame) FrameRecord {
	rec := FrameRecord{Frame: index, Landmarks: make(map[string]Point, len(frame))}
	for i, kp := range frame {
		if name, ok := types.LandmarkName(i); ok {
			rec.Landmarks[name] = Point{X: kp.X, Y: kp.Y, Z: kp.Z}
		}
	}
	return rec
}

// FileProvider serves keypoints from dump files instead of running an
// extractor. The image path and the video path both name a dump file; for
// images the first frame is used.
type FileProvider struct{}

// NewFileProvider creates a dump-backed keypoint provider
func NewFileProvider() *FileProvider {
	return &FileProvider{}
}

// ExtractFrame returns the first frame of the dump, or nil when it has no detection.
func (p *FileProvider) ExtractFrame(ctx context.Context, path string) (types.KeypointFrame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d, err := Load(path)
	if err != nil {
		return nil, err
	}
	if len(d.Frames) == 0 {
		return nil, nil
	}
	return d.Frames[0].ToFrame()
}

// ExtractSequence returns every detected frame of the dump.
func (p *FileProvider) ExtractSequence(ctx context.Context, path string) (types.KeypointSequence, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d, err := Load(path)
	if err != nil {
		return nil, err
	}
	return d.Sequence()
}
