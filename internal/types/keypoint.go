package types

import (
	"encoding/json"
	"fmt"
	"math"
)

// Keypoint is a single landmark position. X and Y are normalized image
// coordinates, Z is relative depth.
type Keypoint struct {
	X float64
	Y float64
	Z float64
}

// MarshalJSON encodes the keypoint as an [x, y, z] triple.
func (k Keypoint) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]float64{k.X, k.Y, k.Z})
}

// UnmarshalJSON decodes an [x, y, z] triple.
func (k *Keypoint) UnmarshalJSON(data []byte) error {
	var v []float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if len(v) != 3 {
		return fmt.Errorf("%w: keypoint has %d coordinates, want 3", ErrInvalidInput, len(v))
	}
	k.X, k.Y, k.Z = v[0], v[1], v[2]
	return nil
}

// Finite reports whether every coordinate is a finite number.
func (k Keypoint) Finite() bool {
	return !isBad(k.X) && !isBad(k.Y) && !isBad(k.Z)
}

func isBad(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

// KeypointFrame holds the landmarks of one detected pose in index order.
// A nil frame means no pose was detected.
type KeypointFrame []Keypoint

// Validate checks that the frame carries the full landmark set with finite coordinates.
func (f KeypointFrame) Validate() error {
	if len(f) != NumLandmarks {
		return fmt.Errorf("%w: frame has %d landmarks, want %d", ErrInvalidInput, len(f), NumLandmarks)
	}
	for i, kp := range f {
		if !kp.Finite() {
			return fmt.Errorf("%w: landmark %d has non-finite coordinates", ErrInvalidInput, i)
		}
	}
	return nil
}

// Clone returns a deep copy of the frame.
func (f KeypointFrame) Clone() KeypointFrame {
	if f == nil {
		return nil
	}
	out := make(KeypointFrame, len(f))
	copy(out, f)
	return out
}

// Rows converts the frame to a [landmark][x,y,z] matrix for wire encoding.
func (f KeypointFrame) Rows() [][]float64 {
	rows := make([][]float64, len(f))
	for i, kp := range f {
		rows[i] = []float64{kp.X, kp.Y, kp.Z}
	}
	return rows
}

// FrameFromRows builds a frame from a [landmark][x,y,z] matrix.
func FrameFromRows(rows [][]float64) (KeypointFrame, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	f := make(KeypointFrame, len(rows))
	for i, r := range rows {
		if len(r) < 3 {
			return nil, fmt.Errorf("%w: landmark %d has %d coordinates, want 3", ErrInvalidInput, i, len(r))
		}
		f[i] = Keypoint{X: r[0], Y: r[1], Z: r[2]}
	}
	return f, nil
}

// KeypointSequence is the ordered list of detected frames from a video.
// Frames without a detection are omitted by the extractor.
type KeypointSequence []KeypointFrame

// Validate checks every frame of the sequence.
func (s KeypointSequence) Validate() error {
	for i, f := range s {
		if err := f.Validate(); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
	}
	return nil
}

// Tensor converts the sequence to a [frame][landmark][x,y,z] tensor for wire encoding.
func (s KeypointSequence) Tensor() [][][]float64 {
	out := make([][][]float64, len(s))
	for i, f := range s {
		out[i] = f.Rows()
	}
	return out
}
