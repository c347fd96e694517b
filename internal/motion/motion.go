// Package motion measures how a body moves across a keypoint sequence.
package motion

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/sameeksha0725/basketball-pose-analyser/internal/types"
)

// ErrInsufficientFrames is returned when a sequence has fewer than two frames.
var ErrInsufficientFrames = errors.New("insufficient frames for motion analysis")

const (
	// minSmoothnessRows is the number of velocity rows needed for a jerk estimate.
	minSmoothnessRows = 3
	// minRhythmRows is the number of velocity rows needed for peak spacing.
	minRhythmRows = 5

	// neutralRhythm is reported when peak spacing cannot be measured.
	neutralRhythm = 0.5
)

// Analyze computes the motion metrics of a sequence. Sequences shorter than
// two frames return ErrInsufficientFrames together with a metrics value
// carrying the error message and the Unknown quality label.
func Analyze(seq types.KeypointSequence) (types.MotionMetrics, error) {
	if len(seq) < 2 {
		return types.MotionMetrics{
			MotionQuality: types.MotionUnknown,
			Error:         "Insufficient frames for motion analysis",
		}, ErrInsufficientFrames
	}
	if err := seq.Validate(); err != nil {
		return types.MotionMetrics{}, err
	}

	vel := Velocities(seq)
	flat := flatten(vel)

	m := types.MotionMetrics{
		AverageVelocity:   stat.Mean(flat, nil),
		MaxVelocity:       floats.Max(flat),
		VelocityVariance:  stat.PopVariance(flat, nil),
		SmoothnessScore:   Smoothness(vel),
		RhythmConsistency: RhythmConsistency(vel),
	}
	m.MotionQuality = Classify(m.SmoothnessScore)

	if !finite(m.AverageVelocity, m.MaxVelocity, m.VelocityVariance, m.SmoothnessScore, m.RhythmConsistency) {
		return types.MotionMetrics{}, fmt.Errorf("%w: non-finite motion metrics", types.ErrInvalidInput)
	}
	return m, nil
}

// Velocities returns the (N-1) x joints matrix of per-joint displacement
// magnitudes between consecutive frames.
func Velocities(seq types.KeypointSequence) [][]float64 {
	if len(seq) < 2 {
		return nil
	}
	out := make([][]float64, len(seq)-1)
	for i := 1; i < len(seq); i++ {
		prev, cur := seq[i-1], seq[i]
		n := len(cur)
		if len(prev) < n {
			n = len(prev)
		}
		row := make([]float64, n)
		for j := 0; j < n; j++ {
			dx := cur[j].X - prev[j].X
			dy := cur[j].Y - prev[j].Y
			dz := cur[j].Z - prev[j].Z
			row[j] = math.Sqrt(dx*dx + dy*dy + dz*dz)
		}
		out[i-1] = row
	}
	return out
}

// Smoothness is 1/(1+mean|jerk|) where jerk is the second time difference of
// the velocity matrix. It is 0 with fewer than three velocity rows.
func Smoothness(vel [][]float64) float64 {
	if len(vel) < minSmoothnessRows {
		return 0
	}

	var sum float64
	var count int
	for t := 0; t+2 < len(vel); t++ {
		for j := range vel[t] {
			jerk := vel[t+2][j] - 2*vel[t+1][j] + vel[t][j]
			sum += math.Abs(jerk)
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return 1 / (1 + sum/float64(count))
}

// RhythmConsistency scores how evenly spaced the peaks of the mean joint
// velocity are. It is 0 with fewer than five velocity rows and 0.5 when
// fewer than three peaks leave no spacing variance to measure.
func RhythmConsistency(vel [][]float64) float64 {
	if len(vel) < minRhythmRows {
		return 0
	}

	signal := make([]float64, len(vel))
	for t, row := range vel {
		if len(row) > 0 {
			signal[t] = stat.Mean(row, nil)
		}
	}

	peaks := FindPeaks(signal)
	if len(peaks) < 2 {
		return neutralRhythm
	}

	intervals := make([]float64, len(peaks)-1)
	for i := 1; i < len(peaks); i++ {
		intervals[i-1] = float64(peaks[i] - peaks[i-1])
	}
	if len(intervals) < 2 {
		return neutralRhythm
	}
	return 1 / (1 + stat.PopVariance(intervals, nil))
}

// FindPeaks returns the indices of samples strictly greater than both
// neighbors. Endpoints are never peaks.
func FindPeaks(signal []float64) []int {
	var peaks []int
	for i := 1; i+1 < len(signal); i++ {
		if signal[i] > signal[i-1] && signal[i] > signal[i+1] {
			peaks = append(peaks, i)
		}
	}
	return peaks
}

// Classify labels a smoothness score.
func Classify(smoothness float64) types.MotionQuality {
	switch {
	case smoothness > 0.7:
		return types.MotionSmooth
	case smoothness > 0.4:
		return types.MotionModerate
	default:
		return types.MotionJerky
	}
}

func flatten(m [][]float64) []float64 {
	var n int
	for _, row := range m {
		n += len(row)
	}
	out := make([]float64, 0, n)
	for _, row := range m {
		out = append(out, row...)
	}
	return out
}

func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
