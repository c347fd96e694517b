// Package metrics computes geometric body measurements from a single keypoint frame.
package metrics

import (
	"fmt"
	"math"

	"github.com/sameeksha0725/basketball-pose-analyser/internal/types"
)

// requiredLandmarks is the number of leading landmarks needed to reach both ankles.
const requiredLandmarks = types.RightAnkle + 1

// Calculate derives PoseMetrics from one frame.
// Distances are planar (x, y only); z is ignored.
func Calculate(frame types.KeypointFrame) (types.PoseMetrics, error) {
	if len(frame) < requiredLandmarks {
		return types.PoseMetrics{}, fmt.Errorf("%w: frame has %d landmarks, metrics need %d",
			types.ErrInvalidInput, len(frame), requiredLandmarks)
	}

	ls, rs := frame[types.LeftShoulder], frame[types.RightShoulder]
	lh, rh := frame[types.LeftHip], frame[types.RightHip]
	lk, rk := frame[types.LeftKnee], frame[types.RightKnee]
	la, ra := frame[types.LeftAnkle], frame[types.RightAnkle]

	m := types.PoseMetrics{
		ShoulderWidth:  planarDistance(ls, rs),
		HipWidth:       planarDistance(lh, rh),
		TorsoAngle:     torsoAngle(ls, rs, lh, rh),
		LeftLegLength:  planarDistance(lk, la),
		RightLegLength: planarDistance(rk, ra),
	}

	if m.ShoulderWidth > 0 {
		m.BalanceRatio = planarDistance(la, ra) / m.ShoulderWidth
	}
	m.BodySymmetry = math.Abs(m.LeftLegLength - m.RightLegLength)

	return m, nil
}

func planarDistance(a, b types.Keypoint) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// torsoAngle is the direction in degrees of the vector from the hip midpoint
// to the shoulder midpoint. The value is not normalized around ±180.
func torsoAngle(ls, rs, lh, rh types.Keypoint) float64 {
	shoulderX, shoulderY := (ls.X+rs.X)/2, (ls.Y+rs.Y)/2
	hipX, hipY := (lh.X+rh.X)/2, (lh.Y+rh.Y)/2
	return math.Atan2(shoulderY-hipY, shoulderX-hipX) * 180 / math.Pi
}
