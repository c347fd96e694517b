// Package salience ranks body landmarks by the attention the model paid to them.
package salience

import (
	"math"
	"sort"

	"github.com/sameeksha0725/basketball-pose-analyser/internal/types"
)

// TopK is the maximum number of joints reported.
const TopK = 5

// Rank reduces the attention matrix to one score per joint and returns the
// names of the most salient joints, highest first. Ties keep ascending index
// order. Indices outside the landmark catalogue are dropped after the top
// TopK are selected, so the result may hold fewer than TopK names.
func Rank(att types.AttentionMatrix) ([]string, error) {
	if err := att.Validate(); err != nil {
		return nil, err
	}

	scores := Reduce(att)

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return rankValue(scores[order[a]]) > rankValue(scores[order[b]])
	})

	if len(order) > TopK {
		order = order[:TopK]
	}

	joints := make([]string, 0, len(order))
	for _, idx := range order {
		if name, ok := types.LandmarkName(idx); ok {
			joints = append(joints, name)
		}
	}
	return joints, nil
}

// Reduce collapses the attention tensor to a per-joint salience vector.
// Rank 3 (batch, joint, key) averages axes 0 and 2, rank 2 (joint, key)
// averages axis 1, and any other rank is taken as already flat.
func Reduce(att types.AttentionMatrix) []float64 {
	switch att.Rank() {
	case 3:
		outer, joints, inner := att.Shape[0], att.Shape[1], att.Shape[2]
		out := make([]float64, joints)
		n := float64(outer * inner)
		if n == 0 {
			return out
		}
		for a := 0; a < outer; a++ {
			for j := 0; j < joints; j++ {
				base := (a*joints + j) * inner
				for k := 0; k < inner; k++ {
					out[j] += att.Data[base+k]
				}
			}
		}
		for j := range out {
			out[j] /= n
		}
		return out

	case 2:
		joints, inner := att.Shape[0], att.Shape[1]
		out := make([]float64, joints)
		if inner == 0 {
			return out
		}
		for j := 0; j < joints; j++ {
			for k := 0; k < inner; k++ {
				out[j] += att.Data[j*inner+k]
			}
			out[j] /= float64(inner)
		}
		return out

	default:
		out := make([]float64, len(att.Data))
		copy(out, att.Data)
		return out
	}
}

// NaN sorts below every number
func rankValue(v float64) float64 {
	if math.IsNaN(v) {
		return math.Inf(-1)
	}
	return v
}
