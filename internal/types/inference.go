package types

import "fmt"

// AttentionMatrix is a dense row-major tensor of attention weights as
// produced by the model. Its rank decides how it reduces to per-landmark salience.
type AttentionMatrix struct {
	Shape []int     `msgpack:"shape" json:"shape"`
	Data  []float64 `msgpack:"data" json:"data"`
}

// Rank returns the number of dimensions.
func (a AttentionMatrix) Rank() int {
	return len(a.Shape)
}

// Validate checks that Shape describes exactly len(Data) elements. Tensors of
// rank 2 or more may not have empty axes, and no axis may be longer than Data.
func (a AttentionMatrix) Validate() error {
	if len(a.Shape) == 0 {
		return nil
	}

	n := 1
	for _, d := range a.Shape {
		switch {
		case d < 0:
			return fmt.Errorf("%w: negative attention dimension %d", ErrInvalidInput, d)
		case d == 0 && len(a.Shape) >= 2:
			return fmt.Errorf("%w: empty attention dimension in shape %v", ErrInvalidInput, a.Shape)
		case d > len(a.Data):
			return fmt.Errorf("%w: attention dimension %d exceeds %d values", ErrInvalidInput, d, len(a.Data))
		}
		n *= d
		if n > len(a.Data) {
			break
		}
	}
	if n != len(a.Data) {
		return fmt.Errorf("%w: attention shape %v does not match %d values", ErrInvalidInput, a.Shape, len(a.Data))
	}
	return nil
}

// InferenceOutput is the raw result of one pass of the classification model.
type InferenceOutput struct {
	TopDownLogits  []float64       `msgpack:"top_down_logits"`
	BottomUpLogits []float64       `msgpack:"bottom_up_logits"`
	QualityRaw     float64         `msgpack:"quality_score"`
	Attention      AttentionMatrix `msgpack:"attention"`
}

// Validate checks the logit vector lengths and the quality range.
func (o *InferenceOutput) Validate() error {
	if len(o.TopDownLogits) != NumPoseClasses {
		return fmt.Errorf("%w: top-down logits have length %d, want %d", ErrInvalidInference, len(o.TopDownLogits), NumPoseClasses)
	}
	if len(o.BottomUpLogits) != NumPoseClasses {
		return fmt.Errorf("%w: bottom-up logits have length %d, want %d", ErrInvalidInference, len(o.BottomUpLogits), NumPoseClasses)
	}
	for i := 0; i < NumPoseClasses; i++ {
		if isBad(o.TopDownLogits[i]) || isBad(o.BottomUpLogits[i]) {
			return fmt.Errorf("%w: non-finite logit at index %d", ErrInvalidInference, i)
		}
	}
	if isBad(o.QualityRaw) || o.QualityRaw < 0 || o.QualityRaw > 1 {
		return fmt.Errorf("%w: quality score %v outside [0,1]", ErrInvalidInference, o.QualityRaw)
	}
	return nil
}
