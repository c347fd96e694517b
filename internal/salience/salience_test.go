package salience

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"testing/quick"

	"github.com/sameeksha0725/basketball-pose-analyser/internal/types"
)

func names(t *testing.T, idx ...int) []string {
	t.Helper()
	out := make([]string, 0, len(idx))
	for _, i := range idx {
		n, ok := types.LandmarkName(i)
		if !ok {
			t.Fatalf("no landmark %d", i)
		}
		out = append(out, n)
	}
	return out
}

func TestReduce(t *testing.T) {
	tests := []struct {
		name string
		att  types.AttentionMatrix
		want []float64
	}{
		{
			name: "rank 2 averages keys",
			att:  types.AttentionMatrix{Shape: []int{2, 2}, Data: []float64{1, 3, 5, 7}},
			want: []float64{2, 6},
		},
		{
			name: "rank 3 averages batch and keys",
			att: types.AttentionMatrix{
				Shape: []int{2, 2, 2},
				Data: []float64{
					1, 1, 2, 2, // batch 0
					3, 3, 4, 4, // batch 1
				},
			},
			want: []float64{2, 3},
		},
		{
			name: "rank 1 is taken as is",
			att:  types.AttentionMatrix{Shape: []int{3}, Data: []float64{0.1, 0.2, 0.3}},
			want: []float64{0.1, 0.2, 0.3},
		},
		{
			name: "rank 4 is flattened",
			att:  types.AttentionMatrix{Shape: []int{1, 1, 1, 2}, Data: []float64{4, 5}},
			want: []float64{4, 5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reduce(tt.att)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Reduce = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRank_Ordering(t *testing.T) {
	data := make([]float64, types.NumLandmarks)
	data[11] = 0.9
	data[12] = 0.8
	data[23] = 0.7
	data[0] = 0.6
	data[27] = 0.5
	data[28] = 0.4

	joints, err := Rank(types.AttentionMatrix{Shape: []int{types.NumLandmarks}, Data: data})
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}

	want := names(t, 11, 12, 23, 0, 27)
	if !reflect.DeepEqual(joints, want) {
		t.Errorf("Rank = %v, want %v", joints, want)
	}
}

func TestRank_TiesKeepAscendingIndex(t *testing.T) {
	data := make([]float64, types.NumLandmarks)
	for _, i := range []int{30, 4, 17, 2, 9, 25} {
		data[i] = 1
	}

	joints, err := Rank(types.AttentionMatrix{Data: data})
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}

	want := names(t, 2, 4, 9, 17, 25)
	if !reflect.DeepEqual(joints, want) {
		t.Errorf("Rank = %v, want %v", joints, want)
	}
}

func TestRank_DropsOutOfCatalogueAfterTopK(t *testing.T) {
	data := make([]float64, 40)
	data[35] = 10
	data[39] = 9
	data[3] = 8
	data[1] = 7
	data[2] = 6
	data[5] = 5

	joints, err := Rank(types.AttentionMatrix{Data: data})
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}

	// 35 and 39 take top slots and are then dropped; 5 never makes the cut
	want := names(t, 3, 1, 2)
	if !reflect.DeepEqual(joints, want) {
		t.Errorf("Rank = %v, want %v", joints, want)
	}
}

func TestRank_NaNSortsLast(t *testing.T) {
	data := []float64{math.NaN(), 0.1, 0.3, math.NaN(), 0.2}

	joints, err := Rank(types.AttentionMatrix{Data: data})
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}

	want := names(t, 2, 4, 1, 0, 3)
	if !reflect.DeepEqual(joints, want) {
		t.Errorf("Rank = %v, want %v", joints, want)
	}
}

func TestRank_EmptyAndMalformed(t *testing.T) {
	joints, err := Rank(types.AttentionMatrix{})
	if err != nil || len(joints) != 0 {
		t.Errorf("empty attention: got %v, %v", joints, err)
	}

	malformed := []struct {
		name string
		att  types.AttentionMatrix
	}{
		{"shape mismatch", types.AttentionMatrix{Shape: []int{33, 2}, Data: make([]float64, 10)}},
		{"empty key axis", types.AttentionMatrix{Shape: []int{1 << 50, 0}}},
		{"empty batch axis", types.AttentionMatrix{Shape: []int{0, 1 << 40, 5}}},
		{"joint axis longer than data", types.AttentionMatrix{Shape: []int{1 << 33, 1}, Data: make([]float64, 4)}},
	}
	for _, tt := range malformed {
		t.Run(tt.name, func(t *testing.T) {
			joints, err := Rank(tt.att)
			if !errors.Is(err, types.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
			if joints != nil {
				t.Errorf("expected no joints, got %v", joints)
			}
		})
	}
}

// Property: at most TopK names, each a catalogue landmark, in non-increasing salience.
func TestRank_Properties(t *testing.T) {
	property := func(raw []float64) bool {
		joints, err := Rank(types.AttentionMatrix{Data: raw})
		if err != nil || len(joints) > TopK {
			return false
		}

		prev := math.Inf(1)
		for _, name := range joints {
			idx, ok := types.LandmarkIndex(name)
			if !ok || idx >= len(raw) {
				return false
			}
			if raw[idx] > prev {
				return false
			}
			prev = raw[idx]
		}
		return true
	}

	if err := quick.Check(property, nil); err != nil {
		t.Error(err)
	}
}
