package types

// NumLandmarks is the number of body landmarks in a keypoint frame (MediaPipe pose topology).
const NumLandmarks = 33

// Landmark indices used by the geometric pose metrics.
const (
	Nose          = 0
	LeftShoulder  = 11
	RightShoulder = 12
	LeftHip       = 23
	RightHip      = 24
	LeftKnee      = 25
	RightKnee     = 26
	LeftAnkle     = 27
	RightAnkle    = 28
)

var landmarkNames = [NumLandmarks]string{
	"nose",
	"left_eye_inner",
	"left_eye",
	"left_eye_outer",
	"right_eye_inner",
	"right_eye",
	"right_eye_outer",
	"left_ear",
	"right_ear",
	"mouth_left",
	"mouth_right",
	"left_shoulder",
	"right_shoulder",
	"left_elbow",
	"right_elbow",
	"left_wrist",
	"right_wrist",
	"left_pinky",
	"right_pinky",
	"left_index",
	"right_index",
	"left_thumb",
	"right_thumb",
	"left_hip",
	"right_hip",
	"left_knee",
	"right_knee",
	"left_ankle",
	"right_ankle",
	"left_heel",
	"right_heel",
	"left_foot_index",
	"right_foot_index",
}

var landmarkIndex = func() map[string]int {
	m := make(map[string]int, NumLandmarks)
	for i, name := range landmarkNames {
		m[name] = i
	}
	return m
}()

// LandmarkName returns the canonical name of landmark i.
func LandmarkName(i int) (string, bool) {
	if i < 0 || i >= NumLandmarks {
		return "", false
	}
	return landmarkNames[i], true
}

// LandmarkIndex returns the index of a landmark by canonical name.
func LandmarkIndex(name string) (int, bool) {
	i, ok := landmarkIndex[name]
	return i, ok
}

// LandmarkNames returns a copy of the landmark catalogue in index order.
func LandmarkNames() []string {
	out := make([]string, NumLandmarks)
	copy(out, landmarkNames[:])
	return out
}
