package types

// PoseClass is one of the basketball pose categories recognized by the model.
type PoseClass string

const (
	PoseShooting        PoseClass = "shooting"
	PoseDribbling       PoseClass = "dribbling"
	PoseDefensiveStance PoseClass = "defensive_stance"
	PoseLayup           PoseClass = "layup"
	PoseJumpShot        PoseClass = "jump_shot"
	PoseFreeThrow       PoseClass = "free_throw"
	PosePassing         PoseClass = "passing"
	PoseRebounding      PoseClass = "rebounding"
	PosePivot           PoseClass = "pivot"
	PoseIdle            PoseClass = "idle"
)

// NumPoseClasses is the length of the classifier logit vectors.
const NumPoseClasses = 10

// The order matches the model's output layer.
var poseClasses = [NumPoseClasses]PoseClass{
	PoseShooting,
	PoseDribbling,
	PoseDefensiveStance,
	PoseLayup,
	PoseJumpShot,
	PoseFreeThrow,
	PosePassing,
	PoseRebounding,
	PosePivot,
	PoseIdle,
}

// PoseClassAt maps a logit index to its pose class.
func PoseClassAt(i int) (PoseClass, bool) {
	if i < 0 || i >= NumPoseClasses {
		return "", false
	}
	return poseClasses[i], true
}

// PoseClasses returns a copy of the class catalogue in model order.
func PoseClasses() []PoseClass {
	out := make([]PoseClass, NumPoseClasses)
	copy(out, poseClasses[:])
	return out
}

// String implements fmt.Stringer
func (c PoseClass) String() string {
	return string(c)
}
