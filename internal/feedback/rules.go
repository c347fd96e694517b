// Package feedback turns pose and motion measurements into coaching feedback.
//
// Per-pose feedback is driven by a declarative rule table: each pose class has
// an ordered list of predicates over PoseMetrics, each predicate adding one
// message to the strengths or improvements bucket, plus a fixed list of
// technique tips. General rules run after the class rules for every class.
package feedback

import "github.com/sameeksha0725/basketball-pose-analyser/internal/types"

// Bucket is the feedback list a rule message lands in.
type Bucket int

const (
	Strength Bucket = iota
	Improvement
)

// Rule adds Message to Bucket when When holds for the metrics.
type Rule struct {
	When    func(types.PoseMetrics) bool
	Bucket  Bucket
	Message string
}

// ClassRules holds the rules and fixed tips of one pose class.
type ClassRules struct {
	Rules []Rule
	Tips  []string
}

// RuleSet is a complete feedback rule table. It is read-only once built.
type RuleSet struct {
	ByClass map[types.PoseClass]ClassRules
	General []Rule
}

// either returns a strength rule and its negated improvement rule.
func either(pred func(types.PoseMetrics) bool, strength, improvement string) []Rule {
	return []Rule{
		{When: pred, Bucket: Strength, Message: strength},
		{When: func(m types.PoseMetrics) bool { return !pred(m) }, Bucket: Improvement, Message: improvement},
	}
}

func concat(groups ...[]Rule) []Rule {
	var out []Rule
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// DefaultRules returns the basketball coaching rule table.
func DefaultRules() RuleSet {
	return RuleSet{
		ByClass: map[types.PoseClass]ClassRules{
			types.PoseShooting: {
				Rules: concat(
					either(func(m types.PoseMetrics) bool { return m.TorsoAngle > -10 && m.TorsoAngle < 10 },
						"Good torso alignment", "Work on keeping torso straight"),
					either(func(m types.PoseMetrics) bool { return m.BalanceRatio > 0.8 && m.BalanceRatio < 1.2 },
						"Good foot positioning", "Adjust foot width for better balance"),
				),
				Tips: []string{
					"Keep your shooting elbow under the ball",
					"Follow through with your wrist snap",
					"Maintain consistent foot positioning",
				},
			},
			types.PoseDefensiveStance: {
				Rules: either(func(m types.PoseMetrics) bool { return m.BalanceRatio > 1.0 },
					"Good wide stance for defense", "Widen your stance for better mobility"),
				Tips: []string{
					"Keep your knees bent and ready to move",
					"Stay low with arms extended",
					"Keep your weight on the balls of your feet",
				},
			},
			types.PoseDribbling: {
				Tips: []string{
					"Keep your head up to see the court",
					"Use fingertips, not palm",
					"Protect the ball with your off hand",
				},
			},
		},
		General: []Rule{
			{
				When:    func(m types.PoseMetrics) bool { return m.BodySymmetry < 0.05 },
				Bucket:  Strength,
				Message: "Excellent body symmetry",
			},
			{
				When:    func(m types.PoseMetrics) bool { return m.BodySymmetry > 0.1 },
				Bucket:  Improvement,
				Message: "Work on balancing both sides of your body",
			},
		},
	}
}

var defaultRules = DefaultRules()

// Synthesize evaluates the rule set for a pose class. Classes without an entry
// only receive the general rules.
func (rs RuleSet) Synthesize(class types.PoseClass, m types.PoseMetrics) types.FeedbackBundle {
	fb := types.FeedbackBundle{
		Strengths:     []string{},
		Improvements:  []string{},
		TechniqueTips: []string{},
	}

	cr := rs.ByClass[class]
	apply := func(rules []Rule) {
		for _, r := range rules {
			if r.When == nil || !r.When(m) {
				continue
			}
			switch r.Bucket {
			case Strength:
				fb.Strengths = append(fb.Strengths, r.Message)
			case Improvement:
				fb.Improvements = append(fb.Improvements, r.Message)
			}
		}
	}

	apply(cr.Rules)
	apply(rs.General)
	fb.TechniqueTips = append(fb.TechniqueTips, cr.Tips...)

	return fb
}

// Synthesize evaluates the default rule table.
func Synthesize(class types.PoseClass, m types.PoseMetrics) types.FeedbackBundle {
	return defaultRules.Synthesize(class, m)
}

// Rating labels a quality score.
func Rating(score float64) string {
	switch {
	case score > 0.8:
		return "Excellent"
	case score > 0.6:
		return "Good"
	default:
		return "Needs Improvement"
	}
}
