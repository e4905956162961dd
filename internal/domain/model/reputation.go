package model

// Reputation awards. Points only ever increase.
const (
	RegistrationPoints = 5
	EvaluationPoints   = 1
)

// ReputationProfile is a participant's accumulated activity.
type ReputationProfile struct {
	Participant          string `json:"participant"`
	Points               uint64 `json:"points"`
	EvaluationsSubmitted uint64 `json:"evaluations_submitted"`
	ModelsContributed    uint64 `json:"models_contributed"`
	// QualityScoreAverage is reserved; no rule produces it yet.
	QualityScoreAverage uint64 `json:"quality_score_average"`
	FirstActivity       uint64 `json:"first_activity"`
	// HasActivity guards FirstActivity, which may legitimately be height 0.
	HasActivity bool `json:"has_activity"`
}

// AwardRegistration credits a model registration at height.
func (p *ReputationProfile) AwardRegistration(height uint64) {
	p.Points += RegistrationPoints
	p.ModelsContributed++
	p.touch(height)
}

// AwardEvaluation credits an evaluation submission at height.
func (p *ReputationProfile) AwardEvaluation(height uint64) {
	p.Points += EvaluationPoints
	p.EvaluationsSubmitted++
	p.touch(height)
}

func (p *ReputationProfile) touch(height uint64) {
	if !p.HasActivity {
		p.FirstActivity = height
		p.HasActivity = true
	}
}
