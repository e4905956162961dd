package loadgen

import "time"

// Run defaults.
const (
	DefaultParticipants = 20
	DefaultModels       = 40
	DefaultEvaluations  = 400
	DefaultTimeout      = 30 * time.Second

	minParticipants = 2
	maxScore        = 10
	hashBytes       = 32
)

// Request outcomes.
const (
	outcomeOK       = "ok"
	outcomeRejected = "rejected"
	outcomeFailed   = "failed"
)
