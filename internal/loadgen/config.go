// Package loadgen drives a running modelrank server over HTTP: it funds
// participants, registers models, submits evaluations concurrently and then
// checks the leaderboards it reads back.
package loadgen

import (
	"errors"
	"time"

	"github.com/okian/modelrank/internal/domain/types"
)

// Config holds configuration for a load run.
type Config struct {
	BaseURL      string        // Base URL of the service
	Secret       string        // JWT secret shared with the server
	Owner        string        // Platform owner identity
	Participants int           // Number of distinct participants
	Models       int           // Number of models to register
	Evaluations  int           // Number of evaluations to submit
	Workers      int           // Number of concurrent workers
	Timeout      time.Duration // HTTP request timeout
	Seed         uint64        // Seed for the generated plan
	Verbose      bool          // Log every request outcome
}

// Validation errors for Config.
var (
	ErrNoParticipants = errors.New("at least two participants are required")
	ErrNoModels       = errors.New("at least one model is required")
	ErrNoWorkers      = errors.New("at least one worker is required")
)

// Validate checks the config for values the run cannot work with.
func (c *Config) Validate() error {
	switch {
	case c.Participants < minParticipants:
		return ErrNoParticipants
	case c.Models < 1:
		return ErrNoModels
	case c.Workers < 1:
		return ErrNoWorkers
	}
	return nil
}

// Registration is a planned POST /models.
type Registration struct {
	Creator string
	Request types.RegisterModelRequest
}

// Vote is a planned evaluation against the Model-th registration.
type Vote struct {
	Evaluator string
	Model     int
	Score     int
}

// Plan is the full set of requests a run will send.
type Plan struct {
	Participants  []string
	Registrations []Registration
	Votes         []Vote
}

// Stats holds run statistics.
type Stats struct {
	Funded             int
	Registered         int
	RegisterFailed     int
	Evaluated          int
	EvaluationRejected int
	EvaluationFailed   int
	BoardsVerified     int
	LeaderboardEntries int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
