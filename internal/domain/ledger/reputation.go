package ledger

import (
	"errors"

	"github.com/okian/modelrank/internal/adapters/repository"
	"github.com/okian/modelrank/internal/domain/model"
)

// loadReputation returns the participant's profile, or a fresh one.
func loadReputation(tx repository.Tx, participant string) (model.ReputationProfile, error) {
	r, err := tx.Reputation(participant)
	if errors.Is(err, repository.ErrNotFound) {
		return model.ReputationProfile{Participant: participant}, nil
	}
	return r, err
}
