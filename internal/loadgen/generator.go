package loadgen

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand/v2"

	"github.com/okian/modelrank/internal/domain/category"
	"github.com/okian/modelrank/internal/domain/types"
)

// Generate builds a deterministic plan from cfg.Seed. Evaluators never rate
// their own model, and a participant may rate the same model more than once
// so that the server's duplicate guard is exercised.
func Generate(cfg *Config) Plan {
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	cats := category.All()

	plan := Plan{
		Participants:  make([]string, cfg.Participants),
		Registrations: make([]Registration, cfg.Models),
		Votes:         make([]Vote, 0, cfg.Evaluations),
	}
	for i := range plan.Participants {
		plan.Participants[i] = fmt.Sprintf("participant-%03d", i)
	}

	for i := range plan.Registrations {
		name := fmt.Sprintf("model-%04d", i)
		plan.Registrations[i] = Registration{
			Creator: plan.Participants[rng.IntN(cfg.Participants)],
			Request: types.RegisterModelRequest{
				Name:        name,
				Description: "load generated " + name,
				Category:    cats[rng.IntN(len(cats))].String(),
				ContentHash: contentHash(cfg.Seed, name),
			},
		}
	}

	for len(plan.Votes) < cfg.Evaluations {
		m := rng.IntN(cfg.Models)
		evaluator := plan.Participants[rng.IntN(cfg.Participants)]
		if evaluator == plan.Registrations[m].Creator {
			continue
		}
		plan.Votes = append(plan.Votes, Vote{
			Evaluator: evaluator,
			Model:     m,
			Score:     1 + rng.IntN(maxScore),
		})
	}
	return plan
}

func contentHash(seed uint64, name string) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%d/%s", seed, name))
	return hex.EncodeToString(sum[:hashBytes])
}
