package main

import (
	"context"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/modelrank/internal/config"
	"github.com/okian/modelrank/internal/loadgen"
)

// Default loadgen constants.
const (
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTestTimeout = 10 * time.Minute
)

func newLoadgenCmd() *cobra.Command {
	lc := &loadgen.Config{}
	cmd := &cobra.Command{
		Use:   "loadgen",
		Short: "Drive a running server with concurrent registrations and evaluations",
		Long: `Funds participants through the dev faucet, registers models and submits
evaluations concurrently, then verifies every category leaderboard.`,
		Example: `  modelrank loadgen --url http://localhost:9080 --models 200 --evaluations 5000`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Context())
			if err != nil {
				return err
			}
			if lc.Secret == "" {
				lc.Secret = cfg.JWTSecret
			}
			if lc.Owner == "" {
				lc.Owner = cfg.Owner
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), defaultTestTimeout)
			defer cancel()
			_, err = loadgen.Run(ctx, lc)
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&lc.BaseURL, "url", "http://localhost:9080", "base URL of the service")
	f.StringVar(&lc.Secret, "secret", "", "JWT secret (default: configured jwt_secret)")
	f.StringVar(&lc.Owner, "owner", "", "platform owner identity (default: configured owner)")
	f.IntVar(&lc.Participants, "participants", loadgen.DefaultParticipants, "number of participants")
	f.IntVar(&lc.Models, "models", loadgen.DefaultModels, "number of models to register")
	f.IntVar(&lc.Evaluations, "evaluations", loadgen.DefaultEvaluations, "number of evaluations to submit")
	f.IntVar(&lc.Workers, "workers", runtime.NumCPU()*defaultWorkers, "number of concurrent workers")
	f.DurationVar(&lc.Timeout, "timeout", loadgen.DefaultTimeout, "HTTP request timeout")
	f.Uint64Var(&lc.Seed, "seed", uint64(time.Now().UnixNano()), "seed for the generated plan")
	f.BoolVar(&lc.Verbose, "verbose", false, "log rejected requests")
	return cmd
}
