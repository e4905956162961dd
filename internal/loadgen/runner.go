package loadgen

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/modelrank/internal/domain/types"
	"github.com/okian/modelrank/pkg/logger"
)

// ErrNothingRegistered is returned when no model could be registered.
var ErrNothingRegistered = errors.New("no model was registered")

// Run executes a complete load run against cfg.BaseURL.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logger.Get().Named("loadgen")
	stats := &Stats{StartTime: time.Now()}

	log.Info(ctx, "starting modelrank load run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("participants", cfg.Participants),
		logger.Int("models", cfg.Models),
		logger.Int("evaluations", cfg.Evaluations),
		logger.Int("workers", cfg.Workers),
		logger.Uint64("seed", cfg.Seed))

	c, err := NewClient(cfg.BaseURL, cfg.Secret, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	plan := Generate(cfg)

	// Step 1: Check service health
	if err := c.Get(ctx, "/healthz", nil); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Initialize the platform unless it already is
	if err := c.Post(ctx, "/platform/init", cfg.Owner, nil, nil); err != nil && !hasCode(err, "already_initialized") {
		return nil, fmt.Errorf("platform init failed: %w", err)
	}

	// Step 3: Fund participants
	if err := fund(ctx, c, cfg, plan, stats); err != nil {
		return nil, err
	}

	// Step 4: Register models concurrently
	ids, err := register(ctx, c, cfg, plan, stats)
	if err != nil {
		return nil, err
	}

	// Step 5: Submit evaluations concurrently
	if err := evaluate(ctx, c, cfg, plan, ids, stats); err != nil {
		return nil, err
	}

	// Step 6: Verify leaderboards
	if err := verifyResults(ctx, c, stats); err != nil {
		return stats, fmt.Errorf("result verification failed: %w", err)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)
	return stats, nil
}

func fund(ctx context.Context, c *Client, cfg *Config, plan Plan, stats *Stats) error {
	var funded atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for _, p := range plan.Participants {
		g.Go(func() error {
			err := c.Post(gctx, "/dev/faucet", p, nil, nil)
			switch {
			case err == nil:
				funded.Add(1)
				return nil
			case hasCode(err, "faucet_disabled"):
				// Balances then come from genesis configuration.
				return nil
			default:
				return fmt.Errorf("fund %s: %w", p, err)
			}
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	stats.Funded = int(funded.Load())
	if stats.Funded == 0 {
		logger.Get().Warn(ctx, "faucet disabled, relying on genesis balances")
	}
	return nil
}

// register returns the server id of each planned registration, 0 on failure.
func register(ctx context.Context, c *Client, cfg *Config, plan Plan, stats *Stats) ([]uint64, error) {
	ids := make([]uint64, len(plan.Registrations))
	var failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i, reg := range plan.Registrations {
		g.Go(func() error {
			var created types.Created
			err := c.Post(gctx, "/models", reg.Creator, reg.Request, &created)
			switch outcome(err) {
			case outcomeOK:
				ids[i] = created.ID
			case outcomeRejected:
				failed.Add(1)
				if cfg.Verbose {
					logger.Get().Debug(gctx, "registration rejected", logger.String("name", reg.Request.Name), logger.Error(err))
				}
			default:
				return fmt.Errorf("register %s: %w", reg.Request.Name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	stats.RegisterFailed = int(failed.Load())
	stats.Registered = len(ids) - stats.RegisterFailed
	if stats.Registered == 0 {
		return nil, ErrNothingRegistered
	}
	return ids, nil
}

func evaluate(ctx context.Context, c *Client, cfg *Config, plan Plan, ids []uint64, stats *Stats) error {
	var ok, rejected, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for _, v := range plan.Votes {
		id := ids[v.Model]
		if id == 0 {
			continue
		}
		g.Go(func() error {
			body := types.EvaluationRequest{Score: &v.Score}
			err := c.Post(gctx, fmt.Sprintf("/models/%d/evaluations", id), v.Evaluator, body, nil)
			switch outcome(err) {
			case outcomeOK:
				ok.Add(1)
			case outcomeRejected:
				rejected.Add(1)
			default:
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	stats.Evaluated = int(ok.Load())
	stats.EvaluationRejected = int(rejected.Load())
	stats.EvaluationFailed = int(failed.Load())
	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

// outcome classifies a request error: API errors are rejections, anything
// else is a transport failure.
func outcome(err error) string {
	var apiErr *APIError
	switch {
	case err == nil:
		return outcomeOK
	case errors.As(err, &apiErr) && apiErr.Status < 500:
		return outcomeRejected
	default:
		return outcomeFailed
	}
}

func hasCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var perSecond float64
	if stats.Duration > 0 {
		perSecond = float64(stats.Registered+stats.Evaluated) / stats.Duration.Seconds()
	}
	logger.Get().Info(ctx, "final statistics",
		logger.Int("funded", stats.Funded),
		logger.Int("registered", stats.Registered),
		logger.Int("registerFailed", stats.RegisterFailed),
		logger.Int("evaluated", stats.Evaluated),
		logger.Int("evaluationRejected", stats.EvaluationRejected),
		logger.Int("evaluationFailed", stats.EvaluationFailed),
		logger.Int("boardsVerified", stats.BoardsVerified),
		logger.Int("leaderboardEntries", stats.LeaderboardEntries),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("writesPerSecond", perSecond))
}
