package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/okian/modelrank/internal/adapters/clock"
	"github.com/okian/modelrank/internal/adapters/ranking"
	service "github.com/okian/modelrank/internal/app"
	"github.com/okian/modelrank/internal/domain/ledger"
	"github.com/okian/modelrank/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func register(ctx context.Context, svc *service.Service, caller, name, cat string) uint64 {
	id, err := svc.RegisterModel(ctx, caller, types.RegisterModelRequest{
		Name: name, Description: "integration model", Category: cat, ContentHash: strings.Repeat("f", 64),
	})
	So(err, ShouldBeNil)
	return id
}

func TestServiceIntegration(t *testing.T) {
	Convey("Given a started service with funded participants", t, func() {
		ctx := context.Background()
		c := clock.NewManual(1)
		svc := service.New(
			service.WithClock(c),
			service.WithMinStake(100),
			service.WithGenesisBalances(map[string]uint64{"alice": 1000, "bob": 1000}),
		)
		defer svc.Stop()
		So(svc.Start(ctx), ShouldBeNil)
		So(svc.InitializePlatform(ctx, "admin"), ShouldBeNil)

		vision := register(ctx, svc, "alice", "Vision", "computer-vision")
		speech := register(ctx, svc, "bob", "Speech", "speech-recognition")
		second := register(ctx, svc, "bob", "Vision II", "computer-vision")

		So(svc.SubmitEvaluation(ctx, "carol", second, 9, nil), ShouldBeNil)
		So(svc.SubmitEvaluation(ctx, "carol", speech, 4, nil), ShouldBeNil)

		Convey("Then the category board resolves names in rank order", func() {
			board, err := svc.Leaderboard(ctx, "computer-vision")
			So(err, ShouldBeNil)
			So(board.TotalModels, ShouldEqual, 2)
			So(board.Entries, ShouldHaveLength, 2)
			So(board.Entries[0].ModelID, ShouldEqual, second)
			So(board.Entries[0].Name, ShouldEqual, "Vision II")
			So(board.Entries[1].ModelID, ShouldEqual, vision)
		})

		Convey("Then the global ranking follows the ledger", func() {
			top, err := svc.TopModels(ctx, 10)
			So(err, ShouldBeNil)
			So(top, ShouldHaveLength, 3)
			So(top[0].ModelID, ShouldEqual, second)
			So(top[1].ModelID, ShouldEqual, speech)
			So(top[2].ModelID, ShouldEqual, vision)

			rank, err := svc.ModelRank(ctx, vision)
			So(err, ShouldBeNil)
			So(rank.GlobalRank, ShouldEqual, 3)
			So(rank.CategoryRank, ShouldEqual, 2)
			So(rank.CategorySize, ShouldEqual, 2)
		})

		Convey("Then deactivated models leave the ranking", func() {
			So(svc.DeactivateModel(ctx, "admin", second), ShouldBeNil)

			_, err := svc.ModelRank(ctx, second)
			So(errors.Is(err, ranking.ErrNotFound), ShouldBeTrue)
			_, err = svc.ModelRank(ctx, 99)
			So(errors.Is(err, ledger.ErrModelNotFound), ShouldBeTrue)

			activity, err := svc.IsModelActive(ctx, second)
			So(err, ShouldBeNil)
			So(activity.Active, ShouldBeFalse)
		})

		Convey("Then withdrawals refund the bank balance", func() {
			c.Set(500)
			So(svc.WithdrawModelStake(ctx, "alice", vision), ShouldBeNil)
			balance, err := svc.Balance(ctx, "alice")
			So(err, ShouldBeNil)
			So(balance, ShouldEqual, 1000)

			stake, err := svc.GetStakeBalance(ctx, "alice")
			So(err, ShouldBeNil)
			So(stake.TotalStaked, ShouldEqual, 0)
		})

		Convey("Then weighted scores report the weight", func() {
			ws, err := svc.ComputeWeightedScore(5, 250)
			So(err, ShouldBeNil)
			So(ws.Weight, ShouldEqual, 3)
			So(ws.WeightedScore, ShouldEqual, 15)

			_, err = svc.ComputeWeightedScore(0, 250)
			So(errors.Is(err, ledger.ErrInvalidRating), ShouldBeTrue)
		})
	})
}

func TestServiceRestartRebuildsRanking(t *testing.T) {
	Convey("Given a badger-backed service with data on disk", t, func() {
		ctx := context.Background()
		dir := t.TempDir()
		opts := []service.Option{
			service.WithStore(service.StoreBadger, dir),
			service.WithBadgerTuning(false, 0),
			service.WithClock(clock.NewManual(1)),
			service.WithMinStake(10),
			service.WithGenesisBalances(map[string]uint64{"alice": 100}),
		}

		first := service.New(opts...)
		So(first.Start(ctx), ShouldBeNil)
		So(first.InitializePlatform(ctx, "admin"), ShouldBeNil)
		a := register(ctx, first, "alice", "A", "other-category")
		b := register(ctx, first, "alice", "B", "other-category")
		So(first.SubmitEvaluation(ctx, "bob", b, 10, nil), ShouldBeNil)
		first.Stop()

		Convey("When a new service opens the same directory", func() {
			second := service.New(opts...)
			So(second.Start(ctx), ShouldBeNil)
			defer second.Stop()

			Convey("Then the ledger and the ranking index are restored", func() {
				stats, err := second.GetPlatformStats(ctx)
				So(err, ShouldBeNil)
				So(stats.TotalModels, ShouldEqual, 2)
				So(stats.Initialized, ShouldBeTrue)

				top, err := second.TopModels(ctx, 2)
				So(err, ShouldBeNil)
				So(top[0].ModelID, ShouldEqual, b)
				So(top[1].ModelID, ShouldEqual, a)

				err = second.InitializePlatform(ctx, "admin")
				So(errors.Is(err, ledger.ErrAlreadyInitialized), ShouldBeTrue)
			})
		})
	})
}

func TestServiceRestartKeepsFundsAndHeight(t *testing.T) {
	Convey("Given a badger-backed service where alice staked a model", t, func() {
		ctx := context.Background()
		dir := t.TempDir()
		opts := func(c *clock.Manual) []service.Option {
			return []service.Option{
				service.WithStore(service.StoreBadger, dir),
				service.WithBadgerTuning(false, 0),
				service.WithClock(c),
				service.WithMinStake(1000),
				service.WithGenesisBalances(map[string]uint64{"alice": 10_000}),
			}
		}

		first := service.New(opts(clock.NewManual(300))...)
		So(first.Start(ctx), ShouldBeNil)
		So(first.InitializePlatform(ctx, "admin"), ShouldBeNil)
		id := register(ctx, first, "alice", "Durable", "computer-vision")
		first.Stop()

		Convey("When it restarts with a clock that starts from zero", func() {
			c := clock.NewManual(0)
			second := service.New(opts(c)...)
			So(second.Start(ctx), ShouldBeNil)
			defer second.Stop()

			Convey("Then height resumes from the persisted records", func() {
				m, err := second.GetModel(ctx, id)
				So(err, ShouldBeNil)
				So(second.CurrentHeight(), ShouldBeGreaterThanOrEqualTo, m.RegisteredAt)
			})

			Convey("Then balances are restored instead of re-seeded", func() {
				alice, err := second.Balance(ctx, "alice")
				So(err, ShouldBeNil)
				So(alice, ShouldEqual, 9000)
				escrowed, err := second.Balance(ctx, "escrow")
				So(err, ShouldBeNil)
				So(escrowed, ShouldEqual, 1000)
			})

			Convey("Then the stake can be withdrawn after the lockup", func() {
				err := second.WithdrawModelStake(ctx, "alice", id)
				So(errors.Is(err, ledger.ErrWithdrawalTooEarly), ShouldBeTrue)

				c.Advance(ledger.DefaultLockupPeriod + 1)
				So(second.WithdrawModelStake(ctx, "alice", id), ShouldBeNil)

				alice, _ := second.Balance(ctx, "alice")
				So(alice, ShouldEqual, 10_000)
				escrowed, _ := second.Balance(ctx, "escrow")
				So(escrowed, ShouldEqual, 0)
			})
		})
	})

	Convey("Given a badger-backed service on the default ticker", t, func() {
		ctx := context.Background()
		dir := t.TempDir()
		opts := []service.Option{
			service.WithStore(service.StoreBadger, dir),
			service.WithBadgerTuning(false, 0),
			service.WithBlockInterval(time.Millisecond),
			service.WithMinStake(10),
			service.WithGenesisBalances(map[string]uint64{"alice": 100}),
		}

		first := service.New(opts...)
		So(first.Start(ctx), ShouldBeNil)
		time.Sleep(20 * time.Millisecond)
		So(first.InitializePlatform(ctx, "admin"), ShouldBeNil)
		id := register(ctx, first, "alice", "Ticked", "other-category")
		first.Stop()

		Convey("Then a restarted ticker never reports a lower height", func() {
			second := service.New(opts...)
			So(second.Start(ctx), ShouldBeNil)
			defer second.Stop()

			m, err := second.GetModel(ctx, id)
			So(err, ShouldBeNil)
			So(m.RegisteredAt, ShouldBeGreaterThan, 0)
			So(second.CurrentHeight(), ShouldBeGreaterThanOrEqualTo, m.RegisteredAt)
		})
	})
}
