package ledger_test

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/modelrank/internal/adapters/clock"
	"github.com/okian/modelrank/internal/adapters/escrow"
	"github.com/okian/modelrank/internal/adapters/repository"
	"github.com/okian/modelrank/internal/domain/ledger"
	"github.com/okian/modelrank/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var errBankDown = errors.New("bank unavailable")

// flakyBank fails every Transfer once armed.
type flakyBank struct {
	*escrow.Bank
	fail bool
}

func (b *flakyBank) Transfer(ctx context.Context, from, to string, amount uint64) error {
	if b.fail {
		return errBankDown
	}
	return b.Bank.Transfer(ctx, from, to, amount)
}

var errCommit = errors.New("commit failed")

// failingCommitStore runs fn and then discards its writes with errCommit.
type failingCommitStore struct {
	repository.Store
	fail bool
}

func (s *failingCommitStore) Update(ctx context.Context, fn func(tx repository.Tx) error) error {
	return s.Store.Update(ctx, func(tx repository.Tx) error {
		if err := fn(tx); err != nil {
			return err
		}
		if s.fail {
			return errCommit
		}
		return nil
	})
}

func TestFailedTransferLeavesNoState(t *testing.T) {
	Convey("Given a ledger whose bank refuses transfers", t, func() {
		ctx := context.Background()
		bank := &flakyBank{Bank: escrow.NewBank(escrow.WithGenesis(map[string]uint64{alice: 5000}))}
		l, err := ledger.New(repository.NewMemoryStore(), clock.NewManual(1), bank, ledger.WithOwner(owner))
		So(err, ShouldBeNil)
		So(l.InitializePlatform(ctx, owner), ShouldBeNil)
		bank.fail = true

		_, err = l.RegisterModel(ctx, alice, ledger.RegisterRequest{
			Name: "Demo", Description: "d", Category: "computer-vision", ContentHash: hash,
		})
		So(errors.Is(err, errBankDown), ShouldBeTrue)
		So(ledger.KindOf(err), ShouldEqual, ledger.KindUnknown)

		stats, _ := l.GetPlatformStats(ctx)
		So(stats.TotalModels, ShouldEqual, 0)
		So(stats.NextModelID, ShouldEqual, 1)
		_, err = l.GetModel(ctx, 1)
		So(errors.Is(err, ledger.ErrModelNotFound), ShouldBeTrue)
		rep, _ := l.GetReputation(ctx, alice)
		So(rep.Points, ShouldEqual, 0)
		board, _ := l.GetLeaderboard(ctx, "computer-vision")
		So(board.TotalModels, ShouldEqual, 0)
	})
}

func TestCommitFailureIsCompensated(t *testing.T) {
	Convey("Given a store that fails after the transfer went through", t, func() {
		ctx := context.Background()
		store := &failingCommitStore{Store: repository.NewMemoryStore()}
		bank := escrow.NewBank(escrow.WithGenesis(map[string]uint64{alice: 5000}))
		c := clock.NewManual(1)
		l, err := ledger.New(store, c, bank, ledger.WithOwner(owner))
		So(err, ShouldBeNil)
		So(l.InitializePlatform(ctx, owner), ShouldBeNil)

		Convey("A failed registration returns the stake", func() {
			store.fail = true
			_, err := l.RegisterModel(ctx, alice, ledger.RegisterRequest{
				Name: "Demo", Description: "d", Category: "computer-vision", ContentHash: hash,
			})
			So(errors.Is(err, errCommit), ShouldBeTrue)

			a, _ := bank.Balance(ctx, alice)
			e, _ := bank.Balance(ctx, "escrow")
			So(a, ShouldEqual, 5000)
			So(e, ShouldEqual, 0)
		})

		Convey("A failed withdrawal puts the refund back in escrow", func() {
			id, err := l.RegisterModel(ctx, alice, ledger.RegisterRequest{
				Name: "Demo", Description: "d", Category: "computer-vision", ContentHash: hash,
			})
			So(err, ShouldBeNil)
			c.Set(500)
			store.fail = true

			err = l.WithdrawModelStake(ctx, alice, id)
			So(errors.Is(err, errCommit), ShouldBeTrue)

			a, _ := bank.Balance(ctx, alice)
			e, _ := bank.Balance(ctx, "escrow")
			So(a, ShouldEqual, 4000)
			So(e, ShouldEqual, 1000)

			m, _ := l.GetModel(ctx, id)
			So(m.Active, ShouldBeTrue)
			So(m.StakeWithdrawn, ShouldBeFalse)
		})
	})
}

func TestChangeHook(t *testing.T) {
	Convey("Given a ledger with a change hook", t, func() {
		ctx := context.Background()
		var seen []model.Model
		hook := func(_ context.Context, m model.Model) { seen = append(seen, m) }
		bank := escrow.NewBank(escrow.WithGenesis(map[string]uint64{alice: 5000}))
		l, err := ledger.New(repository.NewMemoryStore(), clock.NewManual(1), bank,
			ledger.WithOwner(owner), ledger.WithChangeHook(hook))
		So(err, ShouldBeNil)
		So(l.InitializePlatform(ctx, owner), ShouldBeNil)

		id, err := l.RegisterModel(ctx, alice, ledger.RegisterRequest{
			Name: "Demo", Description: "d", Category: "computer-vision", ContentHash: hash,
		})
		So(err, ShouldBeNil)
		So(l.SubmitEvaluation(ctx, bob, id, 6, nil), ShouldBeNil)
		So(l.SubmitEvaluation(ctx, bob, id, 6, nil), ShouldNotBeNil)
		So(l.DeactivateModel(ctx, owner, id), ShouldBeNil)
		So(l.DeactivateModel(ctx, owner, id), ShouldBeNil)

		So(seen, ShouldHaveLength, 3)
		So(seen[0].VoteCount, ShouldEqual, 0)
		So(seen[1].AverageRating, ShouldEqual, 6)
		So(seen[2].Active, ShouldBeFalse)
	})
}

func TestBadgerBackedLedger(t *testing.T) {
	Convey("Given a ledger on an in-memory badger store", t, func() {
		store, err := repository.NewBadgerStore("", repository.WithInMemory())
		So(err, ShouldBeNil)
		Reset(func() { _ = store.Close() })

		f := newFixture(store)
		So(f.ledger.InitializePlatform(f.ctx, owner), ShouldBeNil)

		first := f.register(alice, "Demo", "computer-vision")
		second := f.register(bob, "Demo", "computer-vision")
		So(first, ShouldEqual, 1)
		So(second, ShouldEqual, 2)

		So(f.ledger.SubmitEvaluation(f.ctx, carol, second, 8, strptr("nice")), ShouldBeNil)
		err = f.ledger.SubmitEvaluation(f.ctx, carol, second, 8, nil)
		So(errors.Is(err, ledger.ErrDuplicateVote), ShouldBeTrue)

		board, err := f.ledger.GetLeaderboard(f.ctx, "computer-vision")
		So(err, ShouldBeNil)
		So(board.Ranked, ShouldResemble, []uint64{second, first})
		So(board.TotalModels, ShouldEqual, 2)

		f.clock.Set(111)
		So(f.ledger.WithdrawModelStake(f.ctx, alice, first), ShouldBeNil)
		So(f.ledger.WithdrawModelStake(f.ctx, alice, first), ShouldNotBeNil)

		stats, err := f.ledger.GetPlatformStats(f.ctx)
		So(err, ShouldBeNil)
		So(stats.TotalModels, ShouldEqual, 2)
		So(stats.ActiveModels, ShouldEqual, 1)
		So(stats.TotalEvaluations, ShouldEqual, 1)
		So(stats.TotalStaked, ShouldEqual, 1000)

		e, err := f.ledger.GetEvaluation(f.ctx, carol, second)
		So(err, ShouldBeNil)
		So(*e.Comment, ShouldEqual, "nice")

		listed, err := f.ledger.ListModelsInCategory(f.ctx, "computer-vision")
		So(err, ShouldBeNil)
		So(listed, ShouldHaveLength, 2)
		So(listed[0].Active, ShouldBeFalse)
	})
}
