package escrow_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/okian/modelrank/internal/adapters/escrow"
	. "github.com/smartystreets/goconvey/convey"
)

func TestBank(t *testing.T) {
	Convey("Given a bank seeded with genesis balances", t, func() {
		ctx := context.Background()
		bank := escrow.NewBank(escrow.WithGenesis(map[string]uint64{"alice": 5000, "bob": 10}))

		Convey("When alice transfers to escrow", func() {
			err := bank.Transfer(ctx, "alice", "escrow", 1000)

			Convey("Then both balances move", func() {
				So(err, ShouldBeNil)
				a, _ := bank.Balance(ctx, "alice")
				e, _ := bank.Balance(ctx, "escrow")
				So(a, ShouldEqual, 4000)
				So(e, ShouldEqual, 1000)
			})
		})

		Convey("When bob overdraws", func() {
			err := bank.Transfer(ctx, "bob", "escrow", 11)

			Convey("Then nothing moves", func() {
				So(errors.Is(err, escrow.ErrInsufficientFunds), ShouldBeTrue)
				b, _ := bank.Balance(ctx, "bob")
				e, _ := bank.Balance(ctx, "escrow")
				So(b, ShouldEqual, 10)
				So(e, ShouldEqual, 0)
			})
		})

		Convey("When the request is malformed", func() {
			So(errors.Is(bank.Transfer(ctx, "alice", "escrow", 0), escrow.ErrInvalidAmount), ShouldBeTrue)
			So(errors.Is(bank.Transfer(ctx, "", "escrow", 1), escrow.ErrInvalidAccount), ShouldBeTrue)
			So(errors.Is(bank.Mint(ctx, "", 1), escrow.ErrInvalidAccount), ShouldBeTrue)
		})

		Convey("When minting for a new participant", func() {
			So(bank.Mint(ctx, "carol", 300), ShouldBeNil)
			c, _ := bank.Balance(ctx, "carol")
			So(c, ShouldEqual, 300)
		})

		Convey("When many transfers race", func() {
			var wg sync.WaitGroup
			for i := 0; i < 100; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_ = bank.Transfer(ctx, "alice", "escrow", 100)
				}()
			}
			wg.Wait()

			Convey("Then value is conserved and never overdrawn", func() {
				a, _ := bank.Balance(ctx, "alice")
				e, _ := bank.Balance(ctx, "escrow")
				So(a, ShouldEqual, 0)
				So(e, ShouldEqual, 5000)
			})
		})
	})
}

// mapJournal keeps balances in memory and can be told to fail.
type mapJournal struct {
	saved map[string]uint64
	fail  error
}

func (j *mapJournal) LoadBalances(context.Context) (map[string]uint64, bool, error) {
	if j.saved == nil {
		return nil, false, j.fail
	}
	out := make(map[string]uint64, len(j.saved))
	for who, amount := range j.saved {
		out[who] = amount
	}
	return out, true, j.fail
}

func (j *mapJournal) SaveBalances(_ context.Context, changed map[string]uint64) error {
	if j.fail != nil {
		return j.fail
	}
	if j.saved == nil {
		j.saved = make(map[string]uint64)
	}
	for who, amount := range changed {
		j.saved[who] = amount
	}
	return nil
}

func TestBankJournal(t *testing.T) {
	Convey("Given a journaled bank on its first start", t, func() {
		ctx := context.Background()
		journal := &mapJournal{}
		genesis := map[string]uint64{"alice": 5000}
		bank := escrow.NewBank(escrow.WithGenesis(genesis), escrow.WithJournal(journal))
		So(bank.Restore(ctx), ShouldBeNil)

		Convey("Then genesis is written to the journal", func() {
			So(journal.saved, ShouldResemble, map[string]uint64{"alice": 5000})
		})

		Convey("When value moves and the bank restarts", func() {
			So(bank.Transfer(ctx, "alice", "escrow", 1000), ShouldBeNil)
			So(bank.Mint(ctx, "bob", 7), ShouldBeNil)

			restarted := escrow.NewBank(escrow.WithGenesis(genesis), escrow.WithJournal(journal))
			So(restarted.Restore(ctx), ShouldBeNil)

			Convey("Then journaled balances win over genesis", func() {
				a, _ := restarted.Balance(ctx, "alice")
				e, _ := restarted.Balance(ctx, "escrow")
				b, _ := restarted.Balance(ctx, "bob")
				So(a, ShouldEqual, 4000)
				So(e, ShouldEqual, 1000)
				So(b, ShouldEqual, 7)
			})
		})

		Convey("When the journal rejects a write", func() {
			journal.fail = errors.New("disk full")
			err := bank.Transfer(ctx, "alice", "escrow", 1000)

			Convey("Then the transfer fails and nothing moves", func() {
				So(err, ShouldNotBeNil)
				a, _ := bank.Balance(ctx, "alice")
				e, _ := bank.Balance(ctx, "escrow")
				So(a, ShouldEqual, 5000)
				So(e, ShouldEqual, 0)
			})
		})

		Convey("When an account pays itself", func() {
			So(bank.Transfer(ctx, "alice", "alice", 100), ShouldBeNil)
			a, _ := bank.Balance(ctx, "alice")
			So(a, ShouldEqual, 5000)
			So(errors.Is(bank.Transfer(ctx, "alice", "alice", 9000), escrow.ErrInsufficientFunds), ShouldBeTrue)
		})
	})

	Convey("Given a journal that cannot be read", t, func() {
		bank := escrow.NewBank(escrow.WithJournal(&mapJournal{fail: errors.New("corrupt")}))
		So(bank.Restore(context.Background()), ShouldNotBeNil)
	})
}
