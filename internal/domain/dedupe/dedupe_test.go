package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/modelrank/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	Convey("Given a new InMemoryDeduper", t, func() {
		ctx := context.Background()

		Convey("When a key is recorded", func() {
			d := dedupe.NewInMemoryDeduper()
			seen := d.SeenAndRecord(ctx, "k-1")

			Convey("Then it is claimed once", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
				So(d.SeenAndRecord(ctx, "k-1"), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("Then releasing it allows a retry", func() {
				d.Unrecord(ctx, "k-1")
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(ctx, "k-1"), ShouldBeFalse)
			})

			Convey("Then releasing an unknown key is a no-op", func() {
				d.Unrecord(ctx, "missing")
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When the bound is reached", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
			for _, k := range []string{"a", "b", "c", "d"} {
				So(d.SeenAndRecord(ctx, k), ShouldBeFalse)
			}

			Convey("Then the oldest key is evicted", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "d"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "c"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "a"), ShouldBeFalse)
			})
		})

		Convey("When keys outlive the ttl", func() {
			now := time.Unix(1_700_000_000, 0)
			d := dedupe.NewInMemoryDeduper(
				dedupe.WithTTL(time.Minute),
				dedupe.WithNow(func() time.Time { return now }),
			)
			d.SeenAndRecord(ctx, "old")
			now = now.Add(30 * time.Second)
			d.SeenAndRecord(ctx, "young")
			now = now.Add(45 * time.Second)

			Convey("Then they are forgotten and younger keys are kept", func() {
				So(d.SeenAndRecord(ctx, "old"), ShouldBeFalse)
				So(d.SeenAndRecord(ctx, "young"), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 2)
			})
		})

		Convey("When unbounded", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0), dedupe.WithTTL(0))
			for i := 0; i < 1000; i++ {
				d.SeenAndRecord(ctx, fmt.Sprintf("k-%d", i))
			}
			So(d.Size(), ShouldEqual, 1000)
		})
	})
}

func TestKeyScoping(t *testing.T) {
	Convey("Keys are scoped by caller and route", t, func() {
		So(dedupe.Key("alice", "POST", "/models", "x"), ShouldNotEqual, dedupe.Key("bob", "POST", "/models", "x"))
		So(dedupe.Key("alice", "POST", "/models", "x"), ShouldNotEqual, dedupe.Key("alice", "POST", "/models/1/withdraw", "x"))
		So(dedupe.Key("alice", "POST", "/models", "x"), ShouldEqual, dedupe.Key("alice", "POST", "/models", "x"))
	})
}

func TestDedupeConcurrency(t *testing.T) {
	Convey("Given many goroutines racing on the same keys", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
		const workers = 10
		const keys = 100

		var wg sync.WaitGroup
		var mu sync.Mutex
		claimed := 0
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for k := 0; k < keys; k++ {
					if !d.SeenAndRecord(context.Background(), fmt.Sprintf("k-%d", k)) {
						mu.Lock()
						claimed++
						mu.Unlock()
					}
				}
			}()
		}
		wg.Wait()

		Convey("Then each key is claimed exactly once", func() {
			So(claimed, ShouldEqual, keys)
			So(d.Size(), ShouldEqual, keys)
		})
	})
}
