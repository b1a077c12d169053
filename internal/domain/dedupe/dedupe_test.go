package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/pitwall/internal/domain/dedupe"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new InMemoryDeduper", t, func() {
		d := dedupe.NewInMemoryDeduper()

		Convey("When a request id is seen for the first time", func() {
			seen := d.SeenAndRecord(ctx, dedupe.Key("race_1", "req-1"))

			Convey("Then it is recorded", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When the same request id is replayed", func() {
			d.SeenAndRecord(ctx, dedupe.Key("race_1", "req-1"))
			seen := d.SeenAndRecord(ctx, dedupe.Key("race_1", "req-1"))

			Convey("Then it is reported as a duplicate", func() {
				So(seen, ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When the same request id targets another session", func() {
			d.SeenAndRecord(ctx, dedupe.Key("race_1", "req-1"))
			seen := d.SeenAndRecord(ctx, dedupe.Key("race_2", "req-1"))

			Convey("Then keys are scoped per session", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 2)
			})
		})

		Convey("When a recorded id is released after a failure", func() {
			key := dedupe.Key("race_1", "req-1")
			d.SeenAndRecord(ctx, key)
			d.Unrecord(ctx, key)

			Convey("Then the retry is accepted", func() {
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(ctx, key), ShouldBeFalse)
			})
		})

		Convey("When releasing an unknown id", func() {
			d.Unrecord(ctx, "nope")

			Convey("Then nothing changes", func() {
				So(d.Size(), ShouldEqual, 0)
			})
		})
	})

	Convey("Given a bounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
		for i := 1; i <= 4; i++ {
			d.SeenAndRecord(ctx, fmt.Sprintf("k%d", i))
		}

		Convey("Then the oldest key is evicted first", func() {
			So(d.Size(), ShouldEqual, 3)
			So(d.SeenAndRecord(ctx, "k4"), ShouldBeTrue)
			So(d.SeenAndRecord(ctx, "k2"), ShouldBeTrue)
			So(d.SeenAndRecord(ctx, "k1"), ShouldBeFalse)
		})
	})

	Convey("Given an unbounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
		for i := 0; i < 1000; i++ {
			d.SeenAndRecord(ctx, fmt.Sprintf("k%d", i))
		}

		Convey("Then nothing is evicted", func() {
			So(d.Size(), ShouldEqual, 1000)
			So(d.SeenAndRecord(ctx, "k0"), ShouldBeTrue)
		})
	})
}

func TestInMemoryDeduperConcurrency(t *testing.T) {
	d := dedupe.NewInMemoryDeduper()
	var fresh atomic.Int64
	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				if !d.SeenAndRecord(context.Background(), fmt.Sprintf("req-%d", i)) {
					fresh.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	if fresh.Load() != 100 {
		t.Fatalf("expected exactly 100 first-time ids, got %d", fresh.Load())
	}
}
