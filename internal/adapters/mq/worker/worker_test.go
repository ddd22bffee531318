package worker_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	worker "github.com/dazdaz/chirp-demo-enhanced/internal/adapters/mq/worker"
	logging "github.com/dazdaz/chirp-demo-enhanced/pkg/logger"
)

func TestPool(t *testing.T) {
	convey.Convey("Given a started pool", t, func() {
		ctx := context.Background()
		pool := worker.NewPool(3, worker.WithName("test"), worker.WithBacklog(4), worker.WithLogger(logging.Nop()))
		pool.Start(ctx)

		convey.So(pool.Size(), convey.ShouldEqual, 3)

		convey.Convey("When jobs are submitted", func() {
			var ran atomic.Int64
			for i := 0; i < 20; i++ {
				err := pool.Submit(ctx, worker.Job{Name: "count", Run: func(context.Context) error {
					ran.Add(1)
					return nil
				}})
				convey.So(err, convey.ShouldBeNil)
			}
			convey.So(pool.Shutdown(ctx), convey.ShouldBeNil)

			convey.Convey("Then every job runs before shutdown returns", func() {
				convey.So(ran.Load(), convey.ShouldEqual, 20)
				done, failed := pool.Stats()
				convey.So(done, convey.ShouldEqual, 20)
				convey.So(failed, convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When a job fails", func() {
			convey.So(pool.Submit(ctx, worker.Job{Name: "fail", Run: func(context.Context) error {
				return errors.New("boom")
			}}), convey.ShouldBeNil)
			convey.So(pool.Shutdown(ctx), convey.ShouldBeNil)

			convey.Convey("Then it is counted as a failure", func() {
				done, failed := pool.Stats()
				convey.So(done, convey.ShouldEqual, 1)
				convey.So(failed, convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When jobs run concurrently", func() {
			var mu sync.Mutex
			var peak, current int
			release := make(chan struct{})
			for i := 0; i < 3; i++ {
				convey.So(pool.Submit(ctx, worker.Job{Name: "block", Run: func(context.Context) error {
					mu.Lock()
					current++
					if current > peak {
						peak = current
					}
					mu.Unlock()
					<-release
					mu.Lock()
					current--
					mu.Unlock()
					return nil
				}}), convey.ShouldBeNil)
			}

			deadline := time.Now().Add(2 * time.Second)
			for time.Now().Before(deadline) {
				mu.Lock()
				p := peak
				mu.Unlock()
				if p == 3 {
					break
				}
				time.Sleep(5 * time.Millisecond)
			}
			close(release)
			convey.So(pool.Shutdown(ctx), convey.ShouldBeNil)

			convey.Convey("Then all workers are used", func() {
				convey.So(peak, convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When submitting after shutdown", func() {
			convey.So(pool.Shutdown(ctx), convey.ShouldBeNil)
			err := pool.Submit(ctx, worker.Job{Name: "late", Run: func(context.Context) error { return nil }})

			convey.Convey("Then ErrStopped is returned", func() {
				convey.So(errors.Is(err, worker.ErrStopped), convey.ShouldBeTrue)
			})

			convey.Convey("Then a second shutdown is a no-op", func() {
				convey.So(pool.Shutdown(ctx), convey.ShouldBeNil)
			})
		})

		convey.Convey("When a job has no Run func", func() {
			err := pool.Submit(ctx, worker.Job{Name: "empty"})
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(pool.Shutdown(ctx), convey.ShouldBeNil)
		})
	})

	convey.Convey("Given a pool that was never started", t, func() {
		pool := worker.NewPool(0, worker.WithLogger(logging.Nop()))

		convey.Convey("Then the size defaults to a CPU multiple", func() {
			convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
		})

		convey.Convey("Then shutdown returns immediately", func() {
			convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)
		})
	})

	convey.Convey("Given a full backlog", t, func() {
		pool := worker.NewPool(1, worker.WithBacklog(1), worker.WithLogger(logging.Nop()))
		noop := worker.Job{Name: "noop", Run: func(context.Context) error { return nil }}
		convey.So(pool.Submit(context.Background(), noop), convey.ShouldBeNil)

		convey.Convey("When the submit context expires", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()
			err := pool.Submit(ctx, noop)

			convey.Convey("Then the context error is returned", func() {
				convey.So(errors.Is(err, context.DeadlineExceeded), convey.ShouldBeTrue)
			})
		})
		convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)
	})
}
