// Package fanout runs independent units of work concurrently while a
// semaphore caps how many hold an external-resource permit at once.
package fanout

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/firstissue/firstissue/internal/logging"
	"github.com/firstissue/firstissue/internal/semaphore"
	"github.com/firstissue/firstissue/internal/timetrack"
)

var log = logging.Module("fanout")

// Run invokes fn once per input, all concurrently, with each invocation
// holding a permit from sem for its duration. Results are returned in input
// order. If any invocation fails, Run returns the first failure after all
// in-flight invocations finish; siblings are not cancelled.
func Run[In, Out any](ctx context.Context, sem *semaphore.Semaphore, inputs []In, fn func(ctx context.Context, input In) (Out, error)) ([]Out, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	timer := timetrack.StartTimer()
	results := make([]Out, len(inputs))

	var eg errgroup.Group

	for i, input := range inputs {
		i, input := i, input
		eg.Go(func() error {
			l, err := sem.Acquire(ctx)
			if err != nil {
				return err
			}
			defer l.Release()

			v, err := fn(ctx, input)
			if err != nil {
				return err
			}

			results[i] = v

			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	log(ctx).Debugf("completed %v operations on %v in %v", len(inputs), sem, timer.Elapsed())

	return results, nil
}
