package worker

import (
	"context"
	"errors"
	"hash/fnv"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
)

type Task func(ctx context.Context) error

// KeyedDispatcher fans tasks out over a fixed set of workers, choosing the
// worker by hashing the task's key. Tasks sharing a key run on the same
// worker and therefore in submission order; different keys interleave
// freely. That gives per-user FIFO handling without any global lock.
type KeyedDispatcher struct {
	wg     sync.WaitGroup
	queues []chan Task
	quit   chan struct{}
	n      int
	log    *zerolog.Logger
}

func NewKeyedDispatcher(workers int, logger *zerolog.Logger) *KeyedDispatcher {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	queues := make([]chan Task, workers)
	for i := range queues {
		queues[i] = make(chan Task, 64)
	}
	l := logger.With().Str("component", "KeyedDispatcher").Logger()
	return &KeyedDispatcher{queues: queues, quit: make(chan struct{}), n: workers, log: &l}
}

func (d *KeyedDispatcher) Start(ctx context.Context) {
	for i := 0; i < d.n; i++ {
		d.wg.Add(1)
		go func(id int) {
			defer d.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-d.quit:
					return
				case task := <-d.queues[id]:
					if task == nil {
						continue
					}
					if err := task(ctx); err != nil {
						d.log.Error().Err(err).Int("worker", id).Msg("task error")
					}
				}
			}
		}(i)
	}
}

func (d *KeyedDispatcher) Stop() {
	close(d.quit)
	d.wg.Wait()
}

// Submit enqueues the task on the worker owning key. Returns an error when
// that worker's queue is saturated; callers drop the message rather than
// block other users.
func (d *KeyedDispatcher) Submit(key string, task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	select {
	case d.queues[d.index(key)] <- task:
		return nil
	default:
		return errors.New("worker queue full")
	}
}

func (d *KeyedDispatcher) index(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(d.n))
}
