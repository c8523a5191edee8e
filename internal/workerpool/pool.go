// Package workerpool is a small fixed-size goroutine pool supervised by a
// gopkg.in/tomb.v2 tomb, draining a buffered task channel. It is adapted
// from the teacher's sibling worker-pool draft (internal/worker.go in the
// retrieved tree), which defined Setup/worker but never the AddTask
// producer side its own net/server.go already called — that half is filled
// in here.
package workerpool

import (
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

// TaskChanSize bounds how many accepted connections can queue before the
// accept loop blocks handing off a new one.
const TaskChanSize = 100

// Work is run by a pool goroutine against one queued task. A non-nil error
// brings that worker down; the pool immediately replaces it as long as the
// tomb is alive.
type Work func(t *tomb.Tomb, task any) error

// Pool is a bounded set of goroutines draining a shared task channel.
type Pool struct {
	n     int
	tasks chan any
}

// New returns a pool sized for n concurrent workers.
func New(n int) *Pool {
	return &Pool{
		n:     n,
		tasks: make(chan any, TaskChanSize),
	}
}

// AddTask enqueues task for the next free worker. It blocks if the task
// channel is full, which back-pressures the accept loop.
func (p *Pool) AddTask(task any) {
	p.tasks <- task
}

// Setup keeps n workers alive under t until the tomb is dying, restarting
// any worker that exits with an error.
func (p *Pool) Setup(t *tomb.Tomb, work Work) {
	log.Info().Int("workers", p.n).Msg("starting worker pool")
	active := 0
	for {
		select {
		case <-t.Dying():
			return
		default:
			if active < p.n {
				t.Go(func() error {
					// The error is already logged by worker; returning it
					// here would kill the whole tomb instead of letting
					// this loop start a replacement.
					_ = p.worker(t, work)
					active--
					return nil
				})
				active++
			}
		}
	}
}

func (p *Pool) worker(t *tomb.Tomb, work Work) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case task := <-p.tasks:
			if err := work(t, task); err != nil {
				log.Error().Err(err).Msg("worker exiting")
				return err
			}
		}
	}
}
