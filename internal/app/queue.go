package app

import "sync"

// sessionQueue runs blocking hardware calls one at a time, in submission
// order, on its own goroutine. push never blocks.
type sessionQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	jobs    []func()
	stopped bool
	done    chan struct{}
}

func newSessionQueue() *sessionQueue {
	q := &sessionQueue{done: make(chan struct{})}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *sessionQueue) push(job func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return
	}
	q.jobs = append(q.jobs, job)
	q.cond.Signal()
}

func (q *sessionQueue) run() {
	defer close(q.done)

	for {
		q.mu.Lock()
		for len(q.jobs) == 0 && !q.stopped {
			q.cond.Wait()
		}
		if q.stopped {
			q.mu.Unlock()
			return
		}
		job := q.jobs[0]
		q.jobs = q.jobs[1:]
		q.mu.Unlock()

		job()
	}
}

// stop drops pending jobs and waits for the running one to finish.
func (q *sessionQueue) stop() {
	q.mu.Lock()
	q.stopped = true
	q.jobs = nil
	q.cond.Broadcast()
	q.mu.Unlock()
	<-q.done
}
