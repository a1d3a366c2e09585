package routing

import "sync"

// serialQueue runs jobs with the same key one after another, in
// submission order. Different keys run concurrently.
type serialQueue struct {
	mu    sync.Mutex
	lanes map[string][]func()
	wg    sync.WaitGroup
}

func newSerialQueue() *serialQueue {
	return &serialQueue{lanes: make(map[string][]func())}
}

// Do schedules job on key's lane.
func (q *serialQueue) Do(key string, job func()) {
	q.wg.Add(1)
	q.mu.Lock()
	pending, running := q.lanes[key]
	q.lanes[key] = append(pending, job)
	q.mu.Unlock()
	if !running {
		go q.drain(key)
	}
}

func (q *serialQueue) drain(key string) {
	for {
		q.mu.Lock()
		jobs := q.lanes[key]
		if len(jobs) == 0 {
			delete(q.lanes, key)
			q.mu.Unlock()
			return
		}
		job := jobs[0]
		q.lanes[key] = jobs[1:]
		q.mu.Unlock()

		func() {
			defer q.wg.Done()
			job()
		}()
	}
}

// Wait blocks until every scheduled job has finished.
func (q *serialQueue) Wait() {
	q.wg.Wait()
}
