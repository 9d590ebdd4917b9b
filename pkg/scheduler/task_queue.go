package scheduler

import "sync"

// Task is a unit of deferred work.
type Task func()

// taskQueue holds tasks in one FIFO lane per priority. Pushes may come from
// any goroutine.
type taskQueue struct {
	mu    sync.Mutex
	lanes [numPriorities][]Task
	count int
}

func (q *taskQueue) push(p Priority, task Task) {
	if task == nil {
		return
	}
	if p < PriorityIdle {
		p = PriorityIdle
	}
	if p > PriorityUserInput {
		p = PriorityUserInput
	}
	q.mu.Lock()
	q.lanes[p] = append(q.lanes[p], task)
	q.count++
	q.mu.Unlock()
}

// pop returns the next task at or above the minimum priority, highest lane
// first.
func (q *taskQueue) pop(min Priority) (Task, Priority, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for p := PriorityUserInput; p >= min; p-- {
		lane := q.lanes[p]
		if len(lane) == 0 {
			continue
		}
		task := lane[0]
		q.lanes[p] = lane[1:]
		q.count--
		return task, p, true
	}
	return nil, 0, false
}

func (q *taskQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}
