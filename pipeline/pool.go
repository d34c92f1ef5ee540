package pipeline

import (
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/sirupsen/logrus"
)

// Pool is a fixed set of goroutines executing submitted tasks. It is owned
// by whoever created it and must be shut down explicitly.
type Pool struct {
	tasks  chan func()
	wg     sync.WaitGroup
	once   sync.Once
	logger logrus.FieldLogger
}

// NewPool starts size workers; up to queue submitted tasks wait for a worker
// before Submit blocks.
func NewPool(size, queue int, logger logrus.FieldLogger) *Pool {
	if size < 1 {
		size = 1
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if queue < 0 {
		queue = 0
	}
	p := &Pool{tasks: make(chan func(), queue), logger: logger}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.work()
	}
	return p
}

func (p *Pool) work() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.run(task)
	}
}

// run executes task, logging a panic instead of killing the worker.
func (p *Pool) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.WithField("action", "pool_task").
				WithField("stack", string(debug.Stack())).
				Error(fmt.Sprintf("task panicked: %v", r))
		}
	}()
	task()
}

// Submit queues task, blocking while the queue is full.
func (p *Pool) Submit(task func()) {
	p.tasks <- task
}

// Shutdown stops accepting tasks and waits for running ones.
func (p *Pool) Shutdown() {
	p.once.Do(func() {
		close(p.tasks)
		p.wg.Wait()
	})
}
