package transport

import "sync"

// Scheduler runs transport work one task at a time.
//
// Tasks run in the order they were posted. A task posted while another is
// running goes to the back of the queue, so it runs after every task that
// was already waiting; the transport relies on this to coalesce sends.
type Scheduler interface {
	// Post queues task without blocking. Tasks posted after Stop are dropped.
	Post(task func())

	// Start begins running queued tasks.
	Start()

	// Stop stops accepting tasks. Tasks already queued still run.
	Stop()
}

// Loop is the default Scheduler: an unbounded FIFO queue drained by a
// single goroutine.
type Loop struct {
	logger Logger

	mu      sync.Mutex
	queue   []func()
	stopped bool

	wake      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
}

// NewLoop creates a stopped Loop. Call Start to begin processing.
func NewLoop(logger Logger) *Loop {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Loop{
		logger: logger,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Post queues task.
func (l *Loop) Post(task func()) {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, task)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Start launches the loop goroutine. Later calls are no-ops.
func (l *Loop) Start() {
	l.startOnce.Do(func() {
		go l.run()
	})
}

// Stop closes the loop for new tasks and ends the goroutine once the
// queue is drained.
func (l *Loop) Stop() {
	l.mu.Lock()
	l.stopped = true
	l.mu.Unlock()

	l.stopOnce.Do(func() {
		close(l.done)
	})
}

func (l *Loop) run() {
	for {
		l.drain()

		select {
		case <-l.wake:
		case <-l.done:
			l.drain()
			return
		}
	}
}

// drain runs queued tasks until the queue is empty.
func (l *Loop) drain() {
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return
		}
		task := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		l.runTask(task)
	}
}

// runTask executes task with panic recovery so one faulty event handler
// cannot stop the transport.
func (l *Loop) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("transport task panic recovered", "panic", r)
		}
	}()
	task()
}
