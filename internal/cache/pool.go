package cache

import "sync"

// rebuildPool runs logical-expiry rebuild tasks on a fixed set of workers.
// Tasks beyond queue capacity are rejected rather than spawning goroutines.
type rebuildPool struct {
	tasks chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

func newRebuildPool(workers, queue int) *rebuildPool {
	p := &rebuildPool{tasks: make(chan func(), queue)}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *rebuildPool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		task()
	}
}

// submit enqueues a task, returning false when the queue is full.
func (p *rebuildPool) submit(task func()) bool {
	select {
	case p.tasks <- task:
		return true
	default:
		return false
	}
}

// close stops intake and waits for queued tasks to finish.
func (p *rebuildPool) close() {
	p.once.Do(func() { close(p.tasks) })
	p.wg.Wait()
}
