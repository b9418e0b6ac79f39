package worker

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrStopped  = errors.New("worker pool stopped")
	ErrPanicked = errors.New("worker job panicked")
)

type job struct {
	fn   func()
	done chan error
}

type sweep struct {
	interval time.Duration
	fn       func(ctx context.Context)
}

// Pool выполняет задания на фиксированном наборе горутин. Задания с одним ключом
// всегда попадают в один воркер и выполняются строго по очереди.
type Pool struct {
	logger *zap.Logger
	count  int
	queues []chan job
	sweeps []sweep
	wg     sync.WaitGroup
	stop   chan struct{}

	mu      sync.RWMutex
	started bool
	stopped bool
}

func NewPool(logger *zap.Logger, count int) *Pool {
	if count < 1 {
		count = 1
	}
	queues := make([]chan job, count)
	for i := range queues {
		queues[i] = make(chan job, 64)
	}
	return &Pool{
		logger: logger,
		count:  count,
		queues: queues,
		stop:   make(chan struct{}),
	}
}

// Sweep регистрирует периодическую задачу, вызывать до Start
func (p *Pool) Sweep(interval time.Duration, fn func(ctx context.Context)) {
	p.sweeps = append(p.sweeps, sweep{interval: interval, fn: fn})
}

func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	p.logger.Info("Starting worker pool", zap.Int("workers", p.count))

	for i := 0; i < p.count; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	for _, s := range p.sweeps {
		p.wg.Add(1)
		go p.sweeper(ctx, s)
	}

	go func() {
		select {
		case <-ctx.Done():
			p.Stop()
		case <-p.stop:
		}
	}()
}

func (p *Pool) Stop() {
	p.mu.Lock()
	first := !p.stopped
	p.stopped = true
	p.mu.Unlock()

	if first {
		p.logger.Info("Stopping worker pool...")
		close(p.stop)
	}
	p.wg.Wait()
	if first {
		p.logger.Info("Worker pool stopped")
	}
}

// Do выполняет fn в воркере, за которым закреплен key, и ждет завершения.
// Принятое задание выполнится даже при вызове Stop. Паника в fn возвращается как ErrPanicked.
func (p *Pool) Do(ctx context.Context, key string, fn func()) error {
	j := job{fn: fn, done: make(chan error, 1)}

	// RLock держим до постановки в очередь, чтобы Stop не закрыл пул между проверкой и отправкой
	p.mu.RLock()
	if p.stopped || !p.started {
		p.mu.RUnlock()
		return ErrStopped
	}
	select {
	case p.queues[p.shard(key)] <- j:
	case <-ctx.Done():
		p.mu.RUnlock()
		return ctx.Err()
	}
	p.mu.RUnlock()

	return <-j.done
}

func (p *Pool) shard(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(p.count))
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	queue := p.queues[id]
	for {
		select {
		case <-p.stop:
			p.drain(id, queue)
			return
		case j := <-queue:
			p.run(id, j)
		}
	}
}

// drain доделывает то, что уже успели поставить в очередь
func (p *Pool) drain(id int, queue chan job) {
	for {
		select {
		case j := <-queue:
			p.run(id, j)
		default:
			return
		}
	}
}

func (p *Pool) run(id int, j job) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("worker job panicked", zap.Int("worker", id), zap.Any("panic", r))
			err = fmt.Errorf("%w: %v", ErrPanicked, r)
		}
		j.done <- err
	}()
	j.fn()
}

func (p *Pool) sweeper(ctx context.Context, s sweep) {
	defer p.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fn(ctx)
		}
	}
}
