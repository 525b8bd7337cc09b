package groupsync

import (
	"sync"

	"github.com/panjf2000/ants/v2"
)

type Options func(opt *Option)

type Option struct {
	limit    int
	preAlloc bool
	panics   func(interface{})
}

// Pool runs submitted tasks on a bounded set of goroutines. Submit blocks
// while every worker is busy.
type Pool struct {
	wg   *sync.WaitGroup
	pool *ants.Pool
}

func NewPool(opt ...Options) (*Pool, error) {
	option := &Option{
		limit: 32,
	}
	for _, fn := range opt {
		fn(option)
	}
	if option.limit <= 0 {
		option.limit = 1
	}

	antsOpts := []ants.Option{ants.WithPreAlloc(option.preAlloc)}
	if option.panics != nil {
		antsOpts = append(antsOpts, ants.WithPanicHandler(option.panics))
	}
	pool, err := ants.NewPool(option.limit, antsOpts...)
	if err != nil {
		return nil, err
	}
	return &Pool{
		wg:   new(sync.WaitGroup),
		pool: pool,
	}, nil
}

// Go submits fn. After Release it returns ants.ErrPoolClosed.
func (p *Pool) Go(fn func()) error {
	p.wg.Add(1)
	err := p.pool.Submit(func() {
		defer p.wg.Done()
		fn()
	})
	if err != nil {
		p.wg.Done()
	}
	return err
}

// Wait blocks until every submitted task returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) Running() int {
	return p.pool.Running()
}

func (p *Pool) Cap() int {
	return p.pool.Cap()
}

func (p *Pool) Release() {
	p.pool.Release()
}

func (p *Pool) IsClosed() bool {
	return p.pool.IsClosed()
}

func WithLimit(limit int) Options {
	return func(opt *Option) {
		opt.limit = limit
	}
}

func WithPreAlloc(preAlloc bool) Options {
	return func(opt *Option) {
		opt.preAlloc = preAlloc
	}
}

// WithPanicHandler keeps a panicking task from taking the process down.
func WithPanicHandler(handler func(interface{})) Options {
	return func(opt *Option) {
		opt.panics = handler
	}
}
