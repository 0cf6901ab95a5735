package asyncstep

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ContainerPool keeps one container per key, a key standing for an owner and the parameters
// its resource is built with.
type ContainerPool[K comparable, T any] struct {
	name             string
	factory          func(ctx context.Context, key K) (T, error)
	optionDecorators []ContainerOptionPreparer

	mu         sync.Mutex
	containers map[K]*Container[T]
	order      []K
}

func NewContainerPool[K comparable, T any](name string, factory func(ctx context.Context, key K) (T, error), optionDecorators ...ContainerOptionPreparer) (*ContainerPool[K, T], error) {
	if factory == nil {
		return nil, ErrConfiguration.WithMessage(fmt.Sprintf("factory of container pool %q should be defined", name))
	}

	return &ContainerPool[K, T]{
		name:             name,
		factory:          factory,
		optionDecorators: optionDecorators,
		containers:       make(map[K]*Container[T]),
	}, nil
}

// Acquire returns the container of key, creating it on first use.
func (p *ContainerPool[K, T]) Acquire(key K) (*Container[T], error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.containers[key]; ok {
		return c, nil
	}

	c, err := NewContainer(fmt.Sprintf("%s[%v]", p.name, key), func(ctx context.Context) (T, error) {
		return p.factory(ctx, key)
	}, p.optionDecorators...)
	if err != nil {
		return nil, err
	}

	p.containers[key] = c
	p.order = append(p.order, key)
	return c, nil
}

func (p *ContainerPool[K, T]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.containers)
}

// StopAll stops every container, the last acquired first, and joins their errors.
func (p *ContainerPool[K, T]) StopAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for i := len(p.order) - 1; i >= 0; i-- {
		if err := p.containers[p.order[i]].Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
