package events

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	errspkg "github.com/drblury/shardwire/internal/runtime/errors"
)

// Handler is the callback shape a slot of payload E accepts.
type Handler[E Payload] func(ctx context.Context, evt E) error

// AnyHandler accepts the payload of whatever slot it is wired to. It lets one
// function serve several categories.
type AnyHandler func(ctx context.Context, evt Payload) error

// Slot is one named event on a target. Subscriptions are keyed so that the
// same handler subscribed twice is only invoked once.
type Slot interface {
	Category() Category
	// Subscribe adds handler under key. It reports false without error when
	// key is already subscribed.
	Subscribe(key string, handler any) (bool, error)
	Dispatch(ctx context.Context, p Payload) error
	Len() int
	Seal()
}

type subscriber[E Payload] struct {
	key string
	fn  Handler[E]
}

// TypedSlot is the Slot implementation for payload type E.
type TypedSlot[E Payload] struct {
	category Category

	mu          sync.RWMutex
	keys        map[string]struct{}
	subscribers []subscriber[E]
	sealed      bool
}

// NewSlot creates an empty slot for category c.
func NewSlot[E Payload](c Category) *TypedSlot[E] {
	return &TypedSlot[E]{
		category: c,
		keys:     make(map[string]struct{}),
	}
}

func (s *TypedSlot[E]) Category() Category { return s.category }

func (s *TypedSlot[E]) Subscribe(key string, handler any) (bool, error) {
	fn, err := Adapt[E](handler)
	if err != nil {
		return false, fmt.Errorf("%s slot: %w", s.category, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sealed {
		return false, fmt.Errorf("%s slot: %w", s.category, errspkg.ErrTargetStarted)
	}
	if _, ok := s.keys[key]; ok {
		return false, nil
	}
	s.keys[key] = struct{}{}
	s.subscribers = append(s.subscribers, subscriber[E]{key: key, fn: fn})
	return true, nil
}

// Seal rejects further subscriptions. Targets seal their slots when they start.
func (s *TypedSlot[E]) Seal() {
	s.mu.Lock()
	s.sealed = true
	s.mu.Unlock()
}

func (s *TypedSlot[E]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers)
}

func (s *TypedSlot[E]) Dispatch(ctx context.Context, p Payload) error {
	evt, ok := p.(E)
	if !ok {
		return fmt.Errorf("%s slot cannot deliver %T", s.category, p)
	}
	return s.Fire(ctx, evt)
}

// Fire invokes every subscriber in subscription order. A failing handler does
// not stop the others; their errors are joined.
func (s *TypedSlot[E]) Fire(ctx context.Context, evt E) error {
	s.mu.RLock()
	subs := s.subscribers
	s.mu.RUnlock()

	var errs []error
	for _, sub := range subs {
		if err := sub.fn(ctx, evt); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sub.key, err))
		}
	}
	return errors.Join(errs...)
}

var anyHandlerType = reflect.TypeOf(AnyHandler(nil))

// Adapt converts handler into the callback shape for E. It accepts
// func(context.Context, E) error, AnyHandler and any named function type
// convertible to either. Anything else is a signature mismatch.
func Adapt[E Payload](handler any) (Handler[E], error) {
	switch fn := handler.(type) {
	case nil:
		return nil, errspkg.ErrHandlerRequired
	case Handler[E]:
		return fn, nil
	case func(context.Context, E) error:
		return fn, nil
	case AnyHandler:
		return func(ctx context.Context, evt E) error { return fn(ctx, evt) }, nil
	case func(context.Context, Payload) error:
		return func(ctx context.Context, evt E) error { return fn(ctx, evt) }, nil
	}

	v := reflect.ValueOf(handler)
	want := reflect.TypeOf(Handler[E](nil))
	if v.Kind() == reflect.Func {
		switch {
		case v.Type().ConvertibleTo(want):
			return v.Convert(want).Interface().(Handler[E]), nil
		case v.Type().ConvertibleTo(anyHandlerType):
			wide := v.Convert(anyHandlerType).Interface().(AnyHandler)
			return func(ctx context.Context, evt E) error { return wide(ctx, evt) }, nil
		}
	}
	return nil, fmt.Errorf("%w: want func(context.Context, %s) error, got %T",
		errspkg.ErrSignatureMismatch, want.In(1), handler)
}
