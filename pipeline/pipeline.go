package pipeline

import "context"

// Iterator yields values one at a time. Next returns ok=false once the
// stream is exhausted; after an error the iterator should not be used
// again except to Close it.
type Iterator[T any] interface {
	Next(ctx context.Context) (T, bool, error)
	Close() error
}

// Pipeline is a lazy stream description. open is called once per run.
type Pipeline[T any] struct {
	open func(ctx context.Context) Iterator[T]
}

// From wraps an existing iterator. The result can run only once because
// the iterator cannot be rewound.
func From[T any](iter Iterator[T]) *Pipeline[T] {
	return &Pipeline[T]{open: func(context.Context) Iterator[T] { return iter }}
}

// FromSlice streams items. Each run starts again at the first item.
func FromSlice[T any](items []T) *Pipeline[T] {
	return &Pipeline[T]{open: func(context.Context) Iterator[T] { return &sliceIter[T]{items: items} }}
}

// Iter opens the pipeline and hands the iterator to the caller, who must
// Close it.
func (p *Pipeline[T]) Iter(ctx context.Context) Iterator[T] {
	return p.open(ctx)
}

// ForEach pulls every value and passes it to fn. It stops at the first
// error from the stream, from fn or from ctx, and always closes the
// iterator.
func ForEach[T any](ctx context.Context, p *Pipeline[T], fn func(context.Context, T) error) (err error) {
	iter := p.open(ctx)
	defer func() {
		if cerr := iter.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		v, ok, err := iter.Next(ctx)
		if err != nil || !ok {
			return err
		}
		if err := fn(ctx, v); err != nil {
			return err
		}
	}
}

// Collect returns every value of the pipeline. On error it returns the
// values pulled so far.
func Collect[T any](ctx context.Context, p *Pipeline[T]) ([]T, error) {
	var out []T
	err := ForEach(ctx, p, func(_ context.Context, v T) error {
		out = append(out, v)
		return nil
	})
	return out, err
}

type sliceIter[T any] struct {
	items []T
	pos   int
}

func (it *sliceIter[T]) Next(context.Context) (T, bool, error) {
	if it.pos == len(it.items) {
		var zero T
		return zero, false, nil
	}
	it.pos++
	return it.items[it.pos-1], true, nil
}

func (it *sliceIter[T]) Close() error { return nil }
