package pipeline

import "context"

// Tap runs fn on every value before passing it on unchanged. An error from
// fn ends the stream.
func Tap[T any](p *Pipeline[T], fn func(context.Context, T) error) *Pipeline[T] {
	return &Pipeline[T]{open: func(ctx context.Context) Iterator[T] {
		return &tapIter[T]{src: p.open(ctx), fn: fn}
	}}
}

type tapIter[T any] struct {
	src Iterator[T]
	fn  func(context.Context, T) error
}

func (it *tapIter[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	v, ok, err := it.src.Next(ctx)
	if err != nil || !ok {
		return zero, false, err
	}
	if err := it.fn(ctx, v); err != nil {
		return zero, false, err
	}
	return v, true, nil
}

func (it *tapIter[T]) Close() error { return it.src.Close() }

// Batch groups values into slices of up to size values; the last slice may
// be shorter. A size below 1 is treated as 1. A stream error is returned
// as soon as it happens and the values of the unfinished batch are
// dropped.
func Batch[T any](p *Pipeline[T], size int) *Pipeline[[]T] {
	size = max(size, 1)
	return &Pipeline[[]T]{open: func(ctx context.Context) Iterator[[]T] {
		return &batchIter[T]{src: p.open(ctx), size: size}
	}}
}

type batchIter[T any] struct {
	src  Iterator[T]
	size int
	done bool
}

func (it *batchIter[T]) Next(ctx context.Context) ([]T, bool, error) {
	if it.done {
		return nil, false, nil
	}
	batch := make([]T, 0, it.size)
	for len(batch) < it.size {
		v, ok, err := it.src.Next(ctx)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			it.done = true
			break
		}
		batch = append(batch, v)
	}
	if len(batch) == 0 {
		return nil, false, nil
	}
	return batch, true, nil
}

func (it *batchIter[T]) Close() error { return it.src.Close() }
