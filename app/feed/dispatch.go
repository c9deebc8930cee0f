package feed

import "context"

// Dispatch tracks a single page fetch from request to resolution.
type Dispatch struct {
	Generation uint64
	Page       int

	done   chan struct{}
	result PageResult
}

func newDispatch(generation uint64, page int) *Dispatch {
	return &Dispatch{
		Generation: generation,
		Page:       page,
		done:       make(chan struct{}),
	}
}

func (d *Dispatch) Done() <-chan struct{} {
	return d.done
}

// Wait blocks until the fetch resolves or ctx is done.
func (d *Dispatch) Wait(ctx context.Context) (PageResult, error) {
	select {
	case <-d.done:
		return d.result, nil
	case <-ctx.Done():
		return PageResult{}, ctx.Err()
	}
}

func (d *Dispatch) finish(result PageResult) {
	d.result = result
	close(d.done)
}
