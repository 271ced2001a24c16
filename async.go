package sibila

import (
	"context"

	"github.com/jndiogo/sibila-go/utils/stream"
)

// AsyncGen is the single-future handle returned by RunAsync: exactly one
// result (or one error) becomes available once the background call
// completes.
type AsyncGen struct {
	inner *stream.Stream[*GenResult]
}

// Next blocks until the result is ready. It returns true exactly once, with
// Result() holding the completed GenResult; it returns false if Run failed,
// in which case Err reports why.
func (a *AsyncGen) Next() bool { return a.inner.Next() }

// Result returns the completed GenResult after Next has returned true.
func (a *AsyncGen) Result() *GenResult { return a.inner.Current() }

// Err reports why Next returned false, or nil if Run hasn't failed.
func (a *AsyncGen) Err() error { return a.inner.Err() }

// RunAsync runs Run in a background goroutine and returns immediately with
// a handle to its eventual result.
func RunAsync(ctx context.Context, deps Deps, thread Thread, gc GenConf) *AsyncGen {
	resultC := make(chan *GenResult, 1)
	errC := make(chan error, 1)

	go func() {
		result, err := Run(ctx, deps, thread, gc)
		if err != nil {
			errC <- err
			close(resultC)
			return
		}
		resultC <- result
		close(resultC)
	}()

	return &AsyncGen{inner: stream.New(resultC, errC)}
}
