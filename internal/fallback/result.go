// Package fallback makes recover-with-a-default pipeline stages explicit.
//
// A stage returns a Result instead of (value, error); the caller decides at
// the call site how a failure is replaced:
//
//	series, degraded := fallback.Try(client.Fetch(ctx, q)).
//		OrElse(func(err error) Series { return mock(q) })
package fallback

// Result is the outcome of a stage that may fail.
type Result[T any] struct {
	value T
	err   error
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Fail wraps a failure.
func Fail[T any](err error) Result[T] {
	return Result[T]{err: err}
}

// Try adapts a conventional (value, error) pair.
func Try[T any](v T, err error) Result[T] {
	if err != nil {
		return Fail[T](err)
	}
	return Ok(v)
}

// Err returns the failure, or nil.
func (r Result[T]) Err() error {
	return r.err
}

// IsOk reports whether the stage succeeded.
func (r Result[T]) IsOk() bool {
	return r.err == nil
}

// Unwrap returns the conventional (value, error) pair.
func (r Result[T]) Unwrap() (T, error) {
	return r.value, r.err
}

// Validate turns a successful value into a failure when check returns an error.
func (r Result[T]) Validate(check func(T) error) Result[T] {
	if r.err != nil {
		return r
	}
	if err := check(r.value); err != nil {
		return Fail[T](err)
	}
	return r
}

// OrElse returns the value, or the fallback's value when the stage failed.
// The second return value reports whether the fallback was used.
func (r Result[T]) OrElse(fn func(error) T) (T, bool) {
	if r.err == nil {
		return r.value, false
	}
	return fn(r.err), true
}
