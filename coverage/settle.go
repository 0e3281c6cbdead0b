package coverage

// settled captures one branch of a concurrent join: either a value or the
// panic that prevented it. Branches settle independently; a failure in one
// never blocks or poisons the other.
type settled[T any] struct {
	value    T
	panicked bool
	panicVal any
}

// settle runs fn in its own goroutine and delivers its outcome on the
// returned channel, converting a panic into a settled failure instead of
// propagating it.
func settle[T any](fn func() T) <-chan settled[T] {
	ch := make(chan settled[T], 1)
	go func() {
		var s settled[T]
		defer func() {
			if r := recover(); r != nil {
				s.panicked = true
				s.panicVal = r
			}
			ch <- s
		}()
		s.value = fn()
	}()
	return ch
}
