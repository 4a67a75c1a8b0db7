package register

import "sync"

// funcRegister collects init-time hooks keyed by an arbitrary comparable key.
// Stores, processes and background executors register here and are resolved
// once the core is built.
type funcRegister struct {
	handlers map[any][]any
	locker   sync.Mutex
}

var fr = &funcRegister{
	handlers: make(map[any][]any),
}

type Handler[T any] func(T)

func RegisterFunc[T any](key any, handler Handler[T]) {
	fr.locker.Lock()
	fr.handlers[key] = append(fr.handlers[key], handler)
	fr.locker.Unlock()
}

func ResolveFuncHandlers[T any](key any) []Handler[T] {
	fr.locker.Lock()
	defer fr.locker.Unlock()

	var result []Handler[T]
	for _, v := range fr.handlers[key] {
		if h, ok := v.(Handler[T]); ok {
			result = append(result, h)
		}
	}
	return result
}

// Apply resolves every handler registered under key and invokes it with target.
func Apply[T any](key any, target T) int {
	handlers := ResolveFuncHandlers[T](key)
	for _, h := range handlers {
		h(target)
	}
	return len(handlers)
}
