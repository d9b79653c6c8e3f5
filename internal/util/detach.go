package util

// Detach runs fn on its own goroutine for best-effort side effects (habit
// recording, cache invalidation). Errors and panics are logged and never
// reach the caller, so the primary operation cannot be blocked or failed by
// a detached task.
func Detach(task string, fn func() error) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				Error("detached task panicked", "task", task, "panic", r)
			}
		}()

		if err := fn(); err != nil {
			Warn("detached task failed", "task", task, "error", err)
		}
	}()
}
