package safe

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
)

func Run(fn func()) {
	RunWithLog(fn, "safe.Run")
}

// RunWithLog executes fn and logs any panic with a trimmed stack trace.
func RunWithLog(fn func(), component string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic recovered",
				slog.Any("recover", r),
				slog.String("component", component),
				slog.String("stack", getStackTrace(3)),
			)
		}
	}()

	fn()
}

// Call runs fn and converts a panic into an error so the caller can report it.
func Call(fn func() error, component string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic recovered",
				slog.Any("recover", r),
				slog.String("component", component),
				slog.String("stack", getStackTrace(3)),
			)
			err = &PanicError{Value: r}
		}
	}()

	return fn()
}

type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

func getStackTrace(skipFrames int) string {
	lines := strings.Split(string(debug.Stack()), "\n")

	formatted := []string{"Stack trace:"}
	startIdx := skipFrames
	if startIdx >= len(lines) {
		return formatted[0]
	}

	// first line is "goroutine X [running]:"
	formatted = append(formatted, "  "+lines[0])
	for i := startIdx; i < len(lines) && i < startIdx+20; i++ {
		line := strings.TrimSpace(lines[i])
		if line != "" {
			formatted = append(formatted, "  "+line)
		}
	}
	if len(lines) > startIdx+20 {
		formatted = append(formatted, "  ... (truncated)")
	}

	return strings.Join(formatted, "\n")
}
