package dispatch

import (
	"context"
	"runtime"

	"go.uber.org/zap"

	"github.com/luxfi/dirmi/wire"
)

// Connector is the piece of the broker a stub needs: a way to acquire
// a channel for a new outbound invocation.
type Connector interface {
	Connect(ctx context.Context) (*wire.Channel, error)
}

// Recycler is the piece of the broker both stub and skeleton need: a
// way to return a drained channel to the pool, or discard it on error.
type Recycler interface {
	Recycle(ch *wire.Channel, err error)
}

// AsyncErrorSink receives failures from asynchronous methods, which
// have no reply channel over which to report them
// (AsynchronousInvocation errors go to the session's error sink,
// never over the invocation channel).
type AsyncErrorSink func(err error)

// StubSupport is the per-session service a Stub uses to acquire and
// release channels for its calls.
type StubSupport struct {
	Connector Connector
	Recycler  Recycler
	Logger    *zap.Logger
}

func (s *StubSupport) logger() *zap.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return zap.NewNop()
}

// Acquire obtains a channel for a new outbound invocation.
func (s *StubSupport) Acquire(ctx context.Context) (*wire.Channel, error) {
	return s.Connector.Connect(ctx)
}

// Finish releases ch back to the broker. A non-nil err discards it
// instead of recycling it.
func (s *StubSupport) Finish(ch *wire.Channel, err error) {
	s.Recycler.Recycle(ch, err)
}

// SkeletonSupport is the per-session service a Skeleton uses to
// release channels after dispatch and to report asynchronous failures
// that have no reply channel to travel over.
type SkeletonSupport struct {
	Recycler Recycler
	Errors   AsyncErrorSink
	Logger   *zap.Logger
}

func (s *SkeletonSupport) logger() *zap.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return zap.NewNop()
}

// Finish releases ch back to the broker after a dispatch completes.
func (s *SkeletonSupport) Finish(ch *wire.Channel, err error) {
	s.Recycler.Recycle(ch, err)
}

// ReportFailure surfaces an exception thrown synchronously by an
// asynchronous method's target, via the session's error sink.
func (s *SkeletonSupport) ReportFailure(methodName string, err error) {
	if s.Errors != nil {
		s.Errors(AsynchronousInvocationError{Method: methodName, Cause: err})
		return
	}
	s.logger().Error("dirmi: unreported asynchronous invocation failure",
		zap.String("method", methodName), zap.Error(err))
}

// AsynchronousInvocationError wraps a failure raised by an
// asynchronous method, delivered through the session's error sink
// rather than over any invocation channel.
type AsynchronousInvocationError struct {
	Method string
	Cause  error
}

func (e AsynchronousInvocationError) Error() string {
	return "dirmi: asynchronous invocation of " + e.Method + " failed: " + e.Cause.Error()
}

func (e AsynchronousInvocationError) Unwrap() error { return e.Cause }

// CallerStack captures the stack of the goroutine invoking a stub
// method, for stitching after a reconstructed remote stack. It drops
// its own frame and the immediate caller's frame (the stub method
// itself), matching "dropping the most recent local frame to remove
// the stub".
func CallerStack(skip int) []wire.Frame {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+2, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	var out []wire.Frame
	for {
		f, more := frames.Next()
		out = append(out, wire.Frame{ClassName: callerPackage(f.Function), MethodName: f.Function, FileName: f.File, LineNumber: int32(f.Line)})
		if !more {
			break
		}
	}
	return out
}

func callerPackage(fn string) string {
	for i := len(fn) - 1; i >= 0; i-- {
		if fn[i] == '.' {
			return fn[:i]
		}
	}
	return fn
}
