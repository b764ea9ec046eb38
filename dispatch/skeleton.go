package dispatch

import (
	"context"

	"go.uber.org/zap"

	"github.com/luxfi/dirmi/failure"
	"github.com/luxfi/dirmi/wire"
)

// Skeleton dispatches invocations arriving on channels accepted by a
// session onto a target implementing one remote interface, as
// described by Handle's dispatch table. It is the Go realization of
// the original's generated skeleton class: rather than bytecode built
// at export time, MethodFunc closures registered into the Table at
// startup do the unmarshal/invoke/marshal work for each method.
//
// A MethodFunc is responsible for reading its own parameters off in,
// invoking the real method on target, and -- on success -- writing the
// reply status and return value to out. On failure it returns the
// error and writes nothing; Dispatch writes the NOT_OK reply itself so
// that every method's failures are serialized uniformly.
type Skeleton struct {
	Handle  *Handle
	Target  interface{}
	Support *SkeletonSupport
}

// Dispatch reads one method identifier and its parameters off ch,
// invokes the target, and writes the reply, then releases ch back to
// the broker. It is called once per accepted invocation channel.
func (k *Skeleton) Dispatch(ctx context.Context, ch *wire.Channel) {
	in := ch.Reader()
	out := ch.Writer()

	methodID, err := in.ReadMethodID()
	if err != nil {
		k.Support.Finish(ch, err)
		return
	}

	entry, ok := k.Handle.Table().Lookup(methodID)
	if !ok {
		k.replyFailure(ch, ErrNoSuchMethod)
		return
	}

	if entry.Async {
		err := entry.Invoke(ctx, k.Target, in, out)
		// An asynchronous method's caller already moved on without a
		// reply channel; surface failures through the session's sink.
		if err != nil {
			k.Support.ReportFailure(entry.Name, err)
		}
		k.Support.Finish(ch, nil)
		return
	}

	if entry.Pipe {
		// Pipe methods take ownership of ch themselves; neither a
		// normal reply nor Finish applies once Invoke returns.
		if err := entry.Invoke(ctx, k.Target, in, out); err != nil {
			k.Support.logger().Error("dirmi: pipe method failed", zap.String("method", entry.Name), zap.Error(err))
		}
		return
	}

	if err := entry.Invoke(ctx, k.Target, in, out); err != nil {
		k.replyFailure(ch, err)
		return
	}
	if err := ch.Flush(); err != nil {
		k.Support.Finish(ch, err)
		return
	}
	k.Support.Finish(ch, nil)
}

func (k *Skeleton) replyFailure(ch *wire.Channel, err error) {
	out := ch.Writer()
	chain, terminal := failure.Levels(err)
	if writeErr := out.WriteThrowableChain(chain, terminal); writeErr != nil {
		k.Support.Finish(ch, writeErr)
		return
	}
	if writeErr := ch.Flush(); writeErr != nil {
		k.Support.Finish(ch, writeErr)
		return
	}
	k.Support.Finish(ch, nil)
}
