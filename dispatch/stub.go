package dispatch

import (
	"context"
	"fmt"
	"reflect"

	"github.com/luxfi/dirmi/failure"
	"github.com/luxfi/dirmi/identity"
	"github.com/luxfi/dirmi/registry"
)

// Stub is the local proxy for one remote object: it marshals calls to
// ObjID's methods, as described by Handle's dispatch table, over
// channels obtained from Support.
type Stub struct {
	Handle   *Handle
	ObjID    *identity.Versioned
	TypeID   *identity.Versioned
	Support  *StubSupport
	Registry *registry.Registry
	Resolve  RemoteResolver
}

// Call performs the stub call sequence: acquire a channel, write the
// method identifier and parameters, flush, and -- unless the method is
// asynchronous -- read back the reply, reconstructing and returning
// any remote failure. A successful reply's status byte distinguishes
// void (StatusOKFalse) from a return value following (StatusOKTrue);
// resultPtr is only consulted in the latter case.
func (s *Stub) Call(ctx context.Context, methodID identity.ID, args []interface{}, resultPtr interface{}) error {
	method, ok := s.Handle.Table().Lookup(methodID)
	if !ok {
		return fmt.Errorf("dispatch: stub has no method %s", methodID)
	}
	if len(args) != len(method.Params) {
		return fmt.Errorf("dispatch: method %s takes %d parameters, got %d", method.Name, len(method.Params), len(args))
	}

	ch, err := s.Support.Acquire(ctx)
	if err != nil {
		return err
	}

	out := ch.Writer()
	if err := out.WriteMethodID(s.ObjID.ID); err != nil {
		s.Support.Finish(ch, err)
		return err
	}
	if err := out.WriteMethodID(methodID); err != nil {
		s.Support.Finish(ch, err)
		return err
	}
	for i, p := range method.Params {
		if err := MarshalParam(out, p, args[i]); err != nil {
			s.Support.Finish(ch, err)
			return err
		}
	}
	if err := ch.Flush(); err != nil {
		s.Support.Finish(ch, err)
		return err
	}

	if method.Async {
		s.Support.Finish(ch, nil)
		return nil
	}

	in := ch.Reader()
	hasValue, notOK, err := in.ReadOk()
	if err != nil {
		s.Support.Finish(ch, err)
		return err
	}

	if notOK {
		chain, terminal, err := in.ReadThrowableChain()
		if err != nil {
			s.Support.Finish(ch, err)
			return err
		}
		// The channel was drained cleanly even though the call
		// failed remotely, so it is still safe to recycle.
		s.Support.Finish(ch, nil)
		return failure.Reconstruct(chain, terminal, CallerStack(1))
	}

	if !hasValue || method.Return == nil {
		s.Support.Finish(ch, nil)
		return nil
	}

	value, err := UnmarshalParam(in, *method.Return, s.Resolve)
	if err != nil {
		s.Support.Finish(ch, err)
		return err
	}
	s.Support.Finish(ch, nil)
	return assignResult(resultPtr, value)
}

func assignResult(resultPtr interface{}, value interface{}) error {
	if resultPtr == nil {
		return nil
	}
	dst := reflect.ValueOf(resultPtr)
	if dst.Kind() != reflect.Ptr || dst.IsNil() {
		return fmt.Errorf("dispatch: result target must be a non-nil pointer, got %T", resultPtr)
	}
	if value == nil {
		dst.Elem().Set(reflect.Zero(dst.Elem().Type()))
		return nil
	}
	src := reflect.ValueOf(value)
	if !src.Type().AssignableTo(dst.Elem().Type()) {
		return fmt.Errorf("dispatch: cannot assign %T into %s", value, dst.Elem().Type())
	}
	dst.Elem().Set(src)
	return nil
}
