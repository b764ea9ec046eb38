package dispatch

import (
	"fmt"

	"github.com/luxfi/dirmi/info"
	"github.com/luxfi/dirmi/wire"
)

// MarshalParam writes v onto out according to p's declared kind and
// flags -- one switch on the parameter kind drives the marshalling.
// Remote parameters must
// already have been resolved to a *Ref by the caller (the stub or
// skeleton, which alone has registry access to mint or look up that
// reference).
func MarshalParam(out *wire.Output, p info.Param, v interface{}) error {
	if p.Remote {
		ref, ok := v.(*Ref)
		if !ok {
			return fmt.Errorf("dispatch: remote parameter %q requires a *Ref, got %T", p.TypeName, v)
		}
		return ref.Write(out)
	}

	if p.Unshared {
		if p.Kind == info.KindString {
			s, _ := v.(string)
			return out.WriteUnsharedString(&s)
		}
		return out.WriteUnsharedObject(v)
	}

	switch p.Kind {
	case info.KindByte:
		b, _ := v.(byte)
		return out.WriteByte(b)
	case info.KindBoolean:
		b, _ := v.(bool)
		return out.WriteBoolean(b)
	case info.KindChar:
		c, _ := v.(rune)
		return out.WriteChar(c)
	case info.KindInt:
		i, _ := v.(int32)
		return out.WriteInt(i)
	case info.KindLong:
		l, _ := v.(int64)
		return out.WriteLong(l)
	case info.KindFloat:
		f, _ := v.(float32)
		return out.WriteFloat(f)
	case info.KindDouble:
		d, _ := v.(float64)
		return out.WriteDouble(d)
	case info.KindString:
		s, _ := v.(string)
		return out.WriteString(&s)
	default:
		return out.WriteObject(v)
	}
}

// RemoteResolver turns a decoded *Ref into a usable local value: a
// shared stub for an imported reference, or the local object itself
// when the reference happens to name an object this session already
// exports (a remote parameter that is actually "our own object coming
// back").
type RemoteResolver func(*Ref) (interface{}, error)

// UnmarshalParam reads a value matching p's declared kind and flags
// off in. resolve is consulted only for Remote parameters.
func UnmarshalParam(in *wire.Input, p info.Param, resolve RemoteResolver) (interface{}, error) {
	if p.Remote {
		ref, _, _, err := ReadRef(in)
		if err != nil {
			return nil, err
		}
		return resolve(ref)
	}

	if p.Unshared {
		if p.Kind == info.KindString {
			s, err := in.ReadUnsharedString()
			if err != nil {
				return nil, err
			}
			if s == nil {
				return "", nil
			}
			return *s, nil
		}
		var v interface{}
		if err := in.ReadUnsharedObject(&v); err != nil {
			return nil, err
		}
		return v, nil
	}

	switch p.Kind {
	case info.KindByte:
		return in.ReadByte()
	case info.KindBoolean:
		return in.ReadBoolean()
	case info.KindChar:
		return in.ReadChar()
	case info.KindInt:
		return in.ReadInt()
	case info.KindLong:
		return in.ReadLong()
	case info.KindFloat:
		return in.ReadFloat()
	case info.KindDouble:
		return in.ReadDouble()
	case info.KindString:
		s, err := in.ReadString()
		if err != nil {
			return nil, err
		}
		if s == nil {
			return "", nil
		}
		return *s, nil
	default:
		var v interface{}
		if err := in.ReadObject(&v); err != nil {
			return nil, err
		}
		return v, nil
	}
}
