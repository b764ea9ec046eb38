package wire

import (
	"encoding/binary"
	"io"
	"math"
	"reflect"

	"github.com/luxfi/dirmi/codec"
)

// Reply status bytes. NULL is used inside values (e.g. as a slot
// discriminator for shared objects) and never appears as the top-level
// reply status.
const (
	statusNull    byte = 0
	StatusOKFalse byte = 1
	StatusOKTrue  byte = 2
	StatusNotOK   byte = 3
)

const (
	refNew    byte = 1
	refBackRef byte = 2
)

// Output is bound to one invocation's worth of writes -- a single
// request or a single reply -- and forms one "sharing scope": a
// reference value (see WriteObject) written with WriteObject twice
// resolves to a back-reference the
// second time, preserving identity within that scope. WriteUnsharedObject
// always writes fresh and never participates in the scope's identity map.
type Output struct {
	w     io.Writer
	codec codec.Codec
	seen  map[uintptr]uint32
	next  uint32
}

// NewOutput wraps w for one invocation's writes, using c to marshal
// object-valued parameters and return values.
func NewOutput(w io.Writer, c codec.Codec) *Output {
	if c == nil {
		c = codec.Default
	}
	return &Output{w: w, codec: c, seen: make(map[uintptr]uint32)}
}

func (o *Output) WriteByte(v byte) error    { _, err := o.w.Write([]byte{v}); return err }
func (o *Output) WriteBoolean(v bool) error {
	if v {
		return o.WriteByte(1)
	}
	return o.WriteByte(0)
}
func (o *Output) WriteChar(v rune) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(v))
	_, err := o.w.Write(buf[:])
	return err
}
func (o *Output) WriteInt(v int32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(v))
	_, err := o.w.Write(buf[:])
	return err
}
func (o *Output) WriteLong(v int64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	_, err := o.w.Write(buf[:])
	return err
}
func (o *Output) WriteFloat(v float32) error {
	return o.WriteInt(int32(math.Float32bits(v)))
}
func (o *Output) WriteDouble(v float64) error {
	return o.WriteLong(int64(math.Float64bits(v)))
}

// WriteByteObj etc. write a nullable boxed primitive: a one-byte
// presence flag followed, if present, by the primitive's raw bytes.
func (o *Output) WriteByteObj(v *byte) error {
	if v == nil {
		return o.WriteByte(statusNull)
	}
	if err := o.WriteByte(presenceNotNull); err != nil {
		return err
	}
	return o.WriteByte(*v)
}

func (o *Output) WriteBooleanObj(v *bool) error {
	if v == nil {
		return o.WriteByte(statusNull)
	}
	if err := o.WriteByte(presenceNotNull); err != nil {
		return err
	}
	return o.WriteBoolean(*v)
}

func (o *Output) WriteIntObj(v *int32) error {
	if v == nil {
		return o.WriteByte(statusNull)
	}
	if err := o.WriteByte(presenceNotNull); err != nil {
		return err
	}
	return o.WriteInt(*v)
}

func (o *Output) WriteLongObj(v *int64) error {
	if v == nil {
		return o.WriteByte(statusNull)
	}
	if err := o.WriteByte(presenceNotNull); err != nil {
		return err
	}
	return o.WriteLong(*v)
}

func (o *Output) WriteFloatObj(v *float32) error {
	if v == nil {
		return o.WriteByte(statusNull)
	}
	if err := o.WriteByte(presenceNotNull); err != nil {
		return err
	}
	return o.WriteFloat(*v)
}

func (o *Output) WriteDoubleObj(v *float64) error {
	if v == nil {
		return o.WriteByte(statusNull)
	}
	if err := o.WriteByte(presenceNotNull); err != nil {
		return err
	}
	return o.WriteDouble(*v)
}

// WriteVarUint writes n using the variable-length unsigned integer
// encoding, e.g. for chain lengths.
func (o *Output) WriteVarUint(n uint32) error { return writeVarUint(o.w, n) }

// WriteString writes a nullable string using the compact character
// encoding.
func (o *Output) WriteString(s *string) error { return writeString(o.w, s) }

// WriteUnsharedString writes a string outside any sharing scope. For
// strings this is identical to WriteString: identity-sharing only ever
// applies to codec-marshalled objects, never to primitive strings.
func (o *Output) WriteUnsharedString(s *string) error { return writeString(o.w, s) }

// WriteObject marshals v through the configured Codec, preserving
// object identity within this Output's sharing scope: a reference
// value (pointer, map, slice, chan, or func) written twice resolves to
// a back-reference the second time. Plain values have no reference
// identity in Go, so each one is written fresh; this also sidesteps
// encoding/gob and encoding/json round trips for types that aren't
// comparable, which would otherwise panic as a map key.
func (o *Output) WriteObject(v interface{}) error {
	if v == nil {
		return o.WriteByte(statusNull)
	}

	key, shareable := referenceKey(v)
	if shareable {
		if idx, ok := o.seen[key]; ok {
			if err := o.WriteByte(refBackRef); err != nil {
				return err
			}
			return o.WriteVarUint(idx)
		}
	}

	data, err := o.codec.Encode(v)
	if err != nil {
		return err
	}
	idx := o.next
	o.next++
	if shareable {
		o.seen[key] = idx
	}

	if err := o.WriteByte(refNew); err != nil {
		return err
	}
	if err := o.WriteVarUint(uint32(len(data))); err != nil {
		return err
	}
	_, err = o.w.Write(data)
	return err
}

// referenceKey returns the identity of v's underlying storage for the
// reference kinds that actually have one in Go (pointer, map, slice,
// chan, func): the address their header points at. Other kinds --
// structs, arrays, primitives, interfaces boxing any of those -- have
// value semantics, so two occurrences are never "the same object" and
// shareable is false.
func referenceKey(v interface{}) (key uintptr, shareable bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Chan, reflect.UnsafePointer, reflect.Slice, reflect.Func:
		if rv.IsNil() {
			return 0, false
		}
		return rv.Pointer(), true
	default:
		return 0, false
	}
}

// WriteUnsharedObject marshals v through the configured Codec without
// consulting or populating the sharing scope.
func (o *Output) WriteUnsharedObject(v interface{}) error {
	if v == nil {
		return o.WriteByte(statusNull)
	}
	data, err := o.codec.Encode(v)
	if err != nil {
		return err
	}
	if err := o.WriteByte(refNew); err != nil {
		return err
	}
	if err := o.WriteVarUint(uint32(len(data))); err != nil {
		return err
	}
	_, err = o.w.Write(data)
	return err
}

// WriteOk writes the single-byte reply status for a successful
// invocation: StatusOKFalse or StatusOKTrue.
func (o *Output) WriteOk(result bool) error {
	if result {
		return o.WriteByte(StatusOKTrue)
	}
	return o.WriteByte(StatusOKFalse)
}
