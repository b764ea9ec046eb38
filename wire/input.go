package wire

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"reflect"

	"github.com/luxfi/dirmi/codec"
)

// Input mirrors Output: bound to one invocation's worth of reads, and
// resolves WriteObject back-references written within the same scope.
type Input struct {
	r     io.Reader
	codec codec.Codec
	refs  []interface{}
}

// NewInput wraps r for one invocation's reads, using c to unmarshal
// object-valued parameters and return values.
func NewInput(r io.Reader, c codec.Codec) *Input {
	if c == nil {
		c = codec.Default
	}
	return &Input{r: r, codec: c}
}

func (in *Input) ReadByte() (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(in.r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (in *Input) ReadBoolean() (bool, error) {
	b, err := in.ReadByte()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

func (in *Input) ReadChar() (rune, error) {
	var buf [4]byte
	if _, err := io.ReadFull(in.r, buf[:]); err != nil {
		return 0, err
	}
	return rune(binary.BigEndian.Uint32(buf[:])), nil
}

func (in *Input) ReadInt() (int32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(in.r, buf[:]); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(buf[:])), nil
}

func (in *Input) ReadLong() (int64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(in.r, buf[:]); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(buf[:])), nil
}

func (in *Input) ReadFloat() (float32, error) {
	v, err := in.ReadInt()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(uint32(v)), nil
}

func (in *Input) ReadDouble() (float64, error) {
	v, err := in.ReadLong()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(uint64(v)), nil
}

func (in *Input) readPresence() (bool, error) {
	b, err := in.ReadByte()
	if err != nil {
		return false, err
	}
	return b != statusNull, nil
}

func (in *Input) ReadByteObj() (*byte, error) {
	present, err := in.readPresence()
	if err != nil || !present {
		return nil, err
	}
	v, err := in.ReadByte()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (in *Input) ReadBooleanObj() (*bool, error) {
	present, err := in.readPresence()
	if err != nil || !present {
		return nil, err
	}
	v, err := in.ReadBoolean()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (in *Input) ReadIntObj() (*int32, error) {
	present, err := in.readPresence()
	if err != nil || !present {
		return nil, err
	}
	v, err := in.ReadInt()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (in *Input) ReadLongObj() (*int64, error) {
	present, err := in.readPresence()
	if err != nil || !present {
		return nil, err
	}
	v, err := in.ReadLong()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (in *Input) ReadFloatObj() (*float32, error) {
	present, err := in.readPresence()
	if err != nil || !present {
		return nil, err
	}
	v, err := in.ReadFloat()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (in *Input) ReadDoubleObj() (*float64, error) {
	present, err := in.readPresence()
	if err != nil || !present {
		return nil, err
	}
	v, err := in.ReadDouble()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ReadVarUint decodes a value written by Output.WriteVarUint.
func (in *Input) ReadVarUint() (uint32, error) { return readVarUint(in.r) }

// ReadString decodes a value written by Output.WriteString, returning
// nil for a null string.
func (in *Input) ReadString() (*string, error) { return readString(in.r) }

// ReadUnsharedString is the reader counterpart of WriteUnsharedString.
func (in *Input) ReadUnsharedString() (*string, error) { return readString(in.r) }

// ReadObject decodes a value written by Output.WriteObject or
// WriteUnsharedObject into a freshly-allocated value of the type
// pointed to by out. A back-reference resolves to a previously-decoded
// value from this Input's scope.
func (in *Input) ReadObject(out interface{}) error {
	tag, err := in.ReadByte()
	if err != nil {
		return err
	}
	switch tag {
	case statusNull:
		return nil
	case refBackRef:
		idx, err := in.ReadVarUint()
		if err != nil {
			return err
		}
		if int(idx) >= len(in.refs) {
			return fmt.Errorf("wire: back-reference %d out of range", idx)
		}
		return assign(out, in.refs[idx])
	case refNew:
		n, err := in.ReadVarUint()
		if err != nil {
			return err
		}
		data := make([]byte, n)
		if _, err := io.ReadFull(in.r, data); err != nil {
			return err
		}
		if err := in.codec.Decode(data, out); err != nil {
			return err
		}
		in.refs = append(in.refs, out)
		return nil
	default:
		return fmt.Errorf("wire: unexpected object tag 0x%02x", tag)
	}
}

// ReadUnsharedObject decodes a value written by WriteUnsharedObject.
// It never consults or populates the sharing scope.
func (in *Input) ReadUnsharedObject(out interface{}) error {
	tag, err := in.ReadByte()
	if err != nil {
		return err
	}
	if tag == statusNull {
		return nil
	}
	n, err := in.ReadVarUint()
	if err != nil {
		return err
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(in.r, data); err != nil {
		return err
	}
	return in.codec.Decode(data, out)
}

// ReadOk reads the reply status byte. For StatusOKFalse/StatusOKTrue it
// returns result=false/true with notOK=false. A NOT_OK status is
// reported via result=false, notOK=true; the caller is then
// responsible for reading the throwable chain.
func (in *Input) ReadOk() (result bool, notOK bool, err error) {
	status, err := in.ReadByte()
	if err != nil {
		return false, false, err
	}
	switch status {
	case StatusOKFalse:
		return false, false, nil
	case StatusOKTrue:
		return true, false, nil
	case StatusNotOK:
		return false, true, nil
	default:
		return false, false, fmt.Errorf("%w: unexpected reply status 0x%02x", ErrStreamCorrupted, status)
	}
}

// assign copies a previously-decoded back-reference target into out.
// When the destination and the stored value agree on type, the value
// is copied directly by reflection; this keeps distinct stubs for the
// same back-reference pointing at truly identical data without a
// second round trip through the codec.
func assign(out interface{}, value interface{}) error {
	dst := reflect.ValueOf(out)
	src := reflect.ValueOf(value)
	if dst.Kind() == reflect.Ptr && !dst.IsNil() && src.Kind() == reflect.Ptr &&
		src.Type() == dst.Type() {
		dst.Elem().Set(src.Elem())
		return nil
	}
	return fmt.Errorf("wire: back-reference type mismatch: have %T, want %T", value, out)
}
