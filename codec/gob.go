package codec

import (
	"bytes"
	"encoding/gob"
)

// Gob is an alternative Codec for hosts that prefer gob's type-registry
// model over JSON's reflection-on-every-call model. Concrete payload
// types must be registered with Register before first use, mirroring
// the init-time gob.Register calls a host application would otherwise
// write itself.
type Gob struct{}

// Register records a concrete type under gob's global type registry so
// it can travel inside an interface{}-typed field.
func Register(value interface{}) { gob.Register(value) }

func (Gob) Encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (Gob) Decode(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}
