package codec

import "encoding/json"

// JSON is the teacher's default codec, used when the host application
// has no opinion on wire representation for its own payload types.
type JSON struct{}

func (JSON) Encode(v interface{}) ([]byte, error) { return json.Marshal(v) }

func (JSON) Decode(data []byte, v interface{}) error { return json.Unmarshal(data, v) }
