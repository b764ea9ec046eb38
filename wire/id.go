package wire

import "github.com/luxfi/dirmi/identity"

// WriteMethodID writes a method's stable Identifier as the first 8
// bytes of an invocation request.
func (o *Output) WriteMethodID(id identity.ID) error { return id.Write(o.w) }

// ReadMethodID reads the method Identifier a skeleton dispatches on.
func (in *Input) ReadMethodID() (identity.ID, error) { return identity.Read(in.r) }
