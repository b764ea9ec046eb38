package wire

// Frame is one stack frame of a serialized throwable's stack trace.
type Frame struct {
	ClassName  string `json:"class"`
	MethodName string `json:"method"`
	FileName   string `json:"file"`
	LineNumber int32  `json:"line"`
}

// ThrowableLevel is the wire shape of one level of a throwable's cause
// chain: a class name, an optional message, and a stack trace. The
// terminal throwable of a chain is encoded in this same shape; a host
// that needs richer exception state can layer its own object on top
// using WriteUnsharedObject/ReadUnsharedObject around the chain.
type ThrowableLevel struct {
	ClassName string  `json:"class"`
	Message   *string `json:"message"`
	Stack     []Frame `json:"stack"`
}

// WriteThrowableChain writes NOT_OK, a var-uint chain length, the
// chain levels root-first, and finally the terminal level, per the
// invocation reply wire format.
func (o *Output) WriteThrowableChain(chain []ThrowableLevel, terminal ThrowableLevel) error {
	if err := o.WriteByte(StatusNotOK); err != nil {
		return err
	}
	if err := o.WriteVarUint(uint32(len(chain))); err != nil {
		return err
	}
	for _, level := range chain {
		if err := o.writeThrowableLevel(level); err != nil {
			return err
		}
	}
	return o.writeThrowableLevel(terminal)
}

func (o *Output) writeThrowableLevel(level ThrowableLevel) error {
	className := level.ClassName
	if err := o.WriteObject(&className); err != nil {
		return err
	}
	if err := o.WriteObject(level.Message); err != nil {
		return err
	}
	stack := level.Stack
	return o.WriteObject(&stack)
}

// ReadThrowableChain reads a chain previously written by
// WriteThrowableChain, assuming the NOT_OK status byte has already
// been consumed by ReadOk. It returns the root-first chain and the
// terminal level.
func (in *Input) ReadThrowableChain() (chain []ThrowableLevel, terminal ThrowableLevel, err error) {
	n, err := in.ReadVarUint()
	if err != nil {
		return nil, ThrowableLevel{}, err
	}
	chain = make([]ThrowableLevel, n)
	for i := range chain {
		lvl, err := in.readThrowableLevel()
		if err != nil {
			return nil, ThrowableLevel{}, err
		}
		chain[i] = lvl
	}
	terminal, err = in.readThrowableLevel()
	if err != nil {
		return nil, ThrowableLevel{}, err
	}
	return chain, terminal, nil
}

func (in *Input) readThrowableLevel() (ThrowableLevel, error) {
	var className string
	if err := in.ReadObject(&className); err != nil {
		return ThrowableLevel{}, err
	}
	var message *string
	if err := in.ReadObject(&message); err != nil {
		return ThrowableLevel{}, err
	}
	var stack []Frame
	if err := in.ReadObject(&stack); err != nil {
		return ThrowableLevel{}, err
	}
	return ThrowableLevel{ClassName: className, Message: message, Stack: stack}, nil
}
