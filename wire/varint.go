package wire

import "io"

// writeVarUint encodes n using the variable-length unsigned integer
// scheme: the top bits of the first byte select an encoded length of
// 1 through 5 bytes, per:
//
//	0x00-0x7f  1 byte   b1
//	0x80-0xbf  2 bytes  (b1&0x3f)<<8 | b2
//	0xc0-0xdf  3 bytes  (b1&0x1f)<<16 | b2<<8 | b3
//	0xe0-0xef  4 bytes  (b1&0x0f)<<24 | b2<<16 | b3<<8 | b4
//	0xf0-0xff  5 bytes  b2<<24 | b3<<16 | b4<<8 | b5 (b1 itself unused)
//
// The encoded length is always the minimum of these that fits n.
func writeVarUint(w io.Writer, n uint32) error {
	var buf [5]byte
	switch {
	case n <= 0x7f:
		buf[0] = byte(n)
		_, err := w.Write(buf[:1])
		return err
	case n <= 0x3fff:
		buf[0] = 0x80 | byte(n>>8)
		buf[1] = byte(n)
		_, err := w.Write(buf[:2])
		return err
	case n <= 0x1fffff:
		buf[0] = 0xc0 | byte(n>>16)
		buf[1] = byte(n >> 8)
		buf[2] = byte(n)
		_, err := w.Write(buf[:3])
		return err
	case n <= 0xfffffff:
		buf[0] = 0xe0 | byte(n>>24)
		buf[1] = byte(n >> 16)
		buf[2] = byte(n >> 8)
		buf[3] = byte(n)
		_, err := w.Write(buf[:4])
		return err
	default:
		buf[0] = 0xf0
		buf[1] = byte(n >> 24)
		buf[2] = byte(n >> 16)
		buf[3] = byte(n >> 8)
		buf[4] = byte(n)
		_, err := w.Write(buf[:5])
		return err
	}
}

// readVarUint decodes a value written by writeVarUint. A failure to
// read the first byte propagates as-is (typically io.EOF, signalling
// there was no value to read at all). A failure partway through a
// multi-byte encoding is reported as ErrStreamCorrupted, since the
// stream has committed to a length it cannot now deliver.
func readVarUint(r io.Reader) (uint32, error) {
	var b1 [1]byte
	if _, err := io.ReadFull(r, b1[:]); err != nil {
		return 0, err
	}

	switch {
	case b1[0] <= 0x7f:
		return uint32(b1[0]), nil
	case b1[0] <= 0xbf:
		rest, err := readContinuation(r, 1)
		if err != nil {
			return 0, err
		}
		return uint32(b1[0]&0x3f)<<8 | uint32(rest[0]), nil
	case b1[0] <= 0xdf:
		rest, err := readContinuation(r, 2)
		if err != nil {
			return 0, err
		}
		return uint32(b1[0]&0x1f)<<16 | uint32(rest[0])<<8 | uint32(rest[1]), nil
	case b1[0] <= 0xef:
		rest, err := readContinuation(r, 3)
		if err != nil {
			return 0, err
		}
		return uint32(b1[0]&0x0f)<<24 | uint32(rest[0])<<16 | uint32(rest[1])<<8 | uint32(rest[2]), nil
	default:
		rest, err := readContinuation(r, 4)
		if err != nil {
			return 0, err
		}
		return uint32(rest[0])<<24 | uint32(rest[1])<<16 | uint32(rest[2])<<8 | uint32(rest[3]), nil
	}
}

func readContinuation(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, ErrStreamCorrupted
	}
	return buf, nil
}
