package codec

import (
	"errors"
	"fmt"
)

// ErrTooLong is returned when a record cannot be represented at all on the
// configured page geometry, even with overflow spilling.
var ErrTooLong = errors.New("codec: record exceeds representable size")

// ErrMalformed is returned when decoding a record's header is inconsistent
// with its declared length.
var ErrMalformed = errors.New("codec: malformed record header")

// RecordBuilder accumulates column values one at a time and produces the
// packed payload bytes: varint(header length) || serial type codes ||
// column data, in column order.
type RecordBuilder struct {
	codes []int64
	vals  []Value
}

// NewRecordBuilder returns an empty builder sized for n columns.
func NewRecordBuilder(n int) *RecordBuilder {
	return &RecordBuilder{
		codes: make([]int64, 0, n),
		vals:  make([]Value, 0, n),
	}
}

// AppendValue appends a single column, deriving its serial type code from
// typ and the runtime type of v.
func (b *RecordBuilder) AppendValue(typ ColumnType, v interface{}) error {
	switch typ {
	case TypeNull:
		b.codes = append(b.codes, CodeNull)
		b.vals = append(b.vals, Value{Code: CodeNull})
	case TypeInt:
		iv, err := toInt64(v)
		if err != nil {
			return err
		}
		code := IntCode(iv)
		b.codes = append(b.codes, code)
		b.vals = append(b.vals, Value{Code: code, Int: iv})
	case TypeReal:
		fv, err := toFloat64(v)
		if err != nil {
			return err
		}
		b.codes = append(b.codes, CodeReal)
		b.vals = append(b.vals, Value{Code: CodeReal, Real: fv})
	case TypeText:
		s, err := toBytes(v)
		if err != nil {
			return err
		}
		code := TextCode(len(s))
		b.codes = append(b.codes, code)
		b.vals = append(b.vals, Value{Code: code, Bytes: s})
	case TypeBlob:
		s, err := toBytes(v)
		if err != nil {
			return err
		}
		code := BlobCode(len(s))
		b.codes = append(b.codes, code)
		b.vals = append(b.vals, Value{Code: code, Bytes: s})
	default:
		return fmt.Errorf("codec: unknown column type %d", typ)
	}
	return nil
}

// AppendRaw appends a column whose serial type code and decoded Value are
// already known, bypassing type inference. Used to splice columns out of one
// already-parsed Record into another (Handle.Put merges a separately packed
// key record and value record this way) without losing the original code's
// exact width (e.g. keeping CodeInt0 rather than re-deriving CodeInt8 for 0).
func (b *RecordBuilder) AppendRaw(code int64, v Value) {
	b.codes = append(b.codes, code)
	b.vals = append(b.vals, v)
}

// Len returns the number of columns appended so far.
func (b *RecordBuilder) Len() int { return len(b.codes) }

// Bytes assembles the accumulated columns into a packed record payload.
func (b *RecordBuilder) Bytes() ([]byte, error) {
	var codeBuf [MaxVarintLen]byte
	headerBodyLen := 0
	for _, c := range b.codes {
		headerBodyLen += VarintLen(uint64(c))
	}

	// The header length field includes itself, so grow the varint length
	// to fixpoint.
	headerLen := headerBodyLen + 1
	for {
		l := VarintLen(uint64(headerLen))
		if l+headerBodyLen == headerLen {
			break
		}
		headerLen = l + headerBodyLen
	}

	dataLen := 0
	for _, c := range b.codes {
		dataLen += DataLen(c)
	}

	total := headerLen + dataLen
	if total < 0 || total > 0x7FFFFFFF {
		return nil, ErrTooLong
	}

	out := make([]byte, total)
	n := WriteVarint(codeBuf[:], uint64(headerLen))
	copy(out, codeBuf[:n])
	pos := n
	for _, c := range b.codes {
		n := WriteVarint(codeBuf[:], uint64(c))
		copy(out[pos:], codeBuf[:n])
		pos += n
	}
	for i, c := range b.codes {
		n := WriteColumn(out[pos:], c, b.vals[i])
		pos += n
	}
	return out, nil
}

// Record is a parsed view over a packed payload: the serial type codes and
// the offsets of each column's data within the original buffer.
type Record struct {
	raw       []byte
	codes     []int64
	dataStart []int
}

// ReadRecord parses the header of a packed payload. Column data is decoded
// lazily by Column.
func ReadRecord(buf []byte) (*Record, error) {
	headerLen, n, err := ReadVarint(buf)
	if err != nil {
		return nil, ErrMalformed
	}
	if headerLen < uint64(n) || int(headerLen) > len(buf) {
		return nil, ErrMalformed
	}

	var codes []int64
	var starts []int
	pos := n
	dataPos := int(headerLen)
	for pos < int(headerLen) {
		code, cn, err := ReadVarint(buf[pos:])
		if err != nil {
			return nil, ErrMalformed
		}
		pos += cn
		codes = append(codes, int64(code))
		starts = append(starts, dataPos)
		dataPos += DataLen(int64(code))
	}
	if pos != int(headerLen) {
		return nil, ErrMalformed
	}
	if dataPos > len(buf) {
		return nil, ErrMalformed
	}

	return &Record{raw: buf, codes: codes, dataStart: starts}, nil
}

// NumColumns returns the number of columns in the record.
func (r *Record) NumColumns() int { return len(r.codes) }

// Code returns the serial type code of column i.
func (r *Record) Code(i int) int64 { return r.codes[i] }

// Column decodes column i.
func (r *Record) Column(i int) (Value, error) {
	if i < 0 || i >= len(r.codes) {
		return Value{}, fmt.Errorf("codec: column %d out of range", i)
	}
	code := r.codes[i]
	start := r.dataStart[i]
	end := start + DataLen(code)
	if end > len(r.raw) {
		return Value{}, ErrMalformed
	}
	v, _, err := ReadColumn(code, r.raw[start:end])
	return v, err
}

// ByteLen returns the total on-the-wire length of the record (header plus
// column data), i.e. what its varint payload-length prefix must say.
func (r *Record) ByteLen() int {
	if len(r.codes) == 0 {
		hl, _, _ := ReadVarint(r.raw)
		return int(hl)
	}
	last := len(r.codes) - 1
	return r.dataStart[last] + DataLen(r.codes[last])
}

func toInt64(v interface{}) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint32:
		return int64(x), nil
	case uint64:
		return int64(x), nil
	default:
		return 0, fmt.Errorf("codec: value %v is not an integer", v)
	}
}

func toFloat64(v interface{}) (float64, error) {
	switch x := v.(type) {
	case float32:
		return Float32ToDouble(x), nil
	case float64:
		return x, nil
	default:
		return 0, fmt.Errorf("codec: value %v is not a real", v)
	}
}

func toBytes(v interface{}) ([]byte, error) {
	switch x := v.(type) {
	case string:
		return []byte(x), nil
	case []byte:
		return x, nil
	default:
		return nil, fmt.Errorf("codec: value %v is not text/blob", v)
	}
}
