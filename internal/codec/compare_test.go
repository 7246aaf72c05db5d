package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompareValueOrdering(t *testing.T) {
	r := require.New(t)

	null := Value{Code: CodeNull}
	num := Value{Code: CodeInt8, Int: 5}
	text := Value{Code: TextCode(1), Bytes: []byte("a")}
	blob := Value{Code: BlobCode(1), Bytes: []byte{0x61}}

	r.Negative(CompareValue(null, num))
	r.Negative(CompareValue(num, text))
	r.Negative(CompareValue(text, blob))
	r.Positive(CompareValue(blob, null))
}

func TestCompareValueNumericCrossType(t *testing.T) {
	r := require.New(t)

	intVal := Value{Code: CodeInt32, Int: 10}
	realVal := Value{Code: CodeReal, Real: 10.0}
	r.Equal(0, CompareValue(intVal, realVal))

	realVal2 := Value{Code: CodeReal, Real: 10.5}
	r.Negative(CompareValue(intVal, realVal2))
}

func TestCompareValueTextPrefix(t *testing.T) {
	r := require.New(t)

	short := Value{Code: TextCode(2), Bytes: []byte("ab")}
	long := Value{Code: TextCode(3), Bytes: []byte("abc")}
	r.Negative(CompareValue(short, long))
	r.Positive(CompareValue(long, short))
}

func TestCompareRecordsByPrefixColumns(t *testing.T) {
	r := require.New(t)

	b1 := NewRecordBuilder(2)
	r.NoError(b1.AppendValue(TypeText, "alice"))
	r.NoError(b1.AppendValue(TypeInt, 2020))
	buf1, err := b1.Bytes()
	r.NoError(err)
	rec1, err := ReadRecord(buf1)
	r.NoError(err)

	b2 := NewRecordBuilder(2)
	r.NoError(b2.AppendValue(TypeText, "bob"))
	r.NoError(b2.AppendValue(TypeInt, 1999))
	buf2, err := b2.Bytes()
	r.NoError(err)
	rec2, err := ReadRecord(buf2)
	r.NoError(err)

	c, err := CompareRecords(rec1, rec2, 1)
	r.NoError(err)
	r.Negative(c)
}
