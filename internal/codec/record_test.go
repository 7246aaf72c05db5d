package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordBuilderRoundTrip(t *testing.T) {
	r := require.New(t)

	b := NewRecordBuilder(4)
	r.NoError(b.AppendValue(TypeInt, 23500))
	r.NoError(b.AppendValue(TypeText, "Databases"))
	r.NoError(b.AppendValue(TypeNull, nil))
	r.NoError(b.AppendValue(TypeInt, 42))

	buf, err := b.Bytes()
	r.NoError(err)

	rec, err := ReadRecord(buf)
	r.NoError(err)
	r.Equal(4, rec.NumColumns())

	v0, err := rec.Column(0)
	r.NoError(err)
	r.Equal(int64(23500), v0.Int)

	v1, err := rec.Column(1)
	r.NoError(err)
	r.Equal([]byte("Databases"), v1.Bytes)

	v2, err := rec.Column(2)
	r.NoError(err)
	r.True(v2.IsNull())

	v3, err := rec.Column(3)
	r.NoError(err)
	r.Equal(int64(42), v3.Int)
}

func TestRecordBuilderIntLiteralCodes(t *testing.T) {
	r := require.New(t)

	b := NewRecordBuilder(2)
	r.NoError(b.AppendValue(TypeInt, 0))
	r.NoError(b.AppendValue(TypeInt, 1))
	buf, err := b.Bytes()
	r.NoError(err)

	rec, err := ReadRecord(buf)
	r.NoError(err)
	r.Equal(int64(CodeInt0), rec.Code(0))
	r.Equal(int64(CodeInt1), rec.Code(1))
	// Literal codes consume zero data bytes.
	r.Equal(len(buf), rec.ByteLen())
}

func TestRecordBuilderBlob(t *testing.T) {
	r := require.New(t)

	blob := make([]byte, 300)
	for i := range blob {
		blob[i] = byte(i)
	}
	b := NewRecordBuilder(1)
	r.NoError(b.AppendValue(TypeBlob, blob))
	buf, err := b.Bytes()
	r.NoError(err)

	rec, err := ReadRecord(buf)
	r.NoError(err)
	v, err := rec.Column(0)
	r.NoError(err)
	r.Equal(blob, v.Bytes)
}

func TestReadRecordMalformed(t *testing.T) {
	r := require.New(t)

	_, err := ReadRecord([]byte{0xFF})
	r.Error(err)

	_, err = ReadRecord(nil)
	r.Error(err)
}
