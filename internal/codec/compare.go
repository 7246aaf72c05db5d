package codec

import "bytes"

// class buckets a serial type code into the ordering SQLite imposes between
// families: NULL < numeric < text < blob.
func class(code int64) int {
	switch {
	case code == CodeNull:
		return 0
	case IsNumeric(code):
		return 1
	case IsText(code):
		return 2
	default:
		return 3
	}
}

// numericValue returns a value's numeric magnitude for cross-type (int vs
// real) comparison.
func numericValue(v Value) float64 {
	if v.Code == CodeReal {
		return v.Real
	}
	return float64(v.Int)
}

// CompareValue compares two decoded column values using SQLite's type-aware
// ordering: NULL < numbers < text < blob; within numerics, values compare by
// numeric magnitude regardless of int/real subtype; text and blob compare
// byte-wise with the shorter of two equal prefixes sorting first.
func CompareValue(a, b Value) int {
	ca, cb := class(a.Code), class(b.Code)
	if ca != cb {
		if ca < cb {
			return -1
		}
		return 1
	}
	switch ca {
	case 0:
		return 0
	case 1:
		na, nb := numericValue(a), numericValue(b)
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		default:
			return 0
		}
	default:
		return bytes.Compare(a.Bytes, b.Bytes)
	}
}

// CompareRecords compares two records column-by-column over the leading n
// columns (the primary key prefix), the ordering used to keep cells sorted
// within a page.
func CompareRecords(a, b *Record, n int) (int, error) {
	for i := 0; i < n; i++ {
		av, err := a.Column(i)
		if err != nil {
			return 0, err
		}
		bv, err := b.Column(i)
		if err != nil {
			return 0, err
		}
		if c := CompareValue(av, bv); c != 0 {
			return c, nil
		}
	}
	return 0, nil
}

// CompareRecordPrefix compares a record's first column (assumed text/blob)
// against a raw key of prefix bytes, the shortcut used when callers key by a
// single text column and pass the key bytes directly rather than building a
// full record. A shorter operand that is a strict prefix of the longer one
// sorts first.
func CompareRecordPrefix(a *Record, key []byte) (int, error) {
	av, err := a.Column(0)
	if err != nil {
		return 0, err
	}
	return bytes.Compare(av.Bytes, key), nil
}
