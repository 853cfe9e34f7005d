package tensor

import "fmt"

// IDs is a dense [batch, seq] matrix of integer ids (token or segment ids).
//
// Example:
//
//	ids, err := tensor.IDsFromRows([][]int32{{5, 9, 2}, {7, 7, 1}})
//	// ids.Batch() == 2, ids.SeqLen() == 3
type IDs struct {
	data  []int32
	batch int
	seq   int
}

// NewIDs wraps data (row-major, batch rows of seq ids) without copying.
func NewIDs(data []int32, batch, seq int) (*IDs, error) {
	if batch <= 0 || seq <= 0 {
		return nil, fmt.Errorf("invalid ids shape [%d, %d]: dimensions must be > 0", batch, seq)
	}
	if len(data) != batch*seq {
		return nil, fmt.Errorf("ids shape [%d, %d] requires %d elements, got %d", batch, seq, batch*seq, len(data))
	}
	return &IDs{data: data, batch: batch, seq: seq}, nil
}

// IDsFromRows copies equally sized rows into a new IDs matrix.
func IDsFromRows(rows [][]int32) (*IDs, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("ids: no rows")
	}
	seq := len(rows[0])
	data := make([]int32, 0, len(rows)*seq)
	for i, row := range rows {
		if len(row) != seq {
			return nil, fmt.Errorf("ids: row %d has length %d, expected %d", i, len(row), seq)
		}
		data = append(data, row...)
	}
	return NewIDs(data, len(rows), seq)
}

// MustIDs is like IDsFromRows but panics on error. Intended for tests and literals.
func MustIDs(rows ...[]int32) *IDs {
	ids, err := IDsFromRows(rows)
	if err != nil {
		panic(err)
	}
	return ids
}

// Batch returns the number of rows.
func (x *IDs) Batch() int { return x.batch }

// SeqLen returns the number of ids per row.
func (x *IDs) SeqLen() int { return x.seq }

// Shape returns [batch, seq].
func (x *IDs) Shape() Shape { return Shape{x.batch, x.seq} }

// Data returns the row-major ids (zero-copy).
func (x *IDs) Data() []int32 { return x.data }

// At returns the id at (row, col).
func (x *IDs) At(row, col int) int32 {
	return x.data[row*x.seq+col]
}

// Row returns row i (zero-copy).
func (x *IDs) Row(i int) []int32 {
	return x.data[i*x.seq : (i+1)*x.seq]
}

// Slice returns columns [start, end) of every row as a new matrix.
func (x *IDs) Slice(start, end int) *IDs {
	if start < 0 || end > x.seq || start >= end {
		panic(fmt.Sprintf("IDs.Slice: invalid range [%d, %d) for seq length %d", start, end, x.seq))
	}
	n := end - start
	data := make([]int32, 0, x.batch*n)
	for b := 0; b < x.batch; b++ {
		data = append(data, x.Row(b)[start:end]...)
	}
	return &IDs{data: data, batch: x.batch, seq: n}
}

// Zeros returns an all-zero ids matrix of the same shape.
func (x *IDs) Zeros() *IDs {
	return &IDs{data: make([]int32, len(x.data)), batch: x.batch, seq: x.seq}
}
