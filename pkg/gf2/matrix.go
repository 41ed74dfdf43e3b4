package gf2

import (
	"errors"
	"fmt"
)

var (
	ErrDimension = errors.New("gf2: dimension mismatch")
	ErrSingular  = errors.New("gf2: matrix is singular")
)

// Matrix is an n x n matrix over GF(2) acting on row vectors from the right:
// v * M is the sum of the rows i with v_i = 1.
type Matrix struct {
	n    int
	rows []Vector
}

// Identity returns the n x n identity matrix.
func Identity(n int) Matrix {
	rows := make([]Vector, n)
	for i := range rows {
		rows[i] = 1 << uint(i)
	}
	return Matrix{n: n, rows: rows}
}

// FromRows builds a matrix from its rows. The rows are copied.
func FromRows(n int, rows []Vector) (Matrix, error) {
	if n < 0 || n > MaxDim {
		return Matrix{}, fmt.Errorf("%w: n=%d", ErrDimension, n)
	}
	if len(rows) != n {
		return Matrix{}, fmt.Errorf("%w: %d rows for n=%d", ErrDimension, len(rows), n)
	}
	mask := Mask(n)
	cp := make([]Vector, n)
	for i, r := range rows {
		if r&^mask != 0 {
			return Matrix{}, fmt.Errorf("%w: row %d exceeds %d columns", ErrDimension, i, n)
		}
		cp[i] = r
	}
	return Matrix{n: n, rows: cp}, nil
}

// Permutation returns the matrix mapping coordinate i to coordinate img[i].
func Permutation(img []int) Matrix {
	rows := make([]Vector, len(img))
	for i, j := range img {
		rows[i] = 1 << uint(j)
	}
	return Matrix{n: len(img), rows: rows}
}

// Dim returns n.
func (m Matrix) Dim() int { return m.n }

// Row returns row i.
func (m Matrix) Row(i int) Vector { return m.rows[i] }

// Apply returns v * m.
func (m Matrix) Apply(v Vector) Vector {
	var out Vector
	for i := 0; v != 0; i++ {
		if v&1 == 1 {
			out ^= m.rows[i]
		}
		v >>= 1
	}
	return out
}

// Mul returns m * o, i.e. first m then o.
func (m Matrix) Mul(o Matrix) (Matrix, error) {
	if m.n != o.n {
		return Matrix{}, ErrDimension
	}
	rows := make([]Vector, m.n)
	for i, r := range m.rows {
		rows[i] = o.Apply(r)
	}
	return Matrix{n: m.n, rows: rows}, nil
}

// Equal reports whether m and o are the same matrix.
func (m Matrix) Equal(o Matrix) bool {
	if m.n != o.n {
		return false
	}
	for i := range m.rows {
		if m.rows[i] != o.rows[i] {
			return false
		}
	}
	return true
}

// Inverse computes m^-1 by Gauss-Jordan elimination.
func (m Matrix) Inverse() (Matrix, error) {
	n := m.n
	a := make([]Vector, n)
	copy(a, m.rows)
	inv := Identity(n).rows
	for col := 0; col < n; col++ {
		pivot := -1
		for r := col; r < n; r++ {
			if a[r].Bit(col) {
				pivot = r
				break
			}
		}
		if pivot < 0 {
			return Matrix{}, ErrSingular
		}
		a[col], a[pivot] = a[pivot], a[col]
		inv[col], inv[pivot] = inv[pivot], inv[col]
		for r := 0; r < n; r++ {
			if r != col && a[r].Bit(col) {
				a[r] ^= a[col]
				inv[r] ^= inv[col]
			}
		}
	}
	return Matrix{n: n, rows: inv}, nil
}

func (m Matrix) String() string {
	s := ""
	for i, r := range m.rows {
		if i > 0 {
			s += "\n"
		}
		s += r.Format(m.n)
	}
	return s
}
