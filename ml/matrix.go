package ml

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/mat"
)

// Matrix represents a dense row-major matrix over a flat data slice. The slice
// may alias a caller-owned parameter or gradient buffer.
type Matrix struct {
	rows, cols int
	data       []float64
	dense      *mat.Dense
}

// -------- CONSTRUCTORS ------- //
func NewMatrix(rows, cols int) *Matrix {
	return NewMatrixFromSlice(rows, cols, make([]float64, rows*cols))
}

// NewMatrixFromSlice wraps data without copying it.
func NewMatrixFromSlice(rows, cols int, data []float64) *Matrix {
	if len(data) != rows*cols {
		panic(fmt.Sprintf("ml: slice length %d does not match %dx%d", len(data), rows, cols))
	}

	return &Matrix{
		rows:  rows,
		cols:  cols,
		data:  data,
		dense: mat.NewDense(rows, cols, data),
	}
}

// ------- MATRIX METHODS ------ //
func (m *Matrix) Rows() int         { return m.rows }
func (m *Matrix) Cols() int         { return m.cols }
func (m *Matrix) Data() []float64   { return m.data }
func (m *Matrix) Dense() *mat.Dense { return m.dense }

func (m *Matrix) At(i, j int) float64 {
	return m.data[i*m.cols+j]
}

// Row returns row i as a slice aliasing the matrix data.
func (m *Matrix) Row(i int) []float64 {
	return m.data[i*m.cols : (i+1)*m.cols]
}

// RowsView returns rows [i, j) as a matrix sharing the same data.
func (m *Matrix) RowsView(i, j int) *Matrix {
	return NewMatrixFromSlice(j-i, m.cols, m.data[i*m.cols:j*m.cols])
}

func (m *Matrix) raw() blas64.General {
	return m.dense.RawMatrix()
}

// ------ UTILITY FUNCTIONS ------
func vec(x []float64) blas64.Vector {
	return blas64.Vector{N: len(x), Inc: 1, Data: x}
}

// MulVecTo computes dst = m·x + beta·dst.
func MulVecTo(dst []float64, m *Matrix, x []float64, beta float64) {
	blas64.Gemv(blas.NoTrans, 1, m.raw(), vec(x), beta, vec(dst))
}

// MulTransVecTo computes dst = mᵀ·x + beta·dst.
func MulTransVecTo(dst []float64, m *Matrix, x []float64, beta float64) {
	blas64.Gemv(blas.Trans, 1, m.raw(), vec(x), beta, vec(dst))
}

// OuterAdd accumulates m += x ⊗ y, with len(x) == rows and len(y) == cols.
func OuterAdd(m *Matrix, x, y []float64) {
	blas64.Ger(1, vec(x), vec(y), m.raw())
}

// mulAdd accumulates dst[k] += a[k] * b[k].
func mulAdd(dst, a, b []float64) {
	for k := range dst {
		dst[k] += a[k] * b[k]
	}
}
