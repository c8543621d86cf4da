package ml

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

var approx = cmpopts.EquateApprox(0, 1e-12)

func TestMatrixVectorProducts(t *testing.T) {
	m := NewMatrixFromSlice(2, 3, []float64{1, 2, 3, 4, 5, 6})

	dst := []float64{10, 20}
	MulVecTo(dst, m, []float64{1, 0, -1}, 1)
	if diff := cmp.Diff([]float64{8, 18}, dst, approx); diff != "" {
		t.Errorf("MulVecTo mismatch (-want +got):\n%s", diff)
	}

	var want mat.VecDense
	want.MulVec(m.Dense().T(), mat.NewVecDense(2, []float64{1, 1}))
	got := make([]float64, 3)
	MulTransVecTo(got, m, []float64{1, 1}, 0)
	if diff := cmp.Diff(want.RawVector().Data, got, approx); diff != "" {
		t.Errorf("MulTransVecTo mismatch (-want +got):\n%s", diff)
	}
}

func TestOuterAddAccumulates(t *testing.T) {
	m := NewMatrix(2, 2)
	OuterAdd(m, []float64{1, 2}, []float64{3, 4})
	OuterAdd(m, []float64{1, 0}, []float64{1, 1})
	assert.Equal(t, []float64{4, 5, 6, 8}, m.Data())
}

func TestRowsViewSharesData(t *testing.T) {
	m := NewMatrixFromSlice(3, 2, []float64{1, 2, 3, 4, 5, 6})
	v := m.RowsView(1, 3)
	assert.Equal(t, 2, v.Rows())
	v.Row(0)[1] = 40
	assert.Equal(t, 40.0, m.At(1, 1))
	assert.Panics(t, func() { NewMatrixFromSlice(2, 2, make([]float64, 3)) })
}
