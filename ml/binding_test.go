package ml

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedforwardLayout(t *testing.T) {
	l := FeedforwardLayout([]int{2, 3, 2})
	require.Equal(t, 3*3+4*2, l.Size())

	views := l.Views()
	require.Len(t, views, 2)
	assert.Equal(t, View{Name: "W1", Offset: 0, Rows: 3, Cols: 3}, views[0])
	assert.Equal(t, View{Name: "W2", Offset: 9, Rows: 4, Cols: 2}, views[1])
	assert.Equal(t, 1, l.Index("W2"))
	assert.Equal(t, -1, l.Index("W3"))
}

func TestLSTMLayoutOrderAndSize(t *testing.T) {
	n, in := 3, 2
	l := LSTMLayout(n, in)
	require.Equal(t, 4*n*in+4*n*n+3*n, l.Size())

	names := []string{WIX, WIH, WIC, WFX, WFH, WFC, WCX, WCH, WOX, WOH, WOC}
	cursor := 0
	for i, v := range l.Views() {
		assert.Equal(t, names[i], v.Name)
		assert.Equal(t, cursor, v.Offset, "view %s is not contiguous", v.Name)
		cursor += v.Len()
	}
	assert.Equal(t, l.Size(), cursor)
}

func TestBindAliasesBuffer(t *testing.T) {
	l := NewLayout(View{Name: "a", Rows: 2, Cols: 2}, View{Name: "b", Rows: 1, Cols: 3})
	buf := make([]float64, l.Size()+4) // trailing slack is allowed
	views, err := l.Bind(buf)
	require.NoError(t, err)

	views[1].Data()[2] = 7
	assert.Equal(t, 7.0, buf[6])
	buf[1] = 3
	assert.Equal(t, 3.0, views[0].At(0, 1))
}

func TestBindRejectsShortBuffer(t *testing.T) {
	l := LSTMLayout(2, 2)
	_, err := l.Bind(make([]float64, l.Size()-1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPrecondition))
}

func TestLayoutAppendKeepsPrefix(t *testing.T) {
	base := LSTMLayout(2, 3)
	ext := base.Append(View{Name: ReadoutWeights, Rows: 3, Cols: 4})
	assert.Equal(t, base.Size()+12, ext.Size())
	assert.Equal(t, base.Views(), ext.Views()[:len(base.Views())])
	assert.Equal(t, base.Size(), ext.Views()[ext.Index(ReadoutWeights)].Offset)
}
