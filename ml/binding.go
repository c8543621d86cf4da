package ml

import (
	"fmt"

	"github.com/samber/lo"
)

// LSTM weight names in their canonical buffer order.
const (
	WIX = "W_i_x"
	WIH = "W_i_h"
	WIC = "W_i_c"
	WFX = "W_f_x"
	WFH = "W_f_h"
	WFC = "W_f_c"
	WCX = "W_c_x"
	WCH = "W_c_h"
	WOX = "W_o_x"
	WOH = "W_o_h"
	WOC = "W_o_c"
)

// View is a non-owning window into a flat parameter buffer.
type View struct {
	Name   string
	Offset int
	Rows   int
	Cols   int
}

func (v View) Len() int { return v.Rows * v.Cols }

// Layout is the ordered list of views a model binds into its parameter and
// gradient buffers. Views are contiguous and non-overlapping.
type Layout struct {
	views []View
}

// NewLayout assigns offsets to views in the order given.
func NewLayout(views ...View) Layout {
	var l Layout
	return l.Append(views...)
}

// Append returns a new layout with views placed after the existing ones.
func (l Layout) Append(views ...View) Layout {
	out := Layout{views: make([]View, 0, len(l.views)+len(views))}
	out.views = append(out.views, l.views...)
	cursor := l.Size()
	for _, v := range views {
		v.Offset = cursor
		cursor += v.Len()
		out.views = append(out.views, v)
	}
	return out
}

// Views returns a copy of the layout's views.
func (l Layout) Views() []View {
	return append([]View(nil), l.views...)
}

// Size is the number of float64 entries a buffer needs to hold every view.
func (l Layout) Size() int {
	return lo.SumBy(l.views, func(v View) int { return v.Len() })
}

// Index returns the position of the named view, or -1.
func (l Layout) Index(name string) int {
	_, idx, ok := lo.FindIndexOf(l.views, func(v View) bool { return v.Name == name })
	if !ok {
		return -1
	}
	return idx
}

// Bind slices buf into one matrix per view. No data is copied.
func (l Layout) Bind(buf []float64) ([]*Matrix, error) {
	size := l.Size()
	if len(buf) < size {
		return nil, preconditionErr("buffer holds %d values, layout needs %d", len(buf), size)
	}
	out := make([]*Matrix, len(l.views))
	for i, v := range l.views {
		out[i] = NewMatrixFromSlice(v.Rows, v.Cols, buf[v.Offset:v.Offset+v.Len()])
	}
	return out, nil
}

// FeedforwardLayout has one [fanIn x fanOut] view per connection, where
// fanIn includes the bias row.
func FeedforwardLayout(neurons []int) Layout {
	views := make([]View, 0, len(neurons))
	for i := 0; i+1 < len(neurons); i++ {
		views = append(views, View{
			Name: fmt.Sprintf("W%d", i+1),
			Rows: neurons[i] + 1,
			Cols: neurons[i+1],
		})
	}
	return NewLayout(views...)
}

// LSTMLayout lays out the eleven gate matrices gate by gate: input
// projection, recurrent projection, then peephole (none for the candidate).
func LSTMLayout(numNeuron, inputSize int) Layout {
	n, in := numNeuron, inputSize
	return NewLayout(
		View{Name: WIX, Rows: n, Cols: in},
		View{Name: WIH, Rows: n, Cols: n},
		View{Name: WIC, Rows: n, Cols: 1},
		View{Name: WFX, Rows: n, Cols: in},
		View{Name: WFH, Rows: n, Cols: n},
		View{Name: WFC, Rows: n, Cols: 1},
		View{Name: WCX, Rows: n, Cols: in},
		View{Name: WCH, Rows: n, Cols: n},
		View{Name: WOX, Rows: n, Cols: in},
		View{Name: WOH, Rows: n, Cols: n},
		View{Name: WOC, Rows: n, Cols: 1},
	)
}
