package ml

import "fmt"

// Field identifies one per-timestep vector in a SequenceBuffer record.
type Field int

// Neuron-sized fields.
const (
	FieldInGate Field = iota
	FieldForgetGate
	FieldOutGate
	FieldCandidate
	FieldState
	FieldStateTanh
	FieldOutput
	FieldOutputErr
	FieldCellErr
	FieldInGateDelta
	FieldForgetGateDelta
	FieldCandidateDelta
	FieldOutGateDelta

	numNeuronFields
)

// Input-sized fields.
const (
	FieldInput Field = numNeuronFields + iota
	FieldInputErr

	numFields
)

// SequenceBuffer stores per-timestep activations, states and deltas for
// sequences of up to maxSeqLen steps. Slot 0 is the zero state before the
// sequence starts and slot T+1 the zero error after it ends; both are reset by
// ResetStates. All slots live in one arena of fixed-stride records.
type SequenceBuffer struct {
	numNeuron int
	inputSize int
	maxSeqLen int
	stride    int
	arena     []float64
}

func NewSequenceBuffer(numNeuron, inputSize, maxSeqLen int) (*SequenceBuffer, error) {
	if numNeuron < 1 || inputSize < 1 {
		return nil, configErr("sequence buffer needs positive sizes, got numNeuron=%d inputSize=%d", numNeuron, inputSize)
	}
	if maxSeqLen < 0 {
		return nil, configErr("negative max sequence length %d", maxSeqLen)
	}
	b := &SequenceBuffer{
		numNeuron: numNeuron,
		inputSize: inputSize,
		stride:    int(numNeuronFields)*numNeuron + 2*inputSize,
	}
	b.maxSeqLen = maxSeqLen
	b.arena = make([]float64, b.Slots()*b.stride)
	return b, nil
}

func (b *SequenceBuffer) MaxSeqLen() int { return b.maxSeqLen }

// Slots is maxSeqLen plus the two sentinels.
func (b *SequenceBuffer) Slots() int { return b.maxSeqLen + 2 }

// Footprint is the number of float64 values held by the arena.
func (b *SequenceBuffer) Footprint() int { return cap(b.arena) }

// Resize changes the maximum sequence length. Records at indices that remain
// valid keep their contents; the arena is reallocated so that shrinking
// releases memory.
func (b *SequenceBuffer) Resize(newMaxSeqLen int) error {
	if newMaxSeqLen < 0 {
		return preconditionErr("negative max sequence length %d", newMaxSeqLen)
	}
	if newMaxSeqLen == b.maxSeqLen {
		return nil
	}
	arena := make([]float64, (newMaxSeqLen+2)*b.stride)
	copy(arena, b.arena)
	b.arena = arena
	b.maxSeqLen = newMaxSeqLen
	return nil
}

// ResetStates zeroes slots 0..seqLen+1 and nothing beyond.
func (b *SequenceBuffer) ResetStates(seqLen int) error {
	if err := b.checkSeqLen(seqLen); err != nil {
		return err
	}
	clear(b.arena[:(seqLen+2)*b.stride])
	return nil
}

func (b *SequenceBuffer) checkSeqLen(seqLen int) error {
	if seqLen < 0 || seqLen > b.maxSeqLen {
		return preconditionErr("sequence length %d outside [0, %d]", seqLen, b.maxSeqLen)
	}
	return nil
}

// At returns field f of slot t. The slice aliases the arena.
func (b *SequenceBuffer) At(f Field, t int) []float64 {
	if t < 0 || t >= b.Slots() {
		panic(fmt.Sprintf("ml: timestep %d outside [0, %d]", t, b.Slots()-1))
	}
	var off, n int
	switch {
	case f >= 0 && f < numNeuronFields:
		off, n = int(f)*b.numNeuron, b.numNeuron
	case f >= FieldInput && f < numFields:
		off, n = int(numNeuronFields)*b.numNeuron+int(f-FieldInput)*b.inputSize, b.inputSize
	default:
		panic(fmt.Sprintf("ml: unknown sequence field %d", f))
	}
	base := t*b.stride + off
	return b.arena[base : base+n : base+n]
}

// Slot returns the whole record for timestep t.
func (b *SequenceBuffer) Slot(t int) []float64 {
	if t < 0 || t >= b.Slots() {
		panic(fmt.Sprintf("ml: timestep %d outside [0, %d]", t, b.Slots()-1))
	}
	return b.arena[t*b.stride : (t+1)*b.stride]
}
