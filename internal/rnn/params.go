package rnn

// ParamSize computes the flat element count of the opaque weight/bias
// buffer for one recurrent model.
//
// Per layer the buffer holds, for each of the g gates, an input projection,
// a recurrent projection, and two bias vectors (input-side and
// recurrent-side, the "+2" terms). The first layer projects input_size
// features; every higher layer projects num_units. Bidirectional models
// double the whole buffer.
//
// The produced buffer is handed to the compute engine as an opaquely
// laid-out region, so this count must match the engine's packed layout
// exactly (see the cpu engine's layerParams).
//
// Returns -1 for an unrecognized mode; callers must treat that as a fatal
// configuration error.
func ParamSize(mode Mode, dirCount, inputSize, numUnits, numLayers int) int64 {
	g := mode.GateCount()
	if g < 0 {
		return -1
	}
	firstLayer := int64(g) * int64(numUnits) * int64(inputSize+numUnits+2)
	higherLayers := int64(g) * int64(numLayers-1) * int64(numUnits) * int64(2*numUnits+2)
	return (firstLayer + higherLayers) * int64(dirCount)
}
