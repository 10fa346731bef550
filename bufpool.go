package postcard

import (
	"bytes"
	"sync"
)

// bytesBufPool reuses buffers for staging encoded map keys before they are sorted.
var bytesBufPool = sync.Pool{
	New: func() any {
		return bytes.NewBuffer(make([]byte, 0, 4096))
	},
}

const CHUNK_SIZE = 32 * 1024

// scratchPool holds scratch buffers for streaming decodes whose results are copied out.
var scratchPool = sync.Pool{
	New: func() any {
		b := make([]byte, CHUNK_SIZE)
		return &b
	},
}
