package backend

import "github.com/hupe1980/ngramlm/internal/bitpack"

func writeBits(data []byte, off uint64, width uint8, v uint64) {
	bitpack.Write(data, off, width, v)
}
