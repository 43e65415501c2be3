package storage

import (
	"encoding/binary"

	"github.com/Frederickfan/Database-management-system/common"
)

// Bitmap is a view over a byte slice that addresses individual bits. It does not own the bytes; heap pages use
// it over their slot-allocation region.
type Bitmap struct {
	data    []byte
	numBits int
}

// BitmapBytes returns the 8-byte aligned number of bytes needed to hold numBits.
func BitmapBytes(numBits int) int {
	return common.Align8((numBits + 7) / 8)
}

// AsBitmap creates a Bitmap view over data, which must hold at least BitmapBytes(numBits) bytes.
func AsBitmap(data []byte, numBits int) Bitmap {
	common.Assert(len(data) >= BitmapBytes(numBits), "bitmap buffer too small")
	return Bitmap{data: data[:BitmapBytes(numBits)], numBits: numBits}
}

// SetBit sets the bit at index i and returns its previous value.
func (b *Bitmap) SetBit(i int, on bool) (originalValue bool) {
	common.Assert(i >= 0 && i < b.numBits, "bit %d out of bounds", i)
	mask := byte(1) << uint(i%8)
	originalValue = b.data[i/8]&mask != 0
	if on {
		b.data[i/8] |= mask
	} else {
		b.data[i/8] &^= mask
	}
	return originalValue
}

func (b *Bitmap) LoadBit(i int) bool {
	common.Assert(i >= 0 && i < b.numBits, "bit %d out of bounds", i)
	return b.data[i/8]&(byte(1)<<uint(i%8)) != 0
}

// FindFirstZero returns the index of the first unset bit at or after start, or -1 if every such bit is set.
// Full 64-bit words are skipped without inspecting individual bits.
func (b *Bitmap) FindFirstZero(start int) int {
	for i := start; i < b.numBits; {
		if i%64 == 0 && i+64 <= b.numBits && binary.LittleEndian.Uint64(b.data[i/8:]) == ^uint64(0) {
			i += 64
			continue
		}
		if !b.LoadBit(i) {
			return i
		}
		i++
	}
	return -1
}
