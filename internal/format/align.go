package format

// Align8 returns n aligned up to the next 8-byte boundary.
//
// Example:
//
//	Align8(1)  = 8
//	Align8(8)  = 8
//	Align8(9)  = 16
func Align8(n int) int {
	return (n + BlockAlignmentMask) & ^BlockAlignmentMask
}

// AlignChunk returns n aligned up to the next chunk boundary.
//
// Example:
//
//	AlignChunk(1)    = 4096
//	AlignChunk(4096) = 4096
//	AlignChunk(4097) = 8192
func AlignChunk(n int) int {
	return (n + ChunkMask) & ^ChunkMask
}

// ChunkOf returns the index of the chunk containing off.
func ChunkOf(off int) int {
	return off / ChunkSize
}

// ChunksForBytes returns how many whole chunks are needed to hold n bytes.
func ChunksForBytes(n int) int {
	return AlignChunk(n) / ChunkSize
}

// SizeClass maps an aligned block size to its free-list slot.
// Sizes outside [MinBlockSize, MaxSmallBlockSize] return -1.
func SizeClass(blockSize int) int {
	if blockSize < MinBlockSize || blockSize > MaxSmallBlockSize {
		return -1
	}
	return (blockSize - MinBlockSize) / BlockAlignment
}

// ClassSize is the inverse of SizeClass.
func ClassSize(class int) int {
	return MinBlockSize + class*BlockAlignment
}
