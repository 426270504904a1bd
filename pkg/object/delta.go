package object

import (
	"bytes"
	"fmt"
	"io"
)

// Delta instruction stream layout: source size varint, target size varint,
// then COPY (MSB set) and INSERT (MSB clear, non-zero) instructions until
// target-size bytes have been produced.

const (
	// deltaChunkSize is the fixed window the matcher hashes over the source.
	deltaChunkSize = 16

	// maxInsertChunk is the largest literal run one INSERT instruction can
	// carry (7-bit length).
	maxInsertChunk = 127

	// maxCopyChunk is the largest span one COPY instruction can encode with
	// its three size bytes.
	maxCopyChunk = 0xFFFFFF
)

// EncodeVarint encodes v in the low-7-bit little-endian form used by delta
// headers.
func EncodeVarint(v uint64) []byte {
	if v == 0 {
		return []byte{0}
	}
	out := make([]byte, 0, 10)
	for v > 0 {
		b := byte(v & 0x7f)
		v >>= 7
		if v > 0 {
			b |= 0x80
		}
		out = append(out, b)
	}
	return out
}

// DecodeVarint decodes one varint from r.
func DecodeVarint(r io.ByteReader) (uint64, error) {
	var (
		value uint64
		shift uint
	)
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, fmt.Errorf("%w: varint truncated", ErrCorrupt)
		}
		value |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return value, nil
		}
		shift += 7
		if shift > 63 {
			return 0, fmt.Errorf("%w: varint overflow", ErrCorrupt)
		}
	}
}

// ApplyDelta applies a delta instruction stream to base and returns the
// reconstructed target. The stream's source size must match len(base) and
// the output must come out exactly target-size bytes long.
func ApplyDelta(base, delta []byte) ([]byte, error) {
	dr := bytes.NewReader(delta)

	baseSize, err := DecodeVarint(dr)
	if err != nil {
		return nil, fmt.Errorf("delta base size: %w", err)
	}
	if int(baseSize) != len(base) {
		return nil, fmt.Errorf("%w: delta base size mismatch: got %d want %d", ErrCorrupt, baseSize, len(base))
	}
	targetSize, err := DecodeVarint(dr)
	if err != nil {
		return nil, fmt.Errorf("delta target size: %w", err)
	}

	out := make([]byte, 0, targetSize)
	for dr.Len() > 0 {
		cmd, err := dr.ReadByte()
		if err != nil {
			return nil, err
		}
		if cmd&0x80 != 0 {
			offset, size, err := readCopyArgs(dr, cmd)
			if err != nil {
				return nil, err
			}
			if offset+size > int64(len(base)) {
				return nil, fmt.Errorf("%w: delta copy out of bounds", ErrCorrupt)
			}
			out = append(out, base[offset:offset+size]...)
			continue
		}

		if cmd == 0 {
			return nil, fmt.Errorf("%w: zero delta opcode", ErrCorrupt)
		}
		insert := make([]byte, int(cmd))
		if _, err := io.ReadFull(dr, insert); err != nil {
			return nil, fmt.Errorf("%w: delta insert truncated", ErrCorrupt)
		}
		out = append(out, insert...)
	}

	if uint64(len(out)) != targetSize {
		return nil, fmt.Errorf("%w: delta result size mismatch: got %d expected %d", ErrCorrupt, len(out), targetSize)
	}
	return out, nil
}

// readCopyArgs reads the optional offset and size bytes a COPY opcode
// selects. Absent bytes read as zero; a reconstructed size of zero means
// 0x10000.
func readCopyArgs(r io.ByteReader, cmd byte) (int64, int64, error) {
	var offset, size int64
	for i := uint(0); i < 4; i++ {
		if cmd&(1<<i) != 0 {
			b, err := r.ReadByte()
			if err != nil {
				return 0, 0, fmt.Errorf("%w: delta copy offset truncated", ErrCorrupt)
			}
			offset |= int64(b) << (8 * i)
		}
	}
	for i := uint(0); i < 3; i++ {
		if cmd&(1<<(i+4)) != 0 {
			b, err := r.ReadByte()
			if err != nil {
				return 0, 0, fmt.Errorf("%w: delta copy size truncated", ErrCorrupt)
			}
			size |= int64(b) << (8 * i)
		}
	}
	if size == 0 {
		size = 0x10000
	}
	return offset, size, nil
}

// CreateDelta produces a delta stream that rebuilds target from source. The
// matcher indexes fixed 16-byte chunks of the source and greedily extends
// matches at each target position; unmatched bytes accumulate into INSERT
// runs split at 127 bytes.
func CreateDelta(source, target []byte) []byte {
	var out bytes.Buffer
	out.Write(EncodeVarint(uint64(len(source))))
	out.Write(EncodeVarint(uint64(len(target))))

	chunks := make(map[string][]int)
	for i := 0; i+deltaChunkSize <= len(source); i += deltaChunkSize {
		key := string(source[i : i+deltaChunkSize])
		chunks[key] = append(chunks[key], i)
	}

	var insert []byte
	flushInsert := func() {
		for len(insert) > 0 {
			n := len(insert)
			if n > maxInsertChunk {
				n = maxInsertChunk
			}
			out.WriteByte(byte(n))
			out.Write(insert[:n])
			insert = insert[n:]
		}
	}

	pos := 0
	for pos < len(target) {
		bestOff, bestLen := -1, 0
		if pos+deltaChunkSize <= len(target) {
			key := string(target[pos : pos+deltaChunkSize])
			for _, off := range chunks[key] {
				length := deltaChunkSize
				for pos+length < len(target) && off+length < len(source) &&
					target[pos+length] == source[off+length] {
					length++
				}
				if length > bestLen {
					bestOff, bestLen = off, length
				}
			}
		}

		if bestLen >= deltaChunkSize {
			flushInsert()
			writeCopy(&out, bestOff, bestLen)
			pos += bestLen
			continue
		}
		insert = append(insert, target[pos])
		pos++
	}
	flushInsert()
	return out.Bytes()
}

func writeCopy(out *bytes.Buffer, offset, size int) {
	for size > 0 {
		n := size
		if n > maxCopyChunk {
			n = maxCopyChunk
		}

		cmd := byte(0x80)
		var args []byte
		for i := uint(0); i < 4; i++ {
			b := byte(offset >> (8 * i))
			if b != 0 {
				cmd |= 1 << i
				args = append(args, b)
			}
		}
		encSize := n
		if encSize == 0x10000 {
			// A zero-encoded size decodes to 0x10000.
			encSize = 0
		}
		for i := uint(0); i < 3; i++ {
			b := byte(encSize >> (8 * i))
			if b != 0 {
				cmd |= 1 << (i + 4)
				args = append(args, b)
			}
		}
		out.WriteByte(cmd)
		out.Write(args)

		offset += n
		size -= n
	}
}

// ShouldUseDelta reports whether a delta encoding is worth keeping over the
// original bytes.
func ShouldUseDelta(original, delta []byte) bool {
	return len(delta) < len(original)*9/10
}

// DeltaCache is a FIFO map of object hash to its delta encoding against a
// base. When capacity is exceeded the oldest entry is evicted.
type DeltaCache struct {
	capacity int
	order    []Hash
	entries  map[Hash]DeltaCacheEntry
}

// DeltaCacheEntry pairs a delta with the base it applies to.
type DeltaCacheEntry struct {
	BaseHash Hash
	Delta    []byte
}

// DefaultDeltaCacheCapacity bounds a cache constructed with capacity <= 0.
const DefaultDeltaCacheCapacity = 100

// NewDeltaCache creates a bounded FIFO delta cache.
func NewDeltaCache(capacity int) *DeltaCache {
	if capacity <= 0 {
		capacity = DefaultDeltaCacheCapacity
	}
	return &DeltaCache{
		capacity: capacity,
		entries:  make(map[Hash]DeltaCacheEntry),
	}
}

// Put records the delta for h, evicting the oldest entry at capacity.
func (c *DeltaCache) Put(h Hash, base Hash, delta []byte) {
	if _, ok := c.entries[h]; !ok {
		if len(c.order) >= c.capacity {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, h)
	}
	c.entries[h] = DeltaCacheEntry{BaseHash: base, Delta: delta}
}

// Get returns the cached delta for h, if present.
func (c *DeltaCache) Get(h Hash) (DeltaCacheEntry, bool) {
	e, ok := c.entries[h]
	return e, ok
}

// Len reports the number of cached entries.
func (c *DeltaCache) Len() int {
	return len(c.order)
}
