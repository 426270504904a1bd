package index

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"sort"
	"strconv"

	"github.com/grithq/grit/pkg/object"
)

const (
	dircVersion    = 2
	dircHeaderSize = 12
	dircFixedSize  = 62

	// flagsNameMask caps the name length recorded in the flags word.
	flagsNameMask = 0xFFF
)

var dircMagic = [4]byte{'D', 'I', 'R', 'C'}

// Marshal serializes the index to the DIRC v2 binary format: a 12-byte
// header, big-endian entries sorted by path, and a SHA-1 trailer.
//
// Entry padding follows the running offset within the entries region:
// after the fixed section and the name, `offset mod 8` NUL bytes are
// written. A one-byte path in the first entry therefore pads with seven
// NULs at offset 63.
func Marshal(ix *Index) ([]byte, error) {
	var buf bytes.Buffer
	header := make([]byte, dircHeaderSize)
	copy(header[:4], dircMagic[:])
	binary.BigEndian.PutUint32(header[4:8], dircVersion)
	binary.BigEndian.PutUint32(header[8:12], uint32(len(ix.entries)))
	buf.Write(header)

	offset := 0 // running offset inside the entries region
	for _, e := range ix.entries {
		fixed, err := marshalEntryFixed(e)
		if err != nil {
			return nil, err
		}
		buf.Write(fixed)
		buf.WriteString(e.Path)
		offset += dircFixedSize + len(e.Path)

		pad := offset % 8
		for i := 0; i < pad; i++ {
			buf.WriteByte(0)
		}
		offset += pad
	}

	sum := sha1.Sum(buf.Bytes())
	buf.Write(sum[:])
	return buf.Bytes(), nil
}

func marshalEntryFixed(e Entry) ([]byte, error) {
	mode, err := parseModeOctal(e.Mode)
	if err != nil {
		return nil, fmt.Errorf("entry %q: %w", e.Path, err)
	}
	raw, err := object.HashToRaw(e.Hash)
	if err != nil {
		return nil, fmt.Errorf("entry %q: %w", e.Path, err)
	}

	sec := uint32(e.MTimeMS / 1000)
	nsec := uint32(e.MTimeMS % 1000 * 1e6)

	out := make([]byte, dircFixedSize)
	binary.BigEndian.PutUint32(out[0:4], sec)    // ctime seconds
	binary.BigEndian.PutUint32(out[4:8], nsec)   // ctime nanoseconds
	binary.BigEndian.PutUint32(out[8:12], sec)   // mtime seconds
	binary.BigEndian.PutUint32(out[12:16], nsec) // mtime nanoseconds
	// dev, ino, uid, gid stay zero: the staging model tracks content,
	// not inode identity.
	binary.BigEndian.PutUint32(out[24:28], mode)
	binary.BigEndian.PutUint32(out[36:40], e.Size)
	copy(out[40:60], raw)

	nameLen := len(e.Path)
	if nameLen > flagsNameMask {
		nameLen = flagsNameMask
	}
	binary.BigEndian.PutUint16(out[60:62], uint16(nameLen))
	return out, nil
}

// Unmarshal parses a DIRC v2 byte stream, validating the trailer checksum.
func Unmarshal(data []byte) (*Index, error) {
	if len(data) < dircHeaderSize+sha1.Size {
		return nil, fmt.Errorf("%w: %d bytes is too short", ErrCorrupt, len(data))
	}

	payload := data[:len(data)-sha1.Size]
	trailer := data[len(data)-sha1.Size:]
	sum := sha1.Sum(payload)
	if !bytes.Equal(sum[:], trailer) {
		return nil, fmt.Errorf("%w: trailer checksum mismatch", ErrCorrupt)
	}

	if !bytes.Equal(payload[:4], dircMagic[:]) {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorrupt, payload[:4])
	}
	version := binary.BigEndian.Uint32(payload[4:8])
	if version != dircVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, version)
	}
	count := binary.BigEndian.Uint32(payload[8:12])

	ix := New()
	body := payload[dircHeaderSize:]
	offset := 0
	for i := uint32(0); i < count; i++ {
		e, n, err := unmarshalEntry(body[offset:], offset)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		ix.entries = append(ix.entries, e)
		offset += n
	}
	if offset != len(body) {
		return nil, fmt.Errorf("%w: %d trailing bytes after %d entries", ErrCorrupt, len(body)-offset, count)
	}

	if !sort.SliceIsSorted(ix.entries, func(a, b int) bool {
		return ix.entries[a].Path < ix.entries[b].Path
	}) {
		return nil, fmt.Errorf("%w: entries out of order", ErrCorrupt)
	}
	return ix, nil
}

// unmarshalEntry decodes one entry beginning at regionOffset within the
// entries region, returning the entry and bytes consumed including padding.
func unmarshalEntry(data []byte, regionOffset int) (Entry, int, error) {
	if len(data) < dircFixedSize {
		return Entry{}, 0, fmt.Errorf("%w: fixed section truncated", ErrCorrupt)
	}

	mtimeSec := binary.BigEndian.Uint32(data[8:12])
	mtimeNsec := binary.BigEndian.Uint32(data[12:16])
	mode := binary.BigEndian.Uint32(data[24:28])
	size := binary.BigEndian.Uint32(data[36:40])
	h, err := object.RawToHash(data[40:60])
	if err != nil {
		return Entry{}, 0, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	flags := binary.BigEndian.Uint16(data[60:62])
	nameLen := int(flags & flagsNameMask)

	pos := dircFixedSize
	if pos+nameLen > len(data) {
		return Entry{}, 0, fmt.Errorf("%w: name truncated", ErrCorrupt)
	}
	name := string(data[pos : pos+nameLen])
	pos += nameLen

	pad := (regionOffset + pos) % 8
	if pos+pad > len(data) {
		return Entry{}, 0, fmt.Errorf("%w: padding truncated", ErrCorrupt)
	}
	pos += pad

	return Entry{
		Path:    name,
		Hash:    h,
		Mode:    formatModeOctal(mode),
		Size:    size,
		MTimeMS: uint64(mtimeSec)*1000 + uint64(mtimeNsec)/1e6,
	}, pos, nil
}

func parseModeOctal(mode string) (uint32, error) {
	if mode == "" {
		mode = object.TreeModeFile
	}
	v, err := strconv.ParseUint(mode, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid mode %q", mode)
	}
	return uint32(v), nil
}

func formatModeOctal(mode uint32) string {
	return strconv.FormatUint(uint64(mode), 8)
}
