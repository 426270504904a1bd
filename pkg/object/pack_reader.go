package object

import (
	"bytes"
	"context"
	"crypto/sha1"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// PackEntry is one parsed entry of a pack stream, before delta resolution.
type PackEntry struct {
	Type       PackObjectType
	Size       uint64
	Data       []byte
	Offset     uint64 // entry start, from pack start
	BaseOffset uint64 // OFS_DELTA base entry offset
	BaseHash   Hash   // REF_DELTA base object hash
}

// UnpackResult reports what a pack ingestion produced.
type UnpackResult struct {
	// Hashes of all materialized objects, in resolution order.
	Objects []Hash
	// ChecksumOK is false when the trailer SHA-1 did not match. The parser
	// tolerates the mismatch; callers that want it fatal check this flag.
	ChecksumOK bool
	Checksum   Hash
}

// Unpack parses a complete pack stream and materializes every object into
// the store. Deltas are resolved by fixed-point iteration: an OFS delta
// needs its base offset resolved, a REF delta needs its base hash resolved
// either within the pack or from the store. The iteration is bounded; packs
// that still hold unresolved deltas afterwards fail with ErrUnresolvedDelta.
//
// ctx is polled before each resolution pass so a cancelled request stops
// without ref-level side effects (objects already written are content
// addressed and harmless).
func Unpack(ctx context.Context, store *Store, data []byte) (*UnpackResult, error) {
	if len(data) < packHeaderSize+sha1.Size {
		return nil, fmt.Errorf("%w: pack too short: %d bytes", ErrCorrupt, len(data))
	}

	payload := data[:len(data)-sha1.Size]
	trailer := data[len(data)-sha1.Size:]
	sum := sha1.Sum(payload)
	checksumOK := bytes.Equal(sum[:], trailer)

	header, err := UnmarshalPackHeader(payload[:packHeaderSize])
	if err != nil {
		return nil, err
	}

	// First pass: index every entry by pack offset.
	entries := make([]*PackEntry, 0, header.NumObjects)
	offset := packHeaderSize
	for i := uint32(0); i < header.NumObjects; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry, n, err := readPackEntry(payload, offset)
		if err != nil {
			return nil, fmt.Errorf("pack entry %d: %w", i, err)
		}
		entries = append(entries, entry)
		offset += n
	}
	if offset != len(payload) {
		return nil, fmt.Errorf("%w: pack has %d trailing undecoded bytes", ErrCorrupt, len(payload)-offset)
	}

	result := &UnpackResult{
		ChecksumOK: checksumOK,
		Checksum:   Hash(BytesToHex(trailer)),
	}

	// Second pass: resolve deltas iteratively and write objects.
	type resolved struct {
		objType ObjectType
		data    []byte
	}
	byOffset := make(map[uint64]resolved, len(entries))
	byHash := make(map[Hash]resolved, len(entries))
	done := make([]bool, len(entries))
	remaining := len(entries)

	materialize := func(e *PackEntry, objType ObjectType, content []byte) error {
		h, err := store.Write(objType, content)
		if err != nil {
			return err
		}
		r := resolved{objType: objType, data: content}
		byOffset[e.Offset] = r
		byHash[h] = r
		result.Objects = append(result.Objects, h)
		return nil
	}

	for pass := 0; pass < maxDeltaResolvePasses && remaining > 0; pass++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		progressed := false
		for i, e := range entries {
			if done[i] {
				continue
			}
			switch e.Type {
			case PackCommit, PackTree, PackBlob, PackTag:
				objType, err := e.Type.ObjectType()
				if err != nil {
					return nil, err
				}
				if err := materialize(e, objType, e.Data); err != nil {
					return nil, err
				}
			case PackOfsDelta:
				base, ok := byOffset[e.BaseOffset]
				if !ok {
					continue
				}
				content, err := ApplyDelta(base.data, e.Data)
				if err != nil {
					return nil, fmt.Errorf("ofs-delta at %d: %w", e.Offset, err)
				}
				if err := materialize(e, base.objType, content); err != nil {
					return nil, err
				}
			case PackRefDelta:
				base, ok := byHash[e.BaseHash]
				if !ok {
					objType, content, err := store.Read(e.BaseHash)
					if err != nil {
						continue
					}
					base = resolved{objType: objType, data: content}
				}
				content, err := ApplyDelta(base.data, e.Data)
				if err != nil {
					return nil, fmt.Errorf("ref-delta at %d: %w", e.Offset, err)
				}
				if err := materialize(e, base.objType, content); err != nil {
					return nil, err
				}
			default:
				return nil, fmt.Errorf("%w: pack entry type %d", ErrCorrupt, e.Type)
			}
			done[i] = true
			remaining--
			progressed = true
		}
		if !progressed {
			break
		}
	}
	if remaining > 0 {
		return nil, fmt.Errorf("%w: %d entries left after %d passes", ErrUnresolvedDelta, remaining, maxDeltaResolvePasses)
	}

	return result, nil
}

// readPackEntry decodes one entry starting at off, returning the entry and
// the total bytes it occupies. The zlib reader reports consumed input, which
// is the only reliable way to find where the compressed payload ends.
func readPackEntry(payload []byte, off int) (*PackEntry, int, error) {
	objType, size, n, err := decodePackEntryHeader(payload[off:])
	if err != nil {
		return nil, 0, err
	}
	pos := off + n

	entry := &PackEntry{
		Type:   objType,
		Size:   size,
		Offset: uint64(off),
	}

	switch objType {
	case PackOfsDelta:
		distance, dn, err := decodeOfsDeltaDistance(payload[pos:])
		if err != nil {
			return nil, 0, err
		}
		pos += dn
		if distance > uint64(off) {
			return nil, 0, fmt.Errorf("%w: ofs-delta distance %d exceeds entry offset %d", ErrCorrupt, distance, off)
		}
		entry.BaseOffset = uint64(off) - distance
	case PackRefDelta:
		if pos+20 > len(payload) {
			return nil, 0, fmt.Errorf("%w: ref-delta base hash truncated", ErrCorrupt)
		}
		h, err := RawToHash(payload[pos : pos+20])
		if err != nil {
			return nil, 0, err
		}
		entry.BaseHash = h
		pos += 20
	}

	if pos >= len(payload) {
		return nil, 0, fmt.Errorf("%w: missing compressed payload", ErrCorrupt)
	}
	sub := bytes.NewReader(payload[pos:])
	zr, err := zlib.NewReader(sub)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: zlib reader: %v", ErrCorrupt, err)
	}
	raw, err := io.ReadAll(zr)
	if err != nil {
		_ = zr.Close()
		return nil, 0, fmt.Errorf("%w: decompress: %v", ErrCorrupt, err)
	}
	if err := zr.Close(); err != nil {
		return nil, 0, fmt.Errorf("%w: close zlib stream: %v", ErrCorrupt, err)
	}
	if uint64(len(raw)) != size {
		return nil, 0, fmt.Errorf("%w: size mismatch header=%d decoded=%d", ErrCorrupt, size, len(raw))
	}
	consumed := len(payload[pos:]) - sub.Len()
	pos += consumed

	entry.Data = raw
	return entry, pos - off, nil
}
