package wire

import (
	"fmt"
	"io"
)

// Side-band channel identifiers carried as the first payload byte of a
// pkt-line when side-band-64k is active.
const (
	SidebandData     byte = 0x01
	SidebandProgress byte = 0x02
	SidebandError    byte = 0x03
)

// sidebandChunk caps the data bytes per channel-1 packet, leaving room
// for the channel byte inside the pkt-line payload.
const sidebandChunk = 65515

// WriteSidebandPack writes data as a sequence of channel-1 pkt-lines
// followed by a flush.
func WriteSidebandPack(w io.Writer, data []byte) error {
	for len(data) > 0 {
		n := len(data)
		if n > sidebandChunk {
			n = sidebandChunk
		}
		payload := make([]byte, 1+n)
		payload[0] = SidebandData
		copy(payload[1:], data[:n])
		if err := WritePkt(w, payload); err != nil {
			return fmt.Errorf("write sideband packet: %w", err)
		}
		data = data[n:]
	}
	return WriteFlush(w)
}

// WriteSidebandProgress writes one progress message on channel 2.
func WriteSidebandProgress(w io.Writer, msg string) error {
	payload := append([]byte{SidebandProgress}, msg...)
	return WritePkt(w, payload)
}

// SidebandReader demultiplexes a side-band pkt-line stream into a plain
// data reader. Progress frames go to onProgress when set; an error frame
// fails the read with the remote message.
type SidebandReader struct {
	pkts       *PktReader
	onProgress func(string)
	buf        []byte
	done       bool
}

// NewSidebandReader wraps a pkt-line stream carrying side-band frames.
func NewSidebandReader(r io.Reader, onProgress func(string)) *SidebandReader {
	return &SidebandReader{
		pkts:       NewPktReader(r),
		onProgress: onProgress,
	}
}

func (sr *SidebandReader) Read(p []byte) (int, error) {
	for len(sr.buf) == 0 {
		if sr.done {
			return 0, io.EOF
		}
		payload, flush, err := sr.pkts.Next()
		if err == io.EOF || flush {
			sr.done = true
			return 0, io.EOF
		}
		if err != nil {
			return 0, err
		}
		if len(payload) == 0 {
			return 0, fmt.Errorf("%w: empty sideband frame", ErrProtocol)
		}
		switch payload[0] {
		case SidebandData:
			sr.buf = payload[1:]
		case SidebandProgress:
			if sr.onProgress != nil {
				sr.onProgress(string(payload[1:]))
			}
		case SidebandError:
			return 0, fmt.Errorf("%w: remote error: %s", ErrProtocol, payload[1:])
		default:
			return 0, fmt.Errorf("%w: unknown sideband channel %d", ErrProtocol, payload[0])
		}
	}

	n := copy(p, sr.buf)
	sr.buf = sr.buf[n:]
	return n, nil
}
