package merge

import (
	"bytes"
	"sort"
	"strings"

	"github.com/grithq/grit/pkg/object"
)

// binarySniffLen bounds how much of a blob is scanned for NUL bytes.
const binarySniffLen = 8 * 1024

// IsBinary reports whether data looks binary: a NUL byte anywhere in the
// first 8 KiB.
func IsBinary(data []byte) bool {
	n := len(data)
	if n > binarySniffLen {
		n = binarySniffLen
	}
	return bytes.IndexByte(data[:n], 0) >= 0
}

// Lines merges ours and theirs against base line by line. The three inputs
// are split on '\n' and walked as index-aligned triples: a unanimous line
// is kept, a line changed on one side takes that side, and a line changed
// on both sides becomes a conflict hunk
//
//	<<<<<<< ours
//	<our line>
//	=======
//	<their line>
//	>>>>>>> theirs
//
// The second return is false when at least one hunk was emitted.
func Lines(base, ours, theirs []byte) ([]byte, bool) {
	baseLines := splitLines(base)
	ourLines := splitLines(ours)
	theirLines := splitLines(theirs)

	n := len(baseLines)
	if len(ourLines) > n {
		n = len(ourLines)
	}
	if len(theirLines) > n {
		n = len(theirLines)
	}

	var out strings.Builder
	clean := true
	for i := 0; i < n; i++ {
		b, _ := lineAt(baseLines, i)
		o, inOurs := lineAt(ourLines, i)
		t, inTheirs := lineAt(theirLines, i)

		switch {
		case inOurs && inTheirs && o == t:
			writeLine(&out, o)
		case o == b && inTheirs:
			writeLine(&out, t)
		case t == b && inOurs:
			writeLine(&out, o)
		case o == b && !inTheirs:
			// theirs dropped the tail; ours agrees with base, so drop it
		case t == b && !inOurs:
			// symmetric tail drop
		default:
			clean = false
			out.WriteString("<<<<<<< ours\n")
			if inOurs {
				writeLine(&out, o)
			}
			out.WriteString("=======\n")
			if inTheirs {
				writeLine(&out, t)
			}
			out.WriteString(">>>>>>> theirs\n")
		}
	}
	return []byte(out.String()), clean
}

// splitLines decomposes data into lines without trailing newlines. A
// trailing '\n' does not produce an empty final line.
func splitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	s := string(data)
	s = strings.TrimSuffix(s, "\n")
	return strings.Split(s, "\n")
}

func lineAt(lines []string, i int) (string, bool) {
	if i < len(lines) {
		return lines[i], true
	}
	return "", false
}

func writeLine(out *strings.Builder, line string) {
	out.WriteString(line)
	out.WriteByte('\n')
}

// unionPaths returns every path present in any input map, sorted.
func unionPaths(sets ...map[string]object.FlatEntry) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, set := range sets {
		for p := range set {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}
