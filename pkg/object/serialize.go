package object

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Tree
// ---------------------------------------------------------------------------

// MarshalTree serializes a TreeObj to the canonical Git tree format: for each
// entry "<mode> <name>\0<20-byte hash>", entries sorted by name. Sorting here
// keeps the hash deterministic regardless of insertion order.
func MarshalTree(tr *TreeObj) ([]byte, error) {
	sorted := make([]TreeEntry, len(tr.Entries))
	copy(sorted, tr.Entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})

	var buf bytes.Buffer
	for _, e := range sorted {
		raw, err := HashToRaw(e.Hash)
		if err != nil {
			return nil, fmt.Errorf("marshal tree entry %q: %w", e.Name, err)
		}
		mode := e.Mode
		if mode == "" {
			mode = TreeModeFile
		}
		buf.WriteString(mode)
		buf.WriteByte(' ')
		buf.WriteString(e.Name)
		buf.WriteByte(0)
		buf.Write(raw)
	}
	return buf.Bytes(), nil
}

// UnmarshalTree parses the canonical Git tree format.
func UnmarshalTree(data []byte) (*TreeObj, error) {
	tr := &TreeObj{}
	rest := data
	for len(rest) > 0 {
		sp := bytes.IndexByte(rest, ' ')
		if sp < 0 {
			return nil, fmt.Errorf("%w: tree entry missing mode separator", ErrCorrupt)
		}
		mode := string(rest[:sp])
		rest = rest[sp+1:]

		nul := bytes.IndexByte(rest, 0)
		if nul < 0 {
			return nil, fmt.Errorf("%w: tree entry missing name terminator", ErrCorrupt)
		}
		name := string(rest[:nul])
		rest = rest[nul+1:]

		if len(rest) < 20 {
			return nil, fmt.Errorf("%w: tree entry %q truncated hash", ErrCorrupt, name)
		}
		h, err := RawToHash(rest[:20])
		if err != nil {
			return nil, fmt.Errorf("%w: tree entry %q: bad hash", ErrCorrupt, name)
		}
		rest = rest[20:]

		if !validTreeMode(mode) {
			return nil, fmt.Errorf("%w: tree entry %q: unknown mode %q", ErrCorrupt, name, mode)
		}
		tr.Entries = append(tr.Entries, TreeEntry{Mode: mode, Name: name, Hash: h})
	}
	return tr, nil
}

func validTreeMode(mode string) bool {
	switch mode {
	case TreeModeDir, TreeModeFile, TreeModeExecutable, TreeModeSymlink:
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// Commit
// ---------------------------------------------------------------------------

// MarshalCommit serializes a CommitObj to the canonical Git commit format:
//
//	tree H
//	parent H        (zero or more)
//	author N <e> T TZ
//	committer N <e> T TZ
//
//	message
func MarshalCommit(c *CommitObj) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", c.TreeHash)
	for _, p := range c.Parents {
		fmt.Fprintf(&buf, "parent %s\n", p)
	}
	fmt.Fprintf(&buf, "author %s %d %s\n", c.Author.Name, c.Author.When, tzOrUTC(c.Author.TZ))
	fmt.Fprintf(&buf, "committer %s %d %s\n", c.Committer.Name, c.Committer.When, tzOrUTC(c.Committer.TZ))
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	return buf.Bytes()
}

func tzOrUTC(tz string) string {
	if strings.TrimSpace(tz) == "" {
		return "+0000"
	}
	return tz
}

// UnmarshalCommit parses the canonical Git commit format.
func UnmarshalCommit(data []byte) (*CommitObj, error) {
	idx := bytes.Index(data, []byte("\n\n"))
	if idx < 0 {
		return nil, fmt.Errorf("%w: commit missing header/message separator", ErrCorrupt)
	}
	header := string(data[:idx])
	message := string(data[idx+2:])

	c := &CommitObj{Message: message}
	for _, line := range strings.Split(header, "\n") {
		key, val, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("%w: commit header line %q", ErrCorrupt, line)
		}
		switch key {
		case "tree":
			c.TreeHash = Hash(val)
		case "parent":
			c.Parents = append(c.Parents, Hash(val))
		case "author":
			ident, err := parseIdent(val)
			if err != nil {
				return nil, fmt.Errorf("%w: commit author: %v", ErrCorrupt, err)
			}
			c.Author = ident
		case "committer":
			ident, err := parseIdent(val)
			if err != nil {
				return nil, fmt.Errorf("%w: commit committer: %v", ErrCorrupt, err)
			}
			c.Committer = ident
		default:
			// Unknown headers (gpgsig and friends) are preserved in spirit by
			// being tolerated; their content is not modeled.
		}
	}
	if c.TreeHash == "" {
		return nil, fmt.Errorf("%w: commit missing tree header", ErrCorrupt)
	}
	return c, nil
}

// parseIdent splits "Name <email> 1234567890 +0000" into its parts. The
// name keeps the "<email>" portion attached since callers treat the pair as
// one identity string. A bare name without "<email>" is accepted too.
func parseIdent(s string) (Ident, error) {
	end := strings.LastIndexByte(s, '>')
	if end < 0 {
		// A bare name is followed directly by the timestamp and zone.
		tzAt := strings.LastIndexByte(s, ' ')
		whenAt := -1
		if tzAt > 0 {
			whenAt = strings.LastIndexByte(s[:tzAt], ' ')
		}
		if whenAt <= 0 {
			return Ident{}, fmt.Errorf("ident %q missing email", s)
		}
		end = whenAt - 1
	}
	name := s[:end+1]
	rest := strings.TrimSpace(s[end+1:])
	if rest == "" {
		return Ident{Name: name, TZ: "+0000"}, nil
	}
	fields := strings.Fields(rest)
	ident := Ident{Name: name, TZ: "+0000"}
	when, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return Ident{}, fmt.Errorf("ident %q bad timestamp: %v", s, err)
	}
	ident.When = when
	if len(fields) > 1 {
		ident.TZ = fields[1]
	}
	return ident, nil
}

// ---------------------------------------------------------------------------
// Tag
// ---------------------------------------------------------------------------

// MarshalTag serializes an annotated tag:
//
//	object H
//	type T
//	tag NAME
//	tagger N <e> T TZ
//
//	message
func MarshalTag(t *TagObj) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "object %s\n", t.TargetHash)
	fmt.Fprintf(&buf, "type %s\n", t.TargetType)
	fmt.Fprintf(&buf, "tag %s\n", t.Name)
	fmt.Fprintf(&buf, "tagger %s %d %s\n", t.Tagger.Name, t.Tagger.When, tzOrUTC(t.Tagger.TZ))
	buf.WriteByte('\n')
	buf.WriteString(t.Message)
	return buf.Bytes()
}

// UnmarshalTag parses an annotated tag object.
func UnmarshalTag(data []byte) (*TagObj, error) {
	idx := bytes.Index(data, []byte("\n\n"))
	if idx < 0 {
		return nil, fmt.Errorf("%w: tag missing header/message separator", ErrCorrupt)
	}
	header := string(data[:idx])
	message := string(data[idx+2:])

	t := &TagObj{Message: message}
	for _, line := range strings.Split(header, "\n") {
		key, val, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("%w: tag header line %q", ErrCorrupt, line)
		}
		switch key {
		case "object":
			t.TargetHash = Hash(val)
		case "type":
			t.TargetType = ObjectType(val)
		case "tag":
			t.Name = val
		case "tagger":
			ident, err := parseIdent(val)
			if err != nil {
				return nil, fmt.Errorf("%w: tag tagger: %v", ErrCorrupt, err)
			}
			t.Tagger = ident
		}
	}
	if t.TargetHash == "" {
		return nil, fmt.Errorf("%w: tag missing object header", ErrCorrupt)
	}
	return t, nil
}
