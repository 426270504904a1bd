package wire

import (
	"fmt"
	"io"
	"strings"

	"github.com/grithq/grit/pkg/object"
)

// Smart-HTTP service names.
const (
	ServiceUploadPack  = "git-upload-pack"
	ServiceReceivePack = "git-receive-pack"
)

// Capability strings advertised per service.
const (
	UploadCaps  = "multi_ack_detailed side-band-64k thin-pack ofs-delta"
	ReceiveCaps = "report-status delete-refs ofs-delta"
)

// AdvertisedRef is one ref line of a service advertisement.
type AdvertisedRef struct {
	Name string
	Hash object.Hash
}

// Advert is a parsed service advertisement.
type Advert struct {
	Refs []AdvertisedRef
	Caps string
}

// RefHash returns the advertised hash for name, or the zero value.
func (a *Advert) RefHash(name string) (object.Hash, bool) {
	for _, r := range a.Refs {
		if r.Name == name {
			return r.Hash, true
		}
	}
	return "", false
}

// WriteAdvertisement emits a service advertisement: the service banner, a
// flush, ref lines with capabilities attached to the first, and a final
// flush. An empty ref list under git-receive-pack advertises the
// capabilities^{} placeholder so clients can create the first ref.
func WriteAdvertisement(w io.Writer, service string, refs []AdvertisedRef, caps string) error {
	if err := WritePktString(w, fmt.Sprintf("# service=%s\n", service)); err != nil {
		return err
	}
	if err := WriteFlush(w); err != nil {
		return err
	}

	if len(refs) == 0 {
		if service == ServiceReceivePack {
			line := fmt.Sprintf("%s capabilities^{}\x00%s\n", object.ZeroHash, caps)
			if err := WritePktString(w, line); err != nil {
				return err
			}
		}
		return WriteFlush(w)
	}

	for i, r := range refs {
		var line string
		if i == 0 {
			line = fmt.Sprintf("%s %s\x00%s\n", r.Hash, r.Name, caps)
		} else {
			line = fmt.Sprintf("%s %s\n", r.Hash, r.Name)
		}
		if err := WritePktString(w, line); err != nil {
			return err
		}
	}
	return WriteFlush(w)
}

// ParseAdvertisement consumes a service advertisement stream, checking the
// banner names the expected service.
func ParseAdvertisement(r io.Reader, service string) (*Advert, error) {
	pkts := NewPktReader(r)

	banner, flush, err := pkts.NextString()
	if err != nil {
		return nil, err
	}
	if flush || banner != "# service="+service {
		return nil, fmt.Errorf("%w: unexpected advertisement banner %q", ErrProtocol, banner)
	}
	if _, flush, err = pkts.Next(); err != nil {
		return nil, err
	} else if !flush {
		return nil, fmt.Errorf("%w: missing flush after banner", ErrProtocol)
	}

	advert := &Advert{}
	first := true
	for {
		line, flush, err := pkts.NextString()
		if err == io.EOF || flush {
			break
		}
		if err != nil {
			return nil, err
		}

		caps := ""
		if nul := strings.IndexByte(line, 0); nul >= 0 {
			caps = line[nul+1:]
			line = line[:nul]
		}
		if first {
			advert.Caps = caps
			first = false
		}

		hash, name, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("%w: malformed ref line %q", ErrProtocol, line)
		}
		if err := object.ValidateHash(object.Hash(hash)); err != nil {
			return nil, fmt.Errorf("%w: ref %q: %v", ErrProtocol, name, err)
		}
		if name == "capabilities^{}" {
			continue
		}
		advert.Refs = append(advert.Refs, AdvertisedRef{Name: name, Hash: object.Hash(hash)})
	}
	return advert, nil
}

// Command is one ref update of a receive-pack request. A zero New hash
// deletes the ref.
type Command struct {
	Old  object.Hash
	New  object.Hash
	Name string
}

// IsDelete reports whether the command removes the ref.
func (c Command) IsDelete() bool {
	return c.New == object.ZeroHash
}

// WriteCommands emits receive-pack command pkt-lines followed by a flush.
// The first command carries the client capability list.
func WriteCommands(w io.Writer, commands []Command, caps string) error {
	for i, c := range commands {
		line := fmt.Sprintf("%s %s %s", c.Old, c.New, c.Name)
		if i == 0 && caps != "" {
			line += "\x00" + caps
		}
		line += "\n"
		if err := WritePktString(w, line); err != nil {
			return err
		}
	}
	return WriteFlush(w)
}

// ParseCommand decodes one receive-pack command line, dropping any
// capability suffix after the NUL.
func ParseCommand(line string) (Command, error) {
	if nul := strings.IndexByte(line, 0); nul >= 0 {
		line = line[:nul]
	}
	line = strings.TrimSuffix(line, "\n")

	fields := strings.Fields(line)
	if len(fields) != 3 {
		return Command{}, fmt.Errorf("%w: malformed command line %q", ErrProtocol, line)
	}
	old, newHash := object.Hash(fields[0]), object.Hash(fields[1])
	if err := object.ValidateHash(old); err != nil {
		return Command{}, fmt.Errorf("%w: command old hash: %v", ErrProtocol, err)
	}
	if err := object.ValidateHash(newHash); err != nil {
		return Command{}, fmt.Errorf("%w: command new hash: %v", ErrProtocol, err)
	}
	return Command{Old: old, New: newHash, Name: fields[2]}, nil
}
