package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/grithq/grit/pkg/object"
	"github.com/grithq/grit/pkg/repo"
	"github.com/grithq/grit/pkg/storage"
	"github.com/grithq/grit/pkg/wire"
)

// handleHead serves the raw HEAD value.
func (s *Server) handleHead(w http.ResponseWriter, rp *repo.Repo) {
	head, err := rp.Head()
	if err != nil {
		writeServerError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	if strings.HasPrefix(head, "refs/") {
		fmt.Fprintf(w, "ref: %s\n", head)
		return
	}
	fmt.Fprintf(w, "%s\n", head)
}

// advertisedRefs lists the refs a service advertisement carries: HEAD
// first when it resolves, then every ref sorted by name.
func advertisedRefs(rp *repo.Repo) ([]wire.AdvertisedRef, error) {
	refs, err := rp.ListRefs("")
	if err != nil {
		return nil, err
	}

	var out []wire.AdvertisedRef
	if h, err := rp.ResolveRef("HEAD"); err == nil {
		out = append(out, wire.AdvertisedRef{Name: "HEAD", Hash: h})
	} else if !storage.IsNotFound(err) {
		return nil, err
	}
	for _, name := range repo.SortedRefNames(refs) {
		out = append(out, wire.AdvertisedRef{Name: name, Hash: refs[name]})
	}
	return out, nil
}

func (s *Server) handleInfoRefs(w http.ResponseWriter, r *http.Request, rp *repo.Repo) {
	service := r.URL.Query().Get("service")
	var caps string
	switch service {
	case wire.ServiceUploadPack:
		caps = wire.UploadCaps
	case wire.ServiceReceivePack:
		caps = wire.ReceiveCaps
	default:
		writeBadRequest(w, fmt.Errorf("unsupported service %q", service))
		return
	}

	refs, err := advertisedRefs(rp)
	if err != nil {
		writeServerError(w, err)
		return
	}

	w.Header().Set("Content-Type", fmt.Sprintf("application/x-%s-advertisement", service))
	if err := wire.WriteAdvertisement(w, service, refs, caps); err != nil {
		s.log.WithField("service", service).WithError(err).Warn("write advertisement")
	}
}

// parseUploadRequest reads want and have lines up to the done
// terminator, tolerating capability text after the first want hash.
func parseUploadRequest(ctx context.Context, body io.Reader) (wants, haves []object.Hash, err error) {
	pkts := wire.NewPktReader(body)
	for {
		if err := ctxErr(ctx); err != nil {
			return nil, nil, err
		}
		line, flush, err := pkts.NextString()
		if err == io.EOF {
			return nil, nil, fmt.Errorf("%w: missing done line", wire.ErrProtocol)
		}
		if err != nil {
			return nil, nil, err
		}
		if flush {
			continue
		}
		switch {
		case line == "done":
			if len(wants) == 0 {
				return nil, nil, fmt.Errorf("%w: no want lines", wire.ErrProtocol)
			}
			return wants, haves, nil
		case strings.HasPrefix(line, "want "):
			h, err := hashField(strings.TrimPrefix(line, "want "))
			if err != nil {
				return nil, nil, err
			}
			wants = append(wants, h)
		case strings.HasPrefix(line, "have "):
			h, err := hashField(strings.TrimPrefix(line, "have "))
			if err != nil {
				return nil, nil, err
			}
			haves = append(haves, h)
		default:
			return nil, nil, fmt.Errorf("%w: unexpected line %q", wire.ErrProtocol, line)
		}
	}
}

// hashField takes the leading hash off a line, dropping any capability
// suffix.
func hashField(s string) (object.Hash, error) {
	hash, _, _ := strings.Cut(s, " ")
	h := object.Hash(hash)
	if err := object.ValidateHash(h); err != nil {
		return "", fmt.Errorf("%w: %v", wire.ErrProtocol, err)
	}
	return h, nil
}

// collectUploadObjects walks the commit graph from wants, stopping at
// haves, and gathers each commit with its tree closure.
func collectUploadObjects(ctx context.Context, store *object.Store, wants, haves []object.Hash) ([]object.Hash, error) {
	stop := make(map[object.Hash]struct{}, len(haves))
	for _, h := range haves {
		stop[h] = struct{}{}
	}

	var out []object.Hash
	included := make(map[object.Hash]struct{})
	queue := append([]object.Hash(nil), wants...)
	visited := make(map[object.Hash]struct{})

	for len(queue) > 0 {
		if err := ctxErr(ctx); err != nil {
			return nil, err
		}
		cur := queue[0]
		queue = queue[1:]
		if _, ok := visited[cur]; ok {
			continue
		}
		visited[cur] = struct{}{}
		if _, ok := stop[cur]; ok {
			continue
		}

		c, err := store.ReadCommit(cur)
		if err != nil {
			return nil, err
		}
		out = append(out, cur)
		included[cur] = struct{}{}
		if err := appendTreeClosure(store, c.TreeHash, included, &out); err != nil {
			return nil, err
		}
		queue = append(queue, c.Parents...)
	}
	return out, nil
}

func appendTreeClosure(store *object.Store, treeHash object.Hash, included map[object.Hash]struct{}, out *[]object.Hash) error {
	if _, ok := included[treeHash]; ok {
		return nil
	}
	included[treeHash] = struct{}{}
	*out = append(*out, treeHash)

	tree, err := store.ReadTree(treeHash)
	if err != nil {
		return err
	}
	for _, e := range tree.Entries {
		if e.IsDir() {
			if err := appendTreeClosure(store, e.Hash, included, out); err != nil {
				return err
			}
			continue
		}
		if _, ok := included[e.Hash]; ok {
			continue
		}
		included[e.Hash] = struct{}{}
		*out = append(*out, e.Hash)
	}
	return nil
}

func (s *Server) handleUploadPack(w http.ResponseWriter, r *http.Request, rp *repo.Repo) {
	ctx := r.Context()

	wants, haves, err := parseUploadRequest(ctx, r.Body)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			writeAborted(w)
			return
		}
		writeBadRequest(w, err)
		return
	}

	hashes, err := collectUploadObjects(ctx, rp.Store(), wants, haves)
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			writeAborted(w)
		case errors.Is(err, object.ErrNotFound):
			writeBadRequest(w, err)
		default:
			writeServerError(w, err)
		}
		return
	}
	pack, err := object.BuildPack(rp.Store(), hashes)
	if err != nil {
		writeServerError(w, err)
		return
	}

	w.Header().Set("Content-Type", fmt.Sprintf("application/x-%s-result", wire.ServiceUploadPack))
	if err := wire.WritePktString(w, "NAK\n"); err != nil {
		return
	}
	if err := wire.WriteSidebandProgress(w, fmt.Sprintf("packing %d objects\n", len(hashes))); err != nil {
		return
	}
	if err := wire.WriteSidebandPack(w, pack); err != nil {
		s.log.WithError(err).Warn("write upload-pack response")
	}
}

// parseReceiveRequest reads ref-update commands up to the flush and
// returns the remaining body as pack bytes.
func parseReceiveRequest(ctx context.Context, body io.Reader) ([]wire.Command, []byte, error) {
	pkts := wire.NewPktReader(body)
	var commands []wire.Command
	for {
		if err := ctxErr(ctx); err != nil {
			return nil, nil, err
		}
		line, flush, err := pkts.NextString()
		if err == io.EOF {
			return nil, nil, fmt.Errorf("%w: missing flush after commands", wire.ErrProtocol)
		}
		if err != nil {
			return nil, nil, err
		}
		if flush {
			break
		}
		cmd, err := wire.ParseCommand(line)
		if err != nil {
			return nil, nil, err
		}
		commands = append(commands, cmd)
	}
	if len(commands) == 0 {
		return nil, nil, fmt.Errorf("%w: no commands", wire.ErrProtocol)
	}

	pack, err := io.ReadAll(body)
	if err != nil {
		return nil, nil, err
	}
	return commands, pack, nil
}

func (s *Server) handleReceivePack(w http.ResponseWriter, r *http.Request, rp *repo.Repo, repoName string) {
	ctx := r.Context()

	commands, pack, err := parseReceiveRequest(ctx, r.Body)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			writeAborted(w)
			return
		}
		writeBadRequest(w, err)
		return
	}

	if len(pack) > 0 {
		result, err := object.Unpack(ctx, rp.Store(), pack)
		if err != nil {
			switch {
			case errors.Is(err, context.Canceled):
				writeAborted(w)
			case errors.Is(err, object.ErrCorrupt), errors.Is(err, object.ErrUnresolvedDelta):
				writeBadRequest(w, err)
			default:
				writeServerError(w, err)
			}
			return
		}
		if !result.ChecksumOK {
			s.log.WithFields(logrus.Fields{
				"repo":     repoName,
				"checksum": result.Checksum,
			}).Warn("pack checksum mismatch")
		}
	}

	type refStatus struct {
		name   string
		reason string
	}
	var statuses []refStatus
	for _, cmd := range commands {
		st := refStatus{name: cmd.Name}
		if cmd.IsDelete() {
			if err := rp.DeleteRef(cmd.Name); err != nil && !storage.IsNotFound(err) {
				st.reason = err.Error()
			}
		} else if err := rp.WriteRef(cmd.Name, cmd.New); err != nil {
			st.reason = err.Error()
		}
		statuses = append(statuses, st)
	}

	w.Header().Set("Content-Type", fmt.Sprintf("application/x-%s-result", wire.ServiceReceivePack))
	if err := wire.WritePktString(w, "unpack ok\n"); err != nil {
		return
	}
	for _, st := range statuses {
		var line string
		if st.reason == "" {
			line = fmt.Sprintf("ok %s\n", st.name)
		} else {
			line = fmt.Sprintf("ng %s %s\n", st.name, st.reason)
		}
		if err := wire.WritePktString(w, line); err != nil {
			return
		}
	}
	if err := wire.WriteFlush(w); err != nil {
		s.log.WithError(err).Warn("write receive-pack response")
	}
}
