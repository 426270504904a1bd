// Package server hosts repositories over the smart-HTTP protocol:
// ref advertisement, upload-pack, and receive-pack, with requests
// serialized per repository.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/grithq/grit/pkg/repo"
	"github.com/grithq/grit/pkg/storage"
	"github.com/grithq/grit/pkg/wire"
)

// StatusClientClosedRequest is returned when the client goes away
// mid-request.
const StatusClientClosedRequest = 499

// Options configures a Server.
type Options struct {
	// Open returns the storage scope for a repository name. Required.
	Open func(repo string) (storage.Storage, error)

	// Logger receives request and warning logs. Defaults to the
	// standard logrus logger.
	Logger *logrus.Logger
}

// Server is an http.Handler speaking the smart-HTTP protocol. Requests
// for one repository run strictly one at a time; different repositories
// proceed independently.
type Server struct {
	open func(string) (storage.Storage, error)
	log  *logrus.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New builds a Server from options.
func New(opts Options) (*Server, error) {
	if opts.Open == nil {
		return nil, fmt.Errorf("server: Open is required")
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{
		open:  opts.Open,
		log:   log,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// NewFilesystem serves every repository under a root directory, one
// subdirectory per repository name.
func NewFilesystem(root string, logger *logrus.Logger) (*Server, error) {
	return New(Options{
		Logger: logger,
		Open: func(name string) (storage.Storage, error) {
			st := storage.NewFilesystem(root)
			if err := st.Init(name); err != nil {
				return nil, err
			}
			return st, nil
		},
	})
}

// InitRepo creates an empty repository under the given name so clients
// can push into it.
func (s *Server) InitRepo(name string, branch string) error {
	cleaned, ok := cleanRepoName(name)
	if !ok {
		return fmt.Errorf("server: invalid repository name %q", name)
	}
	st, err := s.open(cleaned)
	if err != nil {
		return err
	}
	_, err = repo.Init(st, repo.InitOptions{Branch: branch})
	return err
}

// repoLock returns the mutex serializing one repository's requests.
func (s *Server) repoLock(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[name]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[name] = lock
	}
	return lock
}

// cleanRepoName validates a repository path segment sequence. A
// trailing .git on the last segment is stripped.
func cleanRepoName(name string) (string, bool) {
	name = strings.Trim(name, "/")
	if name == "" {
		return "", false
	}
	segs := strings.Split(name, "/")
	last := strings.TrimSuffix(segs[len(segs)-1], ".git")
	if last == "" {
		return "", false
	}
	segs[len(segs)-1] = last
	for _, seg := range segs {
		if seg == "" || seg == "." || seg == ".." || strings.HasPrefix(seg, ".git") {
			return "", false
		}
	}
	return strings.Join(segs, "/"), true
}

// route splits a request path into repository name and endpoint.
func route(path string) (repoName, endpoint string, ok bool) {
	p := strings.Trim(path, "/")
	for _, suffix := range []string{"HEAD", "info/refs", wire.ServiceUploadPack, wire.ServiceReceivePack} {
		if p == suffix {
			continue
		}
		if rest, found := strings.CutSuffix(p, "/"+suffix); found {
			name, valid := cleanRepoName(rest)
			if !valid {
				return "", "", false
			}
			return name, suffix, true
		}
	}
	return "", "", false
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	repoName, endpoint, ok := route(r.URL.Path)
	if !ok {
		writeNotFound(rec)
		s.logRequest(r, "", "", rec.status, start)
		return
	}

	lock := s.repoLock(repoName)
	lock.Lock()
	defer lock.Unlock()

	rp, err := s.openRepo(repoName)
	if err != nil {
		if errors.Is(err, repo.ErrNotARepo) {
			writeNotFound(rec)
		} else {
			writeServerError(rec, err)
		}
		s.logRequest(r, repoName, endpoint, rec.status, start)
		return
	}

	switch {
	case endpoint == "HEAD" && r.Method == http.MethodGet:
		s.handleHead(rec, rp)
	case endpoint == "info/refs" && r.Method == http.MethodGet:
		s.handleInfoRefs(rec, r, rp)
	case endpoint == wire.ServiceUploadPack && r.Method == http.MethodPost:
		s.handleUploadPack(rec, r, rp)
	case endpoint == wire.ServiceReceivePack && r.Method == http.MethodPost:
		s.handleReceivePack(rec, r, rp, repoName)
	default:
		writeNotFound(rec)
	}
	s.logRequest(r, repoName, endpoint, rec.status, start)
}

func (s *Server) openRepo(name string) (*repo.Repo, error) {
	st, err := s.open(name)
	if err != nil {
		return nil, err
	}
	return repo.Open(st)
}

func (s *Server) logRequest(r *http.Request, repoName, endpoint string, status int, start time.Time) {
	s.log.WithFields(logrus.Fields{
		"method":   r.Method,
		"repo":     repoName,
		"endpoint": endpoint,
		"status":   status,
		"duration": time.Since(start).Round(time.Microsecond).String(),
	}).Info("request")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (sr *statusRecorder) WriteHeader(status int) {
	if !sr.wrote {
		sr.status = status
		sr.wrote = true
	}
	sr.ResponseWriter.WriteHeader(status)
}

func (sr *statusRecorder) Write(p []byte) (int, error) {
	sr.wrote = true
	return sr.ResponseWriter.Write(p)
}

func writeNotFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": "Not Found"})
}

func writeServerError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

// writeBadRequest reports a malformed request body as a pkt-line error.
func writeBadRequest(w http.ResponseWriter, err error) {
	w.WriteHeader(http.StatusBadRequest)
	_ = wire.WritePktString(w, "error: "+err.Error()+"\n")
	_ = wire.WriteFlush(w)
}

// writeAborted responds to a client that cancelled mid-request.
func writeAborted(w http.ResponseWriter) {
	w.WriteHeader(StatusClientClosedRequest)
}

func ctxErr(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
