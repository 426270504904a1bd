package main

import (
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/grithq/grit/pkg/server"
)

func newHostedServer(t *testing.T, repos ...string) *httptest.Server {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	srv, err := server.NewFilesystem(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("server.NewFilesystem: %v", err)
	}
	for _, name := range repos {
		if err := srv.InitRepo(name, ""); err != nil {
			t.Fatalf("InitRepo(%q): %v", name, err)
		}
	}
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts
}

func TestClonePushPullRoundTrip(t *testing.T) {
	ts := newHostedServer(t, "project")

	workA := t.TempDir()
	cloneOut := runCommand(t, workA, newCloneCmd, ts.URL+"/project", "checkout-a")
	if !strings.Contains(cloneOut, "cloned") {
		t.Fatalf("clone output = %q", cloneOut)
	}
	dirA := filepath.Join(workA, "checkout-a")

	writeWorktreeFile(t, dirA, "readme.md", "# project\n")
	runCommand(t, dirA, newAddCmd, "readme.md")
	runCommand(t, dirA, newCommitCmd, "-m", "initial", "--author", "tester")

	pushOut := runCommand(t, dirA, newPushCmd)
	if !strings.Contains(pushOut, "pushed main to origin") {
		t.Fatalf("push output = %q", pushOut)
	}

	workB := t.TempDir()
	runCommand(t, workB, newCloneCmd, ts.URL+"/project", "checkout-b")
	dirB := filepath.Join(workB, "checkout-b")
	data, err := os.ReadFile(filepath.Join(dirB, "readme.md"))
	if err != nil || string(data) != "# project\n" {
		t.Fatalf("cloned content = %q, %v", data, err)
	}

	writeWorktreeFile(t, dirA, "readme.md", "# project v2\n")
	runCommand(t, dirA, newAddCmd, "readme.md")
	runCommand(t, dirA, newCommitCmd, "-m", "update", "--author", "tester")
	runCommand(t, dirA, newPushCmd)

	pullOut := runCommand(t, dirB, newPullCmd, "--author", "tester")
	if !strings.Contains(pullOut, "fast-forwarded") {
		t.Fatalf("pull output = %q", pullOut)
	}
	data, err = os.ReadFile(filepath.Join(dirB, "readme.md"))
	if err != nil || string(data) != "# project v2\n" {
		t.Fatalf("pulled content = %q, %v", data, err)
	}
}

func TestPushRejectedWithoutForce(t *testing.T) {
	ts := newHostedServer(t, "project")

	workA := t.TempDir()
	runCommand(t, workA, newCloneCmd, ts.URL+"/project", "a")
	dirA := filepath.Join(workA, "a")
	writeWorktreeFile(t, dirA, "f.txt", "a1\n")
	runCommand(t, dirA, newAddCmd, "f.txt")
	runCommand(t, dirA, newCommitCmd, "-m", "from a", "--author", "tester")
	runCommand(t, dirA, newPushCmd)

	workB := t.TempDir()
	runCommand(t, workB, newCloneCmd, ts.URL+"/project", "b")
	dirB := filepath.Join(workB, "b")
	writeWorktreeFile(t, dirB, "f.txt", "b1\n")
	runCommand(t, dirB, newAddCmd, "f.txt")
	runCommand(t, dirB, newCommitCmd, "-m", "from b", "--author", "tester")
	runCommand(t, dirB, newPushCmd)

	writeWorktreeFile(t, dirA, "f.txt", "a2\n")
	runCommand(t, dirA, newAddCmd, "f.txt")
	runCommand(t, dirA, newCommitCmd, "-m", "a again", "--author", "tester")

	prevWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dirA); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	defer os.Chdir(prevWD)

	cmd := newPushCmd()
	cmd.SetArgs(nil)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "push rejected") {
		t.Fatalf("diverged push: err = %v", err)
	}

	forceOut := runCommand(t, dirA, newPushCmd, "--force")
	if !strings.Contains(forceOut, "pushed main to origin") {
		t.Fatalf("force push output = %q", forceOut)
	}
}
