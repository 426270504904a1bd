package repo

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/grithq/grit/pkg/merge"
	"github.com/grithq/grit/pkg/object"
	"github.com/grithq/grit/pkg/storage"
)

const testAuthor = "Ada Lovelace <ada@example.com>"

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	r, err := Init(storage.NewMemory(), InitOptions{})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	return r
}

func addAndCommit(t *testing.T, r *Repo, message string, files map[string]string) object.Hash {
	t.Helper()
	for path, content := range files {
		if err := r.AddBytes(path, []byte(content)); err != nil {
			t.Fatalf("AddBytes(%s): %v", path, err)
		}
	}
	h, err := r.Commit(message, testAuthor)
	if err != nil {
		t.Fatalf("Commit(%q): %v", message, err)
	}
	return h
}

func TestInitLayout(t *testing.T) {
	st := storage.NewMemory()
	if _, err := Init(st, InitOptions{}); err != nil {
		t.Fatalf("Init: %v", err)
	}

	head, err := st.ReadFile(".git/HEAD")
	if err != nil {
		t.Fatalf("read HEAD: %v", err)
	}
	if string(head) != "ref: refs/heads/main\n" {
		t.Fatalf("HEAD = %q", head)
	}
	for _, dir := range []string{".git/hooks", ".git/objects/pack", ".git/refs/heads", ".git/refs/tags"} {
		if ok, err := st.Exists(dir); err != nil || !ok {
			t.Fatalf("missing %s (ok=%v err=%v)", dir, ok, err)
		}
	}

	if _, err := Init(st, InitOptions{}); err == nil {
		t.Fatal("second Init should fail")
	}
}

func TestInitCustomBranch(t *testing.T) {
	st := storage.NewMemory()
	r, err := Init(st, InitOptions{Branch: "trunk"})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	head, err := r.Head()
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if head != "refs/heads/trunk" {
		t.Fatalf("head = %q", head)
	}
}

func TestOpenMissing(t *testing.T) {
	if _, err := Open(storage.NewMemory()); !errors.Is(err, ErrNotARepo) {
		t.Fatalf("err = %v, want ErrNotARepo", err)
	}
}

func TestRefsRoundTrip(t *testing.T) {
	r := newTestRepo(t)
	h := addAndCommit(t, r, "first", map[string]string{"a.txt": "a\n"})

	if err := r.WriteRef("refs/heads/dev", h); err != nil {
		t.Fatalf("WriteRef: %v", err)
	}
	got, err := r.ReadRef("refs/heads/dev")
	if err != nil || got != h {
		t.Fatalf("ReadRef = %s, %v", got, err)
	}

	refs, err := r.ListRefs("")
	if err != nil {
		t.Fatalf("ListRefs: %v", err)
	}
	want := []string{"refs/heads/dev", "refs/heads/main"}
	if diff := cmp.Diff(want, SortedRefNames(refs)); diff != "" {
		t.Fatalf("refs mismatch (-want +got):\n%s", diff)
	}

	if err := r.DeleteRef("refs/heads/dev"); err != nil {
		t.Fatalf("DeleteRef: %v", err)
	}
	if _, err := r.ReadRef("refs/heads/dev"); !storage.IsNotFound(err) {
		t.Fatalf("err = %v, want not-found", err)
	}
	if err := r.DeleteRef("refs/heads/dev"); !storage.IsNotFound(err) {
		t.Fatalf("double delete err = %v, want not-found", err)
	}
}

func TestCommitAdvancesBranch(t *testing.T) {
	r := newTestRepo(t)

	first := addAndCommit(t, r, "first", map[string]string{"a.txt": "one\n"})
	if got, _ := r.ReadRef("refs/heads/main"); got != first {
		t.Fatalf("main = %s, want %s", got, first)
	}

	second := addAndCommit(t, r, "second", map[string]string{"a.txt": "two\n"})
	c, err := r.Store().ReadCommit(second)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if len(c.Parents) != 1 || c.Parents[0] != first {
		t.Fatalf("parents = %v, want [%s]", c.Parents, first)
	}
	if c.Message != "second" {
		t.Fatalf("message = %q", c.Message)
	}
}

func TestCommitNothingStaged(t *testing.T) {
	r := newTestRepo(t)
	if _, err := r.Commit("empty", testAuthor); err == nil {
		t.Fatal("commit with empty index should fail")
	}
}

func TestAddRejectsRepositoryPaths(t *testing.T) {
	r := newTestRepo(t)
	for _, path := range []string{".git/config", "../escape", "a/../b", ""} {
		if err := r.AddBytes(path, []byte("x")); err == nil {
			t.Fatalf("AddBytes(%q) should fail", path)
		}
	}
}

func TestLog(t *testing.T) {
	r := newTestRepo(t)
	addAndCommit(t, r, "first", map[string]string{"a.txt": "1\n"})
	addAndCommit(t, r, "second", map[string]string{"a.txt": "2\n"})
	head := addAndCommit(t, r, "third", map[string]string{"a.txt": "3\n"})

	entries, err := r.Log(head, 0)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	var messages []string
	for _, e := range entries {
		messages = append(messages, e.Commit.Message)
	}
	if diff := cmp.Diff([]string{"third", "second", "first"}, messages); diff != "" {
		t.Fatalf("log order (-want +got):\n%s", diff)
	}

	limited, err := r.Log(head, 2)
	if err != nil {
		t.Fatalf("Log limited: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("limited log length = %d", len(limited))
	}
}

func TestRmAndMv(t *testing.T) {
	r := newTestRepo(t)
	addAndCommit(t, r, "first", map[string]string{"a.txt": "a\n", "b.txt": "b\n"})
	// addAndCommit stages content only; Mv moves the working-tree file.
	if err := r.Storage().WriteFile("a.txt", []byte("a\n")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := r.Mv("a.txt", "c.txt"); err != nil {
		t.Fatalf("Mv: %v", err)
	}
	data, err := r.Storage().ReadFile("c.txt")
	if err != nil || string(data) != "a\n" {
		t.Fatalf("moved content = %q, %v", data, err)
	}
	if ok, _ := r.Storage().Exists("a.txt"); ok {
		t.Fatal("source file still present after mv")
	}

	if err := r.Rm("b.txt"); err != nil {
		t.Fatalf("Rm: %v", err)
	}
	ix, err := r.Index()
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if ix.Get("b.txt") != nil {
		t.Fatal("b.txt still staged after rm")
	}
	if err := r.Rm("b.txt"); err == nil {
		t.Fatal("rm of untracked path should fail")
	}
}

func TestRestore(t *testing.T) {
	r := newTestRepo(t)
	addAndCommit(t, r, "first", map[string]string{"a.txt": "clean\n"})

	if err := r.Storage().WriteFile("a.txt", []byte("dirty\n")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := r.Restore("a.txt"); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	data, err := r.Storage().ReadFile("a.txt")
	if err != nil || string(data) != "clean\n" {
		t.Fatalf("restored content = %q, %v", data, err)
	}
}

func TestBranchesAndCheckout(t *testing.T) {
	r := newTestRepo(t)
	first := addAndCommit(t, r, "first", map[string]string{"a.txt": "main\n"})

	if err := r.CreateBranch("dev", "main"); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if err := r.CreateBranch("dev", "main"); err == nil {
		t.Fatal("duplicate branch should fail")
	}

	branches, err := r.Branches()
	if err != nil {
		t.Fatalf("Branches: %v", err)
	}
	want := []Branch{
		{Name: "dev", Hash: first},
		{Name: "main", Hash: first, Current: true},
	}
	if diff := cmp.Diff(want, branches); diff != "" {
		t.Fatalf("branches (-want +got):\n%s", diff)
	}

	if err := r.Checkout("dev"); err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	addAndCommit(t, r, "on dev", map[string]string{"a.txt": "dev\n"})

	if err := r.Checkout("main"); err != nil {
		t.Fatalf("Checkout main: %v", err)
	}
	data, err := r.Storage().ReadFile("a.txt")
	if err != nil || string(data) != "main\n" {
		t.Fatalf("worktree after checkout = %q, %v", data, err)
	}

	if err := r.DeleteBranch("main"); err == nil {
		t.Fatal("deleting the current branch should fail")
	}
	if err := r.DeleteBranch("dev"); err != nil {
		t.Fatalf("DeleteBranch: %v", err)
	}
}

func TestCheckoutDetached(t *testing.T) {
	r := newTestRepo(t)
	first := addAndCommit(t, r, "first", map[string]string{"a.txt": "1\n"})
	addAndCommit(t, r, "second", map[string]string{"a.txt": "2\n"})

	if err := r.Checkout(string(first)); err != nil {
		t.Fatalf("Checkout hash: %v", err)
	}
	if _, onBranch, _ := r.CurrentBranch(); onBranch {
		t.Fatal("HEAD should be detached")
	}
	data, _ := r.Storage().ReadFile("a.txt")
	if string(data) != "1\n" {
		t.Fatalf("worktree = %q", data)
	}
}

func TestTags(t *testing.T) {
	r := newTestRepo(t)
	first := addAndCommit(t, r, "first", map[string]string{"a.txt": "1\n"})

	if err := r.Tag("v1.0", "main"); err != nil {
		t.Fatalf("Tag: %v", err)
	}
	if err := r.TagAnnotated("v1.1", "main", "release 1.1", testAuthor); err != nil {
		t.Fatalf("TagAnnotated: %v", err)
	}

	tags, err := r.Tags()
	if err != nil {
		t.Fatalf("Tags: %v", err)
	}
	if diff := cmp.Diff([]string{"v1.0", "v1.1"}, tags); diff != "" {
		t.Fatalf("tags (-want +got):\n%s", diff)
	}

	light, err := r.ReadRef("refs/tags/v1.0")
	if err != nil || light != first {
		t.Fatalf("lightweight tag = %s, %v", light, err)
	}

	annotated, err := r.ReadRef("refs/tags/v1.1")
	if err != nil {
		t.Fatalf("ReadRef annotated: %v", err)
	}
	if annotated == first {
		t.Fatal("annotated tag should point at a tag object")
	}
	peeled, err := r.PeelTag(annotated)
	if err != nil || peeled != first {
		t.Fatalf("PeelTag = %s, %v", peeled, err)
	}

	if err := r.DeleteTag("v1.0"); err != nil {
		t.Fatalf("DeleteTag: %v", err)
	}
	if err := r.DeleteTag("v1.0"); err == nil {
		t.Fatal("double tag delete should fail")
	}
}

func TestMergeFastForward(t *testing.T) {
	r := newTestRepo(t)
	addAndCommit(t, r, "base", map[string]string{"a.txt": "base\n"})

	if err := r.CreateBranch("dev", "main"); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if err := r.Checkout("dev"); err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	devHead := addAndCommit(t, r, "dev work", map[string]string{"b.txt": "dev\n"})

	if err := r.Checkout("main"); err != nil {
		t.Fatalf("Checkout main: %v", err)
	}
	result, err := r.Merge("dev", testAuthor, merge.StrategyRecursive)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if !result.FastForward || result.CommitHash != devHead {
		t.Fatalf("result = %+v, want fast-forward to %s", result, devHead)
	}
	if got, _ := r.ReadRef("refs/heads/main"); got != devHead {
		t.Fatalf("main = %s, want %s", got, devHead)
	}
}

func TestMergeCreatesMergeCommit(t *testing.T) {
	r := newTestRepo(t)
	addAndCommit(t, r, "base", map[string]string{"shared.txt": "base\n"})

	if err := r.CreateBranch("dev", "main"); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if err := r.Checkout("dev"); err != nil {
		t.Fatalf("Checkout dev: %v", err)
	}
	devHead := addAndCommit(t, r, "dev work", map[string]string{"dev.txt": "dev\n"})

	if err := r.Checkout("main"); err != nil {
		t.Fatalf("Checkout main: %v", err)
	}
	mainHead := addAndCommit(t, r, "main work", map[string]string{"main.txt": "main\n"})

	result, err := r.Merge("dev", testAuthor, merge.StrategyRecursive)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	c, err := r.Store().ReadCommit(result.CommitHash)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if diff := cmp.Diff([]object.Hash{mainHead, devHead}, c.Parents); diff != "" {
		t.Fatalf("parents (-want +got):\n%s", diff)
	}
	if c.Message != "Merge branch 'dev' into main" {
		t.Fatalf("message = %q", c.Message)
	}

	for _, path := range []string{"shared.txt", "dev.txt", "main.txt"} {
		if ok, _ := r.Storage().Exists(path); !ok {
			t.Fatalf("merged worktree missing %s", path)
		}
	}
}

func TestMergeConflictAborts(t *testing.T) {
	r := newTestRepo(t)
	addAndCommit(t, r, "base", map[string]string{"a.txt": "base\n"})

	if err := r.CreateBranch("dev", "main"); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if err := r.Checkout("dev"); err != nil {
		t.Fatalf("Checkout dev: %v", err)
	}
	addAndCommit(t, r, "dev edit", map[string]string{"a.txt": "dev\n"})

	if err := r.Checkout("main"); err != nil {
		t.Fatalf("Checkout main: %v", err)
	}
	mainHead := addAndCommit(t, r, "main edit", map[string]string{"a.txt": "main\n"})

	result, err := r.Merge("dev", testAuthor, merge.StrategyRecursive)
	if !errors.Is(err, merge.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	if len(result.Conflicts) == 0 {
		t.Fatal("expected conflicts in result")
	}
	if got, _ := r.ReadRef("refs/heads/main"); got != mainHead {
		t.Fatalf("main moved to %s on conflict", got)
	}
}

func TestMergeAlreadyContained(t *testing.T) {
	r := newTestRepo(t)
	addAndCommit(t, r, "base", map[string]string{"a.txt": "1\n"})

	if err := r.CreateBranch("dev", "main"); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	head := addAndCommit(t, r, "ahead", map[string]string{"a.txt": "2\n"})

	result, err := r.Merge("dev", testAuthor, merge.StrategyRecursive)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if result.CommitHash != head || result.FastForward {
		t.Fatalf("result = %+v, want no-op at %s", result, head)
	}
}

func TestRebase(t *testing.T) {
	r := newTestRepo(t)
	addAndCommit(t, r, "base", map[string]string{"shared.txt": "base\n"})

	if err := r.CreateBranch("feature", "main"); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	addAndCommit(t, r, "main advance", map[string]string{"main.txt": "main\n"})

	if err := r.Checkout("feature"); err != nil {
		t.Fatalf("Checkout feature: %v", err)
	}
	addAndCommit(t, r, "feature one", map[string]string{"f1.txt": "1\n"})
	addAndCommit(t, r, "feature two", map[string]string{"f2.txt": "2\n"})

	newHead, err := r.Rebase("main", testAuthor)
	if err != nil {
		t.Fatalf("Rebase: %v", err)
	}

	entries, err := r.Log(newHead, 0)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	var messages []string
	for _, e := range entries {
		messages = append(messages, e.Commit.Message)
	}
	want := []string{"feature two", "feature one", "main advance", "base"}
	if diff := cmp.Diff(want, messages); diff != "" {
		t.Fatalf("history (-want +got):\n%s", diff)
	}

	for _, e := range entries[:2] {
		if len(e.Commit.Parents) != 1 {
			t.Fatalf("replayed commit %s has %d parents", e.Hash, len(e.Commit.Parents))
		}
	}
	for _, path := range []string{"shared.txt", "main.txt", "f1.txt", "f2.txt"} {
		if ok, _ := r.Storage().Exists(path); !ok {
			t.Fatalf("rebased worktree missing %s", path)
		}
	}
}

func TestResetHard(t *testing.T) {
	r := newTestRepo(t)
	first := addAndCommit(t, r, "first", map[string]string{"a.txt": "1\n"})
	addAndCommit(t, r, "second", map[string]string{"a.txt": "2\n", "b.txt": "b\n"})

	if err := r.Reset(string(first), true); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if got, _ := r.ReadRef("refs/heads/main"); got != first {
		t.Fatalf("main = %s, want %s", got, first)
	}
	data, _ := r.Storage().ReadFile("a.txt")
	if string(data) != "1\n" {
		t.Fatalf("worktree = %q", data)
	}
	if ok, _ := r.Storage().Exists("b.txt"); ok {
		t.Fatal("b.txt should be gone after hard reset")
	}
}

func TestResetSoftKeepsBranch(t *testing.T) {
	r := newTestRepo(t)
	first := addAndCommit(t, r, "first", map[string]string{"a.txt": "1\n"})
	second := addAndCommit(t, r, "second", map[string]string{"a.txt": "2\n"})

	if err := r.Reset(string(first), false); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if got, _ := r.ReadRef("refs/heads/main"); got != second {
		t.Fatalf("main = %s, want unchanged %s", got, second)
	}
	ix, err := r.Index()
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	entry := ix.Get("a.txt")
	if entry == nil {
		t.Fatal("a.txt missing from index")
	}
	blob, _ := r.Store().ReadBlob(entry.Hash)
	if string(blob) != "1\n" {
		t.Fatalf("staged content = %q", blob)
	}
}

func TestStatus(t *testing.T) {
	r := newTestRepo(t)
	if err := r.AddBytes("a.txt", []byte("a\n")); err != nil {
		t.Fatalf("AddBytes: %v", err)
	}
	if err := r.AddBytes("b.txt", []byte("b\n")); err != nil {
		t.Fatalf("AddBytes: %v", err)
	}

	report, err := r.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if report.Branch != "main" || report.Detached {
		t.Fatalf("branch = %q detached=%v", report.Branch, report.Detached)
	}
	if diff := cmp.Diff([]string{"a.txt", "b.txt"}, report.Staged); diff != "" {
		t.Fatalf("staged (-want +got):\n%s", diff)
	}
	if len(report.Modified) != 0 || len(report.Untracked) != 0 {
		t.Fatalf("modified=%v untracked=%v, want empty", report.Modified, report.Untracked)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	cfg := NewConfig()
	cfg.Set("core", "", "branch", "main")
	cfg.Set("remote", "origin", "url", "https://example.com/repo.git")

	parsed, err := ParseConfig(cfg.Marshal())
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if v, ok := parsed.Get("core", "", "branch"); !ok || v != "main" {
		t.Fatalf("core.branch = %q, %v", v, ok)
	}
	if v, ok := parsed.Get("remote", "origin", "url"); !ok || v != "https://example.com/repo.git" {
		t.Fatalf("remote url = %q, %v", v, ok)
	}

	rendered := string(cfg.Marshal())
	if !strings.Contains(rendered, "[remote \"origin\"]\n\turl = https://example.com/repo.git\n") {
		t.Fatalf("rendered config:\n%s", rendered)
	}
}

func TestParseConfigErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"key outside section", "url = x\n"},
		{"malformed entry", "[core]\nnoequals\n"},
		{"malformed subsection", "[remote origin]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseConfig([]byte(tt.input)); err == nil {
				t.Fatal("expected parse error")
			}
		})
	}
}

func TestRemotes(t *testing.T) {
	r := newTestRepo(t)
	if err := r.AddRemote("origin", "https://example.com/a.git"); err != nil {
		t.Fatalf("AddRemote: %v", err)
	}
	if err := r.AddRemote("origin", "https://example.com/b.git"); err == nil {
		t.Fatal("duplicate remote should fail")
	}
	if err := r.AddRemote("backup", "https://example.com/b.git"); err != nil {
		t.Fatalf("AddRemote backup: %v", err)
	}

	remotes, err := r.Remotes()
	if err != nil {
		t.Fatalf("Remotes: %v", err)
	}
	if diff := cmp.Diff([]string{"backup", "origin"}, remotes); diff != "" {
		t.Fatalf("remotes (-want +got):\n%s", diff)
	}

	url, err := r.RemoteURL("origin")
	if err != nil || url != "https://example.com/a.git" {
		t.Fatalf("RemoteURL = %q, %v", url, err)
	}

	if err := r.RemoveRemote("origin"); err != nil {
		t.Fatalf("RemoveRemote: %v", err)
	}
	if _, err := r.RemoteURL("origin"); err == nil {
		t.Fatal("removed remote should not resolve")
	}
}

func TestPushClosureOrdering(t *testing.T) {
	r := newTestRepo(t)
	first := addAndCommit(t, r, "first", map[string]string{"a.txt": "1\n"})
	second := addAndCommit(t, r, "second", map[string]string{"a.txt": "2\n", "b/c.txt": "c\n"})

	closure, err := r.pushClosure(second)
	if err != nil {
		t.Fatalf("pushClosure: %v", err)
	}

	pos := make(map[object.Hash]int, len(closure))
	for i, h := range closure {
		if _, dup := pos[h]; dup {
			t.Fatalf("duplicate object %s in closure", h)
		}
		pos[h] = i
	}
	if pos[first] > pos[second] {
		t.Fatal("parent commit must precede child in closure")
	}

	firstCommit, err := r.Store().ReadCommit(first)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if _, ok := pos[firstCommit.TreeHash]; !ok {
		t.Fatal("closure missing first commit's tree")
	}
}
