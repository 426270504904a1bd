package storage

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// backendTest exercises the Storage contract against every backend.
func backendTest(t *testing.T, name string, factory func(t *testing.T) Storage) {
	t.Run(name, func(t *testing.T) {
		t.Run("read write delete", func(t *testing.T) {
			st := factory(t)

			if err := st.WriteFile("dir/file.txt", []byte("hello")); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}
			data, err := st.ReadFile("dir/file.txt")
			if err != nil || string(data) != "hello" {
				t.Fatalf("ReadFile = %q, %v", data, err)
			}
			if ok, err := st.Exists("dir/file.txt"); err != nil || !ok {
				t.Fatalf("Exists file = %v, %v", ok, err)
			}
			if ok, err := st.Exists("dir"); err != nil || !ok {
				t.Fatalf("Exists parent dir = %v, %v", ok, err)
			}

			if err := st.WriteFile("dir/file.txt", []byte("updated")); err != nil {
				t.Fatalf("WriteFile overwrite: %v", err)
			}
			data, err = st.ReadFile("dir/file.txt")
			if err != nil || string(data) != "updated" {
				t.Fatalf("ReadFile after overwrite = %q, %v", data, err)
			}

			if err := st.DeleteFile("dir/file.txt"); err != nil {
				t.Fatalf("DeleteFile: %v", err)
			}
			if _, err := st.ReadFile("dir/file.txt"); !IsNotFound(err) {
				t.Fatalf("ReadFile after delete: err = %v, want not-found", err)
			}
		})

		t.Run("missing paths", func(t *testing.T) {
			st := factory(t)
			if _, err := st.ReadFile("absent"); !IsNotFound(err) {
				t.Fatalf("ReadFile absent: err = %v, want not-found", err)
			}
			if err := st.DeleteFile("absent"); !IsNotFound(err) {
				t.Fatalf("DeleteFile absent: err = %v, want not-found", err)
			}
			if _, err := st.FileInfo("absent"); !IsNotFound(err) {
				t.Fatalf("FileInfo absent: err = %v, want not-found", err)
			}
			if ok, err := st.Exists("absent"); err != nil || ok {
				t.Fatalf("Exists absent = %v, %v", ok, err)
			}
		})

		t.Run("list directory", func(t *testing.T) {
			st := factory(t)
			for _, p := range []string{"refs/heads/main", "refs/heads/dev", "refs/tags/v1"} {
				if err := st.WriteFile(p, []byte("x")); err != nil {
					t.Fatalf("WriteFile(%q): %v", p, err)
				}
			}

			names, err := st.ListDirectory("refs/heads")
			if err != nil {
				t.Fatalf("ListDirectory: %v", err)
			}
			sort.Strings(names)
			if diff := cmp.Diff([]string{"dev", "main"}, names); diff != "" {
				t.Fatalf("heads mismatch (-want +got):\n%s", diff)
			}

			names, err = st.ListDirectory("refs")
			if err != nil {
				t.Fatalf("ListDirectory: %v", err)
			}
			sort.Strings(names)
			if diff := cmp.Diff([]string{"heads", "tags"}, names); diff != "" {
				t.Fatalf("refs mismatch (-want +got):\n%s", diff)
			}
		})

		t.Run("created directory lists empty", func(t *testing.T) {
			st := factory(t)
			if err := st.CreateDirectory("objects/info"); err != nil {
				t.Fatalf("CreateDirectory: %v", err)
			}
			if ok, err := st.Exists("objects/info"); err != nil || !ok {
				t.Fatalf("Exists created dir = %v, %v", ok, err)
			}
			names, err := st.ListDirectory("objects/info")
			if err != nil {
				t.Fatalf("ListDirectory: %v", err)
			}
			if len(names) != 0 {
				t.Fatalf("empty dir listing = %v", names)
			}
		})

		t.Run("delete directory recursive", func(t *testing.T) {
			st := factory(t)
			for _, p := range []string{"work/a.txt", "work/sub/b.txt", "keep/c.txt"} {
				if err := st.WriteFile(p, []byte("x")); err != nil {
					t.Fatalf("WriteFile(%q): %v", p, err)
				}
			}
			if err := st.DeleteDirectory("work"); err != nil {
				t.Fatalf("DeleteDirectory: %v", err)
			}
			if ok, _ := st.Exists("work/sub/b.txt"); ok {
				t.Fatalf("descendant survived DeleteDirectory")
			}
			if ok, _ := st.Exists("keep/c.txt"); !ok {
				t.Fatalf("sibling removed by DeleteDirectory")
			}
		})

		t.Run("file info", func(t *testing.T) {
			st := factory(t)
			if err := st.WriteFile("f", []byte("12345")); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}
			fi, err := st.FileInfo("f")
			if err != nil {
				t.Fatalf("FileInfo: %v", err)
			}
			if fi.Size != 5 {
				t.Fatalf("Size = %d, want 5", fi.Size)
			}
			if fi.Modified.IsZero() {
				t.Fatalf("Modified is zero")
			}
		})

		t.Run("init scopes paths", func(t *testing.T) {
			st := factory(t)
			if err := st.Init("repo-a"); err != nil {
				t.Fatalf("Init: %v", err)
			}
			if err := st.WriteFile("HEAD", []byte("ref: refs/heads/main\n")); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}

			if err := st.Init("repo-b"); err != nil {
				t.Fatalf("Init: %v", err)
			}
			if ok, _ := st.Exists("HEAD"); ok {
				t.Fatalf("repo-a file visible under repo-b scope")
			}

			if err := st.Init("repo-a"); err != nil {
				t.Fatalf("Init: %v", err)
			}
			data, err := st.ReadFile("HEAD")
			if err != nil || string(data) != "ref: refs/heads/main\n" {
				t.Fatalf("scoped ReadFile = %q, %v", data, err)
			}
		})
	})
}

func TestBackends(t *testing.T) {
	backendTest(t, "memory", func(t *testing.T) Storage {
		return NewMemory()
	})
	backendTest(t, "filesystem", func(t *testing.T) Storage {
		return NewFilesystem(t.TempDir())
	})
}

func TestMemoryReadIsolation(t *testing.T) {
	m := NewMemory()
	if err := m.WriteFile("f", []byte("abc")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, err := m.ReadFile("f")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	data[0] = 'z'
	again, err := m.ReadFile("f")
	if err != nil || string(again) != "abc" {
		t.Fatalf("stored bytes mutated through read slice: %q, %v", again, err)
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a/b", "a/b"},
		{"/a/b/", "a/b"},
		{"a//b", "a/b"},
		{".", ""},
		{"  a/b ", "a/b"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := normalizePath(tc.in); got != tc.want {
			t.Fatalf("normalizePath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFilesystemWriteCreatesParents(t *testing.T) {
	fs := NewFilesystem(t.TempDir())
	if err := fs.WriteFile("deep/nested/dirs/file.txt", []byte("x")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, err := fs.ReadFile("deep/nested/dirs/file.txt")
	if err != nil || string(data) != "x" {
		t.Fatalf("ReadFile = %q, %v", data, err)
	}
	names, err := fs.ListDirectory("deep/nested/dirs")
	if err != nil {
		t.Fatalf("ListDirectory: %v", err)
	}
	found := false
	for _, n := range names {
		if n == "file.txt" {
			found = true
		}
	}
	if !found {
		t.Fatalf("listing = %v, want file.txt", names)
	}
}
