package build

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestDirDestination(t *testing.T) {
	root := t.TempDir()
	d := NewDirDestination(root)
	loc, err := d.Write(context.Background(), "app-1/bld-1.jsonl", []byte("line\n"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	want := filepath.Join(root, "app-1", "bld-1.jsonl")
	if loc != "file://"+want {
		t.Errorf("locator = %q", loc)
	}
	got, err := os.ReadFile(want)
	if err != nil || string(got) != "line\n" {
		t.Errorf("file = %q, %v", got, err)
	}
	if _, err := os.Stat(want + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file left behind: %v", err)
	}
}

func TestS3Destination(t *testing.T) {
	var (
		mu     sync.Mutex
		method string
		path   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		method, path = r.Method, r.URL.Path
		mu.Unlock()
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(t.TempDir(), "none"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(t.TempDir(), "none"))

	d, err := NewS3Destination(context.Background(), "bundles", "/lowcode/builds/", "us-east-1", srv.URL)
	if err != nil {
		t.Fatalf("NewS3Destination: %v", err)
	}
	loc, err := d.Write(context.Background(), "app-1/bld-1.jsonl", []byte("{}\n"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if loc != "s3://bundles/lowcode/builds/app-1/bld-1.jsonl" {
		t.Errorf("locator = %q", loc)
	}
	mu.Lock()
	defer mu.Unlock()
	if method != http.MethodPut || path != "/bundles/lowcode/builds/app-1/bld-1.jsonl" {
		t.Errorf("request = %s %s", method, path)
	}
}

func run(t *testing.T, dir string, name string, args ...string) {
	t.Helper()
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("%s %v: %v\n%s", name, args, err, out)
	}
}

func TestGitDestination(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found in PATH")
	}

	remoteDir := t.TempDir()
	run(t, remoteDir, "git", "init", "--bare")

	workDir := t.TempDir()
	run(t, workDir, "git", "clone", remoteDir, "repo")
	repoDir := filepath.Join(workDir, "repo")
	run(t, repoDir, "git", "config", "user.email", "test@test.com")
	run(t, repoDir, "git", "config", "user.name", "Test")
	run(t, repoDir, "git", "checkout", "-b", "main")
	if err := os.WriteFile(filepath.Join(repoDir, ".gitkeep"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	run(t, repoDir, "git", "add", ".")
	run(t, repoDir, "git", "commit", "-m", "init")
	run(t, repoDir, "git", "push", "origin", "main")

	d := NewGitDestination(repoDir, "main")
	loc, err := d.Write(context.Background(), "app-1/bld-1.jsonl", []byte("{}\n"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !strings.HasSuffix(loc, "@main:app-1/bld-1.jsonl") {
		t.Errorf("locator = %q", loc)
	}

	// Same content again is a no-op commit.
	if _, err := d.Write(context.Background(), "app-1/bld-1.jsonl", []byte("{}\n")); err != nil {
		t.Fatalf("second write: %v", err)
	}

	cmd := exec.Command("git", "--git-dir", remoteDir, "log", "--oneline", "main")
	out, err := cmd.Output()
	if err != nil {
		t.Fatalf("git log: %v", err)
	}
	if n := len(nonEmptyLines(string(out))); n != 2 {
		t.Errorf("remote has %d commits, want 2:\n%s", n, out)
	}
	if !strings.Contains(string(out), "build: app-1/bld-1.jsonl") {
		t.Errorf("commit message missing:\n%s", out)
	}
}
