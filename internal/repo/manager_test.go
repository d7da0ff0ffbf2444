package repo

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func initRepo(t *testing.T, dir string) (string, string) {
	t.Helper()
	r, err := gogit.PlainInit(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	wt, err := r.Worktree()
	if err != nil {
		t.Fatal(err)
	}

	sig := &object.Signature{Name: "tester", Email: "t@example.com", When: time.Now()}

	write := func(name, content string) string {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := wt.Add(name); err != nil {
			t.Fatal(err)
		}
		hash, err := wt.Commit("add "+name, &gogit.CommitOptions{Author: sig})
		if err != nil {
			t.Fatal(err)
		}
		return hash.String()
	}

	first := write("a.txt", "first\n")
	second := write("b.txt", "second\n")
	return first, second
}

func TestCheckoutSHA(t *testing.T) {
	dir := t.TempDir()
	first, _ := initRepo(t, dir)

	m := NewManager(dir, "", testLogger())
	if err := m.CheckoutSHA(context.Background(), first); err != nil {
		t.Fatalf("CheckoutSHA: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "b.txt")); !os.IsNotExist(err) {
		t.Errorf("b.txt should not exist at the first commit")
	}
	if _, err := os.Stat(filepath.Join(dir, "a.txt")); err != nil {
		t.Errorf("a.txt missing at the first commit: %v", err)
	}
}

func TestCheckoutSHAUnknownCommit(t *testing.T) {
	dir := t.TempDir()
	initRepo(t, dir)

	m := NewManager(dir, "", testLogger())
	err := m.CheckoutSHA(context.Background(), "0123456789abcdef0123456789abcdef01234567")
	if err == nil {
		t.Fatal("expected error for unknown commit")
	}
}

func TestEnsureRepoExistingFetchesFromClone(t *testing.T) {
	// An existing clone with an origin remote fetches instead of
	// recloning.
	upstream := t.TempDir()
	initRepo(t, upstream)

	workdir := filepath.Join(t.TempDir(), "clone")
	if _, err := gogit.PlainClone(workdir, false, &gogit.CloneOptions{URL: upstream}); err != nil {
		t.Fatal(err)
	}

	m := NewManager(workdir, "", testLogger())
	path, err := m.EnsureRepo(context.Background(), upstream)
	if err != nil {
		t.Fatalf("EnsureRepo: %v", err)
	}
	if path != workdir {
		t.Errorf("path = %q, want %q", path, workdir)
	}
}

func TestEnsureRepoClones(t *testing.T) {
	upstream := t.TempDir()
	initRepo(t, upstream)

	workdir := filepath.Join(t.TempDir(), "fresh")
	m := NewManager(workdir, "", testLogger())
	path, err := m.EnsureRepo(context.Background(), upstream)
	if err != nil {
		t.Fatalf("EnsureRepo: %v", err)
	}
	if _, err := os.Stat(filepath.Join(path, "a.txt")); err != nil {
		t.Errorf("clone missing file: %v", err)
	}
}
