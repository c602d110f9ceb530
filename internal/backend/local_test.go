package backend

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/ferryfs/ferry/internal/progress"
	"github.com/ferryfs/ferry/internal/resource"
)

func localRes(t *testing.T, elem ...string) resource.Resource {
	t.Helper()
	p := filepath.Join(elem...)
	return resource.New(resource.SchemeLocal, filepath.ToSlash(p))
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
}

func TestLocalChecksum(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	writeFile(t, path, []byte("hello world"))

	l := NewLocalFS(Options{})
	sum, err := l.Checksum(context.Background(), localRes(t, path))
	if err != nil {
		t.Fatalf("Checksum failed: %v", err)
	}
	// md5("hello world")
	if sum != "5eb63bbbe01eeed093cb22bb8f5acdc3" {
		t.Errorf("Unexpected checksum %q", sum)
	}
}

func TestLocalPredicates(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f.txt")
	writeFile(t, file, []byte("x"))

	l := NewLocalFS(Options{})
	ctx := context.Background()

	if ok, _ := l.Exists(ctx, localRes(t, file)); !ok {
		t.Error("Expected file to exist")
	}
	if ok, _ := l.Exists(ctx, localRes(t, dir, "missing")); ok {
		t.Error("Expected missing path to not exist")
	}
	if ok, _ := l.IsFile(ctx, localRes(t, file)); !ok {
		t.Error("Expected IsFile true for a regular file")
	}
	if ok, _ := l.IsDir(ctx, localRes(t, file)); ok {
		t.Error("Expected IsDir false for a regular file")
	}
	if ok, _ := l.IsDir(ctx, localRes(t, dir)); !ok {
		t.Error("Expected IsDir true for a directory")
	}
	if ok, _ := l.IsDir(ctx, localRes(t, dir, "missing")); ok {
		t.Error("Expected IsDir false for a missing path")
	}
	if ok, _ := l.IsEmpty(ctx, localRes(t, file)); ok {
		t.Error("Expected non-empty file")
	}

	empty := filepath.Join(dir, "empty")
	if err := os.Mkdir(empty, 0o755); err != nil {
		t.Fatal(err)
	}
	if ok, _ := l.IsEmpty(ctx, localRes(t, empty)); !ok {
		t.Error("Expected empty directory")
	}
}

func TestLocalWalkFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), []byte("a"))
	writeFile(t, filepath.Join(dir, "sub", "b.txt"), []byte("b"))
	writeFile(t, filepath.Join(dir, "sub", "deep", "c.txt"), []byte("c"))

	l := NewLocalFS(Options{})
	root := localRes(t, dir)

	var got []string
	for res, err := range l.WalkFiles(context.Background(), root) {
		if err != nil {
			t.Fatalf("WalkFiles failed: %v", err)
		}
		rel, err := res.RelativeTo(root)
		if err != nil {
			t.Fatalf("RelativeTo failed: %v", err)
		}
		got = append(got, rel)
	}

	want := []string{"a.txt", "sub/b.txt", "sub/deep/c.txt"}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected %q at %d, got %q", want[i], i, got[i])
		}
	}
}

func TestLocalWalkFilesStopsEarly(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), []byte("a"))
	writeFile(t, filepath.Join(dir, "b.txt"), []byte("b"))

	l := NewLocalFS(Options{})
	count := 0
	for _, err := range l.WalkFiles(context.Background(), localRes(t, dir)) {
		if err != nil {
			t.Fatalf("WalkFiles failed: %v", err)
		}
		count++
		break
	}
	if count != 1 {
		t.Errorf("Expected to stop after one file, got %d", count)
	}
}

func TestLocalWalk(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "top.txt"), []byte("t"))
	writeFile(t, filepath.Join(dir, "sub", "inner.txt"), []byte("i"))

	l := NewLocalFS(Options{})
	root := localRes(t, dir)

	var dirs []string
	for de, err := range l.Walk(context.Background(), root) {
		if err != nil {
			t.Fatalf("Walk failed: %v", err)
		}
		dirs = append(dirs, de.Dir.Name())
		if de.Dir == root {
			if len(de.Subdirs) != 1 || de.Subdirs[0] != "sub" {
				t.Errorf("Expected subdirs [sub], got %v", de.Subdirs)
			}
			if len(de.Files) != 1 || de.Files[0] != "top.txt" {
				t.Errorf("Expected files [top.txt], got %v", de.Files)
			}
		}
	}
	if len(dirs) != 2 {
		t.Errorf("Expected 2 directories walked, got %v", dirs)
	}
}

func TestLocalLsAndFind(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), []byte("aa"))
	writeFile(t, filepath.Join(dir, "sub", "b.txt"), []byte("b"))

	l := NewLocalFS(Options{})
	ctx := context.Background()

	entries, err := l.Ls(ctx, localRes(t, dir), true)
	if err != nil {
		t.Fatalf("Ls failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	for _, e := range entries {
		if e.Info == nil {
			t.Errorf("Detail listing must populate Info for %s", e.Resource)
		}
	}

	found, err := l.Find(ctx, localRes(t, dir), false, "sub/")
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(found) != 1 || found[0].Resource.Name() != "b.txt" {
		t.Errorf("Expected only sub/b.txt, got %v", found)
	}
}

func TestLocalCopyAndRemove(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")
	writeFile(t, src, []byte("payload"))

	l := NewLocalFS(Options{})
	ctx := context.Background()

	if err := l.Copy(ctx, localRes(t, src), localRes(t, dst)); err != nil {
		t.Fatalf("Copy failed: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "payload" {
		t.Fatalf("Copy content mismatch: %q, %v", data, err)
	}
	if _, err := os.Stat(src); err != nil {
		t.Error("Copy must leave the source in place")
	}

	if err := l.Remove(ctx, localRes(t, dst)); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Error("Expected destination removed")
	}
}

func TestLocalMoveRenames(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")
	writeFile(t, src, []byte("move me"))

	l := NewLocalFS(Options{})
	if err := l.Move(context.Background(), localRes(t, src), localRes(t, dst)); err != nil {
		t.Fatalf("Move failed: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("Expected source gone after move")
	}
	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "move me" {
		t.Errorf("Move content mismatch: %q, %v", data, err)
	}
}

func TestLocalGetPutFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	writeFile(t, src, []byte("0123456789"))

	l := NewLocalFS(Options{})
	ctx := context.Background()

	got := filepath.Join(dir, "got.bin")
	var seen int64
	cb := progress.Func(func(n int64) { seen += n })
	if err := l.GetFile(ctx, localRes(t, src), got, cb); err != nil {
		t.Fatalf("GetFile failed: %v", err)
	}
	if seen != 10 {
		t.Errorf("Expected 10 bytes reported, got %d", seen)
	}
	data, _ := os.ReadFile(got)
	if string(data) != "0123456789" {
		t.Errorf("GetFile content mismatch: %q", data)
	}

	put := filepath.Join(dir, "put.bin")
	if err := l.PutFile(ctx, src, localRes(t, put), progress.Discard); err != nil {
		t.Fatalf("PutFile failed: %v", err)
	}
	data, _ = os.ReadFile(put)
	if string(data) != "0123456789" {
		t.Errorf("PutFile content mismatch: %q", data)
	}
}

func TestLocalUploadStream(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "stream.bin")

	l := NewLocalFS(Options{})
	r := io.LimitReader(neverEnding('x'), 1024)
	if err := l.UploadStream(context.Background(), r, localRes(t, dst), 1024); err != nil {
		t.Fatalf("UploadStream failed: %v", err)
	}
	info, err := os.Stat(dst)
	if err != nil || info.Size() != 1024 {
		t.Errorf("Expected 1024-byte file, got %v, %v", info, err)
	}
}

type neverEnding byte

func (b neverEnding) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(b)
	}
	return len(p), nil
}
