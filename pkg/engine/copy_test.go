package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sdejongh/syncnorris/pkg/afs"
)

func TestVerifyCopyMatchingContent(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	tgt := filepath.Join(dir, "tgt.bin")
	data := make([]byte, verifyChunkSize*2+17)
	for i := range data {
		data[i] = byte(i)
	}
	if err := os.WriteFile(src, data, 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := os.WriteFile(tgt, data, 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if err := verifyCopy(context.Background(), afs.NewLocal(), src, tgt); err != nil {
		t.Errorf("verifyCopy() error = %v, want nil for identical files", err)
	}
}

func TestVerifyCopyContentMismatch(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	tgt := filepath.Join(dir, "tgt.bin")
	if err := os.WriteFile(src, []byte("hello world"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := os.WriteFile(tgt, []byte("hello WORLD"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if err := verifyCopy(context.Background(), afs.NewLocal(), src, tgt); err == nil {
		t.Error("verifyCopy() error = nil, want a mismatch error")
	}
}

func TestVerifyCopySizeMismatch(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	tgt := filepath.Join(dir, "tgt.bin")
	if err := os.WriteFile(src, []byte("hello world"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := os.WriteFile(tgt, []byte("hello"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if err := verifyCopy(context.Background(), afs.NewLocal(), src, tgt); err == nil {
		t.Error("verifyCopy() error = nil, want a size mismatch error")
	}
}

func TestVerifyCopyCancelled(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	tgt := filepath.Join(dir, "tgt.bin")
	data := make([]byte, verifyChunkSize*3)
	if err := os.WriteFile(src, data, 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := os.WriteFile(tgt, data, 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := verifyCopy(ctx, afs.NewLocal(), src, tgt); err == nil {
		t.Error("verifyCopy() error = nil, want cancellation to be observed")
	}
}
