package service

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/clipforge/medialib/internal/domain"
)

func TestShardedPaths(t *testing.T) {
	store := NewContentStore("/data/library")
	sha := "ab34cdef0000000000000000000000000000000000000000000000000000ffff"

	orig := store.OriginalPath(domain.AssetKindImage, sha, "png")
	wantOrig := filepath.Join("/data/library", "images", "original", "ab", sha+".png")
	if orig != wantOrig {
		t.Errorf("OriginalPath = %s, want %s", orig, wantOrig)
	}

	thumb := store.ThumbPath(domain.AssetKindVideo, sha)
	wantThumb := filepath.Join("/data/library", "videos", "thumbs", "ab", sha+".jpg")
	if thumb != wantThumb {
		t.Errorf("ThumbPath = %s, want %s", thumb, wantThumb)
	}
}

func TestArchiveKey(t *testing.T) {
	store := NewContentStore("/data/library")
	sha := strings.Repeat("cd", 32)
	key := store.ArchiveKey(store.OriginalPath(domain.AssetKindImage, sha, "png"))
	want := "images/original/cd/" + sha + ".png"
	if key != want {
		t.Errorf("ArchiveKey = %s, want %s", key, want)
	}
}

func TestHashFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.bin")
	content := []byte("hello media library")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}

	got, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	sum := sha256.Sum256(content)
	if want := hex.EncodeToString(sum[:]); got != want {
		t.Errorf("HashFile = %s, want %s", got, want)
	}
}

func TestCopyVerified(t *testing.T) {
	store := NewContentStore(t.TempDir())
	if err := store.EnsureLayout(); err != nil {
		t.Fatal(err)
	}

	src := filepath.Join(t.TempDir(), "src.png")
	content := []byte("not really a png but bytes are bytes")
	if err := os.WriteFile(src, content, 0644); err != nil {
		t.Fatal(err)
	}
	sha, err := HashFile(src)
	if err != nil {
		t.Fatal(err)
	}

	dst, written, err := store.CopyVerified(src, domain.AssetKindImage, sha, "png")
	if err != nil {
		t.Fatalf("CopyVerified: %v", err)
	}
	if written != int64(len(content)) {
		t.Errorf("written = %d, want %d", written, len(content))
	}

	// Checksum invariant: re-hashing the stored copy matches.
	stored, err := HashFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if stored != sha {
		t.Errorf("stored hash %s != source hash %s", stored, sha)
	}
}

func TestCopyVerifiedChecksumMismatch(t *testing.T) {
	store := NewContentStore(t.TempDir())
	if err := store.EnsureLayout(); err != nil {
		t.Fatal(err)
	}

	src := filepath.Join(t.TempDir(), "src.png")
	if err := os.WriteFile(src, []byte("content"), 0644); err != nil {
		t.Fatal(err)
	}

	wrongSHA := strings.Repeat("ab", 32)
	dst := store.OriginalPath(domain.AssetKindImage, wrongSHA, "png")

	_, _, err := store.CopyVerified(src, domain.AssetKindImage, wrongSHA, "png")
	var checksumErr *ChecksumError
	if !errors.As(err, &checksumErr) {
		t.Fatalf("expected ChecksumError, got %v", err)
	}
	if checksumErr.Expected != wrongSHA {
		t.Errorf("Expected field = %s, want %s", checksumErr.Expected, wrongSHA)
	}

	// The partial copy must have been cleaned up.
	if _, statErr := os.Stat(dst); !os.IsNotExist(statErr) {
		t.Errorf("destination still exists after checksum mismatch")
	}
}

func TestOptimizeLossless(t *testing.T) {
	// A large flat-color PNG encoded at default compression leaves room
	// for BestCompression to shrink it.
	dir := t.TempDir()
	src := writeTestPNG(t, dir, "big.png", 256, 256, 1)

	tmpPath, ext, ok, err := OptimizeLossless(src, "png", 1)
	if err != nil {
		t.Fatalf("OptimizeLossless: %v", err)
	}
	if !ok {
		t.Skip("re-encode did not reach the savings threshold on this input")
	}
	defer os.Remove(tmpPath)

	if ext != "png" {
		t.Errorf("ext = %s, want png", ext)
	}
	srcInfo, _ := os.Stat(src)
	optInfo, err := os.Stat(tmpPath)
	if err != nil {
		t.Fatalf("optimized file missing: %v", err)
	}
	if optInfo.Size() >= srcInfo.Size() {
		t.Errorf("optimized %d bytes, not smaller than source %d", optInfo.Size(), srcInfo.Size())
	}
}

func TestOptimizeLosslessSkipsLossyFormats(t *testing.T) {
	_, _, ok, err := OptimizeLossless("whatever.jpg", "jpg", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("jpg must never be re-encoded")
	}
}
