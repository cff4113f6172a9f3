package service

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/clipforge/medialib/internal/domain"

	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"
)

// ContentStore manages the on-disk library tree:
//
//	{root}/{images|videos}/{original|thumbs}/{2-hex-prefix}/{sha256}.{ext}
//
// It owns hashing, sharded path layout, and checksum-verified copies.
type ContentStore struct {
	root string
}

// NewContentStore creates a content store rooted at root. The directory
// layout is created lazily by EnsureLayout.
func NewContentStore(root string) *ContentStore {
	return &ContentStore{root: root}
}

// Root returns the library root directory.
func (c *ContentStore) Root() string {
	return c.root
}

// EnsureLayout creates the library directory tree. Idempotent.
func (c *ContentStore) EnsureLayout() error {
	for _, kind := range []string{"images", "videos"} {
		for _, class := range []string{"original", "thumbs"} {
			if err := os.MkdirAll(filepath.Join(c.root, kind, class), 0755); err != nil {
				return fmt.Errorf("failed to create library directory: %w", err)
			}
		}
	}
	return nil
}

func kindDir(kind domain.AssetKind) string {
	return string(kind) + "s"
}

// OriginalPath returns the sharded path for an original file.
func (c *ContentStore) OriginalPath(kind domain.AssetKind, sha256Hex, ext string) string {
	return filepath.Join(c.root, kindDir(kind), "original", sha256Hex[:2], sha256Hex+"."+ext)
}

// ThumbPath returns the sharded path for a thumbnail. Thumbnails are
// always JPEG regardless of the original format.
func (c *ContentStore) ThumbPath(kind domain.AssetKind, sha256Hex string) string {
	return filepath.Join(c.root, kindDir(kind), "thumbs", sha256Hex[:2], sha256Hex+".jpg")
}

// ArchiveKey returns the library-relative path of a stored file, used as
// the object key when archiving on eviction.
func (c *ContentStore) ArchiveKey(path string) string {
	rel, err := filepath.Rel(c.root, path)
	if err != nil {
		return filepath.Base(path)
	}
	return filepath.ToSlash(rel)
}

// HashFile computes the SHA-256 of the file at path as a hex digest.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// CopyVerified copies src into the sharded original location for the given
// stored hash, then re-hashes the destination. A mismatch deletes the copy
// and returns a *ChecksumError.
// Parameters:
//   - src: source file path.
//   - kind: asset kind selecting the tree branch.
//   - sha256Hex: expected digest of the source bytes.
//   - ext: stored extension.
//
// Returns:
//   - string: destination path.
//   - int64: bytes written.
//   - error: non-nil on I/O failure or checksum mismatch.
func (c *ContentStore) CopyVerified(src string, kind domain.AssetKind, sha256Hex, ext string) (string, int64, error) {
	dst := c.OriginalPath(kind, sha256Hex, ext)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", 0, fmt.Errorf("failed to create shard directory: %w", err)
	}

	written, err := copyFile(src, dst)
	if err != nil {
		os.Remove(dst)
		return "", 0, fmt.Errorf("failed to copy into library: %w", err)
	}

	actual, err := HashFile(dst)
	if err != nil {
		os.Remove(dst)
		return "", 0, err
	}
	if actual != sha256Hex {
		os.Remove(dst)
		return "", 0, &ChecksumError{Path: dst, Expected: sha256Hex, Actual: actual}
	}

	return dst, written, nil
}

func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}

	written, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return written, err
}

// losslessFormats are the only formats the optimizer will re-encode. Lossy
// sources would be degraded by a decode/encode round trip.
var losslessFormats = map[string]bool{
	"png":  true,
	"webp": true,
	"tiff": true,
	"tif":  true,
}

// OptimizeLossless re-encodes a lossless image as best-compression PNG in
// a temp file. The result is kept only when it saves at least
// minSavingsPercent of the source size; otherwise the temp file is removed
// and ok is false.
// Returns the temp path, the new extension, whether the re-encode won, and
// any hard error. Callers treat errors as "store the original verbatim".
func OptimizeLossless(src, ext string, minSavingsPercent float64) (string, string, bool, error) {
	if !losslessFormats[ext] {
		return "", "", false, nil
	}

	srcInfo, err := os.Stat(src)
	if err != nil {
		return "", "", false, err
	}

	f, err := os.Open(src)
	if err != nil {
		return "", "", false, err
	}
	img, err := decodeLossless(f, ext)
	f.Close()
	if err != nil {
		return "", "", false, fmt.Errorf("failed to decode %s for optimization: %w", src, err)
	}

	tmp, err := os.CreateTemp("", "medialib-opt-*.png")
	if err != nil {
		return "", "", false, err
	}
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(tmp, img); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", "", false, fmt.Errorf("failed to re-encode %s: %w", src, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", "", false, err
	}

	optInfo, err := os.Stat(tmp.Name())
	if err != nil {
		os.Remove(tmp.Name())
		return "", "", false, err
	}

	savings := 100 * (1 - float64(optInfo.Size())/float64(srcInfo.Size()))
	if savings < minSavingsPercent {
		os.Remove(tmp.Name())
		return "", "", false, nil
	}

	return tmp.Name(), "png", true, nil
}

func decodeLossless(r io.Reader, ext string) (image.Image, error) {
	switch ext {
	case "png":
		return png.Decode(r)
	case "webp":
		return webp.Decode(r)
	case "tiff", "tif":
		return tiff.Decode(r)
	}
	return nil, fmt.Errorf("not a lossless format: %s", ext)
}
