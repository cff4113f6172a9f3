package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/clipforge/medialib/internal/domain"
)

// seedStoredImage inserts an image row backed by a real file of the given
// size inside the library tree.
func seedStoredImage(t *testing.T, env *testEnv, id string, size int64, lastUsedAt time.Time) *domain.ImageAsset {
	t.Helper()
	sha := id + strings.Repeat("0", 64-len(id))
	path := env.store.OriginalPath(domain.AssetKindImage, sha, "png")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, make([]byte, size), 0644); err != nil {
		t.Fatal(err)
	}

	asset := &domain.ImageAsset{
		ID:             id,
		SHA256:         sha,
		OriginalSHA256: sha,
		Ext:            "png",
		Bytes:          size,
		Width:          100,
		Height:         100,
		Path:           path,
		Tags:           []domain.ImageTag{{AssetID: id, Tag: "seed"}},
		CreatedAt:      lastUsedAt,
		LastUsedAt:     lastUsedAt,
	}
	if err := env.images.Create(context.Background(), asset); err != nil {
		t.Fatalf("failed to seed image %s: %v", id, err)
	}
	return asset
}

// seedStoredVideo mirrors seedStoredImage for the video table.
func seedStoredVideo(t *testing.T, env *testEnv, id string, size int64, lastUsedAt time.Time) *domain.VideoAsset {
	t.Helper()
	sha := id + strings.Repeat("0", 64-len(id))
	path := env.store.OriginalPath(domain.AssetKindVideo, sha, "mp4")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, make([]byte, size), 0644); err != nil {
		t.Fatal(err)
	}

	asset := &domain.VideoAsset{
		ID:             id,
		SHA256:         sha,
		OriginalSHA256: sha,
		Ext:            "mp4",
		Bytes:          size,
		Width:          640,
		Height:         480,
		Path:           path,
		DurationMs:     5000,
		Tags:           []domain.VideoTag{{AssetID: id, Tag: "seed"}},
		CreatedAt:      lastUsedAt,
		LastUsedAt:     lastUsedAt,
	}
	if err := env.videos.Create(context.Background(), asset); err != nil {
		t.Fatalf("failed to seed video %s: %v", id, err)
	}
	return asset
}

func TestGCNoOpUnderBudget(t *testing.T) {
	env := newTestEnv(t, 10000)
	seedStoredImage(t, env, "keep", 500, time.Now().UTC())

	result, err := env.gc.GarbageCollect(context.Background(), GCOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if result.FreedBytes != 0 || result.Removed != 0 {
		t.Errorf("expected no-op, got freed=%d removed=%d", result.FreedBytes, result.Removed)
	}
	if result.RemainingBytes != 500 {
		t.Errorf("RemainingBytes = %d, want 500", result.RemainingBytes)
	}
}

func TestGCDryRunReportsWithoutDeleting(t *testing.T) {
	env := newTestEnv(t, 1000)
	now := time.Now().UTC()
	old := seedStoredImage(t, env, "old", 500, now.Add(-48*time.Hour))
	seedStoredImage(t, env, "new", 1000, now)

	// Usage 1500 against budget 1000: the plan evicts the 500-byte asset.
	result, err := env.gc.GarbageCollect(context.Background(), GCOptions{DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	if result.FreedBytes != 500 {
		t.Errorf("FreedBytes = %d, want 500", result.FreedBytes)
	}
	if result.Removed != 1 {
		t.Errorf("Removed = %d, want 1", result.Removed)
	}

	// Nothing was actually touched.
	if _, err := os.Stat(old.Path); err != nil {
		t.Errorf("file removed during dry run: %v", err)
	}
	if count, _ := env.images.Count(context.Background()); count != 2 {
		t.Errorf("row count = %d after dry run, want 2", count)
	}
}

func TestGCSkipsProtectedAssets(t *testing.T) {
	env := newTestEnv(t, 0)
	old := seedStoredImage(t, env, "oldest", 500, time.Now().UTC().Add(-72*time.Hour))

	result, err := env.gc.GarbageCollect(context.Background(), GCOptions{
		TargetBytes:  100,
		ProtectedIDs: []string{old.ID},
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Removed != 0 {
		t.Errorf("Removed = %d, want 0", result.Removed)
	}
	if result.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", result.Skipped)
	}
	if _, err := os.Stat(old.Path); err != nil {
		t.Errorf("protected asset was deleted: %v", err)
	}
}

func TestGCEvictsGlobalLRUAcrossKinds(t *testing.T) {
	env := newTestEnv(t, 2000)
	now := time.Now().UTC()

	// Oldest two span both kinds; eviction order must interleave them.
	oldVideo := seedStoredVideo(t, env, "vid-old", 1000, now.Add(-96*time.Hour))
	oldImage := seedStoredImage(t, env, "img-old", 1000, now.Add(-72*time.Hour))
	newImage := seedStoredImage(t, env, "img-new", 1000, now.Add(-time.Hour))
	newVideo := seedStoredVideo(t, env, "vid-new", 1000, now)

	// Usage 4000 against budget 2000.
	result, err := env.gc.GarbageCollect(context.Background(), GCOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if result.Removed != 2 {
		t.Fatalf("Removed = %d, want 2", result.Removed)
	}
	if result.FreedBytes != 2000 {
		t.Errorf("FreedBytes = %d, want 2000", result.FreedBytes)
	}

	// The two oldest are gone, file and row.
	for _, gone := range []string{oldVideo.Path, oldImage.Path} {
		if _, err := os.Stat(gone); !os.IsNotExist(err) {
			t.Errorf("evicted file still present: %s", gone)
		}
	}
	for _, kept := range []string{newImage.Path, newVideo.Path} {
		if _, err := os.Stat(kept); err != nil {
			t.Errorf("kept file missing: %s", kept)
		}
	}

	usage := mustUsage(t, env.gc)
	if usage > 2000 {
		t.Errorf("usage = %d, still over budget", usage)
	}
	if result.RemainingBytes != usage {
		t.Errorf("RemainingBytes = %d, actual usage %d", result.RemainingBytes, usage)
	}
}

func TestGCRecordsRun(t *testing.T) {
	env := newTestEnv(t, 1000)
	seedStoredImage(t, env, "only", 500, time.Now().UTC())

	if _, err := env.gc.GarbageCollect(context.Background(), GCOptions{}); err != nil {
		t.Fatal(err)
	}

	runs, err := env.runs.Recent(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("run count = %d, want 1", len(runs))
	}
	if runs[0].Trigger != domain.GCTriggerManual {
		t.Errorf("Trigger = %s, want manual", runs[0].Trigger)
	}
}
