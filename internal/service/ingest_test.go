package service

import (
	"context"
	"errors"
	"os"
	"sort"
	"testing"
)

func TestIngestImageStoresVerifiedCopy(t *testing.T) {
	env := newTestEnv(t, 1<<30)
	ctx := context.Background()

	src := writeTestPNG(t, t.TempDir(), "sunset.png", 128, 96, 1)
	asset, err := env.ingest.IngestImage(ctx, src, []string{"Sunset", "beach"}, IngestOptions{Provider: "local"})
	if err != nil {
		t.Fatalf("IngestImage: %v", err)
	}

	if asset.Width != 128 || asset.Height != 96 {
		t.Errorf("probed dimensions = %dx%d, want 128x96", asset.Width, asset.Height)
	}
	if asset.OriginalSHA256 == "" || asset.SHA256 == "" {
		t.Fatal("hashes not recorded")
	}

	// Checksum invariant: the stored file re-hashes to the recorded hash.
	stored, err := HashFile(asset.Path)
	if err != nil {
		t.Fatalf("stored file unreadable: %v", err)
	}
	if stored != asset.SHA256 {
		t.Errorf("stored hash %s != recorded %s", stored, asset.SHA256)
	}

	// Synchronous mode produced a thumbnail.
	if asset.ThumbPath == "" {
		t.Fatal("no thumbnail recorded")
	}
	if _, err := os.Stat(asset.ThumbPath); err != nil {
		t.Errorf("thumbnail file missing: %v", err)
	}

	gotTags := asset.TagSet()
	sort.Strings(gotTags)
	if len(gotTags) != 2 || gotTags[0] != "beach" || gotTags[1] != "sunset" {
		t.Errorf("tags = %v, want [beach sunset]", gotTags)
	}
}

func TestIngestDedupIdempotence(t *testing.T) {
	env := newTestEnv(t, 1<<30)
	ctx := context.Background()

	src := writeTestPNG(t, t.TempDir(), "dup.png", 64, 64, 2)

	first, err := env.ingest.IngestImage(ctx, src, []string{"sunset"}, IngestOptions{})
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	second, err := env.ingest.IngestImage(ctx, src, []string{"sunset", "Ocean"}, IngestOptions{})
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	third, err := env.ingest.IngestImage(ctx, src, []string{"palm"}, IngestOptions{})
	if err != nil {
		t.Fatalf("third ingest: %v", err)
	}

	if first.ID != second.ID || first.ID != third.ID {
		t.Fatalf("dedup violated: IDs %s / %s / %s", first.ID, second.ID, third.ID)
	}

	count, err := env.images.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("row count = %d, want 1", count)
	}

	// The final tag set is the union of all calls' tags.
	tags := third.TagSet()
	sort.Strings(tags)
	want := []string{"ocean", "palm", "sunset"}
	if len(tags) != len(want) {
		t.Fatalf("tags = %v, want %v", tags, want)
	}
	for i := range want {
		if tags[i] != want[i] {
			t.Fatalf("tags = %v, want %v", tags, want)
		}
	}
}

func TestIngestRepairsMissingFile(t *testing.T) {
	env := newTestEnv(t, 1<<30)
	ctx := context.Background()

	src := writeTestPNG(t, t.TempDir(), "repair.png", 64, 64, 3)
	asset, err := env.ingest.IngestImage(ctx, src, []string{"sunset"}, IngestOptions{})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	if err := os.Remove(asset.Path); err != nil {
		t.Fatal(err)
	}

	repaired, err := env.ingest.IngestImage(ctx, src, []string{"sunset"}, IngestOptions{})
	if err != nil {
		t.Fatalf("re-ingest: %v", err)
	}
	if repaired.ID != asset.ID {
		t.Fatalf("repair created a new row")
	}

	stored, err := HashFile(repaired.Path)
	if err != nil {
		t.Fatalf("repaired file unreadable: %v", err)
	}
	if stored != repaired.SHA256 {
		t.Errorf("repaired hash %s != recorded %s", stored, repaired.SHA256)
	}
}

func TestIngestRejectsEmptyTags(t *testing.T) {
	env := newTestEnv(t, 1<<30)
	src := writeTestPNG(t, t.TempDir(), "untagged.png", 16, 16, 4)

	_, err := env.ingest.IngestImage(context.Background(), src, []string{"  ", "!!!"}, IngestOptions{})
	if !errors.Is(err, ErrNoTags) {
		t.Fatalf("expected ErrNoTags, got %v", err)
	}

	// Validation failures leave no rows behind.
	count, _ := env.images.Count(context.Background())
	if count != 0 {
		t.Errorf("row count = %d after rejected ingest", count)
	}
}

func TestIngestRejectsUnsupportedExtension(t *testing.T) {
	env := newTestEnv(t, 1<<30)
	dir := t.TempDir()
	path := dir + "/notes.txt"
	if err := os.WriteFile(path, []byte("text"), 0644); err != nil {
		t.Fatal(err)
	}

	_, _, err := env.ingest.IngestDownloaded(context.Background(), path, []string{"tag"}, IngestOptions{})
	if !errors.Is(err, ErrUnsupportedExt) {
		t.Fatalf("expected ErrUnsupportedExt, got %v", err)
	}
}

func TestIngestRejectsFormatMismatch(t *testing.T) {
	env := newTestEnv(t, 1<<30)
	dir := t.TempDir()

	// PNG bytes behind a .jpg extension.
	pngPath := writeTestPNG(t, dir, "real.png", 16, 16, 5)
	jpgPath := dir + "/fake.jpg"
	data, err := os.ReadFile(pngPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(jpgPath, data, 0644); err != nil {
		t.Fatal(err)
	}

	_, err = env.ingest.IngestImage(context.Background(), jpgPath, []string{"tag"}, IngestOptions{})
	var mismatch *FormatMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected FormatMismatchError, got %v", err)
	}
	if mismatch.Ext != "jpg" || mismatch.Format != "png" {
		t.Errorf("mismatch fields = %s/%s, want jpg/png", mismatch.Ext, mismatch.Format)
	}
}

func TestIngestRejectsOverBudget(t *testing.T) {
	env := newTestEnv(t, 10) // 10-byte budget, nothing fits
	src := writeTestPNG(t, t.TempDir(), "big.png", 64, 64, 6)

	_, err := env.ingest.IngestImage(context.Background(), src, []string{"sunset"}, IngestOptions{})
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}

	var quota *QuotaError
	if !errors.As(err, &quota) {
		t.Fatalf("expected *QuotaError, got %T", err)
	}
	if quota.BudgetBytes != 10 {
		t.Errorf("BudgetBytes = %d, want 10", quota.BudgetBytes)
	}

	// Rejected, not truncated: nothing was stored.
	count, _ := env.images.Count(context.Background())
	if count != 0 {
		t.Errorf("row count = %d after rejected ingest", count)
	}
	if usage := mustUsage(t, env.gc); usage != 0 {
		t.Errorf("usage = %d after rejected ingest", usage)
	}
}
