package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/clipforge/medialib/internal/domain"
)

// seedImage inserts an image row directly, bypassing ingestion.
func seedImage(t *testing.T, env *testEnv, id string, tags []string, width, height int, lastUsedAt time.Time) {
	t.Helper()
	asset := &domain.ImageAsset{
		ID:             id,
		SHA256:         "sha-" + id,
		OriginalSHA256: "orig-" + id,
		Ext:            "png",
		Bytes:          100,
		Width:          width,
		Height:         height,
		Path:           "/nonexistent/" + id + ".png",
		Embedding:      NewEmbedder(64).Embed(tags),
		CreatedAt:      lastUsedAt,
		LastUsedAt:     lastUsedAt,
	}
	for _, tag := range tags {
		asset.Tags = append(asset.Tags, domain.ImageTag{AssetID: id, Tag: tag})
	}
	if err := env.images.Create(context.Background(), asset); err != nil {
		t.Fatalf("failed to seed image %s: %v", id, err)
	}
}

func TestSearchExactTagRanking(t *testing.T) {
	env := newTestEnv(t, 0)
	now := time.Now().UTC()

	// A shares both query tags, B only one.
	seedImage(t, env, "asset-a", []string{"sunset", "beach"}, 800, 600, now)
	seedImage(t, env, "asset-b", []string{"sunset", "mountain"}, 800, 600, now)

	results, err := env.search.SearchImages(context.Background(), []string{"sunset", "beach"}, SearchOptions{Limit: 10})
	if err != nil {
		t.Fatalf("SearchImages: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].ID != "asset-a" || results[1].ID != "asset-b" {
		t.Errorf("order = [%s %s], want [asset-a asset-b]", results[0].ID, results[1].ID)
	}
	if results[0].Score <= results[1].Score {
		t.Errorf("scores not descending: %v then %v", results[0].Score, results[1].Score)
	}
}

func TestSearchDeterminism(t *testing.T) {
	env := newTestEnv(t, 0)
	now := time.Now().UTC()
	seedImage(t, env, "x1", []string{"city", "night"}, 640, 480, now.Add(-time.Hour))
	seedImage(t, env, "x2", []string{"city"}, 1920, 1080, now)
	seedImage(t, env, "x3", []string{"night", "city"}, 640, 480, now.Add(-2*time.Hour))

	first, err := env.search.SearchImages(context.Background(), []string{"city", "night"}, SearchOptions{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	second, err := env.search.SearchImages(context.Background(), []string{"city", "night"}, SearchOptions{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}

	if len(first) != len(second) {
		t.Fatalf("result counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("ordering differs at %d: %s vs %s", i, first[i].ID, second[i].ID)
		}
	}
}

func TestSearchTieBreakByResolution(t *testing.T) {
	env := newTestEnv(t, 0)
	now := time.Now().UTC()

	// Identical tags and timestamps, only resolution differs.
	seedImage(t, env, "small", []string{"forest"}, 640, 480, now)
	seedImage(t, env, "large", []string{"forest"}, 1920, 1080, now)

	results, err := env.search.SearchImages(context.Background(), []string{"forest"}, SearchOptions{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].ID != "large" {
		t.Errorf("expected higher resolution first, got %s", results[0].ID)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	env := newTestEnv(t, 0)
	_, err := env.search.SearchImages(context.Background(), []string{"  ", "!!"}, SearchOptions{})
	if !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("expected ErrEmptyQuery, got %v", err)
	}
}

func TestSearchMinDimensionFilter(t *testing.T) {
	env := newTestEnv(t, 0)
	now := time.Now().UTC()
	seedImage(t, env, "tiny", []string{"logo"}, 100, 100, now)
	seedImage(t, env, "big", []string{"logo"}, 2000, 1500, now)

	results, err := env.search.SearchImages(context.Background(), []string{"logo"}, SearchOptions{Limit: 10, MinWidth: 1000, MinHeight: 1000})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ID != "big" {
		t.Errorf("hard filter failed: %+v", results)
	}
}

func TestSearchSemanticFallback(t *testing.T) {
	env := newTestEnv(t, 0)
	now := time.Now().UTC()

	// No exact tag matches the query, but the embedding is close.
	seedImage(t, env, "near", []string{"sunsets"}, 800, 600, now)
	seedImage(t, env, "far", []string{"zqxwvy"}, 800, 600, now)

	results, err := env.search.SearchImages(context.Background(), []string{"sunset"}, SearchOptions{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want only the near-synonym", len(results))
	}
	if results[0].ID != "near" {
		t.Errorf("fallback hit = %s, want near", results[0].ID)
	}
}

func TestRecencyComponentDecays(t *testing.T) {
	now := time.Now().UTC()
	fresh := recencyComponent(now, now, 1.0)
	old := recencyComponent(now, now.Add(-90*24*time.Hour), 1.0)

	if fresh <= old {
		t.Errorf("recency not decaying: fresh=%v old=%v", fresh, old)
	}
	if fresh <= 0.5 {
		t.Errorf("fresh asset should score above the half-life midpoint, got %v", fresh)
	}
	if old > 0.01 {
		t.Errorf("90-day-old asset should score near zero, got %v", old)
	}

	boosted := recencyComponent(now, now, 2.0)
	if boosted <= fresh {
		t.Errorf("boost not applied: %v vs %v", boosted, fresh)
	}
}

func TestAspectBonus(t *testing.T) {
	testCases := []struct {
		name          string
		width, height int
		desired       float64
		wantZero      bool
	}{
		{name: "exact match gets full bonus", width: 1600, height: 900, desired: 16.0 / 9.0},
		{name: "no desired ratio", width: 1600, height: 900, desired: 0, wantZero: true},
		{name: "far off gets nothing", width: 900, height: 1600, desired: 16.0 / 9.0, wantZero: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := aspectBonus(tc.width, tc.height, tc.desired)
			if tc.wantZero {
				if got != 0 {
					t.Errorf("aspectBonus = %v, want 0", got)
				}
				return
			}
			if got <= 0 || got > 0.5 {
				t.Errorf("aspectBonus = %v, want in (0, 0.5]", got)
			}
		})
	}
}
