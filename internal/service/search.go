package service

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/clipforge/medialib/internal/domain"
	"github.com/clipforge/medialib/internal/logger"
	"github.com/clipforge/medialib/internal/repository"
)

const (
	defaultSearchLimit = 20
	// candidateFactor bounds the scan: the store is asked for at most
	// limit*candidateFactor recent candidates per pass.
	candidateFactor = 10
	minCandidates   = 50

	// recencyHalfLifeDays is the midpoint of the logistic decay over
	// days since last use.
	recencyHalfLifeDays = 14.0
	recencySteepness    = 0.2

	// semanticScoreScale converts a cosine similarity into a score
	// comparable with exact-tag scores.
	semanticScoreScale = 3.0
)

// SearchOptions are the caller-supplied filters and ranking knobs.
type SearchOptions struct {
	Limit         int
	MinWidth      int
	MinHeight     int
	MinDurationMs int64   // videos only
	AspectRatio   float64 // desired width/height, 0 disables the aspect bonus
	RecencyBoost  float64 // scales the recency component, 0 means 1.0
}

func (o *SearchOptions) limit() int {
	if o.Limit <= 0 {
		return defaultSearchLimit
	}
	return o.Limit
}

func (o *SearchOptions) recencyBoost() float64 {
	if o.RecencyBoost == 0 {
		return 1.0
	}
	return o.RecencyBoost
}

func (o *SearchOptions) window() int {
	w := o.limit() * candidateFactor
	if w < minCandidates {
		w = minCandidates
	}
	return w
}

// ScoredImage is one ranked image search hit.
type ScoredImage struct {
	domain.ImageAsset
	Score float64 `json:"score"`
}

// ScoredVideo is one ranked video search hit.
type ScoredVideo struct {
	domain.VideoAsset
	Score float64 `json:"score"`
}

// SemanticOptions controls the embedding fallback pass.
type SemanticOptions struct {
	Enabled        bool
	Threshold      float64
	CandidateLimit int
	UseVectorIndex bool
}

// SearchService ranks stored assets against tag queries.
//
// The primary pass scores exact tag overlap; when it comes up short of the
// requested count and semantic search is enabled, a fallback pass ranks
// additional assets by embedding similarity. The fallback is a ranking aid
// only, gated by a similarity threshold, never the sole filter.
type SearchService struct {
	images   *repository.ImageRepository
	videos   *repository.VideoRepository
	vectors  *repository.VectorRepository
	embedder *Embedder
	log      *logger.Logger
	semantic SemanticOptions
}

// NewSearchService creates a search service. vectors may be nil; the
// fallback then scans stored embeddings directly.
func NewSearchService(images *repository.ImageRepository, videos *repository.VideoRepository, vectors *repository.VectorRepository, embedder *Embedder, log *logger.Logger, semantic SemanticOptions) *SearchService {
	if semantic.CandidateLimit <= 0 {
		semantic.CandidateLimit = 500
	}
	return &SearchService{
		images:   images,
		videos:   videos,
		vectors:  vectors,
		embedder: embedder,
		log:      log,
		semantic: semantic,
	}
}

// SearchImages returns images ranked against the query tags.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - tags: raw query tags, normalized before use.
//   - opts: filters and ranking knobs.
//
// Returns:
//   - []ScoredImage: ranked hits, highest score first, at most opts.Limit.
//   - error: ErrEmptyQuery or a store error.
func (s *SearchService) SearchImages(ctx context.Context, tags []string, opts SearchOptions) ([]ScoredImage, error) {
	query := NormalizeTags(tags)
	if len(query) == 0 {
		return nil, ErrEmptyQuery
	}
	now := time.Now().UTC()

	candidates, err := s.images.CandidatesByTags(ctx, query, opts.MinWidth, opts.MinHeight, opts.window())
	if err != nil {
		return nil, err
	}

	scores := make(map[string]float64)
	byID := make(map[string]*domain.ImageAsset, len(candidates))
	for i := range candidates {
		a := &candidates[i]
		overlap := tagOverlap(query, a.TagSet())
		if overlap == 0 {
			continue
		}
		byID[a.ID] = a
		scores[a.ID] = exactScore(overlap, len(query), len(a.TagSet()), &opts, now, a.LastUsedAt, a.Width, a.Height)
	}

	if s.semantic.Enabled && len(scores) < opts.limit() {
		matched := make([]string, 0, len(scores))
		for id := range scores {
			matched = append(matched, id)
		}
		queryVec := s.embedder.Embed(query)

		fallback, err := s.semanticImages(ctx, queryVec, matched, &opts)
		if err != nil {
			s.log.WithError(err).Warn("Semantic fallback failed, returning exact matches only")
		} else {
			for i := range fallback {
				a := &fallback[i].asset
				score := s.semanticScore(fallback[i].similarity, &opts, now, a.LastUsedAt, a.Width, a.Height)
				if prev, ok := scores[a.ID]; !ok || score > prev {
					scores[a.ID] = score
					byID[a.ID] = a
				}
			}
		}
	}

	ranked := make([]ScoredImage, 0, len(scores))
	for id, score := range scores {
		ranked = append(ranked, ScoredImage{ImageAsset: *byID[id], Score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		return lessRanked(
			ranked[i].Score, ranked[j].Score,
			ranked[i].Width*ranked[i].Height, ranked[j].Width*ranked[j].Height,
			ranked[i].LastUsedAt, ranked[j].LastUsedAt,
			ranked[i].ID, ranked[j].ID,
		)
	})
	if len(ranked) > opts.limit() {
		ranked = ranked[:opts.limit()]
	}
	return ranked, nil
}

// SearchVideos returns videos ranked against the query tags. Mirrors
// SearchImages with the additional minimum-duration filter.
func (s *SearchService) SearchVideos(ctx context.Context, tags []string, opts SearchOptions) ([]ScoredVideo, error) {
	query := NormalizeTags(tags)
	if len(query) == 0 {
		return nil, ErrEmptyQuery
	}
	now := time.Now().UTC()

	candidates, err := s.videos.CandidatesByTags(ctx, query, opts.MinWidth, opts.MinHeight, opts.MinDurationMs, opts.window())
	if err != nil {
		return nil, err
	}

	scores := make(map[string]float64)
	byID := make(map[string]*domain.VideoAsset, len(candidates))
	for i := range candidates {
		a := &candidates[i]
		overlap := tagOverlap(query, a.TagSet())
		if overlap == 0 {
			continue
		}
		byID[a.ID] = a
		scores[a.ID] = exactScore(overlap, len(query), len(a.TagSet()), &opts, now, a.LastUsedAt, a.Width, a.Height)
	}

	if s.semantic.Enabled && len(scores) < opts.limit() {
		matched := make([]string, 0, len(scores))
		for id := range scores {
			matched = append(matched, id)
		}
		queryVec := s.embedder.Embed(query)

		fallback, err := s.semanticVideos(ctx, queryVec, matched, &opts)
		if err != nil {
			s.log.WithError(err).Warn("Semantic fallback failed, returning exact matches only")
		} else {
			for i := range fallback {
				a := &fallback[i].asset
				score := s.semanticScore(fallback[i].similarity, &opts, now, a.LastUsedAt, a.Width, a.Height)
				if prev, ok := scores[a.ID]; !ok || score > prev {
					scores[a.ID] = score
					byID[a.ID] = a
				}
			}
		}
	}

	ranked := make([]ScoredVideo, 0, len(scores))
	for id, score := range scores {
		ranked = append(ranked, ScoredVideo{VideoAsset: *byID[id], Score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		return lessRanked(
			ranked[i].Score, ranked[j].Score,
			ranked[i].Width*ranked[i].Height, ranked[j].Width*ranked[j].Height,
			ranked[i].LastUsedAt, ranked[j].LastUsedAt,
			ranked[i].ID, ranked[j].ID,
		)
	})
	if len(ranked) > opts.limit() {
		ranked = ranked[:opts.limit()]
	}
	return ranked, nil
}

type semanticImageHit struct {
	asset      domain.ImageAsset
	similarity float64
}

type semanticVideoHit struct {
	asset      domain.VideoAsset
	similarity float64
}

// semanticImages collects fallback image candidates above the similarity
// threshold, through the vector index when configured, otherwise by
// scanning stored embeddings.
func (s *SearchService) semanticImages(ctx context.Context, queryVec domain.EmbeddingVector, excludeIDs []string, opts *SearchOptions) ([]semanticImageHit, error) {
	if s.semantic.UseVectorIndex && s.vectors != nil {
		hits, err := s.vectors.Search(ctx, queryVec, domain.AssetKindImage, s.semantic.CandidateLimit)
		if err != nil {
			return nil, err
		}
		excluded := stringSet(excludeIDs)
		ids := make([]string, 0, len(hits))
		simByID := make(map[string]float64, len(hits))
		for _, h := range hits {
			if excluded[h.AssetID] || float64(h.Score) < s.semantic.Threshold {
				continue
			}
			ids = append(ids, h.AssetID)
			simByID[h.AssetID] = float64(h.Score)
		}
		assets, err := s.images.GetByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		out := make([]semanticImageHit, 0, len(assets))
		for _, a := range assets {
			// The index carries no dimension payload, so hard
			// filters apply after the fetch.
			if a.Width < opts.MinWidth || a.Height < opts.MinHeight {
				continue
			}
			out = append(out, semanticImageHit{asset: a, similarity: simByID[a.ID]})
		}
		return out, nil
	}

	candidates, err := s.images.SemanticCandidates(ctx, excludeIDs, opts.MinWidth, opts.MinHeight, s.semantic.CandidateLimit)
	if err != nil {
		return nil, err
	}
	out := make([]semanticImageHit, 0, len(candidates))
	for _, a := range candidates {
		sim := Cosine(queryVec, a.Embedding)
		if sim < s.semantic.Threshold {
			continue
		}
		out = append(out, semanticImageHit{asset: a, similarity: sim})
	}
	return out, nil
}

// semanticVideos mirrors semanticImages for video assets.
func (s *SearchService) semanticVideos(ctx context.Context, queryVec domain.EmbeddingVector, excludeIDs []string, opts *SearchOptions) ([]semanticVideoHit, error) {
	if s.semantic.UseVectorIndex && s.vectors != nil {
		hits, err := s.vectors.Search(ctx, queryVec, domain.AssetKindVideo, s.semantic.CandidateLimit)
		if err != nil {
			return nil, err
		}
		excluded := stringSet(excludeIDs)
		ids := make([]string, 0, len(hits))
		simByID := make(map[string]float64, len(hits))
		for _, h := range hits {
			if excluded[h.AssetID] || float64(h.Score) < s.semantic.Threshold {
				continue
			}
			ids = append(ids, h.AssetID)
			simByID[h.AssetID] = float64(h.Score)
		}
		assets, err := s.videos.GetByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		out := make([]semanticVideoHit, 0, len(assets))
		for _, a := range assets {
			if a.Width < opts.MinWidth || a.Height < opts.MinHeight || a.DurationMs < opts.MinDurationMs {
				continue
			}
			out = append(out, semanticVideoHit{asset: a, similarity: simByID[a.ID]})
		}
		return out, nil
	}

	candidates, err := s.videos.SemanticCandidates(ctx, excludeIDs, opts.MinWidth, opts.MinHeight, opts.MinDurationMs, s.semantic.CandidateLimit)
	if err != nil {
		return nil, err
	}
	out := make([]semanticVideoHit, 0, len(candidates))
	for _, a := range candidates {
		sim := Cosine(queryVec, a.Embedding)
		if sim < s.semantic.Threshold {
			continue
		}
		out = append(out, semanticVideoHit{asset: a, similarity: sim})
	}
	return out, nil
}

// exactScore is the composite score for an exact-tag match:
// overlap + 0.6*coverage + 0.4*jaccard + recency + aspect bonus.
func exactScore(overlap, queryLen, assetTagLen int, opts *SearchOptions, now, lastUsedAt time.Time, width, height int) float64 {
	coverage := float64(overlap) / float64(queryLen)
	union := queryLen + assetTagLen - overlap
	jaccard := float64(overlap) / float64(union)
	return float64(overlap) +
		0.6*coverage +
		0.4*jaccard +
		recencyComponent(now, lastUsedAt, opts.recencyBoost()) +
		aspectBonus(width, height, opts.AspectRatio)
}

// semanticScore ranks a fallback hit from scaled similarity, recency, and
// a halved aspect bonus.
func (s *SearchService) semanticScore(similarity float64, opts *SearchOptions, now, lastUsedAt time.Time, width, height int) float64 {
	return similarity*semanticScoreScale +
		recencyComponent(now, lastUsedAt, opts.recencyBoost()) +
		aspectBonus(width, height, opts.AspectRatio)/2
}

// recencyComponent is a logistic decay over days since last use with its
// midpoint at the half-life, scaled by the caller's boost weight.
func recencyComponent(now, lastUsedAt time.Time, boost float64) float64 {
	days := now.Sub(lastUsedAt).Hours() / 24
	if days < 0 {
		days = 0
	}
	return boost / (1 + math.Exp(recencySteepness*(days-recencyHalfLifeDays)))
}

// aspectBonus rewards assets whose aspect ratio sits near the desired one,
// fading to zero at 50% relative deviation. Zero when no ratio is desired.
func aspectBonus(width, height int, desired float64) float64 {
	if desired <= 0 || width <= 0 || height <= 0 {
		return 0
	}
	aspect := float64(width) / float64(height)
	bonus := 0.5 - math.Abs(aspect-desired)/desired
	if bonus < 0 {
		return 0
	}
	return bonus
}

// tagOverlap counts query tags present in the asset's tag set.
func tagOverlap(query, assetTags []string) int {
	set := stringSet(assetTags)
	overlap := 0
	for _, t := range query {
		if set[t] {
			overlap++
		}
	}
	return overlap
}

func stringSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, s := range items {
		set[s] = true
	}
	return set
}

// lessRanked is the deterministic total order over ranked hits: score
// descending, resolution descending, last use descending, ID ascending.
func lessRanked(scoreI, scoreJ float64, resI, resJ int, usedI, usedJ time.Time, idI, idJ string) bool {
	if scoreI != scoreJ {
		return scoreI > scoreJ
	}
	if resI != resJ {
		return resI > resJ
	}
	if !usedI.Equal(usedJ) {
		return usedI.After(usedJ)
	}
	return idI < idJ
}
