package domain

import "time"

// VideoAsset represents a stored video clip in the library. Shares the
// identity and dedup semantics of ImageAsset, plus probed stream metadata.
type VideoAsset struct {
	ID             string          `gorm:"type:text;primaryKey" json:"id"`
	SHA256         string          `gorm:"type:text;not null;index:idx_videos_sha256" json:"sha256"`
	OriginalSHA256 string          `gorm:"type:text;not null;uniqueIndex:idx_videos_original_sha256" json:"original_sha256"`
	Filename       string          `gorm:"type:text" json:"filename"`
	Ext            string          `gorm:"type:text" json:"ext"`
	Bytes          int64           `json:"bytes"`
	Width          int             `json:"width"`
	Height         int             `json:"height"`
	Path           string          `gorm:"type:text" json:"path"`
	ThumbPath      string          `gorm:"type:text" json:"thumb_path,omitempty"`
	Provider       string          `gorm:"type:text" json:"provider,omitempty"`
	SourceURL      string          `gorm:"type:text" json:"source_url,omitempty"`
	Embedding      EmbeddingVector `gorm:"type:text" json:"-"`
	DurationMs     int64           `json:"duration_ms"`
	FPS            float64         `json:"fps"`
	VideoCodec     string          `gorm:"type:text" json:"video_codec"`
	AudioCodec     string          `gorm:"type:text" json:"audio_codec,omitempty"`
	Bitrate        int64           `json:"bitrate"`
	HasAudio       bool            `json:"has_audio"`
	Tags           []VideoTag      `gorm:"foreignKey:AssetID;constraint:OnDelete:CASCADE" json:"tags"`
	CreatedAt      time.Time       `gorm:"index:idx_videos_lru,priority:2" json:"created_at"`
	LastUsedAt     time.Time       `gorm:"index:idx_videos_lru,priority:1" json:"last_used_at"`
}

// TableName returns the database table name for VideoAsset.
func (VideoAsset) TableName() string {
	return "videos"
}

// VideoTag is one tag row attached to a video asset.
type VideoTag struct {
	ID      uint   `gorm:"primaryKey;autoIncrement" json:"-"`
	AssetID string `gorm:"type:text;not null;uniqueIndex:idx_video_tags_asset_tag;index:idx_video_tags_asset" json:"-"`
	Tag     string `gorm:"type:text;not null;uniqueIndex:idx_video_tags_asset_tag;index:idx_video_tags_tag" json:"tag"`
}

// TableName returns the database table name for VideoTag.
func (VideoTag) TableName() string {
	return "video_tags"
}

// TagSet returns the asset's tags as a plain string slice.
func (a *VideoAsset) TagSet() []string {
	tags := make([]string, 0, len(a.Tags))
	for _, t := range a.Tags {
		tags = append(tags, t.Tag)
	}
	return tags
}

// Candidate converts the asset into a kind-neutral GC candidate.
func (a *VideoAsset) Candidate() GCCandidate {
	return GCCandidate{
		ID:         a.ID,
		Kind:       AssetKindVideo,
		Bytes:      a.Bytes,
		Path:       a.Path,
		ThumbPath:  a.ThumbPath,
		LastUsedAt: a.LastUsedAt,
		CreatedAt:  a.CreatedAt,
	}
}
