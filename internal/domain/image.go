package domain

import "time"

// ImageAsset represents a stored image in the library.
//
// Identity is a generated ID rather than a content hash so the row can be
// re-pointed after a lossless re-encode. OriginalSHA256 is the dedup key:
// re-ingesting the same source bytes always resolves to the same row, even
// when the optimizer produced different stored bytes each time.
type ImageAsset struct {
	ID             string          `gorm:"type:text;primaryKey" json:"id"`
	SHA256         string          `gorm:"type:text;not null;index:idx_images_sha256" json:"sha256"`
	OriginalSHA256 string          `gorm:"type:text;not null;uniqueIndex:idx_images_original_sha256" json:"original_sha256"`
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
	Tags           []ImageTag      `gorm:"foreignKey:AssetID;constraint:OnDelete:CASCADE" json:"tags"`
	CreatedAt      time.Time       `gorm:"index:idx_images_lru,priority:2" json:"created_at"`
	LastUsedAt     time.Time       `gorm:"index:idx_images_lru,priority:1" json:"last_used_at"`
}

// TableName returns the database table name for ImageAsset.
func (ImageAsset) TableName() string {
	return "images"
}

// ImageTag is one tag row attached to an image asset. Tags are stored
// lowercase and alphanumeric-token-normalized.
type ImageTag struct {
	ID      uint   `gorm:"primaryKey;autoIncrement" json:"-"`
	AssetID string `gorm:"type:text;not null;uniqueIndex:idx_image_tags_asset_tag;index:idx_image_tags_asset" json:"-"`
	Tag     string `gorm:"type:text;not null;uniqueIndex:idx_image_tags_asset_tag;index:idx_image_tags_tag" json:"tag"`
}

// TableName returns the database table name for ImageTag.
func (ImageTag) TableName() string {
	return "image_tags"
}

// TagSet returns the asset's tags as a plain string slice.
func (a *ImageAsset) TagSet() []string {
	tags := make([]string, 0, len(a.Tags))
	for _, t := range a.Tags {
		tags = append(tags, t.Tag)
	}
	return tags
}

// Candidate converts the asset into a kind-neutral GC candidate.
func (a *ImageAsset) Candidate() GCCandidate {
	return GCCandidate{
		ID:         a.ID,
		Kind:       AssetKindImage,
		Bytes:      a.Bytes,
		Path:       a.Path,
		ThumbPath:  a.ThumbPath,
		LastUsedAt: a.LastUsedAt,
		CreatedAt:  a.CreatedAt,
	}
}
