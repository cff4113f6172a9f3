package storage

import "github.com/clipforge/medialib/internal/config"

// NewArchive creates an ArchiveStore from configuration, or nil when the
// archive is disabled.
// Parameters:
//   - cfg: archive configuration including endpoint, credentials, and bucket.
//
// Returns:
//   - ArchiveStore: initialized archive client, nil when disabled.
//   - error: non-nil if the client cannot be created.
func NewArchive(cfg *config.ArchiveConfig) (ArchiveStore, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	return NewS3Archive(&S3Config{
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		UseSSL:    cfg.UseSSL,
		Bucket:    cfg.Bucket,
		Region:    cfg.Region,
	})
}
