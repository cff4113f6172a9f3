package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/clipforge/medialib/internal/config"
	"github.com/clipforge/medialib/internal/logger"
	"github.com/clipforge/medialib/internal/probe"
	"github.com/clipforge/medialib/internal/service"
)

func main() {
	var (
		dir      = flag.String("dir", "", "directory to ingest recursively")
		file     = flag.String("file", "", "single file to ingest")
		url      = flag.String("url", "", "remote URL to download and ingest")
		tagsFlag = flag.String("tags", "", "comma-separated tags applied to every ingested asset")
		provider = flag.String("provider", "local", "provenance provider recorded on the assets")
	)
	flag.Parse()

	if *dir == "" && *file == "" && *url == "" {
		log.Fatal("one of -dir, -file, or -url is required")
	}
	tags := splitTags(*tagsFlag)
	if len(tags) == 0 {
		log.Fatal("-tags is required: every asset needs at least one tag")
	}

	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logg := logger.NewDefault()
	defer logger.Sync()

	library := service.NewLibrary(cfg, logg)
	ctx := context.Background()
	if err := library.EnsureAvailable(ctx); err != nil {
		logg.WithError(err).Fatal("Failed to open media library")
	}
	defer library.Dispose()

	opts := service.IngestOptions{Provider: *provider}

	switch {
	case *url != "":
		if _, _, err := library.IngestRemote(ctx, *url, tags, opts); err != nil {
			logg.WithError(err).Fatal("Ingestion failed")
		}
	case *file != "":
		if _, _, err := library.IngestDownloaded(ctx, *file, tags, opts); err != nil {
			logg.WithError(err).Fatal("Ingestion failed")
		}
	default:
		ingested, failed := ingestDir(ctx, library, logg, *dir, tags, opts)
		logg.WithFields(logger.Fields{
			"ingested": ingested,
			"failed":   failed,
		}).Info("Directory ingestion finished")
		if failed > 0 {
			os.Exit(1)
		}
	}
}

// ingestDir walks root and ingests every file with a supported extension.
// Per-file failures are logged and counted; the walk continues.
func ingestDir(ctx context.Context, library *service.Library, logg *logger.Logger, root string, tags []string, opts service.IngestOptions) (ingested, failed int) {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if probe.KindForExt(probe.NormalizeExt(path)) == "" {
			return nil
		}

		if _, _, err := library.IngestDownloaded(ctx, path, tags, opts); err != nil {
			failed++
			fields := logger.Fields{"path": path}
			if errors.Is(err, service.ErrQuotaExceeded) {
				logg.WithFields(fields).WithError(err).Warn("Ingestion deferred, retry after garbage collection")
			} else {
				logg.WithFields(fields).WithError(err).Error("Ingestion failed")
			}
			return nil
		}
		ingested++
		return nil
	})
	if err != nil {
		logg.WithError(err).Error("Directory walk aborted")
		failed++
	}
	return ingested, failed
}

func splitTags(raw string) []string {
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
