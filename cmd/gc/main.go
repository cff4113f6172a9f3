package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/clipforge/medialib/internal/config"
	"github.com/clipforge/medialib/internal/logger"
	"github.com/clipforge/medialib/internal/service"
)

func main() {
	var (
		target  = flag.Int64("target", 0, "collect down to this many bytes (default: configured budget)")
		dryRun  = flag.Bool("dry-run", false, "report the eviction plan without deleting anything")
		protect = flag.String("protect", "", "comma-separated asset IDs that must not be evicted")
	)
	flag.Parse()

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

	var protected []string
	for _, id := range strings.Split(*protect, ",") {
		if id = strings.TrimSpace(id); id != "" {
			protected = append(protected, id)
		}
	}

	result, err := library.GarbageCollect(ctx, service.GCOptions{
		TargetBytes:  *target,
		DryRun:       *dryRun,
		ProtectedIDs: protected,
	})
	if err != nil {
		logg.WithError(err).Fatal("Garbage collection failed")
	}

	fmt.Printf("freed: %d bytes\nremoved: %d\nskipped: %d\nremaining: %d bytes\nbudget: %d bytes\n",
		result.FreedBytes, result.Removed, result.Skipped, result.RemainingBytes, result.BudgetBytes)
}
