// Command backup exports or imports a whole-account snapshot, locally as a
// JSON file or through the configured Cloud Storage bucket.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/agilizei/irorganiza/internal/backup"
	"github.com/agilizei/irorganiza/internal/blobstore"
	"github.com/agilizei/irorganiza/internal/config"
	"github.com/agilizei/irorganiza/internal/lifecycle"
	"github.com/agilizei/irorganiza/internal/logger"
	fsstore "github.com/agilizei/irorganiza/internal/recordstore/firestore"
)

func main() {
	var (
		envFile = flag.String("env", ".env", "Path to .env file")
		owner   = flag.String("owner", "", "Identity whose records to export or import")
		export  = flag.String("export", "", "Write a snapshot to this local file")
		load    = flag.String("import", "", "Import a snapshot from this local file")
		object  = flag.String("object", "", "Cloud Storage object name to upload to or fetch from")
		fetch   = flag.Bool("fetch", false, "Import from the bucket object instead of a local file")
	)
	flag.Parse()

	log := logger.New()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.ProjectID == "" {
		log.Fatal().Msg("GOOGLE_CLOUD_PROJECT is required")
	}
	if *owner == "" {
		log.Fatal().Msg("-owner is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	records, err := fsstore.New(ctx, cfg.ProjectID, cfg.AppID, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create record store")
	}
	defer records.Close()

	blobs := blobstore.New(cfg.BlobDBPath, log)
	defer blobs.Close()

	ctrl := lifecycle.New(records, blobs, log)

	switch {
	case *export != "" || (*object != "" && !*fetch):
		doc, err := ctrl.Export(ctx, *owner)
		if err != nil {
			log.Fatal().Err(err).Msg("Export failed")
		}
		if *export != "" {
			data, err := doc.Encode()
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to encode snapshot")
			}
			if err := os.WriteFile(*export, data, 0o644); err != nil {
				log.Fatal().Err(err).Msg("Failed to write snapshot file")
			}
			log.Info().Str("file", *export).Int("expenses", len(doc.Expenses)).Msg("Snapshot written")
		}
		if *object != "" && !*fetch {
			if cfg.BackupBucket == "" {
				log.Fatal().Msg("BACKUP_BUCKET is required for bucket transfer")
			}
			transfer := backup.NewGCSTransfer(cfg.BackupBucket)
			if err := transfer.Upload(ctx, *object, doc); err != nil {
				log.Fatal().Err(err).Msg("Upload failed")
			}
			log.Info().Str("object", *object).Msg("Snapshot uploaded")
		}

	case *load != "":
		data, err := os.ReadFile(*load)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read snapshot file")
		}
		doc, err := backup.Decode(data)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid snapshot")
		}
		if err := ctrl.Import(ctx, *owner, doc); err != nil {
			log.Fatal().Err(err).Msg("Import failed")
		}
		log.Info().Int("expenses", len(doc.Expenses)).Int("dependents", len(doc.Dependents)).Msg("Snapshot imported")

	case *fetch:
		if cfg.BackupBucket == "" || *object == "" {
			log.Fatal().Msg("BACKUP_BUCKET and -object are required for bucket fetch")
		}
		transfer := backup.NewGCSTransfer(cfg.BackupBucket)
		doc, err := transfer.Fetch(ctx, *object)
		if err != nil {
			log.Fatal().Err(err).Msg("Fetch failed")
		}
		if err := ctrl.Import(ctx, *owner, doc); err != nil {
			log.Fatal().Err(err).Msg("Import failed")
		}
		log.Info().Int("expenses", len(doc.Expenses)).Msg("Snapshot fetched and imported")

	default:
		flag.Usage()
		os.Exit(2)
	}
}
