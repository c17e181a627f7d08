// backend/cmd/precompute/main.go
//
// Precomputes one embedding vector per catalog row and writes the bundle
// consumed by the server. Run this whenever the catalog CSV changes.
package main

import (
	"context"
	"flag"
	"log"
	"strings"
	"time"

	"github.com/fikse/fikse-agent/backend/internal/catalog"
	"github.com/fikse/fikse-agent/backend/internal/config"
	"github.com/fikse/fikse-agent/backend/internal/embedding"
	"github.com/fikse/fikse-agent/backend/internal/nlp"
	"github.com/fikse/fikse-agent/backend/pkg/utils"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

var (
	dryRun   = flag.Bool("dry-run", false, "Don't call the embedding API, just print what would be embedded")
	verbose  = flag.Bool("verbose", false, "Enable verbose logging")
	rowLimit = flag.Int("limit", 0, "Limit number of catalog rows to process (0 = all)")
	outPath  = flag.String("out", "", "Output bundle path (default: dataset.embeddingspath)")
)

func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	utils.InitLogger()
	logger := utils.GetLogger()
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	logger.Info("Starting catalog embedding precompute...")

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	if err := cfg.ValidateDataset(); err != nil {
		logger.WithError(err).Fatal("Dataset configuration validation failed")
	}

	cat, err := catalog.Load(cfg.Dataset.CatalogPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load service catalog")
	}
	logger.WithField("services", cat.Len()).Info("Service catalog loaded")

	dict, err := nlp.LoadFrequencyDictionary(cfg.Dataset.DictionaryPath)
	if err != nil {
		logger.WithError(err).Warn("Frequency dictionary unavailable, spell correction disabled")
		dict = nil
	}
	normalizer := nlp.NewNormalizer(dict, logger)

	total := cat.Len()
	if *rowLimit > 0 && *rowLimit < total {
		total = *rowLimit
	}

	// The source hash ties a bundle to the exact catalog text it was built
	// from; the server refuses to load a bundle whose hash disagrees with
	// the catalog it serves.
	sourceHash := cat.Checksum()
	if total < cat.Len() {
		var partial strings.Builder
		for i := 0; i < total; i++ {
			partial.WriteString(cat.RowText(i))
			partial.WriteByte('\n')
		}
		sourceHash = utils.MD5Hash(partial.String())
	}

	if *dryRun {
		for i := 0; i < total; i++ {
			logger.WithFields(logrus.Fields{
				"row":  i,
				"text": normalizer.Normalize(cat.RowText(i)),
			}).Info("Would embed")
		}
		logger.WithFields(logrus.Fields{
			"rows":        total,
			"source_hash": sourceHash,
		}).Info("Dry run complete")
		return
	}

	if err := cfg.ValidateOllama(); err != nil {
		logger.WithError(err).Fatal("Ollama configuration validation failed")
	}

	client := embedding.NewClient(cfg.Ollama.BaseURL, cfg.Ollama.EmbedModel, logger)
	ctx := context.Background()

	started := time.Now()
	vectors := make([][]float32, 0, total)

	for i := 0; i < total; i++ {
		text := normalizer.Normalize(cat.RowText(i))

		vector, err := client.EmbedWithRetry(ctx, text)
		if err != nil {
			logger.WithError(err).WithField("row", i).Fatal("Embedding failed")
		}
		vectors = append(vectors, vector)

		if (i+1)%25 == 0 || i+1 == total {
			logger.WithFields(logrus.Fields{
				"done":    i + 1,
				"total":   total,
				"elapsed": time.Since(started).Round(time.Second).String(),
			}).Info("Embedding progress")
		}
	}

	bundle := embedding.Bundle{
		Dim:        len(vectors[0]),
		SourceHash: sourceHash,
		Vectors:    vectors,
	}

	target := *outPath
	if target == "" {
		target = cfg.Dataset.EmbeddingsPath
	}

	if err := embedding.SaveBundle(target, bundle); err != nil {
		logger.WithError(err).Fatal("Failed to write embedding bundle")
	}

	logger.WithFields(logrus.Fields{
		"path":    target,
		"vectors": len(vectors),
		"dim":     bundle.Dim,
		"elapsed": time.Since(started).Round(time.Second).String(),
	}).Info("Embedding precompute completed successfully!")
}
