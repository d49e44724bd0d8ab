package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/herbarium-review/internal/model"
	"github.com/sells-group/herbarium-review/internal/review"
)

var ingestImageDir string

var ingestCmd = &cobra.Command{
	Use:   "ingest <payload.json>...",
	Short: "Create PENDING records from extraction payload files",
	Long: "Reads extraction payloads (a JSON object or array per file) and creates one record per specimen. " +
		"Payloads without a specimen_id get one from the SHA-256 of their source image. " +
		"Specimens that already exist are skipped.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx, "ingest")
		if err != nil {
			return err
		}
		defer e.Close()

		var payloads []model.ExtractionPayload
		for _, path := range args {
			ps, err := readPayloads(path, ingestImageDir)
			if err != nil {
				return err
			}
			payloads = append(payloads, ps...)
		}

		res, err := ingestAll(ctx, e.Service, payloads, cfg.Ingest.Concurrency)
		zap.L().Info("ingest complete",
			zap.Int64("created", res.created),
			zap.Int64("skipped", res.skipped),
			zap.Int64("failed", res.failed),
		)
		return err
	},
}

type ingestResult struct {
	created, skipped, failed int64
}

// ingestAll creates records concurrently. Duplicates are skipped; malformed
// payloads are logged and counted. A storage failure stops the run.
func ingestAll(ctx context.Context, svc *review.Service, payloads []model.ExtractionPayload, concurrency int) (ingestResult, error) {
	var created, skipped, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))
	for _, p := range payloads {
		g.Go(func() error {
			_, err := svc.Ingest(gctx, p)
			switch {
			case err == nil:
				created.Add(1)
			case errors.Is(err, model.ErrAlreadyExists):
				skipped.Add(1)
			case errors.Is(err, review.ErrInvalidPayload):
				failed.Add(1)
				zap.L().Warn("skipping malformed payload", zap.String("specimen_id", p.SpecimenID), zap.Error(err))
			default:
				failed.Add(1)
				return eris.Wrapf(err, "ingest %s", p.SpecimenID)
			}
			return nil
		})
	}
	err := g.Wait()
	return ingestResult{created: created.Load(), skipped: skipped.Load(), failed: failed.Load()}, err
}

// readPayloads decodes one file. Missing ids are derived from the source
// image, resolved relative to imageDir.
func readPayloads(path, imageDir string) ([]model.ExtractionPayload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", path)
	}

	var payloads []model.ExtractionPayload
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &payloads)
	} else {
		var p model.ExtractionPayload
		err = json.Unmarshal(data, &p)
		payloads = []model.ExtractionPayload{p}
	}
	if err != nil {
		return nil, eris.Wrapf(err, "decode %s", path)
	}

	for i := range payloads {
		p := &payloads[i]
		if strings.TrimSpace(p.SpecimenID) != "" || p.SourceImage == "" {
			continue
		}
		img := p.SourceImage
		if !filepath.IsAbs(img) && imageDir != "" {
			img = filepath.Join(imageDir, img)
		}
		b, err := os.ReadFile(img)
		if err != nil {
			return nil, eris.Wrapf(err, "read source image for %s", path)
		}
		p.SpecimenID = model.SpecimenIDFromImage(b)
	}
	return payloads, nil
}

func init() {
	ingestCmd.Flags().StringVar(&ingestImageDir, "image-dir", "", "directory holding source images referenced by payloads")
	rootCmd.AddCommand(ingestCmd)
}
