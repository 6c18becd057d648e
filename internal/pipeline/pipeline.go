// Package pipeline runs the conversion chain for one job:
// convert -> parse -> normalize -> validate -> aggregate -> write workbook.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"dwg-boq-service/internal/boq"
	"dwg-boq-service/internal/domain/model"
	"dwg-boq-service/internal/domain/ports/adapter"
	"dwg-boq-service/internal/dxf"
	"dwg-boq-service/internal/infra/logging"
	"dwg-boq-service/internal/infra/metrics"
	"dwg-boq-service/internal/infra/storage"
)

type Pipeline struct {
	converter adapter.DrawingConverter
	store     *storage.JobStore
	catalog   boq.Catalog
	log       *zerolog.Logger
}

func New(converter adapter.DrawingConverter, store *storage.JobStore, catalog boq.Catalog, logger *zerolog.Logger) *Pipeline {
	l := logger.With().Str("component", "pipeline").Logger()
	return &Pipeline{converter: converter, store: store, catalog: catalog, log: &l}
}

// Run executes the full extraction for a claimed job and returns the
// result summary. Any error leaves the job directory in place for
// inspection; retries operate on the same input.
func (p *Pipeline) Run(ctx context.Context, job *model.Job) (*model.JobResult, error) {
	ctx = logging.WithJobID(ctx, job.ID)
	log := logging.With(ctx, p.log)
	defer logging.TraceDuration(log, "Pipeline.Run")()
	log.Info().Str("input", job.InputPath).Msg("pipeline start")

	if err := p.store.PrepareWorkDirs(job.ID); err != nil {
		return nil, err
	}

	// 1) Convert DWG -> DXF (DXF inputs pass through).
	dxfPath, err := p.converter.Convert(ctx, job.InputPath, p.store.TmpDir(job.ID))
	if err != nil {
		return nil, fmt.Errorf("convert %s: %w", filepath.Base(job.InputPath), err)
	}

	// 2) Parse DXF.
	doc, err := dxf.ParseFile(dxfPath)
	if err != nil {
		return nil, fmt.Errorf("parse dxf: %w", err)
	}
	for entityType, n := range doc.Entities.Counts() {
		metrics.AddEntitiesParsed(entityType, n)
	}
	if len(doc.Entities.Inserts) == 0 {
		log.Warn().Msg("no block insertions found; drawing may have no countable content")
	}

	// 3) Normalize against the catalog.
	rows := make([]boq.Row, 0, len(doc.Entities.Inserts))
	for _, ins := range doc.Entities.Inserts {
		rows = append(rows, boq.NewRow(ins, p.catalog))
	}

	// 4) Validate.
	exceptions := boq.Validate(rows)
	metrics.AddValidationExceptions(len(exceptions))

	// 5) Aggregate.
	items := boq.Aggregate(rows)
	stats := boq.Summarize(items)

	// 6) Write the workbook.
	data, err := boq.WriteWorkbook(items, exceptions, stats, boq.WorkbookMeta{
		JobID:        job.ID,
		SourceFile:   job.Filename,
		Units:        doc.Header.Units(),
		Measurements: doc.Measure(),
	})
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	outPath, err := p.store.WriteOutput(job.ID, data)
	if err != nil {
		return nil, err
	}
	if err := p.store.CleanupTmp(job.ID); err != nil {
		log.Warn().Err(err).Msg("tmp cleanup failed")
	}

	log.Info().
		Int("rows", len(rows)).
		Int("items", len(items)).
		Int("exceptions", len(exceptions)).
		Str("output", outPath).
		Msg("pipeline done")

	return &model.JobResult{
		OutputPath:  outPath,
		ItemsParsed: len(rows),
		UniqueItems: len(items),
		Exceptions:  len(exceptions),
	}, nil
}
