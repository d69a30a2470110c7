// Package etl moves rules between the store and bulk files in JSON-lines,
// CSV or Parquet form.
package etl

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/parquet-go"
	"go.uber.org/zap"

	"github.com/raaihank/isolated-regex/internal/rule"
)

// RuleStore is the part of the rule store the pipeline reads and writes
type RuleStore interface {
	ImportAvatar(avatar string, p rule.Patch) error
	Rules() map[string]rule.Rule
}

// Pipeline handles bulk rule imports and exports
type Pipeline struct {
	store  RuleStore
	config Config
	logger *zap.Logger
}

// NewPipeline creates a new ETL pipeline
func NewPipeline(store RuleStore, config Config, logger *zap.Logger) *Pipeline {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	if config.ProgressReport <= 0 {
		config.ProgressReport = DefaultConfig().ProgressReport
	}
	return &Pipeline{
		store:  store,
		config: config,
		logger: logger,
	}
}

// ImportFile merges every row of a rule file into the store with import
// semantics. Rows without an avatar or pattern are counted as failed.
func (p *Pipeline) ImportFile(ctx context.Context, filePath string) (*ProcessingResult, error) {
	format, ok := DetectFileFormat(filePath)
	if !ok {
		return nil, fmt.Errorf("unsupported file format: %s", filePath)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s file: %w", format, err)
	}
	defer file.Close()

	p.logger.Info("Starting rule import",
		zap.String("file", filePath),
		zap.String("format", string(format)),
		zap.Int("batch_size", p.config.BatchSize),
		zap.Bool("dry_run", p.config.DryRun))

	start := time.Now()
	result := &ProcessingResult{}

	var readBatch func() ([]*Entry, error)
	switch format {
	case FormatCSV:
		readBatch, err = p.csvReader(file, result)
	case FormatParquet:
		reader := parquet.NewReader(file)
		defer reader.Close()
		readBatch = p.parquetReader(reader, result)
	case FormatJSON:
		readBatch = p.jsonReader(file, result)
	}
	if err != nil {
		return result, fmt.Errorf("%s processing failed: %w", format, err)
	}

	if err := p.processBatches(ctx, readBatch, result); err != nil {
		return result, fmt.Errorf("%s processing failed: %w", format, err)
	}
	result.Duration = time.Since(start)

	p.logger.Info("Rule import completed",
		zap.Int64("total_records", result.TotalRecords),
		zap.Int64("processed_ok", result.ProcessedOK),
		zap.Int64("processed_failed", result.ProcessedFailed),
		zap.Duration("total_duration", result.Duration))

	return result, nil
}

// csvReader reads rows by header name. Columns missing from the header
// leave the stored field untouched, as does a blank scope cell.
func (p *Pipeline) csvReader(r io.Reader, result *ProcessingResult) (func() ([]*Entry, error), error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := columns["pattern"]; !ok {
		if _, ok := columns["regex"]; !ok {
			return nil, fmt.Errorf("CSV header has no pattern column: %v", header)
		}
		columns["pattern"] = columns["regex"]
	}

	p.logger.Info("CSV header detected", zap.Strings("columns", header))

	var row int64
	return func() ([]*Entry, error) {
		var batch []*Entry
		for len(batch) < p.config.BatchSize {
			record, err := reader.Read()
			if err == io.EOF {
				break
			}
			row++
			if err != nil {
				p.reject(result, row, "", err)
				continue
			}

			entry, err := csvEntry(columns, record)
			if err != nil {
				p.reject(result, row, entry.Avatar, err)
				continue
			}
			entry.Row = row
			batch = append(batch, entry)
		}
		return batch, nil
	}, nil
}

func csvEntry(columns map[string]int, record []string) (*Entry, error) {
	cell := func(name string) (string, bool) {
		i, ok := columns[name]
		if !ok || i >= len(record) {
			return "", false
		}
		return record[i], true
	}

	entry := &Entry{}
	entry.Avatar, _ = cell("avatar")
	entry.Avatar = strings.TrimSpace(entry.Avatar)

	if v, ok := cell("enabled"); ok {
		enabled, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return entry, fmt.Errorf("invalid enabled value %q", v)
		}
		entry.Patch.Enabled = &enabled
	}
	if v, ok := cell("pattern"); ok {
		entry.Patch.Pattern = &v
	}
	if v, ok := cell("replacement"); ok {
		entry.Patch.Replacement = &v
	}
	if v, ok := cell("flags"); ok {
		entry.Patch.Flags = &v
	}
	if v, ok := cell("scope"); ok && strings.TrimSpace(v) != "" {
		scope, err := rule.ParseScopeList(v)
		if err != nil {
			return entry, err
		}
		entry.Patch.Scope = &scope
	}
	return entry, nil
}

// parquetReader reads RuleRecord rows. A blank scope keeps the stored scope.
func (p *Pipeline) parquetReader(reader *parquet.Reader, result *ProcessingResult) func() ([]*Entry, error) {
	var row int64
	return func() ([]*Entry, error) {
		var batch []*Entry
		for len(batch) < p.config.BatchSize {
			var record RuleRecord
			err := reader.Read(&record)
			if err == io.EOF {
				break
			}
			row++
			if err != nil {
				return batch, fmt.Errorf("failed to read Parquet row %d: %w", row, err)
			}

			entry := &Entry{Row: row, Avatar: strings.TrimSpace(record.Avatar)}
			entry.Patch = rule.Patch{
				Enabled:     &record.Enabled,
				Pattern:     &record.Pattern,
				Replacement: &record.Replacement,
				Flags:       &record.Flags,
			}
			if strings.TrimSpace(record.Scope) != "" {
				scope, err := rule.ParseScopeList(record.Scope)
				if err != nil {
					p.reject(result, row, entry.Avatar, err)
					continue
				}
				entry.Patch.Scope = &scope
			}
			batch = append(batch, entry)
		}
		return batch, nil
	}
}

// jsonReader reads a stream of JSON objects, one rule file per object plus
// an avatar field
func (p *Pipeline) jsonReader(r io.Reader, result *ProcessingResult) func() ([]*Entry, error) {
	decoder := json.NewDecoder(r)

	var row int64
	return func() ([]*Entry, error) {
		var batch []*Entry
		for len(batch) < p.config.BatchSize {
			var raw json.RawMessage
			err := decoder.Decode(&raw)
			if err == io.EOF {
				break
			}
			row++
			if err != nil {
				// the decoder cannot resynchronize after a syntax error
				return batch, fmt.Errorf("failed to read JSON row %d: %w", row, err)
			}

			var head struct {
				Avatar string `json:"avatar"`
			}
			json.Unmarshal(raw, &head)
			avatar := strings.TrimSpace(head.Avatar)

			patch, err := rule.Deserialize(raw)
			if err != nil {
				p.reject(result, row, avatar, err)
				continue
			}
			batch = append(batch, &Entry{Row: row, Avatar: avatar, Patch: patch})
		}
		return batch, nil
	}
}

// processBatches processes data in batches using the provided reader function
func (p *Pipeline) processBatches(ctx context.Context, readBatch func() ([]*Entry, error), result *ProcessingResult) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		batch, err := readBatch()
		if len(batch) > 0 {
			p.processBatch(batch, result)
		}
		if err != nil {
			return fmt.Errorf("failed to read batch: %w", err)
		}
		if len(batch) == 0 {
			return nil
		}
	}
}

// processBatch merges a batch of entries into the store
func (p *Pipeline) processBatch(batch []*Entry, result *ProcessingResult) {
	p.logger.Debug("Processing batch", zap.Int("batch_size", len(batch)))

	for _, entry := range batch {
		if err := p.importEntry(entry); err != nil {
			p.reject(result, entry.Row, entry.Avatar, err)
			continue
		}
		result.TotalRecords++
		result.ProcessedOK++

		if result.TotalRecords%int64(p.config.ProgressReport) == 0 {
			p.logger.Info("Processing progress",
				zap.Int64("records_processed", result.TotalRecords),
				zap.Int64("records_ok", result.ProcessedOK),
				zap.Int64("records_failed", result.ProcessedFailed))
		}
	}
}

func (p *Pipeline) importEntry(entry *Entry) error {
	if entry.Avatar == "" {
		return errors.New("row has no avatar")
	}
	if p.config.DryRun {
		return entry.Patch.Validate()
	}
	return p.store.ImportAvatar(entry.Avatar, entry.Patch)
}

// reject counts a row as failed and keeps its error up to MaxErrors
func (p *Pipeline) reject(result *ProcessingResult, row int64, avatar string, err error) {
	result.TotalRecords++
	result.ProcessedFailed++
	p.logger.Debug("Invalid record",
		zap.Int64("row", row),
		zap.String("avatar", avatar),
		zap.Error(err))

	if p.config.MaxErrors <= 0 || len(result.Errors) < p.config.MaxErrors {
		result.Errors = append(result.Errors, ValidationError{Row: row, Avatar: avatar, Message: err.Error()})
	}
}
