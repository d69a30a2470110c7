package etl

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/segmentio/parquet-go"
	"go.uber.org/zap"

	"github.com/raaihank/isolated-regex/internal/rule"
)

// ExportFile writes every stored rule to filePath, sorted by avatar, in
// the format given by its extension. It returns the number of rows written.
func (p *Pipeline) ExportFile(ctx context.Context, filePath string) (int, error) {
	format, ok := DetectFileFormat(filePath)
	if !ok {
		return 0, fmt.Errorf("unsupported file format: %s", filePath)
	}

	rules := p.store.Rules()
	avatars := make([]string, 0, len(rules))
	for avatar := range rules {
		avatars = append(avatars, avatar)
	}
	sort.Strings(avatars)

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	file, err := os.Create(filePath)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s file: %w", format, err)
	}

	switch format {
	case FormatCSV:
		err = writeCSV(file, avatars, rules)
	case FormatParquet:
		err = writeParquet(file, avatars, rules)
	case FormatJSON:
		err = writeJSON(file, avatars, rules)
	}
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, fmt.Errorf("%s export failed: %w", format, err)
	}

	p.logger.Info("Rule export completed",
		zap.String("file", filePath),
		zap.String("format", string(format)),
		zap.Int("rules", len(avatars)))
	return len(avatars), nil
}

func toRecord(avatar string, r rule.Rule) RuleRecord {
	return RuleRecord{
		Avatar:      avatar,
		Enabled:     r.Enabled,
		Pattern:     r.Pattern,
		Replacement: r.Replacement,
		Flags:       r.Flags,
		Scope:       r.Scope.String(),
	}
}

func writeCSV(file *os.File, avatars []string, rules map[string]rule.Rule) error {
	w := csv.NewWriter(file)
	if err := w.Write(csvColumns); err != nil {
		return err
	}
	for _, avatar := range avatars {
		rec := toRecord(avatar, rules[avatar])
		if err := w.Write([]string{
			rec.Avatar,
			strconv.FormatBool(rec.Enabled),
			rec.Pattern,
			rec.Replacement,
			rec.Flags,
			rec.Scope,
		}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeParquet(file *os.File, avatars []string, rules map[string]rule.Rule) error {
	records := make([]RuleRecord, len(avatars))
	for i, avatar := range avatars {
		records[i] = toRecord(avatar, rules[avatar])
	}

	w := parquet.NewGenericWriter[RuleRecord](file)
	if _, err := w.Write(records); err != nil {
		return err
	}
	return w.Close()
}

func writeJSON(file *os.File, avatars []string, rules map[string]rule.Rule) error {
	buf := bufio.NewWriter(file)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	for _, avatar := range avatars {
		r := rules[avatar]
		if r.Scope == nil {
			r.Scope = rule.Scope{}
		}
		if err := enc.Encode(jsonRecord{Avatar: avatar, Rule: r}); err != nil {
			return err
		}
	}
	return buf.Flush()
}
