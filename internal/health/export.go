package health

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/tidwall/gjson"
)

// SkippedSample records one export row that failed strict validation and the
// reason it was dropped.
type SkippedSample struct {
	File   string
	Index  int
	Reason string
}

// ParseResult is the outcome of parsing one export file: validated samples
// plus an explicit skip record per invalid row. A bad row never aborts the
// file.
type ParseResult struct {
	Samples []Sample
	Skipped []SkippedSample
}

// ExportDir reads platform health exports dropped as JSON files into a
// directory. It implements SampleSource.
type ExportDir struct {
	dir string
}

func NewExportDir(dir string) *ExportDir {
	return &ExportDir{dir: dir}
}

// Samples parses every export file in the directory and returns the samples
// of the requested type whose start instant falls inside [from, to], ordered
// by start.
func (e *ExportDir) Samples(ctx context.Context, sampleType string, from, to time.Time) ([]Sample, error) {
	paths, err := filepath.Glob(filepath.Join(e.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("health: listing exports in %s: %w", e.dir, err)
	}
	sort.Strings(paths)

	var out []Sample
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("health: reading export %s: %w", path, err)
		}
		res := ParseExport(filepath.Base(path), data)
		for _, s := range res.Samples {
			if s.Type != sampleType {
				continue
			}
			if s.Start.Before(from) || s.Start.After(to) {
				continue
			}
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// ParseExport parses one export payload. The format is a top-level "samples"
// array of objects with uuid, type, start, end, value or stage, source_name
// and an optional timezone. Every row is validated independently.
func ParseExport(file string, data []byte) ParseResult {
	var res ParseResult
	if !gjson.ValidBytes(data) {
		res.Skipped = append(res.Skipped, SkippedSample{File: file, Index: -1, Reason: "not valid JSON"})
		return res
	}

	samples := gjson.GetBytes(data, "samples")
	if !samples.IsArray() {
		res.Skipped = append(res.Skipped, SkippedSample{File: file, Index: -1, Reason: "missing samples array"})
		return res
	}

	idx := -1
	samples.ForEach(func(_, row gjson.Result) bool {
		idx++
		s, reason := parseRow(row)
		if reason != "" {
			res.Skipped = append(res.Skipped, SkippedSample{File: file, Index: idx, Reason: reason})
			return true
		}
		res.Samples = append(res.Samples, s)
		return true
	})
	return res
}

func parseRow(row gjson.Result) (Sample, string) {
	s := Sample{
		UUID:       row.Get("uuid").String(),
		Type:       row.Get("type").String(),
		SourceName: row.Get("source_name").String(),
		TimeZone:   row.Get("timezone").String(),
	}
	if s.UUID == "" {
		return Sample{}, "missing uuid"
	}
	if s.Type == "" {
		return Sample{}, "missing type"
	}

	var err error
	s.Start, err = time.Parse(time.RFC3339, row.Get("start").String())
	if err != nil {
		return Sample{}, "unparsable start instant"
	}
	s.End, err = time.Parse(time.RFC3339, row.Get("end").String())
	if err != nil {
		return Sample{}, "unparsable end instant"
	}
	if !s.End.After(s.Start) {
		return Sample{}, "end not after start"
	}

	if s.Type == TypeSleepStage {
		s.Stage = row.Get("stage").String()
		if s.Stage == "" {
			return Sample{}, "missing stage"
		}
		return s, ""
	}

	value := row.Get("value")
	if !value.Exists() || value.Type != gjson.Number {
		return Sample{}, "missing numeric value"
	}
	s.Value = value.Float()
	return s, ""
}
