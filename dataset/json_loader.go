package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/yuhaijun999/dingo-sdk/vector"
)

// FieldMapping names which JSON object keys hold a record's id and
// embedding, letting one loader serve differently-shaped corpora
// (Wikipedia2212, Miracl, Bioasq, OpenaiLarge) without a schema per format.
type FieldMapping struct {
	IDKey     string
	VectorKey string
}

// DefaultFieldMapping matches the common "id"/"emb" corpus shape.
var DefaultFieldMapping = FieldMapping{IDKey: "id", VectorKey: "emb"}

type jsonRecord struct {
	ID     int64
	Vector []float32
}

// JSONLoader reads every *.json file in a directory, each holding an array
// of records, and exposes them as a Dataset. Ground truth is read from an
// optional single JSON file alongside the corpus.
type JSONLoader struct {
	dir      string
	mapping  FieldMapping
	testFile string

	records []jsonRecord
	tests   []TestEntry
	dim     int
	cursor  int
}

// NewJSONLoader builds a loader over every *.json file in dir. testFile,
// if non-empty, is a separate JSON file of {"query": [...], "ground_truth":
// [...]} records used for TestData.
func NewJSONLoader(dir string, mapping FieldMapping, testFile string) *JSONLoader {
	if mapping.IDKey == "" {
		mapping = DefaultFieldMapping
	}
	return &JSONLoader{dir: dir, mapping: mapping, testFile: testFile}
}

// Init reads every corpus file (and the test file, if configured).
func (l *JSONLoader) Init(ctx context.Context) error {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".json" {
			if l.testFile != "" && filepath.Clean(filepath.Join(l.dir, e.Name())) == filepath.Clean(l.testFile) {
				continue
			}
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		if err := l.loadFile(filepath.Join(l.dir, name)); err != nil {
			return fmt.Errorf("dataset: %s: %w", name, err)
		}
	}

	if l.testFile != "" {
		if err := l.loadTestFile(l.testFile); err != nil {
			return err
		}
	}
	return nil
}

func (l *JSONLoader) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var rows []map[string]any
	if err := json.Unmarshal(raw, &rows); err != nil {
		return err
	}

	for i, row := range rows {
		rec, err := l.parseRow(row)
		if err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		if l.dim == 0 {
			l.dim = len(rec.Vector)
		}
		l.records = append(l.records, rec)
	}
	return nil
}

func (l *JSONLoader) parseRow(row map[string]any) (jsonRecord, error) {
	idVal, ok := row[l.mapping.IDKey]
	if !ok {
		return jsonRecord{}, fmt.Errorf("missing id field %q", l.mapping.IDKey)
	}
	id, err := toInt64(idVal)
	if err != nil {
		return jsonRecord{}, err
	}

	vecVal, ok := row[l.mapping.VectorKey]
	if !ok {
		return jsonRecord{}, fmt.Errorf("missing vector field %q", l.mapping.VectorKey)
	}
	raw, ok := vecVal.([]any)
	if !ok {
		return jsonRecord{}, fmt.Errorf("vector field %q is not an array", l.mapping.VectorKey)
	}
	vec := make([]float32, len(raw))
	for i, v := range raw {
		f, ok := v.(float64)
		if !ok {
			return jsonRecord{}, fmt.Errorf("vector element %d is not a number", i)
		}
		vec[i] = float32(f)
	}

	return jsonRecord{ID: id, Vector: vec}, nil
}

func toInt64(v any) (int64, error) {
	switch t := v.(type) {
	case float64:
		return int64(t), nil
	case string:
		var id int64
		if _, err := fmt.Sscanf(t, "%d", &id); err != nil {
			return 0, err
		}
		return id, nil
	default:
		return 0, fmt.Errorf("unsupported id type %T", v)
	}
}

func (l *JSONLoader) loadTestFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var rows []struct {
		Query       []float32 `json:"query"`
		GroundTruth []int64   `json:"ground_truth"`
	}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return err
	}

	for _, row := range rows {
		l.tests = append(l.tests, TestEntry{
			Query:       vector.Vector{Dimension: uint32(len(row.Query)), FloatValues: row.Query},
			GroundTruth: row.GroundTruth,
		})
	}
	return nil
}

func (l *JSONLoader) Dimension() int  { return l.dim }
func (l *JSONLoader) TrainCount() int { return len(l.records) }
func (l *JSONLoader) TestCount() int  { return len(l.tests) }

// NextBatch implements Dataset.
func (l *JSONLoader) NextBatch(ctx context.Context, n int) ([]vector.VectorWithId, bool, error) {
	if l.cursor >= len(l.records) {
		return nil, false, nil
	}
	end := l.cursor + n
	if end > len(l.records) {
		end = len(l.records)
	}

	batch := make([]vector.VectorWithId, 0, end-l.cursor)
	for _, rec := range l.records[l.cursor:end] {
		batch = append(batch, vector.VectorWithId{
			ID:     rec.ID,
			Vector: vector.Vector{Dimension: uint32(len(rec.Vector)), FloatValues: rec.Vector},
		})
	}
	l.cursor = end
	return batch, l.cursor < len(l.records), nil
}

// TestData implements Dataset.
func (l *JSONLoader) TestData(ctx context.Context) ([]TestEntry, error) {
	return l.tests, nil
}
