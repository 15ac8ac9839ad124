package vacancy

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// ErrMissingColumn is returned when a snapshot row lacks a required column.
var ErrMissingColumn = errors.New("missing required column")

var requiredColumns = []string{"vacancy_id", "title", "company", "experience", "industry", "salary_str", "skills"}

// keywordColumns are accepted sources for Record.Keywords, in priority order.
// requirement and responsibility are concatenated when keywords is absent.
var keywordColumns = []string{"keywords", "requirement", "responsibility"}

// Load reads a snapshot file. JSON Lines is used for .jsonl and .ndjson files,
// a JSON array otherwise.
func Load(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	defer f.Close()

	var rows []map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson":
		rows, err = readLines(f)
	default:
		rows, err = readArray(f)
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot %q: %w", path, err)
	}

	return Decode(rows)
}

// Decode converts raw snapshot rows into records.
func Decode(rows []map[string]any) ([]Record, error) {
	records := make([]Record, 0, len(rows))
	for i, row := range rows {
		if err := checkColumns(row); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}

		var rec Record
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			DecodeHook:       skillsHook,
			WeaklyTypedInput: true,
			Result:           &rec,
		})
		if err != nil {
			return nil, err
		}
		if err := decoder.Decode(row); err != nil {
			return nil, fmt.Errorf("row %d: decoding: %w", i, err)
		}

		if _, ok := row["keywords"]; !ok {
			rec.Keywords = joinNonEmpty(stringOf(row["requirement"]), stringOf(row["responsibility"]))
		}
		rec.Skills = cleanSkills(rec.Skills)

		records = append(records, rec)
	}

	return records, nil
}

// WriteJSONL writes records as a JSON Lines snapshot.
func WriteJSONL(w io.Writer, records []Record) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, rec := range records {
		if rec.Skills == nil {
			rec.Skills = []string{}
		}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encoding vacancy %d: %w", rec.ID, err)
		}
	}
	return nil
}

func checkColumns(row map[string]any) error {
	var missing []string
	for _, col := range requiredColumns {
		if _, ok := row[col]; !ok {
			missing = append(missing, col)
		}
	}

	hasKeywords := false
	for _, col := range keywordColumns {
		if _, ok := row[col]; ok {
			hasKeywords = true
			break
		}
	}
	if !hasKeywords {
		missing = append(missing, "keywords")
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return nil
}

// skillsHook accepts skills as a comma separated string as well as a list.
func skillsHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf([]string{}) {
		return data, nil
	}

	raw := data.(string)
	if strings.TrimSpace(raw) == "" {
		return []string{}, nil
	}
	return strings.Split(raw, ","), nil
}

func cleanSkills(skills []string) []string {
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

func stringOf(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func joinNonEmpty(parts ...string) string {
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

func readLines(r io.Reader) ([]map[string]any, error) {
	var rows []map[string]any

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 {
			continue
		}

		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		var row map[string]any
		if err := dec.Decode(&row); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return rows, nil
}

func readArray(r io.Reader) ([]map[string]any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var rows []map[string]any
	if err := dec.Decode(&rows); err != nil {
		return nil, err
	}
	return rows, nil
}
