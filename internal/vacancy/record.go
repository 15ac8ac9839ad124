// Package vacancy holds the immutable vacancy snapshot the engine is built from.
package vacancy

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spigell/hh-pathfinder/internal/normalize"
)

// ErrInvalidRecord is returned when a record cannot take part in a corpus.
var ErrInvalidRecord = errors.New("invalid vacancy record")

// Record is a single vacancy row of the snapshot.
type Record struct {
	ID         int64    `mapstructure:"vacancy_id" json:"vacancy_id"`
	Title      string   `mapstructure:"title" json:"title"`
	Company    string   `mapstructure:"company" json:"company"`
	Experience string   `mapstructure:"experience" json:"experience"`
	Industry   string   `mapstructure:"industry" json:"industry"`
	Salary     string   `mapstructure:"salary_str" json:"salary_str"`
	Skills     []string `mapstructure:"skills" json:"skills"`
	Keywords   string   `mapstructure:"keywords" json:"keywords"`
	URL        string   `mapstructure:"url" json:"url,omitempty"`
}

// Text returns the normalized composite document of the record.
func (r Record) Text() string {
	return normalize.Composite(r.Title, r.Company, r.Skills, r.Experience, r.Keywords)
}

// Field returns a display attribute by its snapshot column name.
func (r Record) Field(name string) (string, bool) {
	switch name {
	case "vacancy_id":
		return strconv.FormatInt(r.ID, 10), true
	case "title":
		return r.Title, true
	case "company":
		return r.Company, true
	case "experience":
		return r.Experience, true
	case "industry":
		return r.Industry, true
	case "salary_str", "salary":
		return r.Salary, true
	default:
		return "", false
	}
}

// Corpus is an ordered, read-only set of records. The position of a record is
// the cross-reference key shared by the relevance index and the relation graph.
type Corpus struct {
	records  []Record
	byID     map[int64]int
	checksum string
}

// NewCorpus validates records and freezes them into a corpus.
func NewCorpus(records []Record) (*Corpus, error) {
	c := &Corpus{
		records: make([]Record, len(records)),
		byID:    make(map[int64]int, len(records)),
	}

	h := sha256.New()
	for i, rec := range records {
		if rec.ID == 0 {
			return nil, fmt.Errorf("row %d: empty vacancy_id: %w", i, ErrInvalidRecord)
		}
		if strings.TrimSpace(rec.Title) == "" {
			return nil, fmt.Errorf("row %d (vacancy %d): empty title: %w", i, rec.ID, ErrInvalidRecord)
		}
		if prev, ok := c.byID[rec.ID]; ok {
			return nil, fmt.Errorf("row %d: vacancy %d duplicates row %d: %w", i, rec.ID, prev, ErrInvalidRecord)
		}

		rec.Skills = append([]string(nil), rec.Skills...)
		c.records[i] = rec
		c.byID[rec.ID] = i

		fmt.Fprintf(h, "%d\x00%s\n", rec.ID, rec.Text())
	}
	c.checksum = hex.EncodeToString(h.Sum(nil))

	return c, nil
}

// Len returns the number of records.
func (c *Corpus) Len() int {
	if c == nil {
		return 0
	}
	return len(c.records)
}

// Record returns the record at position i.
func (c *Corpus) Record(i int) Record {
	return c.records[i]
}

// Records returns a copy of all records in corpus order.
func (c *Corpus) Records() []Record {
	return append([]Record(nil), c.records...)
}

// IndexOf returns the corpus position of the vacancy id.
func (c *Corpus) IndexOf(id int64) (int, bool) {
	i, ok := c.byID[id]
	return i, ok
}

// Texts returns the normalized composite documents in corpus order.
func (c *Corpus) Texts() []string {
	texts := make([]string, len(c.records))
	for i, rec := range c.records {
		texts[i] = rec.Text()
	}
	return texts
}

// Checksum identifies the snapshot content. Persisted indexes carry it.
func (c *Corpus) Checksum() string {
	return c.checksum
}
