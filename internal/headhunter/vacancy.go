package headhunter

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spigell/hh-pathfinder/internal/vacancy"
)

const (
	noSalary          = "з/п не указана"
	unknownExperience = "Не указан"
)

var highlight = strings.NewReplacer("<highlighttext>", "", "</highlighttext>", "")

type Vacancies struct {
	Items []*Vacancy
}

type Vacancy struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	Area struct {
		ID   string `json:"id,omitempty"`
		Name string `json:"name,omitempty"`
	} `json:"area,omitempty"`
	Salary     *Salary `json:"salary,omitempty"`
	Experience struct {
		ID   string `json:"id,omitempty"`
		Name string `json:"name,omitempty"`
	} `json:"experience,omitempty"`
	Employer struct {
		ID   string `json:"id,omitempty"`
		Name string `json:"name,omitempty"`
	} `json:"employer,omitempty"`
	AlternateURL string `json:"alternate_url,omitempty"`
	KeySkills    []struct {
		Name string `json:"name,omitempty"`
	} `json:"key_skills,omitempty"`
	Snipet struct {
		Requirement    string `json:"requirement,omitempty"`
		Responsibility string `json:"responsibility,omitempty"`
	} `json:"snippet,omitempty"`
	PublishedAt string `json:"published_at,omitempty"`
}

type Salary struct {
	From     int    `json:"from,omitempty"`
	To       int    `json:"to,omitempty"`
	Currency string `json:"currency,omitempty"`
	Gross    bool   `json:"gross,omitempty"`
}

// String renders the salary as "from-to currency", leaving unknown bounds
// empty.
func (s *Salary) String() string {
	if s == nil {
		return noSalary
	}
	bound := func(v int) string {
		if v == 0 {
			return ""
		}
		return strconv.Itoa(v)
	}
	return fmt.Sprintf("%s-%s %s", bound(s.From), bound(s.To), s.Currency)
}

type Employer struct {
	ID         string `json:"id,omitempty"`
	Name       string `json:"name,omitempty"`
	Industries []struct {
		ID   string `json:"id,omitempty"`
		Name string `json:"name,omitempty"`
	} `json:"industries,omitempty"`
}

// Industry returns the first industry name of the employer.
func (e *Employer) Industry() string {
	if e == nil || len(e.Industries) == 0 || e.Industries[0].Name == "" {
		return unknownIndustry
	}
	return e.Industries[0].Name
}

func (v *Vacancies) Len() int {
	return len(v.Items)
}

// Skills returns the key skill names.
func (va *Vacancy) Skills() []string {
	skills := make([]string, 0, len(va.KeySkills))
	for _, s := range va.KeySkills {
		if name := strings.TrimSpace(s.Name); name != "" {
			skills = append(skills, name)
		}
	}
	return skills
}

// Record converts the vacancy into a snapshot row.
func (va *Vacancy) Record(skills []string, industry string) (vacancy.Record, error) {
	id, err := strconv.ParseInt(va.ID, 10, 64)
	if err != nil {
		return vacancy.Record{}, fmt.Errorf("vacancy id %q: %w", va.ID, err)
	}

	experience := va.Experience.Name
	if experience == "" {
		experience = unknownExperience
	}

	keywords := strings.TrimSpace(highlight.Replace(va.Snipet.Requirement) + " " + highlight.Replace(va.Snipet.Responsibility))

	return vacancy.Record{
		ID:         id,
		Title:      strings.TrimSpace(va.Name),
		Company:    strings.TrimSpace(va.Employer.Name),
		Experience: experience,
		Industry:   industry,
		Salary:     va.Salary.String(),
		Skills:     skills,
		Keywords:   keywords,
		URL:        va.AlternateURL,
	}, nil
}

type ExcludedVacancies struct {
	Items []*ExcludedVacancy
}

type ExcludedVacancy struct {
	ID           string
	URL          string
	EmployerName string
	ExcludedAt   time.Time
}

// GetExcludedVacanciesFromFile reads an exclude file. A missing or empty file
// yields an empty list.
func GetExcludedVacanciesFromFile(path string) (*ExcludedVacancies, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return &ExcludedVacancies{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}

	if stat.Size() == 0 {
		return &ExcludedVacancies{}, nil
	}

	var excluded ExcludedVacancies
	if err := json.NewDecoder(file).Decode(&excluded); err != nil {
		return nil, err
	}
	return &excluded, nil
}

func (v *ExcludedVacancies) Append(items ...*ExcludedVacancy) {
	v.Items = append(v.Items, items...)
}

func (v *ExcludedVacancies) VacanciesIDs() []string {
	ids := make([]string, 0)
	for _, vacancy := range v.Items {
		ids = append(ids, vacancy.ID)
	}
	return ids
}

func (v *ExcludedVacancies) ToFile(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	return nil
}

// Exclude builds an exclude file entry for a snapshot row.
func Exclude(rec vacancy.Record) *ExcludedVacancy {
	return &ExcludedVacancy{
		ID:           strconv.FormatInt(rec.ID, 10),
		URL:          rec.URL,
		EmployerName: rec.Company,
		ExcludedAt:   time.Now().UTC(),
	}
}
