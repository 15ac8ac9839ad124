// Package profile turns what a candidate tells about themselves into a query
// shaped like a vacancy record.
package profile

import (
	"strconv"
	"strings"

	"github.com/spigell/hh-pathfinder/internal/normalize"
)

const (
	DefaultTitle = "Специалист"

	NoExperience      = "нет опыта"
	Experience1To3    = "от 1 года до 3 лет"
	Experience3To6    = "от 3 до 6 лет"
	ExperienceOver6   = "более 6 лет"
	ExperienceUnknown = "опыт не указан"
)

// Profile mirrors the vacancy columns used for relevance.
type Profile struct {
	Title      string   `json:"title"`
	Company    string   `json:"company"`
	Skills     []string `json:"skills"`
	Experience string   `json:"experience"`
	Keywords   string   `json:"keywords"`
}

// Text returns the normalized composite used as a query.
func (p Profile) Text() string {
	return normalize.Composite(p.Title, p.Company, p.Skills, p.Experience, p.Keywords)
}

// Message is a chat history entry.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Answers are structured replies of an interactive questionnaire.
type Answers struct {
	Title     string `json:"title"`
	Company   string `json:"company"`
	Skills    string `json:"skills"`
	Years     string `json:"years"`
	Interests string `json:"interests"`
}

// FromAnswers builds a profile from questionnaire answers.
func FromAnswers(a Answers) Profile {
	p := Profile{
		Title:      strings.TrimSpace(a.Title),
		Company:    strings.TrimSpace(a.Company),
		Skills:     splitSkills(a.Skills, 0),
		Experience: ExperienceUnknown,
		Keywords:   strings.TrimSpace(a.Interests),
	}
	if p.Title == "" {
		p.Title = DefaultTitle
	}
	if m := digits.FindString(a.Years); m != "" {
		if years, err := strconv.Atoi(m); err == nil {
			p.Experience = ExperienceFor(years)
		}
	}
	return p
}

// ExperienceFor maps years of experience to a vacancy experience category.
func ExperienceFor(years int) string {
	switch {
	case years < 0:
		return ExperienceUnknown
	case years == 0:
		return NoExperience
	case years <= 3:
		return Experience1To3
	case years <= 6:
		return Experience3To6
	default:
		return ExperienceOver6
	}
}

// splitSkills splits a free-text list on commas, semicolons and periods.
// Entries of maxRunes or longer are dropped when maxRunes is positive.
func splitSkills(s string, maxRunes int) []string {
	skills := []string{}
	for _, part := range skillSeparators.Split(s, -1) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if maxRunes > 0 && len([]rune(part)) >= maxRunes {
			continue
		}
		skills = append(skills, part)
	}
	return skills
}
