package profile

import (
	"regexp"
	"strconv"
	"strings"
)

const maxHardSkillRunes = 50

var (
	digits          = regexp.MustCompile(`\d+`)
	skillSeparators = regexp.MustCompile(`[,;.]`)
)

type pattern struct {
	key string
	re  *regexp.Regexp
}

func patterns(defs ...string) []pattern {
	out := make([]pattern, 0, len(defs)/2)
	for i := 0; i+1 < len(defs); i += 2 {
		out = append(out, pattern{key: defs[i], re: regexp.MustCompile(`(?i)` + defs[i+1])})
	}
	return out
}

var (
	contextPatterns = patterns(
		"professional_field", `(?:работаю|специализируюсь|занимаюсь|сфера|область).*?\s(?:в|по|на)\s+([^.!?]+)`,
		"current_position", `(?:^|[\s,;])(?:должность|позиция|я)\s*:?\s+([^.!?,]+)`,
		"company", `(?:в компании|работаю в|компания)\s+([А-Яа-яЁёA-Za-z0-9 ]+?)(?:\s|$|[.!?,])`,
		"company_yandex", `(Яндекс|Yandex)`,
		"company_google", `(Google|Гугл)`,
		"company_microsoft", `(Microsoft|Майкрософт)`,
		"experience_years", `(\d+)\s*(?:лет|года|год)\s*(?:опыта|работы)`,
		"projects", `(?:проект|реализовал|делал|участвовал).*?([^.!?]+)`,
	)

	goalPatterns = patterns(
		"target_field", `(?:интересуюсь|хочу|цель|планирую).*?(?:сфера|область|направление).*?([^.!?]+)`,
		"activities", `(?:активности|функции|задачи|хочу).*?([^.!?]+)`,
		"ambitions", `(?:амбиции|цель|хочу|планирую).*?(?:должность|зарплата|позиция).*?([^.!?]+)`,
	)

	skillPatterns = patterns(
		"hard_skills", `(?:навыки|умею|знаю|владею|инструменты)[:\s]*([^.!?]+)`,
		"soft_skills", `(?:soft skills|мягкие навыки|личные качества)[:\s]*([^.!?]+)`,
		"education", `(?:образование|курсы|обучение|изучал)[:\s]*([^.!?]+)`,
	)
)

// Facts are the raw fragments found in the candidate's messages, grouped
// the way a career consultation is: context, goals and skills.
type Facts struct {
	Context map[string]string `json:"context"`
	Goals   map[string]string `json:"goals"`
	Skills  map[string]string `json:"skills"`
}

// Extract scans the user messages of history for profile fragments.
func Extract(history []Message) Facts {
	var texts []string
	for _, m := range history {
		if m.Role == "user" {
			texts = append(texts, m.Content)
		}
	}
	text := strings.Join(texts, " ")

	return Facts{
		Context: match(text, contextPatterns),
		Goals:   match(text, goalPatterns),
		Skills:  match(text, skillPatterns),
	}
}

func match(text string, ps []pattern) map[string]string {
	found := make(map[string]string)
	for _, p := range ps {
		if m := p.re.FindStringSubmatch(text); m != nil {
			if v := strings.TrimSpace(m[1]); v != "" {
				found[p.key] = v
			}
		}
	}
	return found
}

// FromHistory builds a profile from a chat history.
func FromHistory(history []Message) Profile {
	return FromFacts(Extract(history))
}

// FromFacts assembles a profile from extracted fragments.
func FromFacts(f Facts) Profile {
	p := Profile{
		Title:      DefaultTitle,
		Company:    f.Context["company"],
		Skills:     []string{},
		Experience: ExperienceUnknown,
	}

	if v := f.Context["current_position"]; v != "" {
		p.Title = v
	} else if v := f.Context["professional_field"]; v != "" {
		p.Title = v
	}

	switch {
	case f.Context["company_yandex"] != "":
		p.Company = "Яндекс"
	case f.Context["company_google"] != "":
		p.Company = "Google"
	case f.Context["company_microsoft"] != "":
		p.Company = "Microsoft"
	}

	p.Skills = append(p.Skills, splitSkills(f.Skills["hard_skills"], maxHardSkillRunes)...)
	p.Skills = append(p.Skills, splitSkills(f.Skills["soft_skills"], 0)...)

	if m := digits.FindString(f.Context["experience_years"]); m != "" {
		if years, err := strconv.Atoi(m); err == nil {
			p.Experience = ExperienceFor(years)
		}
	}

	var keywords []string
	for _, v := range []string{f.Goals["target_field"], f.Goals["activities"], f.Goals["ambitions"], f.Context["projects"]} {
		if v != "" {
			keywords = append(keywords, v)
		}
	}
	p.Keywords = strings.Join(keywords, " ")

	return p
}
