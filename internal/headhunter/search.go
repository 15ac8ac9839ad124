package headhunter

import (
	"fmt"
	"net/url"
	"reflect"
	"strconv"

	"github.com/mitchellh/mapstructure"
)

const (
	SearchPath    = "/vacancies"
	employersPath = "/employers"

	// hh.ru does not return more than 2000 vacancies for a single search.
	maxSearchDepth = 2000
)

// SearchParams are the /vacancies query parameters shared by every ingest
// query. The hhparam tag names the query parameter; fields without it are not
// sent.
type SearchParams struct {
	Text              string   `mapstructure:"text" hhparam:"text"`
	SearchField       []string `mapstructure:"search_field" hhparam:"search_field"`
	Areas             []int    `mapstructure:"areas" hhparam:"area"`
	ProfessionalRoles []int    `mapstructure:"professional_roles" hhparam:"professional_role"`
	Industries        []string `mapstructure:"industries" hhparam:"industry"`
	Employer          uint     `mapstructure:"employer_id" hhparam:"employer_id"`
	Experience        string   `mapstructure:"experience" hhparam:"experience"`
	Employment        []string `mapstructure:"employment" hhparam:"employment"`
	Schedules         []string `mapstructure:"schedules" hhparam:"schedule"`
	OnlyWithSalary    bool     `mapstructure:"only_with_salary" hhparam:"only_with_salary"`
	OrderBy           string   `mapstructure:"order_by" hhparam:"order_by"`
	Period            uint     `mapstructure:"period" hhparam:"period"`
	PerPage           int      `mapstructure:"per_page" hhparam:"per_page"`
	// MaxPages limits how many result pages are read per query. Zero reads
	// all pages hh.ru is willing to return.
	MaxPages int `mapstructure:"max_pages"`
}

func (c *Client) search(params *SearchParams) (*Vacancies, error) {
	p := *params
	if p.PerPage <= 0 {
		p.PerPage = perPage
	}

	pages := maxSearchDepth / p.PerPage
	if p.MaxPages > 0 && p.MaxPages < pages {
		pages = p.MaxPages
	}

	items, err := c.GetItems(c.APIURL+SearchPath, buildParams(&p), pages)
	if err != nil {
		return nil, err
	}

	var vacancies []*Vacancy
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &vacancies,
		TagName: "json",
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(items); err != nil {
		return nil, fmt.Errorf("decoding vacancies: %w", err)
	}

	return &Vacancies{Items: vacancies}, nil
}

// buildParams renders params as a query. Zero values are skipped, slices
// repeat the parameter.
func buildParams(params *SearchParams) url.Values {
	q := url.Values{}
	v := reflect.ValueOf(params).Elem()

	for _, field := range reflect.VisibleFields(v.Type()) {
		key := field.Tag.Get("hhparam")
		if key == "" {
			continue
		}

		value := v.FieldByIndex(field.Index)
		if value.Kind() == reflect.Slice {
			for i := 0; i < value.Len(); i++ {
				q.Add(key, scalar(value.Index(i)))
			}
			continue
		}

		if value.IsZero() {
			continue
		}
		q.Set(key, scalar(value))
	}

	return q
}

func scalar(v reflect.Value) string {
	switch v.Kind() {
	case reflect.Int, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Uint, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10)
	case reflect.Bool:
		return strconv.FormatBool(v.Bool())
	default:
		return v.String()
	}
}
