package web

import (
	"embed"
	"html/template"
	"strconv"
)

//go:embed templates/*.html
var templatesFS embed.FS

type choice struct {
	Value string
	Label string
}

// значения srnamespace
var filterChoices = []choice{
	{"", "Articles"},
	{"14", "Categories"},
	{"6", "Files"},
	{"12", "Help"},
	{"4", "Project pages"},
	{"*", "Everything"},
}

var sortChoices = []choice{
	{"", "Relevance"},
	{"last_edit_desc", "Recently edited"},
	{"create_timestamp_desc", "Newest"},
	{"create_timestamp_asc", "Oldest"},
	{"incoming_links_desc", "Most linked"},
	{"just_match", "Exact match"},
}

var batchChoices = []int{10, 20, 50, 100}

func parseTemplates() (*template.Template, error) {
	funcs := template.FuncMap{
		"thousands": thousands,
	}
	return template.New("").Funcs(funcs).ParseFS(templatesFS, "templates/*.html")
}

// thousands: 1234567 -> "1,234,567"
func thousands(n int) string {
	s := strconv.Itoa(n)
	neg := n < 0
	if neg {
		s = s[1:]
	}
	out := make([]byte, 0, len(s)+len(s)/3)
	for i := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}
