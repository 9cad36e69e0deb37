// Package transform maps raw source payloads onto the normalized article shape.
package transform

import (
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	"github.com/tidwall/gjson"

	"NewsAggregator/internal/domain"
)

var (
	authorPrefix    = regexp.MustCompile(`(?i)^by\s+`)
	authorSeparator = regexp.MustCompile(`(?i)\s+and\s+|,\s*`)
)

// Transform applies mapping to one raw item. Absent, null and non-scalar
// values leave the target field empty; image_url gets imagePrefix prepended
// verbatim when both are present.
func Transform(raw gjson.Result, mapping domain.FieldMapping, imagePrefix string) domain.NormalizedArticle {
	get := func(field string) string {
		return lookup(raw, mapping.Path(field))
	}

	out := domain.NormalizedArticle{
		Title:        get(domain.FieldTitle),
		URL:          get(domain.FieldURL),
		Description:  get(domain.FieldDescription),
		Content:      get(domain.FieldContent),
		ImageURL:     get(domain.FieldImageURL),
		CategoryName: get(domain.FieldSourceName),
		AuthorName:   CleanAuthorName(get(domain.FieldAuthor)),
		PublishedAt:  parseTime(get(domain.FieldPublishedAt)),
	}

	if imagePrefix != "" && out.ImageURL != "" {
		out.ImageURL = imagePrefix + out.ImageURL
	}
	if out.URL != "" {
		out.URLHash = domain.ContentHash(out.URL)
	}
	return out
}

// ForProfile runs Transform with the profile's mapping and prefix, then
// reduces the profile's StripHTML fields to plain text.
func ForProfile(raw gjson.Result, profile domain.SourceProfile) domain.NormalizedArticle {
	out := Transform(raw, profile.FieldMapping, profile.ImagePrefix)
	for _, field := range profile.StripHTML {
		switch field {
		case domain.FieldTitle:
			out.Title = StripHTML(out.Title)
		case domain.FieldDescription:
			out.Description = StripHTML(out.Description)
		case domain.FieldContent:
			out.Content = StripHTML(out.Content)
		}
	}
	return out
}

// Valid reports whether the article carries the fields required to store it.
func Valid(a domain.NormalizedArticle) bool {
	return strings.TrimSpace(a.Title) != "" && strings.TrimSpace(a.URL) != ""
}

// CleanAuthorName drops a leading "By" and keeps only the first of several
// names separated by "and" or commas.
func CleanAuthorName(author string) string {
	if author == "" {
		return ""
	}
	author = authorPrefix.ReplaceAllString(author, "")
	first := authorSeparator.Split(author, 2)[0]
	return strings.TrimSpace(first)
}

// StripHTML returns the text content of an HTML fragment with whitespace collapsed.
func StripHTML(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return fragment
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// lookup resolves a dot-separated path; numeric segments index arrays.
func lookup(raw gjson.Result, path string) string {
	if path == "" {
		return ""
	}
	segments := strings.Split(path, ".")
	for i, seg := range segments {
		segments[i] = gjson.Escape(seg)
	}

	v := raw.Get(strings.Join(segments, "."))
	switch v.Type {
	case gjson.String, gjson.Number, gjson.True, gjson.False:
		return strings.TrimSpace(v.String())
	default:
		return ""
	}
}

func parseTime(value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := dateparse.ParseIn(value, time.UTC)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}
