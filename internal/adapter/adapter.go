package adapter

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"NewsAggregator/internal/domain"
)

// Params carries caller-supplied request options for one fetch.
type Params struct {
	// Endpoint names one of the profile endpoints; empty selects the default.
	Endpoint   string
	PathParams map[string]string
	Query      map[string]string
}

// Adapter captures a single news API strategy (NewsAPI, Guardian, NYT).
type Adapter interface {
	Name() string
	// Fetch returns the raw response body of one request built from profile and params.
	Fetch(ctx context.Context, profile domain.SourceProfile, params Params) ([]byte, error)
	// ExtractArticles locates the article list inside a body. It never fails:
	// a missing or non-array location yields no articles.
	ExtractArticles(body []byte) []gjson.Result
}

// Registry keeps a mapping from source identifiers to their adapters.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry builds a registry holding the given adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: map[string]Adapter{}}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds or replaces an adapter implementation.
func (r *Registry) Register(a Adapter) {
	if r.adapters == nil {
		r.adapters = map[string]Adapter{}
	}
	r.adapters[a.Name()] = a
}

// Resolve returns an adapter by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Adapter, error) {
	if a, ok := r.adapters[name]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("%w: adapter %s is not registered", domain.ErrConfiguration, name)
}

// Names lists registered identifiers in lexical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var placeholder = regexp.MustCompile(`\{([^{}]+)\}`)

// BuildURL resolves the endpoint, substitutes path placeholders and encodes the query.
// Query precedence is profile defaults, then caller query, then the API key.
func BuildURL(profile domain.SourceProfile, params Params) (string, error) {
	ep, err := profile.Endpoint(params.Endpoint)
	if err != nil {
		return "", err
	}

	path := ep.Path
	if strings.Contains(path, "{") {
		values := make(map[string]string, len(profile.DefaultPathParams)+len(params.PathParams))
		for k, v := range profile.DefaultPathParams {
			values[k] = v
		}
		for k, v := range params.PathParams {
			values[k] = v
		}
		var missing []string
		path = placeholder.ReplaceAllStringFunc(path, func(m string) string {
			key := m[1 : len(m)-1]
			v, ok := values[key]
			if !ok {
				missing = append(missing, key)
				return m
			}
			return url.PathEscape(v)
		})
		if len(missing) > 0 {
			return "", fmt.Errorf("%w: source %s endpoint %s needs path params %s",
				domain.ErrConfiguration, profile.ID, ep.Name, strings.Join(missing, ", "))
		}
	}

	query := url.Values{}
	for k, v := range profile.DefaultParams {
		query.Set(k, v)
	}
	for k, v := range params.Query {
		query.Set(k, v)
	}
	query.Set(profile.KeyParam(), profile.APIKey)

	return profile.BaseURL + path + "?" + query.Encode(), nil
}

// RedactedURL replaces the value of the API key parameter so request URLs can be logged.
// Unparseable URLs are dropped entirely.
func RedactedURL(profile domain.SourceProfile, raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparseable url>"
	}
	query := u.Query()
	if !query.Has(profile.KeyParam()) {
		return raw
	}
	query.Set(profile.KeyParam(), "REDACTED")
	u.RawQuery = query.Encode()
	return u.String()
}
