package domain

import (
	"fmt"
	"strings"
)

// Normalized field names recognised in a field mapping.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldContent     = "content"
	FieldURL         = "url"
	FieldImageURL    = "image_url"
	FieldPublishedAt = "published_at"
	FieldAuthor      = "author"
	FieldSourceName  = "source_name"
)

// DefaultAPIKeyParam is used when a profile does not name its key parameter.
const DefaultAPIKeyParam = "apiKey"

// Endpoint is one named path template of a source API, e.g. "topstories/v2/{section}.json".
type Endpoint struct {
	Name string
	Path string
}

// FieldMapping translates our field names to dot-paths in the source payload.
// A nil path declares the field as explicitly unavailable.
type FieldMapping map[string]*string

// Path returns the declared dot-path for field, or "" when absent or null.
func (m FieldMapping) Path(field string) string {
	if p, ok := m[field]; ok && p != nil {
		return *p
	}
	return ""
}

// SourceProfile is the static descriptor of one external news API.
type SourceProfile struct {
	ID                string
	Name              string
	BaseURL           string
	APIKey            string
	APIKeyParam       string
	Endpoints         []Endpoint
	DefaultEndpoint   string
	DefaultPathParams map[string]string
	DefaultParams     map[string]string
	FieldMapping      FieldMapping
	ImagePrefix       string
	StripHTML         []string
	RateLimit         map[string]int
	WebsiteURL        string
	Description       string
}

// Endpoint resolves an endpoint by name; an empty name picks DefaultEndpoint,
// falling back to the first declared endpoint.
func (p SourceProfile) Endpoint(name string) (Endpoint, error) {
	if name == "" {
		name = p.DefaultEndpoint
	}
	if name == "" {
		if len(p.Endpoints) == 0 {
			return Endpoint{}, fmt.Errorf("%w: source %s declares no endpoints", ErrConfiguration, p.ID)
		}
		return p.Endpoints[0], nil
	}
	for _, ep := range p.Endpoints {
		if ep.Name == name {
			return ep, nil
		}
	}
	return Endpoint{}, fmt.Errorf("%w: source %s has no endpoint %q", ErrConfiguration, p.ID, name)
}

// KeyParam returns the query parameter that carries the API key.
func (p SourceProfile) KeyParam() string {
	if p.APIKeyParam == "" {
		return DefaultAPIKeyParam
	}
	return p.APIKeyParam
}

// Validate checks the fields the pipeline cannot run without.
func (p SourceProfile) Validate() error {
	var problems []string
	if strings.TrimSpace(p.ID) == "" {
		problems = append(problems, "missing id")
	}
	if strings.TrimSpace(p.BaseURL) == "" {
		problems = append(problems, "missing base_url")
	}
	if len(p.Endpoints) == 0 {
		problems = append(problems, "no endpoints")
	}
	seen := make(map[string]struct{}, len(p.Endpoints))
	for _, ep := range p.Endpoints {
		if ep.Name == "" {
			problems = append(problems, "endpoint without name")
			continue
		}
		if _, dup := seen[ep.Name]; dup {
			problems = append(problems, "duplicate endpoint "+ep.Name)
		}
		seen[ep.Name] = struct{}{}
	}
	if p.DefaultEndpoint != "" {
		if _, ok := seen[p.DefaultEndpoint]; !ok {
			problems = append(problems, "default_endpoint "+p.DefaultEndpoint+" is not declared")
		}
	}
	if p.FieldMapping.Path(FieldTitle) == "" {
		problems = append(problems, "field_mapping.title is required")
	}
	if p.FieldMapping.Path(FieldURL) == "" {
		problems = append(problems, "field_mapping.url is required")
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: source %q: %s", ErrConfiguration, p.ID, strings.Join(problems, "; "))
}

// ProfileSet is the immutable id -> profile table built once at startup.
// Profiles that failed validation stay addressable so that looking them up
// reports why they cannot run.
type ProfileSet struct {
	order    []string
	profiles map[string]SourceProfile
	invalid  map[string]error
}

// NewProfileSet validates profiles and keeps their declaration order.
// A repeated id is recorded as invalid; the first declaration wins.
func NewProfileSet(profiles []SourceProfile) ProfileSet {
	set := ProfileSet{
		profiles: make(map[string]SourceProfile, len(profiles)),
		invalid:  map[string]error{},
	}
	for _, p := range profiles {
		if _, dup := set.profiles[p.ID]; dup {
			continue
		}
		if _, dup := set.invalid[p.ID]; dup {
			continue
		}
		set.order = append(set.order, p.ID)
		if err := p.Validate(); err != nil {
			set.invalid[p.ID] = err
			continue
		}
		set.profiles[p.ID] = p
	}
	return set
}

// Lookup returns the profile for id, ErrUnknownSource when none is declared,
// or the validation error of a malformed profile.
func (s ProfileSet) Lookup(id string) (SourceProfile, error) {
	if err, ok := s.invalid[id]; ok {
		return SourceProfile{}, err
	}
	p, ok := s.profiles[id]
	if !ok {
		return SourceProfile{}, fmt.Errorf("%w: %w %q", ErrConfiguration, ErrUnknownSource, id)
	}
	return p, nil
}

// IDs lists every declared identifier in declaration order, malformed ones included.
func (s ProfileSet) IDs() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Valid returns the runnable profiles in declaration order.
func (s ProfileSet) Valid() []SourceProfile {
	out := make([]SourceProfile, 0, len(s.profiles))
	for _, id := range s.order {
		if p, ok := s.profiles[id]; ok {
			out = append(out, p)
		}
	}
	return out
}
