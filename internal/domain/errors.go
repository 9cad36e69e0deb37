package domain

import "errors"

var (
	// ErrConfiguration marks a missing or malformed source profile.
	ErrConfiguration = errors.New("configuration error")
	// ErrUnknownSource is returned for identifiers without a profile.
	ErrUnknownSource = errors.New("unknown source")
	// ErrNetwork marks transport-level fetch failures.
	ErrNetwork = errors.New("network failure")
	// ErrInvalidResponse marks non-success statuses and empty bodies.
	ErrInvalidResponse = errors.New("invalid response")
	// ErrNoArticles is reported when a fetch succeeded but yielded nothing.
	ErrNoArticles = errors.New("no articles in response")
	// ErrInvalidArticle marks an item without title or url.
	ErrInvalidArticle = errors.New("article is missing required fields")
	// ErrNotFound is returned by stores for absent rows.
	ErrNotFound = errors.New("not found")
)
