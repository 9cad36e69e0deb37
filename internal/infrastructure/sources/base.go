package sources

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/tidwall/gjson"

	"NewsAggregator/internal/adapter"
	"NewsAggregator/internal/domain"
	"NewsAggregator/internal/ports"
)

// base holds the request/validation logic shared by every news API adapter.
type base struct {
	name    string
	fetcher ports.Fetcher
	logger  *slog.Logger
}

// Name identifies the strategy inside the registry.
func (b *base) Name() string {
	return b.name
}

// Fetch builds the request URL, performs it and rejects unusable responses.
func (b *base) Fetch(ctx context.Context, profile domain.SourceProfile, params adapter.Params) ([]byte, error) {
	rawURL, err := adapter.BuildURL(profile, params)
	if err != nil {
		b.log(slog.LevelError, "cannot build request", "source", profile.Name, "error", err)
		return nil, err
	}

	b.log(slog.LevelInfo, "api request", "source", profile.Name, "url", adapter.RedactedURL(profile, rawURL))

	resp, err := b.fetcher.Get(ctx, rawURL)
	if err != nil {
		b.log(slog.LevelError, "failed to fetch", "source", profile.Name, "error", err)
		return nil, fmt.Errorf("fetch %s: %w", profile.ID, err)
	}

	b.log(slog.LevelInfo, "api response", "source", profile.Name, "status", resp.StatusCode)

	if err := validateResponse(resp); err != nil {
		b.log(slog.LevelError, "invalid response", "source", profile.Name, "error", err)
		return nil, fmt.Errorf("fetch %s: %w", profile.ID, err)
	}
	return resp.Body, nil
}

func (b *base) log(level slog.Level, msg string, args ...any) {
	if b.logger != nil {
		b.logger.Log(context.Background(), level, msg, args...)
	}
}

func validateResponse(resp ports.FetchResponse) error {
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: status %d", domain.ErrInvalidResponse, resp.StatusCode)
	}
	body := bytes.TrimSpace(resp.Body)
	if len(body) == 0 {
		return fmt.Errorf("%w: empty body", domain.ErrInvalidResponse)
	}
	if !gjson.ValidBytes(body) {
		return fmt.Errorf("%w: body is not json", domain.ErrInvalidResponse)
	}
	if emptyValue(gjson.ParseBytes(body)) {
		return fmt.Errorf("%w: body decodes to an empty value", domain.ErrInvalidResponse)
	}
	return nil
}

// emptyValue treats null, false, 0, "", "0", {} and [] as carrying nothing.
func emptyValue(v gjson.Result) bool {
	switch v.Type {
	case gjson.Null, gjson.False:
		return true
	case gjson.Number:
		return v.Num == 0
	case gjson.String:
		return v.Str == "" || v.Str == "0"
	case gjson.JSON:
		empty := true
		v.ForEach(func(_, _ gjson.Result) bool {
			empty = false
			return false
		})
		return empty
	}
	return false
}

// arrayAt returns the elements of the array found at path, or nil when the
// path is missing or holds anything other than an array.
func arrayAt(body []byte, path string) []gjson.Result {
	v := gjson.GetBytes(body, path)
	if !v.IsArray() {
		return nil
	}
	return v.Array()
}
