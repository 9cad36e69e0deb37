package sources

import (
	"log/slog"

	"github.com/tidwall/gjson"

	"NewsAggregator/internal/adapter"
	"NewsAggregator/internal/ports"
)

// NewsAPI reads the "articles" array of newsapi.org responses.
type NewsAPI struct{ base }

// Guardian reads "response.results" of the Guardian content API.
type Guardian struct{ base }

// NYT reads "results" (top stories, most popular) and falls back to
// "response.docs" (article search).
type NYT struct{ base }

var (
	_ adapter.Adapter = (*NewsAPI)(nil)
	_ adapter.Adapter = (*Guardian)(nil)
	_ adapter.Adapter = (*NYT)(nil)
)

// NewNewsAPI wires the newsapi adapter.
func NewNewsAPI(fetcher ports.Fetcher, logger *slog.Logger) *NewsAPI {
	return &NewsAPI{base{name: "newsapi", fetcher: fetcher, logger: logger}}
}

// NewGuardian wires the guardian adapter.
func NewGuardian(fetcher ports.Fetcher, logger *slog.Logger) *Guardian {
	return &Guardian{base{name: "guardian", fetcher: fetcher, logger: logger}}
}

// NewNYT wires the nyt adapter.
func NewNYT(fetcher ports.Fetcher, logger *slog.Logger) *NYT {
	return &NYT{base{name: "nyt", fetcher: fetcher, logger: logger}}
}

// ExtractArticles implements adapter.Adapter.
func (a *NewsAPI) ExtractArticles(body []byte) []gjson.Result {
	return arrayAt(body, "articles")
}

// ExtractArticles implements adapter.Adapter.
func (a *Guardian) ExtractArticles(body []byte) []gjson.Result {
	return arrayAt(body, "response.results")
}

// ExtractArticles implements adapter.Adapter.
func (a *NYT) ExtractArticles(body []byte) []gjson.Result {
	if results := gjson.GetBytes(body, "results"); results.Exists() && results.Type != gjson.Null {
		return arrayAt(body, "results")
	}
	return arrayAt(body, "response.docs")
}

// Registry returns a registry with every built-in adapter.
func Registry(fetcher ports.Fetcher, logger *slog.Logger) *adapter.Registry {
	return adapter.NewRegistry(
		NewNewsAPI(fetcher, logger),
		NewGuardian(fetcher, logger),
		NewNYT(fetcher, logger),
	)
}
