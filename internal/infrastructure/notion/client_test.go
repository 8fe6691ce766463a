package notion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"paperagent/internal/config"
	"paperagent/internal/domain"
)

// fakeNotion emulates the subset of the API the client touches.
type fakeNotion struct {
	t          *testing.T
	properties map[string]any
	pages      []page
	patched    map[string]any
	created    int
}

func newFakeNotion(t *testing.T) (*fakeNotion, *Client) {
	t.Helper()
	fake := &fakeNotion{
		t:          t,
		properties: map[string]any{"Title": map[string]any{"title": map[string]any{}}},
	}

	server := httptest.NewServer(http.HandlerFunc(fake.handle))
	t.Cleanup(server.Close)

	client := NewClient(config.NotionConfig{
		BaseURL:    server.URL,
		APIKey:     "secret",
		DatabaseID: "db-1",
		PageSize:   100,
	}, zap.NewNop())
	return fake, client
}

func (f *fakeNotion) handle(w http.ResponseWriter, r *http.Request) {
	assert.Equal(f.t, "Bearer secret", r.Header.Get("Authorization"))
	assert.Equal(f.t, notionVersion, r.Header.Get("Notion-Version"))

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/v1/databases/db-1":
		json.NewEncoder(w).Encode(map[string]any{"properties": f.properties})

	case r.Method == http.MethodPatch && r.URL.Path == "/v1/databases/db-1":
		var body struct {
			Properties map[string]any `json:"properties"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		f.patched = body.Properties
		for name, payload := range body.Properties {
			f.properties[name] = payload
		}
		w.Write([]byte("{}"))

	case r.Method == http.MethodPost && r.URL.Path == "/v1/databases/db-1/query":
		var body struct {
			Filter struct {
				Property string `json:"property"`
				RichText struct {
					Equals string `json:"equals"`
				} `json:"rich_text"`
			} `json:"filter"`
		}
		json.NewDecoder(r.Body).Decode(&body)

		results := f.pages
		if body.Filter.Property == "ArXiv ID" {
			results = nil
			for _, pg := range f.pages {
				id, _ := textProperty(pg.Properties, "ArXiv ID")
				if id == body.Filter.RichText.Equals {
					results = append(results, pg)
				}
			}
		}
		json.NewEncoder(w).Encode(map[string]any{"results": results})

	case r.Method == http.MethodPost && r.URL.Path == "/v1/pages":
		var body struct {
			Properties map[string]any `json:"properties"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		f.created++
		pg := page{ID: "page-created", Properties: body.Properties}
		f.pages = append(f.pages, pg)
		json.NewEncoder(w).Encode(pg)

	default:
		http.NotFound(w, r)
	}
}

func samplePaper() domain.Paper {
	return domain.Paper{
		Title:         "Oversight at Scale",
		Authors:       []string{"Jane Doe"},
		Abstract:      "We study oversight.",
		ArxivID:       "2506.01234",
		PublishedDate: time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC),
		Categories:    []string{"cs.AI"},
		ArxivURL:      "https://arxiv.org/abs/2506.01234",
	}
}

func sampleAnalysis() domain.Analysis {
	return domain.Analysis{
		Tags:           []string{"Oversight"},
		RelevanceScore: 8,
		KeyInsights:    []string{"Scales well"},
		Methodology:    "Empirical",
	}
}

func TestEnsureSchemaPatchesOnlyMissing(t *testing.T) {
	t.Parallel()

	fake, client := newFakeNotion(t)

	err := client.EnsureSchema(context.Background())
	require.NoError(t, err)

	require.NotNil(t, fake.patched)
	assert.NotContains(t, fake.patched, "Title")
	assert.Contains(t, fake.patched, "ArXiv ID")
	assert.Contains(t, fake.patched, "Relevance Score")
	assert.Contains(t, fake.patched, "Status")
}

func TestEnsureSchemaIdempotent(t *testing.T) {
	t.Parallel()

	fake, client := newFakeNotion(t)

	require.NoError(t, client.EnsureSchema(context.Background()))
	fake.patched = nil
	require.NoError(t, client.EnsureSchema(context.Background()))
	assert.Nil(t, fake.patched)
}

func TestInsertAndExists(t *testing.T) {
	t.Parallel()

	fake, client := newFakeNotion(t)
	ctx := context.Background()

	assert.False(t, client.Exists(ctx, "2506.01234"))

	id, ok := client.Insert(ctx, samplePaper(), sampleAnalysis())
	require.True(t, ok)
	assert.Equal(t, "page-created", id)
	assert.Equal(t, 1, fake.created)

	assert.True(t, client.Exists(ctx, "2506.01234"))
}

func TestInsertIsIdempotent(t *testing.T) {
	t.Parallel()

	fake, client := newFakeNotion(t)
	ctx := context.Background()

	_, ok := client.Insert(ctx, samplePaper(), sampleAnalysis())
	require.True(t, ok)

	_, ok = client.Insert(ctx, samplePaper(), sampleAnalysis())
	assert.False(t, ok)
	assert.Equal(t, 1, fake.created)
}

func TestListMapsRecords(t *testing.T) {
	t.Parallel()

	_, client := newFakeNotion(t)
	ctx := context.Background()

	_, ok := client.Insert(ctx, samplePaper(), sampleAnalysis())
	require.True(t, ok)

	records := client.List(ctx, "", 10)
	require.Len(t, records, 1)
	assert.Equal(t, "Oversight at Scale", records[0].Title)
	assert.Equal(t, "2506.01234", records[0].ArxivID)
	assert.Equal(t, []string{"Oversight"}, records[0].Tags)
	assert.Equal(t, domain.StatusNew, records[0].Status)
	assert.Equal(t, "2025-06-03", records[0].PublishedDate)
}

func TestServiceErrorsDegradeGracefully(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	t.Cleanup(server.Close)

	client := NewClient(config.NotionConfig{
		BaseURL: server.URL, APIKey: "secret", DatabaseID: "db-1",
	}, zap.NewNop())
	ctx := context.Background()

	assert.Error(t, client.EnsureSchema(ctx))
	assert.False(t, client.Exists(ctx, "x"))
	_, ok := client.Insert(ctx, samplePaper(), sampleAnalysis())
	assert.False(t, ok)
	assert.False(t, client.MarkReviewed(ctx, "x"))
	assert.Empty(t, client.List(ctx, domain.StatusNew, 10))
}
