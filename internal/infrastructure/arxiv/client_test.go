package arxiv

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"paperagent/internal/config"
)

func atomFeedBody(entries ...string) string {
	body := `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">`
	for _, entry := range entries {
		body += entry
	}
	return body + `</feed>`
}

func atomEntryBody(id, title, published string) string {
	return fmt.Sprintf(`
<entry>
  <id>http://arxiv.org/abs/%s</id>
  <title>%s</title>
  <summary>An abstract
  wrapped over lines.</summary>
  <author><name>Jane Doe</name></author>
  <author><name>John Roe</name></author>
  <category term="cs.AI"/>
  <link href="http://arxiv.org/pdf/%s" title="pdf"/>
  <published>%s</published>
</entry>`, id, title, id, published)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(config.ArxivConfig{
		BaseURL:    server.URL,
		Query:      `cat:cs.AI AND abs:"scalable oversight"`,
		MaxResults: 50,
	}, zap.NewNop())
	return client, server
}

func TestFetchFiltersByRecency(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC)
	fresh := atomEntryBody("1111.1111v1", "Fresh Paper", now.Format(time.RFC3339))
	stale := atomEntryBody("2222.2222v1", "Stale Paper", now.AddDate(0, 0, -10).Format(time.RFC3339))

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "submittedDate", r.URL.Query().Get("sortBy"))
		assert.Equal(t, "descending", r.URL.Query().Get("sortOrder"))
		fmt.Fprint(w, atomFeedBody(fresh, stale))
	})
	client.now = func() time.Time { return now }

	papers := client.Fetch(context.Background(), 1)

	require.Len(t, papers, 1)
	assert.Equal(t, "1111.1111v1", papers[0].ArxivID)
	assert.Equal(t, "Fresh Paper", papers[0].Title)
	assert.Equal(t, "An abstract wrapped over lines.", papers[0].Abstract)
	assert.Equal(t, []string{"Jane Doe", "John Roe"}, papers[0].Authors)
	assert.Equal(t, "http://arxiv.org/pdf/1111.1111v1", papers[0].PDFURL)
	assert.Equal(t, "http://arxiv.org/abs/1111.1111v1", papers[0].ArxivURL)
}

func TestFetchServiceErrorYieldsEmpty(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	})

	papers := client.Fetch(context.Background(), 1)
	assert.Empty(t, papers)
}

func TestFetchByID(t *testing.T) {
	t.Parallel()

	entry := atomEntryBody("2406.01234v2", "Single Paper", "2024-06-03T12:00:00Z")
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2406.01234v2", r.URL.Query().Get("id_list"))
		fmt.Fprint(w, atomFeedBody(entry))
	})

	paper, ok := client.FetchByID(context.Background(), "2406.01234v2")
	require.True(t, ok)
	assert.Equal(t, "2406.01234v2", paper.ArxivID)
	assert.Equal(t, "Single Paper", paper.Title)
}

func TestFetchByIDNotFound(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, atomFeedBody())
	})

	_, ok := client.FetchByID(context.Background(), "0000.0000")
	assert.False(t, ok)
}

func TestSearchByKeywordsBuildsQuery(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC)
	entry := atomEntryBody("3333.3333v1", "Keyword Hit", now.Format(time.RFC3339))

	var gotQuery string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("search_query")
		fmt.Fprint(w, atomFeedBody(entry))
	})
	client.now = func() time.Time { return now }

	papers := client.SearchByKeywords(context.Background(), []string{"debate", "weak-to-strong"}, 1)

	require.Len(t, papers, 1)
	assert.Equal(t,
		`(abs:"debate" OR abs:"weak-to-strong") AND cat:cs.AI AND abs:"scalable oversight"`,
		gotQuery)
}
