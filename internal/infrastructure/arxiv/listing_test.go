package arxiv

import (
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPageURL(t *testing.T) {
	t.Parallel()

	u, err := buildPageURL("https://arxiv.org/list/cs.AI/recent", 200, 100)
	require.NoError(t, err)

	parsed, err := url.Parse(u)
	require.NoError(t, err)

	assert.Equal(t, "arxiv.org", parsed.Host)
	assert.Equal(t, "200", parsed.Query().Get("skip"))
	assert.Equal(t, "100", parsed.Query().Get("show"))
}

func TestBuildPageURLInvalid(t *testing.T) {
	t.Parallel()

	_, err := buildPageURL("://bad", 0, 100)
	assert.Error(t, err)
}

func TestParseListingEntry(t *testing.T) {
	t.Parallel()

	html := `
	<h3>Tue, 3 Jun 2025</h3>
	<dl>
	  <dt>
	    <span class="list-identifier"><a href="/abs/2506.01234">arXiv:2506.01234</a></span>
	  </dt>
	  <dd>
	    <div class="list-title mathjax">Title: Oversight at Scale</div>
	    <div class="list-authors"><a href="#">Jane Doe</a>, <a href="#">John Roe</a></div>
	    <div class="list-subjects"><span class="primary-subject">Artificial Intelligence (cs.AI)</span></div>
	    <p class="mathjax">Abstract: We study oversight.</p>
	  </dd>
	</dl>`

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	dt := doc.Find("dt").First()
	dd := doc.Find("dd").First()

	paper, err := parseListingEntry(dt, dd)
	require.NoError(t, err)

	assert.Equal(t, "2506.01234", paper.ArxivID)
	assert.Equal(t, "Oversight at Scale", paper.Title)
	assert.Equal(t, "We study oversight.", paper.Abstract)
	assert.Equal(t, []string{"Jane Doe", "John Roe"}, paper.Authors)
	assert.Equal(t, []string{"cs.AI"}, paper.Categories)
	assert.Equal(t, "https://arxiv.org/abs/2506.01234", paper.ArxivURL)
}

func TestParseListingEntryWithoutIdentifier(t *testing.T) {
	t.Parallel()

	html := `<dl><dt></dt><dd><div class="list-title">Title: Orphan</div></dd></dl>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	_, err = parseListingEntry(doc.Find("dt").First(), doc.Find("dd").First())
	assert.Error(t, err)
}
