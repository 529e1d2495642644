package rss

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ArticleRelay/internal/domain"
)

const rssBody = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Example Feed</title>
    <item>
      <title> First Article </title>
      <link>https://example.com/a</link>
      <guid>guid-a</guid>
      <pubDate>Mon, 02 Jan 2006 15:04:05 -0700</pubDate>
      <category>Go</category>
      <category> </category>
    </item>
    <item>
      <title>Second Article</title>
      <link>https://example.com/b</link>
    </item>
  </channel>
</rss>`

const atomBody = `<?xml version="1.0"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <title>Atom Article</title>
    <id>tag:example.com,2006:entry-1</id>
    <updated>2006-01-02T15:04:05Z</updated>
    <link rel="alternate" href="https://example.com/atom-a"/>
    <category term="news"/>
  </entry>
</feed>`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPoller(serverURL string, opts Options) (*Poller, domain.Feed) {
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = time.Millisecond
	}
	return NewPoller(opts, testLogger()), domain.Feed{URL: serverURL, Kind: domain.FeedKindRSS}
}

func TestPollParsesRSS(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, rssBody)
	}))
	defer srv.Close()

	poller, feed := testPoller(srv.URL, Options{})
	entries, err := poller.Poll(context.Background(), feed)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	first := entries[0]
	assert.Equal(t, "guid-a", first.Fingerprint)
	assert.Equal(t, "First Article", first.Title)
	assert.Equal(t, "https://example.com/a", first.URL)
	assert.Equal(t, []string{"Go"}, first.Tags)
	require.NotNil(t, first.PublishedAt)
	assert.Equal(t, 2006, first.PublishedAt.Year())

	// No GUID falls back to the URL fingerprint.
	assert.Equal(t, domain.URLFingerprint("https://example.com/b"), entries[1].Fingerprint)
	assert.Nil(t, entries[1].PublishedAt)
}

func TestPollParsesAtom(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, atomBody)
	}))
	defer srv.Close()

	poller, feed := testPoller(srv.URL, Options{})
	entries, err := poller.Poll(context.Background(), feed)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	assert.Equal(t, "tag:example.com,2006:entry-1", entries[0].Fingerprint)
	assert.Equal(t, "https://example.com/atom-a", entries[0].URL)
	assert.Equal(t, []string{"news"}, entries[0].Tags)
}

func TestPollCapsEntries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, rssBody)
	}))
	defer srv.Close()

	poller, feed := testPoller(srv.URL, Options{MaxEntries: 1})
	entries, err := poller.Poll(context.Background(), feed)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestPollRetriesAndSwapsUserAgentOn403(t *testing.T) {
	var agents []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agents = append(agents, r.UserAgent())
		if len(agents) == 1 {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		io.WriteString(w, rssBody)
	}))
	defer srv.Close()

	poller, feed := testPoller(srv.URL, Options{UserAgent: "ArticleRelay/1.0"})
	entries, err := poller.Poll(context.Background(), feed)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	require.Len(t, agents, 2)
	assert.Equal(t, "ArticleRelay/1.0", agents[0])
	assert.Equal(t, mobileUserAgent, agents[1])
}

func TestPollGivesUpOn404(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	poller, feed := testPoller(srv.URL, Options{})
	_, err := poller.Poll(context.Background(), feed)
	require.Error(t, err)
	assert.Equal(t, 1, requests, "404 is not retried")
}

func TestPollRejectsNonFeedDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html><body>not a feed</body></html>")
	}))
	defer srv.Close()

	poller, feed := testPoller(srv.URL, Options{MaxRetries: 1})
	_, err := poller.Poll(context.Background(), feed)
	assert.Error(t, err)
}

func TestParseFeedTimeLayouts(t *testing.T) {
	for _, value := range []string{
		"Mon, 02 Jan 2006 15:04:05 -0700",
		"Mon, 2 Jan 2006 15:04:05 -0700",
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
	} {
		parsed := parseFeedTime(value)
		require.NotNil(t, parsed, "value=%q", value)
		assert.Equal(t, 2006, parsed.Year())
	}

	assert.Nil(t, parseFeedTime(""))
	assert.Nil(t, parseFeedTime("yesterday"))
}
