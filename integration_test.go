package main

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"sjsage522/pepperworker/config"
	"sjsage522/pepperworker/internal/category"
	"sjsage522/pepperworker/internal/matcher"
	"sjsage522/pepperworker/services/publisher"
	"sjsage522/pepperworker/services/store"
	"sjsage522/pepperworker/services/worker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryPublisher struct {
	mu       sync.Mutex
	messages map[string][][]byte
}

func (m *memoryPublisher) Publish(ctx context.Context, key string, message []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.messages == nil {
		m.messages = map[string][][]byte{}
	}
	m.messages[key] = append(m.messages[key], message)
	return nil
}

func (m *memoryPublisher) TrimStreams(ctx context.Context) error { return nil }
func (m *memoryPublisher) Close() error                          { return nil }

func thread(id, slug, title, price string, temp int, posted time.Time) string {
	payload := fmt.Sprintf(`{"name":"ThreadMainListItemNormalizer","props":{"thread":{"threadId":%q,"titleSlug":%q,"title":%q,"price":%s,"temperature":%d,"publishedAt":%q,"merchant":{"merchantName":"Allegro"}}}}`,
		id, slug, title, price, temp, posted.UTC().Format(time.RFC3339))
	return fmt.Sprintf(`<div data-vue3="%s"></div>`, html.EscapeString(payload))
}

// newSite serves a search page with embedded items and a group page with cards only
func newSite(t *testing.T) *httptest.Server {
	now := time.Now()
	search := "<html><body>" +
		thread("101", "klocki-lego-technic", "Klocki LEGO Technic", "149.99", 320, now.Add(-2*time.Hour)) +
		thread("102", "lego-city", "LEGO City", "79", 150, now.Add(-3*time.Hour)) +
		thread("103", "lego-stare", "LEGO stare", "50", 900, now.Add(-40*time.Hour)) +
		thread("104", "lego-zimne", "LEGO zimne", "20", 10, now.Add(-time.Hour)) +
		"</body></html>"
	group := `<html><body>
		<article class="thread"><strong class="thread-title"><a href="/promocje/gra-1">Gra 1</a></strong>
			<span class="thread-price">Za darmo</span><span class="vote-temp">480°</span></article>
		<article class="thread"><strong class="thread-title"><a href="/promocje/gra-2">Gra 2</a></strong>
			<span class="thread-price">59,99 zł</span><span class="vote-temp">120°</span>
			<span class="thread-card-merchant">Steam</span></article>
	</body></html>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		switch {
		case r.URL.Path == "/search" && r.URL.Query().Get("q") == "lego" && r.URL.Query().Get("sort") == "new":
			w.Write([]byte(search))
		case r.URL.Path == "/grupa/gry":
			w.Write([]byte(group))
		case r.URL.Path == "/search":
			w.Write([]byte("<html><body></body></html>"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func testConfig(baseURL string) *config.Config {
	cfg := config.LoadConfig()
	cfg.BaseURL = baseURL
	cfg.SearchURLTemplate = baseURL + "/search?q=%s"
	cfg.GroupURLTemplate = baseURL + "/grupa/%s"
	cfg.FlightCategoryURL = baseURL + "/grupa/loty"
	return cfg
}

func TestAlertPipeline(t *testing.T) {
	ctx := context.Background()
	server := newSite(t)
	cfg := testConfig(server.URL)

	db, err := store.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	limit := 100.0
	_, err = db.AddAlert(ctx, "u1", "LEGO", &limit)
	require.NoError(t, err)
	_, err = db.AddAlert(ctx, "u2", "lego", nil)
	require.NoError(t, err)
	_, err = db.AddAlert(ctx, "u3", "nic", nil)
	require.NoError(t, err)

	client := newClient(cfg, nil)
	pub := &memoryPublisher{}
	w := worker.NewWorker(
		matcher.New(db, client, matcher.Config{}),
		category.NewRunner(db, client, category.Config{}),
		db, pub, worker.Config{Retention: 30 * 24 * time.Hour},
	)

	w.RunAlerts(ctx)

	// u1 is capped at 100 zł: only LEGO City. u2 has no cap: both fresh, warm deals.
	require.Len(t, pub.messages[publisher.KeyAlert], 3)
	got := map[string][]string{}
	for _, raw := range pub.messages[publisher.KeyAlert] {
		var n matcher.Notification
		require.NoError(t, json.Unmarshal(raw, &n))
		assert.Equal(t, "lego", n.Query)
		assert.True(t, strings.HasPrefix(n.Deal.Link, server.URL+"/promocje/"))
		got[n.UserID] = append(got[n.UserID], n.Deal.Title)
	}
	assert.Equal(t, []string{"LEGO City"}, got["u1"])
	assert.ElementsMatch(t, []string{"Klocki LEGO Technic", "LEGO City"}, got["u2"])

	// The next sweep finds nothing new
	w.RunAlerts(ctx)
	assert.Len(t, pub.messages[publisher.KeyAlert], 3)
}

func TestCategoryPipeline(t *testing.T) {
	ctx := context.Background()
	server := newSite(t)
	cfg := testConfig(server.URL)

	db, err := store.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = db.AddCategory(ctx, category.Category{GuildID: "g1", ChannelID: "c1", Slug: "gry", Name: "Gry", MinTemperature: 200})
	require.NoError(t, err)

	runner := category.NewRunner(db, newClient(cfg, nil), category.Config{})
	digests, err := runner.Sweep(ctx)
	require.NoError(t, err)
	require.Len(t, digests, 1)
	require.Len(t, digests[0].Deals, 1)
	assert.Equal(t, "Gra 1", digests[0].Deals[0].Title)
	assert.Equal(t, server.URL+"/promocje/gra-1", digests[0].Deals[0].Link)
	assert.Nil(t, digests[0].Deals[0].PostedAt)

	stored, err := db.CategoryBySlug(ctx, "g1", "gry")
	require.NoError(t, err)
	assert.Equal(t, 2, stored.TotalChecked)
	assert.Equal(t, 1, stored.TotalSent)
	require.NotNil(t, stored.LastRun)

	// Not due again within the hour
	digests, err = runner.Sweep(ctx)
	require.NoError(t, err)
	assert.Empty(t, digests)
}
