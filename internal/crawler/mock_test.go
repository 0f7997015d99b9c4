package crawler

import (
	"context"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"
)

// MockCacheService implements a simple in-memory cache for testing
type MockCacheService struct {
	mu    sync.Mutex
	cache map[string][]byte
}

func NewMockCacheService() *MockCacheService {
	return &MockCacheService{
		cache: make(map[string][]byte),
	}
}

func (m *MockCacheService) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if val, ok := m.cache[key]; ok {
		return val, nil
	}
	return nil, &mockError{message: "cache miss"}
}

func (m *MockCacheService) Set(key string, value []byte, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[key] = value
	return nil
}

func (m *MockCacheService) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, key)
	return nil
}

type mockError struct {
	message string
}

func (e *mockError) Error() string {
	return e.message
}

// mockFetcher serves canned pages keyed by URL and records requests
type mockFetcher struct {
	pages    map[string]string
	err      error
	requests []string
}

func (m *mockFetcher) Fetch(ctx context.Context, url string) (string, error) {
	m.requests = append(m.requests, url)
	if m.err != nil {
		return "", m.err
	}
	page, ok := m.pages[url]
	if !ok {
		return "", &mockError{message: "no page for " + url}
	}
	return page, nil
}

// island renders one embedded list item carrying the given thread JSON
func island(threadJSON string) string {
	payload := fmt.Sprintf(`{"name":"ThreadMainListItemNormalizer","props":{"thread":%s}}`, threadJSON)
	return fmt.Sprintf(`<div data-vue3="%s"></div>`, html.EscapeString(payload))
}

func embedPage(threads ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, t := range threads {
		b.WriteString(island(t))
	}
	b.WriteString("</body></html>")
	return b.String()
}

func card(title, href, price, temp, merchant string) string {
	return fmt.Sprintf(`<article class="thread">
		<strong class="thread-title"><a href="%s">%s</a></strong>
		<span class="thread-price">%s</span>
		<span class="vote-temp">%s</span>
		<span class="thread-card-merchant">%s</span>
		<img class="thread-image" src="https://img.example.com/%s.jpg">
	</article>`, href, title, price, temp, merchant, title)
}

func cardPage(cards ...string) string {
	return "<html><body>" + strings.Join(cards, "") + "</body></html>"
}
