package category

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"sjsage522/pepperworker/internal/crawler"
	"sjsage522/pepperworker/internal/deal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stats struct{ checked, sent, errs int }

type fakeStore struct {
	categories   []Category
	categorySent map[int64]map[string]bool
	flightSent   map[string]bool
	stats        map[int64][]stats
	lastRun      map[int64]time.Time
	markCalls    int
}

func newFakeStore(categories ...Category) *fakeStore {
	return &fakeStore{
		categories:   categories,
		categorySent: map[int64]map[string]bool{},
		flightSent:   map[string]bool{},
		stats:        map[int64][]stats{},
		lastRun:      map[int64]time.Time{},
	}
}

func (s *fakeStore) ActiveCategories(ctx context.Context) ([]Category, error) {
	return s.categories, nil
}

func (s *fakeStore) IsCategoryDealSent(ctx context.Context, categoryID int64, link string) (bool, error) {
	return s.categorySent[categoryID][link], nil
}

func (s *fakeStore) MarkCategoryDealsSent(ctx context.Context, categoryID int64, links []string) error {
	s.markCalls++
	if s.categorySent[categoryID] == nil {
		s.categorySent[categoryID] = map[string]bool{}
	}
	for _, l := range links {
		s.categorySent[categoryID][l] = true
	}
	return nil
}

func (s *fakeStore) UpdateCategoryStats(ctx context.Context, categoryID int64, checked, sent, errs int) error {
	s.stats[categoryID] = append(s.stats[categoryID], stats{checked, sent, errs})
	return nil
}

func (s *fakeStore) UpdateCategoryLastRun(ctx context.Context, categoryID int64, at time.Time) error {
	s.lastRun[categoryID] = at
	return nil
}

func (s *fakeStore) IsDealSent(ctx context.Context, link string) (bool, error) {
	return s.flightSent[link], nil
}

func (s *fakeStore) MarkDealsSent(ctx context.Context, links []string) error {
	s.markCalls++
	for _, l := range links {
		s.flightSent[l] = true
	}
	return nil
}

type fakeLister struct {
	groups  map[string][]deal.Deal
	flights []deal.Deal
	err     map[string]error
	calls   []string
}

func (f *fakeLister) Group(ctx context.Context, slug string, limit int) (*crawler.Listing, error) {
	f.calls = append(f.calls, slug)
	if err := f.err[slug]; err != nil {
		return nil, err
	}
	return &crawler.Listing{Deals: f.groups[slug], Total: len(f.groups[slug])}, nil
}

func (f *fakeLister) Flights(ctx context.Context, limit int) (*crawler.Listing, error) {
	return &crawler.Listing{Deals: f.flights, Total: len(f.flights)}, nil
}

var testNow = time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

func newTestRunner(store Store, lister Lister) (*Runner, *[]time.Duration) {
	r := NewRunner(store, lister, Config{Now: func() time.Time { return testNow }})
	pauses := &[]time.Duration{}
	r.sleep = func(ctx context.Context, d time.Duration) error {
		*pauses = append(*pauses, d)
		return nil
	}
	return r, pauses
}

func d(link string, temp int, price string) deal.Deal {
	return deal.Deal{Title: "Deal " + link, Link: link, Temperature: temp, Price: price, Merchant: deal.DefaultMerchant}
}

func TestProcessAppliesCategoryGates(t *testing.T) {
	limit := 100.0
	c := Category{ID: 1, Slug: "gry", MinTemperature: 50, MaxPrice: &limit}
	store := newFakeStore(c)
	lister := &fakeLister{groups: map[string][]deal.Deal{"gry": {
		d("cold", 10, "5 zł"),
		d("expensive", 300, "150 zł"),
		d("unpriced", 200, "cena w opisie"),
		d("free", 80, "Za darmo"),
		d("ok", 120, "99 zł"),
	}}}
	r, _ := newTestRunner(store, lister)

	digest, err := r.Process(context.Background(), c, false)
	require.NoError(t, err)
	require.NotNil(t, digest)

	var got []string
	for _, x := range digest.Deals {
		got = append(got, x.Link)
	}
	assert.Equal(t, []string{"unpriced", "ok", "free"}, got)
	assert.Equal(t, 3, digest.Found)
	assert.Equal(t, KindCategory, digest.Kind)
	assert.Equal(t, "gry", digest.Title)
	assert.True(t, store.categorySent[1]["ok"])
	assert.False(t, store.categorySent[1]["expensive"])
	assert.Equal(t, testNow, store.lastRun[1])
	assert.Equal(t, []stats{{5, 3, 0}}, store.stats[1])
}

func TestProcessSkipsAlreadySent(t *testing.T) {
	c := Category{ID: 2, Slug: "rtv", Name: "RTV"}
	store := newFakeStore(c)
	lister := &fakeLister{groups: map[string][]deal.Deal{"rtv": {d("a", 100, "1 zł")}}}
	r, _ := newTestRunner(store, lister)

	first, err := r.Process(context.Background(), c, false)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "RTV", first.Title)

	second, err := r.Process(context.Background(), c, false)
	require.NoError(t, err)
	assert.Nil(t, second)
	assert.Equal(t, stats{1, 0, 0}, store.stats[2][1])
}

func TestManualTriggerIgnoresAndKeepsLedger(t *testing.T) {
	c := Category{ID: 3, Slug: "dom"}
	store := newFakeStore(c)
	store.categorySent[3] = map[string]bool{"a": true}
	lister := &fakeLister{groups: map[string][]deal.Deal{"dom": {d("a", 100, "1 zł"), d("b", 90, "2 zł")}}}
	r, _ := newTestRunner(store, lister)

	digest, err := r.Process(context.Background(), c, true)
	require.NoError(t, err)
	require.NotNil(t, digest)
	assert.Len(t, digest.Deals, 2)
	assert.True(t, digest.Manual)
	assert.Equal(t, 0, store.markCalls)
	assert.False(t, store.categorySent[3]["b"])
}

func TestDigestKeepsHottestTen(t *testing.T) {
	c := Category{ID: 4, Slug: "moda"}
	var deals []deal.Deal
	for i := 0; i < 15; i++ {
		deals = append(deals, d(fmt.Sprintf("deal-%d", i), i*10, "10 zł"))
	}
	r, _ := newTestRunner(newFakeStore(c), &fakeLister{groups: map[string][]deal.Deal{"moda": deals}})

	digest, err := r.Process(context.Background(), c, false)
	require.NoError(t, err)
	assert.Equal(t, 15, digest.Found)
	require.Len(t, digest.Deals, 10)
	assert.Equal(t, 140, digest.Deals[0].Temperature)
	assert.Equal(t, 50, digest.Deals[9].Temperature)
}

func TestFetchFailureCountsError(t *testing.T) {
	c := Category{ID: 5, Slug: "auto"}
	store := newFakeStore(c)
	r, _ := newTestRunner(store, &fakeLister{err: map[string]error{"auto": errors.New("timeout")}})

	digest, err := r.Process(context.Background(), c, false)
	assert.Error(t, err)
	assert.Nil(t, digest)
	assert.Equal(t, []stats{{0, 0, 1}}, store.stats[5])
}

func TestSweepRunsDueCategoriesWithStagger(t *testing.T) {
	recent := testNow.Add(-10 * time.Minute)
	categories := []Category{
		{ID: 1, Slug: "a"},
		{ID: 2, Slug: "b", LastRun: &recent},
		{ID: 3, Slug: "c"},
		{ID: 4, Slug: "d"},
	}
	lister := &fakeLister{
		groups: map[string][]deal.Deal{"a": {d("a1", 100, "1 zł")}, "d": {d("d1", 100, "1 zł")}},
		err:    map[string]error{"c": errors.New("boom")},
	}
	r, pauses := newTestRunner(newFakeStore(categories...), lister)

	digests, err := r.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "d"}, lister.calls)
	require.Len(t, digests, 2)
	assert.Equal(t, int64(1), digests[0].CategoryID)
	assert.Equal(t, int64(4), digests[1].CategoryID)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, *pauses)
}

func TestFlights(t *testing.T) {
	store := newFakeStore()
	store.flightSent["old"] = true
	lister := &fakeLister{flights: []deal.Deal{d("old", 500, "99 zł"), d("new", 30, "199 zł"), d("hot", 300, "299 zł")}}
	r, _ := newTestRunner(store, lister)

	digest, err := r.Flights(context.Background(), false)
	require.NoError(t, err)
	require.NotNil(t, digest)
	assert.Equal(t, KindFlights, digest.Kind)
	assert.Equal(t, "Flight report 2026-10-19", digest.Title)
	require.Len(t, digest.Deals, 2)
	assert.Equal(t, "hot", digest.Deals[0].Link)
	assert.True(t, store.flightSent["new"])

	again, err := r.Flights(context.Background(), false)
	require.NoError(t, err)
	assert.Nil(t, again)

	manual, err := r.Flights(context.Background(), true)
	require.NoError(t, err)
	require.NotNil(t, manual)
	assert.Len(t, manual.Deals, 3)
}

func TestEveryInterval(t *testing.T) {
	run := EveryInterval(time.Hour)
	assert.True(t, run(Category{}, testNow))

	last := testNow.Add(-59 * time.Minute)
	assert.False(t, run(Category{LastRun: &last}, testNow))

	last = testNow.Add(-61 * time.Minute)
	assert.True(t, run(Category{LastRun: &last}, testNow))
}
