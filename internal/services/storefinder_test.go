package services

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/mwanafrika/mwanafrika-backend/internal/clients/places"
	"github.com/mwanafrika/mwanafrika-backend/internal/content"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/apierr"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/geo"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/logger"
)

type fakePlaces struct {
	mu        sync.Mutex
	origin    geo.Point
	geoErr    error
	nearbyErr error
	byKeyword map[string][]places.Place
	keywords  []string
}

func (f *fakePlaces) Geocode(ctx context.Context, address string) (places.Location, error) {
	if f.geoErr != nil {
		return places.Location{}, f.geoErr
	}
	return places.Location{FormattedAddress: "Nairobi, Kenya", Point: f.origin}, nil
}

func (f *fakePlaces) Nearby(ctx context.Context, origin geo.Point, keyword string, radius int) ([]places.Place, error) {
	f.mu.Lock()
	f.keywords = append(f.keywords, keyword)
	f.mu.Unlock()
	if f.nearbyErr != nil {
		return nil, f.nearbyErr
	}
	return f.byKeyword[keyword], nil
}

var nairobi = geo.Point{Lat: -1.2864, Lng: 36.8172}

func TestStoreSearchSortsByDistance(t *testing.T) {
	fp := &fakePlaces{
		origin: nairobi,
		byKeyword: map[string][]places.Place{
			"bookshop": {
				{PlaceID: "far", Name: "Far Books", Point: geo.Point{Lat: -1.30, Lng: 36.83}},
				{PlaceID: "near-b", Name: "B Books", Point: geo.Point{Lat: -1.2870, Lng: 36.8172}},
				{PlaceID: "near-a", Name: "A Books", Point: geo.Point{Lat: -1.2870, Lng: 36.8172}},
			},
		},
	}
	ss := NewStoreService(logger.Nop(), fp, content.MustLoad(), 5000)

	res, err := ss.Search(context.Background(), StoreSearchRequest{Address: "Nairobi", Keyword: "bookshop"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res.Stores) != 3 {
		t.Fatalf("stores: %+v", res.Stores)
	}
	got := []string{res.Stores[0].PlaceID, res.Stores[1].PlaceID, res.Stores[2].PlaceID}
	want := []string{"near-a", "near-b", "far"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order: got %v want %v", got, want)
		}
	}
	if res.Stores[0].DistanceKm != geo.Distance(nairobi, geo.Point{Lat: -1.2870, Lng: 36.8172}) {
		t.Fatalf("distance not computed from origin")
	}
}

func TestStoresForRewardDeduplicates(t *testing.T) {
	catalog := content.MustLoad()
	var reward content.Reward
	for _, r := range catalog.Rewards {
		if len(r.StoreKeywords) >= 2 {
			reward = r
			break
		}
	}
	if reward.ID == "" {
		t.Skip("no reward with multiple store keywords")
	}
	shared := places.Place{PlaceID: "shared", Name: "Mega Store", Point: nairobi}
	fp := &fakePlaces{
		origin: nairobi,
		byKeyword: map[string][]places.Place{
			reward.StoreKeywords[0]: {shared, {PlaceID: "only-first", Name: "First", Point: nairobi}},
			reward.StoreKeywords[1]: {shared},
		},
	}
	ss := NewStoreService(logger.Nop(), fp, catalog, 5000)

	res, err := ss.ForReward(context.Background(), reward.ID, "Nairobi")
	if err != nil {
		t.Fatalf("for reward: %v", err)
	}
	if len(res.Stores) != 2 {
		t.Fatalf("expected de-duplicated stores, got %+v", res.Stores)
	}
	if len(fp.keywords) != len(reward.StoreKeywords) {
		t.Fatalf("keywords searched: %v", fp.keywords)
	}
}

func TestStoreSearchErrors(t *testing.T) {
	catalog := content.MustLoad()
	tests := []struct {
		name   string
		client places.Client
		status int
		code   string
	}{
		{name: "not configured", client: nil, status: http.StatusInternalServerError, code: "not_configured"},
		{name: "address not found", client: &fakePlaces{geoErr: places.ErrAddressNotFound}, status: http.StatusNotFound, code: "address_not_found"},
		{name: "upstream", client: &fakePlaces{origin: nairobi, nearbyErr: errors.New("OVER_QUERY_LIMIT")}, status: http.StatusInternalServerError, code: "upstream_error"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ss := NewStoreService(logger.Nop(), tc.client, catalog, 5000)
			_, err := ss.Search(context.Background(), StoreSearchRequest{Address: "x", Keyword: "y"})
			ae, ok := apierr.As(err)
			if !ok || ae.Status != tc.status || ae.Code != tc.code {
				t.Fatalf("got %v", err)
			}
		})
	}

	ss := NewStoreService(logger.Nop(), &fakePlaces{}, catalog, 5000)
	if _, err := ss.ForReward(context.Background(), "nope", "x"); err == nil {
		t.Fatalf("expected reward_not_found")
	}
}
