package places

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/geo"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/logger"
)

func newTestClient(t *testing.T, h http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(logger.Nop(), Config{APIKey: "k", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestGeocodeCachesByNormalizedAddress(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.URL.Path != "/maps/api/geocode/json" || r.URL.Query().Get("key") != "k" {
			t.Fatalf("unexpected request %s", r.URL)
		}
		_, _ = w.Write([]byte(`{"status":"OK","results":[{"formatted_address":"Nairobi, Kenya","geometry":{"location":{"lat":-1.2921,"lng":36.8219}}}]}`))
	})

	loc, err := c.Geocode(context.Background(), "Nairobi")
	if err != nil {
		t.Fatalf("Geocode: %v", err)
	}
	if loc.Point.Lat != -1.2921 || loc.FormattedAddress != "Nairobi, Kenya" {
		t.Fatalf("loc=%#v", loc)
	}
	if _, err := c.Geocode(context.Background(), "  nairobi "); err != nil {
		t.Fatalf("Geocode cached: %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("calls=%d want 1", calls)
	}
}

func TestGeocodeCoalescesConcurrentLookups(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		<-release
		_, _ = w.Write([]byte(`{"status":"OK","results":[{"formatted_address":"Accra","geometry":{"location":{"lat":5.6,"lng":-0.19}}}]}`))
	})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Geocode(context.Background(), "Accra"); err != nil {
				t.Errorf("Geocode: %v", err)
			}
		}()
	}
	for atomic.LoadInt32(&calls) == 0 {
		runtime.Gosched()
	}
	close(release)
	wg.Wait()
	if n := atomic.LoadInt32(&calls); n > 5 || n < 1 {
		t.Fatalf("calls=%d", n)
	}
}

func TestGeocodeZeroResults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
	})
	_, err := c.Geocode(context.Background(), "nowhere at all")
	if !errors.Is(err, ErrAddressNotFound) {
		t.Fatalf("err=%v", err)
	}
}

func TestNearbyParsesPlaces(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("keyword") != "bookshop" || q.Get("radius") != "3000" || q.Get("location") != "-1.29,36.82" {
			t.Fatalf("query=%v", q)
		}
		_, _ = w.Write([]byte(`{"status":"OK","results":[
			{"place_id":"p1","name":"Text Book Centre","vicinity":"Kijabe St","rating":4.5,"user_ratings_total":10,
			 "geometry":{"location":{"lat":-1.28,"lng":36.82}},"opening_hours":{"open_now":true}},
			{"place_id":"p2","name":"Corner Books","vicinity":"Moi Ave","geometry":{"location":{"lat":-1.3,"lng":36.83}}}
		]}`))
	})

	got, err := c.Nearby(context.Background(), geo.Point{Lat: -1.29, Lng: 36.82}, "bookshop", 3000)
	if err != nil {
		t.Fatalf("Nearby: %v", err)
	}
	if len(got) != 2 || got[0].PlaceID != "p1" || got[0].OpenNow == nil || !*got[0].OpenNow || got[1].OpenNow != nil {
		t.Fatalf("got=%#v", got)
	}
}

func TestNearbyDeniedStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"REQUEST_DENIED","error_message":"bad key"}`))
	})
	_, err := c.Nearby(context.Background(), geo.Point{}, "", 0)
	var se *APIStatusError
	if !errors.As(err, &se) || se.Status != "REQUEST_DENIED" {
		t.Fatalf("err=%v", err)
	}
}
