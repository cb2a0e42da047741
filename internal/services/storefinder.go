package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mwanafrika/mwanafrika-backend/internal/clients/places"
	"github.com/mwanafrika/mwanafrika-backend/internal/content"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/apierr"
	apperr "github.com/mwanafrika/mwanafrika-backend/internal/pkg/errors"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/geo"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/logger"
)

type Store struct {
	PlaceID     string    `json:"place_id"`
	Name        string    `json:"name"`
	Address     string    `json:"address"`
	Location    geo.Point `json:"location"`
	DistanceKm  float64   `json:"distance_km"`
	Rating      float64   `json:"rating,omitempty"`
	RatingCount int       `json:"rating_count,omitempty"`
	OpenNow     *bool     `json:"open_now,omitempty"`
	Keyword     string    `json:"keyword,omitempty"`
}

type StoreSearchResult struct {
	Origin  geo.Point `json:"origin"`
	Address string    `json:"address"`
	Stores  []Store   `json:"stores"`
}

type StoreSearchRequest struct {
	Address string `json:"address" binding:"required"`
	Keyword string `json:"keyword" binding:"required"`
}

type StoreService interface {
	Search(ctx context.Context, req StoreSearchRequest) (*StoreSearchResult, error)
	// ForReward searches every store keyword of a reward concurrently.
	ForReward(ctx context.Context, rewardID, address string) (*StoreSearchResult, error)
}

type storeService struct {
	log     *logger.Logger
	places  places.Client
	catalog *content.Catalog
	radius  int
}

func NewStoreService(log *logger.Logger, placesClient places.Client, catalog *content.Catalog, radiusMeters int) StoreService {
	return &storeService{
		log:     log.With("service", "StoreService"),
		places:  placesClient,
		catalog: catalog,
		radius:  radiusMeters,
	}
}

func (ss *storeService) Search(ctx context.Context, req StoreSearchRequest) (*StoreSearchResult, error) {
	keyword := strings.TrimSpace(req.Keyword)
	if strings.TrimSpace(req.Address) == "" || keyword == "" {
		return nil, apierr.BadRequest("invalid_request", "address and keyword are required")
	}
	return ss.search(ctx, req.Address, []string{keyword})
}

func (ss *storeService) ForReward(ctx context.Context, rewardID, address string) (*StoreSearchResult, error) {
	reward, ok := ss.catalog.Reward(rewardID)
	if !ok {
		return nil, apierr.NotFound("reward_not_found", "reward %q not found", rewardID)
	}
	if strings.TrimSpace(address) == "" {
		return nil, apierr.BadRequest("invalid_request", "address is required")
	}
	keywords := reward.StoreKeywords
	if len(keywords) == 0 {
		keywords = []string{reward.Partner}
	}
	return ss.search(ctx, address, keywords)
}

func (ss *storeService) search(ctx context.Context, address string, keywords []string) (*StoreSearchResult, error) {
	if ss.places == nil {
		return nil, apierr.NotConfigured(fmt.Errorf("stores: %w: MAPS_API_KEY", apperr.ErrNotConfigured))
	}

	loc, err := ss.places.Geocode(ctx, address)
	if err != nil {
		return nil, ss.mapError("geocode", err)
	}

	var (
		mu   sync.Mutex
		seen = map[string]Store{}
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, kw := range keywords {
		kw := strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		g.Go(func() error {
			found, err := ss.places.Nearby(gctx, loc.Point, kw, ss.radius)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			for _, p := range found {
				if _, dup := seen[p.PlaceID]; dup || p.PlaceID == "" {
					continue
				}
				seen[p.PlaceID] = Store{
					PlaceID:     p.PlaceID,
					Name:        p.Name,
					Address:     p.Address,
					Location:    p.Point,
					DistanceKm:  geo.Distance(loc.Point, p.Point),
					Rating:      p.Rating,
					RatingCount: p.RatingCount,
					OpenNow:     p.OpenNow,
					Keyword:     kw,
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, ss.mapError("nearby", err)
	}

	stores := make([]Store, 0, len(seen))
	for _, s := range seen {
		stores = append(stores, s)
	}
	SortStores(stores)
	ss.log.Debug("Store search", "keywords", len(keywords), "results", len(stores))
	return &StoreSearchResult{Origin: loc.Point, Address: loc.FormattedAddress, Stores: stores}, nil
}

// SortStores orders by distance ascending, then by name, then by place id.
func SortStores(stores []Store) {
	sort.SliceStable(stores, func(i, j int) bool {
		if stores[i].DistanceKm != stores[j].DistanceKm {
			return stores[i].DistanceKm < stores[j].DistanceKm
		}
		if stores[i].Name != stores[j].Name {
			return stores[i].Name < stores[j].Name
		}
		return stores[i].PlaceID < stores[j].PlaceID
	})
}

func (ss *storeService) mapError(op string, err error) error {
	if errors.Is(err, places.ErrAddressNotFound) {
		return apierr.NotFound("address_not_found", "we could not find that address")
	}
	ss.log.Error("Places lookup failed", "op", op, "error", err)
	return apierr.Upstream(fmt.Errorf("store search is unavailable right now"))
}
