package offer

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-lapak/internal/obs"
)

// Querier captures the store methods required by the offer service.
type Querier interface {
	ListOffersByPlacement(ctx context.Context, placement Placement) ([]CartOffer, error)
}

// ProductSource resolves catalog data for offer products and viewed pages.
type ProductSource interface {
	Views(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]ProductView, error)
}

// ListCache caches the active offer list per placement.
type ListCache interface {
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	SetJSON(ctx context.Context, key string, v any) error
	Invalidate(ctx context.Context, keys ...string) error
}

// Service loads candidate offers and matches them against cart snapshots.
type Service struct {
	Q        Querier
	Products ProductSource
	Cache    ListCache
	Now      func() time.Time
}

func placementKey(placement Placement) string {
	return "offers:placement:" + string(placement)
}

func (s *Service) loadOffers(ctx context.Context, placement Placement) ([]CartOffer, error) {
	key := placementKey(placement)
	if s.Cache != nil {
		var cached []CartOffer
		if ok, err := s.Cache.GetJSON(ctx, key, &cached); err == nil && ok {
			return cached, nil
		}
	}
	offers, err := s.Q.ListOffersByPlacement(ctx, placement)
	if err != nil {
		return nil, err
	}
	if s.Cache != nil {
		_ = s.Cache.SetJSON(ctx, key, offers)
	}
	return offers, nil
}

// InvalidatePlacement drops the cached offer list for a placement after admin writes.
func (s *Service) InvalidatePlacement(ctx context.Context, placement Placement) {
	if s == nil || s.Cache == nil {
		return
	}
	_ = s.Cache.Invalidate(ctx, placementKey(placement))
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Resolve returns the single best-fit offer payload for the placement, or nil
// when nothing matches. It never mutates cart state.
func (s *Service) Resolve(ctx context.Context, cart CartContext, placement Placement, view View) (*Payload, error) {
	if s == nil || s.Q == nil || s.Products == nil {
		return nil, errors.New("offer service not configured")
	}
	offers, err := s.loadOffers(ctx, placement)
	if err != nil {
		return nil, err
	}
	now := s.now()
	candidates := make([]CartOffer, 0, len(offers))
	ids := make([]uuid.UUID, 0)
	for _, o := range offers {
		if !ActiveWithin(o, now) {
			continue
		}
		candidates = append(candidates, o)
		for _, p := range o.Products {
			ids = append(ids, p.ProductID)
		}
	}
	if len(candidates) == 0 {
		recordMatch(placement, nil)
		return nil, nil
	}
	SortCandidates(candidates)

	views, err := s.Products.Views(ctx, ids)
	if err != nil {
		return nil, err
	}
	resolver := func(p OfferProduct) (ProductView, bool) {
		v, ok := views[p.ProductID]
		return v, ok
	}
	payload := ResolveBestOffer(cart, candidates, view, resolver)
	recordMatch(placement, payload)
	return payload, nil
}

func recordMatch(placement Placement, payload *Payload) {
	if obs.OfferMatchTotal == nil {
		return
	}
	result := "match"
	if payload == nil {
		result = "none"
	}
	obs.OfferMatchTotal.WithLabelValues(string(placement), result).Inc()
}
