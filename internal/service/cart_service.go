package service

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/fjod/go_cart/internal/cache"
	"github.com/fjod/go_cart/internal/catalog"
	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/internal/repository"
	"github.com/fjod/go_cart/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	invalidateTimeout = time.Second
	cacheSetTimeout   = 2 * time.Second
	productLookups    = 8
)

type CartService struct {
	repo    repository.CartRepository
	cache   cache.CartCache
	catalog catalog.Catalog
	log     *zap.Logger

	sfg     singleflight.Group // Prevents cache stampede
	pending sync.WaitGroup     // async cache writes
}

func NewCartService(repo repository.CartRepository, c cache.CartCache, cat catalog.Catalog, log *zap.Logger) *CartService {
	if c == nil {
		c = cache.NopCache{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CartService{
		repo:    repo,
		cache:   c,
		catalog: cat,
		log:     log,
	}
}

// logger tags service logs with the request id and trace of ctx.
func (s *CartService) logger(ctx context.Context) *zap.Logger {
	l := s.log
	if id := logger.RequestID(ctx); id != "" {
		l = l.With(zap.String("request_id", id))
	}
	return logger.WithTraceContext(ctx, l)
}

// List returns the user's line items in insertion order.
func (s *CartService) List(ctx context.Context, userID string) ([]domain.LineItem, error) {
	if err := domain.ValidateUserID(userID); err != nil {
		return nil, err
	}

	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(userID, func() (any, error) {
		items, err := s.cache.Get(ctx, userID)
		if err == nil {
			return items, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger(ctx).Warn("cache get failed", zap.String("user_id", userID), zap.Error(err))
		}

		version, verErr := s.cache.Version(ctx, userID)
		items, err = s.repo.ListItems(ctx, userID)
		if err != nil {
			return nil, err
		}
		if verErr != nil {
			s.logger(ctx).Warn("cache version read failed", zap.String("user_id", userID), zap.Error(verErr))
		} else {
			s.populate(userID, version, items)
		}
		return items, nil
	})
	if err != nil {
		s.logger(ctx).Error("list cart failed", zap.String("user_id", userID), zap.Error(err))
		return nil, classify(err)
	}

	// results are shared between singleflight callers
	return slices.Clone(v.([]domain.LineItem)), nil
}

func (s *CartService) populate(userID string, version int64, items []domain.LineItem) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), cacheSetTimeout)
		defer cancel()

		err := s.cache.Set(ctx, userID, version, items)
		switch {
		case errors.Is(err, cache.ErrStale):
			s.log.Debug("skipped stale cache write", zap.String("user_id", userID))
		case err != nil:
			s.log.Warn("cache set failed", zap.String("user_id", userID), zap.Error(err))
		}
	}()
}

// View joins the user's line items with the current product data and
// computes the totals. Items whose product left the catalog are omitted.
func (s *CartService) View(ctx context.Context, userID string) (*domain.CartView, error) {
	items, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	products := make([]*domain.Product, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(productLookups)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			p, err := s.catalog.GetProduct(gctx, item.ProductID)
			if errors.Is(err, domain.ErrNotFound) {
				s.logger(ctx).Debug("cart item references a missing product",
					zap.String("line_item_id", item.ID), zap.Int64("product_id", item.ProductID))
				return nil
			}
			if err != nil {
				return err
			}
			products[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger(ctx).Error("product lookup failed", zap.String("user_id", userID), zap.Error(err))
		return nil, classify(err)
	}

	lines := make([]domain.CartLine, 0, len(items))
	for i, item := range items {
		if products[i] == nil {
			continue
		}
		lines = append(lines, domain.CartLine{LineItem: item, Product: *products[i]})
	}
	return domain.NewCartView(userID, lines), nil
}

func (s *CartService) Totals(ctx context.Context, userID string) (domain.Totals, error) {
	view, err := s.View(ctx, userID)
	if err != nil {
		return domain.Totals{}, err
	}
	return view.Totals, nil
}

// Item returns a single line item by id.
func (s *CartService) Item(ctx context.Context, id string) (*domain.LineItem, error) {
	if err := domain.ValidateLineItemID(id); err != nil {
		return nil, err
	}
	item, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return nil, classify(err)
	}
	return item, nil
}

// Add puts quantity units of the product into the user's cart, merging with
// an existing line item for the same product.
func (s *CartService) Add(ctx context.Context, userID string, productID int64, quantity int) (*domain.LineItem, error) {
	if err := errors.Join(
		domain.ValidateUserID(userID),
		domain.ValidateProductID(productID),
		domain.ValidateQuantity(quantity),
	); err != nil {
		return nil, err
	}

	if _, err := s.catalog.GetProduct(ctx, productID); err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger(ctx).Error("catalog lookup failed", zap.Int64("product_id", productID), zap.Error(err))
		}
		return nil, classify(err)
	}

	item, err := s.repo.AddItem(ctx, userID, productID, quantity)
	if err != nil {
		s.logger(ctx).Error("repo add item failed", zap.String("user_id", userID), zap.Error(err))
		return nil, classify(err)
	}

	s.invalidate(ctx, userID)
	return item, nil
}

func (s *CartService) UpdateQuantity(ctx context.Context, id string, quantity int) (*domain.LineItem, error) {
	if err := errors.Join(domain.ValidateLineItemID(id), domain.ValidateQuantity(quantity)); err != nil {
		return nil, err
	}

	item, err := s.repo.UpdateItemQuantity(ctx, id, quantity)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger(ctx).Error("repo update item quantity failed", zap.String("line_item_id", id), zap.Error(err))
		}
		return nil, classify(err)
	}

	s.invalidate(ctx, item.UserID)
	return item, nil
}

func (s *CartService) Remove(ctx context.Context, id string) error {
	if err := domain.ValidateLineItemID(id); err != nil {
		return err
	}

	removed, err := s.repo.RemoveItem(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger(ctx).Error("repo remove item failed", zap.String("line_item_id", id), zap.Error(err))
		}
		return classify(err)
	}

	s.invalidate(ctx, removed.UserID)
	return nil
}

// Clear empties the user's cart. Clearing an empty cart succeeds.
func (s *CartService) Clear(ctx context.Context, userID string) error {
	if err := domain.ValidateUserID(userID); err != nil {
		return err
	}

	if err := s.repo.DeleteCart(ctx, userID); err != nil {
		s.logger(ctx).Error("repo delete cart failed", zap.String("user_id", userID), zap.Error(err))
		return classify(err)
	}

	s.invalidate(ctx, userID)
	return nil
}

func (s *CartService) invalidate(ctx context.Context, userID string) {
	// a read already in flight may have loaded the pre-mutation items
	s.sfg.Forget(userID)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), invalidateTimeout)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		s.logger(ctx).Error("cache invalidate failed", zap.String("user_id", userID), zap.Error(err))
	}
}

// Ping reports whether the line item store is reachable.
func (s *CartService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// Close waits for background cache writes to finish.
func (s *CartService) Close() {
	s.pending.Wait()
}
