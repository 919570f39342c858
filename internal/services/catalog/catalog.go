// Package catalog список тарифов витрины, построенный из продуктов backend.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/magabrotheeeer/hr-storefront/internal/backend"
	"github.com/magabrotheeeer/hr-storefront/internal/lib/sl"
	"github.com/magabrotheeeer/hr-storefront/internal/models"
	"github.com/magabrotheeeer/hr-storefront/internal/pricing"
)

const cacheKey = "catalog:plans"

// feeLocale группирует суммы по-индийски: 25,00,000.
var feeLocale = language.MustParse("en-IN")

// ErrPlanNotFound тариф с таким идентификатором отсутствует в каталоге.
var ErrPlanNotFound = errors.New("plan not found")

type Backend interface {
	ListProducts(ctx context.Context) ([]backend.Product, error)
}

type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

type Service struct {
	backend Backend
	cache   Cache
	ttl     time.Duration
	log     *slog.Logger
}

func New(b Backend, cache Cache, ttl time.Duration, log *slog.Logger) *Service {
	return &Service{
		backend: b,
		cache:   cache,
		ttl:     ttl,
		log:     log,
	}
}

// ListPlans возвращает тарифы по возрастанию цены. Ошибка кэша не мешает ответу.
func (s *Service) ListPlans(ctx context.Context) ([]models.Plan, error) {
	const op = "catalog.ListPlans"
	log := s.log.With(sl.Op(op))

	var plans []models.Plan
	found, err := s.cache.Get(ctx, cacheKey, &plans)
	if err != nil {
		log.Warn("failed to read plans from cache", sl.Err(err))
	}
	if found {
		return plans, nil
	}

	products, err := s.backend.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	plans = make([]models.Plan, 0, len(products))
	for _, p := range products {
		plans = append(plans, toPlan(p))
	}
	sort.SliceStable(plans, func(i, j int) bool {
		return plans[i].ListPrice < plans[j].ListPrice
	})

	if err := s.cache.Set(ctx, cacheKey, plans, s.ttl); err != nil {
		log.Warn("failed to cache plans", sl.Err(err))
	}
	log.Debug("plans loaded from backend", slog.Int("count", len(plans)))
	return plans, nil
}

// Plan возвращает тариф по идентификатору. Если тарифа нет в закэшированном
// каталоге, кэш сбрасывается и каталог перечитывается из backend один раз.
func (s *Service) Plan(ctx context.Context, id string) (*models.Plan, error) {
	const op = "catalog.Plan"
	plans, err := s.ListPlans(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if p := findPlan(plans, id); p != nil {
		return p, nil
	}

	if err := s.Invalidate(ctx); err != nil {
		s.log.Warn("failed to invalidate plans cache", sl.Op(op), sl.Err(err))
	}
	plans, err = s.ListPlans(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if p := findPlan(plans, id); p != nil {
		return p, nil
	}
	return nil, fmt.Errorf("%s: %w", op, ErrPlanNotFound)
}

func findPlan(plans []models.Plan, id string) *models.Plan {
	for i := range plans {
		if plans[i].ID == id {
			return &plans[i]
		}
	}
	return nil
}

// Invalidate сбрасывает кэш каталога.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Invalidate(ctx, cacheKey)
}

func toPlan(p backend.Product) models.Plan {
	price := "₹" + strconv.FormatFloat(p.ListPrice, 'f', -1, 64)
	return models.Plan{
		ID:        strconv.FormatInt(p.ID, 10),
		Name:      p.Name,
		IdealFor:  p.IdealFor,
		ListPrice: p.ListPrice,
		Price:     price,
		Fee:       formatFee(p.Fees),
		Highlight: p.IsHighlight,
		Modules:   pricing.ParseModules(p.Description),
		UnitRate:  pricing.UnitRateFromPrice(price),
	}
}

// formatFee форматирует разовый платёж в рупиях с группировкой разрядов.
func formatFee(v float64) string {
	return "₹" + message.NewPrinter(feeLocale).Sprint(number.Decimal(v, number.MaxFractionDigits(2)))
}
