package tariff

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/nyaruka/phonenumbers"
	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/abdulaziz119/UzSMSPanel-sub000/internal/database"
	"github.com/abdulaziz119/UzSMSPanel-sub000/pkg/apperrors"
)

// Resolution is the outcome of a successful tariff lookup.
type Resolution struct {
	E164     string // canonical international form, e.g. +998901234567
	National string // national significant number, e.g. 901234567
	Tariff   database.Tariff
}

// Resolver maps a raw phone string to a billable tariff. Lookups are pure
// and side-effect free; the prefix cache refreshes in the background.
type Resolver struct {
	q               database.Querier
	region          string
	refreshInterval time.Duration
	cache           cmap.ConcurrentMap[string, database.Tariff]
	warm            chan struct{}
}

func NewResolver(q database.Querier, region string, refreshInterval time.Duration) *Resolver {
	if refreshInterval <= 0 {
		refreshInterval = 5 * time.Minute
	}
	return &Resolver{
		q:               q,
		region:          region,
		refreshInterval: refreshInterval,
		cache:           cmap.New[database.Tariff](),
		warm:            make(chan struct{}),
	}
}

// Start warms the cache and launches the periodic refresh loop.
func (r *Resolver) Start(ctx context.Context) {
	if err := r.refresh(ctx); err != nil {
		slog.ErrorContext(ctx, "Initial tariff cache load failed", slog.Any("error", err))
	}
	close(r.warm)

	go func() {
		ticker := time.NewTicker(r.refreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := r.refresh(ctx); err != nil {
					slog.ErrorContext(ctx, "Tariff cache refresh failed", slog.Any("error", err))
				}
			}
		}
	}()
}

// refresh swaps in the full tariff set without blocking concurrent lookups.
func (r *Resolver) refresh(ctx context.Context) error {
	tariffs, err := r.q.ListTariffs(ctx)
	if err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(tariffs))
	for _, t := range tariffs {
		r.cache.Set(t.Prefix, t)
		seen[t.Prefix] = struct{}{}
	}
	for _, prefix := range r.cache.Keys() {
		if _, ok := seen[prefix]; !ok {
			r.cache.Remove(prefix)
		}
	}
	slog.DebugContext(ctx, "Tariff cache refreshed", slog.Int("count", len(tariffs)))
	return nil
}

// Resolve normalizes rawPhone and finds its tariff. Longest prefix wins:
// the 3-digit code is tried before the 2-digit fallback.
func (r *Resolver) Resolve(ctx context.Context, rawPhone string) (*Resolution, error) {
	parsed, err := phonenumbers.Parse(rawPhone, r.region)
	if err != nil {
		return nil, apperrors.Validationf(apperrors.CodeInvalidFormat, "unparsable phone number %q: %v", rawPhone, err)
	}
	if !phonenumbers.IsValidNumber(parsed) {
		return nil, apperrors.Validationf(apperrors.CodeInvalidFormat, "invalid phone number %q", rawPhone)
	}

	e164 := phonenumbers.Format(parsed, phonenumbers.E164)
	national := phonenumbers.GetNationalSignificantNumber(parsed)

	for _, width := range []int{3, 2} {
		if len(national) < width {
			continue
		}
		tariff, ok, err := r.lookup(ctx, national[:width])
		if err != nil {
			return nil, err
		}
		if ok {
			return &Resolution{E164: e164, National: national, Tariff: tariff}, nil
		}
	}

	return nil, apperrors.NotFoundf(apperrors.CodeBannedNumber, "no tariff for number %s", e164)
}

// lookup checks the cache first, falling back to the store on a miss.
func (r *Resolver) lookup(ctx context.Context, prefix string) (database.Tariff, bool, error) {
	if t, ok := r.cache.Get(prefix); ok {
		return t, true, nil
	}

	t, err := r.q.GetTariffByPrefix(ctx, prefix)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Tariff{}, false, nil
		}
		return database.Tariff{}, false, apperrors.Internalf(err, "tariff lookup for prefix %s", prefix)
	}
	r.cache.Set(t.Prefix, t)
	return t, true, nil
}
