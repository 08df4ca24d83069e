package tariff

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/abdulaziz119/UzSMSPanel-sub000/internal/database"
	"github.com/abdulaziz119/UzSMSPanel-sub000/pkg/apperrors"
)

type fakeQuerier struct {
	database.Querier

	tariffs map[string]database.Tariff
	lookups []string
}

func (f *fakeQuerier) ListTariffs(_ context.Context) ([]database.Tariff, error) {
	out := make([]database.Tariff, 0, len(f.tariffs))
	for _, t := range f.tariffs {
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeQuerier) GetTariffByPrefix(_ context.Context, prefix string) (database.Tariff, error) {
	f.lookups = append(f.lookups, prefix)
	t, ok := f.tariffs[prefix]
	if !ok {
		return database.Tariff{}, pgx.ErrNoRows
	}
	return t, nil
}

func tariffFor(prefix, operator string, price string) database.Tariff {
	return database.Tariff{
		Prefix:    prefix,
		Operator:  operator,
		UnitPrice: decimal.RequireFromString(price),
	}
}

func TestResolveLongestPrefixWins(t *testing.T) {
	t.Parallel()

	q := &fakeQuerier{tariffs: map[string]database.Tariff{
		"901": tariffFor("901", "mobiuz", "115"),
		"90":  tariffFor("90", "beeline", "120"),
	}}
	r := NewResolver(q, "UZ", time.Minute)

	res, err := r.Resolve(context.Background(), "+998901234567")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if res.Tariff.Prefix != "901" {
		t.Errorf("matched prefix = %q, want 3-digit 901 over 2-digit 90", res.Tariff.Prefix)
	}
	if res.Tariff.Operator != "mobiuz" {
		t.Errorf("operator = %q, want mobiuz", res.Tariff.Operator)
	}
	if res.E164 != "+998901234567" {
		t.Errorf("E164 = %q, want +998901234567", res.E164)
	}
	if res.National != "901234567" {
		t.Errorf("National = %q, want 901234567", res.National)
	}
}

func TestResolveFallsBackToTwoDigitPrefix(t *testing.T) {
	t.Parallel()

	q := &fakeQuerier{tariffs: map[string]database.Tariff{
		"90": tariffFor("90", "beeline", "120"),
	}}
	r := NewResolver(q, "UZ", time.Minute)

	res, err := r.Resolve(context.Background(), "+998901234567")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if res.Tariff.Prefix != "90" {
		t.Errorf("matched prefix = %q, want fallback 90", res.Tariff.Prefix)
	}
	// Miss on 901 first, hit on 90.
	if len(q.lookups) != 2 || q.lookups[0] != "901" || q.lookups[1] != "90" {
		t.Errorf("lookup order = %v, want [901 90]", q.lookups)
	}
}

func TestResolveNationalFormatDefaultRegion(t *testing.T) {
	t.Parallel()

	q := &fakeQuerier{tariffs: map[string]database.Tariff{
		"90": tariffFor("90", "beeline", "120"),
	}}
	r := NewResolver(q, "UZ", time.Minute)

	res, err := r.Resolve(context.Background(), "90 123 45 67")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if res.E164 != "+998901234567" {
		t.Errorf("E164 = %q, want number normalized with UZ country code", res.E164)
	}
}

func TestResolveInvalidFormat(t *testing.T) {
	t.Parallel()

	q := &fakeQuerier{tariffs: map[string]database.Tariff{}}
	r := NewResolver(q, "UZ", time.Minute)

	tests := []string{
		"not-a-number",
		"",
		"+99890",              // too short to be valid
		"+998901234567890123", // too long
	}

	for _, raw := range tests {
		_, err := r.Resolve(context.Background(), raw)
		if apperrors.CodeOf(err) != apperrors.CodeInvalidFormat {
			t.Errorf("Resolve(%q) error = %v, want INVALID_FORMAT", raw, err)
		}
	}
	if len(q.lookups) != 0 {
		t.Errorf("invalid numbers reached tariff lookup: %v", q.lookups)
	}
}

func TestResolveNoTariffIsBanned(t *testing.T) {
	t.Parallel()

	q := &fakeQuerier{tariffs: map[string]database.Tariff{
		"33": tariffFor("33", "humans", "100"),
	}}
	r := NewResolver(q, "UZ", time.Minute)

	_, err := r.Resolve(context.Background(), "+998901234567")
	if apperrors.CodeOf(err) != apperrors.CodeBannedNumber {
		t.Fatalf("Resolve() error = %v, want BANNED_NUMBER", err)
	}
	if !apperrors.IsKind(err, apperrors.KindNotFound) {
		t.Fatalf("Resolve() error kind = %v, want not-found", err)
	}
}

func TestResolveUsesCacheAfterWarm(t *testing.T) {
	t.Parallel()

	q := &fakeQuerier{tariffs: map[string]database.Tariff{
		"901": tariffFor("901", "mobiuz", "115"),
	}}
	r := NewResolver(q, "UZ", time.Minute)

	if err := r.refresh(context.Background()); err != nil {
		t.Fatalf("refresh() error: %v", err)
	}

	if _, err := r.Resolve(context.Background(), "+998901234567"); err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if len(q.lookups) != 0 {
		t.Errorf("warm cache still hit the store: %v", q.lookups)
	}
}

func TestRefreshDropsRemovedPrefixes(t *testing.T) {
	t.Parallel()

	q := &fakeQuerier{tariffs: map[string]database.Tariff{
		"901": tariffFor("901", "mobiuz", "115"),
		"90":  tariffFor("90", "beeline", "120"),
	}}
	r := NewResolver(q, "UZ", time.Minute)
	ctx := context.Background()

	if err := r.refresh(ctx); err != nil {
		t.Fatalf("refresh() error: %v", err)
	}

	delete(q.tariffs, "901")
	if err := r.refresh(ctx); err != nil {
		t.Fatalf("second refresh() error: %v", err)
	}

	res, err := r.Resolve(ctx, "+998901234567")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if res.Tariff.Prefix != "90" {
		t.Errorf("matched prefix = %q after removal, want 90", res.Tariff.Prefix)
	}
}
