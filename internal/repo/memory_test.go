package repo

import (
	"context"
	"errors"
	"testing"

	"GoldPledge/internal/model"
)

func TestMemoryRepository_UpsertGoldRate(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	s, _ := r.CreateInterestScheme(ctx, 1.5, "1.5% Interest")

	first, err := r.UpsertGoldRate(ctx, model.Purity22K, s.ID, 5800)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := r.UpsertGoldRate(ctx, model.Purity22K, s.ID, 5900)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("expected upsert to keep id %d, got %d", first.ID, second.ID)
	}

	got, err := r.GetGoldRate(ctx, model.Purity22K, s.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.RatePerGram != 5900 {
		t.Errorf("expected 5900, got %v", got.RatePerGram)
	}
	rates, _ := r.ListGoldRates(ctx)
	if len(rates) != 1 {
		t.Errorf("expected 1 rate, got %d", len(rates))
	}
}

func TestMemoryRepository_UpsertUnknownScheme(t *testing.T) {
	r := NewMemoryRepository()
	_, err := r.UpsertGoldRate(context.Background(), model.Purity24K, 99, 6000)
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryRepository_DeleteSchemeCascades(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	keep, _ := r.CreateInterestScheme(ctx, 0.5, "0.5% Interest")
	drop, _ := r.CreateInterestScheme(ctx, 2, "2% Interest")
	r.UpsertGoldRate(ctx, model.Purity24K, keep.ID, 6250)
	r.UpsertGoldRate(ctx, model.Purity24K, drop.ID, 6100)
	r.UpsertGoldRate(ctx, model.Purity18K, drop.ID, 4700)

	if err := r.DeleteInterestScheme(ctx, drop.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rates, _ := r.ListGoldRates(ctx)
	if len(rates) != 1 || rates[0].InterestSchemeID != keep.ID {
		t.Errorf("expected only the kept scheme's rate, got %+v", rates)
	}
	if _, err := r.GetInterestScheme(ctx, drop.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryRepository_Users(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()

	u, err := r.CreateUser(ctx, "asha", "hash", model.RoleUser)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := r.CreateUser(ctx, "asha", "other", model.RoleAdmin); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}

	u.Role = model.RoleAdmin
	if _, err := r.UpdateUser(ctx, u); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := r.GetUserByUsername(ctx, "asha")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Role != model.RoleAdmin {
		t.Errorf("expected admin, got %s", got.Role)
	}

	if err := r.DeleteUser(ctx, u.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.DeleteUser(ctx, u.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestSeedDefaults(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	if err := SeedDefaults(ctx, r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := SeedDefaults(ctx, r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	schemes, _ := r.ListInterestSchemes(ctx)
	if len(schemes) != len(defaultSchemeRates) {
		t.Fatalf("expected %d schemes, got %d", len(defaultSchemeRates), len(schemes))
	}
	if schemes[0].Rate != 0.5 || schemes[0].Label != "0.5% Interest" {
		t.Errorf("unexpected first scheme %+v", schemes[0])
	}
}
