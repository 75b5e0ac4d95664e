package availability

import (
	"context"
	"errors"
	"fmt"

	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/store"
)

const collection = "disponibilidad"

// Repository reads and writes the per-specialist availability document.
type Repository interface {
	Get(ctx context.Context, specialistID string) ([]SpecialtyAvailability, error)
	Save(ctx context.Context, specialistID string, list []SpecialtyAvailability) error
}

type StoreRepository struct {
	store store.Store
}

func NewStoreRepository(s store.Store) *StoreRepository {
	return &StoreRepository{store: s}
}

// Get returns an empty list when the specialist never saved a document.
func (r *StoreRepository) Get(ctx context.Context, specialistID string) ([]SpecialtyAvailability, error) {
	row, err := store.SelectOne(ctx, r.store, store.Query{
		Collection: collection,
		Fields:     []string{"especialidades"},
		Filters:    []store.Filter{store.Eq("id", specialistID)},
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load availability: %w", err)
	}

	var list []SpecialtyAvailability
	if err := store.DecodeJSON(row["especialidades"], &list); err != nil {
		return nil, fmt.Errorf("decode availability: %w", err)
	}
	return list, nil
}

func (r *StoreRepository) Save(ctx context.Context, specialistID string, list []SpecialtyAvailability) error {
	if list == nil {
		list = []SpecialtyAvailability{}
	}
	doc, err := store.JSON(list)
	if err != nil {
		return fmt.Errorf("encode availability: %w", err)
	}
	_, err = r.store.Upsert(ctx, collection, store.Row{"id": specialistID, "especialidades": doc}, "id")
	if err != nil {
		return fmt.Errorf("save availability: %w", err)
	}
	return nil
}
