package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/identity"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/store"
)

const (
	usersCollection       = "usuarios"
	specialtiesCollection = "especialidades"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrEmailTaken    = errors.New("email already registered")
	ErrInvalidImages = errors.New("image slot must be 1 or 2")
)

type Repository interface {
	Insert(ctx context.Context, p Profile) (*Profile, error)
	Get(ctx context.Context, id string) (*Profile, error)
	ListByRole(ctx context.Context, role identity.Role) ([]Profile, error)
	SetApproval(ctx context.Context, id string, approved bool) error
	SetImage(ctx context.Context, id string, n int, url string) error

	ListSpecialties(ctx context.Context) ([]Specialty, error)
	EnsureSpecialty(ctx context.Context, name string) error
}

type StoreRepository struct {
	store store.Store
	now   func() time.Time
}

func NewStoreRepository(s store.Store) *StoreRepository {
	return &StoreRepository{store: s, now: time.Now}
}

func scanProfile(row store.Row) (*Profile, error) {
	p := Profile{
		ID:              store.String(row["id"]),
		Role:            identity.Role(store.String(row["tipo"])),
		Name:            store.String(row["nombre"]),
		LastName:        store.String(row["apellido"]),
		Age:             store.Int(row["edad"]),
		DNI:             store.String(row["dni"]),
		Email:           store.String(row["email"]),
		HealthInsurance: store.String(row["obra_social"]),
		ImageURL1:       store.String(row["img_url_1"]),
		ImageURL2:       store.String(row["img_url_2"]),
		Approved:        store.Bool(row["aprobado"]),
		CreatedAt:       store.Time(row["created_at"]),
	}
	if err := store.DecodeJSON(row["especialidades"], &p.Specialties); err != nil {
		return nil, fmt.Errorf("decode especialidades of %s: %w", p.ID, err)
	}
	return &p, nil
}

func (r *StoreRepository) Insert(ctx context.Context, p Profile) (*Profile, error) {
	specialties := p.Specialties
	if specialties == nil {
		specialties = []string{}
	}
	doc, err := store.JSON(specialties)
	if err != nil {
		return nil, fmt.Errorf("encode especialidades: %w", err)
	}

	row, err := r.store.Insert(ctx, usersCollection, store.Row{
		"id":             p.ID,
		"tipo":           string(p.Role),
		"nombre":         p.Name,
		"apellido":       p.LastName,
		"edad":           p.Age,
		"dni":            p.DNI,
		"email":          p.Email,
		"obra_social":    p.HealthInsurance,
		"especialidades": doc,
		"img_url_1":      p.ImageURL1,
		"img_url_2":      p.ImageURL2,
		"aprobado":       p.Approved,
		"created_at":     r.now(),
	})
	if errors.Is(err, store.ErrConflict) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("insert profile: %w", err)
	}
	return scanProfile(row)
}

func (r *StoreRepository) Get(ctx context.Context, id string) (*Profile, error) {
	row, err := store.SelectOne(ctx, r.store, store.Query{
		Collection: usersCollection,
		Filters:    []store.Filter{store.Eq("id", id)},
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return scanProfile(row)
}

// ListByRole returns every profile of role, or every profile when role is empty.
func (r *StoreRepository) ListByRole(ctx context.Context, role identity.Role) ([]Profile, error) {
	q := store.Query{Collection: usersCollection, Order: store.OrderBy("apellido", false)}
	if role != "" {
		q.Filters = []store.Filter{store.Eq("tipo", string(role))}
	}
	rows, err := r.store.Select(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}

	out := make([]Profile, 0, len(rows))
	for _, row := range rows {
		p, err := scanProfile(row)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, nil
}

func (r *StoreRepository) SetApproval(ctx context.Context, id string, approved bool) error {
	n, err := r.store.Update(ctx, usersCollection, store.Row{"aprobado": approved}, store.Eq("id", id))
	if err != nil {
		return fmt.Errorf("set approval: %w", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *StoreRepository) SetImage(ctx context.Context, id string, n int, url string) error {
	var column string
	switch n {
	case 1:
		column = "img_url_1"
	case 2:
		column = "img_url_2"
	default:
		return ErrInvalidImages
	}
	updated, err := r.store.Update(ctx, usersCollection, store.Row{column: url}, store.Eq("id", id))
	if err != nil {
		return fmt.Errorf("set image: %w", err)
	}
	if updated == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *StoreRepository) ListSpecialties(ctx context.Context) ([]Specialty, error) {
	rows, err := r.store.Select(ctx, store.Query{
		Collection: specialtiesCollection,
		Order:      store.OrderBy("nombre", false),
	})
	if err != nil {
		return nil, fmt.Errorf("list specialties: %w", err)
	}
	out := make([]Specialty, 0, len(rows))
	for _, row := range rows {
		out = append(out, Specialty{
			ID:    store.String(row["id"]),
			Name:  store.String(row["nombre"]),
			Image: store.String(row["imagen"]),
		})
	}
	return out, nil
}

// EnsureSpecialty adds name to the catalogue unless it is already there.
func (r *StoreRepository) EnsureSpecialty(ctx context.Context, name string) error {
	_, err := r.store.Insert(ctx, specialtiesCollection, store.Row{"nombre": name})
	if err != nil && !errors.Is(err, store.ErrConflict) {
		return fmt.Errorf("add specialty %q: %w", name, err)
	}
	return nil
}

// Account answers the sign-in checks of the auth package.
func (r *StoreRepository) Account(ctx context.Context, id string) (identity.Role, bool, error) {
	p, err := r.Get(ctx, id)
	if err != nil {
		return "", false, err
	}
	return p.Role, p.Approved, nil
}

// InstallMemoryIndexes mirrors the unique columns of usuarios and especialidades on an
// in-memory store.
func InstallMemoryIndexes(m *store.Memory) {
	m.AddUniqueIndex(usersCollection, nil, "email")
	m.AddUniqueIndex(specialtiesCollection, nil, "nombre")
}
