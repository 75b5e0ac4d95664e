package stats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/identity"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/user"
)

type fakeRepo struct {
	gotStatuses []string
}

func (f *fakeRepo) CountBySpecialty(context.Context) ([]Count, error) { return nil, nil }

func (f *fakeRepo) CountByDay(context.Context, *time.Location, Range) ([]Count, error) {
	return []Count{{Key: "2026-10-19", Total: 2}}, nil
}

func (f *fakeRepo) CountBySpecialist(_ context.Context, _ Range, statuses []string) ([]Count, error) {
	f.gotStatuses = statuses
	return []Count{{Key: "s1", Total: 4}, {Key: "ghost", Total: 1}}, nil
}

func (f *fakeRepo) Logins(context.Context, int) ([]Login, error) { return nil, nil }

type fakeProfiles map[string]user.Profile

func (f fakeProfiles) Get(_ context.Context, id string) (*user.Profile, error) {
	p, ok := f[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	return &p, nil
}

var admin = identity.Session{UserID: "root", Role: identity.RoleAdmin}

func TestStats_AdminOnly(t *testing.T) {
	svc := NewService(&fakeRepo{}, fakeProfiles{}, time.UTC)
	patient := identity.Session{UserID: "p", Role: identity.RolePatient}

	_, err := svc.BySpecialty(context.Background(), patient)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Logins(context.Background(), patient, 10)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestStats_LabelsSpecialists(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo, fakeProfiles{"s1": {Name: "Luis", LastName: "Pérez"}}, time.UTC)

	got, err := svc.CompletedBySpecialist(context.Background(), admin, Range{})
	require.NoError(t, err)
	assert.Equal(t, []string{"realizado"}, repo.gotStatuses)
	assert.Equal(t, "Luis Pérez", got[0].Label)
	assert.Equal(t, "ghost", got[1].Label)

	_, err = svc.RequestedBySpecialist(context.Background(), admin, Range{})
	require.NoError(t, err)
	assert.Nil(t, repo.gotStatuses)
}

func TestStats_EmptyResultsAreNotNil(t *testing.T) {
	svc := NewService(&fakeRepo{}, fakeProfiles{}, time.UTC)

	counts, err := svc.BySpecialty(context.Background(), admin)
	require.NoError(t, err)
	assert.NotNil(t, counts)

	logins, err := svc.Logins(context.Background(), admin, 0)
	require.NoError(t, err)
	assert.NotNil(t, logins)
}
