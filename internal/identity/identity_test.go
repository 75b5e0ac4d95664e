package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	r, err := ParseRole("especialista")
	require.NoError(t, err)
	assert.Equal(t, RoleSpecialist, r)

	_, err = ParseRole("root")
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestSessionContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithSession(context.Background(), Session{UserID: "u1", Role: RoleAdmin})
	s, ok := FromContext(ctx)
	require.True(t, ok)
	assert.True(t, s.Is(RoleAdmin))
	assert.Equal(t, "u1", s.UserID)
}
