package database

import (
	"context"
	"testing"

	"github.com/CMZCoder/CommerzioS-sub000/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUser(email string) *models.User {
	return &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: "hash",
		Name:         "Test User",
		Role:         models.RoleCustomer,
	}
}

func TestCreateUser_EmailTaken(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, db.CreateUser(ctx, testUser("anna@example.ch")))

	err := db.CreateUser(ctx, testUser("anna@example.ch"))
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestGetUser(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	u := testUser("beat@example.ch")
	require.NoError(t, db.CreateUser(ctx, u))

	byEmail, err := db.GetUserByEmail(ctx, "beat@example.ch")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	byID, err := db.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "beat@example.ch", byID.Email)

	_, err = db.GetUserByEmail(ctx, "missing@example.ch")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetUserBlocked(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	u := testUser("carla@example.ch")
	require.NoError(t, db.CreateUser(ctx, u))

	require.NoError(t, db.SetUserBlocked(ctx, u.ID, true))

	got, err := db.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.Blocked)

	err = db.SetUserBlocked(ctx, "missing", true)
	assert.ErrorIs(t, err, ErrNotFound)
}
