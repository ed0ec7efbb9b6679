package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/models"
)

func testUsers(t *testing.T) *MongoUserCollection {
	return &MongoUserCollection{Collection: testDatabase(t).Collection(UsersCollectionName)}
}

func foremanUser() models.User {
	return models.User{
		Username:     "foreman",
		Email:        "foreman@bengkel.test",
		PasswordHash: "hashedpassword",
		Role:         models.RoleForeman,
		DisplayName:  "Pak Joko",
		IsActive:     true,
	}
}

func TestMongoUserCollection_InsertAndFind(t *testing.T) {
	users := testUsers(t)
	ctx := context.Background()

	id, err := users.InsertUser(ctx, foremanUser())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	byID, err := users.FindUserByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "foreman", byID.Username)
	assert.Equal(t, models.RoleForeman, byID.Role)
	assert.True(t, byID.IsActive)
	assert.NotZero(t, byID.CreatedAt)

	byName, err := users.FindUserByUsername(ctx, "foreman")
	require.NoError(t, err)
	assert.Equal(t, byID.ID, byName.ID)

	byEmail, err := users.FindUserByEmail(ctx, "foreman@bengkel.test")
	require.NoError(t, err)
	assert.Equal(t, byID.ID, byEmail.ID)

	_, err = users.FindUserByUsername(ctx, "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = users.FindUserByID(ctx, "invalid-id")
	assert.ErrorIs(t, err, ErrNotFound)

	all, err := users.FindUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMongoUserCollection_UpdateUser(t *testing.T) {
	users := testUsers(t)
	ctx := context.Background()

	id, err := users.InsertUser(ctx, foremanUser())
	require.NoError(t, err)
	inserted, err := users.FindUserByID(ctx, id)
	require.NoError(t, err)

	updated := *inserted
	updated.DisplayName = "Joko S."
	updated.FinanceAccess = true
	require.NoError(t, users.UpdateUser(ctx, id, updated))

	got, err := users.FindUserByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Joko S.", got.DisplayName)
	assert.True(t, got.FinanceAccess)
	assert.True(t, got.UpdatedAt.After(inserted.UpdatedAt))

	assert.ErrorIs(t, users.UpdateUser(ctx, "64b7f0c2a1b2c3d4e5f60718", updated), ErrNotFound)
}

func TestMongoUserCollection_UpdateLastLogin(t *testing.T) {
	users := testUsers(t)
	ctx := context.Background()

	id, err := users.InsertUser(ctx, foremanUser())
	require.NoError(t, err)
	require.NoError(t, users.UpdateLastLogin(ctx, id))

	got, err := users.FindUserByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got.LastLogin)
	assert.False(t, got.LastLogin.Before(got.CreatedAt))
}
