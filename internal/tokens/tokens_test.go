package tokens

import (
	"strconv"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/hsaleh/blog_platform/internal/models"
)

func newTestService(t *testing.T) *TokenService {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Post{}, &models.BlacklistedToken{}); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}

	return &TokenService{
		DB:            db,
		JWTSecret:     []byte("test-jwt-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
	}
}

func createUser(t *testing.T, db *gorm.DB) *models.User {
	user := models.User{
		Username:     "test_user",
		Email:        "test@example.com",
		PasswordHash: "irrelevant",
		IsActive:     true,
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func TestIssueAndRefreshRoundTrip(t *testing.T) {
	svc := newTestService(t)
	user := createUser(t, svc.DB)

	pair, err := svc.Issue(user)
	require.NoError(t, err)
	require.NotEmpty(t, pair.Access)
	require.NotEmpty(t, pair.Refresh)

	claims, err := svc.ParseRefresh(pair.Refresh)
	require.NoError(t, err)
	require.Equal(t, strconv.FormatUint(uint64(user.ID), 10), claims.Subject)
	require.Equal(t, "refresh", claims.Typ)

	newPair, err := svc.Refresh(pair.Refresh)
	require.NoError(t, err)
	require.NotEqual(t, pair.Access, newPair.Access)
	require.NotEqual(t, pair.Refresh, newPair.Refresh)

	newClaims, err := svc.ParseAccess(newPair.Access)
	require.NoError(t, err)
	require.Equal(t, strconv.FormatUint(uint64(user.ID), 10), newClaims.Subject)
}

func TestRefreshDoesNotRevokeOldToken(t *testing.T) {
	svc := newTestService(t)
	user := createUser(t, svc.DB)

	pair, err := svc.Issue(user)
	require.NoError(t, err)

	_, err = svc.Refresh(pair.Refresh)
	require.NoError(t, err)

	// Only logout blacklists; the old refresh token stays usable.
	_, err = svc.Refresh(pair.Refresh)
	require.NoError(t, err)
}

func TestBlacklistIsTerminal(t *testing.T) {
	svc := newTestService(t)
	user := createUser(t, svc.DB)

	pair, err := svc.Issue(user)
	require.NoError(t, err)

	require.NoError(t, svc.Blacklist(pair.Refresh))

	_, err = svc.Refresh(pair.Refresh)
	require.ErrorIs(t, err, ErrBlacklisted)

	err = svc.Blacklist(pair.Refresh)
	require.ErrorIs(t, err, ErrBlacklisted)
}

func TestRefreshRejectsMalformedTokens(t *testing.T) {
	svc := newTestService(t)
	user := createUser(t, svc.DB)

	_, err := svc.Refresh("not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)

	require.ErrorIs(t, svc.Blacklist("not-a-token"), ErrInvalidToken)

	// An access token is signed with the other secret and has no typ
	// claim; it must never pass as a refresh token.
	pair, err := svc.Issue(user)
	require.NoError(t, err)
	_, err = svc.Refresh(pair.Access)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshUnknownUser(t *testing.T) {
	svc := newTestService(t)
	user := createUser(t, svc.DB)

	pair, err := svc.Issue(user)
	require.NoError(t, err)

	require.NoError(t, svc.DB.Delete(&models.User{}, user.ID).Error)

	_, err = svc.Refresh(pair.Refresh)
	require.ErrorIs(t, err, ErrUnknownUser)
}
