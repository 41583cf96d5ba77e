package tokens

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hsaleh/blog_platform/internal/models"
)

const (
	AccessTTL  = 15 * time.Minute
	RefreshTTL = 7 * 24 * time.Hour
)

var (
	ErrInvalidToken = errors.New("token is invalid or expired")
	ErrBlacklisted  = errors.New("token is blacklisted")
	ErrUnknownUser  = errors.New("user does not exist")
)

type AccessClaims struct {
	jwt.RegisteredClaims
}

type RefreshClaims struct {
	Typ string `json:"typ"`
	jwt.RegisteredClaims
}

type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// TokenService mints, verifies and revokes access/refresh token pairs.
// Revocation is an insert into the blacklist table; there is no way
// back from the blacklisted state.
type TokenService struct {
	DB            *gorm.DB
	JWTSecret     []byte
	RefreshSecret []byte
}

// Issue mints a fresh token pair for the user. The user id travels in
// the subject claim, a random jti keeps two pairs minted in the same
// second distinct.
func (t *TokenService) Issue(user *models.User) (*TokenPair, error) {
	sub := strconv.FormatUint(uint64(user.ID), 10)
	now := time.Now()

	accessClaims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(now.Add(AccessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims).SignedString(t.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refreshClaims := RefreshClaims{
		Typ: "refresh",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(now.Add(RefreshTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	refresh, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims).SignedString(t.RefreshSecret)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	return &TokenPair{Access: access, Refresh: refresh}, nil
}

// ParseAccess verifies the signature and expiry of an access token.
func (t *TokenService) ParseAccess(raw string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signature method: %v", tok.Header["alg"])
		}
		return t.JWTSecret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ParseRefresh verifies signature, expiry, the refresh type claim and
// blacklist membership.
func (t *TokenService) ParseRefresh(raw string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signature method: %v", tok.Header["alg"])
		}
		return t.RefreshSecret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Typ != "refresh" {
		return nil, ErrInvalidToken
	}

	blacklisted, err := t.isBlacklisted(raw)
	if err != nil {
		return nil, err
	}
	if blacklisted {
		return nil, ErrBlacklisted
	}

	return claims, nil
}

// Refresh exchanges a valid refresh token for a new pair. The old
// refresh token stays usable until it expires or is blacklisted by a
// logout.
func (t *TokenService) Refresh(raw string) (*TokenPair, error) {
	claims, err := t.ParseRefresh(raw)
	if err != nil {
		return nil, err
	}

	user, err := t.UserFromClaims(claims.Subject)
	if err != nil {
		return nil, err
	}

	return t.Issue(user)
}

// Blacklist permanently revokes a refresh token. Revoking an already
// blacklisted token fails the same way a refresh with it would.
func (t *TokenService) Blacklist(raw string) error {
	claims, err := t.ParseRefresh(raw)
	if err != nil {
		return err
	}

	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return ErrInvalidToken
	}

	entry := models.BlacklistedToken{
		Token:     raw,
		UserID:    uint(userID),
		ExpiresAt: claims.ExpiresAt.Unix(),
	}
	if err := t.DB.Create(&entry).Error; err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

// UserFromClaims resolves the subject claim to a stored user.
func (t *TokenService) UserFromClaims(subject string) (*models.User, error) {
	id, err := strconv.ParseUint(subject, 10, 64)
	if err != nil {
		return nil, ErrInvalidToken
	}

	var user models.User
	if err := t.DB.First(&user, uint(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownUser
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &user, nil
}

func (t *TokenService) isBlacklisted(raw string) (bool, error) {
	var entry models.BlacklistedToken
	err := t.DB.Where("token = ?", raw).First(&entry).Error
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("db error: %w", err)
}
