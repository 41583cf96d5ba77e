package gates

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hsaleh/blog_platform/internal/models"
	"github.com/hsaleh/blog_platform/internal/tokens"
)

// RequestInfo is the slice of an inbound request the gate predicates
// look at: the Authorization header, the email/refresh fields of the
// body and the post id path parameter.
type RequestInfo struct {
	Authorization string
	Email         string
	RefreshToken  string
	PostID        string
}

// Decision is the outcome of a gate predicate. User (and Post for the
// author gate) carry what the predicate resolved on the way, so
// downstream handlers don't look it up twice.
type Decision struct {
	Allowed bool
	User    *models.User
	Post    *models.Post
}

var deny = Decision{}

type Gate struct {
	DB     *gorm.DB
	Tokens *tokens.TokenService
}

// Authenticated allows iff a valid, non-blacklisted bearer access token
// resolves to an existing user.
func (g *Gate) Authenticated(info RequestInfo) Decision {
	raw, ok := bearerToken(info.Authorization)
	if !ok {
		return deny
	}

	claims, err := g.Tokens.ParseAccess(raw)
	if err != nil {
		return deny
	}

	if listed, err := g.blacklisted(raw); err != nil || listed {
		return deny
	}

	user, err := g.Tokens.UserFromClaims(claims.Subject)
	if err != nil {
		return deny
	}

	return Decision{Allowed: true, User: user}
}

// ActiveUser checks the active flag of the already authenticated user,
// or, for an anonymous request, of the user the body email resolves to.
// An unknown email and an inactive user deny identically.
func (g *Gate) ActiveUser(info RequestInfo, user *models.User) Decision {
	if user != nil {
		if !user.IsActive {
			return deny
		}
		return Decision{Allowed: true, User: user}
	}

	if info.Email == "" {
		return deny
	}

	var found models.User
	if err := g.DB.Where("email = ?", info.Email).First(&found).Error; err != nil {
		return deny
	}
	if !found.IsActive {
		return deny
	}

	return Decision{Allowed: true, User: &found}
}

// RefreshTokenValid allows iff the body carries a refresh token that
// decodes to a valid, non-blacklisted token whose user exists. The
// resolved user is bound on the decision.
func (g *Gate) RefreshTokenValid(info RequestInfo) Decision {
	if info.RefreshToken == "" {
		return deny
	}

	claims, err := g.Tokens.ParseRefresh(info.RefreshToken)
	if err != nil {
		return deny
	}

	user, err := g.Tokens.UserFromClaims(claims.Subject)
	if err != nil {
		return deny
	}

	return Decision{Allowed: true, User: user}
}

// Author allows iff the path identifies an existing post authored by
// the given user.
func (g *Gate) Author(info RequestInfo, user *models.User) Decision {
	if user == nil || info.PostID == "" {
		return deny
	}

	id, err := uuid.Parse(info.PostID)
	if err != nil {
		return deny
	}

	var post models.Post
	if err := g.DB.Where("id = ?", id).First(&post).Error; err != nil {
		return deny
	}

	if post.AuthorID != user.ID {
		return deny
	}

	return Decision{Allowed: true, User: user, Post: &post}
}

func (g *Gate) blacklisted(raw string) (bool, error) {
	var entry models.BlacklistedToken
	err := g.DB.Where("token = ?", raw).First(&entry).Error
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, err
}

func bearerToken(header string) (string, bool) {
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	return raw, raw != ""
}
