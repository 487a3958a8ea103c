package local

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/amoradev/amora/internal/db"
	"github.com/amoradev/amora/internal/entitlement"
	svcErr "github.com/amoradev/amora/internal/errors"
	"github.com/amoradev/amora/internal/model"
)

const sessionTTL = 30 * 24 * time.Hour

var pinPattern = regexp.MustCompile(`^\d{4,6}$`)

// ValidPIN checks the client-side PIN format (4 to 6 digits) before
// any credential lookup happens.
func ValidPIN(pin string) bool { return pinPattern.MatchString(pin) }

// Authenticate verifies a phone+PIN pair and issues a bearer token
// stored in redis. Format failures never reach the credential table.
func (g *Gateway) Authenticate(ctx context.Context, phone, pin string) (string, model.Profile, error) {
	if !ValidPIN(pin) {
		return "", model.Profile{}, svcErr.Validationf("pin must be 4-6 digits")
	}

	var cred db.Credential
	err := g.db.WithContext(ctx).First(&cred, "phone = ?", phone).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", model.Profile{}, svcErr.ErrUnauthenticated
	}
	if err != nil {
		return "", model.Profile{}, fmt.Errorf("load credential: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(cred.PINHash), []byte(pin)) != nil {
		return "", model.Profile{}, svcErr.ErrUnauthenticated
	}

	profile, err := g.GetProfile(ctx, cred.ProfileID)
	if err != nil {
		return "", model.Profile{}, err
	}

	token := uuid.NewString()
	key := g.cache.KeyForSession(token)
	if err := g.cache.Set(ctx, key, profile.ID, sessionTTL); err != nil {
		return "", model.Profile{}, fmt.Errorf("store session: %w", err)
	}
	return token, profile, nil
}

// ResolveSession maps a bearer token back to the viewer's profile and
// plan tier. A missing or expired token is the fatal unauthenticated
// class.
func (g *Gateway) ResolveSession(ctx context.Context, token string) (model.Profile, entitlement.Tier, error) {
	if token == "" {
		return model.Profile{}, entitlement.TierFree, svcErr.ErrUnauthenticated
	}
	viewerID, err := g.cache.Get(ctx, g.cache.KeyForSession(token))
	if errors.Is(err, redis.Nil) || viewerID == "" {
		return model.Profile{}, entitlement.TierFree, svcErr.ErrUnauthenticated
	}
	if err != nil {
		return model.Profile{}, entitlement.TierFree, fmt.Errorf("resolve session: %w", err)
	}

	var row db.Profile
	if err := g.db.WithContext(ctx).First(&row, "id = ?", viewerID).Error; err != nil {
		return model.Profile{}, entitlement.TierFree, svcErr.ErrUnauthenticated
	}
	return toModelProfile(row), entitlement.ParseTier(row.Tier), nil
}
