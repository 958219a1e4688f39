package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/pulsekeeper/internal/common"
	"github.com/dmitrijs2005/pulsekeeper/internal/cryptox"
	"github.com/dmitrijs2005/pulsekeeper/internal/server/config"
	"github.com/dmitrijs2005/pulsekeeper/internal/server/models"
	"github.com/dmitrijs2005/pulsekeeper/internal/validation"
)

// Credentials is the body of a token request.
type Credentials struct {
	Phone    string `json:"phone" validate:"required,len=10"`
	Password string `json:"password" validate:"required"`
}

// TokenAuthority issues, extends and revokes bearer tokens and answers
// whether a token currently authorizes an account.
type TokenAuthority struct {
	Deps
	hasher   *cryptox.Hasher
	validity time.Duration
}

// NewTokenAuthority constructs a TokenAuthority. Tokens live for
// cfg.TokenValidityDuration from issue or last extension.
func NewTokenAuthority(d Deps, hasher *cryptox.Hasher, cfg *config.Config) *TokenAuthority {
	return &TokenAuthority{
		Deps:     d.withDefaults("tokens"),
		hasher:   hasher,
		validity: cfg.TokenValidityDuration,
	}
}

// Issue checks the password against the account and stores a fresh token.
func (a *TokenAuthority) Issue(ctx context.Context, c Credentials) (*models.Token, error) {
	c.Phone = strings.TrimSpace(c.Phone)
	c.Password = strings.TrimSpace(c.Password)
	if err := validation.Struct(c); err != nil {
		return nil, err
	}

	var acc models.Account
	if err := a.Store.Read(ctx, common.CollectionAccounts, c.Phone, &acc); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.NewError(common.ErrorMissingDependency, "Could not find the specified user")
		}
		return nil, err
	}

	if !a.hasher.Matches(c.Password, acc.HashedPassword) {
		return nil, common.NewError(common.ErrorUnauthorized, "Password did not match the specified user's stored password")
	}

	id, err := common.RandomString(common.IDLength)
	if err != nil {
		return nil, common.WrapError(common.ErrorStorage, "Could not create the new token", err)
	}

	t := &models.Token{ID: id, Phone: acc.Phone, Expires: a.Clock().Add(a.validity).UnixMilli()}
	if err := a.Store.Create(ctx, common.CollectionTokens, id, t); err != nil {
		return nil, common.WrapError(common.ErrorStorage, "Could not create the new token", err)
	}

	a.Logger.Info(ctx, "token issued", "phone", t.Phone)
	return t, nil
}

// Get returns the token with the given id.
func (a *TokenAuthority) Get(ctx context.Context, id string) (*models.Token, error) {
	id = strings.TrimSpace(id)
	if err := validateID(id); err != nil {
		return nil, err
	}

	var t models.Token
	if err := a.Store.Read(ctx, common.CollectionTokens, id, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Extend pushes the expiry of a live token to now plus the validity period.
// An expired token cannot be extended.
func (a *TokenAuthority) Extend(ctx context.Context, id string) (*models.Token, error) {
	id = strings.TrimSpace(id)
	if err := validateID(id); err != nil {
		return nil, err
	}

	defer a.Locks.Lock(common.CollectionTokens, id)()

	var t models.Token
	if err := a.Store.Read(ctx, common.CollectionTokens, id, &t); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.WrapError(common.ErrorNotFound, "Specified token does not exist", err)
		}
		return nil, err
	}

	now := a.Clock()
	if t.Expired(now) {
		return nil, common.NewError(common.ErrTokenExpired, "The token has already expired and cannot be extended")
	}

	t.Expires = now.Add(a.validity).UnixMilli()
	if err := a.Store.Update(ctx, common.CollectionTokens, id, &t); err != nil {
		return nil, common.WrapError(common.ErrorStorage, "Could not update the token's expiration", err)
	}
	return &t, nil
}

// Revoke deletes the token.
func (a *TokenAuthority) Revoke(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if err := validateID(id); err != nil {
		return err
	}

	defer a.Locks.Lock(common.CollectionTokens, id)()

	if err := a.Store.Delete(ctx, common.CollectionTokens, id); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.WrapError(common.ErrorNotFound, "Could not find the specified token", err)
		}
		return common.WrapError(common.ErrorStorage, "Could not delete the specified token", err)
	}
	return nil
}

// Verify reports whether id names an unexpired token belonging to phone.
// It never fails: any lookup problem yields false.
func (a *TokenAuthority) Verify(ctx context.Context, id, phone string) bool {
	t, ok := a.resolve(ctx, id)
	return ok && t.Phone == phone
}

// resolve returns the token for id if it exists and has not expired.
func (a *TokenAuthority) resolve(ctx context.Context, id string) (*models.Token, bool) {
	if len(id) != common.IDLength {
		return nil, false
	}
	t, err := a.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			a.Logger.Warn(ctx, "token lookup failed", "error", err)
		}
		return nil, false
	}
	if t.Expired(a.Clock()) {
		return nil, false
	}
	return t, true
}

func validateID(id string) error {
	return validation.Var("id", id, "required,len=20")
}

func forbidden() error {
	return common.NewError(common.ErrorForbidden, "Missing required token in header, or token is invalid")
}
