package services

import (
	"context"
	"errors"
	"strings"

	"github.com/dmitrijs2005/pulsekeeper/internal/common"
	"github.com/dmitrijs2005/pulsekeeper/internal/cryptox"
	"github.com/dmitrijs2005/pulsekeeper/internal/server/models"
	"github.com/dmitrijs2005/pulsekeeper/internal/validation"
)

// NewAccount is the body of an account creation request.
type NewAccount struct {
	FirstName    string `json:"firstName" validate:"required"`
	LastName     string `json:"lastName" validate:"required"`
	Phone        string `json:"phone" validate:"required,len=10"`
	Password     string `json:"password" validate:"required"`
	TosAgreement bool   `json:"tosAgreement" validate:"eq=true"`
}

// AccountPatch carries the optional fields of an account update. Empty
// strings mean "leave unchanged".
type AccountPatch struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Password  string `json:"password"`
}

func (p AccountPatch) empty() bool {
	return p.FirstName == "" && p.LastName == "" && p.Password == ""
}

// CleanupReport describes the cascade part of an account deletion.
type CleanupReport struct {
	Deleted []string
	Missing []string
	Failed  []string
}

// Degraded reports whether some checks could not be deleted.
func (r *CleanupReport) Degraded() bool {
	return len(r.Failed) > 0
}

// record folds the outcome of one check deletion into the report.
func (r *CleanupReport) record(id string, err error) {
	switch {
	case err == nil:
		r.Deleted = append(r.Deleted, id)
	case errors.Is(err, common.ErrorNotFound):
		r.Missing = append(r.Missing, id)
	default:
		r.Failed = append(r.Failed, id)
	}
}

// AccountRegistry manages account records.
type AccountRegistry struct {
	Deps
	hasher *cryptox.Hasher
	tokens *TokenAuthority
}

// NewAccountRegistry constructs an AccountRegistry guarded by tokens.
func NewAccountRegistry(d Deps, hasher *cryptox.Hasher, tokens *TokenAuthority) *AccountRegistry {
	return &AccountRegistry{Deps: d.withDefaults("accounts"), hasher: hasher, tokens: tokens}
}

// Create validates the request and stores a new account keyed by phone.
func (r *AccountRegistry) Create(ctx context.Context, in NewAccount) (*models.Account, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Password = strings.TrimSpace(in.Password)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	hashed, err := r.hasher.Hash(in.Password)
	if err != nil {
		return nil, common.WrapError(common.ErrorStorage, "Could not hash the user's password", err)
	}

	acc := &models.Account{
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		Phone:          in.Phone,
		HashedPassword: hashed,
		TosAgreement:   true,
	}

	defer r.Locks.Lock(common.CollectionAccounts, acc.Phone)()

	if err := r.Store.Create(ctx, common.CollectionAccounts, acc.Phone, acc); err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.WrapError(common.ErrorAlreadyExists, "A user with that phone number already exists", err)
		}
		return nil, common.WrapError(common.ErrorStorage, "Could not create the new user", err)
	}

	r.Logger.Info(ctx, "account created", "phone", acc.Phone)
	pub := acc.Public()
	return &pub, nil
}

// Get returns the account without its password hash. token must verify
// against phone.
func (r *AccountRegistry) Get(ctx context.Context, phone, token string) (*models.Account, error) {
	phone, err := r.authorize(ctx, phone, token)
	if err != nil {
		return nil, err
	}

	var acc models.Account
	if err := r.Store.Read(ctx, common.CollectionAccounts, phone, &acc); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.WrapError(common.ErrorNotFound, "Unable to locate specified user", err)
		}
		return nil, err
	}

	pub := acc.Public()
	return &pub, nil
}

// Update applies the present fields of p. The password is re-hashed.
func (r *AccountRegistry) Update(ctx context.Context, phone, token string, p AccountPatch) (*models.Account, error) {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.Password = strings.TrimSpace(p.Password)

	phone, err := validatePhone(phone)
	if err != nil {
		return nil, err
	}
	if p.empty() {
		return nil, common.NewError(common.ErrorInvalidInput, "Missing fields to update")
	}
	if !r.tokens.Verify(ctx, token, phone) {
		return nil, forbidden()
	}

	defer r.Locks.Lock(common.CollectionAccounts, phone)()

	var acc models.Account
	if err := r.Store.Read(ctx, common.CollectionAccounts, phone, &acc); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.WrapError(common.ErrorNotFound, "The specified user does not exist", err)
		}
		return nil, err
	}

	if p.FirstName != "" {
		acc.FirstName = p.FirstName
	}
	if p.LastName != "" {
		acc.LastName = p.LastName
	}
	if p.Password != "" {
		hashed, err := r.hasher.Hash(p.Password)
		if err != nil {
			return nil, common.WrapError(common.ErrorStorage, "Could not hash the user's password", err)
		}
		acc.HashedPassword = hashed
	}

	if err := r.Store.Update(ctx, common.CollectionAccounts, phone, &acc); err != nil {
		return nil, common.WrapError(common.ErrorStorage, "Could not update the user", err)
	}

	pub := acc.Public()
	return &pub, nil
}

// Delete removes the account and then every check it owns. Once the
// account record is gone the deletion stands; checks that could not be
// removed are listed in the returned report instead of failing the call.
func (r *AccountRegistry) Delete(ctx context.Context, phone, token string) (*CleanupReport, error) {
	phone, err := r.authorize(ctx, phone, token)
	if err != nil {
		return nil, err
	}

	defer r.Locks.Lock(common.CollectionAccounts, phone)()

	var acc models.Account
	if err := r.Store.Read(ctx, common.CollectionAccounts, phone, &acc); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.WrapError(common.ErrorNotFound, "Could not find the specified user", err)
		}
		return nil, err
	}

	if err := r.Store.Delete(ctx, common.CollectionAccounts, phone); err != nil {
		return nil, common.WrapError(common.ErrorStorage, "Could not delete the specified user", err)
	}

	report := &CleanupReport{}
	for _, id := range acc.Checks {
		report.record(id, r.deleteCheck(ctx, id))
	}

	if report.Degraded() {
		r.Logger.Warn(ctx, "account deleted with leftover checks", "phone", phone, "failed", report.Failed)
	} else {
		r.Logger.Info(ctx, "account deleted", "phone", phone, "checks", len(report.Deleted))
	}
	return report, nil
}

func (r *AccountRegistry) deleteCheck(ctx context.Context, id string) error {
	defer r.Locks.Lock(common.CollectionChecks, id)()
	return r.Store.Delete(ctx, common.CollectionChecks, id)
}

// authorize validates phone and checks that token verifies against it.
func (r *AccountRegistry) authorize(ctx context.Context, phone, token string) (string, error) {
	phone, err := validatePhone(phone)
	if err != nil {
		return "", err
	}
	if !r.tokens.Verify(ctx, token, phone) {
		return "", forbidden()
	}
	return phone, nil
}

func validatePhone(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if err := validation.Var("phone", phone, "required,len=10"); err != nil {
		return "", err
	}
	return phone, nil
}
