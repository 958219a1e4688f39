package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/pulsekeeper/internal/common"
	"github.com/dmitrijs2005/pulsekeeper/internal/server/config"
	"github.com/dmitrijs2005/pulsekeeper/internal/server/models"
	"github.com/dmitrijs2005/pulsekeeper/internal/validation"
)

// Accepted values of the enumerated check fields.
const (
	protocolTag = "oneof=http https"
	methodTag   = "oneof=post get put delete"
	timeoutTag  = "min=1,max=5"
)

// NewCheck is the body of a check creation request.
type NewCheck struct {
	Protocol       string `json:"protocol" validate:"required,oneof=http https"`
	URL            string `json:"url" validate:"required"`
	Method         string `json:"method" validate:"required,oneof=post get put delete"`
	SuccessCodes   []int  `json:"successCodes" validate:"required,min=1"`
	TimeoutSeconds int    `json:"timeoutSeconds" validate:"required,min=1,max=5"`
}

// CheckPatch carries the optional fields of a check update. Empty strings,
// a nil SuccessCodes and a nil TimeoutSeconds mean "leave unchanged".
type CheckPatch struct {
	Protocol       string `json:"protocol"`
	URL            string `json:"url"`
	Method         string `json:"method"`
	SuccessCodes   []int  `json:"successCodes"`
	TimeoutSeconds *int   `json:"timeoutSeconds"`
}

func (p CheckPatch) empty() bool {
	return p.Protocol == "" && p.URL == "" && p.Method == "" && p.SuccessCodes == nil && p.TimeoutSeconds == nil
}

func (p CheckPatch) validate() error {
	if p.Protocol != "" {
		if err := validation.Var("protocol", p.Protocol, protocolTag); err != nil {
			return err
		}
	}
	if p.Method != "" {
		if err := validation.Var("method", p.Method, methodTag); err != nil {
			return err
		}
	}
	if p.SuccessCodes != nil {
		if err := validation.Var("successCodes", p.SuccessCodes, "min=1"); err != nil {
			return err
		}
	}
	if p.TimeoutSeconds != nil {
		if err := validation.Var("timeoutSeconds", *p.TimeoutSeconds, timeoutTag); err != nil {
			return err
		}
	}
	return nil
}

// CheckRegistry manages check records and keeps every account's checks
// list in step with them. Creation writes the check before linking it to
// the account; deletion removes the check before unlinking it. A failure
// between the two writes leaves an orphaned check rather than a list
// entry pointing at nothing.
type CheckRegistry struct {
	Deps
	tokens    *TokenAuthority
	maxChecks int
}

// NewCheckRegistry constructs a CheckRegistry allowing cfg.MaxChecks checks
// per account.
func NewCheckRegistry(d Deps, tokens *TokenAuthority, cfg *config.Config) *CheckRegistry {
	return &CheckRegistry{Deps: d.withDefaults("checks"), tokens: tokens, maxChecks: cfg.MaxChecks}
}

// Create stores a new check owned by the account the token belongs to and
// appends its id to that account's checks list.
func (r *CheckRegistry) Create(ctx context.Context, token string, in NewCheck) (*models.Check, error) {
	in.Protocol = strings.TrimSpace(in.Protocol)
	in.URL = strings.TrimSpace(in.URL)
	in.Method = strings.TrimSpace(in.Method)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	t, ok := r.tokens.resolve(ctx, strings.TrimSpace(token))
	if !ok {
		return nil, forbidden()
	}

	defer r.Locks.Lock(common.CollectionAccounts, t.Phone)()

	var acc models.Account
	if err := r.Store.Read(ctx, common.CollectionAccounts, t.Phone, &acc); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.WrapError(common.ErrorMissingDependency, "The account for this token does not exist", err)
		}
		return nil, err
	}

	if len(acc.Checks) >= r.maxChecks {
		return nil, common.NewError(common.ErrorLimitExceeded,
			fmt.Sprintf("The user already has the maximum number of checks (%d)", r.maxChecks))
	}

	id, err := common.RandomString(common.IDLength)
	if err != nil {
		return nil, common.WrapError(common.ErrorStorage, "Could not create the new check", err)
	}

	c := &models.Check{
		ID:             id,
		UserPhone:      acc.Phone,
		Protocol:       in.Protocol,
		URL:            in.URL,
		Method:         in.Method,
		SuccessCodes:   in.SuccessCodes,
		TimeoutSeconds: in.TimeoutSeconds,
	}

	if err := r.Store.Create(ctx, common.CollectionChecks, id, c); err != nil {
		return nil, common.WrapError(common.ErrorStorage, "Could not create the new check", err)
	}

	acc.Checks = append(acc.Checks, id)
	if err := r.Store.Update(ctx, common.CollectionAccounts, acc.Phone, &acc); err != nil {
		r.Logger.Error(ctx, "check created but not linked to account", "check_id", id, "phone", acc.Phone, "error", err)
		return nil, common.WrapError(common.ErrorOrphanedCheck,
			fmt.Sprintf("Could not update the user with the new check; check %s is orphaned", id), err)
	}

	r.Logger.Info(ctx, "check created", "check_id", id, "phone", acc.Phone)
	return c, nil
}

// Get returns the check if token verifies against the check's owner.
func (r *CheckRegistry) Get(ctx context.Context, token, id string) (*models.Check, error) {
	return r.readOwned(ctx, token, id)
}

// Update applies the present fields of p to a check the token owns.
func (r *CheckRegistry) Update(ctx context.Context, token, id string, p CheckPatch) (*models.Check, error) {
	p.Protocol = strings.TrimSpace(p.Protocol)
	p.URL = strings.TrimSpace(p.URL)
	p.Method = strings.TrimSpace(p.Method)

	id = strings.TrimSpace(id)
	if err := validateID(id); err != nil {
		return nil, err
	}
	if p.empty() {
		return nil, common.NewError(common.ErrorInvalidInput, "Missing fields to update")
	}
	if err := p.validate(); err != nil {
		return nil, err
	}

	if _, err := r.readOwned(ctx, token, id); err != nil {
		return nil, err
	}

	defer r.Locks.Lock(common.CollectionChecks, id)()

	// Re-read under the lock; ownership never changes, the fields may have.
	var c models.Check
	if err := r.Store.Read(ctx, common.CollectionChecks, id, &c); err != nil {
		return nil, checkReadError(err)
	}

	if p.Protocol != "" {
		c.Protocol = p.Protocol
	}
	if p.URL != "" {
		c.URL = p.URL
	}
	if p.Method != "" {
		c.Method = p.Method
	}
	if p.SuccessCodes != nil {
		c.SuccessCodes = p.SuccessCodes
	}
	if p.TimeoutSeconds != nil {
		c.TimeoutSeconds = *p.TimeoutSeconds
	}

	if err := r.Store.Update(ctx, common.CollectionChecks, id, &c); err != nil {
		return nil, common.WrapError(common.ErrorStorage, "Could not update the check", err)
	}
	return &c, nil
}

// Delete removes a check the token owns and then drops its id from the
// owner's checks list. An owner that is missing or does not list the
// check is reported as ErrorInconsistent.
func (r *CheckRegistry) Delete(ctx context.Context, token, id string) error {
	c, err := r.readOwned(ctx, token, id)
	if err != nil {
		return err
	}

	defer r.Locks.Lock(common.CollectionAccounts, c.UserPhone)()
	unlockCheck := r.Locks.Lock(common.CollectionChecks, c.ID)

	err = r.Store.Delete(ctx, common.CollectionChecks, c.ID)
	unlockCheck()
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return checkReadError(err)
		}
		return common.WrapError(common.ErrorStorage, "Could not delete the specified check", err)
	}

	var acc models.Account
	if err := r.Store.Read(ctx, common.CollectionAccounts, c.UserPhone, &acc); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			r.Logger.Error(ctx, "deleted check had no owner", "check_id", c.ID, "phone", c.UserPhone)
			return common.WrapError(common.ErrorInconsistent, "Could not find the user who created the check", err)
		}
		return common.WrapError(common.ErrorStorage, "Could not read the user who created the check", err)
	}

	if !acc.RemoveCheck(c.ID) {
		r.Logger.Error(ctx, "deleted check was not listed by its owner", "check_id", c.ID, "phone", c.UserPhone)
		return common.NewError(common.ErrorInconsistent, "Could not find the check on the user object, so could not remove it")
	}

	if err := r.Store.Update(ctx, common.CollectionAccounts, acc.Phone, &acc); err != nil {
		r.Logger.Error(ctx, "check deleted but still listed by owner", "check_id", c.ID, "phone", acc.Phone, "error", err)
		return common.WrapError(common.ErrorStorage, "Could not update the user", err)
	}

	r.Logger.Info(ctx, "check deleted", "check_id", c.ID, "phone", acc.Phone)
	return nil
}

// readOwned loads a check and verifies token against its recorded owner.
func (r *CheckRegistry) readOwned(ctx context.Context, token, id string) (*models.Check, error) {
	id = strings.TrimSpace(id)
	if err := validateID(id); err != nil {
		return nil, err
	}

	var c models.Check
	if err := r.Store.Read(ctx, common.CollectionChecks, id, &c); err != nil {
		return nil, checkReadError(err)
	}

	if !r.tokens.Verify(ctx, strings.TrimSpace(token), c.UserPhone) {
		return nil, forbidden()
	}
	return &c, nil
}

func checkReadError(err error) error {
	if errors.Is(err, common.ErrorNotFound) {
		return common.WrapError(common.ErrorNotFound, "Specified check does not exist", err)
	}
	return err
}
