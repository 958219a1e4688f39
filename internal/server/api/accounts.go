package api

import (
	"context"

	"github.com/dmitrijs2005/pulsekeeper/internal/common"
	"github.com/dmitrijs2005/pulsekeeper/internal/logging"
	"github.com/dmitrijs2005/pulsekeeper/internal/server/services"
)

const cleanupWarning = "Errors encountered while attempting to delete user's checks. All checks may not have been deleted successfully"

// CleanupWarning is the payload of an account deletion whose cascade left
// checks behind.
type CleanupWarning struct {
	Warning      string   `json:"Warning"`
	FailedChecks []string `json:"failedChecks"`
}

type accountUpdate struct {
	Phone string `json:"phone"`
	services.AccountPatch
}

// AccountsResource serves the accounts path.
//
//	POST   body {firstName, lastName, phone, password, tosAgreement}
//	GET    ?phone=
//	PUT    body {phone, firstName?, lastName?, password?}
//	DELETE ?phone=
type AccountsResource struct {
	accounts *services.AccountRegistry
	log      logging.Logger
}

func (a *AccountsResource) Post(ctx context.Context, cmd Command) Result {
	var in services.NewAccount
	if err := decodeBody(cmd.Body, &in); err != nil {
		return Fail(ctx, a.log, err)
	}
	acc, err := a.accounts.Create(ctx, in)
	if err != nil {
		return Fail(ctx, a.log, err)
	}
	return OK(acc)
}

func (a *AccountsResource) Get(ctx context.Context, cmd Command) Result {
	acc, err := a.accounts.Get(ctx, cmd.Param("phone"), cmd.Header(common.TokenHeaderName))
	if err != nil {
		return Fail(ctx, a.log, err)
	}
	return OK(acc)
}

func (a *AccountsResource) Put(ctx context.Context, cmd Command) Result {
	var in accountUpdate
	if err := decodeBody(cmd.Body, &in); err != nil {
		return Fail(ctx, a.log, err)
	}
	acc, err := a.accounts.Update(ctx, in.Phone, cmd.Header(common.TokenHeaderName), in.AccountPatch)
	if err != nil {
		return Fail(ctx, a.log, err)
	}
	return OK(acc)
}

func (a *AccountsResource) Delete(ctx context.Context, cmd Command) Result {
	report, err := a.accounts.Delete(ctx, cmd.Param("phone"), cmd.Header(common.TokenHeaderName))
	if err != nil {
		return Fail(ctx, a.log, err)
	}
	if report.Degraded() {
		return OK(CleanupWarning{Warning: cleanupWarning, FailedChecks: report.Failed})
	}
	return OK(nil)
}
