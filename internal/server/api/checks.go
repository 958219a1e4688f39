package api

import (
	"context"

	"github.com/dmitrijs2005/pulsekeeper/internal/common"
	"github.com/dmitrijs2005/pulsekeeper/internal/logging"
	"github.com/dmitrijs2005/pulsekeeper/internal/server/services"
)

type checkUpdate struct {
	ID string `json:"id"`
	services.CheckPatch
}

// ChecksResource serves the checks path. Every method needs the token
// header; ownership comes from the stored check.
//
//	POST   body {protocol, url, method, successCodes, timeoutSeconds}
//	GET    ?id=
//	PUT    body {id, protocol?, url?, method?, successCodes?, timeoutSeconds?}
//	DELETE ?id=
type ChecksResource struct {
	checks *services.CheckRegistry
	log    logging.Logger
}

func (c *ChecksResource) Post(ctx context.Context, cmd Command) Result {
	var in services.NewCheck
	if err := decodeBody(cmd.Body, &in); err != nil {
		return Fail(ctx, c.log, err)
	}
	check, err := c.checks.Create(ctx, cmd.Header(common.TokenHeaderName), in)
	if err != nil {
		return Fail(ctx, c.log, err)
	}
	return OK(check)
}

func (c *ChecksResource) Get(ctx context.Context, cmd Command) Result {
	check, err := c.checks.Get(ctx, cmd.Header(common.TokenHeaderName), cmd.Param("id"))
	if err != nil {
		return Fail(ctx, c.log, err)
	}
	return OK(check)
}

func (c *ChecksResource) Put(ctx context.Context, cmd Command) Result {
	var in checkUpdate
	if err := decodeBody(cmd.Body, &in); err != nil {
		return Fail(ctx, c.log, err)
	}
	check, err := c.checks.Update(ctx, cmd.Header(common.TokenHeaderName), in.ID, in.CheckPatch)
	if err != nil {
		return Fail(ctx, c.log, err)
	}
	return OK(check)
}

func (c *ChecksResource) Delete(ctx context.Context, cmd Command) Result {
	if err := c.checks.Delete(ctx, cmd.Header(common.TokenHeaderName), cmd.Param("id")); err != nil {
		return Fail(ctx, c.log, err)
	}
	return OK(nil)
}
