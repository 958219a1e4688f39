package api

import (
	"context"

	"github.com/dmitrijs2005/pulsekeeper/internal/common"
	"github.com/dmitrijs2005/pulsekeeper/internal/logging"
	"github.com/dmitrijs2005/pulsekeeper/internal/server/services"
)

type tokenExtension struct {
	ID     string `json:"id"`
	Extend bool   `json:"extend"`
}

// TokensResource serves the tokens path.
//
//	POST   body {phone, password}
//	GET    ?id=
//	PUT    body {id, extend: true}
//	DELETE ?id=
type TokensResource struct {
	tokens *services.TokenAuthority
	log    logging.Logger
}

func (t *TokensResource) Post(ctx context.Context, cmd Command) Result {
	var in services.Credentials
	if err := decodeBody(cmd.Body, &in); err != nil {
		return Fail(ctx, t.log, err)
	}
	tok, err := t.tokens.Issue(ctx, in)
	if err != nil {
		return Fail(ctx, t.log, err)
	}
	return OK(tok)
}

func (t *TokensResource) Get(ctx context.Context, cmd Command) Result {
	tok, err := t.tokens.Get(ctx, cmd.Param("id"))
	if err != nil {
		return Fail(ctx, t.log, err)
	}
	return OK(tok)
}

func (t *TokensResource) Put(ctx context.Context, cmd Command) Result {
	var in tokenExtension
	if err := decodeBody(cmd.Body, &in); err != nil {
		return Fail(ctx, t.log, err)
	}
	if !in.Extend {
		return Fail(ctx, t.log, common.NewError(common.ErrorInvalidInput, "Missing required fields or fields are invalid"))
	}
	tok, err := t.tokens.Extend(ctx, in.ID)
	if err != nil {
		return Fail(ctx, t.log, err)
	}
	return OK(tok)
}

func (t *TokensResource) Delete(ctx context.Context, cmd Command) Result {
	if err := t.tokens.Revoke(ctx, cmd.Param("id")); err != nil {
		return Fail(ctx, t.log, err)
	}
	return OK(nil)
}
