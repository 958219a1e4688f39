package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/pulsekeeper/internal/logging"
	"github.com/dmitrijs2005/pulsekeeper/internal/server/services"
)

// Router is the dispatch table from resource name to Resource. It is built
// once at startup and never modified.
type Router struct {
	routes map[string]Resource
	log    logging.Logger
}

// NewRouter copies routes into a new Router.
func NewRouter(log logging.Logger, routes map[string]Resource) *Router {
	if log == nil {
		log = logging.Nop{}
	}
	table := make(map[string]Resource, len(routes))
	for name, res := range routes {
		table[strings.ToLower(name)] = res
	}
	return &Router{routes: table, log: log.With("module", "api")}
}

// Services is the set of registries served by the default routes.
type Services struct {
	Tokens   *services.TokenAuthority
	Accounts *services.AccountRegistry
	Checks   *services.CheckRegistry
}

// NewServiceRouter builds the standard dispatch table: accounts, tokens,
// checks and ping.
func NewServiceRouter(log logging.Logger, s Services) *Router {
	if log == nil {
		log = logging.Nop{}
	}
	rl := log.With("module", "api")
	return NewRouter(log, map[string]Resource{
		"accounts": &AccountsResource{accounts: s.Accounts, log: rl},
		"tokens":   &TokensResource{tokens: s.Tokens, log: rl},
		"checks":   &ChecksResource{checks: s.Checks, log: rl},
		"ping":     Ping{},
	})
}

// Dispatch routes cmd to its resource. An unknown path yields 404 with no
// payload, an unsupported method 405. A panicking handler yields 500.
func (r *Router) Dispatch(ctx context.Context, cmd Command) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error(ctx, "handler panic", "path", cmd.Path, "method", cmd.Method, "panic", fmt.Sprint(p))
			res = Result{StatusCode: http.StatusInternalServerError, Payload: ErrorPayload{Error: internalErrorMessage}}
		}
	}()

	resource, ok := r.routes[strings.ToLower(strings.Trim(cmd.Path, "/"))]
	if !ok {
		return Result{StatusCode: http.StatusNotFound}
	}

	switch strings.ToUpper(cmd.Method) {
	case http.MethodPost:
		return resource.Post(ctx, cmd)
	case http.MethodGet:
		return resource.Get(ctx, cmd)
	case http.MethodPut:
		return resource.Put(ctx, cmd)
	case http.MethodDelete:
		return resource.Delete(ctx, cmd)
	default:
		return MethodNotAllowed()
	}
}

// MethodNotAllowed is the Result for an unsupported method.
func MethodNotAllowed() Result {
	return Result{StatusCode: http.StatusMethodNotAllowed, Payload: ErrorPayload{Error: "Method not allowed"}}
}

// Ping answers every method with 200.
type Ping struct{}

func (Ping) Post(context.Context, Command) Result   { return OK(nil) }
func (Ping) Get(context.Context, Command) Result    { return OK(nil) }
func (Ping) Put(context.Context, Command) Result    { return OK(nil) }
func (Ping) Delete(context.Context, Command) Result { return OK(nil) }
