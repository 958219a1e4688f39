// Package services contains the server-side business logic: token
// issuance and verification, account and check registries, and the
// consistency scan over the account/check association.
//
// Every multi-step operation follows the same lock order (account, then
// check, then token) on the shared keylock.Locker. Reads never lock.
package services

import (
	"time"

	"github.com/dmitrijs2005/pulsekeeper/internal/keylock"
	"github.com/dmitrijs2005/pulsekeeper/internal/logging"
	"github.com/dmitrijs2005/pulsekeeper/internal/server/store"
)

// Clock returns the current time.
type Clock func() time.Time

// Deps bundles the collaborators shared by every service.
type Deps struct {
	Store  store.DocumentStore
	Locks  *keylock.Locker
	Logger logging.Logger
	Clock  Clock
}

func (d Deps) withDefaults(module string) Deps {
	if d.Locks == nil {
		d.Locks = keylock.New()
	}
	if d.Logger == nil {
		d.Logger = logging.Nop{}
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	d.Logger = d.Logger.With("module", module)
	return d
}
