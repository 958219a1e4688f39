package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/pulsekeeper/internal/common"
	"github.com/dmitrijs2005/pulsekeeper/internal/cryptox"
	"github.com/dmitrijs2005/pulsekeeper/internal/keylock"
	"github.com/dmitrijs2005/pulsekeeper/internal/logging"
	"github.com/dmitrijs2005/pulsekeeper/internal/server/config"
	"github.com/dmitrijs2005/pulsekeeper/internal/server/models"
	"github.com/dmitrijs2005/pulsekeeper/internal/server/store"
	"github.com/stretchr/testify/require"
)

const (
	testPhone    = "5551234567"
	testPassword = "hunter2"
)

// faultStore wraps a DocumentStore and fails selected operations.
type faultStore struct {
	store.DocumentStore

	mu     sync.Mutex
	faults map[string]error // "op collection" -> error
}

func newFaultStore(inner store.DocumentStore) *faultStore {
	return &faultStore{DocumentStore: inner, faults: map[string]error{}}
}

func (f *faultStore) fail(op, collection string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults[op+" "+collection] = err
}

func (f *faultStore) fault(op, collection string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.faults[op+" "+collection]
}

func (f *faultStore) Create(ctx context.Context, collection, key string, v any) error {
	if err := f.fault("create", collection); err != nil {
		return err
	}
	return f.DocumentStore.Create(ctx, collection, key, v)
}

func (f *faultStore) Read(ctx context.Context, collection, key string, v any) error {
	if err := f.fault("read", collection); err != nil {
		return err
	}
	return f.DocumentStore.Read(ctx, collection, key, v)
}

func (f *faultStore) Update(ctx context.Context, collection, key string, v any) error {
	if err := f.fault("update", collection); err != nil {
		return err
	}
	return f.DocumentStore.Update(ctx, collection, key, v)
}

func (f *faultStore) Delete(ctx context.Context, collection, key string) error {
	if err := f.fault("delete", collection); err != nil {
		return err
	}
	return f.DocumentStore.Delete(ctx, collection, key)
}

type testEnv struct {
	store    *faultStore
	now      time.Time
	tokens   *TokenAuthority
	accounts *AccountRegistry
	checks   *CheckRegistry
	recon    *Reconciler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	fs, err := store.NewFileStore(t.TempDir(), "")
	require.NoError(t, err)

	env := &testEnv{
		store: newFaultStore(fs),
		now:   time.UnixMilli(1_700_000_000_000),
	}

	cfg := &config.Config{}
	cfg.LoadDefaults()

	d := Deps{
		Store:  env.store,
		Locks:  keylock.New(),
		Logger: logging.Nop{},
		Clock:  func() time.Time { return env.now },
	}
	h := cryptox.NewHasher(cfg.HashingSecret)

	env.tokens = NewTokenAuthority(d, h, cfg)
	env.accounts = NewAccountRegistry(d, h, env.tokens)
	env.checks = NewCheckRegistry(d, env.tokens, cfg)
	env.recon = NewReconciler(d)
	return env
}

func validAccount(phone string) NewAccount {
	return NewAccount{
		FirstName:    "Ada",
		LastName:     "Lovelace",
		Phone:        phone,
		Password:     testPassword,
		TosAgreement: true,
	}
}

func validCheck() NewCheck {
	return NewCheck{
		Protocol:       "https",
		URL:            "example.com",
		Method:         "get",
		SuccessCodes:   []int{200, 201},
		TimeoutSeconds: 3,
	}
}

// signUp creates an account and returns a live token id for it.
func (e *testEnv) signUp(t *testing.T, phone string) string {
	t.Helper()
	ctx := context.Background()

	_, err := e.accounts.Create(ctx, validAccount(phone))
	require.NoError(t, err)

	tok, err := e.tokens.Issue(ctx, Credentials{Phone: phone, Password: testPassword})
	require.NoError(t, err)
	return tok.ID
}

func (e *testEnv) account(t *testing.T, phone string) models.Account {
	t.Helper()
	var acc models.Account
	require.NoError(t, e.store.Read(context.Background(), common.CollectionAccounts, phone, &acc))
	return acc
}
