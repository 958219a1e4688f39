// Package store implements the document store: durable create, read,
// update and delete of single JSON records addressed by (collection, key).
//
// Every backend reports failures with the sentinels from package common:
// ErrorNotFound, ErrorAlreadyExists, ErrorCorrupt, ErrorInvalidInput (bad
// collection or key) and ErrorStorage for everything else. Operations on the
// same (collection, key) are serialised inside the backend; there are no
// multi-key transactions.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/pulsekeeper/internal/common"
)

// DocumentStore is the only component that talks to durable storage.
type DocumentStore interface {
	// Create stores v under (collection, key). It fails with
	// ErrorAlreadyExists if the key is taken and never overwrites.
	Create(ctx context.Context, collection, key string, v any) error

	// Read decodes the record into v.
	Read(ctx context.Context, collection, key string, v any) error

	// Update replaces an existing record.
	Update(ctx context.Context, collection, key string, v any) error

	Delete(ctx context.Context, collection, key string) error

	// Keys lists the keys of a collection in ascending order. It exists for
	// consistency scans, not as a query mechanism.
	Keys(ctx context.Context, collection string) ([]string, error)
}

// validateName rejects collection names and keys that could escape their
// namespace in any backend.
func validateName(kind, name string) error {
	switch {
	case name == "":
		return common.NewError(common.ErrorInvalidInput, fmt.Sprintf("empty %s", kind))
	case strings.HasPrefix(name, "."):
		return common.NewError(common.ErrorInvalidInput, fmt.Sprintf("%s %q must not start with a dot", kind, name))
	case strings.ContainsAny(name, "/\\\x00"):
		return common.NewError(common.ErrorInvalidInput, fmt.Sprintf("%s %q contains a path separator", kind, name))
	}
	return nil
}

func validateAddress(collection, key string) error {
	if err := validateName("collection", collection); err != nil {
		return err
	}
	return validateName("key", key)
}

func notFound(collection, key string) error {
	return common.NewError(common.ErrorNotFound, fmt.Sprintf("%s/%s not found", collection, key))
}

func alreadyExists(collection, key string) error {
	return common.NewError(common.ErrorAlreadyExists, fmt.Sprintf("%s/%s already exists", collection, key))
}

func corrupt(collection, key string, cause error) error {
	return common.WrapError(common.ErrorCorrupt, fmt.Sprintf("%s/%s does not parse", collection, key), cause)
}

func storageFailure(op, collection, key string, cause error) error {
	return common.WrapError(common.ErrorStorage, fmt.Sprintf("%s %s/%s", op, collection, key), cause)
}
