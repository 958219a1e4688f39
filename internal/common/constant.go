// Package common contains shared constants and sentinel errors used across
// pulsekeeper components.
package common

// TokenHeaderName is the request header carrying the bearer token id.
const TokenHeaderName = "token"

// Collection names. One directory (or key prefix, or table partition) per
// collection in every store backend.
const (
	CollectionAccounts = "accounts"
	CollectionTokens   = "tokens"
	CollectionChecks   = "checks"
)

// IDLength is the length of generated token and check ids.
const IDLength = 20

// PhoneLength is the exact length of an account key after trimming.
const PhoneLength = 10
