// Package models holds the persisted record shapes. Field names and JSON
// tags define the on-disk document format.
package models

// Account is keyed by its 10-character phone number.
type Account struct {
	FirstName      string   `json:"firstName"`
	LastName       string   `json:"lastName"`
	Phone          string   `json:"phone"`
	HashedPassword string   `json:"hashedPassword,omitempty"`
	TosAgreement   bool     `json:"tosAgreement"`
	Checks         []string `json:"checks,omitempty"`
}

// Public returns a copy safe to hand to callers: the password hash is
// cleared and the checks list is never nil.
func (a Account) Public() Account {
	a.HashedPassword = ""
	a.Checks = append([]string{}, a.Checks...)
	return a
}

// HasCheck reports whether id is in the account's checks list.
func (a *Account) HasCheck(id string) bool {
	return a.checkIndex(id) >= 0
}

// RemoveCheck drops id from the checks list and reports whether it was there.
func (a *Account) RemoveCheck(id string) bool {
	i := a.checkIndex(id)
	if i < 0 {
		return false
	}
	a.Checks = append(a.Checks[:i:i], a.Checks[i+1:]...)
	return true
}

func (a *Account) checkIndex(id string) int {
	for i, c := range a.Checks {
		if c == id {
			return i
		}
	}
	return -1
}
