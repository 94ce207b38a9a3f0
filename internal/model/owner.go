package model

// Owned is anything with a single owning username.
type Owned interface {
	OwnerUsername() string
}

// IsOwner is the one authorization predicate used by every mutating path that
// requires ownership. An empty actor (anonymous) never owns anything.
func IsOwner(entity Owned, actor string) bool {
	if entity == nil || actor == "" {
		return false
	}
	return entity.OwnerUsername() == actor
}
