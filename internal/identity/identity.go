// Package identity carries the authenticated caller identity supplied by the
// auth collaborator. The core never authenticates; it only authorizes by
// comparing entity ownership to this identity.
package identity

// Identity is the caller identity threaded into every core call.
type Identity struct {
	UserID string
	Admin  bool
}

// System is used by internal workers and wiring code that act with full
// privileges outside any user request.
var System = Identity{UserID: "system", Admin: true}

// CanAccess reports whether the caller may act on an entity owned by ownerID.
func (id Identity) CanAccess(ownerID string) bool {
	return id.Admin || id.UserID == ownerID
}
