package model

import "time"

// User is a registered community member.
//
// The username is the public identity: posts and likes refer to users by
// username, never by ID. IdentityHash is the hashed external subject id from
// the identity provider (or a derived value in local mode) and is never
// serialized to clients.
//
// AvatarRef starts empty and is set once, the first time the user's avatar is
// generated. It always holds the public path ("/avatars/<username>.png"),
// never a file-system path.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	IdentityHash string    `json:"-"`
	AvatarRef    string    `json:"avatarUrl,omitempty"`
	MemberSince  time.Time `json:"memberSince"`
}
