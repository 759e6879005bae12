package entity

// Principal identifies the owner of a cart or order: an authenticated user
// id, or a session key for anonymous buyers. Exactly one side is set.
type Principal struct {
	UserID     string
	SessionKey string
}

func (p Principal) Anonymous() bool {
	return p.UserID == ""
}

func (p Principal) Zero() bool {
	return p.UserID == "" && p.SessionKey == ""
}
