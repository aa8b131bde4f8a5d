package models

// Actor is the authenticated caller passed explicitly into every service call.
type Actor struct {
	UserID int64  `json:"id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	// IP of the request, recorded in audit entries.
	IP string `json:"-"`
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

func (a Actor) IsDelivery() bool {
	return a.Role == RoleDelivery
}

// Owns reports whether the actor is the given user or an admin.
func (a Actor) Owns(userID int64) bool {
	return a.IsAdmin() || a.UserID == userID
}
