package domain

import "strings"

// User is the slice of a platform profile the messaging views need.
type User struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email,omitempty"`
}

// UnknownUserName is shown when a participant profile cannot be resolved.
const UnknownUserName = "Unknown User"

// DisplayName renders "First Last", falling back to the email and finally to
// UnknownUserName.
func (u User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name != "" {
		return name
	}
	if u.Email != "" {
		return u.Email
	}
	return UnknownUserName
}
