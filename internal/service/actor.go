package service

import "strings"

// SystemUserName is written to events when no user is acting.
const SystemUserName = "system"

// Actor identifies who performs a lifecycle operation.  UserID is nil for
// the system actor.
type Actor struct {
	UserID *uint64
	Name   string
}

// SystemActor is the placeholder for operations without a signed-in user.
var SystemActor = Actor{Name: SystemUserName}

// UserActor returns the actor for a signed-in user.
func UserActor(id uint64, name string) Actor {
	return Actor{UserID: &id, Name: name}
}

func (a Actor) userName() string {
	if n := strings.TrimSpace(a.Name); n != "" {
		return n
	}
	return SystemUserName
}
