// File: internal/session/session.go

// Package session persists authenticated browser state between runs so a
// course download does not require logging in every time.
package session

import "time"

// Cookie is a single browser cookie in the shape the DevTools protocol
// reports it. Expires is seconds since the Unix epoch; a non-positive value
// means the cookie is session-scoped.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	Secure   bool    `json:"secure"`
	HTTPOnly bool    `json:"httpOnly"`
}

// Session is the serialized unit the store reads and writes.
type Session struct {
	// SavedAt records when the cookies were harvested.
	SavedAt time.Time `json:"saved_at"`
	Cookies []Cookie  `json:"cookies"`
}

// Empty reports whether the session carries no cookies at all.
func (s *Session) Empty() bool {
	return s == nil || len(s.Cookies) == 0
}

// Get returns the value of the named cookie and whether it was present.
func (s *Session) Get(name string) (string, bool) {
	if s == nil {
		return "", false
	}
	for _, c := range s.Cookies {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}
