// Package session holds per-(channel,user) conversation state. The store is
// injectable so a distributed cache can replace the in-memory map; Update
// serializes all mutations for one key, so concurrent messages for the same
// user never interleave read-modify-write cycles.
package session

import "maps"

// Profile is the durable subset of session data that survives flow resets.
// A field, once set, is only replaced by a newer explicit extraction.
type Profile struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// Session is the mutable per-user dialogue state. DatePref remembers a
// relative-date choice ("tomorrow") until an explicit time arrives; -1 means
// unset.
type Session struct {
	Channel       string
	UserID        string
	Intent        string
	Slots         map[string]string
	Lang          string
	FallbackCount int
	Profile       Profile
	AskCounts     map[string]int
	LastAskedKey  string
	LastItemID    string
	LastQuery     string
	DatePref      int
	Escalated     bool
}

func New(channel, userID, lang string) *Session {
	return &Session{
		Channel:   channel,
		UserID:    userID,
		Lang:      lang,
		Slots:     make(map[string]string),
		AskCounts: make(map[string]int),
		DatePref:  -1,
	}
}

// ResetFlow clears everything flow-scoped on completion, keeping only the
// profile and language.
func (s *Session) ResetFlow() {
	s.Intent = ""
	s.Slots = make(map[string]string)
	s.AskCounts = make(map[string]int)
	s.LastAskedKey = ""
	s.DatePref = -1
	s.Escalated = false
}

// PruneSlots drops any slot key outside the allowed set for the active
// intent.
func (s *Session) PruneSlots(allowed map[string]bool) {
	for k := range s.Slots {
		if !allowed[k] {
			delete(s.Slots, k)
		}
	}
}

func (s *Session) clone() *Session {
	cp := *s
	cp.Slots = maps.Clone(s.Slots)
	cp.AskCounts = maps.Clone(s.AskCounts)
	return &cp
}
