package session

import (
	"errors"
	"strings"
	"time"
)

// ErrInvalidContactID is returned when a store operation receives an unusable key
var ErrInvalidContactID = errors.New("invalid contact id")

// Epoch is the implicit value of an unset check-in timestamp.
var Epoch = time.Unix(0, 0).UTC()

// NameSource records where DisplayName came from
type NameSource string

const (
	NameSourceNone     NameSource = ""
	NameSourceProfile  NameSource = "profile"
	NameSourceExplicit NameSource = "explicit"
)

// JournalEntry is one diary note
type JournalEntry struct {
	At   time.Time `json:"at"`
	Text string    `json:"text"`
}

// Session is the mutable state kept for one contact
type Session struct {
	ContactID      string         `json:"contact_id"`
	DisplayName    string         `json:"display_name,omitempty"`
	NameSource     NameSource     `json:"name_source,omitempty"`
	FirstContactAt time.Time      `json:"first_contact_at"`
	LastCheckinAt  time.Time      `json:"last_emotional_checkin_at"`
	Journal        []JournalEntry `json:"journal_entries,omitempty"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// New returns the default session for contactID
func New(contactID string) *Session {
	return &Session{ContactID: contactID}
}

// ValidateContactID rejects empty or control-character keys
func ValidateContactID(contactID string) error {
	if strings.TrimSpace(contactID) == "" {
		return ErrInvalidContactID
	}
	if strings.ContainsAny(contactID, "\x00\r\n") {
		return ErrInvalidContactID
	}
	return nil
}

// IsFirstContact reports whether no message has been processed for this contact yet
func (s *Session) IsFirstContact() bool {
	return s.FirstContactAt.IsZero()
}

// MarkFirstContact records now as the first contact time if none is set
func (s *Session) MarkFirstContact(now time.Time) bool {
	if !s.FirstContactAt.IsZero() {
		return false
	}
	s.FirstContactAt = now.UTC()
	return true
}

// LearnName applies name from source and reports whether the session changed.
// Provider metadata only fills an empty name; an explicit introduction always wins.
func (s *Session) LearnName(name string, source NameSource) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}

	switch source {
	case NameSourceExplicit:
		if s.DisplayName == name && s.NameSource == NameSourceExplicit {
			return false
		}
	case NameSourceProfile:
		if s.DisplayName != "" {
			return false
		}
	default:
		return false
	}

	s.DisplayName = name
	s.NameSource = source
	return true
}

// AppendJournal adds a note at the end of the journal
func (s *Session) AppendJournal(at time.Time, text string) {
	s.Journal = append(s.Journal, JournalEntry{At: at.UTC(), Text: text})
}

// LastJournal returns the most recent note
func (s *Session) LastJournal() (JournalEntry, bool) {
	if len(s.Journal) == 0 {
		return JournalEntry{}, false
	}
	return s.Journal[len(s.Journal)-1], true
}

// LastCheckin returns LastCheckinAt, or Epoch when it was never set
func (s *Session) LastCheckin() time.Time {
	if s.LastCheckinAt.IsZero() {
		return Epoch
	}
	return s.LastCheckinAt
}

// CheckinDue reports whether more than interval passed since the last check-in
func (s *Session) CheckinDue(now time.Time, interval time.Duration) bool {
	return now.Sub(s.LastCheckin()) > interval
}

// MarkCheckin moves LastCheckinAt forward to now. Older values are ignored.
func (s *Session) MarkCheckin(now time.Time) bool {
	now = now.UTC()
	if !now.After(s.LastCheckinAt) {
		return false
	}
	s.LastCheckinAt = now
	return true
}

// Clone returns a deep copy
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.Journal != nil {
		c.Journal = make([]JournalEntry, len(s.Journal))
		copy(c.Journal, s.Journal)
	}
	return &c
}
