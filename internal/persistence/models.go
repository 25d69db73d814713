package persistence

import "time"

// Member is a user account able to organize and attend rendez-vous.
type Member struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Group is a community that may enable the rendez-vous extension.
type Group struct {
	ID                string
	Slug              string
	Name              string
	RendezVousEnabled bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// GroupMembership links a member to a group.
type GroupMembership struct {
	GroupID  string
	MemberID string
	IsAdmin  bool
	JoinedAt time.Time
}

// VoteCell is a stored (attendee, date) vote.
type VoteCell struct {
	MemberID string
	Date     time.Time
	Vote     string
}

// RendezVous is the stored form of a meeting proposal together with its
// candidate dates, attendees and vote cells.
type RendezVous struct {
	ID             string
	OrganizerID    string
	GroupID        *string
	Title          string
	Description    string
	Venue          string
	Duration       int
	Status         string
	ConfirmedAt    *time.Time
	CandidateDates []time.Time
	Attendees      []string
	Votes          []VoteCell
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Activity is a stream entry describing a published change.
type Activity struct {
	ID              string
	Type            string
	Component       string
	UserID          string
	ItemID          string
	SecondaryItemID string
	RendezVousID    string
	PrimaryLink     string
	Title           string
	Content         string
	CreatedAt       time.Time
}

// Notification tells one member about a change to a rendez-vous.
type Notification struct {
	ID           string
	RecipientID  string
	ActorID      string
	RendezVousID string
	Kind         string
	CreatedAt    time.Time
	ReadAt       *time.Time
}
