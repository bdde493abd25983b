package store

import "time"

type User struct {
	ID                    string
	Email                 string
	DisplayName           string
	PasswordHash          string
	Role                  string
	Bio                   string
	AvatarURL             string
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	DeactivatedAt         *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type UserSettings struct {
	UserID             string
	EmailNotifications bool
	PublicProfile      bool
	Language           string
	UpdatedAt          time.Time
}

type Series struct {
	ID           string
	Title        string
	TitleEnglish string
	Synopsis     string
	Kind         string // anime | manga
	Status       string // airing | finished | upcoming
	Episodes     int
	Year         int
	StudioID     string
	StudioName   string
	CoverURL     string
	Genres       []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SeriesFilter holds the validated, conjunctive listing filters.
type SeriesFilter struct {
	Search  string
	Kind    string
	Status  string
	GenreID string
	Sort    string // title | year | created
}

type Genre struct {
	ID        string
	Name      string
	Slug      string
	CreatedAt time.Time
}

type Tag struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

type Studio struct {
	ID        string
	Name      string
	Country   string
	CreatedAt time.Time
}

type Platform struct {
	ID        string
	Name      string
	URL       string
	CreatedAt time.Time
}

// Relationship generalizes follows, favourites, list memberships and
// tracking. The (kind, subject, object) triple is unique at the storage
// layer; that constraint, not application logic, is the authority.
type Relationship struct {
	Kind      string
	SubjectID string
	ObjectID  string
	CreatedAt time.Time
}

const (
	RelationFollow   = "follow"
	RelationFavorite = "favorite"
	RelationList     = "list"
	RelationTracking = "tracking"
)

type List struct {
	ID          string
	OwnerID     string
	OwnerName   string
	Title       string
	Description string
	IsPublic    bool
	ItemCount   int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ListEntry is a series membership row joined with catalog data, used for
// list pages and PDF export.
type ListEntry struct {
	SeriesID string
	Title    string
	Kind     string
	Year     int
	AddedAt  time.Time
}

type Comment struct {
	ID         string
	SeriesID   string
	AuthorID   string
	AuthorName string
	Body       string
	CreatedAt  time.Time
}

type Notification struct {
	ID        string
	UserID    string
	Kind      string
	ActorID   string
	ActorName string
	SubjectID string
	Body      string
	ReadAt    *time.Time
	CreatedAt time.Time
}
