package model

import "time"

// Profile is a read-only snapshot of a candidate shown during discovery.
// Snapshots are re-fetched, never patched, once queued.
type Profile struct {
	ID               string    `json:"id"`
	DisplayName      string    `json:"display_name"`
	Age              int       `json:"age"`
	Gender           string    `json:"gender"`
	AvatarURL        string    `json:"avatar_url"`
	PhotoURLs        []string  `json:"photo_urls"`
	Bio              string    `json:"bio"`
	Province         string    `json:"province"`
	Occupation       string    `json:"occupation"`
	Education        string    `json:"education"`
	Smokes           bool      `json:"smokes"`
	Drinks           bool      `json:"drinks"`
	HasChildren      bool      `json:"has_children"`
	Interests        []string  `json:"interests"`
	Languages        []string  `json:"languages"`
	Religion         string    `json:"religion"`
	Politics         string    `json:"politics"`
	RelationshipGoal string    `json:"relationship_goal"`
	CreatedAt        time.Time `json:"created_at"`
}

// FilterQuery is the predicate set applied when fetching discovery
// candidates. Zero-valued optional fields mean "any".
type FilterQuery struct {
	ExcludeIDs       []string
	AgeMin           int
	AgeMax           int
	Gender           string
	Province         string
	RelationshipGoal string
	Limit            int
}
