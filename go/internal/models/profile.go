package models

import "time"

// DefaultRating is the rating a newly registered participant starts with.
const DefaultRating = 100

// Profile holds the rating and cumulative statistics of a human participant
type Profile struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Rating       int       `json:"rating"`
	GamesPlayed  int       `json:"games_played"`
	Wins         int       `json:"wins"`
	Losses       int       `json:"losses"`
	Draws        int       `json:"draws"`
	RegisteredAt time.Time `json:"registered_at"`
}

// WinRate returns the share of games won as a percentage.
func (p Profile) WinRate() float64 {
	if p.GamesPlayed == 0 {
		return 0
	}
	return float64(p.Wins) / float64(p.GamesPlayed) * 100
}
