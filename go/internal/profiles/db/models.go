package db

import (
	"database/sql"
	"time"
)

type Profile struct {
	ID           string
	Username     sql.NullString
	Rating       int32
	GamesPlayed  int32
	Wins         int32
	Losses       int32
	Draws        int32
	RegisteredAt time.Time
	UpdatedAt    time.Time
}
