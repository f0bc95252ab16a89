package history

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mcdev12/tictactoe/go/internal/models"
	"github.com/sqlc-dev/pqtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type execCall struct {
	sql  string
	args []any
}

type fakeDB struct {
	calls   []execCall
	execErr error
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag("INSERT 0 1"), f.execErr
}

func (f *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func TestRecordMatchArguments(t *testing.T) {
	db := &fakeDB{}
	rec := NewRecorder(db)
	started := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

	err := rec.RecordMatch(context.Background(), models.MatchRecord{
		SessionID:   "s1",
		FirstID:     "a",
		VsSynthetic: true,
		Rated:       true,
		Board:       []string{"XXX", "OO.", "..."},
		Moves:       []models.MoveRecord{{Seq: 1, Row: 0, Col: 0, Mark: "X", At: started}},
		Outcome:     "win",
		Reason:      "line",
		WinnerID:    "a",
		FirstDelta:  17,
		StartedAt:   started,
		EndedAt:     started.Add(time.Minute),
	})
	require.NoError(t, err)
	require.Len(t, db.calls, 1)

	args := db.calls[0].args
	require.Len(t, args, 14)
	assert.Equal(t, "s1", args[0])
	assert.Equal(t, "a", *args[1].(*string))
	assert.Nil(t, args[2].(*string))
	assert.Equal(t, "XXX/OO./...", args[5])

	moves := args[6].(pqtype.NullRawMessage)
	require.True(t, moves.Valid)
	var decoded []models.MoveRecord
	require.NoError(t, json.Unmarshal(moves.RawMessage, &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "X", decoded[0].Mark)
}

func TestRecordMatchWrapsErrors(t *testing.T) {
	boom := errors.New("boom")
	rec := NewRecorder(&fakeDB{execErr: boom})

	err := rec.RecordMatch(context.Background(), models.MatchRecord{SessionID: "s1"})
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, rec.Migrate(context.Background()), boom)
}

func TestBoardRoundTrip(t *testing.T) {
	rows := []string{"X.O", ".X.", "O.X"}
	assert.Equal(t, rows, splitBoard(joinBoard(rows)))
	assert.Nil(t, splitBoard(""))
	assert.Equal(t, "", deref(nullText("")))
	assert.Equal(t, "x", deref(nullText("x")))
}
