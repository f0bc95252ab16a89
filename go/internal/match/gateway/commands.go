package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mcdev12/tictactoe/go/internal/match/orchestrator"
	"github.com/mcdev12/tictactoe/go/internal/models"
	"github.com/rs/zerolog/log"
)

// CommandHandler executes lifecycle commands sent over the socket. The
// orchestrator satisfies it.
type CommandHandler interface {
	RequestMatch(ctx context.Context, p models.Participant) error
	CancelMatchRequest(ctx context.Context, p models.Participant) error
	SubmitMove(ctx context.Context, p models.Participant, row, col int) error
	Resign(ctx context.Context, p models.Participant) error
}

type CommandType string

const (
	CommandRequestMatch CommandType = "request_match"
	CommandCancelMatch  CommandType = "cancel_match"
	CommandMove         CommandType = "move"
	CommandResign       CommandType = "resign"
)

// Command is a client message.
type Command struct {
	Type CommandType `json:"type"`
	Row  int         `json:"row"`
	Col  int         `json:"col"`
}

// Reply acknowledges a command. Kind is set when the command was rejected.
type Reply struct {
	Type    string      `json:"type"`
	Command CommandType `json:"command"`
	OK      bool        `json:"ok"`
	Kind    string      `json:"kind,omitempty"`
	Error   string      `json:"error,omitempty"`
}

const replyType = "command_result"

func (cm *ConnectionManager) dispatch(ctx context.Context, p models.Participant, cmd Command) error {
	if cm.commands == nil {
		return fmt.Errorf("commands are not accepted on this connection")
	}
	switch cmd.Type {
	case CommandRequestMatch:
		return cm.commands.RequestMatch(ctx, p)
	case CommandCancelMatch:
		return cm.commands.CancelMatchRequest(ctx, p)
	case CommandMove:
		return cm.commands.SubmitMove(ctx, p, cmd.Row, cmd.Col)
	case CommandResign:
		return cm.commands.Resign(ctx, p)
	default:
		return fmt.Errorf("unknown command %q", cmd.Type)
	}
}

// handleClientMessage runs one command and answers on the same connection.
func (c *Connection) handleClientMessage(message []byte) {
	var cmd Command
	reply := Reply{Type: replyType}

	if err := json.Unmarshal(message, &cmd); err != nil {
		reply.Error = "malformed command"
	} else {
		reply.Command = cmd.Type
		ctx, cancel := context.WithTimeout(context.Background(), c.Manager.config.CommandTimeout)
		err := c.Manager.dispatch(ctx, models.Human(c.ParticipantID), cmd)
		cancel()

		if err == nil {
			reply.OK = true
		} else {
			reply.Error = err.Error()
			if kind, ok := orchestrator.KindOf(err); ok {
				reply.Kind = string(kind)
			}
		}
	}

	log.Debug().
		Str("connection_id", c.ID).
		Str("participant_id", c.ParticipantID).
		Str("command", string(cmd.Type)).
		Bool("ok", reply.OK).
		Msg("client command handled")

	data, err := json.Marshal(reply)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal command reply")
		return
	}
	c.Manager.reply(c, data)
}
