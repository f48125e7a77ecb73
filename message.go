/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"fmt"
)

// Topic types and operations exchanged with clients. Every frame is a single
// JSON Message envelope whose value payload depends on the topic type.

type TopicType string

const (
	TopicGame  TopicType = "GAME"
	TopicDraw  TopicType = "DRAW"
	TopicChat  TopicType = "CHAT"
	TopicError TopicType = "ERROR"
	TopicTrick TopicType = "TRICK"
)

type Operation string

const (
	OpCreate  Operation = "CREATE"
	OpJoin    Operation = "JOIN"
	OpLeave   Operation = "LEAVE"
	OpEnd     Operation = "END"
	OpStart   Operation = "START"
	OpTurn    Operation = "TURN"
	OpWin     Operation = "WIN"
	OpMembers Operation = "MEMBERS"

	OpLine  Operation = "LINE"
	OpRect  Operation = "RECT"
	OpFrame Operation = "FRAME"

	OpSay Operation = "SAY"

	OpBroadcast Operation = "BROADCAST"

	OpNothing    Operation = "NOTHING"
	OpSnail      Operation = "SNAIL"
	OpPacman     Operation = "PACMAN"
	OpEarthquake Operation = "EARTHQUAKE"
	OpLandslide  Operation = "LANDSLIDE"
)

var topicOperations = map[TopicType]map[Operation]bool{
	TopicGame:  {OpCreate: true, OpJoin: true, OpLeave: true, OpEnd: true, OpStart: true, OpTurn: true, OpWin: true, OpMembers: true},
	TopicDraw:  {OpLine: true, OpRect: true, OpFrame: true},
	TopicChat:  {OpSay: true},
	TopicError: {OpBroadcast: true},
	TopicTrick: {OpNothing: true, OpSnail: true, OpPacman: true, OpEarthquake: true, OpLandslide: true},
}

// Operations whose value payload may be omitted entirely.
var nilValueAllowed = map[Operation]bool{
	OpLeave: true,
	OpEnd:   true,
	OpStart: true,
}

type Topic struct {
	Type      TopicType `json:"type"`
	Operation Operation `json:"operation"`
}

type Message struct {
	Topic    Topic  `json:"topic"`
	Username string `json:"username"`
	GameID   string `json:"game_id"`
	Value    any    `json:"value"`
}

// LineData carries a polyline (LINE) or a whole-canvas frame (FRAME).
type LineData struct {
	Line   []float64 `json:"line"`
	Colour []float64 `json:"colour"`
	Width  int       `json:"width"`
}

// RectData carries a filled rectangle.
type RectData struct {
	Pos    []float64 `json:"pos"`
	Colour []float64 `json:"colour"`
	Size   []float64 `json:"size"`
}

// PictureMessage is a drawable. Data is kept raw so broadcasts echo the
// client's bytes unchanged; decodeData validates it against the operation.
type PictureMessage struct {
	DrawID string          `json:"draw_id"`
	Data   json.RawMessage `json:"data"`
}

func (p *PictureMessage) decodeData(op Operation) error {
	if len(p.Data) == 0 {
		return fmt.Errorf("missing draw data for operation %s", op)
	}

	switch op {
	case OpLine, OpFrame:
		var d LineData
		if err := json.Unmarshal(p.Data, &d); err != nil {
			return fmt.Errorf("draw data does not match operation %s: %w", op, err)
		}
		if d.Line == nil {
			return fmt.Errorf("draw data for operation %s requires a line", op)
		}
	case OpRect:
		var d RectData
		if err := json.Unmarshal(p.Data, &d); err != nil {
			return fmt.Errorf("draw data does not match operation %s: %w", op, err)
		}
		if len(d.Pos) != 2 || len(d.Size) != 2 {
			return fmt.Errorf("draw data for operation %s requires pos and size pairs", op)
		}
	}

	return nil
}

type TurnMessage struct {
	TurnNo   int            `json:"turn_no"`
	Active   bool           `json:"active"`
	Level    string         `json:"level"`
	Drawer   string         `json:"drawer,omitempty"`
	Duration int            `json:"duration"`
	Phrase   string         `json:"phrase"`
	Winner   string         `json:"winner,omitempty"`
	Score    map[string]int `json:"score"`
}

type GameMessage struct {
	Success    bool         `json:"success"`
	GameID     string       `json:"game_id"`
	Difficulty string       `json:"difficulty,omitempty"`
	GameLength int          `json:"game_length,omitempty"`
	Turn       *TurnMessage `json:"turn,omitempty"`
	Members    []string     `json:"members,omitempty"`
}

type ChatMessage struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

type ErrorMessage struct {
	Exception string `json:"exception"`
	Value     string `json:"value"`
	ErrorID   string `json:"error_id"`
}

type TrickMessage struct {
	GameID      string `json:"game_id"`
	Description string `json:"description"`
}

// parseMessage decodes an inbound frame and enforces the
// topic-operation-payload coherence rules. Every failure is a
// ValidationError.
func parseMessage(data []byte) (*Message, error) {
	var raw struct {
		Topic    Topic           `json:"topic"`
		Username string          `json:"username"`
		GameID   string          `json:"game_id"`
		Value    json.RawMessage `json:"value"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, newGameError(errValidation, "malformed frame: %v", err)
	}

	ops, ok := topicOperations[raw.Topic.Type]
	if !ok {
		return nil, newGameError(errValidation, "unknown topic type: %q", raw.Topic.Type)
	}
	if !ops[raw.Topic.Operation] {
		return nil, newGameError(errValidation, "operation %q not allowed for topic %s", raw.Topic.Operation, raw.Topic.Type)
	}

	m := Message{
		Topic:    raw.Topic,
		Username: raw.Username,
		GameID:   raw.GameID,
	}

	if len(raw.Value) == 0 || string(raw.Value) == "null" {
		if !nilValueAllowed[raw.Topic.Operation] {
			return nil, newGameError(errValidation, "operation %s requires a value payload", raw.Topic.Operation)
		}
		return &m, nil
	}

	switch raw.Topic.Type {
	case TopicGame:
		var v GameMessage
		if err := json.Unmarshal(raw.Value, &v); err != nil {
			return nil, newGameError(errValidation, "value does not match topic %s: %v", raw.Topic.Type, err)
		}
		m.Value = &v
	case TopicDraw:
		var v PictureMessage
		if err := json.Unmarshal(raw.Value, &v); err != nil {
			return nil, newGameError(errValidation, "value does not match topic %s: %v", raw.Topic.Type, err)
		}
		if err := v.decodeData(raw.Topic.Operation); err != nil {
			return nil, newGameError(errValidation, "%v", err)
		}
		m.Value = &v
	case TopicChat:
		var v ChatMessage
		if err := json.Unmarshal(raw.Value, &v); err != nil {
			return nil, newGameError(errValidation, "value does not match topic %s: %v", raw.Topic.Type, err)
		}
		if v.Message == "" {
			return nil, newGameError(errValidation, "chat message requires text")
		}
		m.Value = &v
	case TopicError:
		var v ErrorMessage
		if err := json.Unmarshal(raw.Value, &v); err != nil {
			return nil, newGameError(errValidation, "value does not match topic %s: %v", raw.Topic.Type, err)
		}
		m.Value = &v
	case TopicTrick:
		var v TrickMessage
		if err := json.Unmarshal(raw.Value, &v); err != nil {
			return nil, newGameError(errValidation, "value does not match topic %s: %v", raw.Topic.Type, err)
		}
		m.Value = &v
	}

	return &m, nil
}

// Wire exception kinds, matching the exception field of error envelopes.
type errKind string

const (
	errValidation            errKind = "ValidationError"
	errGameNotStarted        errKind = "GameNotStarted"
	errGameAlreadyStarted    errKind = "GameAlreadyStarted"
	errGameEnded             errKind = "GameEnded"
	errGameNotExist          errKind = "GameNotExist"
	errGameExists            errKind = "GameExists"
	errUserNotExist          errKind = "UserNotExist"
	errUserAlreadyExists     errKind = "UserAlreadyExists"
	errNotEnoughPlayers      errKind = "NotEnoughPlayers"
	errCannotStartNotOwnGame errKind = "CannotStartNotOwnGame"
	errNotAllowedOperation   errKind = "NotAllowedOperation"
	errTransportClosed       errKind = "TransportClosed"
)

// Kinds whose error envelopes are broadcast to the room when a game id is
// known; everything else is delivered to the originating user only.
var broadcastKinds = map[errKind]bool{
	errGameNotStarted:        true,
	errGameAlreadyStarted:    true,
	errGameEnded:             true,
	errNotEnoughPlayers:      true,
	errCannotStartNotOwnGame: true,
}

type gameError struct {
	kind errKind
	msg  string
}

func (e *gameError) Error() string {
	return e.msg
}

func newGameError(kind errKind, format string, args ...any) *gameError {
	return &gameError{
		kind: kind,
		msg:  fmt.Sprintf(format, args...),
	}
}

// kindOf extracts the wire exception kind from any error.
func kindOf(err error) errKind {
	if ge, ok := err.(*gameError); ok {
		return ge.kind
	}
	return errValidation
}