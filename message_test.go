/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMessageGame(t *testing.T) {
	m, err := parseMessage([]byte(`{
		"topic": {"type": "GAME", "operation": "CREATE"},
		"username": "alice",
		"value": {"difficulty": "EASY"}
	}`))
	require.NoError(t, err)

	assert.Equal(t, TopicGame, m.Topic.Type)
	assert.Equal(t, OpCreate, m.Topic.Operation)
	assert.Equal(t, "alice", m.Username)

	v, ok := m.Value.(*GameMessage)
	require.True(t, ok)
	assert.Equal(t, "EASY", v.Difficulty)
}

func TestParseMessageDraw(t *testing.T) {
	m, err := parseMessage([]byte(`{
		"topic": {"type": "DRAW", "operation": "LINE"},
		"username": "alice",
		"game_id": "myroom",
		"value": {"draw_id": "d1", "data": {"line": [0,0,1,1], "colour": [0,0,0], "width": 3}}
	}`))
	require.NoError(t, err)

	v, ok := m.Value.(*PictureMessage)
	require.True(t, ok)
	assert.Equal(t, "d1", v.DrawID)
}

func TestParseMessageRejectsUnknownTopic(t *testing.T) {
	_, err := parseMessage([]byte(`{"topic": {"type": "NOPE", "operation": "SAY"}, "value": {}}`))
	require.Error(t, err)
	assert.Equal(t, errValidation, kindOf(err))
}

func TestParseMessageRejectsWrongOperation(t *testing.T) {
	_, err := parseMessage([]byte(`{"topic": {"type": "CHAT", "operation": "LINE"}, "value": {}}`))
	require.Error(t, err)
	assert.Equal(t, errValidation, kindOf(err))
}

func TestParseMessageNilValue(t *testing.T) {
	for _, op := range []Operation{OpLeave, OpEnd, OpStart} {
		m, err := parseMessage([]byte(`{
			"topic": {"type": "GAME", "operation": "` + string(op) + `"},
			"username": "alice",
			"game_id": "myroom"
		}`))
		require.NoError(t, err)
		assert.Nil(t, m.Value)
	}

	_, err := parseMessage([]byte(`{"topic": {"type": "GAME", "operation": "CREATE"}, "username": "alice"}`))
	require.Error(t, err)
	assert.Equal(t, errValidation, kindOf(err))

	_, err = parseMessage([]byte(`{"topic": {"type": "CHAT", "operation": "SAY"}, "username": "alice", "value": null}`))
	require.Error(t, err)
}

func TestParseMessageDrawDataVariants(t *testing.T) {
	// RECT needs pos and size pairs.
	_, err := parseMessage([]byte(`{
		"topic": {"type": "DRAW", "operation": "RECT"},
		"value": {"draw_id": "d1", "data": {"line": [0,0,1,1]}}
	}`))
	require.Error(t, err)
	assert.Equal(t, errValidation, kindOf(err))

	_, err = parseMessage([]byte(`{
		"topic": {"type": "DRAW", "operation": "RECT"},
		"value": {"draw_id": "d1", "data": {"pos": [1,2], "colour": [0,0,0], "size": [3,4]}}
	}`))
	require.NoError(t, err)

	// LINE needs a line.
	_, err = parseMessage([]byte(`{
		"topic": {"type": "DRAW", "operation": "LINE"},
		"value": {"draw_id": "d1", "data": {"pos": [1,2], "size": [3,4]}}
	}`))
	require.Error(t, err)
}

func TestParseMessageEmptyChat(t *testing.T) {
	_, err := parseMessage([]byte(`{
		"topic": {"type": "CHAT", "operation": "SAY"},
		"value": {"sender": "alice", "message": ""}
	}`))
	require.Error(t, err)
	assert.Equal(t, errValidation, kindOf(err))
}

func TestParseMessageMalformedJSON(t *testing.T) {
	_, err := parseMessage([]byte(`{`))
	require.Error(t, err)
	assert.Equal(t, errValidation, kindOf(err))
}

func TestMarshalKeepsGameIDKey(t *testing.T) {
	data, err := json.Marshal(&Message{
		Topic:    Topic{Type: TopicGame, Operation: OpCreate},
		Username: "alice",
	})
	require.NoError(t, err)

	// The envelope always carries game_id, even before the user has a game.
	assert.Contains(t, string(data), `"game_id"`)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, errGameNotExist, kindOf(newGameError(errGameNotExist, "gone")))
	assert.Equal(t, errValidation, kindOf(errors.New("plain")))
}