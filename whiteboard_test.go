/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDispatcher(t *testing.T, reg *Registry, name string) *dispatcher {
	t.Helper()

	u := newUser(name, nil)
	require.NoError(t, reg.connect(u))

	return &dispatcher{cfg: reg.cfg, reg: reg, user: u}
}

func TestCreateGameAck(t *testing.T) {
	reg := testRegistry(t)
	d := testDispatcher(t, reg, "alice")

	m, err := parseMessage([]byte(`{
		"topic": {"type": "GAME", "operation": "CREATE"},
		"username": "alice",
		"value": {"difficulty": "HARD"}
	}`))
	require.NoError(t, err)
	d.handleFrame(m)

	ack := recv(t, d.user)
	assert.Equal(t, OpCreate, ack.Topic.Operation)
	assert.Equal(t, true, ack.Value["success"])
	assert.Equal(t, "HARD", ack.Value["difficulty"])
	assert.Equal(t, []any{"alice"}, ack.Value["members"])

	gameID, _ := ack.Value["game_id"].(string)
	assert.Len(t, gameID, 8)
	assert.Equal(t, gameID, d.currentGameID)

	length := ack.Value["game_length"].(float64)
	assert.GreaterOrEqual(t, int(length), reg.cfg.gameLengthMin)
	assert.LessOrEqual(t, int(length), reg.cfg.gameLengthMax)
}

func TestCreateGameBadDifficulty(t *testing.T) {
	reg := testRegistry(t)
	d := testDispatcher(t, reg, "alice")

	m, err := parseMessage([]byte(`{
		"topic": {"type": "GAME", "operation": "CREATE"},
		"username": "alice",
		"value": {"difficulty": "IMPOSSIBLE"}
	}`))
	require.NoError(t, err)
	d.handleFrame(m)

	got := recv(t, d.user)
	assert.Equal(t, TopicError, got.Topic.Type)
	assert.Equal(t, string(errValidation), got.Value["exception"])
}

func TestJoinBroadcastsAndReplays(t *testing.T) {
	reg := testRegistry(t)
	creator := testDispatcher(t, reg, "alice")
	joiner := testDispatcher(t, reg, "bob")

	creator.createGame(&GameMessage{GameID: "myroom"})
	drain(creator.user)

	// Something to replay.
	g, err := reg.game("myroom")
	require.NoError(t, err)
	g.broadcast(&Message{
		Topic: Topic{Type: TopicChat, Operation: OpSay},
		Value: &ChatMessage{Sender: "alice", Message: "welcome"},
	})
	drain(creator.user)

	joiner.joinGame("myroom")
	assert.Equal(t, "myroom", joiner.currentGameID)

	// Existing members see the join.
	got := recv(t, creator.user)
	assert.Equal(t, OpJoin, got.Topic.Operation)
	assert.Equal(t, []any{"alice", "bob"}, got.Value["members"])

	// The newcomer sees the join, then the history.
	assert.Equal(t, OpJoin, recv(t, joiner.user).Topic.Operation)
	replayed := recv(t, joiner.user)
	assert.Equal(t, TopicChat, replayed.Topic.Type)
	assert.Equal(t, "welcome", replayed.Value["message"])
}

func TestJoinUnknownGame(t *testing.T) {
	reg := testRegistry(t)
	d := testDispatcher(t, reg, "alice")

	d.joinGame("nowhere")

	got := recv(t, d.user)
	assert.Equal(t, TopicError, got.Topic.Type)
	assert.Equal(t, string(errGameNotExist), got.Value["exception"])
}

func TestLeaveBroadcasts(t *testing.T) {
	reg := testRegistry(t)
	creator := testDispatcher(t, reg, "alice")
	joiner := testDispatcher(t, reg, "bob")

	creator.createGame(&GameMessage{GameID: "myroom"})
	joiner.joinGame("myroom")
	drain(creator.user)
	drain(joiner.user)

	joiner.leaveGame("myroom")
	assert.Empty(t, joiner.currentGameID)

	got := recv(t, creator.user)
	assert.Equal(t, OpLeave, got.Topic.Operation)
	assert.Equal(t, []any{"alice"}, got.Value["members"])

	// The leaver gets the same acknowledgement.
	assert.Equal(t, OpLeave, recv(t, joiner.user).Topic.Operation)
}

func TestLeaveByCreatorEndsGame(t *testing.T) {
	reg := testRegistry(t)
	creator := testDispatcher(t, reg, "alice")
	joiner := testDispatcher(t, reg, "bob")

	creator.createGame(&GameMessage{GameID: "myroom"})
	joiner.joinGame("myroom")
	drain(creator.user)
	drain(joiner.user)

	creator.leaveGame("myroom")

	for _, d := range []*dispatcher{creator, joiner} {
		got := recv(t, d.user)
		assert.Equal(t, TopicError, got.Topic.Type)
		assert.Equal(t, string(errGameEnded), got.Value["exception"])
	}

	_, err := reg.game("myroom")
	assert.Equal(t, errGameNotExist, kindOf(err))
}

func TestEndGameOnlyCreator(t *testing.T) {
	reg := testRegistry(t)
	creator := testDispatcher(t, reg, "alice")
	joiner := testDispatcher(t, reg, "bob")

	creator.createGame(&GameMessage{GameID: "myroom"})
	joiner.joinGame("myroom")
	drain(creator.user)
	drain(joiner.user)

	joiner.endGame("myroom")

	got := recv(t, joiner.user)
	assert.Equal(t, string(errNotAllowedOperation), got.Value["exception"])
	assert.Empty(t, creator.user.send)

	_, err := reg.game("myroom")
	require.NoError(t, err)
}

func TestOperationsAfterEndReportGameNotExist(t *testing.T) {
	reg := testRegistry(t)
	creator := testDispatcher(t, reg, "alice")
	joiner := testDispatcher(t, reg, "bob")

	creator.createGame(&GameMessage{GameID: "myroom"})
	joiner.joinGame("myroom")
	creator.endGame("myroom")
	drain(creator.user)
	drain(joiner.user)

	joiner.startGame("myroom")

	got := recv(t, joiner.user)
	assert.Equal(t, TopicError, got.Topic.Type)
	assert.Equal(t, string(errGameNotExist), got.Value["exception"])
}

func TestDrawRequiresGame(t *testing.T) {
	reg := testRegistry(t)
	d := testDispatcher(t, reg, "alice")

	m, err := parseMessage([]byte(`{
		"topic": {"type": "DRAW", "operation": "LINE"},
		"username": "alice",
		"value": {"draw_id": "d1", "data": {"line": [0,0,1,1], "colour": [0,0,0], "width": 3}}
	}`))
	require.NoError(t, err)
	d.handleFrame(m)

	got := recv(t, d.user)
	assert.Equal(t, TopicError, got.Topic.Type)
	assert.Equal(t, string(errGameNotStarted), got.Value["exception"])
}

func TestDrawEchoesToRoom(t *testing.T) {
	reg := testRegistry(t)
	creator := testDispatcher(t, reg, "alice")
	joiner := testDispatcher(t, reg, "bob")

	creator.createGame(&GameMessage{GameID: "myroom"})
	joiner.joinGame("myroom")
	drain(creator.user)
	drain(joiner.user)

	g, err := reg.game("myroom")
	require.NoError(t, err)

	// Drawing is allowed in the lobby too, so late joiners can doodle.
	m, err := parseMessage([]byte(`{
		"topic": {"type": "DRAW", "operation": "RECT"},
		"username": "alice",
		"game_id": "myroom",
		"value": {"draw_id": "d2", "data": {"pos": [1,2], "colour": [0,0,0], "size": [3,4]}}
	}`))
	require.NoError(t, err)
	creator.handleFrame(m)

	for _, d := range []*dispatcher{creator, joiner} {
		got := recv(t, d.user)
		assert.Equal(t, TopicDraw, got.Topic.Type)
		assert.Equal(t, OpRect, got.Topic.Operation)
	}

	g.mu.Lock()
	assert.Len(t, g.history, 1)
	g.mu.Unlock()
}

func TestInboundTrickRejected(t *testing.T) {
	reg := testRegistry(t)
	d := testDispatcher(t, reg, "alice")

	m, err := parseMessage([]byte(`{
		"topic": {"type": "TRICK", "operation": "SNAIL"},
		"username": "alice",
		"value": {"game_id": "myroom", "description": "nope"}
	}`))
	require.NoError(t, err)
	d.handleFrame(m)

	got := recv(t, d.user)
	assert.Equal(t, TopicError, got.Topic.Type)
	assert.Equal(t, string(errNotAllowedOperation), got.Value["exception"])
}

func TestServerOnlyGameOperations(t *testing.T) {
	reg := testRegistry(t)
	d := testDispatcher(t, reg, "alice")

	for _, op := range []Operation{OpTurn, OpWin, OpMembers} {
		d.handleFrame(&Message{
			Topic: Topic{Type: TopicGame, Operation: op},
			Value: &GameMessage{GameID: "myroom"},
		})

		got := recv(t, d.user)
		assert.Equal(t, string(errNotAllowedOperation), got.Value["exception"])
	}
}

func TestRouteErrorBroadcastKinds(t *testing.T) {
	reg := testRegistry(t)
	creator := testDispatcher(t, reg, "alice")
	joiner := testDispatcher(t, reg, "bob")

	creator.createGame(&GameMessage{GameID: "myroom"})
	joiner.joinGame("myroom")
	drain(creator.user)
	drain(joiner.user)

	// State errors with a known room reach every member.
	joiner.routeError("myroom", newGameError(errGameAlreadyStarted, "already running"))
	for _, d := range []*dispatcher{creator, joiner} {
		got := recv(t, d.user)
		assert.Equal(t, string(errGameAlreadyStarted), got.Value["exception"])
	}

	// Everything else goes back to the sender only.
	joiner.routeError("myroom", newGameError(errValidation, "bad frame"))
	assert.Equal(t, string(errValidation), recv(t, joiner.user).Value["exception"])
	assert.Empty(t, creator.user.send)

	// Unknown rooms fall back to the sender as GameNotExist.
	joiner.routeError("nowhere", newGameError(errGameEnded, "gone"))
	assert.Equal(t, string(errGameNotExist), recv(t, joiner.user).Value["exception"])
}

func TestNewErrorEnvelope(t *testing.T) {
	env := newErrorEnvelope("alice", "myroom", errors.New("boom"))

	assert.Equal(t, TopicError, env.Topic.Type)
	assert.Equal(t, OpBroadcast, env.Topic.Operation)
	assert.Equal(t, "alice", env.Username)
	assert.Equal(t, "myroom", env.GameID)

	v, ok := env.Value.(*ErrorMessage)
	require.True(t, ok)
	assert.Equal(t, "boom", v.Value)
	_, err := uuid.Parse(v.ErrorID)
	require.NoError(t, err)

	data, err := json.Marshal(env)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"exception"`)
}