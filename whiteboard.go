/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func registerWhiteboardGame(cfg *Config, phrases *phraseSource, mux *httprouter.Router) {
	reg := newRegistry(cfg, phrases)

	mux.GET(cfg.prefix+"/ws/:username", serveWhiteboard(cfg, reg))
	mux.GET(cfg.prefix+"/game/:gameid/qr", serveGameQR(reg))
}

func serveWhiteboard(cfg *Config, reg *Registry) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		username := strings.TrimSpace(ps.ByName("username"))
		if username == "" {
			http.Error(w, "missing username", http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "WS: Upgrade failed for %s: %v", realIP(r), err)
			return
		}

		user := newUser(username, conn)

		if err := reg.connect(user); err != nil {
			// The user was never registered, so write directly instead of
			// starting a pump.
			_ = conn.WriteJSON(newErrorEnvelope(username, "", err))
			_ = conn.Close()
			return
		}

		logf(cfg, "WS: User %q connected from %s", username, realIP(r))

		go user.writePump()

		d := dispatcher{
			cfg:  cfg,
			reg:  reg,
			user: user,
		}
		d.run()
	}
}

// dispatcher drives one connection's read loop. currentGameID tracks the
// room the user last created or joined, so cleanup on disconnect can leave
// it properly.
type dispatcher struct {
	cfg  *Config
	reg  *Registry
	user *User

	currentGameID string
}

func (d *dispatcher) run() {
	defer func() {
		if d.currentGameID != "" {
			d.leaveCurrentGame()
		}
		d.reg.disconnect(d.user)
		d.user.close()
		_ = d.user.conn.Close()
		logf(d.cfg, "WS: User %q disconnected", d.user.name)
	}()

	for {
		_, data, err := d.user.conn.ReadMessage()
		if err != nil {
			return
		}

		m, err := parseMessage(data)
		if err != nil {
			d.routeError("", err)
			continue
		}

		// Remember the room for teardown.
		if m.GameID != "" {
			d.currentGameID = m.GameID
		}

		d.handleFrame(m)
	}
}

func (d *dispatcher) handleFrame(m *Message) {
	switch m.Topic.Type {
	case TopicGame:
		d.handleGame(m)
	case TopicDraw:
		d.handleDraw(m)
	case TopicChat:
		d.handleChat(m)
	case TopicError:
		d.handleError(m)
	case TopicTrick:
		d.routeError(m.GameID, newGameError(errNotAllowedOperation,
			"tricks are dealt by the %s, not by players", prankster))
	}
}

func (d *dispatcher) handleGame(m *Message) {
	v, _ := m.Value.(*GameMessage)

	gameID := m.GameID
	if gameID == "" && v != nil {
		gameID = v.GameID
	}
	if gameID == "" {
		gameID = d.currentGameID
	}

	switch m.Topic.Operation {
	case OpCreate:
		d.createGame(v)
	case OpJoin:
		d.joinGame(gameID)
	case OpLeave:
		d.leaveGame(gameID)
	case OpEnd:
		d.endGame(gameID)
	case OpStart:
		d.startGame(gameID)
	default:
		// TURN, WIN and MEMBERS only travel server to client.
		d.routeError(gameID, newGameError(errNotAllowedOperation,
			"operation %s is not accepted from clients", m.Topic.Operation))
	}
}

func (d *dispatcher) createGame(v *GameMessage) {
	var requested string
	var level string
	if v != nil {
		requested = v.GameID
		level = v.Difficulty
	}

	difficulty, err := parseDifficulty(level)
	if err != nil {
		d.routeError("", err)
		return
	}

	g, err := d.reg.registerGame(d.user, requested, difficulty)
	if err != nil {
		d.routeError(requested, err)
		return
	}

	g.join(d.user)
	d.currentGameID = g.id

	_ = d.user.sendMessage(&Message{
		Topic:    Topic{Type: TopicGame, Operation: OpCreate},
		Username: d.user.name,
		GameID:   g.id,
		Value: &GameMessage{
			Success:    true,
			GameID:     g.id,
			Difficulty: string(difficulty),
			GameLength: g.length(),
			Members:    g.memberNames(),
		},
	})

	logf(d.cfg, "GAMES: %q created game %s (%s, %d turns)",
		d.user.name, g.id, difficulty, g.length())
}

func (d *dispatcher) joinGame(gameID string) {
	g, err := d.reg.joinGame(gameID, d.user)
	if err != nil {
		d.routeError(gameID, err)
		return
	}

	d.currentGameID = g.id

	g.broadcast(&Message{
		Topic:    Topic{Type: TopicGame, Operation: OpJoin},
		Username: d.user.name,
		GameID:   g.id,
		Value: &GameMessage{
			Success:    true,
			GameID:     g.id,
			Difficulty: string(g.difficulty),
			GameLength: g.length(),
			Members:    g.memberNames(),
		},
	})

	// Catch the newcomer up on everything drawn and said so far.
	g.replayHistory(d.user)

	logf(d.cfg, "GAMES: %q joined game %s", d.user.name, g.id)
}

func (d *dispatcher) leaveGame(gameID string) {
	g, err := d.reg.game(gameID)
	if err != nil {
		d.routeError(gameID, err)
		return
	}

	// The room does not outlive its creator.
	if d.user == g.creator {
		d.endGame(gameID)
		return
	}

	names, notEnough := g.removeMember(d.user)
	if d.currentGameID == g.id {
		d.currentGameID = ""
	}

	out := &Message{
		Topic:    Topic{Type: TopicGame, Operation: OpLeave},
		Username: d.user.name,
		GameID:   g.id,
		Value: &GameMessage{
			Success: true,
			GameID:  g.id,
			Members: names,
		},
	}
	_ = d.user.sendMessage(out)
	g.broadcast(out)

	if notEnough {
		d.routeError(g.id, newGameError(errNotEnoughPlayers,
			"the game needs at least %d players", d.cfg.minPlayers))
	}

	logf(d.cfg, "GAMES: %q left game %s", d.user.name, g.id)
}

func (d *dispatcher) endGame(gameID string) {
	g, err := d.reg.game(gameID)
	if err != nil {
		d.routeError(gameID, err)
		return
	}

	if d.user != g.creator {
		d.routeError(gameID, newGameError(errNotAllowedOperation,
			"only the creator can end game %s", g.id))
		return
	}

	d.routeError(g.id, newGameError(errGameEnded, "Game was ended by the creator!"))

	g.stop()
	d.reg.removeGame(g)
	if d.currentGameID == g.id {
		d.currentGameID = ""
	}

	logf(d.cfg, "GAMES: %q ended game %s", d.user.name, g.id)
}

func (d *dispatcher) startGame(gameID string) {
	g, err := d.reg.game(gameID)
	if err != nil {
		d.routeError(gameID, err)
		return
	}

	if err := g.start(d.user); err != nil {
		d.routeError(g.id, err)
		return
	}

	logf(d.cfg, "GAMES: %q started game %s", d.user.name, g.id)
}

func (d *dispatcher) handleDraw(m *Message) {
	gameID := m.GameID
	if gameID == "" {
		gameID = d.currentGameID
	}

	if gameID == "" {
		d.routeError("", newGameError(errGameNotStarted,
			"drawing requires a game"))
		return
	}

	g, err := d.reg.game(gameID)
	if err != nil {
		d.routeError(gameID, err)
		return
	}

	// Everyone gets the drawable, sender included, and it joins the history
	// for replay.
	g.broadcast(m)
}

func (d *dispatcher) handleChat(m *Message) {
	v, _ := m.Value.(*ChatMessage)

	gameID := m.GameID
	if gameID == "" {
		gameID = d.currentGameID
	}

	g, err := d.reg.game(gameID)
	if err != nil {
		d.routeError(gameID, err)
		return
	}

	g.say(d.user, m, v)
}

// handleError rebroadcasts a client-raised error envelope to its room.
func (d *dispatcher) handleError(m *Message) {
	gameID := m.GameID
	if gameID == "" {
		gameID = d.currentGameID
	}

	if err := d.reg.broadcast(gameID, m); err != nil {
		d.routeError("", err)
	}
}

// leaveCurrentGame runs the normal leave path during connection teardown.
func (d *dispatcher) leaveCurrentGame() {
	g, err := d.reg.game(d.currentGameID)
	if err != nil {
		return
	}
	if d.user == g.creator {
		// disconnect() tears down owned games; just announce the end.
		d.routeError(g.id, newGameError(errGameEnded, "Game was ended by the creator!"))
		return
	}

	names, notEnough := g.removeMember(d.user)
	g.broadcast(&Message{
		Topic:    Topic{Type: TopicGame, Operation: OpLeave},
		Username: d.user.name,
		GameID:   g.id,
		Value: &GameMessage{
			Success: true,
			GameID:  g.id,
			Members: names,
		},
	})

	if notEnough {
		d.routeError(g.id, newGameError(errNotEnoughPlayers,
			"the game needs at least %d players", d.cfg.minPlayers))
	}
}

// routeError wraps err in an ERROR envelope and delivers it: state errors
// tied to a known room go to every member, everything else goes back to the
// sender only.
func (d *dispatcher) routeError(gameID string, err error) {
	env := newErrorEnvelope(d.user.name, gameID, err)

	if gameID != "" && broadcastKinds[kindOf(err)] {
		if bErr := d.reg.broadcast(gameID, env); bErr == nil {
			return
		}
		// Room vanished between failure and delivery; tell the sender the
		// game is gone instead.
		env = newErrorEnvelope(d.user.name, gameID,
			newGameError(errGameNotExist, "game with id %s does not exist", gameID))
	}

	_ = d.user.sendMessage(env)
}

func newErrorEnvelope(username, gameID string, err error) *Message {
	return &Message{
		Topic:    Topic{Type: TopicError, Operation: OpBroadcast},
		Username: username,
		GameID:   gameID,
		Value: &ErrorMessage{
			Exception: string(kindOf(err)),
			Value:     err.Error(),
			ErrorID:   uuid.NewString(),
		},
	}
}

// serveGameQR renders a PNG QR code pointing at the game, for sharing a
// room from a phone.
func serveGameQR(reg *Registry) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		gameID := ps.ByName("gameid")

		if _, err := reg.game(gameID); err != nil {
			http.Error(w, "game not found", http.StatusNotFound)
			return
		}

		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		url := scheme + "://" + r.Host + strings.TrimSuffix(r.URL.Path, "/qr")

		const qrSize = 320
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}
}