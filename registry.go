/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"crypto/rand"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
)

// sendBufferSize bounds the per-connection outbound queue. A member that
// cannot drain this many frames is dropped rather than stalling the room.
const sendBufferSize = 256

// User represents one live connection. The send channel has a single reader
// (writePump), so writes to a user are strictly ordered.
type User struct {
	name string
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
	owned  []*Game
}

func newUser(name string, conn *websocket.Conn) *User {
	return &User{
		name: name,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
}

// sendMessage serializes the message and queues it for the write pump.
func (u *User) sendMessage(m *Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if u.closed {
		return newGameError(errTransportClosed, "connection for user %s is closed", u.name)
	}

	select {
	case u.send <- data:
		return nil
	default:
		// Slow consumer. Closing the channel ends the write pump, which
		// closes the connection and unwinds the read loop.
		u.closed = true
		close(u.send)
		return newGameError(errTransportClosed, "send buffer full for user %s", u.name)
	}
}

func (u *User) close() {
	u.mu.Lock()
	defer u.mu.Unlock()

	if !u.closed {
		u.closed = true
		close(u.send)
	}
}

// writePump is the sole writer for the connection.
func (u *User) writePump() {
	defer u.conn.Close()

	for data := range u.send {
		if err := u.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

func (u *User) addOwnedGame(g *Game) {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.owned = append(u.owned, g)
}

func (u *User) removeOwnedGame(g *Game) {
	u.mu.Lock()
	defer u.mu.Unlock()

	dst := u.owned[:0]
	for _, o := range u.owned {
		if o != g {
			dst = append(dst, o)
		}
	}
	u.owned = dst
}

func (u *User) ownedGames() []*Game {
	u.mu.Lock()
	defer u.mu.Unlock()

	return append([]*Game(nil), u.owned...)
}

// Registry holds every live user and game in the process.
type Registry struct {
	cfg     *Config
	phrases *phraseSource

	mu    sync.RWMutex
	users map[string]*User
	games map[string]*Game
}

func newRegistry(cfg *Config, phrases *phraseSource) *Registry {
	return &Registry{
		cfg:     cfg,
		phrases: phrases,
		users:   make(map[string]*User),
		games:   make(map[string]*Game),
	}
}

// connect stores the user, rejecting duplicate usernames.
func (r *Registry) connect(u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[u.name]; ok {
		return newGameError(errUserAlreadyExists, "user %s already exists", u.name)
	}
	r.users[u.name] = u

	return nil
}

// disconnect removes the user, dropping every game they created.
func (r *Registry) disconnect(u *User) {
	owned := u.ownedGames()

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, g := range owned {
		g.stop()
		delete(r.games, g.id)
	}
	delete(r.users, u.name)
}

func (r *Registry) user(name string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[name]
	if !ok {
		return nil, newGameError(errUserNotExist, "user with username %s does not exist", name)
	}
	return u, nil
}

func (r *Registry) game(id string) (*Game, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.games[id]
	if !ok {
		return nil, newGameError(errGameNotExist, "game with id %s does not exist", id)
	}
	return g, nil
}

// registerGame creates and stores a new game. The id is generated when the
// creator does not supply one.
func (r *Registry) registerGame(creator *User, gameID string, difficulty Difficulty) (*Game, error) {
	r.mu.Lock()

	if gameID == "" {
		gameID = r.newGameIDLocked()
	} else if _, ok := r.games[gameID]; ok {
		r.mu.Unlock()
		return nil, newGameError(errGameExists, "game with id %s already exists", gameID)
	}

	g := newGame(r, creator, gameID, difficulty)
	r.games[gameID] = g
	r.mu.Unlock()

	creator.addOwnedGame(g)

	return g, nil
}

// removeGame drops an ended game. Safe to call more than once.
func (r *Registry) removeGame(g *Game) {
	r.mu.Lock()
	delete(r.games, g.id)
	r.mu.Unlock()

	g.creator.removeOwnedGame(g)
}

func (r *Registry) joinGame(id string, u *User) (*Game, error) {
	g, err := r.game(id)
	if err != nil {
		return nil, err
	}
	g.join(u)

	return g, nil
}

func (r *Registry) leave(id string, u *User) error {
	g, err := r.game(id)
	if err != nil {
		return err
	}
	g.leave(u)

	return nil
}

func (r *Registry) members(id string) ([]string, error) {
	g, err := r.game(id)
	if err != nil {
		return nil, err
	}
	return g.memberNames(), nil
}

// broadcast delivers to each current member of the game, appending DRAW and
// CHAT messages to the game's history first.
func (r *Registry) broadcast(id string, m *Message, exclude ...*User) error {
	g, err := r.game(id)
	if err != nil {
		return err
	}
	g.broadcast(m, exclude...)

	return nil
}

// newGameIDLocked generates a crypto-random game ID that is not in use.
// Callers must hold r.mu.
func (r *Registry) newGameIDLocked() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	for {
		buf := make([]byte, 8)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, 8)
		for i := range out {
			out[i] = letters[int(buf[i])%len(letters)]
		}
		id := string(out)

		if _, exists := r.games[id]; !exists {
			return id
		}
	}
}