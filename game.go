/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"math/rand"
	"strings"
	"sync"
	"time"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
)

func parseDifficulty(s string) (Difficulty, error) {
	switch Difficulty(strings.ToUpper(s)) {
	case "":
		return DifficultyMedium, nil
	case DifficultyEasy:
		return DifficultyEasy, nil
	case DifficultyMedium:
		return DifficultyMedium, nil
	case DifficultyHard:
		return DifficultyHard, nil
	}
	return "", newGameError(errValidation, "unknown difficulty: %q", s)
}

const (
	// maskedPhrase replaces the secret phrase in TURN broadcasts to
	// everyone but the drawer.
	maskedPhrase = "**********"
	// censorReplacement substitutes phrase tokens in the drawer's chat.
	censorReplacement = "<CENSORED>"
)

// Turn is immutable once constructed, except for the winner, which is set at
// most once.
type Turn struct {
	turnNo   int
	level    Difficulty
	drawer   *User
	duration int
	phrase   string
	winner   *User
}

// Game is one room. All mutable state is guarded by mu; the turn and trick
// timers are owned by the game so cancellation stays idempotent.
type Game struct {
	cfg     *Config
	phrases *phraseSource

	id         string
	creator    *User
	difficulty Difficulty

	mu            sync.Mutex
	rng           *rand.Rand
	members       []*User
	history       []*Message
	turns         []*Turn
	active        bool
	currentTurnNo int
	gameLength    int

	scheduledNextTurn *time.Timer
	scheduledTrick    *time.Timer

	lastDrawer *User
	lastPhrase string
}

func newGame(r *Registry, creator *User, id string, difficulty Difficulty) *Game {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	g := Game{
		cfg:        r.cfg,
		phrases:    r.phrases,
		id:         id,
		creator:    creator,
		difficulty: difficulty,
		rng:        rng,
	}
	g.gameLength = r.cfg.gameLengthMin + rng.Intn(r.cfg.gameLengthMax-r.cfg.gameLengthMin+1)

	return &g
}

// join appends the user to the member list. Joining twice is a no-op.
func (g *Game) join(u *User) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, m := range g.members {
		if m == u {
			return
		}
	}
	g.members = append(g.members, u)
}

// leave removes the user from the member list. Leaving when not a member is
// a no-op.
func (g *Game) leave(u *User) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.removeMemberLocked(u)
}

func (g *Game) removeMemberLocked(u *User) {
	dst := g.members[:0]
	for _, m := range g.members {
		if m != u {
			dst = append(dst, m)
		}
	}
	g.members = dst
}

// removeMember drops the user and reports whether the game fell below the
// minimum player count while running. In that case the game returns to the
// lobby state, with its scheduled tasks cancelled.
func (g *Game) removeMember(u *User) (names []string, notEnough bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.removeMemberLocked(u)

	if g.active && len(g.members) < g.cfg.minPlayers {
		g.active = false
		g.stopTimersLocked()
		notEnough = true
	}

	return g.memberNamesLocked(), notEnough
}

func (g *Game) memberNames() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.memberNamesLocked()
}

func (g *Game) memberNamesLocked() []string {
	names := make([]string, 0, len(g.members))
	for _, m := range g.members {
		names = append(names, m.name)
	}
	return names
}

func (g *Game) isActive() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.active
}

func (g *Game) length() int {
	return g.gameLength
}

// broadcast delivers to each current member in order, skipping excluded
// users. DRAW and CHAT messages join the history exactly once, before any
// delivery. Individual send failures do not affect other members.
func (g *Game) broadcast(m *Message, exclude ...*User) {
	g.mu.Lock()
	if m.Topic.Type == TopicDraw || m.Topic.Type == TopicChat {
		g.history = append(g.history, m)
	}
	recipients := make([]*User, 0, len(g.members))
	for _, u := range g.members {
		skip := false
		for _, e := range exclude {
			if e == u {
				skip = true
				break
			}
		}
		if !skip {
			recipients = append(recipients, u)
		}
	}
	g.mu.Unlock()

	for _, u := range recipients {
		_ = u.sendMessage(m)
	}
}

// replayHistory sends every saved DRAW and CHAT message to the newcomer
// only, in arrival order.
func (g *Game) replayHistory(u *User) {
	g.mu.Lock()
	history := append([]*Message(nil), g.history...)
	g.mu.Unlock()

	for _, m := range history {
		if err := u.sendMessage(m); err != nil {
			return
		}
	}
}

// start flips the game to active and plays the first turn. Only the creator
// may start, and only once.
func (g *Game) start(sender *User) error {
	g.mu.Lock()

	if sender != g.creator {
		g.mu.Unlock()
		return newGameError(errCannotStartNotOwnGame, "only the creator can start game %s", g.id)
	}
	if g.active {
		g.mu.Unlock()
		return newGameError(errGameAlreadyStarted, "game %s has already started", g.id)
	}
	g.active = true
	prev := g.currentTurnNo
	g.mu.Unlock()

	// A fresh START plays the next turn even if the previous one was won.
	g.executeTurn(prev, true)

	return nil
}

// stop deactivates the game and cancels any scheduled work.
func (g *Game) stop() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.active = false
	g.stopTimersLocked()
}

// stopTimersLocked cancels the scheduled next turn and trick. Stop on a
// *time.Timer is idempotent; a callback that already fired re-checks game
// state and treats itself as a no-op.
func (g *Game) stopTimersLocked() {
	if g.scheduledNextTurn != nil {
		g.scheduledNextTurn.Stop()
		g.scheduledNextTurn = nil
	}
	if g.scheduledTrick != nil {
		g.scheduledTrick.Stop()
		g.scheduledTrick = nil
	}
}

func (g *Game) currentTurnLocked() *Turn {
	if len(g.turns) == 0 {
		return nil
	}
	return g.turns[len(g.turns)-1]
}

// score tallies points per current member from won turns.
func (g *Game) score() map[string]int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.scoreLocked()
}

func (g *Game) scoreLocked() map[string]int {
	scores := g.cfg.winnerScores()

	score := make(map[string]int, len(g.members))
	for _, m := range g.members {
		score[m.name] = 0
	}
	for _, t := range g.turns {
		if t.winner == nil {
			continue
		}
		if _, ok := score[t.winner.name]; ok {
			score[t.winner.name] += scores[t.level]
		}
	}
	return score
}

// topScorersLocked returns every member holding the highest score, ties
// included, in member order.
func (g *Game) topScorersLocked() []string {
	score := g.scoreLocked()

	best := 0
	for _, v := range score {
		if v > best {
			best = v
		}
	}

	top := make([]string, 0, 1)
	for _, m := range g.members {
		if score[m.name] == best {
			top = append(top, m.name)
		}
	}
	return top
}

// executeTurn advances the game from turn prev: pick drawer, duration and
// phrase, tell the drawer the secret, broadcast the masked copy, and
// schedule both the next turn and a trick. The prev guard is validated
// under the same lock acquisition that plays the turn, so a cancelled or
// superseded timer firing late is a no-op; afterWin marks the scheduled
// post-win advance, the only path allowed past a decided turn. Expected
// failures (not enough players, game over) emit their own envelopes and
// stop the scheduler.
func (g *Game) executeTurn(prev int, afterWin bool) {
	g.mu.Lock()

	if !g.active || g.currentTurnNo != prev {
		g.mu.Unlock()
		return
	}
	if !afterWin {
		if t := g.currentTurnLocked(); t != nil && t.winner != nil {
			g.mu.Unlock()
			return
		}
	}

	turn, err := g.playTurnLocked()
	if err != nil {
		g.active = false
		g.stopTimersLocked()

		var out *Message
		switch kindOf(err) {
		case errGameEnded:
			out = g.endEnvelopeLocked()
		default:
			out = newErrorEnvelope(g.creator.name, g.id, err)
		}
		recipients := append([]*User(nil), g.members...)
		g.mu.Unlock()

		for _, u := range recipients {
			_ = u.sendMessage(out)
		}
		logf(g.cfg, "GAMES: Game %s stopped: %v", g.id, err)
		return
	}

	secret := g.turnEnvelopeLocked(turn, turn.phrase)
	masked := g.turnEnvelopeLocked(turn, maskedPhrase)
	drawer := turn.drawer
	others := make([]*User, 0, len(g.members))
	for _, m := range g.members {
		if m != drawer {
			others = append(others, m)
		}
	}

	turnNo := turn.turnNo
	g.scheduledNextTurn = time.AfterFunc(time.Duration(turn.duration)*time.Second, func() {
		g.executeTurn(turnNo, false)
	})
	trickOp := chooseTrick(g.rng)
	g.scheduledTrick = time.AfterFunc(time.Duration(trickDelay(turn.duration, g.rng))*time.Second, func() {
		g.releaseTrick(turnNo, trickOp)
	})
	g.mu.Unlock()

	// The drawer's secret copy goes out before the masked broadcast.
	_ = drawer.sendMessage(secret)
	for _, u := range others {
		_ = u.sendMessage(masked)
	}

	logf(g.cfg, "GAMES: Game %s turn %d/%d, %q draws for %ds",
		g.id, turnNo, g.gameLength, drawer.name, turn.duration)
}

// playTurnLocked builds the next turn or fails with NotEnoughPlayers or
// GameEnded.
func (g *Game) playTurnLocked() (*Turn, error) {
	if len(g.members) < g.cfg.minPlayers {
		return nil, newGameError(errNotEnoughPlayers, "the game needs at least %d players", g.cfg.minPlayers)
	}

	g.currentTurnNo++
	if g.currentTurnNo > g.gameLength {
		return nil, newGameError(errGameEnded, "game %s is over", g.id)
	}

	drawer := g.members[g.rng.Intn(len(g.members))]
	for drawer == g.lastDrawer && len(g.members) > 1 {
		drawer = g.members[g.rng.Intn(len(g.members))]
	}

	phrase := g.phrases.phrase(g.difficulty, g.rng)
	for phrase == g.lastPhrase && g.phrases.count(g.difficulty) > 1 {
		phrase = g.phrases.phrase(g.difficulty, g.rng)
	}

	turn := Turn{
		turnNo:   g.currentTurnNo,
		level:    g.difficulty,
		drawer:   drawer,
		duration: g.cfg.turnDurations[g.rng.Intn(len(g.cfg.turnDurations))],
		phrase:   phrase,
	}
	g.turns = append(g.turns, &turn)
	g.lastDrawer = drawer
	g.lastPhrase = phrase

	return &turn, nil
}

// releaseTrick sends the scheduled trick to the drawer, unless the turn
// already ended.
func (g *Game) releaseTrick(turnNo int, op Operation) {
	g.mu.Lock()
	t := g.currentTurnLocked()
	if !g.active || t == nil || t.turnNo != turnNo || t.winner != nil {
		g.mu.Unlock()
		return
	}
	drawer := t.drawer
	g.mu.Unlock()

	_ = drawer.sendMessage(newTrickMessage(g.id, op))
	logf(g.cfg, "GAMES: Trick %s released on %q in game %s", op, drawer.name, g.id)
}

// say handles one chat line: censor the drawer, detect a winning guess, and
// broadcast. The guess check and task cancellation happen atomically under
// the game lock, so at most one chat line per turn wins.
func (g *Game) say(sender *User, env *Message, chat *ChatMessage) {
	g.mu.Lock()

	t := g.currentTurnLocked()
	var winEnv *Message

	if t != nil && sender == t.drawer {
		chat.Message = censorPhrase(chat.Message, t.phrase)
	}

	if g.active && t != nil && t.winner == nil && sender != t.drawer && guessMatches(t.phrase, chat.Message) {
		t.winner = sender
		g.stopTimersLocked()
		winEnv = g.winEnvelopeLocked(t)

		turnNo := t.turnNo
		g.scheduledNextTurn = time.AfterFunc(g.cfg.postWinPause, func() {
			g.executeTurn(turnNo, true)
		})
	}
	g.mu.Unlock()

	g.broadcast(env)
	if winEnv != nil {
		g.broadcast(winEnv)
		logf(g.cfg, "GAMES: %q guessed the phrase in game %s", sender.name, g.id)
	}
}

func (g *Game) turnEnvelopeLocked(t *Turn, phrase string) *Message {
	return &Message{
		Topic:    Topic{Type: TopicGame, Operation: OpTurn},
		Username: g.creator.name,
		GameID:   g.id,
		Value: &GameMessage{
			Success: true,
			GameID:  g.id,
			Turn: &TurnMessage{
				TurnNo:   t.turnNo,
				Active:   true,
				Level:    string(t.level),
				Drawer:   t.drawer.name,
				Duration: t.duration,
				Phrase:   phrase,
				Score:    g.scoreLocked(),
			},
		},
	}
}

func (g *Game) winEnvelopeLocked(t *Turn) *Message {
	return &Message{
		Topic:    Topic{Type: TopicGame, Operation: OpWin},
		Username: t.winner.name,
		GameID:   g.id,
		Value: &GameMessage{
			Success: true,
			GameID:  g.id,
			Turn: &TurnMessage{
				TurnNo:   t.turnNo,
				Active:   true,
				Level:    string(t.level),
				Drawer:   t.drawer.name,
				Duration: t.duration,
				Phrase:   t.phrase,
				Winner:   t.winner.name,
				Score:    g.scoreLocked(),
			},
		},
	}
}

// endEnvelopeLocked carries the final score map and all top scorers.
func (g *Game) endEnvelopeLocked() *Message {
	return &Message{
		Topic:    Topic{Type: TopicGame, Operation: OpEnd},
		Username: g.creator.name,
		GameID:   g.id,
		Value: &GameMessage{
			Success:    true,
			GameID:     g.id,
			GameLength: g.gameLength,
			Members:    g.topScorersLocked(),
			Turn: &TurnMessage{
				TurnNo: g.gameLength,
				Active: false,
				Level:  string(g.difficulty),
				Score:  g.scoreLocked(),
			},
		},
	}
}

// censorPhrase masks every whole-word, case-insensitive occurrence of a
// phrase token.
func censorPhrase(text, phrase string) string {
	banned := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(phrase)) {
		banned[tok] = true
	}

	words := strings.Fields(text)
	for i, w := range words {
		if banned[strings.ToLower(w)] {
			words[i] = censorReplacement
		}
	}
	return strings.Join(words, " ")
}

// guessMatches reports whether every token of the phrase appears among the
// chat message's tokens, case-insensitively.
func guessMatches(phrase, text string) bool {
	have := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		have[tok] = true
	}

	want := strings.Fields(strings.ToLower(phrase))
	if len(want) == 0 {
		return false
	}
	for _, tok := range want {
		if !have[tok] {
			return false
		}
	}
	return true
}