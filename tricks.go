/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import "math/rand"

// Once per turn the Dirty Goblin visits the drawer. Most tricks sabotage the
// canvas client-side; NOTHING is a mercy visit.

const prankster = "Dirty Goblin"

var trickOps = []Operation{
	OpNothing,
	OpSnail,
	OpPacman,
	OpEarthquake,
	OpLandslide,
}

var trickDescriptions = map[Operation]string{
	OpSnail:      "The rouge snail overtook your tools,\n don't draw too quick or it won't be able to follow!",
	OpEarthquake: "Is it a bird? A plane? No it's an earthquake!\n Hold tight while it shakes you drawing!",
	OpLandslide:  "Timbeeeer! Or rather land slide!\n An avalanche swept your drawing canvas!",
	OpNothing:    "The Dirty Goblin decided to spare you,\n you can draw in peace!",
	OpPacman:     "The wild pacman was seen in your area,\n be careful he likes to eat drawings!",
}

func chooseTrick(rng *rand.Rand) Operation {
	return trickOps[rng.Intn(len(trickOps))]
}

// trickDelay picks the seconds to wait before the trick lands, between 3 and
// a third of the turn duration.
func trickDelay(duration int, rng *rand.Rand) int {
	max := duration / 3
	if max < 3 {
		return 3
	}
	return 3 + rng.Intn(max-3+1)
}

func newTrickMessage(gameID string, op Operation) *Message {
	return &Message{
		Topic:    Topic{Type: TopicTrick, Operation: op},
		Username: prankster,
		GameID:   gameID,
		Value: &TrickMessage{
			GameID:      gameID,
			Description: trickDescriptions[op],
		},
	}
}