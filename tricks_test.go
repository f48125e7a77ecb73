/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrickDelayBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 100; i++ {
		d := trickDelay(30, rng)
		assert.GreaterOrEqual(t, d, 3)
		assert.LessOrEqual(t, d, 10)

		d = trickDelay(60, rng)
		assert.GreaterOrEqual(t, d, 3)
		assert.LessOrEqual(t, d, 20)
	}

	// Short turns pin the trick to the minimum.
	assert.Equal(t, 3, trickDelay(6, rng))
}

func TestEveryTrickHasDescription(t *testing.T) {
	for _, op := range trickOps {
		assert.NotEmpty(t, trickDescriptions[op], "trick %s has no description", op)
	}
	assert.Len(t, trickDescriptions, len(trickOps))
}

func TestChooseTrick(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 50; i++ {
		assert.Contains(t, trickOps, chooseTrick(rng))
	}
}

func TestNewTrickMessage(t *testing.T) {
	m := newTrickMessage("myroom", OpSnail)

	assert.Equal(t, TopicTrick, m.Topic.Type)
	assert.Equal(t, OpSnail, m.Topic.Operation)
	assert.Equal(t, prankster, m.Username)
	assert.Equal(t, "myroom", m.GameID)

	v, ok := m.Value.(*TrickMessage)
	require.True(t, ok)
	assert.Equal(t, "myroom", v.GameID)
	assert.Equal(t, trickDescriptions[OpSnail], v.Description)
}