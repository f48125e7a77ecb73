/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		cfg := testConfig()
		return cfg
	}

	require.NoError(t, valid().validate())

	cfg := valid()
	cfg.port = 0
	assert.Error(t, cfg.validate())

	cfg = valid()
	cfg.tlsCert = "cert.pem"
	assert.Error(t, cfg.validate())

	cfg = valid()
	cfg.turnDurations = nil
	assert.Error(t, cfg.validate())

	cfg = valid()
	cfg.turnDurations = []int{30, 5}
	assert.Error(t, cfg.validate())

	cfg = valid()
	cfg.minPlayers = 1
	assert.Error(t, cfg.validate())

	cfg = valid()
	cfg.gameLengthMax = cfg.gameLengthMin - 1
	assert.Error(t, cfg.validate())

	cfg = valid()
	cfg.postWinPause = -time.Second
	assert.Error(t, cfg.validate())
}

func TestConfigScheme(t *testing.T) {
	cfg := testConfig()
	assert.Equal(t, "http", cfg.scheme())

	cfg.tlsCert = "cert.pem"
	cfg.tlsKey = "key.pem"
	assert.Equal(t, "https", cfg.scheme())
}

func TestWinnerScores(t *testing.T) {
	scores := testConfig().winnerScores()

	assert.Equal(t, 50, scores[DifficultyEasy])
	assert.Equal(t, 100, scores[DifficultyMedium])
	assert.Equal(t, 50, scores[DifficultyHard])
}

func TestParseDifficulty(t *testing.T) {
	d, err := parseDifficulty("")
	require.NoError(t, err)
	assert.Equal(t, DifficultyMedium, d)

	d, err = parseDifficulty("easy")
	require.NoError(t, err)
	assert.Equal(t, DifficultyEasy, d)

	_, err = parseDifficulty("IMPOSSIBLE")
	require.Error(t, err)
	assert.Equal(t, errValidation, kindOf(err))
}