/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"embed"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

//go:embed phrases/easy.txt phrases/medium.txt phrases/hard.txt
var embeddedPhrases embed.FS

var phraseFiles = map[Difficulty]string{
	DifficultyEasy:   "easy.txt",
	DifficultyMedium: "medium.txt",
	DifficultyHard:   "hard.txt",
}

// phraseSource holds one dictionary per difficulty. The sets are immutable
// after construction, so lookups need no locking.
type phraseSource struct {
	sets map[Difficulty][]string
}

// newPhraseSource loads dictionaries from dir, falling back to the embedded
// copies when dir is empty. An empty dictionary is a startup error, not a
// runtime one.
func newPhraseSource(dir string) (*phraseSource, error) {
	sets := make(map[Difficulty][]string, len(phraseFiles))

	for level, name := range phraseFiles {
		var data []byte
		var err error

		if dir == "" {
			data, err = embeddedPhrases.ReadFile("phrases/" + name)
		} else {
			data, err = os.ReadFile(filepath.Join(dir, name))
		}
		if err != nil {
			return nil, fmt.Errorf("loading %s phrases: %w", level, err)
		}

		set := parsePhrases(data)
		if len(set) == 0 {
			return nil, fmt.Errorf("no %s phrases found in %s", level, name)
		}
		sets[level] = set
	}

	return &phraseSource{sets: sets}, nil
}

func parsePhrases(data []byte) []string {
	var set []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		set = append(set, line)
	}
	return set
}

func (p *phraseSource) phrase(level Difficulty, rng *rand.Rand) string {
	set := p.sets[level]
	return set[rng.Intn(len(set))]
}

func (p *phraseSource) count(level Difficulty) int {
	return len(p.sets[level])
}