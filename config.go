/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind    string
	port    int
	prefix  string
	profile bool
	tlsCert string
	tlsKey  string
	verbose bool
	version bool

	turnDurations []int
	minPlayers    int
	gameLengthMin int
	gameLengthMax int
	postWinPause  time.Duration
	scoreEasy     int
	scoreMedium   int
	scoreHard     int
	phrasesDir    string
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if len(c.turnDurations) == 0 {
		return errors.New("at least one turn duration is required")
	}
	for _, d := range c.turnDurations {
		if d < 10 {
			return fmt.Errorf("turn duration too short to play (minimum 10s): %d", d)
		}
	}
	if c.minPlayers < 2 {
		return fmt.Errorf("invalid minimum player count (must be at least 2): %d", c.minPlayers)
	}
	if c.gameLengthMin < 1 || c.gameLengthMax < c.gameLengthMin {
		return fmt.Errorf("invalid game length range: [%d, %d]", c.gameLengthMin, c.gameLengthMax)
	}
	if c.postWinPause < 0 {
		return fmt.Errorf("invalid post-win pause: %s", c.postWinPause)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

// winnerScores maps each difficulty to the points awarded for a winning guess.
func (c *Config) winnerScores() map[Difficulty]int {
	return map[Difficulty]int{
		DifficultyEasy:   c.scoreEasy,
		DifficultyMedium: c.scoreMedium,
		DifficultyHard:   c.scoreHard,
	}
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("SKETCHBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "sketchbox",
		Short:         "A realtime draw-and-guess game server, played over websockets.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: SKETCHBOX_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: SKETCHBOX_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: SKETCHBOX_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: SKETCHBOX_PROFILE)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: SKETCHBOX_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: SKETCHBOX_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: SKETCHBOX_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: SKETCHBOX_VERSION)")

	fs.IntSliceVar(&cfg.turnDurations, "turn-durations", []int{30, 60}, "turn lengths in seconds to pick from (env: SKETCHBOX_TURN_DURATIONS)")
	fs.IntVar(&cfg.minPlayers, "min-players", 3, "minimum players needed to run a game (env: SKETCHBOX_MIN_PLAYERS)")
	fs.IntVar(&cfg.gameLengthMin, "game-length-min", 3, "minimum number of turns per game (env: SKETCHBOX_GAME_LENGTH_MIN)")
	fs.IntVar(&cfg.gameLengthMax, "game-length-max", 15, "maximum number of turns per game (env: SKETCHBOX_GAME_LENGTH_MAX)")
	fs.DurationVar(&cfg.postWinPause, "post-win-pause", 5*time.Second, "pause between a winning guess and the next turn (env: SKETCHBOX_POST_WIN_PAUSE)")
	fs.IntVar(&cfg.scoreEasy, "score-easy", 50, "points for guessing an easy phrase (env: SKETCHBOX_SCORE_EASY)")
	fs.IntVar(&cfg.scoreMedium, "score-medium", 100, "points for guessing a medium phrase (env: SKETCHBOX_SCORE_MEDIUM)")
	fs.IntVar(&cfg.scoreHard, "score-hard", 50, "points for guessing a hard phrase (env: SKETCHBOX_SCORE_HARD)")
	fs.StringVar(&cfg.phrasesDir, "phrases", "", "directory containing easy.txt, medium.txt and hard.txt phrase lists; embedded defaults are used when unset (env: SKETCHBOX_PHRASES)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("sketchbox v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}