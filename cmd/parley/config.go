package main

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds the parley command configuration.
type Config struct {
	Persona  string `env:"PARLEY_PERSONA"  envDefault:"elena"`
	Seed     int64  `env:"PARLEY_SEED"`
	Auto     bool   `env:"PARLEY_AUTO"`
	Style    string `env:"PARLEY_STYLE"    envDefault:"balanced"`
	MaxTurns int    `env:"PARLEY_MAX_TURNS" envDefault:"60"`
	Script   string `env:"PARLEY_SCRIPT"`
	Cards    string `env:"PARLEY_CARDS_FILE"`
	Personas string `env:"PARLEY_PERSONAS_FILE"`
	List     bool   `env:"PARLEY_LIST"`
}

// ParseConfig reads the environment, then lets flags override it.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	fs.StringVar(&cfg.Persona, "persona", cfg.Persona, "persona id to talk to")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "rng seed (0 = random)")
	fs.BoolVar(&cfg.Auto, "auto", cfg.Auto, "let a rule brain play the conversation")
	fs.StringVar(&cfg.Style, "style", cfg.Style, "autoplay style: cautious, balanced, bold")
	fs.IntVar(&cfg.MaxTurns, "max-turns", cfg.MaxTurns, "stop autoplay after this many turns")
	fs.StringVar(&cfg.Script, "script", cfg.Script, "replay a scripted conversation json file and print the tape")
	fs.StringVar(&cfg.Cards, "cards", cfg.Cards, "extra card catalog json, merged over the built-in cards")
	fs.StringVar(&cfg.Personas, "personas", cfg.Personas, "persona json replacing the built-in personas")
	fs.BoolVar(&cfg.List, "list", cfg.List, "list personas and exit")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if cfg.MaxTurns <= 0 {
		return Config{}, fmt.Errorf("max-turns must be > 0")
	}
	return cfg, nil
}
