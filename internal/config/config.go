package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/DoyleJ11/snakes-ladders-backend/internal/bot"
	"github.com/DoyleJ11/snakes-ladders-backend/internal/engine"
)

var ErrInvalidConfig = errors.New("invalid config")

const EnvPrefix = "SNL"

const defaultAddr = ":8080"

const defaultLobbyIdleTimeout = 10 * time.Minute

type BotConfig struct {
	TriggerDelay         time.Duration `mapstructure:"trigger_delay"`
	RevealDelay          time.Duration `mapstructure:"reveal_delay"`
	StepDelay            time.Duration `mapstructure:"step_delay"`
	SettleDelay          time.Duration `mapstructure:"settle_delay"`
	SpecialSettleDelay   time.Duration `mapstructure:"special_settle_delay"`
	CollisionSettleDelay time.Duration `mapstructure:"collision_settle_delay"`
	TeleportSettleDelay  time.Duration `mapstructure:"teleport_settle_delay"`
	BonusDelay           time.Duration `mapstructure:"bonus_delay"`
	MaxRolls             int           `mapstructure:"max_rolls"`
}

type Config struct {
	Addr         string `mapstructure:"addr"`
	PublicURL    string `mapstructure:"public_url"`
	DatabaseURL  string `mapstructure:"database_url"`
	BoardFile    string `mapstructure:"board_file"`
	LogLevel     string `mapstructure:"log_level"`
	BumpDistance int    `mapstructure:"bump_distance"`
	MaxPlayers   int    `mapstructure:"max_players"`
	AutoEndTurn  bool   `mapstructure:"auto_end_turn"`
	// LobbyIdleTimeout closes a lobby nobody has been connected to for that
	// long. Zero keeps lobbies for the life of the process.
	LobbyIdleTimeout time.Duration `mapstructure:"lobby_idle_timeout"`
	Bot              BotConfig     `mapstructure:"bot"`
}

// LoadDotEnv reads .env from the working directory if there is one.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	d := bot.DefaultDelays()
	v.SetDefault("public_url", "")
	v.SetDefault("database_url", "")
	v.SetDefault("board_file", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("bump_distance", engine.DefaultBumpDistance)
	v.SetDefault("max_players", engine.MaxPlayers)
	v.SetDefault("auto_end_turn", true)
	v.SetDefault("lobby_idle_timeout", defaultLobbyIdleTimeout)
	v.SetDefault("bot.trigger_delay", d.Trigger)
	v.SetDefault("bot.reveal_delay", d.Reveal)
	v.SetDefault("bot.step_delay", d.Step)
	v.SetDefault("bot.settle_delay", d.Settle)
	v.SetDefault("bot.special_settle_delay", d.SpecialSettle)
	v.SetDefault("bot.collision_settle_delay", d.CollisionSettle)
	v.SetDefault("bot.teleport_settle_delay", d.TeleportSettle)
	v.SetDefault("bot.bonus_delay", d.Bonus)
	v.SetDefault("bot.max_rolls", bot.DefaultMaxRolls)
}

// Load resolves configuration from, in rising priority: defaults, the
// optional YAML file, environment variables (SNL_ADDR, SNL_BOT_STEP_DELAY,
// ... plus the bare PORT and DATABASE_URL that hosting platforms set) and any
// flags already bound on v.
func Load(v *viper.Viper, file string) (Config, error) {
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("database_url", EnvPrefix+"_DATABASE_URL", "DATABASE_URL"); err != nil {
		return Config{}, err
	}
	if err := v.BindEnv("addr", EnvPrefix+"_ADDR"); err != nil {
		return Config{}, err
	}
	if err := v.BindEnv("port", "PORT"); err != nil {
		return Config{}, err
	}

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Addr == "" {
		cfg.Addr = defaultAddr
		if port := v.GetString("port"); port != "" {
			cfg.Addr = ":" + port
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch {
	case c.BumpDistance < 1:
		return fmt.Errorf("%w: bump_distance must be at least 1", ErrInvalidConfig)
	case c.MaxPlayers < engine.MinPlayers:
		return fmt.Errorf("%w: max_players must be at least %d", ErrInvalidConfig, engine.MinPlayers)
	case c.Bot.MaxRolls < 1:
		return fmt.Errorf("%w: bot.max_rolls must be at least 1", ErrInvalidConfig)
	case c.LobbyIdleTimeout < 0:
		return fmt.Errorf("%w: lobby_idle_timeout cannot be negative", ErrInvalidConfig)
	}
	return nil
}

func (c Config) Rules() engine.Rules {
	r := engine.DefaultRules()
	r.BumpDistance = c.BumpDistance
	r.MaxPlayers = c.MaxPlayers
	return r
}

func (c Config) Delays() bot.Delays {
	return bot.Delays{
		Trigger:         c.Bot.TriggerDelay,
		Reveal:          c.Bot.RevealDelay,
		Step:            c.Bot.StepDelay,
		Settle:          c.Bot.SettleDelay,
		SpecialSettle:   c.Bot.SpecialSettleDelay,
		CollisionSettle: c.Bot.CollisionSettleDelay,
		TeleportSettle:  c.Bot.TeleportSettleDelay,
		Bonus:           c.Bot.BonusDelay,
	}
}

// Board loads the configured board file, or the default board when none is
// set.
func (c Config) Board() (engine.Board, error) {
	if c.BoardFile == "" {
		return engine.DefaultBoard(), nil
	}
	return engine.LoadBoard(c.BoardFile)
}
