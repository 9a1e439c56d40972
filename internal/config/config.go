package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Env       string          `yaml:"env"`
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	AI        AIConfig        `yaml:"ai"`
	Narrative NarrativeConfig `yaml:"narrative"`
	World     WorldConfig     `yaml:"world"`
	Faction   FactionConfig   `yaml:"faction"`
	Events    EventsConfig    `yaml:"events"`
	Messaging MessagingConfig `yaml:"messaging"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type DatabaseConfig struct {
	MySQL MySQLConfig `yaml:"mysql"`
	Redis RedisConfig `yaml:"redis"`
}

type MySQLConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"pool_size"`
	SaveTTL  time.Duration `yaml:"save_ttl"`
}

type AIConfig struct {
	LLM LLMConfig `yaml:"llm"`
}

// LLMConfig describes an OpenAI-compatible chat completion endpoint.
type LLMConfig struct {
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

type NarrativeConfig struct {
	RulesFile   string `yaml:"rules_file"`
	DefaultTone string `yaml:"default_tone"`
	// TemplatesDir holds *.json template overrides imported over the built-ins.
	TemplatesDir string `yaml:"templates_dir"`
}

type WorldConfig struct {
	Seed       string `yaml:"seed"`
	PlayerName string `yaml:"player_name"`
	SceneTicks int    `yaml:"scene_ticks"`
	// VisitorChance is the chance a wandering master joins a quiet scene.
	VisitorChance float64 `yaml:"visitor_chance"`
}

type FactionConfig struct {
	WarThreshold     int `yaml:"war_threshold"`
	ReputationSpread int `yaml:"reputation_spread"`
}

type EventsConfig struct {
	CatalogFiles []string `yaml:"catalog_files"`
}

type MessagingConfig struct {
	NATSURL      string `yaml:"nats_url"`
	CostSubject  string `yaml:"cost_subject"`
	WorldSubject string `yaml:"world_subject"`
}

// LoggingConfig leaves Level empty unless set: the logger then picks debug in
// dev and info elsewhere.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// envOverrides carries secrets and endpoints that may come from the environment.
type envOverrides struct {
	Env           string `env:"JIANGHU_ENV"`
	LLMAPIKey     string `env:"LLM_API_KEY"`
	LLMBaseURL    string `env:"LLM_BASE_URL"`
	LLMModel      string `env:"LLM_MODEL"`
	MySQLPassword string `env:"MYSQL_PASSWORD"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	NATSURL       string `env:"NATS_URL"`
	LogLevel      string `env:"LOG_LEVEL"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration, applies environment overrides and fills defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	var overrides envOverrides
	if err := env.Parse(&overrides); err != nil {
		return nil, fmt.Errorf("failed to parse env: %w", err)
	}
	cfg.applyOverrides(overrides)
	cfg.applyDefaults()

	return &cfg, nil
}

func (c *Config) applyOverrides(o envOverrides) {
	if o.Env != "" {
		c.Env = o.Env
	}
	if o.LLMAPIKey != "" {
		c.AI.LLM.APIKey = o.LLMAPIKey
	}
	if o.LLMBaseURL != "" {
		c.AI.LLM.BaseURL = o.LLMBaseURL
	}
	if o.LLMModel != "" {
		c.AI.LLM.Model = o.LLMModel
	}
	if o.MySQLPassword != "" {
		c.Database.MySQL.Password = o.MySQLPassword
	}
	if o.RedisPassword != "" {
		c.Database.Redis.Password = o.RedisPassword
	}
	if o.NATSURL != "" {
		c.Messaging.NATSURL = o.NATSURL
	}
	if o.LogLevel != "" {
		c.Logging.Level = o.LogLevel
	}
}

func (c *Config) applyDefaults() {
	if c.Env == "" {
		c.Env = "dev"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.AI.LLM.BaseURL == "" {
		c.AI.LLM.BaseURL = "http://localhost:11434/v1"
	}
	if c.AI.LLM.Model == "" {
		c.AI.LLM.Model = "qwen2.5:14b"
	}
	if c.AI.LLM.Timeout == 0 {
		c.AI.LLM.Timeout = 120 * time.Second
	}
	if c.Narrative.DefaultTone == "" {
		c.Narrative.DefaultTone = "宿命"
	}
	if c.World.Seed == "" {
		c.World.Seed = "jianghu-seed"
	}
	if c.World.PlayerName == "" {
		c.World.PlayerName = "无名小卒"
	}
	if c.World.SceneTicks == 0 {
		c.World.SceneTicks = 10
	}
	if c.Faction.WarThreshold == 0 {
		c.Faction.WarThreshold = 100
	}
	if c.Faction.ReputationSpread == 0 {
		c.Faction.ReputationSpread = 3
	}
	if c.Messaging.CostSubject == "" {
		c.Messaging.CostSubject = "jianghu.ai.cost"
	}
	if c.Messaging.WorldSubject == "" {
		c.Messaging.WorldSubject = "jianghu.world.evolved"
	}
}
