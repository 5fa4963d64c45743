package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv      = "CURRICULUM_SPIDER_CONFIG"
	logLevelEnv        = "LOG_LEVEL"
	serverAddrEnv      = "SERVER_ADDR"
	oracleProviderEnv  = "ORACLE_PROVIDER"
	openAIAPIKeyEnv    = "OPENAI_API_KEY"
	openAIModelEnv     = "OPENAI_MODEL"
	azureAPIKeyEnv     = "AZURE_OPENAI_API_KEY"
	azureEndpointEnv   = "AZURE_OPENAI_ENDPOINT"
	azureAPIVersionEnv = "AZURE_OPENAI_API_VERSION"
	azureDeploymentEnv = "AZURE_OPENAI_DEPLOYMENT_ID"
	geminiAPIKeyEnv    = "GEMINI_API_KEY"
	geminiModelEnv     = "GEMINI_MODEL"
	googleAPIKeyEnv    = "GOOGLE_API_KEY"
	googleCXEnv        = "GOOGLE_CX"
	sessionBackendEnv  = "SESSION_BACKEND"
	sessionDSNEnv      = "SESSION_DSN"
	redisAddrEnv       = "REDIS_ADDR"
	redisPasswordEnv   = "REDIS_PASSWORD"
	concurrencyEnv     = "MAX_CONCURRENT_REQUESTS"
)

// Validation errors.
var (
	ErrInvalidConcurrency   = errors.New("pipeline.concurrency must be at least 1")
	ErrInvalidBudget        = errors.New("decompose.budget must be positive")
	ErrInvalidSplitRatio    = errors.New("decompose.splitRatio must be in (0, 1)")
	ErrInvalidBatchSize     = errors.New("ranking.batchSize must be at least 1")
	ErrInvalidThresholds    = errors.New("ranking thresholds must satisfy 0 <= accept <= good <= excellent <= 10")
	ErrUnknownProvider      = errors.New("oracle.provider must be one of: openai, azure, gemini")
	ErrUnknownSessionDriver = errors.New("sessions.backend must be one of: memory, sql, redis")
)

// Config holds every setting of the curriculum pipeline and its outer surfaces.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Server    ServerConfig    `yaml:"server"`
	Oracle    OracleConfig    `yaml:"oracle"`
	Search    SearchConfig    `yaml:"search"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Decompose DecomposeConfig `yaml:"decompose"`
	Ranking   RankingConfig   `yaml:"ranking"`
	Sessions  SessionConfig   `yaml:"sessions"`
}

// LoggingConfig selects verbosity and encoder.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ServerConfig configures the HTTP transport.
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
	AllowOrigins   []string      `yaml:"allowOrigins"`
}

// OracleConfig chooses and configures the Language Oracle provider.
// API keys are only ever read from the environment.
type OracleConfig struct {
	Provider    string        `yaml:"provider"`
	Endpoint    string        `yaml:"endpoint"`
	Model       string        `yaml:"model"`
	APIVersion  string        `yaml:"apiVersion"`
	Deployment  string        `yaml:"deployment"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"maxTokens"`
	Timeout     time.Duration `yaml:"timeout"`
	APIKey      string        `yaml:"-"`
}

// SearchConfig configures the Google Custom Search JSON API and the YouTube results channel.
type SearchConfig struct {
	Endpoint         string        `yaml:"endpoint"`
	YouTubeURL       string        `yaml:"youtubeUrl"`
	ResultsPerQuery  int           `yaml:"resultsPerQuery"`
	YouTubeAttempts  int           `yaml:"youtubeAttempts"`
	RateLimitBackoff time.Duration `yaml:"rateLimitBackoff"`
	Timeout          time.Duration `yaml:"timeout"`
	APIKey           string        `yaml:"-"`
	CX               string        `yaml:"-"`
}

// FetchConfig bounds page downloads.
type FetchConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	MaxPageChars int           `yaml:"maxPageChars"`
	UserAgent    string        `yaml:"userAgent"`
}

// PipelineConfig drives the executor and the acquisition stage.
type PipelineConfig struct {
	Concurrency       int           `yaml:"concurrency"`
	BatchDelay        time.Duration `yaml:"batchDelay"`
	StaggerWindow     time.Duration `yaml:"staggerWindow"`
	MinContentChars   int           `yaml:"minContentChars"`
	MinCollectChars   int           `yaml:"minCollectChars"`
	MaxCondenseChars  int           `yaml:"maxCondenseChars"`
	MaxSynthesisChars int           `yaml:"maxSynthesisChars"`
	MaxReportChars    int           `yaml:"maxReportChars"`
	MaxSummaryChars   int           `yaml:"maxSummaryChars"`
	InvestigateQuery  int           `yaml:"investigateQueries"`
}

// DecomposeConfig drives the document decomposition.
type DecomposeConfig struct {
	Budget           int     `yaml:"budget"`
	SplitRatio       float64 `yaml:"splitRatio"`
	MinSummaryChars  int     `yaml:"minSummaryChars"`
	MinSubtopics     int     `yaml:"minSubtopics"`
	LineSearchRadius int     `yaml:"lineSearchRadius"`
}

// RankingConfig drives the candidate ranking engine.
type RankingConfig struct {
	TargetPool         int           `yaml:"targetPool"`
	MinPrimary         int           `yaml:"minPrimary"`
	MaxCandidates      int           `yaml:"maxCandidates"`
	BatchSize          int           `yaml:"batchSize"`
	BatchDelay         time.Duration `yaml:"batchDelay"`
	MinDurationSeconds int           `yaml:"minDurationSeconds"`
	Excellent          float64       `yaml:"excellent"`
	Good               float64       `yaml:"good"`
	Accept             float64       `yaml:"accept"`
	Concurrency        int           `yaml:"concurrency"`
}

// SessionConfig configures the intent-agent conversation store.
type SessionConfig struct {
	Backend       string        `yaml:"backend"`
	TTL           time.Duration `yaml:"ttl"`
	MaxSessions   int           `yaml:"maxSessions"`
	MaxMessages   int           `yaml:"maxMessages"`
	HistoryWindow int           `yaml:"historyWindow"`
	SweepInterval time.Duration `yaml:"sweepInterval"`
	Driver        string        `yaml:"driver"`
	DSN           string        `yaml:"dsn"`
	RedisAddr     string        `yaml:"redisAddr"`
	RedisPrefix   string        `yaml:"redisPrefix"`
	RedisPassword string        `yaml:"-"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := Default()

	if path := os.Getenv(configPathEnv); path != "" {
		fileCfg, err := ReadFile(path)
		if err != nil {
			log.Printf("config: %v (falling back to defaults)", err)
		} else {
			cfg = mergeConfig(cfg, fileCfg)
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

// ReadFile parses a YAML configuration file without applying defaults.
func ReadFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("cannot read %s: %w", path, err)
	}
	var fileCfg Config
	if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
		return Config{}, fmt.Errorf("cannot parse %s: %w", path, err)
	}
	return fileCfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Pipeline.Concurrency < 1 || c.Ranking.Concurrency < 1 {
		return ErrInvalidConcurrency
	}
	if c.Decompose.Budget <= 0 {
		return ErrInvalidBudget
	}
	if c.Decompose.SplitRatio <= 0 || c.Decompose.SplitRatio >= 1 {
		return ErrInvalidSplitRatio
	}
	if c.Ranking.BatchSize < 1 {
		return ErrInvalidBatchSize
	}
	r := c.Ranking
	if r.Accept < 0 || r.Accept > r.Good || r.Good > r.Excellent || r.Excellent > 10 {
		return ErrInvalidThresholds
	}
	switch c.Oracle.Provider {
	case "openai", "azure", "gemini":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownProvider, c.Oracle.Provider)
	}
	switch c.Sessions.Backend {
	case "memory", "sql", "redis":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSessionDriver, c.Sessions.Backend)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(serverAddrEnv); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv(oracleProviderEnv); v != "" {
		c.Oracle.Provider = strings.ToLower(strings.TrimSpace(v))
	}

	switch c.Oracle.Provider {
	case "azure":
		c.Oracle.APIKey = os.Getenv(azureAPIKeyEnv)
		if v := os.Getenv(azureEndpointEnv); v != "" {
			c.Oracle.Endpoint = v
		}
		if v := os.Getenv(azureAPIVersionEnv); v != "" {
			c.Oracle.APIVersion = v
		}
		if v := os.Getenv(azureDeploymentEnv); v != "" {
			c.Oracle.Deployment = v
		}
	case "gemini":
		c.Oracle.APIKey = os.Getenv(geminiAPIKeyEnv)
		if v := os.Getenv(geminiModelEnv); v != "" {
			c.Oracle.Model = v
		}
	default:
		c.Oracle.APIKey = os.Getenv(openAIAPIKeyEnv)
		if v := os.Getenv(openAIModelEnv); v != "" {
			c.Oracle.Model = v
		}
	}

	c.Search.APIKey = os.Getenv(googleAPIKeyEnv)
	c.Search.CX = os.Getenv(googleCXEnv)

	if v := os.Getenv(sessionBackendEnv); v != "" {
		c.Sessions.Backend = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv(sessionDSNEnv); v != "" {
		c.Sessions.DSN = v
	}
	if v := os.Getenv(redisAddrEnv); v != "" {
		c.Sessions.RedisAddr = v
	}
	c.Sessions.RedisPassword = os.Getenv(redisPasswordEnv)

	if v := os.Getenv(concurrencyEnv); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			c.Pipeline.Concurrency = n
		}
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.Server.Addr != "" {
		base.Server.Addr = override.Server.Addr
	}
	setDuration(&base.Server.RequestTimeout, override.Server.RequestTimeout)
	if len(override.Server.AllowOrigins) > 0 {
		base.Server.AllowOrigins = override.Server.AllowOrigins
	}

	if override.Oracle.Provider != "" {
		base.Oracle.Provider = strings.ToLower(override.Oracle.Provider)
	}
	if override.Oracle.Endpoint != "" {
		base.Oracle.Endpoint = override.Oracle.Endpoint
	}
	if override.Oracle.Model != "" {
		base.Oracle.Model = override.Oracle.Model
	}
	if override.Oracle.APIVersion != "" {
		base.Oracle.APIVersion = override.Oracle.APIVersion
	}
	if override.Oracle.Deployment != "" {
		base.Oracle.Deployment = override.Oracle.Deployment
	}
	if override.Oracle.Temperature > 0 {
		base.Oracle.Temperature = override.Oracle.Temperature
	}
	setInt(&base.Oracle.MaxTokens, override.Oracle.MaxTokens)
	setDuration(&base.Oracle.Timeout, override.Oracle.Timeout)

	if override.Search.Endpoint != "" {
		base.Search.Endpoint = override.Search.Endpoint
	}
	if override.Search.YouTubeURL != "" {
		base.Search.YouTubeURL = override.Search.YouTubeURL
	}
	setInt(&base.Search.ResultsPerQuery, override.Search.ResultsPerQuery)
	setInt(&base.Search.YouTubeAttempts, override.Search.YouTubeAttempts)
	setDuration(&base.Search.RateLimitBackoff, override.Search.RateLimitBackoff)
	setDuration(&base.Search.Timeout, override.Search.Timeout)

	setDuration(&base.Fetch.Timeout, override.Fetch.Timeout)
	setInt(&base.Fetch.MaxPageChars, override.Fetch.MaxPageChars)
	if override.Fetch.UserAgent != "" {
		base.Fetch.UserAgent = override.Fetch.UserAgent
	}

	p := override.Pipeline
	setInt(&base.Pipeline.Concurrency, p.Concurrency)
	setDuration(&base.Pipeline.BatchDelay, p.BatchDelay)
	setDuration(&base.Pipeline.StaggerWindow, p.StaggerWindow)
	setInt(&base.Pipeline.MinContentChars, p.MinContentChars)
	setInt(&base.Pipeline.MinCollectChars, p.MinCollectChars)
	setInt(&base.Pipeline.MaxCondenseChars, p.MaxCondenseChars)
	setInt(&base.Pipeline.MaxSynthesisChars, p.MaxSynthesisChars)
	setInt(&base.Pipeline.MaxReportChars, p.MaxReportChars)
	setInt(&base.Pipeline.MaxSummaryChars, p.MaxSummaryChars)
	setInt(&base.Pipeline.InvestigateQuery, p.InvestigateQuery)

	d := override.Decompose
	setInt(&base.Decompose.Budget, d.Budget)
	if d.SplitRatio > 0 {
		base.Decompose.SplitRatio = d.SplitRatio
	}
	setInt(&base.Decompose.MinSummaryChars, d.MinSummaryChars)
	setInt(&base.Decompose.MinSubtopics, d.MinSubtopics)
	setInt(&base.Decompose.LineSearchRadius, d.LineSearchRadius)

	r := override.Ranking
	setInt(&base.Ranking.TargetPool, r.TargetPool)
	setInt(&base.Ranking.MinPrimary, r.MinPrimary)
	setInt(&base.Ranking.MaxCandidates, r.MaxCandidates)
	setInt(&base.Ranking.BatchSize, r.BatchSize)
	setDuration(&base.Ranking.BatchDelay, r.BatchDelay)
	setInt(&base.Ranking.MinDurationSeconds, r.MinDurationSeconds)
	setInt(&base.Ranking.Concurrency, r.Concurrency)
	if r.Excellent > 0 {
		base.Ranking.Excellent = r.Excellent
	}
	if r.Good > 0 {
		base.Ranking.Good = r.Good
	}
	if r.Accept > 0 {
		base.Ranking.Accept = r.Accept
	}

	s := override.Sessions
	if s.Backend != "" {
		base.Sessions.Backend = strings.ToLower(s.Backend)
	}
	setDuration(&base.Sessions.TTL, s.TTL)
	setInt(&base.Sessions.MaxSessions, s.MaxSessions)
	setInt(&base.Sessions.MaxMessages, s.MaxMessages)
	setInt(&base.Sessions.HistoryWindow, s.HistoryWindow)
	setDuration(&base.Sessions.SweepInterval, s.SweepInterval)
	if s.Driver != "" {
		base.Sessions.Driver = s.Driver
	}
	if s.DSN != "" {
		base.Sessions.DSN = s.DSN
	}
	if s.RedisAddr != "" {
		base.Sessions.RedisAddr = s.RedisAddr
	}
	if s.RedisPrefix != "" {
		base.Sessions.RedisPrefix = s.RedisPrefix
	}

	return base
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}

// Default returns the built-in configuration. It never contains secrets.
func Default() Config {
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "console"},
		Server:  ServerConfig{Addr: ":3000", RequestTimeout: 15 * time.Minute},
		Oracle: OracleConfig{
			Provider:    "openai",
			Endpoint:    "https://api.openai.com/v1/chat/completions",
			Model:       "gpt-4o",
			APIVersion:  "2024-06-01",
			Deployment:  "gpt-4o",
			Temperature: 0.7,
			MaxTokens:   4000,
			Timeout:     2 * time.Minute,
		},
		Search: SearchConfig{
			Endpoint:         "https://www.googleapis.com/customsearch/v1",
			YouTubeURL:       "https://www.youtube.com/results",
			ResultsPerQuery:  5,
			YouTubeAttempts:  3,
			RateLimitBackoff: 5 * time.Second,
			Timeout:          15 * time.Second,
		},
		Fetch: FetchConfig{
			Timeout:      15 * time.Second,
			MaxPageChars: 15000,
			UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
		Pipeline: PipelineConfig{
			Concurrency:       3,
			BatchDelay:        time.Second,
			StaggerWindow:     2 * time.Second,
			MinContentChars:   500,
			MinCollectChars:   200,
			MaxCondenseChars:  12000,
			MaxSynthesisChars: 15000,
			MaxReportChars:    12000,
			MaxSummaryChars:   8000,
			InvestigateQuery:  3,
		},
		Decompose: DecomposeConfig{
			Budget:           12000,
			SplitRatio:       0.8,
			MinSummaryChars:  50,
			MinSubtopics:     8,
			LineSearchRadius: 10,
		},
		Ranking: RankingConfig{
			TargetPool:         50,
			MinPrimary:         5,
			MaxCandidates:      25,
			BatchSize:          5,
			BatchDelay:         200 * time.Millisecond,
			MinDurationSeconds: 61,
			Excellent:          8,
			Good:               7,
			Accept:             5,
			Concurrency:        3,
		},
		Sessions: SessionConfig{
			Backend:       "memory",
			TTL:           30 * time.Minute,
			MaxSessions:   1000,
			MaxMessages:   50,
			HistoryWindow: 6,
			SweepInterval: 5 * time.Minute,
			Driver:        "sqlite",
			DSN:           "file:sessions?mode=memory&cache=shared",
			RedisAddr:     "localhost:6379",
			RedisPrefix:   "curriculum:session:",
		},
	}
}
