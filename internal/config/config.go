package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/rohmanhakim/page-tracker/internal/build"
	"github.com/rohmanhakim/page-tracker/internal/tracker"
	"gopkg.in/yaml.v3"
)

type StoreBackend string

const (
	StoreRedis    StoreBackend = "redis"
	StoreMemcache StoreBackend = "memcache"
	StoreMemory   StoreBackend = "memory"
)

type Config struct {
	//===============
	// Store
	//===============
	// Which key-value backend holds counters and cached results
	store StoreBackend
	// Startup connection checks before giving up on the store
	connectAttempts int
	// Wait before the second connection check, doubled after each
	connectDelay time.Duration
	// host:port of the Redis server
	redisAddr     string
	redisPassword string
	redisDB       int
	// memcached servers, host:port each
	memcacheServers []string

	//===============
	// Tracking
	//===============
	// Key prefix of request counters
	counterPrefix string
	// Key prefix of cached results
	resultPrefix string
	// How long a fetched body is served from the store
	resultTTL time.Duration
	// Collapse concurrent misses for the same URL into one fetch
	singleFlight bool

	//===============
	// Fetch
	//===============
	// Maximum time of a single fetch request; zero disables it
	timeout time.Duration
	// User agent that will be used in the request header. In raw string
	userAgent string
	// Honour HTTP caching headers (ETag, Cache-Control) below the result cache
	httpCache bool
	// Minimum time between two requests to the same host; zero disables it
	hostDelay time.Duration

	//===============
	// Service
	//===============
	listenAddr string
	logLevel   string
}

type configDTO struct {
	Store           StoreBackend `json:"store,omitempty" yaml:"store,omitempty"`
	ConnectAttempts int          `json:"connectAttempts,omitempty" yaml:"connectAttempts,omitempty"`
	ConnectDelay    Duration     `json:"connectDelay,omitempty" yaml:"connectDelay,omitempty"`
	RedisAddr       string       `json:"redisAddr,omitempty" yaml:"redisAddr,omitempty"`
	RedisPassword   string       `json:"redisPassword,omitempty" yaml:"redisPassword,omitempty"`
	RedisDB         int          `json:"redisDb,omitempty" yaml:"redisDb,omitempty"`
	MemcacheServers []string     `json:"memcacheServers,omitempty" yaml:"memcacheServers,omitempty"`
	CounterPrefix   string       `json:"counterPrefix,omitempty" yaml:"counterPrefix,omitempty"`
	ResultPrefix    string       `json:"resultPrefix,omitempty" yaml:"resultPrefix,omitempty"`
	ResultTTL       Duration     `json:"resultTtl,omitempty" yaml:"resultTtl,omitempty"`
	SingleFlight    bool         `json:"singleFlight,omitempty" yaml:"singleFlight,omitempty"`
	Timeout         Duration     `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	UserAgent       string       `json:"userAgent,omitempty" yaml:"userAgent,omitempty"`
	HTTPCache       bool         `json:"httpCache,omitempty" yaml:"httpCache,omitempty"`
	HostDelay       Duration     `json:"hostDelay,omitempty" yaml:"hostDelay,omitempty"`
	ListenAddr      string       `json:"listenAddr,omitempty" yaml:"listenAddr,omitempty"`
	LogLevel        string       `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`
}

func newConfigFromDTO(dto configDTO) (Config, error) {
	// Start with default config, only override non-zero values
	builder := WithDefault()

	if dto.Store != "" {
		builder.WithStore(dto.Store)
	}
	if dto.ConnectAttempts != 0 {
		builder.WithConnectAttempts(dto.ConnectAttempts)
	}
	if dto.ConnectDelay != 0 {
		builder.WithConnectDelay(time.Duration(dto.ConnectDelay))
	}
	if dto.RedisAddr != "" {
		builder.WithRedisAddr(dto.RedisAddr)
	}
	if dto.RedisPassword != "" {
		builder.WithRedisPassword(dto.RedisPassword)
	}
	if dto.RedisDB != 0 {
		builder.WithRedisDB(dto.RedisDB)
	}
	if len(dto.MemcacheServers) > 0 {
		builder.WithMemcacheServers(dto.MemcacheServers)
	}
	if dto.CounterPrefix != "" {
		builder.WithCounterPrefix(dto.CounterPrefix)
	}
	if dto.ResultPrefix != "" {
		builder.WithResultPrefix(dto.ResultPrefix)
	}
	if dto.ResultTTL != 0 {
		builder.WithResultTTL(time.Duration(dto.ResultTTL))
	}
	if dto.Timeout != 0 {
		builder.WithTimeout(time.Duration(dto.Timeout))
	}
	if dto.UserAgent != "" {
		builder.WithUserAgent(dto.UserAgent)
	}
	if dto.HostDelay != 0 {
		builder.WithHostDelay(time.Duration(dto.HostDelay))
	}
	if dto.ListenAddr != "" {
		builder.WithListenAddr(dto.ListenAddr)
	}
	if dto.LogLevel != "" {
		builder.WithLogLevel(dto.LogLevel)
	}
	// booleans default to false, so the DTO value is used as-is
	builder.WithSingleFlight(dto.SingleFlight)
	builder.WithHTTPCache(dto.HTTPCache)

	return builder.Build()
}

// WithConfigFile loads a JSON config file, or YAML when the file name
// ends in .yaml or .yml. Fields left out keep their defaults.
func WithConfigFile(path string) (Config, error) {
	_, err := os.Stat(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrFileDoesNotExist, err.Error())
	}
	configContent, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrReadConfigFail, err.Error())
	}

	cfgDTO := configDTO{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(configContent, &cfgDTO)
	default:
		err = json.Unmarshal(configContent, &cfgDTO)
	}
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrConfigParsingFail, err.Error())
	}

	return newConfigFromDTO(cfgDTO)
}

// WithDefault creates a new Config builder holding the default value of
// every field.
func WithDefault() *Config {
	defaultConfig := Config{
		store:           StoreRedis,
		connectAttempts: 1,
		connectDelay:    500 * time.Millisecond,
		redisAddr:       "localhost:6379",
		redisPassword:   "",
		redisDB:         0,
		memcacheServers: []string{"localhost:11211"},
		counterPrefix:   tracker.DefaultCounterPrefix,
		resultPrefix:    tracker.DefaultResultPrefix,
		resultTTL:       tracker.DefaultResultTTL,
		singleFlight:    false,
		timeout:         30 * time.Second,
		userAgent:       build.UserAgent(),
		httpCache:       false,
		hostDelay:       0,
		listenAddr:      ":8080",
		logLevel:        "info",
	}
	return &defaultConfig
}

func (c *Config) WithStore(store StoreBackend) *Config {
	c.store = StoreBackend(strings.ToLower(string(store)))
	return c
}

func (c *Config) WithConnectAttempts(attempts int) *Config {
	c.connectAttempts = attempts
	return c
}

func (c *Config) WithConnectDelay(delay time.Duration) *Config {
	c.connectDelay = delay
	return c
}

func (c *Config) WithRedisAddr(addr string) *Config {
	c.redisAddr = addr
	return c
}

func (c *Config) WithRedisPassword(password string) *Config {
	c.redisPassword = password
	return c
}

func (c *Config) WithRedisDB(db int) *Config {
	c.redisDB = db
	return c
}

func (c *Config) WithMemcacheServers(servers []string) *Config {
	c.memcacheServers = servers
	return c
}

func (c *Config) WithCounterPrefix(prefix string) *Config {
	c.counterPrefix = prefix
	return c
}

func (c *Config) WithResultPrefix(prefix string) *Config {
	c.resultPrefix = prefix
	return c
}

func (c *Config) WithResultTTL(ttl time.Duration) *Config {
	c.resultTTL = ttl
	return c
}

func (c *Config) WithSingleFlight(enabled bool) *Config {
	c.singleFlight = enabled
	return c
}

func (c *Config) WithTimeout(timeout time.Duration) *Config {
	c.timeout = timeout
	return c
}

func (c *Config) WithUserAgent(agent string) *Config {
	c.userAgent = agent
	return c
}

func (c *Config) WithHTTPCache(enabled bool) *Config {
	c.httpCache = enabled
	return c
}

func (c *Config) WithHostDelay(delay time.Duration) *Config {
	c.hostDelay = delay
	return c
}

func (c *Config) WithListenAddr(addr string) *Config {
	c.listenAddr = addr
	return c
}

func (c *Config) WithLogLevel(level string) *Config {
	c.logLevel = level
	return c
}

func (c *Config) Build() (Config, error) {
	switch c.store {
	case StoreRedis:
		if c.redisAddr == "" {
			return Config{}, fmt.Errorf("%w: redisAddr cannot be empty for the redis store", ErrInvalidConfig)
		}
		if c.redisDB < 0 {
			return Config{}, fmt.Errorf("%w: redisDb cannot be negative", ErrInvalidConfig)
		}
	case StoreMemcache:
		if len(c.memcacheServers) == 0 {
			return Config{}, fmt.Errorf("%w: memcacheServers cannot be empty for the memcache store", ErrInvalidConfig)
		}
	case StoreMemory:
	default:
		return Config{}, fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, c.store)
	}

	if err := tracker.ValidatePrefixes(c.counterPrefix, c.resultPrefix); err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrInvalidConfig, err.Error())
	}
	if c.resultTTL <= 0 {
		return Config{}, fmt.Errorf("%w: resultTtl must be positive, got %v", ErrInvalidConfig, c.resultTTL)
	}
	if c.timeout < 0 {
		return Config{}, fmt.Errorf("%w: timeout cannot be negative", ErrInvalidConfig)
	}
	if c.connectAttempts < 1 {
		return Config{}, fmt.Errorf("%w: connectAttempts must be at least 1, got %d", ErrInvalidConfig, c.connectAttempts)
	}
	if c.connectDelay < 0 {
		return Config{}, fmt.Errorf("%w: connectDelay cannot be negative", ErrInvalidConfig)
	}
	if c.hostDelay < 0 {
		return Config{}, fmt.Errorf("%w: hostDelay cannot be negative", ErrInvalidConfig)
	}
	if _, err := log.ParseLevel(strings.ToLower(c.logLevel)); err != nil {
		return Config{}, fmt.Errorf("%w: logLevel %q", ErrInvalidConfig, c.logLevel)
	}

	return *c, nil
}

func (c Config) Store() StoreBackend {
	return c.store
}

func (c Config) ConnectAttempts() int {
	return c.connectAttempts
}

func (c Config) ConnectDelay() time.Duration {
	return c.connectDelay
}

func (c Config) RedisAddr() string {
	return c.redisAddr
}

func (c Config) RedisPassword() string {
	return c.redisPassword
}

func (c Config) RedisDB() int {
	return c.redisDB
}

func (c Config) MemcacheServers() []string {
	servers := make([]string, len(c.memcacheServers))
	copy(servers, c.memcacheServers)
	return servers
}

func (c Config) CounterPrefix() string {
	return c.counterPrefix
}

func (c Config) ResultPrefix() string {
	return c.resultPrefix
}

func (c Config) ResultTTL() time.Duration {
	return c.resultTTL
}

func (c Config) SingleFlight() bool {
	return c.singleFlight
}

func (c Config) Timeout() time.Duration {
	return c.timeout
}

func (c Config) UserAgent() string {
	return c.userAgent
}

func (c Config) HTTPCache() bool {
	return c.httpCache
}

func (c Config) HostDelay() time.Duration {
	return c.hostDelay
}

func (c Config) ListenAddr() string {
	return c.listenAddr
}

func (c Config) LogLevel() string {
	return c.logLevel
}

// TrackerOptions projects the tracking fields onto tracker.Options.
func (c Config) TrackerOptions() tracker.Options {
	return tracker.Options{
		CounterPrefix: c.counterPrefix,
		ResultPrefix:  c.resultPrefix,
		ResultTTL:     c.resultTTL,
		SingleFlight:  c.singleFlight,
	}
}
