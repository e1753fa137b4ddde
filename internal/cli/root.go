package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rohmanhakim/page-tracker/internal/build"
	"github.com/rohmanhakim/page-tracker/internal/config"
	"github.com/spf13/cobra"
)

var (
	cfgFile         string
	storeBackend    string
	connectAttempts int
	connectDelay    time.Duration
	redisAddr       string
	redisPassword   string
	redisDB         int
	memcacheServers []string
	counterPrefix   string
	resultPrefix    string
	resultTTL       time.Duration
	singleFlight    bool
	timeout         time.Duration
	userAgent       string
	httpCache       bool
	hostDelay       time.Duration
	listenAddr      string
	logLevel        string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "page-tracker",
	Short: "Fetch web pages through a shared cache and count every request.",
	Long: `page-tracker fetches web pages and keeps the response text in a shared
key-value store (Redis, memcached, or in memory) for a short time, so
repeated requests for the same URL are answered without a network call.

Every request for a URL, whether answered from the cache or not,
increments a per-URL counter in the same store.`,
	Version:      build.FullVersion(),
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// ExecuteArgs runs the root command with explicit arguments and output
// streams. Used by tests.
func ExecuteArgs(args []string, out io.Writer, errOut io.Writer) error {
	rootCmd.SetArgs(args)
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	}()
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config-file", "", "config file path, JSON or YAML (e.g., /etc/page-tracker/config.yaml)")
	flags.StringVar(&storeBackend, "store", "", "key-value store backend: redis, memcache or memory (default redis)")
	flags.IntVar(&connectAttempts, "connect-attempts", 0, "store connection checks at startup before giving up (default 1)")
	flags.DurationVar(&connectDelay, "connect-delay", 0, "wait before the second connection check, doubled after each (default 500ms)")
	flags.StringVar(&redisAddr, "redis-addr", "", "redis server address (default localhost:6379)")
	flags.StringVar(&redisPassword, "redis-password", "", "redis password")
	flags.IntVar(&redisDB, "redis-db", 0, "redis database number")
	flags.StringArrayVar(&memcacheServers, "memcache-server", []string{}, "memcached server address (can be repeated)")
	flags.StringVar(&counterPrefix, "counter-prefix", "", "key prefix of request counters (default \"count:\")")
	flags.StringVar(&resultPrefix, "result-prefix", "", "key prefix of cached results (default \"result:\")")
	flags.DurationVar(&resultTTL, "result-ttl", 0, "how long fetched pages are served from the store (default 10s)")
	flags.BoolVar(&singleFlight, "single-flight", false, "collapse concurrent misses for the same URL into one fetch")
	flags.DurationVar(&timeout, "timeout", 0, "timeout for HTTP requests (default 30s)")
	flags.StringVar(&userAgent, "user-agent", "", "user agent string for HTTP requests")
	flags.BoolVar(&httpCache, "http-cache", false, "revalidate with ETag/Cache-Control below the result cache")
	flags.DurationVar(&hostDelay, "host-delay", 0, "minimum time between requests to the same host (default 0, disabled)")
	flags.StringVar(&logLevel, "log-level", "", "debug, info, warn or error (default info); PAGE_TRACKER_LOG overrides")

	rootCmd.AddCommand(fetchCmd, countCmd, serveCmd, versionCmd)
}

// InitConfigWithError builds the config from the config file when one is
// given, otherwise from defaults overridden by the flags that were set.
func InitConfigWithError() (config.Config, error) {
	if cfgFile != "" {
		cfg, err := config.WithConfigFile(cfgFile)
		if err != nil {
			return cfg, fmt.Errorf("error initializing config from file: %w", err)
		}
		return cfg, nil
	}

	configBuilder := config.WithDefault()

	if storeBackend != "" {
		configBuilder = configBuilder.WithStore(config.StoreBackend(storeBackend))
	}
	if connectAttempts != 0 {
		configBuilder = configBuilder.WithConnectAttempts(connectAttempts)
	}
	if connectDelay != 0 {
		configBuilder = configBuilder.WithConnectDelay(connectDelay)
	}
	if redisAddr != "" {
		configBuilder = configBuilder.WithRedisAddr(redisAddr)
	}
	if redisPassword != "" {
		configBuilder = configBuilder.WithRedisPassword(redisPassword)
	}
	if redisDB != 0 {
		configBuilder = configBuilder.WithRedisDB(redisDB)
	}
	if len(memcacheServers) > 0 {
		configBuilder = configBuilder.WithMemcacheServers(memcacheServers)
	}
	if counterPrefix != "" {
		configBuilder = configBuilder.WithCounterPrefix(counterPrefix)
	}
	if resultPrefix != "" {
		configBuilder = configBuilder.WithResultPrefix(resultPrefix)
	}
	if resultTTL != 0 {
		configBuilder = configBuilder.WithResultTTL(resultTTL)
	}
	if singleFlight {
		configBuilder = configBuilder.WithSingleFlight(singleFlight)
	}
	if timeout != 0 {
		configBuilder = configBuilder.WithTimeout(timeout)
	}
	if userAgent != "" {
		configBuilder = configBuilder.WithUserAgent(userAgent)
	}
	if httpCache {
		configBuilder = configBuilder.WithHTTPCache(httpCache)
	}
	if hostDelay != 0 {
		configBuilder = configBuilder.WithHostDelay(hostDelay)
	}
	if listenAddr != "" {
		configBuilder = configBuilder.WithListenAddr(listenAddr)
	}
	if logLevel != "" {
		configBuilder = configBuilder.WithLogLevel(logLevel)
	}

	return configBuilder.Build()
}

func ResetFlags() {
	cfgFile = ""
	storeBackend = ""
	connectAttempts = 0
	connectDelay = 0
	redisAddr = ""
	redisPassword = ""
	redisDB = 0
	memcacheServers = []string{}
	counterPrefix = ""
	resultPrefix = ""
	resultTTL = 0
	singleFlight = false
	timeout = 0
	userAgent = ""
	httpCache = false
	hostDelay = 0
	listenAddr = ""
	logLevel = ""
	outputFormat = "raw"
	showCount = false
}

// Test helper functions to set flag values from tests
func SetConfigFileForTest(path string) {
	cfgFile = path
}

func SetStoreForTest(backend string) {
	storeBackend = backend
}

func SetRedisAddrForTest(addr string) {
	redisAddr = addr
}

func SetMemcacheServersForTest(servers []string) {
	memcacheServers = servers
}

func SetResultTTLForTest(ttl time.Duration) {
	resultTTL = ttl
}

func SetSingleFlightForTest(enabled bool) {
	singleFlight = enabled
}

func SetTimeoutForTest(t time.Duration) {
	timeout = t
}

func SetUserAgentForTest(agent string) {
	userAgent = agent
}

func SetPrefixesForTest(counter string, result string) {
	counterPrefix = counter
	resultPrefix = result
}

func SetConnectRetryForTest(attempts int, delay time.Duration) {
	connectAttempts = attempts
	connectDelay = delay
}

func SetHostDelayForTest(delay time.Duration) {
	hostDelay = delay
}

func SetListenAddrForTest(addr string) {
	listenAddr = addr
}
