package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kasyap/okx-corr/pkg/market"
)

// DefaultSymbols are the OKX spot instruments tracked when CORR_SYMBOLS is unset.
var DefaultSymbols = []string{
	"BTC-USDT", "ADA-USDT", "ETH-USDT", "DOGE-USDT",
	"XRP-USDT", "SOL-USDT", "LTC-USDT", "BNB-USDT",
}

// Config holds all configuration for the correlation daemon
type Config struct {
	// OKX public websocket
	WebSocketURL      string        `yaml:"ws_url"`
	Symbols           []string      `yaml:"symbols"`
	ReconnectInterval time.Duration `yaml:"reconnect_interval"`
	PingInterval      time.Duration `yaml:"ping_interval"`

	// Engine
	CyclePeriod    time.Duration `yaml:"cycle_period"`
	Window         time.Duration `yaml:"window"`
	TradeCapacity  int           `yaml:"trade_capacity"`
	HistorySize    int           `yaml:"history_size"`
	MaxInstruments int           `yaml:"max_instruments"`

	// Record files
	DataDir     string `yaml:"data_dir"`
	TimingFile  string `yaml:"timing_file"`
	CPUIdleFile string `yaml:"cpu_idle_file"`
	RotateMB    int    `yaml:"rotate_mb"`
	Console     bool   `yaml:"console"`

	// Diagnostics
	CPUSampleInterval time.Duration `yaml:"cpu_sample_interval"` // 0 disables
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`

	// Ambient
	LogPath       string `yaml:"log_path"`
	LogLevel      string `yaml:"log_level"`
	MetricsAddr   string `yaml:"metrics_addr"`
	DatabaseURL   string `yaml:"database_url"`
	PyroscopeAddr string `yaml:"pyroscope_addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		WebSocketURL:      "wss://ws.okx.com:8443/ws/v5/public",
		Symbols:           append([]string(nil), DefaultSymbols...),
		ReconnectInterval: 10 * time.Second,
		PingInterval:      25 * time.Second,

		CyclePeriod:    60 * time.Second,
		Window:         15 * time.Minute,
		TradeCapacity:  100000,
		HistorySize:    market.DefaultHistorySize,
		MaxInstruments: market.DefaultMaxInstruments,

		DataDir:     "data",
		TimingFile:  "timing.csv",
		CPUIdleFile: "cpu_idle.csv",
		RotateMB:    100,
		Console:     true,

		CPUSampleInterval: time.Second,
		HeartbeatInterval: 60 * time.Second,

		LogLevel: "INFO",
	}
}

// LoadConfig builds the configuration from defaults, the optional YAML file
// named by CORR_CONFIG_FILE, and then environment variables, in that order.
func LoadConfig() (*Config, error) {
	cfg := Default()
	if path := os.Getenv("CORR_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(c); err != nil {
		return fmt.Errorf("decode yaml: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.WebSocketURL = getEnv("OKX_WS_URL", c.WebSocketURL)
	if s := os.Getenv("CORR_SYMBOLS"); s != "" {
		c.Symbols = parseSymbols(s)
	}
	c.ReconnectInterval = getEnvSeconds("CORR_RECONNECT_SECONDS", c.ReconnectInterval)
	c.PingInterval = getEnvSeconds("CORR_PING_SECONDS", c.PingInterval)

	c.CyclePeriod = getEnvSeconds("CORR_CYCLE_SECONDS", c.CyclePeriod)
	c.Window = getEnvSeconds("CORR_WINDOW_SECONDS", c.Window)
	c.TradeCapacity = getEnvInt("CORR_TRADE_CAPACITY", c.TradeCapacity)
	c.HistorySize = getEnvInt("CORR_HISTORY_SIZE", c.HistorySize)
	c.MaxInstruments = getEnvInt("CORR_MAX_INSTRUMENTS", c.MaxInstruments)

	c.DataDir = getEnv("CORR_DATA_DIR", c.DataDir)
	c.TimingFile = getEnv("CORR_TIMING_FILE", c.TimingFile)
	c.CPUIdleFile = getEnv("CORR_CPU_IDLE_FILE", c.CPUIdleFile)
	c.RotateMB = getEnvInt("CORR_ROTATE_MB", c.RotateMB)
	c.Console = getEnvBool("CORR_CONSOLE", c.Console)

	c.CPUSampleInterval = getEnvSeconds("CORR_CPU_SAMPLE_SECONDS", c.CPUSampleInterval)
	c.HeartbeatInterval = getEnvSeconds("CORR_HEARTBEAT_SECONDS", c.HeartbeatInterval)

	c.LogPath = getEnv("LOG_PATH", c.LogPath)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.MetricsAddr = getEnv("METRICS_ADDR", c.MetricsAddr)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.PyroscopeAddr = getEnv("PYROSCOPE_ADDR", c.PyroscopeAddr)
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.WebSocketURL == "" {
		errs = append(errs, errors.New("ws url is empty"))
	}
	if len(c.Symbols) == 0 {
		errs = append(errs, errors.New("no symbols configured"))
	}
	if c.MaxInstruments <= 0 || c.MaxInstruments > market.DefaultMaxInstruments {
		errs = append(errs, fmt.Errorf("max instruments must be in [1, %d], got %d",
			market.DefaultMaxInstruments, c.MaxInstruments))
	} else if len(c.Symbols) > c.MaxInstruments {
		errs = append(errs, fmt.Errorf("%d symbols exceed max instruments %d", len(c.Symbols), c.MaxInstruments))
	}
	if c.TradeCapacity <= 0 {
		errs = append(errs, fmt.Errorf("trade capacity must be positive, got %d", c.TradeCapacity))
	}
	// Pearson needs two points; a shorter history only shortens warm-up.
	if c.HistorySize < 2 || c.HistorySize > market.DefaultHistorySize {
		errs = append(errs, fmt.Errorf("history size must be in [2, %d], got %d",
			market.DefaultHistorySize, c.HistorySize))
	}
	if c.CyclePeriod <= 0 {
		errs = append(errs, fmt.Errorf("cycle period must be positive, got %s", c.CyclePeriod))
	}
	if c.Window <= 0 {
		errs = append(errs, fmt.Errorf("window must be positive, got %s", c.Window))
	}
	if c.ReconnectInterval <= 0 {
		errs = append(errs, fmt.Errorf("reconnect interval must be positive, got %s", c.ReconnectInterval))
	}
	if c.CPUSampleInterval < 0 {
		errs = append(errs, fmt.Errorf("cpu sample interval must not be negative, got %s", c.CPUSampleInterval))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvSeconds reads a number of seconds; fractions are allowed.
func getEnvSeconds(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return time.Duration(f * float64(time.Second))
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

// parseSymbols splits comma-separated symbols into a slice
func parseSymbols(s string) []string {
	symbols := []string{}
	for _, sym := range strings.Split(s, ",") {
		sym = strings.TrimSpace(sym)
		if sym != "" {
			symbols = append(symbols, strings.ToUpper(sym))
		}
	}
	return symbols
}
