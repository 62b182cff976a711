package config

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultLockRefreshInterval   = 30 * time.Second
	DefaultStatusRefreshInterval = 5 * time.Second
	DefaultStartupStagger        = 15 * time.Second
	DefaultCheckInterval         = 60 * time.Second
	DefaultResolveInterval       = 30 * time.Second
	DefaultRequestTimeout        = 10 * time.Second
	DefaultRecorderPoll          = 3 * time.Second
	DefaultSpawnDelay            = 1 * time.Second
	DefaultAvatarSize            = 50
	DefaultFFmpeg                = "ffmpeg"
	DefaultLogLevel              = "info"

	// BaseDirEnv overrides base_dir when set.
	BaseDirEnv = "AUTORECORD_BASE_DIR"
)

// On-disk layout below base_dir. These names are shared with the external
// recorder, which resolves them relative to its working directory.
const (
	LockDirName     = "lock_files"
	JSONDirName     = "json"
	VideosDirName   = "videos"
	LogsDirName     = "logs"
	LiveUsersFile   = "live_users.json"
	StreamLinksFile = "stream_links.json"
)

// Config is the top-level autorecord configuration.
type Config struct {
	// BaseDir is the root that holds lock_files/, json/, videos/ and logs/.
	BaseDir string `yaml:"base_dir"`

	// LogLevel is one of debug | info | warn | error.
	LogLevel string `yaml:"log_level"`

	// Headless skips the terminal display and the status HTTP server.
	Headless bool `yaml:"headless"`

	// LockRefreshInterval is how often the lock cache is rebuilt from disk.
	LockRefreshInterval time.Duration `yaml:"lock_refresh_interval"`

	// StatusRefreshInterval is how often the display reconciles live users
	// against the lock cache.
	StatusRefreshInterval time.Duration `yaml:"status_refresh_interval"`

	// StartupStagger is the fixed delay between starting the liveness
	// checker and starting the stream-link resolver.
	StartupStagger time.Duration `yaml:"startup_stagger"`

	// Users is the list of usernames to watch, in display order.
	Users []string `yaml:"users"`

	// UsersFile optionally names a file with one username per line. Its
	// entries are appended to Users, duplicates dropped.
	UsersFile string `yaml:"users_file"`

	Checker  EndpointConfig `yaml:"checker"`
	Resolver EndpointConfig `yaml:"resolver"`
	Recorder RecorderConfig `yaml:"recorder"`
	Display  DisplayConfig  `yaml:"display"`
}

// EndpointConfig describes an HTTP endpoint polled once per user.
type EndpointConfig struct {
	// Endpoint is a URL template; "{username}" is replaced by the
	// query-escaped username.
	Endpoint string `yaml:"endpoint"`

	// Interval controls how often every user is polled.
	Interval time.Duration `yaml:"interval"`

	// Timeout bounds a single request.
	Timeout time.Duration `yaml:"timeout"`

	Auth AuthConfig `yaml:"auth"`
}

// AuthConfig specifies the authentication mode for an endpoint.
type AuthConfig struct {
	// Mode is one of: apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	// Header is the HTTP header name the API key is sent in.
	Header string `yaml:"header"`
	// KeyEnv is the name of the environment variable that holds the key value.
	KeyEnv string `yaml:"key_env"`

	// TokenEnv is the name of the environment variable that holds the bearer token.
	TokenEnv string `yaml:"token_env"`

	// Username is the literal basic-auth username.
	Username string `yaml:"username"`
	// PasswordEnv is the name of the environment variable that holds the password.
	PasswordEnv string `yaml:"password_env"`
}

// Key returns the API key value resolved from the environment.
// Returns empty string if KeyEnv is unset or the variable is not found.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// Token returns the bearer token value resolved from the environment.
func (a AuthConfig) Token() string {
	if a.TokenEnv == "" {
		return ""
	}
	return os.Getenv(a.TokenEnv)
}

// Password returns the basic-auth password resolved from the environment.
func (a AuthConfig) Password() string {
	if a.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(a.PasswordEnv)
}

// RecorderConfig configures the external recorder process and the built-in
// record loop that implements it.
type RecorderConfig struct {
	// Executable is the recorder binary. Empty means "this binary", invoked
	// with Args defaulting to ["record"].
	Executable string   `yaml:"executable"`
	Args       []string `yaml:"args"`

	// FFmpeg is the capture binary used by the record loop.
	FFmpeg string `yaml:"ffmpeg"`

	// PollInterval is how often the record loop re-reads stream links.
	PollInterval time.Duration `yaml:"poll_interval"`

	// SpawnDelay is the pause between two capture starts.
	SpawnDelay time.Duration `yaml:"spawn_delay"`
}

// DisplayConfig configures the terminal display and the status server.
type DisplayConfig struct {
	// AvatarSize is the square bound, in pixels, profile pictures are fit to.
	AvatarSize int `yaml:"avatar_size"`

	// ImageTimeout bounds a single profile picture download.
	ImageTimeout time.Duration `yaml:"image_timeout"`

	// HTTPListen is the status API / WebSocket address. Empty disables it.
	HTTPListen string `yaml:"http_listen"`
}

// LockDir is the directory holding one <username>.lock marker per recording.
func (c *Config) LockDir() string { return filepath.Join(c.BaseDir, LockDirName) }

// JSONDir holds the live-set and stream-link files.
func (c *Config) JSONDir() string { return filepath.Join(c.BaseDir, JSONDirName) }

// LiveUsersPath is the live-set snapshot file written by the liveness checker.
func (c *Config) LiveUsersPath() string { return filepath.Join(c.JSONDir(), LiveUsersFile) }

// StreamLinksPath is the file the resolver hands to the recorder.
func (c *Config) StreamLinksPath() string { return filepath.Join(c.JSONDir(), StreamLinksFile) }

// VideosDir is where finished recordings are written.
func (c *Config) VideosDir() string { return filepath.Join(c.BaseDir, VideosDirName) }

// LogsDir holds the display-mode log file and the recorder output.
func (c *Config) LogsDir() string { return filepath.Join(c.BaseDir, LogsDirName) }

// Dirs lists every directory that must exist before workers start.
func (c *Config) Dirs() []string {
	return []string{c.LockDir(), c.JSONDir(), c.VideosDir(), c.LogsDir()}
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults. When
// allowMissing is true a non-existent file yields the defaults.
func Load(path string, allowMissing bool) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse yaml: %w", err)
		}
	case allowMissing && errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	if v := os.Getenv(BaseDirEnv); v != "" {
		cfg.BaseDir = v
	}

	if cfg.UsersFile != "" {
		extra, err := readUsersFile(cfg.UsersFile)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		cfg.Users = mergeUsers(cfg.Users, extra)
	} else {
		cfg.Users = mergeUsers(cfg.Users, nil)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		BaseDir:               ".",
		LogLevel:              DefaultLogLevel,
		LockRefreshInterval:   DefaultLockRefreshInterval,
		StatusRefreshInterval: DefaultStatusRefreshInterval,
		StartupStagger:        DefaultStartupStagger,
		Checker: EndpointConfig{
			Interval: DefaultCheckInterval,
			Timeout:  DefaultRequestTimeout,
		},
		Resolver: EndpointConfig{
			Interval: DefaultResolveInterval,
			Timeout:  DefaultRequestTimeout,
		},
		Recorder: RecorderConfig{
			FFmpeg:       DefaultFFmpeg,
			PollInterval: DefaultRecorderPoll,
			SpawnDelay:   DefaultSpawnDelay,
		},
		Display: DisplayConfig{
			AvatarSize:   DefaultAvatarSize,
			ImageTimeout: DefaultRequestTimeout,
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	if cfg.BaseDir == "" {
		return fmt.Errorf("base_dir must not be empty")
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", cfg.LogLevel)
	}
	if cfg.LockRefreshInterval <= 0 {
		return fmt.Errorf("lock_refresh_interval must be positive")
	}
	if cfg.StatusRefreshInterval <= 0 {
		return fmt.Errorf("status_refresh_interval must be positive")
	}
	if cfg.StartupStagger < 0 {
		return fmt.Errorf("startup_stagger must not be negative")
	}
	if cfg.Recorder.PollInterval <= 0 {
		return fmt.Errorf("recorder.poll_interval must be positive")
	}
	if cfg.Recorder.SpawnDelay < 0 {
		return fmt.Errorf("recorder.spawn_delay must not be negative")
	}
	if cfg.Display.AvatarSize <= 0 {
		return fmt.Errorf("display.avatar_size must be positive")
	}
	if cfg.Display.ImageTimeout <= 0 {
		return fmt.Errorf("display.image_timeout must be positive")
	}
	for name, ep := range map[string]EndpointConfig{"checker": cfg.Checker, "resolver": cfg.Resolver} {
		if err := validateEndpoint(name, ep); err != nil {
			return err
		}
	}
	for i, u := range cfg.Users {
		if strings.ContainsAny(u, `/\`) {
			return fmt.Errorf("users[%d] %q: must not contain path separators", i, u)
		}
	}
	return nil
}

func validateEndpoint(name string, ep EndpointConfig) error {
	if ep.Interval <= 0 {
		return fmt.Errorf("%s.interval must be positive", name)
	}
	if ep.Timeout <= 0 {
		return fmt.Errorf("%s.timeout must be positive", name)
	}
	if ep.Endpoint != "" && !strings.HasPrefix(ep.Endpoint, "http://") && !strings.HasPrefix(ep.Endpoint, "https://") {
		return fmt.Errorf("%s.endpoint %q: must be an http(s) URL", name, ep.Endpoint)
	}
	switch ep.Auth.Mode {
	case "apikey", "bearer", "basic", "none", "":
	default:
		return fmt.Errorf("%s: unknown auth mode %q", name, ep.Auth.Mode)
	}
	if ep.Auth.Mode == "apikey" && ep.Auth.Header == "" {
		return fmt.Errorf("%s.auth.header is required for apikey mode", name)
	}
	return nil
}

// readUsersFile returns the non-empty, non-comment lines of path.
func readUsersFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read users file: %w", err)
	}
	defer f.Close()

	var users []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		users = append(users, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read users file: %w", err)
	}
	return users, nil
}

// mergeUsers appends extra to base, trimming blanks and dropping duplicates
// while keeping first-seen order.
func mergeUsers(base, extra []string) []string {
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, u := range list {
			u = strings.TrimSpace(u)
			if u == "" {
				continue
			}
			if _, dup := seen[u]; dup {
				continue
			}
			seen[u] = struct{}{}
			out = append(out, u)
		}
	}
	return out
}
