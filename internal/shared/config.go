package shared

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/desertthunder/tempox/internal/tempo"
	"github.com/joho/godotenv"
	"golang.org/x/oauth2"
)

//go:embed config.example.toml
var exampleConf []byte

// MaxFeatureBatch is the largest number of ids the audio-features endpoint accepts per call.
const MaxFeatureBatch = 100

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	LogLevel    string            `toml:"log_level"`
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Tempo       TempoConfig       `toml:"tempo"`
	Spotify     SpotifyAPIConfig  `toml:"spotify"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials and the persisted OAuth token.
type SpotifyConfig struct {
	ClientID     string    `toml:"client_id"`
	ClientSecret string    `toml:"client_secret"`
	RedirectURI  string    `toml:"redirect_uri"`
	AccessToken  string    `toml:"access_token"`
	RefreshToken string    `toml:"refresh_token"`
	TokenExpiry  time.Time `toml:"token_expiry,omitempty"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains the OAuth callback server address.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// TempoConfig holds the partition and classification settings.
type TempoConfig struct {
	StartTempo       int     `toml:"start_tempo"`
	EndTempo         int     `toml:"end_tempo"`
	Increment        int     `toml:"increment"`
	MaxTempo         int     `toml:"max_tempo"`
	EnergyThreshold  float64 `toml:"energy_threshold"`
	EnergyCorrection bool    `toml:"energy_correction"`
	SkipOutOfRange   bool    `toml:"skip_out_of_range"`
	PruneEmpty       bool    `toml:"prune_empty"`
	Public           bool    `toml:"public"`
	Description      string  `toml:"description"`
}

// SpotifyAPIConfig tunes the Spotify client.
type SpotifyAPIConfig struct {
	RateLimit        float64 `toml:"rate_limit"` // requests per second, 0 disables limiting
	FeatureBatchSize int     `toml:"feature_batch_size"`
	CacheFeatures    bool    `toml:"cache_features"`
	APIURL           string  `toml:"api_url,omitempty"`      // overrides the Web API root
	AccountsURL      string  `toml:"accounts_url,omitempty"` // overrides the accounts service root
}

// Params converts the tempo settings to partition parameters.
func (c TempoConfig) Params() tempo.Params {
	return tempo.Params{Start: c.StartTempo, End: c.EndTempo, Increment: c.Increment, Max: c.MaxTempo}
}

// Validate reports partition and threshold problems as [tempo.ConfigurationError].
func (c TempoConfig) Validate() error {
	if err := c.Params().Validate(); err != nil {
		return err
	}
	if c.EnergyThreshold < 0 || c.EnergyThreshold > 1 {
		return &tempo.ConfigurationError{
			Field:  "energy_threshold",
			Reason: fmt.Sprintf("must be within [0, 1], got %g", c.EnergyThreshold),
		}
	}
	return nil
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	if err := c.Tempo.Validate(); err != nil {
		return err
	}
	if c.Spotify.FeatureBatchSize <= 0 || c.Spotify.FeatureBatchSize > MaxFeatureBatch {
		return fmt.Errorf("%w: feature_batch_size must be within [1, %d], got %d",
			ErrInvalidConfig, MaxFeatureBatch, c.Spotify.FeatureBatchSize)
	}
	if c.Spotify.RateLimit < 0 {
		return fmt.Errorf("%w: rate_limit must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Map returns the credentials in the form accepted by the Spotify service constructor.
func (s SpotifyConfig) Map() map[string]string {
	return map[string]string{
		"client_id":     s.ClientID,
		"client_secret": s.ClientSecret,
		"redirect_uri":  s.RedirectURI,
	}
}

// Token returns the stored OAuth token, or nil when none was saved.
func (s SpotifyConfig) Token() *oauth2.Token {
	if s.AccessToken == "" && s.RefreshToken == "" {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       s.TokenExpiry,
	}
}

// Update stores a freshly issued token. A refresh token is kept when the new token omits it.
func (s *SpotifyConfig) Update(token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("%w: empty token", ErrInvalidArgument)
	}
	s.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		s.RefreshToken = token.RefreshToken
	}
	s.TokenExpiry = token.Expiry
	return nil
}

// LoadConfig reads a TOML configuration file. Keys missing from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig writes the configuration to path. The file holds tokens, so it is written 0600.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ApplyEnv loads dotenv files (missing files are ignored) and overrides Spotify credentials with
// SPOTIFY_CLIENT_ID, SPOTIFY_CLIENT_SECRET and SPOTIFY_REDIRECT_URI when they are set.
func ApplyEnv(config *Config, files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	creds := &config.Credentials.Spotify
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		creds.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		creds.ClientSecret = v
	}
	if v := os.Getenv("SPOTIFY_REDIRECT_URI"); v != "" {
		creds.RedirectURI = v
	}
	return nil
}
