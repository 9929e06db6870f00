// Package config is the local configuration store of the shelf CLI. Values
// come from config.yaml in the config directory, SHELF_* environment
// variables and an optional .env file, in increasing precedence order for
// reads. Writes go to config.yaml only.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/bookshelf/internal/github"
	"github.com/mesh-intelligence/bookshelf/internal/paths"
	"github.com/mesh-intelligence/bookshelf/pkg/types"
)

const (
	fileName = "config"
	fileType = "yaml"
	// FileBase is the config file name inside the config directory.
	FileBase = "config.yaml"

	envPrefix = "SHELF"
)

// Config keys.
const (
	KeyBackend           = "backend"
	KeyOwner             = "github.owner"
	KeyRepo              = "github.repo"
	KeyToken             = "github.token"
	KeyAPIURL            = "github.api_url"
	KeyBranch            = "github.branch"
	KeyRequestsPerSecond = "github.requests_per_second"
	KeyDataDir           = "data_dir"
	KeyLogLevel          = "log_level"
	KeyLogFile           = "log_file"
)

// Defaults for keys that have one.
var defaults = map[string]string{
	KeyBackend:           types.BackendGitHub,
	KeyAPIURL:            github.DefaultAPIURL,
	KeyRequestsPerSecond: "5",
	KeyLogLevel:          "warn",
}

// knownKeys lists every key Set accepts.
var knownKeys = map[string]bool{
	KeyBackend: true, KeyOwner: true, KeyRepo: true, KeyToken: true,
	KeyAPIURL: true, KeyBranch: true, KeyRequestsPerSecond: true,
	KeyDataDir: true, KeyLogLevel: true, KeyLogFile: true,
}

// SecretKeys are masked when displayed.
var SecretKeys = map[string]bool{KeyToken: true}

// ErrUnknownKey is returned by Get and Set for keys outside Keys().
var ErrUnknownKey = errors.New("unknown config key")

// Store reads merged configuration and writes config.yaml.
type Store struct {
	dir    string
	merged *viper.Viper // file + env + defaults, for reads.
	file   *viper.Viper // file only, for writes.
}

// Keys returns the known keys in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(knownKeys))
	for k := range knownKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LoadDotEnv loads KEY=value pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Open reads config.yaml from dir. A missing file is not an error.
func Open(dir string) (*Store, error) {
	merged := newViper(dir)
	for k, v := range defaults {
		merged.SetDefault(k, v)
	}
	merged.SetEnvPrefix(envPrefix)
	merged.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	merged.AutomaticEnv()

	file := newViper(dir)
	for _, v := range []*viper.Viper{merged, file} {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return &Store{dir: dir, merged: merged, file: file}, nil
}

func newViper(dir string) *viper.Viper {
	v := viper.New()
	v.SetConfigName(fileName)
	v.SetConfigType(fileType)
	v.AddConfigPath(dir)
	return v
}

// Dir returns the config directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the config file path.
func (s *Store) Path() string {
	return filepath.Join(s.dir, FileBase)
}

// Get returns the effective value of key and whether it is set to a
// non-empty value.
func (s *Store) Get(key string) (string, bool, error) {
	if !knownKeys[key] {
		return "", false, fmt.Errorf("%w %q", ErrUnknownKey, key)
	}
	v := s.merged.GetString(key)
	return v, v != "", nil
}

// Set stores value for key in config.yaml, creating the directory and file
// as needed. Environment overrides are never written to the file.
func (s *Store) Set(key, value string) error {
	if !knownKeys[key] {
		return fmt.Errorf("%w %q", ErrUnknownKey, key)
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	s.file.Set(key, value)
	if err := s.file.WriteConfigAs(s.Path()); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Chmod(s.Path(), 0o600); err != nil {
		return fmt.Errorf("restrict config permissions: %w", err)
	}
	s.merged.Set(key, value)
	return nil
}

// Backend assembles the backend configuration. dataDirFlag is the
// --data-dir flag value and takes precedence over data_dir.
func (s *Store) Backend(dataDirFlag string) (types.Config, error) {
	cfg := types.Config{
		Backend:           s.merged.GetString(KeyBackend),
		Owner:             s.merged.GetString(KeyOwner),
		Repo:              s.merged.GetString(KeyRepo),
		Token:             s.merged.GetString(KeyToken),
		APIURL:            s.merged.GetString(KeyAPIURL),
		Branch:            s.merged.GetString(KeyBranch),
		RequestsPerSecond: s.merged.GetFloat64(KeyRequestsPerSecond),
	}
	if cfg.Backend == types.BackendSQLite {
		dir, err := paths.ResolveDataDir(dataDirFlag, s.merged.GetString(KeyDataDir))
		if err != nil {
			return types.Config{}, fmt.Errorf("resolve data dir: %w", err)
		}
		cfg.DataDir = dir
	}
	return cfg, nil
}
