package types

import "errors"

// Supported backend names.
const (
	BackendGitHub = "github"
	BackendSQLite = "sqlite"
)

// Config selects and parameterizes the DocumentStore backend.
type Config struct {
	Backend string `json:"backend" yaml:"backend"`

	// GitHub backend.
	Owner             string  `json:"owner,omitempty" yaml:"owner,omitempty"`
	Repo              string  `json:"repo,omitempty" yaml:"repo,omitempty"`
	Token             string  `json:"-" yaml:"-"`
	APIURL            string  `json:"api_url,omitempty" yaml:"api_url,omitempty"`
	Branch            string  `json:"branch,omitempty" yaml:"branch,omitempty"`
	RequestsPerSecond float64 `json:"requests_per_second,omitempty" yaml:"requests_per_second,omitempty"`

	// SQLite backend.
	DataDir string `json:"data_dir,omitempty" yaml:"data_dir,omitempty"`
}

// Config validation errors.
var (
	ErrBackendEmpty   = errors.New("backend must not be empty")
	ErrBackendUnknown = errors.New("unknown backend")
	ErrOwnerEmpty     = errors.New("github owner must not be empty")
	ErrRepoEmpty      = errors.New("github repo must not be empty")
	ErrTokenEmpty     = errors.New("github token must not be empty")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendGitHub: true,
	BackendSQLite: true,
}

// Validate checks that the Config is well-formed for its backend.
// It returns a sentinel error from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	if c.Backend == BackendGitHub {
		switch {
		case c.Owner == "":
			return ErrOwnerEmpty
		case c.Repo == "":
			return ErrRepoEmpty
		case c.Token == "":
			return ErrTokenEmpty
		}
	}
	return nil
}
