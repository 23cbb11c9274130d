package driven

import "time"

// ConfigStore is flat key/value access to the settings file. Keys are
// dotted table paths such as "embedding.model". Typed getters yield the
// zero value for a missing or unconvertible key.
type ConfigStore interface {
	Get(key string) (any, bool)
	GetString(key string) string
	GetInt(key string) int
	GetFloat(key string) float64
	GetBool(key string) bool

	// GetDuration accepts "30s" style strings or a number of seconds.
	GetDuration(key string) time.Duration

	GetStringSlice(key string) []string

	// Keys lists every stored key, sorted.
	Keys() []string

	// Set stores value and writes the file.
	Set(key string, value any) error

	// Delete removes key and writes the file. Unknown keys are ignored.
	Delete(key string) error

	Save() error
	Load() error

	// Path is the backing file, shown by "config path".
	Path() string
}
