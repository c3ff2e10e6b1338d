package config

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// ErrUnknownKey is returned for a config key digestflow does not define.
var ErrUnknownKey = errors.New("unknown config key")

// field binds a dotted key to accessors on Config.
type field struct {
	get func(c *Config) any
	set func(c *Config, v string) error
}

func stringField(p func(c *Config) *string) field {
	return field{
		get: func(c *Config) any { return *p(c) },
		set: func(c *Config, v string) error { *p(c) = v; return nil },
	}
}

func intField(p func(c *Config) *int) field {
	return field{
		get: func(c *Config) any { return *p(c) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("expected an integer, got %q", v)
			}
			*p(c) = n
			return nil
		},
	}
}

func boolField(p func(c *Config) *bool) field {
	return field{
		get: func(c *Config) any { return *p(c) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("expected true or false, got %q", v)
			}
			*p(c) = b
			return nil
		},
	}
}

func durationField(p func(c *Config) *time.Duration) field {
	return field{
		get: func(c *Config) any { return *p(c) },
		set: func(c *Config, v string) error {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("expected a duration like 500ms, got %q", v)
			}
			*p(c) = d
			return nil
		},
	}
}

var fields = map[string]field{
	"digest.enzyme":           stringField(func(c *Config) *string { return &c.Digest.Enzyme }),
	"digest.missed_cleavages": intField(func(c *Config) *int { return &c.Digest.MissedCleavages }),
	"digest.min_length":       intField(func(c *Config) *int { return &c.Digest.MinLength }),
	"digest.max_length":       intField(func(c *Config) *int { return &c.Digest.MaxLength }),
	"count.amino_acid":        stringField(func(c *Config) *string { return &c.Count.AminoAcid }),
	"executor.name":           stringField(func(c *Config) *string { return &c.Executor.Name }),
	"executor.workers":        intField(func(c *Config) *int { return &c.Executor.Workers }),
	"executor.retries":        intField(func(c *Config) *int { return &c.Executor.Retries }),
	"executor.retry_backoff":  durationField(func(c *Config) *time.Duration { return &c.Executor.RetryBackoff }),
	"paths.data_dir":          stringField(func(c *Config) *string { return &c.Paths.DataDir }),
	"cache.enabled":           boolField(func(c *Config) *bool { return &c.Cache.Enabled }),
	"cache.driver":            stringField(func(c *Config) *string { return &c.Cache.Driver }),
	"cache.path":              stringField(func(c *Config) *string { return &c.Cache.Path }),
	"watch.debounce":          durationField(func(c *Config) *time.Duration { return &c.Watch.Debounce }),
}

// Keys returns every config key in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the value of key in cfg formatted as a string.
func Get(cfg *Config, key string) (string, error) {
	f, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return fmt.Sprint(f.get(cfg)), nil
}

// fileValue returns the typed value of key as written to a config file.
func fileValue(cfg *Config, key string) any {
	v := fields[key].get(cfg)
	if d, ok := v.(time.Duration); ok {
		return d.String()
	}
	return v
}

// Set parses value and stores it under key in cfg. The updated config is
// validated; on failure cfg is left unchanged.
func Set(cfg *Config, key, value string) error {
	f, ok := fields[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	next := *cfg
	if err := f.set(&next, value); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*cfg = next
	return nil
}
