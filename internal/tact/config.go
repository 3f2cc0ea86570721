package tact

import (
	"bufio"
	"fmt"
	"strings"
)

// Config is a mapping from name to an ordered list of whitespace-split
// values, as served by the `key = v1 v2 ...` build-config / CDN-config
// text format.
type Config map[string][]string

// ParseConfig decodes a config text blob. Empty and `#`-prefixed lines
// are ignored. Each remaining line must contain " = " exactly once;
// duplicate keys: last write wins.
func ParseConfig(data []byte) (Config, error) {
	cfg := make(Config)
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, rest, ok := strings.Cut(line, " = ")
		if !ok {
			return nil, fmt.Errorf("%w: config line %q missing ' = ' separator", ErrParse, line)
		}
		if strings.Contains(rest, " = ") {
			return nil, fmt.Errorf("%w: config line %q has more than one ' = ' separator", ErrParse, line)
		}
		cfg[key] = strings.Fields(rest)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return cfg, nil
}

// Values returns the ordered value list for key.
func (c Config) Values(key string) ([]string, bool) {
	v, ok := c[key]
	return v, ok
}

// First returns the first value for key.
func (c Config) First(key string) (string, bool) {
	v, ok := c[key]
	if !ok || len(v) == 0 {
		return "", false
	}
	return v[0], true
}

// Second returns the second value for key (e.g. the `encoding` config
// entry's EKey, at index 1).
func (c Config) Second(key string) (string, bool) {
	v, ok := c[key]
	if !ok || len(v) < 2 {
		return "", false
	}
	return v[1], true
}
