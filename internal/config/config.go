// Package config implements spec.md §4's repository configuration: a
// two-level (section[.subsection].key = value) record, read from and
// written to a single INI-like file — most importantly core.bare and
// remote.<name>.url.
//
// No example repo in the corpus parses this exact section/subsection
// grammar (git-style `[remote "name"]` headers), so this is a small
// hand-rolled line parser rather than an adopted third-party library —
// see DESIGN.md for the standard-library justification.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var sectionRe = regexp.MustCompile(`^\[([A-Za-z0-9-]+)(?:\s+"([^"]*)")?\]$`)

// Config is a section[.subsection] -> key -> value table.
type Config struct {
	path string
	data map[string]map[string]string // "section" or "section\x00subsection" -> key -> value
}

func key(section, subsection string) string {
	if subsection == "" {
		return section
	}
	return section + "\x00" + subsection
}

// Load reads path, or returns an empty Config if it doesn't exist yet.
func Load(path string) (*Config, error) {
	c := &Config{path: path, data: map[string]map[string]string{}}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, err
	}
	defer f.Close()

	section, subsection := "", ""
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if m := sectionRe.FindStringSubmatch(line); m != nil {
			section, subsection = m[1], m[2]
			continue
		}
		eq := strings.Index(line, "=")
		if eq < 0 {
			return nil, fmt.Errorf("config: malformed line %q", line)
		}
		k := strings.TrimSpace(line[:eq])
		v := strings.TrimSpace(line[eq+1:])
		c.Set(section, subsection, k, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns the value at (section, subsection, k), or ok=false.
func (c *Config) Get(section, subsection, k string) (string, bool) {
	m, ok := c.data[key(section, subsection)]
	if !ok {
		return "", false
	}
	v, ok := m[k]
	return v, ok
}

// Set stores a value, creating the section/subsection if needed.
func (c *Config) Set(section, subsection, k, v string) {
	sk := key(section, subsection)
	m, ok := c.data[sk]
	if !ok {
		m = map[string]string{}
		c.data[sk] = m
	}
	m[k] = v
}

// Save writes the config back to its file.
func (c *Config) Save() error {
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o777); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-config-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	w := bufio.NewWriter(tmp)
	for _, sk := range c.sortedSectionKeys() {
		section, subsection := splitKey(sk)
		if subsection == "" {
			fmt.Fprintf(w, "[%s]\n", section)
		} else {
			fmt.Fprintf(w, "[%s %q]\n", section, subsection)
		}
		m := c.data[sk]
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "\t%s = %s\n", k, m[k])
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, c.path)
}

func (c *Config) sortedSectionKeys() []string {
	keys := make([]string, 0, len(c.data))
	for k := range c.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func splitKey(sk string) (section, subsection string) {
	parts := strings.SplitN(sk, "\x00", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return parts[0], ""
}

// IsBare reports core.bare, defaulting to false.
func (c *Config) IsBare() bool {
	v, ok := c.Get("core", "", "bare")
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

// SetBare sets core.bare.
func (c *Config) SetBare(bare bool) {
	c.Set("core", "", "bare", strconv.FormatBool(bare))
}

// RemoteURL returns remote.<name>.url, or ok=false if name isn't
// configured.
func (c *Config) RemoteURL(name string) (string, bool) {
	return c.Get("remote", name, "url")
}

// SetRemoteURL sets remote.<name>.url.
func (c *Config) SetRemoteURL(name, url string) {
	c.Set("remote", name, "url", url)
}

// RemoteNames lists every configured remote, sorted.
func (c *Config) RemoteNames() []string {
	var out []string
	for sk := range c.data {
		section, subsection := splitKey(sk)
		if section == "remote" && subsection != "" {
			out = append(out, subsection)
		}
	}
	sort.Strings(out)
	return out
}

// RemoveRemote deletes a remote's section entirely.
func (c *Config) RemoveRemote(name string) {
	delete(c.data, key("remote", name))
}
