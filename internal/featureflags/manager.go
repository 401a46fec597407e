// Package featureflags evaluates rollout flags for chat features.
package featureflags

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"sync"
)

// Subject is who a flag is evaluated for.
type Subject struct {
	UserID  uint
	Faculty string
}

// Manager holds flags parsed from a key=value list and lets admins change
// them at runtime. Example: "private_message_filter=25%,read_receipts=off".
//
// Values:
//   - on/true/1 and off/false/0
//   - N% for a deterministic per-user rollout
//   - faculty:A|B to enable for the listed faculties only
type Manager struct {
	mu    sync.RWMutex
	flags map[string]string
}

// NewManager parses raw. Malformed pairs are skipped.
func NewManager(raw string) *Manager {
	m := &Manager{flags: make(map[string]string)}
	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		_ = m.Set(key, value)
	}
	return m
}

// Set validates and stores one flag value.
func (m *Manager) Set(name, value string) error {
	name = normalize(name)
	value = strings.TrimSpace(value)
	if name == "" {
		return fmt.Errorf("flag name is required")
	}
	if err := validate(value); err != nil {
		return fmt.Errorf("flag %s: %w", name, err)
	}
	if !strings.HasPrefix(strings.ToLower(value), facultyPrefix) {
		value = normalize(value)
	}

	m.mu.Lock()
	m.flags[name] = value
	m.mu.Unlock()
	return nil
}

const facultyPrefix = "faculty:"

func validate(value string) error {
	v := normalize(value)
	switch {
	case v == "":
		return fmt.Errorf("empty value")
	case v == "on", v == "true", v == "1", v == "off", v == "false", v == "0":
		return nil
	case strings.HasSuffix(v, "%"):
		pct, err := strconv.Atoi(strings.TrimSuffix(v, "%"))
		if err != nil || pct < 0 || pct > 100 {
			return fmt.Errorf("rollout must be between 0%% and 100%%")
		}
		return nil
	case strings.HasPrefix(v, facultyPrefix):
		if strings.Trim(v[len(facultyPrefix):], "| ") == "" {
			return fmt.Errorf("faculty list is empty")
		}
		return nil
	}
	return fmt.Errorf("unsupported value %q", value)
}

// Enabled reports whether name is on for subj. Unknown flags are off.
func (m *Manager) Enabled(name string, subj Subject) bool {
	if m == nil {
		return false
	}

	m.mu.RLock()
	value, ok := m.flags[normalize(name)]
	m.mu.RUnlock()
	if !ok {
		return false
	}

	switch value {
	case "on", "true", "1":
		return true
	case "off", "false", "0":
		return false
	}

	if strings.HasPrefix(strings.ToLower(value), facultyPrefix) {
		for _, f := range strings.Split(value[len(facultyPrefix):], "|") {
			if subj.Faculty != "" && strings.EqualFold(strings.TrimSpace(f), strings.TrimSpace(subj.Faculty)) {
				return true
			}
		}
		return false
	}

	pct, err := strconv.Atoi(strings.TrimSuffix(value, "%"))
	if err != nil || pct <= 0 || subj.UserID == 0 {
		return false
	}
	if pct >= 100 {
		return true
	}
	return rolloutBucket(name, subj.UserID) < pct
}

// Raw returns a copy of the configured flags.
func (m *Manager) Raw() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.flags))
	for k, v := range m.flags {
		out[k] = v
	}
	return out
}

// Snapshot evaluates every flag for subj.
func (m *Manager) Snapshot(subj Subject) map[string]bool {
	raw := m.Raw()
	out := make(map[string]bool, len(raw))
	for name := range raw {
		out[name] = m.Enabled(name, subj)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = fmt.Fprintf(h, "%s:%d", normalize(name), userID)
	return int(h.Sum32() % 100)
}
