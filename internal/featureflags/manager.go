// Package featureflags evaluates the FEATURE_FLAGS setting.
package featureflags

import (
	"hash/fnv"
	"strconv"
	"strings"
)

// Flags read by the services.
const (
	// FeedCache routes non-moderator feed reads through the Redis cache.
	FeedCache = "feed_cache"
	// Search enables the search feed.
	Search = "search"
)

type rule struct {
	raw string
	// percent is the rollout share; 100 means on for everyone, 0 off.
	percent int
	// bucketed marks N% rules, which need a member id to evaluate.
	bucketed bool
}

// Manager holds flags parsed from a comma-separated list such as
// "feed_cache=on,search=25%". Values are on/true/1, off/false/0 or a
// percentage rolled out deterministically per member.
type Manager struct {
	rules map[string]rule
}

// NewManager parses raw. Malformed pairs and unknown values are dropped.
func NewManager(raw string) *Manager {
	m := &Manager{rules: make(map[string]rule)}
	for _, pair := range strings.Split(raw, ",") {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		name, value = normalize(name), normalize(value)
		if name == "" {
			continue
		}
		if r, ok := parseRule(value); ok {
			m.rules[name] = r
		}
	}
	return m
}

func parseRule(value string) (rule, bool) {
	switch value {
	case "on", "true", "1":
		return rule{raw: value, percent: 100}, true
	case "off", "false", "0":
		return rule{raw: value}, true
	}
	pct, found := strings.CutSuffix(value, "%")
	if !found {
		return rule{}, false
	}
	n, err := strconv.Atoi(pct)
	if err != nil {
		return rule{}, false
	}
	return rule{raw: value, percent: min(max(n, 0), 100), bucketed: true}, true
}

// Enabled evaluates name for userID. Unknown flags are off, and partial
// rollouts are off for anonymous callers.
func (m *Manager) Enabled(name string, userID uint) bool {
	if m == nil {
		return false
	}
	name = normalize(name)
	r, ok := m.rules[name]
	if !ok {
		return false
	}
	switch {
	case r.percent >= 100:
		return true
	case r.percent <= 0:
		return false
	case r.bucketed && userID == 0:
		return false
	}
	return bucket(name, userID) < uint32(r.percent)
}

// Has reports whether name is configured at all.
func (m *Manager) Has(name string) bool {
	if m == nil {
		return false
	}
	_, ok := m.rules[normalize(name)]
	return ok
}

// EnabledOr evaluates name for userID, falling back to def when m is nil
// or does not configure the flag.
func EnabledOr(m *Manager, name string, userID uint, def bool) bool {
	if !m.Has(name) {
		return def
	}
	return m.Enabled(name, userID)
}

// Raw returns the configured values keyed by flag name.
func (m *Manager) Raw() map[string]string {
	out := make(map[string]string, len(m.rules))
	for name, r := range m.rules {
		out[name] = r.raw
	}
	return out
}

// Snapshot evaluates every configured flag for userID.
func (m *Manager) Snapshot(userID uint) map[string]bool {
	out := make(map[string]bool, len(m.rules))
	for name := range m.rules {
		out[name] = m.Enabled(name, userID)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func bucket(name string, userID uint) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	_, _ = h.Write([]byte{':'})
	_, _ = h.Write(strconv.AppendUint(nil, uint64(userID), 10))
	return h.Sum32() % 100
}
