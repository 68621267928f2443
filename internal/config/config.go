// Package config fetches a connector's configuration from the daemon,
// flattens it into a dot-keyed string map, and exposes typed accessors
// with defaults. A background loop can keep the cache refreshed.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/laofahai/linch-mind-sub000/internal/discovery"
	"github.com/laofahai/linch-mind-sub000/internal/ipc"
	"github.com/laofahai/linch-mind-sub000/internal/validation"
	"github.com/laofahai/linch-mind-sub000/internal/xdg"
)

// Cache holds a connector's flattened configuration and can be
// refreshed atomically in the background.
type Cache struct {
	mu          sync.RWMutex
	values      map[string]string
	client      *ipc.Client
	connectorID string
	logger      *logrus.Logger

	monitorOnce sync.Once
	monitorDone chan struct{}
	monitorWG   sync.WaitGroup
}

// currentConfigEnvelope mirrors the /connector-config/current/{id}
// response, which may wrap the config object or be the object itself.
type currentConfigEnvelope struct {
	Config map[string]interface{} `json:"config"`
}

type defaultsEnvelope struct {
	DefaultConfig map[string]interface{} `json:"default_config"`
}

// LoadFromDaemon fetches, flattens, and caches connector configuration.
// An empty fetched config triggers a defaults fetch and a best-effort
// apply-defaults persist call; failure there is non-fatal.
func LoadFromDaemon(client *ipc.Client, connectorID string, logger *logrus.Logger) (*Cache, error) {
	c := &Cache{
		values:      map[string]string{},
		client:      client,
		connectorID: connectorID,
		logger:      logger,
	}

	raw, err := client.Get(fmt.Sprintf("/connector-config/current/%s", connectorID))
	if err != nil {
		return nil, fmt.Errorf("fetching current config: %w", err)
	}

	fields, err := extractConfigObject(raw)
	if err != nil {
		return nil, err
	}

	if len(fields) == 0 {
		fields = c.loadDefaults()
	}

	c.values = flatten(fields)
	return c, nil
}

func (c *Cache) loadDefaults() map[string]interface{} {
	raw, err := c.client.Get(fmt.Sprintf("/connector-config/defaults/%s", c.connectorID))
	if err != nil {
		c.warn("fetching default config failed", err)
		return map[string]interface{}{}
	}

	var env defaultsEnvelope
	if err := ipc.Decode(raw, &env); err != nil {
		c.warn("decoding default config failed", err)
		return map[string]interface{}{}
	}

	if _, err := c.client.Post("/connector-config/apply-defaults", map[string]string{
		"connector_id": c.connectorID,
	}); err != nil {
		c.warn("persisting default config failed, continuing with in-memory defaults", err)
	}

	return env.DefaultConfig
}

func extractConfigObject(raw json.RawMessage) (map[string]interface{}, error) {
	var wrapped currentConfigEnvelope
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Config != nil {
		return wrapped.Config, nil
	}

	var bare map[string]interface{}
	if err := json.Unmarshal(raw, &bare); err != nil {
		return nil, fmt.Errorf("decoding config object: %w", err)
	}
	return bare, nil
}

// flatten joins one level of nested objects into dot-keys and
// stringifies scalar values (spec.md §4.4).
func flatten(fields map[string]interface{}) map[string]string {
	out := make(map[string]string, len(fields))
	for key, value := range fields {
		switch v := value.(type) {
		case map[string]interface{}:
			for nestedKey, nestedValue := range v {
				out[key+"."+nestedKey] = stringify(nestedValue)
			}
		default:
			out[key] = stringify(value)
		}
	}
	return out
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	case json.Number:
		return t.String()
	default:
		encoded, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(encoded)
	}
}

func (c *Cache) warn(msg string, err error) {
	if c.logger != nil {
		c.logger.WithError(err).WithField("component", "config").Warn(msg)
	}
}

// replace swaps the cached values atomically.
func (c *Cache) replace(values map[string]string) {
	c.mu.Lock()
	c.values = values
	c.mu.Unlock()
}

// GetString returns the string value for key, or def if absent.
func (c *Cache) GetString(key, def string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if v, ok := c.values[key]; ok {
		return v
	}
	return def
}

// GetInt returns the integer value for key, or def if absent or unparsable.
func (c *Cache) GetInt(key string, def int) int {
	raw := c.GetString(key, "")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

// GetBool returns the boolean value for key, or def if absent or unparsable.
func (c *Cache) GetBool(key string, def bool) bool {
	raw := c.GetString(key, "")
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return b
}

// GetDuration interprets key as a count of seconds (spec.md's
// check_interval convention) and returns it as a time.Duration.
func (c *Cache) GetDuration(key string, def time.Duration) time.Duration {
	seconds := c.GetInt(key, -1)
	if seconds < 0 {
		return def
	}
	return time.Duration(seconds) * time.Second
}

// GetStringSlice returns a set-valued option. Accepts either a JSON
// array string (`["a",".md"]`) or a comma-separated fallback (`a,.md`).
func (c *Cache) GetStringSlice(key string, def []string) []string {
	raw := c.GetString(key, "")
	if raw == "" {
		return def
	}

	var asArray []string
	if err := json.Unmarshal([]byte(raw), &asArray); err == nil {
		return asArray
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// GetExpandedPaths is GetStringSlice specialized for directory options:
// each entry has `~/` expanded and entries that don't resolve to an
// existing path are dropped with a warning (spec.md §4.4).
func (c *Cache) GetExpandedPaths(key string, def []string) []string {
	raw := c.GetStringSlice(key, def)
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		expanded, err := validation.ExpandPath(p)
		if err != nil {
			c.warn(fmt.Sprintf("dropping unexpandable path %q", p), err)
			continue
		}
		if _, err := os.Stat(expanded); err != nil {
			c.warn(fmt.Sprintf("dropping non-existent path %q", expanded), err)
			continue
		}
		out = append(out, expanded)
	}
	return out
}

// StartMonitoring begins a background loop that refetches and
// atomically replaces the cache every interval. Safe to call only once
// per Cache; subsequent calls are no-ops.
func (c *Cache) StartMonitoring(interval time.Duration) {
	c.monitorOnce.Do(func() {
		c.monitorDone = make(chan struct{})
		c.monitorWG.Add(1)
		go c.monitorLoop(interval)
	})
}

func (c *Cache) monitorLoop(interval time.Duration) {
	defer c.monitorWG.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			raw, err := c.client.Get(fmt.Sprintf("/connector-config/current/%s", c.connectorID))
			if err != nil {
				c.warn("periodic config refresh failed", err)
				continue
			}
			fields, err := extractConfigObject(raw)
			if err != nil {
				c.warn("periodic config refresh decode failed", err)
				continue
			}
			c.replace(flatten(fields))
		case <-c.monitorDone:
			return
		}
	}
}

// StopMonitoring joins the background refresh loop. Idempotent; safe
// to call even if StartMonitoring was never called.
func (c *Cache) StopMonitoring() {
	if c.monitorDone == nil {
		return
	}
	select {
	case <-c.monitorDone:
	default:
		close(c.monitorDone)
	}
	c.monitorWG.Wait()
}

// SnapshotToFile writes the current effective config to
// ${HOME}/.linch-mind/${env}/data/<connector_id>.snapshot.yaml as a
// human-readable debug artifact (spec.md §4.11). It is write-only:
// nothing in this package ever reads the snapshot back — LoadFromDaemon
// is always the source of truth.
func (c *Cache) SnapshotToFile(env string) error {
	home, err := xdg.Home()
	if err != nil {
		return fmt.Errorf("resolving home directory: %w", err)
	}
	if env == "" {
		env = discovery.DefaultEnvironment
	}

	dir := filepath.Join(home, ".linch-mind", env, "data")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}

	c.mu.RLock()
	snapshot := make(map[string]string, len(c.values))
	for k, v := range c.values {
		snapshot[k] = v
	}
	c.mu.RUnlock()

	encoded, err := yaml.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encoding config snapshot: %w", err)
	}

	path := filepath.Join(dir, c.connectorID+".snapshot.yaml")
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return fmt.Errorf("writing config snapshot: %w", err)
	}
	return nil
}
