// Package searchcache is a rebuildable, secondary read-through cache of
// remote-adapter search results, backed by modernc.org/sqlite. It is
// explicitly NOT the Mapping Store (internal/store): it holds no
// mappings or snapshots, only recently-seen jira_search/jira_get_issue
// results keyed by query, so the Mapper's candidate search during auto
// and interactive mapping doesn't re-issue identical remote calls
// within a short window. Deleting this database loses nothing but a
// warm cache; it is rebuilt transparently on the next search.
package searchcache

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jra3/tasksync/internal/model"
)

//go:embed schema.sql
var schemaSQL string

// DefaultTTL is how long a cached search result is considered fresh
// before a caller should treat it as a miss and re-query the remote
// adapter.
const DefaultTTL = 5 * time.Minute

// Cache wraps a sqlite-backed store of cached search/get-issue results.
type Cache struct {
	db *sql.DB
}

// Open opens or creates the cache database at path, recreating it from
// scratch if the existing file has an incompatible schema (mirrors the
// recover-by-recreating behavior of Linear-Fuse's own issue cache,
// since this cache carries no data that can't be regenerated).
func Open(path string) (*Cache, error) {
	c, err := openDB(path)
	if err != nil {
		if isSchemaMismatch(err) {
			os.Remove(path)
			os.Remove(path + "-wal")
			os.Remove(path + "-shm")
			return openDB(path)
		}
		return nil, err
	}
	return c, nil
}

func isSchemaMismatch(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "no such column") ||
		strings.Contains(msg, "no such table") ||
		strings.Contains(msg, "SQL logic error")
}

func openDB(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create searchcache directory: %w", err)
	}

	escaped := strings.ReplaceAll(path, " ", "%20")
	db, err := sql.Open("sqlite", "file:"+escaped+"?_time_format=sqlite")
	if err != nil {
		return nil, fmt.Errorf("open searchcache db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize searchcache schema: %w", err)
	}

	return &Cache{db: db}, nil
}

// Close closes the underlying database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}

// GetSearch returns the cached issue list for jql if it was cached
// within ttl, or (nil, false) on a miss.
func (c *Cache) GetSearch(jql string, ttl time.Duration) ([]model.Issue, bool, error) {
	row := c.db.QueryRow(`SELECT payload, cached_at FROM search_results WHERE jql = ?`, jql)
	var payload string
	var cachedAt int64
	if err := row.Scan(&payload, &cachedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read cached search: %w", err)
	}
	if time.Since(time.Unix(cachedAt, 0)) > ttl {
		return nil, false, nil
	}
	var issues []model.Issue
	if err := json.Unmarshal([]byte(payload), &issues); err != nil {
		return nil, false, fmt.Errorf("parse cached search payload: %w", err)
	}
	return issues, true, nil
}

// PutSearch stores a search result set under jql, overwriting any
// prior entry.
func (c *Cache) PutSearch(jql string, issues []model.Issue) error {
	payload, err := json.Marshal(issues)
	if err != nil {
		return fmt.Errorf("marshal search payload: %w", err)
	}
	_, err = c.db.Exec(
		`INSERT INTO search_results (jql, payload, cached_at) VALUES (?, ?, ?)
		 ON CONFLICT(jql) DO UPDATE SET payload = excluded.payload, cached_at = excluded.cached_at`,
		jql, string(payload), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("write cached search: %w", err)
	}
	return nil
}

// GetIssue returns the cached issue for key if cached within ttl.
func (c *Cache) GetIssue(key string, ttl time.Duration) (model.Issue, bool, error) {
	row := c.db.QueryRow(`SELECT payload, cached_at FROM issue_cache WHERE key = ?`, key)
	var payload string
	var cachedAt int64
	if err := row.Scan(&payload, &cachedAt); err != nil {
		if err == sql.ErrNoRows {
			return model.Issue{}, false, nil
		}
		return model.Issue{}, false, fmt.Errorf("read cached issue: %w", err)
	}
	if time.Since(time.Unix(cachedAt, 0)) > ttl {
		return model.Issue{}, false, nil
	}
	var issue model.Issue
	if err := json.Unmarshal([]byte(payload), &issue); err != nil {
		return model.Issue{}, false, fmt.Errorf("parse cached issue payload: %w", err)
	}
	return issue, true, nil
}

// PutIssue caches a single issue lookup by key.
func (c *Cache) PutIssue(key string, issue model.Issue) error {
	payload, err := json.Marshal(issue)
	if err != nil {
		return fmt.Errorf("marshal issue payload: %w", err)
	}
	_, err = c.db.Exec(
		`INSERT INTO issue_cache (key, payload, cached_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, cached_at = excluded.cached_at`,
		key, string(payload), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("write cached issue: %w", err)
	}
	return nil
}

// Invalidate drops any cached entry for key, so a subsequent GetIssue
// misses instead of returning data cached before an update.
func (c *Cache) Invalidate(key string) error {
	_, err := c.db.Exec(`DELETE FROM issue_cache WHERE key = ?`, key)
	return err
}
