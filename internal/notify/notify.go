// Package notify is the shared notification bridge. Watchers and
// action triggers push items into it from independent goroutines; the
// bridge derives a stable id per item so the same underlying failure
// reported twice lands in the queue exactly once. Items and read state
// persist in a local BoltDB file so unread badges survive restarts,
// but persistence is strictly best-effort: a broken or missing store
// never fails a push.
package notify

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.etcd.io/bbolt"

	"github.com/swap2you/chakraops/internal/metrics"
)

const (
	SourceSystem = "system"
	SourceAlert  = "alert"

	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

const (
	itemsBucket = "notifications"
	readBucket  = "read"
)

type Item struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	Severity   string    `json:"severity"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
	Symbol     string    `json:"symbol,omitempty"`
	RunID      string    `json:"run_id,omitempty"`
	DecisionTs string    `json:"decision_ts,omitempty"`
}

// CenterItem is an item with its read flag, for the notification
// center view.
type CenterItem struct {
	Item
	Read bool `json:"read"`
}

// Group is a recency bucket of the notification center.
type Group struct {
	Label string       `json:"label"`
	Items []CenterItem `json:"items"`
}

type Bridge struct {
	mu    sync.Mutex
	db    *bbolt.DB // nil when persistence is unavailable
	items map[string]Item
	read  map[string]bool
	subs  []chan Item
	met   *metrics.Metrics
	now   func() time.Time
}

// Open loads the bridge, restoring persisted items and read state from
// dataPath. An empty dataPath or an unopenable database degrades to
// memory-only operation.
func Open(dataPath string, met *metrics.Metrics) *Bridge {
	b := &Bridge{
		items: map[string]Item{},
		read:  map[string]bool{},
		met:   met,
		now:   time.Now,
	}
	if dataPath == "" {
		return b
	}

	dbPath := filepath.Join(dataPath, "chakraops-notify.db")
	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		log.Warn().Err(err).Str("path", dbPath).Msg("notification store unavailable, running memory-only")
		return b
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(itemsBucket)); err != nil {
			return fmt.Errorf("create items bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(readBucket)); err != nil {
			return fmt.Errorf("create read bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Msg("notification store init failed, running memory-only")
		db.Close()
		return b
	}

	b.db = db
	b.restore()
	return b
}

func (b *Bridge) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

// Push appends item to the queue. A missing id is derived from the
// item's identity fields; a missing timestamp is stamped now. Pushing
// an item whose id is already queued is a no-op. Push never fails.
func (b *Bridge) Push(item Item) string {
	if item.ID == "" {
		item.ID = deriveID(item)
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = b.now()
	}

	b.mu.Lock()
	if _, exists := b.items[item.ID]; exists {
		b.mu.Unlock()
		b.met.NotificationDeduped()
		return item.ID
	}
	b.items[item.ID] = item
	subs := make([]chan Item, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	b.met.NotificationPushed()
	b.persistItem(item)

	for _, ch := range subs {
		select {
		case ch <- item:
		default:
		}
	}
	return item.ID
}

// All returns every queued item, newest first.
func (b *Bridge) All() []Item {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Item, 0, len(b.items))
	for _, item := range b.items {
		out = append(out, item)
	}
	sortNewestFirst(out)
	return out
}

// Alerts returns the alert-sourced items for dashboard badges, newest
// first.
func (b *Bridge) Alerts() []Item {
	out := []Item{}
	for _, item := range b.All() {
		if item.Source == SourceAlert {
			out = append(out, item)
		}
	}
	return out
}

// Groups returns the unread-aware notification center view, bucketed
// by recency relative to now.
func (b *Bridge) Groups() []Group {
	b.mu.Lock()
	read := make(map[string]bool, len(b.read))
	for id, r := range b.read {
		read[id] = r
	}
	b.mu.Unlock()

	now := b.now()
	today := Group{Label: "today"}
	yesterday := Group{Label: "yesterday"}
	earlier := Group{Label: "earlier"}
	for _, item := range b.All() {
		ci := CenterItem{Item: item, Read: read[item.ID]}
		age := now.Sub(item.CreatedAt)
		switch {
		case age < 24*time.Hour:
			today.Items = append(today.Items, ci)
		case age < 48*time.Hour:
			yesterday.Items = append(yesterday.Items, ci)
		default:
			earlier.Items = append(earlier.Items, ci)
		}
	}

	groups := []Group{}
	for _, g := range []Group{today, yesterday, earlier} {
		if len(g.Items) > 0 {
			groups = append(groups, g)
		}
	}
	return groups
}

// UnreadCount reports how many queued items are unread.
func (b *Bridge) UnreadCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	count := 0
	for id := range b.items {
		if !b.read[id] {
			count++
		}
	}
	return count
}

// MarkRead flags ids as read. Read state lives apart from the items so
// marking never mutates the queue itself.
func (b *Bridge) MarkRead(ids ...string) {
	b.mu.Lock()
	for _, id := range ids {
		if _, exists := b.items[id]; exists {
			b.read[id] = true
		}
	}
	b.mu.Unlock()
	b.persistRead(ids)
}

// MarkAllRead flags everything currently queued as read.
func (b *Bridge) MarkAllRead() {
	b.mu.Lock()
	ids := make([]string, 0, len(b.items))
	for id := range b.items {
		b.read[id] = true
		ids = append(ids, id)
	}
	b.mu.Unlock()
	b.persistRead(ids)
}

// Subscribe returns a channel receiving each newly accepted item.
// Delivery is lossy for slow consumers.
func (b *Bridge) Subscribe() <-chan Item {
	ch := make(chan Item, 16)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch
}

func deriveID(item Item) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%s|%s|%s", item.Source, item.Severity, item.Title, item.Message, item.Symbol)
	return fmt.Sprintf("%016x", h.Sum64())
}

func sortNewestFirst(items []Item) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}

func (b *Bridge) restore() {
	err := b.db.View(func(tx *bbolt.Tx) error {
		if bucket := tx.Bucket([]byte(itemsBucket)); bucket != nil {
			bucket.ForEach(func(k, v []byte) error {
				var item Item
				if json.Unmarshal(v, &item) == nil && item.ID != "" {
					b.items[item.ID] = item
				}
				return nil
			})
		}
		if bucket := tx.Bucket([]byte(readBucket)); bucket != nil {
			bucket.ForEach(func(k, v []byte) error {
				b.read[string(k)] = true
				return nil
			})
		}
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Msg("notification restore failed")
	}
}

func (b *Bridge) persistItem(item Item) {
	if b.db == nil {
		return
	}
	err := b.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("marshal notification: %w", err)
		}
		return tx.Bucket([]byte(itemsBucket)).Put([]byte(item.ID), data)
	})
	if err != nil {
		log.Warn().Err(err).Str("id", item.ID).Msg("notification persist failed")
	}
}

func (b *Bridge) persistRead(ids []string) {
	if b.db == nil || len(ids) == 0 {
		return
	}
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(readBucket))
		for _, id := range ids {
			if err := bucket.Put([]byte(id), []byte{1}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Msg("read-state persist failed")
	}
}
