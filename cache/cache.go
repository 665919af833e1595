// Package cache stellt einen einfachen In-Memory-Cache mit Ablaufzeit
// bereit. Es gibt keine Hintergrund-Eviction; abgelaufene Einträge
// werden beim nächsten Zugriff verworfen.
package cache

import (
	"sync"
	"time"
)

type entry struct {
	value     interface{}
	storedAt  time.Time
	expiresAt time.Time
}

// Cache ist ein TTL-Cache mit grobem Mutex. Die Uhr ist injizierbar,
// damit Tests den Ablauf deterministisch prüfen können.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]entry
}

// New erstellt einen Cache mit der angegebenen Lebensdauer pro Eintrag.
// clock darf nil sein, dann wird time.Now verwendet.
func New(ttl time.Duration, clock func() time.Time) *Cache {
	if clock == nil {
		clock = time.Now
	}
	return &Cache{
		ttl:     ttl,
		now:     clock,
		entries: make(map[string]entry),
	}
}

// Get liefert den Wert zum Schlüssel, sofern er existiert und noch nicht
// abgelaufen ist. Ein Eintrag genau am Ablaufzeitpunkt gilt als abgelaufen.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// Set speichert den Wert unter dem Schlüssel und ersetzt einen
// bestehenden Eintrag vollständig, inklusive neuer Ablaufzeit.
func (c *Cache) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[key] = entry{
		value:     value,
		storedAt:  now,
		expiresAt: now.Add(c.ttl),
	}
}

// Delete entfernt einen Eintrag, falls vorhanden.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Purge leert den Cache vollständig.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// Len gibt die Anzahl gespeicherter Einträge zurück, auch abgelaufene.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
