package cache

import (
	"testing"
	"time"
)

func TestGetBeforeExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	c := New(5*time.Minute, clock)

	c.Set("k", "v")
	now = now.Add(4 * time.Minute)

	got, ok := c.Get("k")
	if !ok {
		t.Fatalf("Eintrag vor Ablauf nicht gefunden")
	}
	if got.(string) != "v" {
		t.Fatalf("Get = %v, erwartet v", got)
	}
}

func TestGetAfterExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	c := New(5*time.Minute, clock)

	c.Set("k", "v")
	now = now.Add(5 * time.Minute)

	if _, ok := c.Get("k"); ok {
		t.Fatalf("Eintrag am Ablaufzeitpunkt darf nicht geliefert werden")
	}
	if c.Len() != 0 {
		t.Fatalf("abgelaufener Eintrag wurde nicht entfernt")
	}
}

func TestSetResetsExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	c := New(5*time.Minute, clock)

	c.Set("k", "alt")
	now = now.Add(4 * time.Minute)
	c.Set("k", "neu")
	now = now.Add(4 * time.Minute)

	got, ok := c.Get("k")
	if !ok {
		t.Fatalf("Eintrag nach erneutem Set abgelaufen")
	}
	if got.(string) != "neu" {
		t.Fatalf("Get = %v, erwartet neu", got)
	}
}

func TestDeleteAndPurge(t *testing.T) {
	c := New(time.Minute, nil)
	c.Set("a", 1)
	c.Set("b", 2)

	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Fatalf("gelöschter Eintrag noch vorhanden")
	}

	c.Purge()
	if c.Len() != 0 {
		t.Fatalf("Purge hat nicht alle Einträge entfernt")
	}
}
