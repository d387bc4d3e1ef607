package domain

import (
	"testing"
	"time"
)

func TestDriverSessionOfflineFor(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	since := now.Add(-15 * time.Minute)

	explicit := DriverSession{Status: DriverOffline, OfflineSince: &since, LastSeen: since}
	if got := explicit.OfflineFor(now, 2*time.Minute); got != 15*time.Minute {
		t.Fatalf("explicit logout offline for %v, want 15m", got)
	}

	lapsed := DriverSession{Status: DriverOnline, LastSeen: now.Add(-7 * time.Minute)}
	if got := lapsed.OfflineFor(now, 2*time.Minute); got != 5*time.Minute {
		t.Fatalf("lapsed heartbeat offline for %v, want 5m", got)
	}

	fresh := DriverSession{Status: DriverOnline, LastSeen: now.Add(-time.Minute)}
	if got := fresh.OfflineFor(now, 2*time.Minute); got != 0 {
		t.Fatalf("fresh session offline for %v, want 0", got)
	}
}
