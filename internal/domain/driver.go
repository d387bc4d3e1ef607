package domain

import "time"

type OnlineStatus string

const (
	DriverOffline OnlineStatus = "offline"
	DriverOnline  OnlineStatus = "online"
)

// DriverSession is the server-side record of a signed-in driver.
// A driver holds at most one route at a time through CurrentRouteID.
type DriverSession struct {
	DriverID       string
	Status         OnlineStatus
	TimeSlot       TimeSlot
	CurrentRouteID string
	StartedAt      time.Time
	LastSeen       time.Time
	OfflineSince   *time.Time
}

// OfflineFor reports how long the driver has been unreachable at now.
// A session whose heartbeat is older than heartbeatTimeout counts as
// offline from the moment the heartbeat lapsed.
func (s *DriverSession) OfflineFor(now time.Time, heartbeatTimeout time.Duration) time.Duration {
	if s.Status == DriverOffline && s.OfflineSince != nil {
		return now.Sub(*s.OfflineSince)
	}
	if heartbeatTimeout > 0 {
		lapsed := s.LastSeen.Add(heartbeatTimeout)
		if now.After(lapsed) {
			return now.Sub(lapsed)
		}
	}
	return 0
}
