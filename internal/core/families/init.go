// Package families registers the relief resource families with the core registry.
// Import this package to ensure all families are registered.
package families

// Each family file registers its definition from init(); this file holds the
// keys and lifecycles they share.

import "github.com/JonMunkholm/relief/internal/record"

// Lifecycles shared by the family tables.
var (
	statusLifecycle = record.Lifecycle{Kind: record.LifecycleStatus, Column: "status", Deleted: "deleted"}
	blacklistFlag   = record.Lifecycle{Kind: record.LifecycleFlag, Column: "is_blacklisted", Deleted: true}
)

// Family keys.
const (
	Grids                  = "grids"
	DisasterAreas          = "disaster_areas"
	VolunteerRegistrations = "volunteer_registrations"
	SupplyDonations        = "supply_donations"
	Users                  = "users"
	Blacklist              = "blacklist"
	Announcements          = "announcements"
)
