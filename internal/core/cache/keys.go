// Package cache is the cache consistency layer: the only component that
// reads or writes the shared cache. It owns the key namespace, the
// read-through policy and the invalidation contract.
package cache

import (
	"fmt"
	"strings"
	"time"
)

// TTLs bound staleness even when an invalidation is missed.
const (
	ProfileTTL     = 10 * time.Minute
	VehicleTTL     = 5 * time.Minute
	VehicleListTTL = 5 * time.Minute
)

// Key prefixes.
const (
	UserPrefix        = "user:"
	VehiclePrefix     = "vehicles:"
	AuthPrefix        = "auth:"
	VehicleListPrefix = "vehicles:list:"
)

func ProfileKey(accountID string) string { return fmt.Sprintf("user:profile:%s", accountID) }

func EmailKey(email string) string { return fmt.Sprintf("user:email:%s", email) }

// SessionKey is reserved for per-account session data and is dropped on
// logout and password change.
func SessionKey(accountID string) string { return fmt.Sprintf("auth:tokens:%s", accountID) }

func VehicleKey(vehicleID string) string { return fmt.Sprintf("vehicles:%s", vehicleID) }

func VehicleListKey(signature string) string { return VehicleListPrefix + signature }

func VehicleByDriverKey(driverID string) string { return fmt.Sprintf("vehicles:driver:%s", driverID) }

// namespaceOf trims the id part of a key for metric labels:
// "user:profile:42" → "user:profile", "vehicles:42" → "vehicles".
func namespaceOf(key string) string {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) == 3 {
		return parts[0] + ":" + parts[1]
	}
	return parts[0]
}
