// Package property holds the typed, versioned property store each device
// exposes to clients.
//
// A property has a fixed kind (integer, float, boolean or string), a
// permission, optional numeric bounds or string choices, and a version that
// increments on every committed change. The store is safe for concurrent use:
// readers take a shared lock and see whole values only.
//
// Two write paths exist. Set commits a driver-owned value and ignores
// permission. Apply commits a batch of hardware readings and drops any entry
// whose version moved since the reading was taken, so a slow poll never
// overwrites a newer client write.
package property
