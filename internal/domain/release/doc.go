// Package release contains core domain types for the upgrade business logic.
//
// It defines Channel (the release track an installation is pinned to),
// InstalledVersion and Release (the two sides of the upgrade decision), and
// the Resolve function that picks the release to install, if any.
package release
