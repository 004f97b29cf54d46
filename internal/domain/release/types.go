package release

import "strings"

// Channel is the release track an installation follows.
type Channel string

const (
	// ChannelLTS is the long-term-support track.
	ChannelLTS Channel = "lts"
	// ChannelUnstable is the latest-stable track. The catalog publishes it
	// under a "latest-stable" URL, but configurations have always called it
	// "unstable"; the historical name is kept for compatibility.
	ChannelUnstable Channel = "unstable"
	// ChannelDev is the development releases track.
	ChannelDev Channel = "dev"
)

// ParseChannel converts string input to a Channel.
func ParseChannel(s string) (Channel, bool) {
	switch Channel(strings.ToLower(strings.TrimSpace(s))) {
	case ChannelLTS:
		return ChannelLTS, true
	case ChannelUnstable:
		return ChannelUnstable, true
	case ChannelDev:
		return ChannelDev, true
	default:
		return "", false
	}
}

// InstalledVersion is the version currently on disk, read from the
// installation's version descriptor at workflow start.
type InstalledVersion struct {
	// Version is the dotted release number, e.g. "5.6.68".
	Version string
	// Build is the build identifier, an integer-like string.
	Build string
}

// Code combines version and build into the version code used for comparison
// and for naming backup artifacts.
func (v InstalledVersion) Code() string {
	return v.Version + "+" + v.Build
}

// Major returns the leading dotted component of the version, or an empty
// string when the version has no content before the first dot.
func (v InstalledVersion) Major() string {
	major, _, _ := strings.Cut(v.Version, ".")
	return major
}

// Release is one downloadable upgrade candidate from the catalog.
type Release struct {
	// Code is the version code of the candidate, e.g. "6.6.0+240903".
	Code string
	// Channel is the track this candidate was published on.
	Channel Channel
	// DownloadURL is where the release archive can be fetched.
	DownloadURL string
}
