package release

import (
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// CompareMode selects how an installed version code is compared against a
// candidate release code.
type CompareMode string

const (
	// CompareExact treats version codes as opaque strings: any difference,
	// in either direction, triggers an upgrade. This is the historical
	// behavior and the default.
	CompareExact CompareMode = "exact"
	// CompareSemver orders version codes numerically and upgrades only when
	// the candidate is strictly newer than the installed code.
	CompareSemver CompareMode = "semver"
)

// ParseCompareMode converts string input to a CompareMode.
// An empty string selects CompareExact.
func ParseCompareMode(s string) (CompareMode, bool) {
	switch CompareMode(s) {
	case "":
		return CompareExact, true
	case CompareExact:
		return CompareExact, true
	case CompareSemver:
		return CompareSemver, true
	default:
		return "", false
	}
}

var (
	// ErrNoCompatibleRelease is returned when the catalog has no entry for
	// the configured channel.
	ErrNoCompatibleRelease = errors.New("no compatible release for channel")

	// ErrAlreadyUpToDate is returned when the installation already matches
	// the selected release. It is a success outcome, not a failure: callers
	// map it to a clean exit.
	ErrAlreadyUpToDate = errors.New("installation is already up to date")
)

// Resolve picks the release to install.
//
// The candidate is the first release in catalog order whose channel matches;
// catalog page order is the implicit priority order, there is no recency sort.
// With CompareExact the candidate's code is compared to the installed code as
// an opaque string, so a candidate that merely differs (even one with a lower
// build number) is still treated as an upgrade target. CompareSemver instead
// requires the candidate to be strictly newer; codes that fail to parse fall
// back to the exact comparison.
func Resolve(installed InstalledVersion, releases []Release, channel Channel, mode CompareMode) (*Release, error) {
	var match *Release

	for i := range releases {
		if releases[i].Channel == channel {
			match = &releases[i]
			break
		}
	}

	if match == nil {
		return nil, fmt.Errorf("%w %q", ErrNoCompatibleRelease, channel)
	}

	installedCode := installed.Code()

	switch mode {
	case CompareSemver:
		if !newerThan(match.Code, installedCode) {
			return nil, fmt.Errorf("%w: installed %s, %s channel offers %s",
				ErrAlreadyUpToDate, installedCode, channel, match.Code)
		}
	default:
		if match.Code == installedCode {
			return nil, fmt.Errorf("%w: %s is the most recent for the %s channel",
				ErrAlreadyUpToDate, installedCode, channel)
		}
	}

	return match, nil
}

// newerThan reports whether candidate orders strictly after installed.
// Version codes are semver-shaped ("5.6.68+240625"), but build metadata is
// ignored by semver precedence rules, so builds are compared separately when
// the release numbers tie. Unparseable codes degrade to string inequality.
func newerThan(candidate, installed string) bool {
	candidateVersion, err := semver.NewVersion(candidate)
	if err != nil {
		return candidate != installed
	}

	installedVersion, err := semver.NewVersion(installed)
	if err != nil {
		return candidate != installed
	}

	if candidateVersion.GreaterThan(installedVersion) {
		return true
	}

	if !candidateVersion.Equal(installedVersion) {
		return false
	}

	return candidateVersion.Metadata() > installedVersion.Metadata()
}
