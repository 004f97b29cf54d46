package catalog

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/nkruiper/ls-updater/internal/domain/release"
)

// releaseButtonClass marks the download anchors on the releases page.
const releaseButtonClass = "release-button"

// parseReleases scans the page HTML for release anchors, in document order.
func parseReleases(r io.Reader) ([]release.Release, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}

	var (
		releases []release.Release
		parseErr error
	)

	for node := range doc.Descendants() {
		if parseErr != nil {
			break
		}

		href, ok := releaseAnchorHref(node)
		if !ok {
			continue
		}

		entry, err := releaseFromURL(href)
		if err != nil {
			parseErr = err
			break
		}

		releases = append(releases, entry)
	}

	if parseErr != nil {
		return nil, parseErr
	}

	if len(releases) == 0 {
		return nil, fmt.Errorf("%w: no release anchors found", ErrUnparseable)
	}

	return releases, nil
}

// releaseAnchorHref returns the href of an anchor element carrying the
// release-button class.
func releaseAnchorHref(node *html.Node) (string, bool) {
	if node.Type != html.ElementNode || node.Data != "a" {
		return "", false
	}

	var href string

	hasClass := false

	for _, attr := range node.Attr {
		switch attr.Key {
		case "class":
			for _, class := range strings.Fields(attr.Val) {
				if class == releaseButtonClass {
					hasClass = true
				}
			}
		case "href":
			href = attr.Val
		}
	}

	if !hasClass || href == "" {
		return "", false
	}

	return href, true
}

// releaseFromURL derives channel and version code from a release URL.
//
// The channel comes from literal substrings of the URL; the page publishes
// the latest-stable track under the historical "unstable" channel name and
// the unstable-releases track under "dev". The version code comes from the
// trailing filename segment, e.g. ".../limesurvey5.6.68+240625.zip".
func releaseFromURL(href string) (release.Release, error) {
	var channel release.Channel

	switch {
	case strings.Contains(href, "lts"):
		channel = release.ChannelLTS
	case strings.Contains(href, "latest-stable"):
		channel = release.ChannelUnstable
	case strings.Contains(href, "unstable-releases"):
		channel = release.ChannelDev
	default:
		return release.Release{}, fmt.Errorf("%w: no channel in release URL %s", ErrUnparseable, href)
	}

	segments := strings.Split(strings.TrimSuffix(href, "/"), "/")
	filename := segments[len(segments)-1]
	filename = strings.TrimSuffix(filename, ".zip")

	// The filename embeds the application name before the version.
	if i := strings.LastIndex(filename, "limesurvey"); i >= 0 {
		filename = filename[i+len("limesurvey"):]
	}

	version, build, ok := strings.Cut(filename, "+")
	if !ok || version == "" || build == "" {
		return release.Release{}, fmt.Errorf("%w: no version code in release URL %s", ErrUnparseable, href)
	}

	return release.Release{
		Code:        version + "+" + build,
		Channel:     channel,
		DownloadURL: href,
	}, nil
}
