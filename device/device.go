// Package device turns raw user-agent strings into the device descriptor
// stored on sessions and the automation signal used by risk scoring.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

const unknownDevice = "Unknown Device"

// automationTokens are client identifiers of scripted HTTP clients and
// headless browsers that useragent does not classify as bots.
var automationTokens = []string{
	"curl",
	"wget",
	"python-requests",
	"python-urllib",
	"go-http-client",
	"okhttp",
	"httpclient",
	"libwww-perl",
	"headlesschrome",
	"phantomjs",
	"selenium",
	"puppeteer",
	"playwright",
	"scrapy",
	"bot",
	"spider",
	"crawler",
}

// Info is the parsed view of a user agent.
type Info struct {
	Browser string
	Version string
	OS      string
	Mobile  bool
	Bot     bool
}

// Parse extracts browser, OS and bot classification from ua.
func Parse(ua string) Info {
	ua = strings.TrimSpace(ua)
	if ua == "" {
		return Info{Bot: true}
	}
	parsed := useragent.New(ua)
	name, version := parsed.Browser()
	return Info{
		Browser: name,
		Version: version,
		OS:      parsed.OS(),
		Mobile:  parsed.Mobile(),
		Bot:     parsed.Bot() || hasAutomationToken(ua),
	}
}

// Describe returns a short display name such as "Chrome on Linux x86_64".
func Describe(ua string) string {
	if strings.TrimSpace(ua) == "" {
		return unknownDevice
	}
	info := Parse(ua)

	browser := strings.TrimSpace(info.Browser)
	if browser == "" {
		browser = "Unknown browser"
	}
	os := strings.TrimSpace(info.OS)
	if os == "" {
		os = "unknown OS"
	}
	return browser + " on " + os
}

// IsBot reports whether ua matches a known automation or crawler signature.
// A missing user agent counts as automation.
func IsBot(ua string) bool {
	return Parse(ua).Bot
}

func hasAutomationToken(ua string) bool {
	lower := strings.ToLower(ua)
	for _, token := range automationTokens {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}
