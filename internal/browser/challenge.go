package browser

import (
	"net/url"
	"strings"

	"pathfinder/pkg/utils"
)

// challengeMarkers identify anti-bot interstitials served instead of the page
var challengeMarkers = []string{
	"challenge-platform",
	"cf-chl-",
	"attention required! | cloudflare",
	"<title>just a moment...</title>",
	"captcha-delivery.com",
	"px-captcha",
}

// Challenged reports whether html is an anti-bot challenge page
func Challenged(html string) bool {
	lower := strings.ToLower(html)
	for _, m := range challengeMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// CheckChallenge returns a blocked error naming the host of target when html
// is a challenge page
func CheckChallenge(target, html string) error {
	if !Challenged(html) {
		return nil
	}
	host := target
	if u, err := url.Parse(target); err == nil && u.Hostname() != "" {
		host = strings.TrimPrefix(u.Hostname(), "www.")
	}
	return utils.NewBlockedError(host)
}
