package analysis

import (
	"net/url"
	"sort"
	"strings"

	"github.com/privacyanalyzer/privacyanalyzer/internal/crawl"
)

// cdnAllowlist holds hosts that serve shared infrastructure rather than
// tracking payloads; requests to these hosts never yield a Tracker record.
var cdnAllowlist = map[string]bool{
	"fonts.googleapis.com": true,
	"fonts.gstatic.com":    true,
	"cdnjs.cloudflare.com": true,
	"cdn.jsdelivr.net":     true,
	"unpkg.com":            true,
	"ajax.googleapis.com":  true,
}

// trackerPattern is one row of the static tracker classification table.
type trackerPattern struct {
	keyword string
	company string
	risk    Risk
}

// trackerPatterns is matched in order as substrings of the full request or
// script URL (host and path); the first keyword found wins.
var trackerPatterns = []trackerPattern{
	{"google-analytics.com", "Google Analytics", RiskMedium},
	{"analytics.google.com", "Google Analytics", RiskMedium},
	{"googletagmanager.com", "Google Tag Manager", RiskMedium},
	{"doubleclick.net", "Google Ads (DoubleClick)", RiskHigh},
	{"googlesyndication.com", "Google AdSense", RiskHigh},
	{"google.com/ads", "Google Ads", RiskHigh},
	{"facebook.net", "Meta Pixel", RiskHigh},
	{"facebook.com/tr", "Meta Pixel", RiskHigh},
	{"connect.facebook.net", "Meta Pixel", RiskHigh},
	{"hotjar.com", "Hotjar", RiskHigh},
	{"segment.io", "Segment", RiskMedium},
	{"segment.com", "Segment", RiskMedium},
	{"mixpanel.com", "Mixpanel", RiskMedium},
	{"amplitude.com", "Amplitude", RiskMedium},
	{"fullstory.com", "FullStory", RiskHigh},
	{"mouseflow.com", "Mouseflow", RiskHigh},
	{"clarity.ms", "Microsoft Clarity", RiskHigh},
	{"bing.com/bat", "Microsoft Ads", RiskMedium},
	{"ads-twitter.com", "X (Twitter) Ads", RiskMedium},
	{"tiktok.com", "TikTok Pixel", RiskHigh},
	{"analytics.tiktok.com", "TikTok Pixel", RiskHigh},
	{"criteo.com", "Criteo", RiskHigh},
	{"adnxs.com", "AppNexus (Xandr)", RiskHigh},
	{"taboola.com", "Taboola", RiskMedium},
	{"outbrain.com", "Outbrain", RiskMedium},
	{"scorecardresearch.com", "Comscore", RiskMedium},
	{"quantserve.com", "Quantcast", RiskMedium},
	{"newrelic.com", "New Relic", RiskLow},
	{"sentry.io", "Sentry", RiskLow},
	{"intercom.io", "Intercom", RiskLow},
	{"zendesk.com", "Zendesk", RiskLow},
	{"stripe.com", "Stripe", RiskLow},
	{"cloudflareinsights.com", "Cloudflare Insights", RiskLow},
}

// AnalyzeTrackers walks every request and script URL in the artifact and
// attributes them to the first matching company in trackerPatterns,
// deduplicating by company and excluding cdnAllowlist hosts.
func AnalyzeTrackers(artifact *crawl.Artifact) []Tracker {
	byCompany := make(map[string]*Tracker)
	order := make([]string, 0)

	observe := func(rawURL string) {
		host := hostOf(rawURL)
		if host == "" || cdnAllowlist[host] {
			return
		}
		for _, pat := range trackerPatterns {
			if !strings.Contains(rawURL, pat.keyword) {
				continue
			}
			t, ok := byCompany[pat.company]
			if !ok {
				t = &Tracker{Company: pat.company, Risk: pat.risk}
				byCompany[pat.company] = t
				order = append(order, pat.company)
			}
			if !containsStr(t.Domains, host) {
				t.Domains = append(t.Domains, host)
			}
			return
		}
	}

	for _, p := range artifact.Pages {
		for _, req := range p.Requests {
			observe(req.URL)
		}
		for _, src := range p.Scripts.ExternalURLs {
			observe(src)
		}
	}

	trackers := make([]Tracker, 0, len(order))
	for _, company := range order {
		trackers = append(trackers, *byCompany[company])
	}
	sort.Slice(trackers, func(i, j int) bool { return trackers[i].Company < trackers[j].Company })
	return trackers
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func containsStr(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
