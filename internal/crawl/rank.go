package crawl

import (
	"net/url"
	"strings"
)

// maxSubPages is the number of additional same-host pages selected per
// crawl, per spec §4.H step 7.
const maxSubPages = 3

var skippedExtensions = []string{
	".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg", ".ico", ".bmp", // image
	".css", // stylesheet
	".js", ".mjs", // script
	".zip", ".tar", ".gz", ".rar", ".7z", // archive
	".woff", ".woff2", ".ttf", ".otf", ".eot", // font
}

// candidate is one page URL considered for sub-page crawling.
type candidate struct {
	url   string
	score int
}

// selectSubPages ranks the union of sitemap and internal-link URLs and
// returns up to maxSubPages same-host candidates (spec §4.H ranking):
// score = (-2 if has query string) + (-1 * non-empty path segments),
// highest score first.
func selectSubPages(homepage string, sitemapURLs, internalLinks []string) []string {
	home, err := url.Parse(homepage)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var candidates []candidate

	consider := func(raw string) {
		u, err := url.Parse(raw)
		if err != nil {
			return
		}
		if u.Host == "" {
			u.Host = home.Host
			u.Scheme = home.Scheme
		}
		if !strings.EqualFold(u.Host, home.Host) {
			return
		}
		if hasSkippedExtension(u.Path) {
			return
		}
		normalized := u.String()
		if seen[normalized] {
			return
		}
		seen[normalized] = true
		candidates = append(candidates, candidate{url: normalized, score: rankScore(u)})
	}

	for _, u := range sitemapURLs {
		consider(u)
	}
	for _, u := range internalLinks {
		consider(u)
	}

	// Stable sort by score descending (higher score = more interesting),
	// preserving discovery order for ties.
	for i := 1; i < len(candidates); i++ {
		for j := i; j > 0 && candidates[j].score > candidates[j-1].score; j-- {
			candidates[j], candidates[j-1] = candidates[j-1], candidates[j]
		}
	}

	n := maxSubPages
	if len(candidates) < n {
		n = len(candidates)
	}
	result := make([]string, 0, n)
	for i := 0; i < n; i++ {
		result = append(result, candidates[i].url)
	}
	return result
}

func rankScore(u *url.URL) int {
	score := 0
	if u.RawQuery != "" {
		score -= 2
	}
	segments := 0
	for _, seg := range strings.Split(strings.Trim(u.Path, "/"), "/") {
		if seg != "" {
			segments++
		}
	}
	score -= segments
	return score
}

func hasSkippedExtension(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range skippedExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
