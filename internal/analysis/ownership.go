package analysis

import (
	"math"
	"sort"
	"strings"

	"github.com/privacyanalyzer/privacyanalyzer/internal/crawl"
)

// ownershipEntry is one row of the static domain ownership table, keyed
// by a DNS suffix so subdomains resolve via progressive suffix stripping.
type ownershipEntry struct {
	suffix   string
	parent   string
	category string
}

var ownershipTable = []ownershipEntry{
	{"google-analytics.com", "Alphabet", "analytics"},
	{"googletagmanager.com", "Alphabet", "analytics"},
	{"doubleclick.net", "Alphabet", "advertising"},
	{"googlesyndication.com", "Alphabet", "advertising"},
	{"google.com", "Alphabet", "advertising"},
	{"gstatic.com", "Alphabet", "infrastructure"},
	{"youtube.com", "Alphabet", "media"},
	{"facebook.net", "Meta", "advertising"},
	{"facebook.com", "Meta", "advertising"},
	{"instagram.com", "Meta", "media"},
	{"hotjar.com", "Hotjar", "analytics"},
	{"segment.io", "Twilio", "analytics"},
	{"segment.com", "Twilio", "analytics"},
	{"mixpanel.com", "Mixpanel", "analytics"},
	{"amplitude.com", "Amplitude", "analytics"},
	{"fullstory.com", "FullStory", "analytics"},
	{"mouseflow.com", "Mouseflow", "analytics"},
	{"clarity.ms", "Microsoft", "analytics"},
	{"bing.com", "Microsoft", "advertising"},
	{"live.com", "Microsoft", "infrastructure"},
	{"twitter.com", "X Corp", "advertising"},
	{"ads-twitter.com", "X Corp", "advertising"},
	{"tiktok.com", "ByteDance", "advertising"},
	{"criteo.com", "Criteo", "advertising"},
	{"adnxs.com", "Xandr (Microsoft)", "advertising"},
	{"taboola.com", "Taboola", "advertising"},
	{"outbrain.com", "Outbrain", "advertising"},
	{"scorecardresearch.com", "Comscore", "analytics"},
	{"quantserve.com", "Comscore", "analytics"},
	{"newrelic.com", "New Relic", "infrastructure"},
	{"sentry.io", "Sentry", "infrastructure"},
	{"intercom.io", "Intercom", "support"},
	{"zendesk.com", "Zendesk", "support"},
	{"stripe.com", "Stripe", "payments"},
	{"cloudflareinsights.com", "Cloudflare", "infrastructure"},
	{"cloudflare.com", "Cloudflare", "infrastructure"},
}

// lookupOwnership resolves a host to its parent company and category by
// progressively stripping leading subdomain labels until a suffix match
// is found in ownershipTable.
func lookupOwnership(host string) (parent, category string, ok bool) {
	host = strings.TrimPrefix(host, "www.")
	for host != "" {
		for _, e := range ownershipTable {
			if host == e.suffix || strings.HasSuffix(host, "."+e.suffix) {
				return e.parent, e.category, true
			}
		}
		idx := strings.Index(host, ".")
		if idx < 0 {
			break
		}
		host = host[idx+1:]
	}
	return "", "", false
}

// AnalyzeOwnership builds the site→company ownership graph and its
// aggregate stats (spec §4.I Ownership graph) from every distinct
// external host observed across the artifact's pages.
func AnalyzeOwnership(artifact *crawl.Artifact) OwnershipGraph {
	site := hostOf(artifact.TargetURL)

	domainHits := map[string]int{}
	parentOf := map[string]string{}
	categoryOf := map[string]string{}
	identified := 0
	unknown := 0

	observe := func(rawURL string) {
		h := hostOf(rawURL)
		if h == "" || h == site || h == strings.TrimPrefix(site, "www.") {
			return
		}
		if _, seen := domainHits[h]; !seen {
			if parent, category, ok := lookupOwnership(h); ok {
				parentOf[h] = parent
				categoryOf[h] = category
				identified++
			} else {
				unknown++
			}
		}
		domainHits[h]++
	}

	for _, p := range artifact.Pages {
		for _, req := range p.Requests {
			observe(req.URL)
		}
		for _, src := range p.Scripts.ExternalURLs {
			observe(src)
		}
	}

	companyDomains := map[string][]string{}
	for h, parent := range parentOf {
		companyDomains[parent] = append(companyDomains[parent], h)
	}

	companies := make([]string, 0, len(companyDomains))
	for c := range companyDomains {
		companies = append(companies, c)
	}
	sort.Strings(companies)

	edges := make([]OwnershipEdge, 0)
	for _, c := range companies {
		edges = append(edges, OwnershipEdge{From: site, To: c})
	}

	categoryBreakdown := map[string]int{}
	for h, category := range categoryOf {
		categoryBreakdown[category] += domainHits[h]
	}

	totalHits := 0
	hitsByDomain := make([]int, 0, len(domainHits))
	for _, n := range domainHits {
		totalHits += n
		hitsByDomain = append(hitsByDomain, n)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(hitsByDomain)))
	top3 := 0
	for i := 0; i < len(hitsByDomain) && i < 3; i++ {
		top3 += hitsByDomain[i]
	}
	concentration := 0
	if totalHits > 0 {
		concentration = int(math.Round(float64(top3) / float64(totalHits) * 100.0))
	}

	topCompanies := topCompaniesByHits(companyDomains, domainHits, 3)

	return OwnershipGraph{
		Nodes: []OwnershipNode{{Site: site, Companies: companies}},
		Edges: edges,
		Stats: OwnershipStats{
			TotalCompanies:         len(companies),
			IdentifiedDomains:      identified,
			UnknownDomains:         unknown,
			CorporateConcentration: concentration,
			TopCompanies:           topCompanies,
			CategoryBreakdown:      categoryBreakdown,
		},
	}
}

func topCompaniesByHits(companyDomains map[string][]string, domainHits map[string]int, limit int) []string {
	type ranked struct {
		company string
		hits    int
	}
	ranks := make([]ranked, 0, len(companyDomains))
	for company, domains := range companyDomains {
		hits := 0
		for _, d := range domains {
			hits += domainHits[d]
		}
		ranks = append(ranks, ranked{company, hits})
	}
	sort.Slice(ranks, func(i, j int) bool {
		if ranks[i].hits != ranks[j].hits {
			return ranks[i].hits > ranks[j].hits
		}
		return ranks[i].company < ranks[j].company
	})
	if len(ranks) > limit {
		ranks = ranks[:limit]
	}
	out := make([]string, 0, len(ranks))
	for _, r := range ranks {
		out = append(out, r.company)
	}
	return out
}
