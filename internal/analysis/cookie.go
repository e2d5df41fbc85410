package analysis

import (
	"regexp"
	"sort"
	"strings"

	"github.com/privacyanalyzer/privacyanalyzer/internal/crawl"
)

// cookieRule is one row of the static cookie classification table, matched
// by exact name or by name prefix (checked in that order per cookie).
type cookieRule struct {
	name    string
	prefix  string
	company string
	purpose CookiePurpose
	risk    Risk
}

var cookieRules = []cookieRule{
	{name: "_ga", company: "Google Analytics", purpose: PurposeAnalytics, risk: RiskMedium},
	{prefix: "_ga_", company: "Google Analytics", purpose: PurposeAnalytics, risk: RiskMedium},
	{name: "_gid", company: "Google Analytics", purpose: PurposeAnalytics, risk: RiskMedium},
	{prefix: "_gat", company: "Google Analytics", purpose: PurposeAnalytics, risk: RiskLow},
	{name: "_fbp", company: "Meta", purpose: PurposeTracking, risk: RiskHigh},
	{name: "_fbc", company: "Meta", purpose: PurposeTracking, risk: RiskHigh},
	{name: "fr", company: "Meta", purpose: PurposeTracking, risk: RiskHigh},
	{name: "IDE", company: "Google Ads (DoubleClick)", purpose: PurposeTracking, risk: RiskHigh},
	{name: "test_cookie", company: "Google Ads (DoubleClick)", purpose: PurposeTracking, risk: RiskLow},
	{name: "MUID", company: "Microsoft", purpose: PurposeTracking, risk: RiskHigh},
	{name: "_ttp", company: "TikTok", purpose: PurposeTracking, risk: RiskHigh},
	{name: "_hjSessionUser", company: "Hotjar", purpose: PurposeTracking, risk: RiskHigh},
	{prefix: "_hj", company: "Hotjar", purpose: PurposeTracking, risk: RiskMedium},
	{name: "JSESSIONID", purpose: PurposeSession, risk: RiskLow},
	{name: "PHPSESSID", purpose: PurposeSession, risk: RiskLow},
	{name: "connect.sid", purpose: PurposeSession, risk: RiskLow},
	{prefix: "session", purpose: PurposeSession, risk: RiskLow},
	{prefix: "csrf", purpose: PurposeFunctional, risk: RiskLow},
	{prefix: "cf_", company: "Cloudflare", purpose: PurposeFunctional, risk: RiskLow},
}

// trackingNameSignature catches tracking cookies the exact/prefix table
// misses, by a looser substring match against the name.
var trackingNameSignature = regexp.MustCompile(`(?i)(track|ad[sx]?|pixel|beacon|uid|visitor)`)

// AnalyzeCookies classifies every cookie in the artifact and computes the
// aggregate summary (spec §4.I Cookie deep analysis).
func AnalyzeCookies(artifact *crawl.Artifact, now func() int64) CookieAnalysis {
	siteHost := strings.TrimPrefix(hostOf(artifact.TargetURL), "www.")

	findings := make([]CookieFinding, 0, len(artifact.Cookies))
	for _, c := range artifact.Cookies {
		findings = append(findings, classifyCookie(c, siteHost, now))
	}

	sort.SliceStable(findings, func(i, j int) bool {
		return riskRank(findings[i].Risk) < riskRank(findings[j].Risk)
	})
	if len(findings) > 30 {
		findings = findings[:30]
	}

	summary := CookieSummary{
		Total:     len(artifact.Cookies),
		ByPurpose: map[string]int{},
		ByRisk:    map[string]int{},
	}
	for _, f := range findings {
		if f.ThirdParty && f.Purpose == PurposeTracking {
			summary.ThirdPartyTracking++
		}
		summary.ByPurpose[string(f.Purpose)]++
		summary.ByRisk[string(f.Risk)]++
		summary.SecurityIssues += len(f.SecurityIssues)
		if f.LifetimeDays != nil && *f.LifetimeDays > summary.LongestLivedDays {
			summary.LongestLivedDays = *f.LifetimeDays
			summary.LongestLivedName = f.Name
		}
	}

	return CookieAnalysis{Findings: findings, Summary: summary}
}

func classifyCookie(c crawl.Cookie, siteHost string, now func() int64) CookieFinding {
	company, purpose, risk, matched := lookupCookieRule(c.Name)
	if !matched {
		if trackingNameSignature.MatchString(c.Name) {
			purpose, risk = PurposeTracking, RiskMedium
		} else {
			purpose, risk = PurposeUnknown, RiskLow
		}
	}

	cookieHost := strings.TrimPrefix(strings.TrimPrefix(c.Domain, "."), "www.")
	thirdParty := cookieHost != "" && siteHost != "" && cookieHost != siteHost && !strings.HasSuffix(siteHost, cookieHost)

	var lifetimeDays *int
	lifetimeRisk := LifetimeSafe
	if c.Expires != nil {
		days := int(c.Expires.Unix()-now()) / 86400
		lifetimeDays = &days
		lifetimeRisk = lifetimeRiskForDays(days)
	}

	var issues []string
	if !c.Secure {
		issues = append(issues, "missing Secure attribute")
	}
	if !c.HTTPOnly {
		issues = append(issues, "missing HttpOnly attribute")
	}
	if strings.EqualFold(c.SameSite, "") || strings.EqualFold(c.SameSite, "none") {
		issues = append(issues, "missing or permissive SameSite attribute")
	}

	if (lifetimeRisk == LifetimeCritical && purpose == PurposeTracking) || (thirdParty && purpose == PurposeTracking) {
		risk = RiskHigh
	}
	if len(issues) >= 2 && risk == RiskLow {
		risk = RiskMedium
	}

	return CookieFinding{
		Name:           c.Name,
		Domain:         c.Domain,
		Company:        company,
		Purpose:        purpose,
		LifetimeDays:   lifetimeDays,
		LifetimeRisk:   lifetimeRisk,
		ThirdParty:     thirdParty,
		SecurityIssues: issues,
		Risk:           risk,
	}
}

func lookupCookieRule(name string) (company string, purpose CookiePurpose, risk Risk, matched bool) {
	for _, r := range cookieRules {
		if r.name != "" && r.name == name {
			return r.company, r.purpose, r.risk, true
		}
	}
	for _, r := range cookieRules {
		if r.prefix != "" && strings.HasPrefix(name, r.prefix) {
			return r.company, r.purpose, r.risk, true
		}
	}
	return "", "", "", false
}

// lifetimeRiskForDays buckets a cookie's remaining lifetime in days. A
// session cookie (no Expires attribute) is the only Safe case; an already
// expired cookie has a negative days value and still buckets as Low.
func lifetimeRiskForDays(days int) CookieLifetimeRisk {
	switch {
	case days < 30:
		return LifetimeLow
	case days < 365:
		return LifetimeMedium
	case days < 730:
		return LifetimeHigh
	default:
		return LifetimeCritical
	}
}

func riskRank(r Risk) int {
	switch r {
	case RiskHigh:
		return 0
	case RiskMedium:
		return 1
	default:
		return 2
	}
}
