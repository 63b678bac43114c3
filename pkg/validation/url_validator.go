package validation

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/arbovm/levenshtein"

	"github.com/ugguru/url-fraud-detection/internal/tamper"
)

// URLVerdict is the outcome of the local phishing heuristics for one URL.
// Scores live on the same [0,1] anomaly scale as the tampering metrics.
type URLVerdict struct {
	URL         string          `json:"url"`
	Valid       bool            `json:"valid"`
	RiskScore   float64         `json:"risk_score"`
	RiskLevel   tamper.Severity `json:"risk_level"`
	Shortened   bool            `json:"shortened"`
	LookalikeOf string          `json:"lookalike_of,omitempty"`
	Findings    []string        `json:"findings,omitempty"`
}

// suspiciousTLDs are cheap or free TLDs disproportionately used for
// phishing landing pages.
var suspiciousTLDs = map[string]bool{
	"tk": true, "ml": true, "ga": true, "cf": true, "gq": true,
	"xyz": true, "top": true, "work": true, "click": true, "review": true,
	"country": true, "kim": true, "science": true, "cricket": true,
	"date": true, "faith": true, "accountant": true, "loan": true,
	"win": true, "download": true, "pw": true, "cc": true, "su": true,
	"ws": true, "stream": true,
}

// urlShorteners hide the destination from the user scanning the code.
var urlShorteners = map[string]bool{
	"bit.ly": true, "tinyurl.com": true, "goo.gl": true, "t.co": true,
	"ow.ly": true, "is.gd": true, "buff.ly": true, "adf.ly": true,
	"j.mp": true, "bit.do": true, "lnkd.in": true, "db.tt": true,
	"qr.ae": true, "po.st": true, "bc.vc": true, "v.gd": true,
	"rb.gy": true, "shorturl.at": true, "qrco.de": true, "cutt.ly": true,
	"bitly.com": true, "tiny.cc": true, "shorte.st": true, "t.ly": true,
	"clck.ru": true, "git.io": true, "shorturl.io": true,
}

var phishingKeywords = []string{
	"login", "signin", "verify", "secure", "account", "update",
	"confirm", "password", "credential", "banking", "wallet",
	"crypto", "bitcoin", "free", "gift", "winner", "lucky", "claim",
	"upi", "paytm",
}

// brandDomains are frequent impersonation targets; near-misses within
// edit distance 2 are treated as deliberate lookalikes.
var brandDomains = []string{
	"paypal.com", "google.com", "amazon.com", "apple.com",
	"microsoft.com", "netflix.com", "paytm.com", "phonepe.com",
	"onlinesbi.sbi", "hdfcbank.com", "icicibank.com", "axisbank.com",
}

// URLAnalyzer runs local structure heuristics against a URL. It performs
// no network calls: reputation services and URL expansion are outside this
// package's scope.
type URLAnalyzer struct {
	allowedSchemes []string
}

// NewURLAnalyzer creates an analyzer accepting http and https URLs.
func NewURLAnalyzer() *URLAnalyzer {
	return &URLAnalyzer{allowedSchemes: []string{"http", "https"}}
}

// Analyze scores one URL. A URL that does not parse at all is maximal risk
// rather than an error: on this boundary, malformed input is a finding.
func (a *URLAnalyzer) Analyze(rawURL string) *URLVerdict {
	v := &URLVerdict{URL: rawURL}

	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Host == "" || !a.schemeAllowed(parsed.Scheme) {
		v.RiskScore = 1.0
		v.RiskLevel = tamper.SeverityCritical
		v.Findings = append(v.Findings, "malformed or non-web URL")
		return v
	}
	v.Valid = true

	host := strings.ToLower(parsed.Hostname())
	score := 0.0

	if ip := net.ParseIP(host); ip != nil {
		score += 0.25
		v.Findings = append(v.Findings, "host is a raw IP address")
	}

	if tld := lastLabel(host); suspiciousTLDs[tld] {
		score += 0.15
		v.Findings = append(v.Findings, fmt.Sprintf("suspicious top-level domain .%s", tld))
	}

	if a.isShortener(host) {
		v.Shortened = true
		score += 0.35
		v.Findings = append(v.Findings, "URL shortener hides the destination")
	}

	if hits := a.keywordHits(host + parsed.Path); hits > 0 {
		add := float64(hits) * 0.05
		if add > 0.2 {
			add = 0.2
		}
		score += add
		v.Findings = append(v.Findings, fmt.Sprintf("%d phishing keyword(s) in host or path", hits))
	}

	if strings.Contains(rawURL, "@") {
		score += 0.2
		v.Findings = append(v.Findings, "@ in URL can mask the real host")
	}

	if len(rawURL) > 100 {
		score += 0.1
		v.Findings = append(v.Findings, "unusually long URL")
	}

	if depth := strings.Count(host, "."); depth > 3 {
		score += 0.1
		v.Findings = append(v.Findings, fmt.Sprintf("deep subdomain nesting (%d levels)", depth))
	}

	if parsed.Scheme != "https" {
		score += 0.1
		v.Findings = append(v.Findings, "no HTTPS")
	}

	if brand := a.lookalike(host); brand != "" {
		v.LookalikeOf = brand
		score += 0.35
		v.Findings = append(v.Findings, fmt.Sprintf("domain is a near-miss of %s", brand))
	}

	if score > 1 {
		score = 1
	}
	v.RiskScore = score
	v.RiskLevel = tamper.SeverityFor(score)
	return v
}

func (a *URLAnalyzer) schemeAllowed(scheme string) bool {
	for _, s := range a.allowedSchemes {
		if scheme == s {
			return true
		}
	}
	return false
}

func (a *URLAnalyzer) isShortener(host string) bool {
	if urlShorteners[host] {
		return true
	}
	for s := range urlShorteners {
		if strings.HasSuffix(host, "."+s) {
			return true
		}
	}
	return false
}

func (a *URLAnalyzer) keywordHits(s string) int {
	s = strings.ToLower(s)
	hits := 0
	for _, kw := range phishingKeywords {
		if strings.Contains(s, kw) {
			hits++
		}
	}
	return hits
}

// lookalike flags hosts within edit distance 2 of a known brand domain,
// excluding the exact brand itself and its real subdomains.
func (a *URLAnalyzer) lookalike(host string) string {
	bare := strings.TrimPrefix(host, "www.")
	for _, brand := range brandDomains {
		if bare == brand || strings.HasSuffix(bare, "."+brand) {
			return ""
		}
	}
	for _, brand := range brandDomains {
		if d := levenshtein.Distance(bare, brand); d > 0 && d <= 2 {
			return brand
		}
	}
	return ""
}

func lastLabel(host string) string {
	idx := strings.LastIndex(host, ".")
	if idx < 0 || idx == len(host)-1 {
		return ""
	}
	return host[idx+1:]
}
