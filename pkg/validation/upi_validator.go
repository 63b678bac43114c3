package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ugguru/url-fraud-detection/internal/tamper"
)

// UPIVerdict is the outcome of the local UPI-handle checks. Registry-level
// verification (does this VPA resolve to a live account) is out of scope;
// this covers syntax and payment-service-provider reputation only.
type UPIVerdict struct {
	Handle    string          `json:"handle"`
	Valid     bool            `json:"valid"`
	Provider  string          `json:"provider,omitempty"`
	RiskScore float64         `json:"risk_score"`
	RiskLevel tamper.Severity `json:"risk_level"`
	Findings  []string        `json:"findings,omitempty"`
}

// pspInfo records the provider behind a handle suffix and its base risk on
// a 5..25 scale, normalized below. Direct bank handles sit at the bottom;
// wallet providers where throwaway merchant handles are trivial to mint
// sit at the top.
type pspInfo struct {
	provider string
	risk     int
}

const (
	pspRiskMin = 5
	pspRiskMax = 25
)

var pspSuffixes = map[string]pspInfo{
	"sbi":         {"State Bank of India", 5},
	"hdfc":        {"HDFC Bank", 5},
	"icici":       {"ICICI Bank", 5},
	"axisbank":    {"Axis Bank", 5},
	"barodampay":  {"Bank of Baroda", 5},
	"pnb":         {"Punjab National Bank", 5},
	"cnrb":        {"Canara Bank", 5},
	"kotak":       {"Kotak Mahindra Bank", 5},
	"kotak811":    {"Kotak Mahindra Bank (811)", 5},
	"centralbank": {"Central Bank of India", 5},
	"federal":     {"Federal Bank", 5},

	"okhdfcbank": {"Google Pay - HDFC Bank", 10},
	"okicici":    {"Google Pay - ICICI Bank", 10},
	"oksbi":      {"Google Pay - SBI", 10},
	"okaxis":     {"Google Pay - Axis Bank", 10},

	"apl":  {"Amazon Pay", 12},
	"yapl": {"Amazon Pay - Yes Bank", 12},
	"rapl": {"Amazon Pay - ICICI Bank", 12},

	"upi":     {"BHIM (NPCI)", 15},
	"ybl":     {"PhonePe - Yes Bank", 15},
	"ibl":     {"PhonePe - ICICI Bank", 15},
	"axl":     {"PhonePe - Axis Bank", 15},
	"yes":     {"Yes Bank", 15},
	"yesbank": {"Yes Bank", 15},

	"paytm":  {"Paytm Payments Bank", 25},
	"ptyes":  {"Paytm - Yes Bank", 25},
	"ptaxis": {"Paytm - Axis Bank", 25},
	"ptsbi":  {"Paytm - SBI", 25},
	"pthdfc": {"Paytm - HDFC Bank", 25},
	"airtel": {"Airtel Payments Bank", 25},
}

// handlePattern is the NPCI VPA shape: username@psp.
var handlePattern = regexp.MustCompile(`^[a-zA-Z0-9.\-_]{2,256}@[a-zA-Z0-9]{2,64}$`)

// UPIValidator performs syntax and provider checks on UPI handles.
type UPIValidator struct{}

// NewUPIValidator creates a UPI handle validator.
func NewUPIValidator() *UPIValidator {
	return &UPIValidator{}
}

// Verify checks one handle. Invalid syntax is maximal risk: handles with
// doubled @ or malformed parts are a recurring fraud pattern, not a typo.
func (v *UPIValidator) Verify(handle string) *UPIVerdict {
	verdict := &UPIVerdict{Handle: handle}
	handle = strings.TrimSpace(handle)

	if finding := structuralProblem(handle); finding != "" {
		verdict.RiskScore = 1.0
		verdict.RiskLevel = tamper.SeverityCritical
		verdict.Findings = append(verdict.Findings, finding)
		return verdict
	}

	if !handlePattern.MatchString(handle) {
		verdict.RiskScore = 1.0
		verdict.RiskLevel = tamper.SeverityCritical
		verdict.Findings = append(verdict.Findings, "handle does not match the username@psp format")
		return verdict
	}
	verdict.Valid = true

	suffix := strings.ToLower(handle[strings.LastIndex(handle, "@")+1:])
	info, known := pspSuffixes[suffix]
	if !known {
		verdict.RiskScore = 1.0
		verdict.RiskLevel = tamper.SeverityCritical
		verdict.Provider = "unknown provider"
		verdict.Findings = append(verdict.Findings,
			fmt.Sprintf("unrecognized provider suffix %q", suffix))
		return verdict
	}

	verdict.Provider = info.provider
	verdict.RiskScore = float64(info.risk-pspRiskMin) / float64(pspRiskMax-pspRiskMin)
	verdict.RiskLevel = tamper.SeverityFor(verdict.RiskScore)
	if info.risk >= 20 {
		verdict.Findings = append(verdict.Findings,
			fmt.Sprintf("%s handles are frequently minted for fraud; verify the payee name in the app", info.provider))
	}
	return verdict
}

// structuralProblem catches malformed handles with a specific explanation
// before the coarse regexp rejects them.
func structuralProblem(handle string) string {
	if handle == "" {
		return "empty handle"
	}
	if n := strings.Count(handle, "@"); n != 1 {
		if n == 0 {
			return "missing @ separator"
		}
		return fmt.Sprintf("contains %d @ symbols; doubled-suffix handles are a known fraud pattern", n)
	}
	parts := strings.SplitN(handle, "@", 2)
	if len(parts[0]) < 2 {
		return "username part shorter than 2 characters"
	}
	if len(parts[0]) > 256 {
		return "username part longer than 256 characters"
	}
	if len(parts[1]) < 2 {
		return "provider suffix shorter than 2 characters"
	}
	if len(parts[1]) > 64 {
		return "provider suffix longer than 64 characters"
	}
	return ""
}
