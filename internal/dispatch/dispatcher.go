// Package dispatch routes a decoded QR payload to the matching content
// checks. The tampering engine never calls into it: payload content checks
// are a downstream concern of whoever holds the report.
package dispatch

import (
	"net/url"
	"strings"

	"github.com/ugguru/url-fraud-detection/pkg/validation"
)

// Kind classifies a decoded payload.
type Kind string

const (
	KindURL   Kind = "url"
	KindUPI   Kind = "upi"
	KindText  Kind = "text"
	KindEmpty Kind = "empty"
)

// ContentVerdict carries the content-level checks for one payload. At most
// one of URL/UPI is set, matching Kind.
type ContentVerdict struct {
	Kind Kind                   `json:"kind"`
	URL  *validation.URLVerdict `json:"url,omitempty"`
	UPI  *validation.UPIVerdict `json:"upi,omitempty"`
}

// Dispatcher forwards decoded payloads to the URL and UPI checkers.
type Dispatcher interface {
	Dispatch(payload string) *ContentVerdict
}

type dispatcher struct {
	urls *validation.URLAnalyzer
	upis *validation.UPIValidator
}

// NewDispatcher wires the local URL and UPI checkers.
func NewDispatcher(urls *validation.URLAnalyzer, upis *validation.UPIValidator) Dispatcher {
	return &dispatcher{urls: urls, upis: upis}
}

// Dispatch classifies the payload and runs the matching checker.
// upi:// deep links are unwrapped to the payee handle first; anything that
// is neither a web URL nor UPI-shaped passes through as plain text.
func (d *dispatcher) Dispatch(payload string) *ContentVerdict {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return &ContentVerdict{Kind: KindEmpty}
	}

	lower := strings.ToLower(payload)
	if strings.HasPrefix(lower, "upi://") {
		if handle := payeeFromDeepLink(payload); handle != "" {
			return &ContentVerdict{Kind: KindUPI, UPI: d.upis.Verify(handle)}
		}
		// A upi:// link without a payee address is malformed; verifying the
		// empty handle yields the maximal-risk verdict with the reason.
		return &ContentVerdict{Kind: KindUPI, UPI: d.upis.Verify("")}
	}

	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return &ContentVerdict{Kind: KindURL, URL: d.urls.Analyze(payload)}
	}

	if strings.Contains(payload, "@") && !strings.ContainsAny(payload, " /") {
		return &ContentVerdict{Kind: KindUPI, UPI: d.upis.Verify(payload)}
	}

	return &ContentVerdict{Kind: KindText}
}

// payeeFromDeepLink pulls the pa (payee address) parameter out of a
// upi://pay deep link.
func payeeFromDeepLink(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return u.Query().Get("pa")
}
