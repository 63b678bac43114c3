package dispatch

import (
	"testing"

	"github.com/ugguru/url-fraud-detection/pkg/validation"
)

func newTestDispatcher() Dispatcher {
	return NewDispatcher(validation.NewURLAnalyzer(), validation.NewUPIValidator())
}

func TestDispatch_EmptyPayload(t *testing.T) {
	d := newTestDispatcher()

	for _, payload := range []string{"", "   ", "\n\t"} {
		v := d.Dispatch(payload)
		if v.Kind != KindEmpty {
			t.Errorf("%q: kind = %s, want empty", payload, v.Kind)
		}
		if v.URL != nil || v.UPI != nil {
			t.Errorf("%q: empty payload carries verdicts: %+v", payload, v)
		}
	}
}

func TestDispatch_WebURL(t *testing.T) {
	d := newTestDispatcher()

	for _, payload := range []string{"https://example.org/pay", "HTTP://EXAMPLE.ORG/pay"} {
		v := d.Dispatch(payload)
		if v.Kind != KindURL {
			t.Fatalf("%q: kind = %s, want url", payload, v.Kind)
		}
		if v.URL == nil {
			t.Fatalf("%q: missing URL verdict", payload)
		}
		if v.UPI != nil {
			t.Errorf("%q: unexpected UPI verdict", payload)
		}
	}
}

func TestDispatch_UPIDeepLink(t *testing.T) {
	d := newTestDispatcher()

	v := d.Dispatch("upi://pay?pa=merchant@sbi&pn=Shop&am=150.00")
	if v.Kind != KindUPI {
		t.Fatalf("kind = %s, want upi", v.Kind)
	}
	if v.UPI == nil {
		t.Fatal("missing UPI verdict")
	}
	if v.UPI.Handle != "merchant@sbi" {
		t.Errorf("handle = %q, want the extracted payee address", v.UPI.Handle)
	}
	if !v.UPI.Valid {
		t.Errorf("expected valid payee, findings %v", v.UPI.Findings)
	}
}

func TestDispatch_MalformedDeepLink(t *testing.T) {
	d := newTestDispatcher()

	v := d.Dispatch("upi://pay?pn=Shop")
	if v.Kind != KindUPI {
		t.Fatalf("kind = %s, want upi", v.Kind)
	}
	if v.UPI == nil || v.UPI.Valid {
		t.Errorf("payee-less deep link must yield an invalid verdict: %+v", v.UPI)
	}
}

func TestDispatch_BareHandle(t *testing.T) {
	d := newTestDispatcher()

	v := d.Dispatch("merchant@ybl")
	if v.Kind != KindUPI {
		t.Fatalf("kind = %s, want upi", v.Kind)
	}
	if v.UPI == nil || v.UPI.Provider == "" {
		t.Errorf("expected resolved provider: %+v", v.UPI)
	}
}

func TestDispatch_PlainText(t *testing.T) {
	d := newTestDispatcher()

	for _, payload := range []string{"hello world", "WIFI:S:cafe;P:secret;;", "just text"} {
		v := d.Dispatch(payload)
		if v.Kind != KindText {
			t.Errorf("%q: kind = %s, want text", payload, v.Kind)
		}
	}
}
