package service

import (
	"sync"
	"time"
	"unicode/utf8"

	"github.com/lshigami/Margays/internal/model"
)

type SignalKind string

const (
	SignalVisibilityHidden SignalKind = "visibility_hidden"
	SignalWindowBlur       SignalKind = "window_blur"
	SignalCopyKeyCombo     SignalKind = "copy_key_combo"
	SignalDevToolsKeyCombo SignalKind = "devtools_key_combo"
	SignalPrintScreenKey   SignalKind = "print_screen_key"
	SignalContextMenu      SignalKind = "context_menu"
	SignalTextSelection    SignalKind = "text_selection"
	SignalViewportResize   SignalKind = "viewport_resize"
	SignalMouseActivity    SignalKind = "mouse_activity"
)

const (
	selectionReportThreshold = 20  // selections at or under this length are ignored
	selectionCaptureLimit    = 100 // captured text is cut to this many characters
)

// rateLimitedKinds can fire many times a second in a browser; they are
// evaluated at most once per window so the incident log is never flooded.
var rateLimitedKinds = map[SignalKind]bool{
	SignalTextSelection:  true,
	SignalViewportResize: true,
	SignalMouseActivity:  true,
}

// RawSignal is one untrusted browser observation prior to classification.
type RawSignal struct {
	Kind         SignalKind
	DetectedAt   time.Time
	SelectedText string
}

type ClassifiedViolation struct {
	Type         model.ViolationType
	Severity     model.Severity
	Count        int // running per-type count, including this event
	CapturedText string
}

// ViolationClassifier maps raw signals to classified violations for a single
// attempt. Counters only ever grow: severity is decided from the count of
// prior events of the same type, then the counter is incremented. Ambiguous
// signals escalate with repetition; unambiguous circumvention attempts carry
// a fixed severity from the first occurrence.
type ViolationClassifier struct {
	mu       sync.Mutex
	window   time.Duration
	counters map[model.ViolationType]int
	lastEval map[SignalKind]time.Time
}

func NewViolationClassifier(window time.Duration) *ViolationClassifier {
	return &ViolationClassifier{
		window:   window,
		counters: make(map[model.ViolationType]int),
		lastEval: make(map[SignalKind]time.Time),
	}
}

// Classify returns the violation a signal amounts to, or nil when it carries
// no integrity meaning for this attempt (rate-limited repeat, short
// selection, plain mouse presence). A nil result still counts as activity.
func (c *ViolationClassifier) Classify(sig RawSignal) *ClassifiedViolation {
	at := sig.DetectedAt
	if at.IsZero() {
		at = time.Now()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if rateLimitedKinds[sig.Kind] {
		if last, ok := c.lastEval[sig.Kind]; ok && at.Sub(last) < c.window {
			return nil
		}
		c.lastEval[sig.Kind] = at
	}

	switch sig.Kind {
	case SignalVisibilityHidden:
		return c.escalating(model.ViolationTabSwitch, 3, 2)
	case SignalWindowBlur:
		return c.escalating(model.ViolationWindowBlur, 3, 2)
	case SignalCopyKeyCombo:
		return c.escalating(model.ViolationCopyPaste, 5, 3)
	case SignalDevToolsKeyCombo:
		return c.fixed(model.ViolationDevTools, model.SeverityHigh)
	case SignalPrintScreenKey:
		return c.fixed(model.ViolationScreenshot, model.SeverityMedium)
	case SignalContextMenu:
		return c.cappedEscalating(model.ViolationRightClick, 5)
	case SignalTextSelection:
		if utf8.RuneCountInString(sig.SelectedText) <= selectionReportThreshold {
			return nil
		}
		violation := c.fixed(model.ViolationTextSelection, model.SeverityLow)
		violation.CapturedText = truncateRunes(sig.SelectedText, selectionCaptureLimit)
		return violation
	case SignalViewportResize:
		return c.fixed(model.ViolationWindowResize, model.SeverityLow)
	case SignalMouseActivity:
		return nil // presence signal only
	}
	return nil
}

// SeedCounters raises counters to at least the given values. Used on resume
// to rebuild escalation state from the incident log; counts never go down.
func (c *ViolationClassifier) SeedCounters(counts map[model.ViolationType]int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for violationType, count := range counts {
		if count > c.counters[violationType] {
			c.counters[violationType] = count
		}
	}
}

func (c *ViolationClassifier) Counters() map[model.ViolationType]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[model.ViolationType]int, len(c.counters))
	for violationType, count := range c.counters {
		out[violationType] = count
	}
	return out
}

func (c *ViolationClassifier) escalating(t model.ViolationType, highAfter, mediumAfter int) *ClassifiedViolation {
	prior := c.counters[t]
	c.counters[t] = prior + 1
	return &ClassifiedViolation{Type: t, Severity: severityByCount(prior, highAfter, mediumAfter), Count: prior + 1}
}

func (c *ViolationClassifier) cappedEscalating(t model.ViolationType, mediumAfter int) *ClassifiedViolation {
	prior := c.counters[t]
	c.counters[t] = prior + 1
	severity := model.SeverityLow
	if prior > mediumAfter {
		severity = model.SeverityMedium
	}
	return &ClassifiedViolation{Type: t, Severity: severity, Count: prior + 1}
}

func (c *ViolationClassifier) fixed(t model.ViolationType, severity model.Severity) *ClassifiedViolation {
	c.counters[t]++
	return &ClassifiedViolation{Type: t, Severity: severity, Count: c.counters[t]}
}

func severityByCount(prior, highAfter, mediumAfter int) model.Severity {
	switch {
	case prior > highAfter:
		return model.SeverityHigh
	case prior > mediumAfter:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// ClassifierRegistry owns one classifier per live attempt. Classifier state
// is in-memory only; a process restart starts counts from what the incident
// log can reconstruct.
type ClassifierRegistry struct {
	mu          sync.Mutex
	window      time.Duration
	classifiers map[uint]*ViolationClassifier
}

func NewClassifierRegistry(window time.Duration) *ClassifierRegistry {
	return &ClassifierRegistry{
		window:      window,
		classifiers: make(map[uint]*ViolationClassifier),
	}
}

// For returns the attempt's classifier, creating it on first use.
func (r *ClassifierRegistry) For(attemptID uint) *ViolationClassifier {
	r.mu.Lock()
	defer r.mu.Unlock()
	if classifier, ok := r.classifiers[attemptID]; ok {
		return classifier
	}
	classifier := NewViolationClassifier(r.window)
	r.classifiers[attemptID] = classifier
	return classifier
}

func (r *ClassifierRegistry) Release(attemptID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.classifiers, attemptID)
}
