// Package inbound classifies customer text replies and drives the
// confirmation/cancellation state machine for them.
package inbound

import (
	"regexp"
	"strconv"
	"strings"
)

// Intent is the action a customer reply asks for.
type Intent string

const (
	IntentConfirm Intent = "confirm"
	IntentCancel  Intent = "cancel"
)

// Detector classifies reply bodies into confirm/cancel intents or a bare
// selection number. Vocabulary covers English and Hebrew keywords; matching
// is case and whitespace insensitive and tolerates trailing punctuation.
type Detector struct {
	confirmRegex   *regexp.Regexp
	cancelRegex    *regexp.Regexp
	selectionRegex *regexp.Regexp
}

// NewDetector returns a detector with the default reply vocabulary.
func NewDetector() *Detector {
	return &Detector{
		confirmRegex:   regexp.MustCompile(`(?i)^(yes|y|ok|okay|confirm|confirmed|approve|כן|אישור|אשר|מאשר|מאשרת)[\s!.]*$`),
		cancelRegex:    regexp.MustCompile(`(?i)^(no|n|cancel|לא|ביטול|בטל|לבטל|מבטל|מבטלת)[\s!.]*$`),
		selectionRegex: regexp.MustCompile(`^(\d{1,2})$`),
	}
}

// Detect returns the intent expressed by body, if any.
func (d *Detector) Detect(body string) (Intent, bool) {
	if d == nil {
		return "", false
	}
	body = strings.TrimSpace(body)
	switch {
	case d.confirmRegex != nil && d.confirmRegex.MatchString(body):
		return IntentConfirm, true
	case d.cancelRegex != nil && d.cancelRegex.MatchString(body):
		return IntentCancel, true
	}
	return "", false
}

// Selection parses body as a bare integer ordinal. Out-of-range values,
// "0" included, are still selection attempts; the session handler decides
// whether they land in the choice list.
func (d *Detector) Selection(body string) (int, bool) {
	if d == nil || d.selectionRegex == nil {
		return 0, false
	}
	m := d.selectionRegex.FindStringSubmatch(strings.TrimSpace(body))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
