package interview

import (
	"strings"
	"time"
)

const (
	DefaultRambleTimeThreshold = 45 * time.Second
	DefaultRambleWordThreshold = 200
)

// RambleDetector accumulates the length of the suitor's current turn so that the avatar knows when to interrupt.
//
// It is not safe for concurrent use. Session serializes access to it.
type RambleDetector struct {
	timeThreshold time.Duration
	wordThreshold int
	now           func() time.Time

	turnStart *time.Time
	wordCount int
}

// NewRambleDetector creates an idle detector. Non-positive thresholds fall back to the defaults.
func NewRambleDetector(timeThreshold time.Duration, wordThreshold int, now func() time.Time) *RambleDetector {
	if timeThreshold <= 0 {
		timeThreshold = DefaultRambleTimeThreshold
	}
	if wordThreshold <= 0 {
		wordThreshold = DefaultRambleWordThreshold
	}
	if now == nil {
		now = time.Now
	}
	return &RambleDetector{
		timeThreshold: timeThreshold,
		wordThreshold: wordThreshold,
		now:           now,
		turnStart:     nil,
		wordCount:     0,
	}
}

// OnUserSpeech starts a turn if idle and adds the words in text to it.
func (d *RambleDetector) OnUserSpeech(text string) {
	if d.turnStart == nil {
		now := d.now()
		d.turnStart = &now
	}
	d.wordCount += len(strings.Fields(text))
}

// ShouldInterrupt reports whether the current turn has gone on for too long or too many words.
func (d *RambleDetector) ShouldInterrupt() bool {
	if d.turnStart == nil {
		return false
	}
	return d.now().Sub(*d.turnStart) > d.timeThreshold || d.wordCount > d.wordThreshold
}

// Reset returns the detector to idle.
func (d *RambleDetector) Reset() {
	d.turnStart = nil
	d.wordCount = 0
}

// Idle reports whether no turn is being tracked.
func (d *RambleDetector) Idle() bool {
	return d.turnStart == nil
}
