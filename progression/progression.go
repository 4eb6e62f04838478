// progression/progression.go - Unlock and mastery rules
//
// Everything here is pure: callers load the rows, these functions decide.
package progression

import (
	"math"
	"time"
)

type Status string

const (
	StatusLocked   Status = "locked"
	StatusUnlocked Status = "unlocked"
	StatusMastered Status = "mastered"
)

// MasteryStreakWindow is how many consecutive correct answers count as a
// full streak. Three in a row on a fresh lesson reach a score of 100.
const MasteryStreakWindow = 3

// LessonRule is the part of a lesson the evaluator needs.
type LessonRule struct {
	ID               uint
	MasteryThreshold float64
	// FirstInSequence marks the lowest-ordered lesson of its course or category.
	FirstInSequence bool
}

// Record is the slice of a progress row the evaluator reads.
type Record struct {
	MasteryScore float64
	Completed    bool
}

// Prerequisite pairs a prerequisite lesson's threshold with the learner's
// record for it. Record is nil when the learner never touched it.
type Prerequisite struct {
	LessonID  uint
	Threshold float64
	Record    *Record
}

// Evaluate derives a lesson's status for one learner.
//
// Mastered wins over everything. Otherwise the lesson is unlocked when it has
// no prerequisites, when all of them are met, or when it is first in its
// sequence. A missing own record does not unlock anything by itself.
func Evaluate(lesson LessonRule, own *Record, prereqs []Prerequisite) Status {
	if own != nil && IsMastered(own.MasteryScore, lesson.MasteryThreshold) {
		return StatusMastered
	}
	if lesson.FirstInSequence || AllPrerequisitesMet(prereqs) {
		return StatusUnlocked
	}
	return StatusLocked
}

// AllPrerequisitesMet is true for an empty set.
func AllPrerequisitesMet(prereqs []Prerequisite) bool {
	for _, p := range prereqs {
		if !PrerequisiteMet(p) {
			return false
		}
	}
	return true
}

func PrerequisiteMet(p Prerequisite) bool {
	if p.Record == nil {
		return false
	}
	return p.Record.Completed || IsMastered(p.Record.MasteryScore, p.Threshold)
}

func IsMastered(score, threshold float64) bool {
	return score >= threshold
}

// MasteryScore is the lower of accuracy and streak strength, both as
// percentages, rounded to two decimals.
func MasteryScore(attempts, correct, consecutive int) float64 {
	if attempts <= 0 {
		return 0
	}
	if correct > attempts {
		correct = attempts
	}
	accuracy := 100 * float64(correct) / float64(attempts)

	streak := consecutive
	if streak > MasteryStreakWindow {
		streak = MasteryStreakWindow
	}
	if streak < 0 {
		streak = 0
	}
	streakPct := 100 * float64(streak) / float64(MasteryStreakWindow)

	return round2(math.Min(accuracy, streakPct))
}

// ComfortZone is accuracy minus a 10 point penalty per hint per attempt.
func ComfortZone(attempts, correct, hintUsage int) float64 {
	if attempts <= 0 {
		return 0
	}
	accuracy := 100 * float64(correct) / float64(attempts)
	v := accuracy - 10*float64(hintUsage)/float64(attempts)
	return round2(clamp(v, 0, 100))
}

type ComfortLevel string

const (
	ComfortZoneLevel   ComfortLevel = "comfort_zone"
	AdequateChallenge  ComfortLevel = "adequate_challenge"
	NeedsReinforcement ComfortLevel = "needs_reinforcement"
)

func ComfortLabel(v float64) ComfortLevel {
	switch {
	case v >= 80:
		return ComfortZoneLevel
	case v >= 60:
		return AdequateChallenge
	default:
		return NeedsReinforcement
	}
}

// RunningMean folds one more sample into a mean over prevCount samples.
// Non-positive samples are ignored.
func RunningMean(prevMean float64, prevCount int, sample float64) float64 {
	if sample <= 0 {
		return prevMean
	}
	if prevCount <= 0 {
		return round2(sample)
	}
	return round2((prevMean*float64(prevCount) + sample) / float64(prevCount+1))
}

// ProgressPercent is how far a score is towards its threshold, capped at 100.
func ProgressPercent(score, threshold float64) float64 {
	if threshold <= 0 {
		if score > 0 {
			return 100
		}
		return 0
	}
	return round2(clamp(100*score/threshold, 0, 100))
}

// NextStreak advances a daily streak for activity at now. Days are calendar
// days in UTC. It returns the new current and longest values and whether
// anything changed.
func NextStreak(current, longest int, last *time.Time, now time.Time) (int, int, bool) {
	today := truncateDay(now)
	next := 1
	if last != nil {
		diff := int(today.Sub(truncateDay(*last)).Hours() / 24)
		switch {
		case diff <= 0 && current > 0:
			return current, maxInt(current, longest), false
		case diff == 1:
			next = current + 1
		}
	}
	return next, maxInt(next, longest), true
}

// StreakLapsed reports whether a streak whose last activity was at last is
// broken as of now (no activity today or yesterday).
func StreakLapsed(last *time.Time, now time.Time) bool {
	if last == nil {
		return true
	}
	return truncateDay(now).Sub(truncateDay(*last)) > 24*time.Hour
}

// CurrentLessonIndex is the first lesson in a path that is not mastered, or
// the last index when everything is.
func CurrentLessonIndex(statuses []Status) int {
	for i, s := range statuses {
		if s != StatusMastered {
			return i
		}
	}
	if len(statuses) == 0 {
		return 0
	}
	return len(statuses) - 1
}

func truncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
