// Package constraint contains the temporal validity rules attached to
// role assignments and activations.
package constraint

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Unbounded is the sentinel for date fields and the day mask meaning
// "no restriction".
const (
	None    = "none"
	AllDays = "all"
)

// ErrBadTime is returned when a time field is not a 4-digit HHMM value.
var ErrBadTime = errors.New("time must be 4 digits HHMM")

// ErrBadDate is returned when a date field is not YYYYMMDD or "none".
var ErrBadDate = errors.New("date must be 8 digits YYYYMMDD or \"none\"")

// ErrBadDayMask is returned when the day mask contains characters
// outside '1'..'7' and is not "all".
var ErrBadDayMask = errors.New("day mask must be digits 1-7 or \"all\"")

// ErrTimeRangeWrap is returned when endTime precedes beginTime. A
// wrapped range is a configuration error rejected at assignment time,
// never a range that silently evaluates false.
var ErrTimeRangeWrap = errors.New("end time precedes begin time")

// ErrDateRangeWrap is returned when endDate precedes beginDate.
var ErrDateRangeWrap = errors.New("end date precedes begin date")

// ErrNegativeTimeout is returned when the idle timeout is negative.
var ErrNegativeTimeout = errors.New("timeout must be zero or positive")

// Constraint bounds when a role assignment or activation is usable.
// The zero value plus Normalize() is fully unbounded.
type Constraint struct {
	// BeginTime and EndTime bound the time of day, HHMM. Both "0000"
	// means no time-of-day restriction.
	BeginTime string `yaml:"begin_time"`
	EndTime   string `yaml:"end_time"`

	// BeginDate and EndDate bound the calendar date, YYYYMMDD
	// inclusive, or "none" for unbounded.
	BeginDate string `yaml:"begin_date"`
	EndDate   string `yaml:"end_date"`

	// BeginLockDate and EndLockDate define a blackout window during
	// which the entity is never valid, or "none".
	BeginLockDate string `yaml:"begin_lock_date"`
	EndLockDate   string `yaml:"end_lock_date"`

	// DayMask lists the permitted weekdays as digits, Sunday=1 through
	// Saturday=7, or "all".
	DayMask string `yaml:"day_mask"`

	// Timeout is the idle limit in minutes for sessions holding a role
	// under this constraint. Zero means unbounded. Enforced by the
	// session engine, not by IsValidAt.
	Timeout int `yaml:"timeout"`

	// Condition is an optional CEL expression over the runtime
	// properties supplied at session creation. Empty always passes.
	// Compiled and evaluated by the activation condition evaluator.
	Condition string `yaml:"condition,omitempty"`
}

// Unbounded returns a constraint that is always valid.
func Unbounded() Constraint {
	return Constraint{
		BeginTime:     "0000",
		EndTime:       "0000",
		BeginDate:     None,
		EndDate:       None,
		BeginLockDate: None,
		EndLockDate:   None,
		DayMask:       AllDays,
	}
}

// Normalize fills empty fields with their unbounded sentinels.
func (c *Constraint) Normalize() {
	if c.BeginTime == "" {
		c.BeginTime = "0000"
	}
	if c.EndTime == "" {
		c.EndTime = "0000"
	}
	if c.BeginDate == "" {
		c.BeginDate = None
	}
	if c.EndDate == "" {
		c.EndDate = None
	}
	if c.BeginLockDate == "" {
		c.BeginLockDate = None
	}
	if c.EndLockDate == "" {
		c.EndLockDate = None
	}
	if c.DayMask == "" {
		c.DayMask = AllDays
	}
}

// Validate rejects malformed fields. Assignment and update operations
// call this before persisting; IsValidAt assumes a validated value and
// never reports format problems.
func (c Constraint) Validate() error {
	bt, err := parseHHMM(c.BeginTime)
	if err != nil {
		return fmt.Errorf("begin time %q: %w", c.BeginTime, err)
	}
	et, err := parseHHMM(c.EndTime)
	if err != nil {
		return fmt.Errorf("end time %q: %w", c.EndTime, err)
	}
	if !(bt == 0 && et == 0) && et < bt {
		return fmt.Errorf("time range %s-%s: %w", c.BeginTime, c.EndTime, ErrTimeRangeWrap)
	}

	bd, err := parseDate(c.BeginDate)
	if err != nil {
		return fmt.Errorf("begin date %q: %w", c.BeginDate, err)
	}
	ed, err := parseDate(c.EndDate)
	if err != nil {
		return fmt.Errorf("end date %q: %w", c.EndDate, err)
	}
	if bd != 0 && ed != 0 && ed < bd {
		return fmt.Errorf("date range %s-%s: %w", c.BeginDate, c.EndDate, ErrDateRangeWrap)
	}

	bl, err := parseDate(c.BeginLockDate)
	if err != nil {
		return fmt.Errorf("begin lock date %q: %w", c.BeginLockDate, err)
	}
	el, err := parseDate(c.EndLockDate)
	if err != nil {
		return fmt.Errorf("end lock date %q: %w", c.EndLockDate, err)
	}
	if bl != 0 && el != 0 && el < bl {
		return fmt.Errorf("lock range %s-%s: %w", c.BeginLockDate, c.EndLockDate, ErrDateRangeWrap)
	}

	if c.DayMask != AllDays {
		if c.DayMask == "" {
			return ErrBadDayMask
		}
		for _, r := range c.DayMask {
			if r < '1' || r > '7' {
				return fmt.Errorf("day mask %q: %w", c.DayMask, ErrBadDayMask)
			}
		}
	}

	if c.Timeout < 0 {
		return ErrNegativeTimeout
	}
	return nil
}

// IsValidAt reports whether the constraint permits use at the given
// instant. Pure function over a validated constraint; a false result is
// a policy answer, not an error.
//
// Check order: lock window, date range, time-of-day, day mask. The idle
// timeout is data for the session engine and is not evaluated here.
func (c Constraint) IsValidAt(now time.Time) bool {
	today := now.Year()*10000 + int(now.Month())*100 + now.Day()
	clock := now.Hour()*100 + now.Minute()

	bl, _ := parseDate(c.BeginLockDate)
	el, _ := parseDate(c.EndLockDate)
	if bl != 0 && el != 0 && today >= bl && today <= el {
		return false
	}

	bd, _ := parseDate(c.BeginDate)
	ed, _ := parseDate(c.EndDate)
	if bd != 0 && today < bd {
		return false
	}
	if ed != 0 && today > ed {
		return false
	}

	bt, _ := parseHHMM(c.BeginTime)
	et, _ := parseHHMM(c.EndTime)
	if !(bt == 0 && et == 0) && (clock < bt || clock > et) {
		return false
	}

	if c.DayMask != AllDays {
		// Sunday=1 .. Saturday=7; time.Weekday has Sunday=0.
		day := byte('1' + int(now.Weekday()))
		if !strings.ContainsRune(c.DayMask, rune(day)) {
			return false
		}
	}
	return true
}

// IdleTimeout returns the timeout as a duration, zero when unbounded.
func (c Constraint) IdleTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Minute
}

// parseHHMM converts a 4-digit HHMM string to an integer HHMM value.
func parseHHMM(s string) (int, error) {
	if len(s) != 4 || !allDigits(s) {
		return 0, ErrBadTime
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, ErrBadTime
	}
	if v/100 > 23 || v%100 > 59 {
		return 0, ErrBadTime
	}
	return v, nil
}

// parseDate converts a YYYYMMDD string to an integer, with 0 meaning
// unbounded ("none").
func parseDate(s string) (int, error) {
	if s == None || s == "" {
		return 0, nil
	}
	if len(s) != 8 || !allDigits(s) {
		return 0, ErrBadDate
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, ErrBadDate
	}
	month := v / 100 % 100
	day := v % 100
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return 0, ErrBadDate
	}
	return v, nil
}

// allDigits reports whether s consists only of '0'..'9'. Atoi alone
// would accept a leading sign, silently coercing a malformed field.
func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
