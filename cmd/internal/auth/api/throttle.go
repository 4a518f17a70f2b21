package authapi

import (
	"sync"
	"time"
)

type lockoutTier struct {
	Threshold int
	Duration  time.Duration
}

// evaluateWindowThrottle blocks once max failures fall inside the trailing window.
// retry is the time until the oldest in-window failure ages out.
func evaluateWindowThrottle(now time.Time, failures []time.Time, max int, window time.Duration) (bool, time.Duration) {
	if max <= 0 || window <= 0 {
		return false, 0
	}

	cut := now.Add(-window)
	count := 0
	var oldest time.Time
	for _, f := range failures {
		if !f.After(cut) {
			continue
		}
		count++
		if oldest.IsZero() || f.Before(oldest) {
			oldest = f
		}
	}
	if count < max {
		return false, 0
	}
	return true, oldest.Add(window).Sub(now)
}

// evaluateProgressiveLockout applies the first tier (tiers are ordered
// strongest first) whose threshold is met and whose duration, counted from the
// latest failure, has not elapsed.
func evaluateProgressiveLockout(now time.Time, failures []time.Time, tiers []lockoutTier) (bool, time.Duration) {
	if len(failures) == 0 {
		return false, 0
	}

	var latest time.Time
	for _, f := range failures {
		if f.After(latest) {
			latest = f
		}
	}

	for _, tier := range tiers {
		if tier.Threshold <= 0 || tier.Duration <= 0 || len(failures) < tier.Threshold {
			continue
		}
		until := latest.Add(tier.Duration)
		if until.After(now) {
			return true, until.Sub(now)
		}
	}
	return false, 0
}

const (
	maxFailuresPerKey = 64
	maxFailureKeys    = 100_000
)

// failureLog is an in-memory record of recent failed checks per key.
type failureLog struct {
	mu   sync.Mutex
	keep time.Duration
	keys map[string][]time.Time
}

func newFailureLog(keep time.Duration) *failureLog {
	if keep <= 0 {
		keep = time.Hour
	}
	return &failureLog{keep: keep, keys: make(map[string][]time.Time)}
}

// snapshot returns the unexpired failures for key.
func (l *failureLog) snapshot(key string, now time.Time) []time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()

	live := l.pruneLocked(key, now)
	out := make([]time.Time, len(live))
	copy(out, live)
	return out
}

func (l *failureLog) record(key string, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.keys) >= maxFailureKeys {
		l.sweepLocked(now)
	}

	live := append(l.pruneLocked(key, now), now)
	if len(live) > maxFailuresPerKey {
		live = live[len(live)-maxFailuresPerKey:]
	}
	l.keys[key] = live
}

// remove drops the newest entry recorded at exactly at, if any.
func (l *failureLog) remove(key string, at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	list := l.keys[key]
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].Equal(at) {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(l.keys, key)
		return
	}
	l.keys[key] = list
}

func (l *failureLog) reset(key string) {
	l.mu.Lock()
	delete(l.keys, key)
	l.mu.Unlock()
}

func (l *failureLog) pruneLocked(key string, now time.Time) []time.Time {
	cut := now.Add(-l.keep)
	list := l.keys[key]
	i := 0
	for i < len(list) && !list[i].After(cut) {
		i++
	}
	if i == len(list) {
		delete(l.keys, key)
		return nil
	}
	if i > 0 {
		list = list[i:]
		l.keys[key] = list
	}
	return list
}

func (l *failureLog) sweepLocked(now time.Time) {
	for key := range l.keys {
		l.pruneLocked(key, now)
	}
}

// checkThrottle guards subject checks against online guessing: a per-IP window
// and a progressive per-subject lockout.
//
// An admitted attempt is recorded as a failure before the verify runs, so
// parallel requests cannot all pass the check before any failure is logged.
// The caller settles it with succeed or cancel; a mismatch leaves it in place.
type checkThrottle struct {
	cfg    Config
	mu     sync.Mutex
	bySubj *failureLog
	byIP   *failureLog
}

// checkAttempt is an admitted, not yet settled check.
type checkAttempt struct {
	subject string
	ip      string
	at      time.Time
}

func newCheckThrottle(cfg Config) *checkThrottle {
	keep := cfg.CheckIPWindow
	for _, tier := range cfg.lockoutTiers() {
		if tier.Duration > keep {
			keep = tier.Duration
		}
	}
	return &checkThrottle{
		cfg:    cfg,
		bySubj: newFailureLog(keep),
		byIP:   newFailureLog(cfg.CheckIPWindow),
	}
}

// reserve admits a check and records it as a pending failure, or reports how
// long to wait.
func (t *checkThrottle) reserve(subject, ip string, now time.Time) (checkAttempt, bool, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ip != "" {
		if blocked, retry := evaluateWindowThrottle(now, t.byIP.snapshot(ip, now), t.cfg.CheckIPMax, t.cfg.CheckIPWindow); blocked {
			return checkAttempt{}, false, retry
		}
	}
	if blocked, retry := evaluateProgressiveLockout(now, t.bySubj.snapshot(subject, now), t.cfg.lockoutTiers()); blocked {
		return checkAttempt{}, false, retry
	}

	t.bySubj.record(subject, now)
	if ip != "" {
		t.byIP.record(ip, now)
	}
	return checkAttempt{subject: subject, ip: ip, at: now}, true, 0
}

// succeed clears the subject lockout and drops the attempt from the IP window.
// Earlier IP failures stay; one correct guess must not reset a spraying client.
func (t *checkThrottle) succeed(a checkAttempt) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.bySubj.reset(a.subject)
	if a.ip != "" {
		t.byIP.remove(a.ip, a.at)
	}
}

// cancel undoes a reservation whose check never produced an answer.
func (t *checkThrottle) cancel(a checkAttempt) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.bySubj.remove(a.subject, a.at)
	if a.ip != "" {
		t.byIP.remove(a.ip, a.at)
	}
}
