// Package pacing spaces out sends so a campaign looks like a person typing
// rather than a script. Everything here is a pure function of its inputs and
// the process random source; nothing touches storage.
package pacing

import (
	"math"
	"math/rand"
	"time"

	"github.com/unclebandit/leopard-outreach/internal/model"
)

const (
	WindowStartHour = 8
	WindowEndHour   = 20

	// windowJitter is the spread applied when a send is pushed to the next window.
	windowJitter = 30 * time.Minute

	BatchSize = 30

	chatDailyLimit  = 150
	emailDailyLimit = 500

	banMinAttempts    = 5
	banFailureRatio   = 0.5
	retryBaseInterval = 5 * time.Minute
)

type delayProfile struct {
	center, spread, min, max float64
}

var delays = map[model.Channel]delayProfile{
	model.ChannelChat:  {center: 210, spread: 90, min: 120, max: 300},
	model.ChannelEmail: {center: 60, spread: 30, min: 30, max: 90},
}

// GetDelay returns the gap to leave before the next send on ch.
func GetDelay(ch model.Channel) time.Duration {
	return time.Duration(DelaySeconds(ch) * float64(time.Second))
}

// DelaySeconds draws a uniformly jittered delay around the channel's center,
// clamped to the channel's bounds.
func DelaySeconds(ch model.Channel) float64 {
	p, ok := delays[ch]
	if !ok {
		p = delays[model.ChannelChat]
	}
	d := p.center + (rand.Float64()*2-1)*p.spread
	return math.Min(p.max, math.Max(p.min, d))
}

func IsWithinSendingWindow(hour int) bool {
	return hour >= WindowStartHour && hour < WindowEndHour
}

// ClampToWindow moves t to the next 08:00 (plus up to 30 minutes of jitter)
// when it falls outside the sending window. The hour is read in t's location.
func ClampToWindow(t time.Time) time.Time {
	if IsWithinSendingWindow(t.Hour()) {
		return t
	}
	day := t
	if t.Hour() >= WindowEndHour {
		day = t.AddDate(0, 0, 1)
	}
	return windowStart(day).Add(jitter(windowJitter))
}

// NextDayWindowStart is the jittered opening of the window on the day after t.
func NextDayWindowStart(t time.Time) time.Time {
	return windowStart(t.AddDate(0, 0, 1)).Add(jitter(windowJitter))
}

// StartOfDay is local midnight of t's day, used as the daily limit boundary.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func windowStart(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, WindowStartHour, 0, 0, 0, day.Location())
}

func DailyLimit(ch model.Channel) int {
	if ch == model.ChannelEmail {
		return emailDailyLimit
	}
	return chatDailyLimit
}

func IsDailyLimitSafe(sentToday int, ch model.Channel) bool {
	return sentToday < DailyLimit(ch)
}

func ShouldPauseBatch(sentCount int) bool {
	return sentCount > 0 && sentCount%BatchSize == 0
}

// GetBatchPauseSeconds returns a cool-down between 600 and 1200 seconds.
func GetBatchPauseSeconds() int {
	return 600 + rand.Intn(601)
}

func GetBatchPause() time.Duration {
	return time.Duration(GetBatchPauseSeconds()) * time.Second
}

func ShouldSuspectBan(recentFailures, totalAttempts int) bool {
	if totalAttempts < banMinAttempts {
		return false
	}
	return float64(recentFailures)/float64(totalAttempts) > banFailureRatio
}

// RetryBackoff is the wait before retry number attempt (1-based): 5m, 10m, 20m, ...
func RetryBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 10 {
		attempt = 10
	}
	return retryBaseInterval << (attempt - 1)
}

func jitter(max time.Duration) time.Duration {
	return time.Duration(rand.Int63n(int64(max)))
}
