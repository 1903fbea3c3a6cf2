// Package window implements the meal window clock: pure UTC arithmetic over
// a user's four daily boundary times and fixed jitter offset. No I/O.
//
// Windows are cyclic. Window i spans [boundary[i], boundary[(i+1)%4]) after
// each boundary is shifted earlier by the user's jitter offset; the dinner
// window crosses midnight into the next day's breakfast.
package window

import (
	"time"

	"github.com/pmg5408/grocery-meal-agent/internal/types"
)

const day = 24 * time.Hour

// offsetOf returns the user's jitter as a duration.
func offsetOf(prefs *types.MealPreference) time.Duration {
	return time.Duration(prefs.OffsetMinutes) * time.Minute
}

// adjustedBoundaries builds the four jitter-shifted boundary timestamps for
// the date of now.
func adjustedBoundaries(prefs *types.MealPreference, now time.Time) [types.WindowCount]time.Time {
	offset := offsetOf(prefs)
	var out [types.WindowCount]time.Time
	for w := types.WindowBreakfast; w <= types.WindowDinner; w++ {
		out[w] = prefs.Boundary(w).On(now).Add(-offset)
	}
	return out
}

// CurrentWindow returns the window containing now. The four adjusted windows
// partition the 24-hour day, so exactly one window matches; if boundary edge
// cases leave no match, dinner is the safe fallback.
func CurrentWindow(prefs *types.MealPreference, now time.Time) types.MealWindow {
	boundaries := adjustedBoundaries(prefs, now)

	for w := types.WindowBreakfast; w <= types.WindowDinner; w++ {
		start := boundaries[w]
		end := boundaries[w.Next()]

		if end.Before(start) {
			// Window crosses midnight.
			end = end.Add(day)
			if now.Before(start) {
				start = start.Add(-day)
				end = end.Add(-day)
			}
		}

		if !now.Before(start) && now.Before(end) {
			return w
		}
	}

	return types.WindowDinner
}

// NextRun computes the next generation fire time after the window that was
// just processed. It advances the index by at least one step, skipping
// windows whose jittered boundary has already passed today; wrapping through
// breakfast always jumps a full day, which bounds the scan to one pass over
// the four windows.
//
// The returned timestamp is strictly after now. The exhaustion error is
// structurally unreachable (the index wraps to breakfast within four steps)
// and indicates a malformed preference; callers log and skip the user.
func NextRun(prefs *types.MealPreference, justProcessed types.MealWindow, now time.Time) (time.Time, types.MealWindow, error) {
	offset := offsetOf(prefs)

	w := justProcessed
	for i := 0; i < types.WindowCount; i++ {
		w = w.Next()
		runAt := prefs.Boundary(w).On(now).Add(-offset)

		if runAt.After(now) {
			return runAt, w, nil
		}

		if w == types.WindowBreakfast {
			// Today's breakfast already passed: next day's breakfast. A large
			// jitter can pull the boundary before midnight, so step by whole
			// days until the result is in the future.
			for !runAt.After(now) {
				runAt = runAt.Add(day)
			}
			return runAt, w, nil
		}
	}

	return time.Time{}, 0, types.NewAppError(
		types.ErrCodeInternalSchedule,
		"window advance did not terminate",
		nil,
	)
}

// WindowEnd returns the un-jittered boundary of window w: the moment the
// window truly begins and the result it supersedes becomes safe to delete.
// The trigger fires offsetMinutes before this boundary, so the deadline
// always passes well before the following window's firing; the expiry sweep
// therefore runs between supersession and the next claim, never after it.
//
// fireAt anchors the day. It is the trigger's jittered fire time; when jitter
// pulls the firing across midnight the boundary lands on the next day.
func WindowEnd(prefs *types.MealPreference, w types.MealWindow, fireAt time.Time) time.Time {
	end := prefs.Boundary(w).On(fireAt)
	if end.Before(fireAt) {
		end = end.Add(day)
	}
	return end
}
