// Package gameclock maps real time onto the game calendar. One real day
// advances the calendar by a fixed number of game years, counted from a
// persisted epoch.
package gameclock

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/vkotenev/statecraft/internal/config"
)

const (
	metaEpoch    = "game_epoch"
	metaDayMark  = "last_day_mark"
)

// MetaStore persists the clock's epoch and day mark. Get reports found
// via ok so the clock can seed missing keys.
type MetaStore interface {
	GetMeta(key string) (string, error)
	SetMeta(key, value string) error
}

// Invalidator clears derived caches that become stale when the epoch
// moves.
type Invalidator interface {
	InvalidateProjectProgress() error
}

// Clock converts wall time to game years. Safe for concurrent use.
type Clock struct {
	meta        MetaStore
	startYear   int
	yearsPerDay int

	mu       sync.Mutex
	epoch    time.Time
	lastYear int // monotonic floor, guards against wall-clock regression

	now func() time.Time // test hook
}

// New loads the persisted epoch, creating one at the current instant on
// first run.
func New(meta MetaStore, cfg config.Clock) (*Clock, error) {
	c := &Clock{
		meta:        meta,
		startYear:   cfg.StartYear,
		yearsPerDay: cfg.YearsPerDay,
		lastYear:    cfg.StartYear,
		now:         time.Now,
	}

	raw, err := meta.GetMeta(metaEpoch)
	if err == nil {
		epoch, perr := time.Parse(time.RFC3339, raw)
		if perr != nil {
			return nil, fmt.Errorf("corrupt epoch %q: %w", raw, perr)
		}
		c.epoch = epoch
		return c, nil
	}

	c.epoch = c.now().UTC()
	if err := meta.SetMeta(metaEpoch, c.epoch.Format(time.RFC3339)); err != nil {
		return nil, fmt.Errorf("persist epoch: %w", err)
	}
	return c, nil
}

// DaysSinceEpoch returns whole real days elapsed since the epoch, never
// negative.
func (c *Clock) DaysSinceEpoch() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.daysLocked()
}

func (c *Clock) daysLocked() int {
	d := int(c.now().UTC().Sub(c.epoch).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

// CurrentYear returns the game year. The value never decreases for the
// lifetime of the process even if the wall clock steps backward.
func (c *Clock) CurrentYear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	year := c.startYear + c.daysLocked()*c.yearsPerDay
	if year < c.lastYear {
		return c.lastYear
	}
	c.lastYear = year
	return year
}

// FormatYear renders a game year for narrative text.
func FormatYear(year int) string {
	if year < 0 {
		return fmt.Sprintf("%d BCE", -year)
	}
	return fmt.Sprintf("%d CE", year)
}

// MarkDay reports whether a new real day has begun since the previous
// call, persisting the day mark. The first call after a fresh epoch
// reports true.
func (c *Clock) MarkDay() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	today := c.daysLocked()
	raw, err := c.meta.GetMeta(metaDayMark)
	if err == nil {
		mark, perr := strconv.Atoi(raw)
		if perr == nil && mark >= today {
			return false, nil
		}
	}

	if err := c.meta.SetMeta(metaDayMark, strconv.Itoa(today)); err != nil {
		return false, fmt.Errorf("persist day mark: %w", err)
	}
	return true, nil
}

// Reset moves the epoch to now, rewinding the calendar to the start
// year. Cached progress derived from the old epoch is invalidated;
// completion flags are left alone.
func (c *Clock) Reset(inv Invalidator) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch = c.now().UTC()
	c.lastYear = c.startYear
	if err := c.meta.SetMeta(metaEpoch, c.epoch.Format(time.RFC3339)); err != nil {
		return fmt.Errorf("persist epoch: %w", err)
	}
	if err := c.meta.SetMeta(metaDayMark, "-1"); err != nil {
		return fmt.Errorf("persist day mark: %w", err)
	}
	if inv != nil {
		if err := inv.InvalidateProjectProgress(); err != nil {
			return fmt.Errorf("invalidate caches: %w", err)
		}
	}
	return nil
}
