package availability

import (
	"sort"
	"strings"
	"time"

	"github.com/hackgods/assistance-scheduling/internal/backend"
	"github.com/hackgods/assistance-scheduling/internal/store"
)

// Calendar mirrors one volunteer's offered slots: day -> sorted unique
// "HH:mm" list, plus an index from "day|HH:mm" to the backend slot id.
// A time present in Days without an id is a pending local insert.
type Calendar struct {
	days map[string][]string
	ids  map[string]int64
}

func NewCalendar() *Calendar {
	return &Calendar{
		days: make(map[string][]string),
		ids:  make(map[string]int64),
	}
}

func CalendarFromCache(c *store.AvailabilityCache) *Calendar {
	cal := NewCalendar()
	if c == nil {
		return cal
	}
	for day, times := range c.Days {
		cal.days[day] = normalizeTimes(times)
	}
	for k, id := range c.IDs {
		cal.ids[k] = id
	}
	return cal
}

func (c *Calendar) Cache(volunteerID int64, now time.Time) store.AvailabilityCache {
	out := store.AvailabilityCache{
		VolunteerID: volunteerID,
		Days:        make(map[string][]string, len(c.days)),
		IDs:         make(map[string]int64, len(c.ids)),
		UpdatedAt:   now,
	}
	for day, times := range c.days {
		out.Days[day] = append([]string(nil), times...)
	}
	for k, id := range c.ids {
		out.IDs[k] = id
	}
	return out
}

func slotKey(day, clock string) string {
	return day + "|" + clock
}

func (c *Calendar) HasDay(day string) bool {
	_, ok := c.days[day]
	return ok
}

func (c *Calendar) Has(day, clock string) bool {
	return indexOf(c.days[day], clock) >= 0
}

func (c *Calendar) Times(day string) []string {
	return append([]string(nil), c.days[day]...)
}

func (c *Calendar) ID(day, clock string) (int64, bool) {
	id, ok := c.ids[slotKey(day, clock)]
	return id, ok && id != 0
}

// Merge folds backend records into the calendar. Times are deduplicated
// per day and sorted. When several records in one batch share a
// (day, time), the first one's id is kept and the rest are returned.
func (c *Calendar) Merge(records []SlotRecord) (duplicates []SlotRecord, err error) {
	seen := make(map[string]struct{}, len(records))
	touched := make(map[string]struct{})

	for _, rec := range records {
		day, clock, err := backend.SplitDateTime(rec.DataHorario)
		if err != nil {
			return duplicates, backend.SchemaMismatch(err)
		}
		key := slotKey(day, clock)
		if _, dup := seen[key]; dup {
			duplicates = append(duplicates, rec)
			continue
		}
		seen[key] = struct{}{}

		if indexOf(c.days[day], clock) < 0 {
			c.days[day] = append(c.days[day], clock)
			touched[day] = struct{}{}
		}
		c.ids[key] = rec.ID
	}

	for day := range touched {
		sort.Strings(c.days[day])
	}
	return duplicates, nil
}

// MergeTimes adds times to a day without removing any it already holds.
func (c *Calendar) MergeTimes(day string, times []string) {
	c.days[day] = normalizeTimes(append(c.days[day], times...))
}

// Add inserts a time without an id.
func (c *Calendar) Add(day, clock string) {
	c.MergeTimes(day, []string{clock})
}

func (c *Calendar) SetID(day, clock string, id int64) {
	c.ids[slotKey(day, clock)] = id
}

// ReplaceDay swaps the day's times and ids wholesale.
func (c *Calendar) ReplaceDay(day string, slots map[string]int64) {
	c.clearIDs(day)
	times := make([]string, 0, len(slots))
	for clock, id := range slots {
		times = append(times, clock)
		if id != 0 {
			c.ids[slotKey(day, clock)] = id
		}
	}
	sort.Strings(times)
	c.days[day] = times
}

// RemoveTime drops one time. The day stays even when it ends up empty.
func (c *Calendar) RemoveTime(day, clock string) {
	delete(c.ids, slotKey(day, clock))
	times, ok := c.days[day]
	if !ok {
		return
	}
	if i := indexOf(times, clock); i >= 0 {
		c.days[day] = append(times[:i:i], times[i+1:]...)
	}
}

func (c *Calendar) DropDay(day string) {
	c.clearIDs(day)
	delete(c.days, day)
}

// Slots returns the day's times with their ids, as ReplaceDay takes them.
func (c *Calendar) Slots(day string) map[string]int64 {
	out := make(map[string]int64, len(c.days[day]))
	for _, clock := range c.days[day] {
		out[clock] = c.ids[slotKey(day, clock)]
	}
	return out
}

func (c *Calendar) clearIDs(day string) {
	prefix := day + "|"
	for k := range c.ids {
		if strings.HasPrefix(k, prefix) {
			delete(c.ids, k)
		}
	}
}

// Filter narrows a calendar view. Month is "YYYY-MM", Day "YYYY-MM-DD" and
// Time "HH:mm"; empty fields match everything.
type Filter struct {
	Month string
	Day   string
	Time  string
}

func (f Filter) matchDay(day string) bool {
	if f.Day != "" && day != f.Day {
		return false
	}
	if f.Month != "" && !strings.HasPrefix(day, f.Month+"-") {
		return false
	}
	return true
}

// Filter returns matching days in ascending order. With a Time filter only
// days offering that time are returned.
func (c *Calendar) Filter(f Filter) []DaySlots {
	days := make([]string, 0, len(c.days))
	for day := range c.days {
		if f.matchDay(day) {
			days = append(days, day)
		}
	}
	sort.Strings(days)

	out := make([]DaySlots, 0, len(days))
	for _, day := range days {
		slots := make([]Slot, 0, len(c.days[day]))
		for _, clock := range c.days[day] {
			if f.Time != "" && clock != f.Time {
				continue
			}
			slots = append(slots, Slot{ID: c.ids[slotKey(day, clock)], Day: day, Time: clock})
		}
		if f.Time != "" && len(slots) == 0 {
			continue
		}
		out = append(out, DaySlots{Day: day, Slots: slots})
	}
	return out
}

func normalizeTimes(times []string) []string {
	out := make([]string, 0, len(times))
	seen := make(map[string]struct{}, len(times))
	for _, t := range times {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func indexOf(times []string, clock string) int {
	for i, t := range times {
		if t == clock {
			return i
		}
	}
	return -1
}
