package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/assistance-scheduling/internal/backend"
	"github.com/hackgods/assistance-scheduling/internal/store"
)

func TestCalendarMerge(t *testing.T) {
	t.Run("Duplicate times collapse to one", func(t *testing.T) {
		cal := NewCalendar()

		dups, err := cal.Merge([]SlotRecord{
			{ID: 1, DataHorario: "2025-06-01T09:00:00"},
			{ID: 2, DataHorario: "2025-06-01T09:00:00"},
		})

		require.NoError(t, err)
		assert.Equal(t, []string{"09:00"}, cal.Times("2025-06-01"))
		id, ok := cal.ID("2025-06-01", "09:00")
		require.True(t, ok)
		assert.Equal(t, int64(1), id, "first record in the batch keeps the key")
		require.Len(t, dups, 1)
		assert.Equal(t, int64(2), dups[0].ID)
	})

	t.Run("Sorts times and keeps cached entries", func(t *testing.T) {
		cal := CalendarFromCache(&store.AvailabilityCache{
			Days: map[string][]string{"2025-06-01": {"14:00"}},
			IDs:  map[string]int64{"2025-06-01|14:00": 30},
		})

		_, err := cal.Merge([]SlotRecord{
			{ID: 5, DataHorario: "2025-06-01T10:00:00"},
			{ID: 4, DataHorario: "2025-06-01T08:30:00"},
			{ID: 6, DataHorario: "2025-06-02T09:00:00"},
		})

		require.NoError(t, err)
		assert.Equal(t, []string{"08:30", "10:00", "14:00"}, cal.Times("2025-06-01"))
		assert.Equal(t, []string{"09:00"}, cal.Times("2025-06-02"))
		id, _ := cal.ID("2025-06-01", "14:00")
		assert.Equal(t, int64(30), id)
	})

	t.Run("Backend id replaces a cached one", func(t *testing.T) {
		cal := CalendarFromCache(&store.AvailabilityCache{
			Days: map[string][]string{"2025-06-01": {"09:00"}},
			IDs:  map[string]int64{"2025-06-01|09:00": 3},
		})

		_, err := cal.Merge([]SlotRecord{{ID: 8, DataHorario: "2025-06-01T09:00:00"}})

		require.NoError(t, err)
		id, _ := cal.ID("2025-06-01", "09:00")
		assert.Equal(t, int64(8), id)
	})

	t.Run("Unparseable timestamp is a schema mismatch", func(t *testing.T) {
		_, err := NewCalendar().Merge([]SlotRecord{{ID: 1, DataHorario: "amanha"}})
		assert.ErrorIs(t, err, backend.ErrSchemaMismatch)
	})
}

func TestCalendarEdits(t *testing.T) {
	newCal := func() *Calendar {
		return CalendarFromCache(&store.AvailabilityCache{
			Days: map[string][]string{
				"2025-06-01": {"09:00", "10:00"},
				"2025-06-02": {"09:00"},
				"2025-07-01": {"11:00"},
			},
			IDs: map[string]int64{
				"2025-06-01|09:00": 1,
				"2025-06-01|10:00": 2,
				"2025-06-02|09:00": 3,
			},
		})
	}

	t.Run("Removing the last time keeps the day", func(t *testing.T) {
		cal := newCal()
		cal.RemoveTime("2025-06-02", "09:00")

		assert.True(t, cal.HasDay("2025-06-02"))
		assert.Empty(t, cal.Times("2025-06-02"))
		_, ok := cal.ID("2025-06-02", "09:00")
		assert.False(t, ok)
	})

	t.Run("Dropping a day clears its ids only", func(t *testing.T) {
		cal := newCal()
		cal.DropDay("2025-06-01")

		assert.False(t, cal.HasDay("2025-06-01"))
		_, ok := cal.ID("2025-06-01", "10:00")
		assert.False(t, ok)
		_, ok = cal.ID("2025-06-02", "09:00")
		assert.True(t, ok)
	})

	t.Run("MergeTimes never removes", func(t *testing.T) {
		cal := newCal()
		cal.MergeTimes("2025-06-01", []string{"08:00", "10:00"})

		assert.Equal(t, []string{"08:00", "09:00", "10:00"}, cal.Times("2025-06-01"))
		id, _ := cal.ID("2025-06-01", "10:00")
		assert.Equal(t, int64(2), id)
	})

	t.Run("ReplaceDay swaps times and ids", func(t *testing.T) {
		cal := newCal()
		cal.ReplaceDay("2025-06-01", map[string]int64{"15:00": 9, "13:00": 0})

		assert.Equal(t, []string{"13:00", "15:00"}, cal.Times("2025-06-01"))
		_, ok := cal.ID("2025-06-01", "09:00")
		assert.False(t, ok)
		id, _ := cal.ID("2025-06-01", "15:00")
		assert.Equal(t, int64(9), id)
	})

	t.Run("Filter by month, day and time", func(t *testing.T) {
		cal := newCal()

		june := cal.Filter(Filter{Month: "2025-06"})
		require.Len(t, june, 2)
		assert.Equal(t, "2025-06-01", june[0].Day)
		assert.Equal(t, "2025-06-02", june[1].Day)

		nine := cal.Filter(Filter{Time: "09:00"})
		require.Len(t, nine, 2)
		for _, d := range nine {
			require.Len(t, d.Slots, 1)
			assert.Equal(t, "09:00", d.Slots[0].Time)
		}

		one := cal.Filter(Filter{Day: "2025-07-01"})
		require.Len(t, one, 1)
		assert.Equal(t, int64(0), one[0].Slots[0].ID)
	})

	t.Run("Cache round trip", func(t *testing.T) {
		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		c := newCal().Cache(7, now)

		assert.Equal(t, int64(7), c.VolunteerID)
		assert.Equal(t, now, c.UpdatedAt)
		assert.Equal(t, newCal().Filter(Filter{}), CalendarFromCache(&c).Filter(Filter{}))
	})
}

func TestPlanEdit(t *testing.T) {
	tests := []struct {
		name     string
		original []string
		desired  []string
		want     Plan
	}{
		{
			name:     "One changed time becomes a move",
			original: []string{"09:00", "10:00"},
			desired:  []string{"09:00", "11:00"},
			want:     Plan{Moves: []Move{{From: "10:00", To: "11:00"}}},
		},
		{
			name:     "Pure addition",
			original: []string{"09:00"},
			desired:  []string{"09:00", "11:00"},
			want:     Plan{Creates: []string{"11:00"}},
		},
		{
			name:     "Pure removal",
			original: []string{"09:00", "10:00"},
			desired:  []string{"10:00"},
			want:     Plan{Deletes: []string{"09:00"}},
		},
		{
			name:     "Pairs in ascending order and leaves the rest",
			original: []string{"08:00", "09:00", "12:00"},
			desired:  []string{"14:00", "13:00"},
			want: Plan{
				Moves:   []Move{{From: "08:00", To: "13:00"}, {From: "09:00", To: "14:00"}},
				Deletes: []string{"12:00"},
			},
		},
		{
			name:     "No change",
			original: []string{"09:00"},
			desired:  []string{"09:00"},
			want:     Plan{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PlanEdit(tt.original, tt.desired)
			assert.Equal(t, tt.want.Moves, got.Moves)
			assert.ElementsMatch(t, tt.want.Deletes, got.Deletes)
			assert.ElementsMatch(t, tt.want.Creates, got.Creates)
		})
	}
}
