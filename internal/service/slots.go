package service

import (
	"sort"
	"strings"

	"github.com/noah-isme/interview-rescheduler/internal/models"
)

var dayIndex = map[string]int{
	"monday": 0, "mon": 0,
	"tuesday": 1, "tue": 1, "tues": 1,
	"wednesday": 2, "wed": 2,
	"thursday": 3, "thu": 3, "thurs": 3,
	"friday": 4, "fri": 4,
	"saturday": 5, "sat": 5,
	"sunday": 6, "sun": 6,
}

const unknownDay = 7

func dayRank(day string) int {
	if idx, ok := dayIndex[strings.ToLower(strings.TrimSpace(day))]; ok {
		return idx
	}
	return unknownDay
}

// normalizeTime left-pads the hour so "9:00" and "09:00" compare equal.
func normalizeTime(value string) string {
	value = strings.TrimSpace(value)
	hour, rest, found := strings.Cut(value, ":")
	if !found || len(hour) != 1 {
		return value
	}
	return "0" + hour + ":" + rest
}

func slotKey(slot models.Slot) string {
	day := strings.ToLower(strings.TrimSpace(slot.Day))
	if idx, ok := dayIndex[day]; ok {
		day = string(rune('0' + idx))
	}
	return day + "|" + normalizeTime(slot.Time)
}

// slotLess orders slots by calendar day (Monday first) then by time of day. Day
// names outside the week sort last, alphabetically.
func slotLess(a, b models.Slot) bool {
	ra, rb := dayRank(a.Day), dayRank(b.Day)
	if ra != rb {
		return ra < rb
	}
	if ra == unknownDay {
		da, db := strings.ToLower(a.Day), strings.ToLower(b.Day)
		if da != db {
			return da < db
		}
	}
	return normalizeTime(a.Time) < normalizeTime(b.Time)
}

// SortSlots sorts slots in place using the rescheduling order.
func SortSlots(slots []models.Slot) {
	sort.SliceStable(slots, func(i, j int) bool { return slotLess(slots[i], slots[j]) })
}

// CommonFreeSlots returns the slots of universe that none of the students
// occupy, sorted. Students missing from occupied are free everywhere.
func CommonFreeSlots(universe []models.Slot, occupied map[string][]models.Slot, students []string) []models.Slot {
	busy := make(map[string]struct{})
	for _, studentID := range students {
		for _, slot := range occupied[studentID] {
			busy[slotKey(slot)] = struct{}{}
		}
	}

	seen := make(map[string]struct{}, len(universe))
	free := make([]models.Slot, 0, len(universe))
	for _, slot := range universe {
		key := slotKey(slot)
		if _, taken := busy[key]; taken {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		free = append(free, slot)
	}
	SortSlots(free)
	return free
}

// PickSlot returns the head of slots, which must already be in rescheduling
// order as CommonFreeSlots returns it.
func PickSlot(slots []models.Slot) (models.Slot, bool) {
	if len(slots) == 0 {
		return models.Slot{}, false
	}
	return slots[0], true
}
