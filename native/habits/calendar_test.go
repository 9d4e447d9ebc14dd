package habits

import "testing"

func TestDateFloorAndNextDate(t *testing.T) {
	const day = 1_700_006_400 // 2023-11-15T00:00:00Z
	cases := []struct {
		ts    int64
		floor int64
	}{
		{day, day},
		{day + 1, day},
		{day + DayLength - 1, day},
		{day + DayLength, day + DayLength},
	}
	for _, tc := range cases {
		if got := DateFloor(tc.ts); got != tc.floor {
			t.Fatalf("DateFloor(%d) = %d, want %d", tc.ts, got, tc.floor)
		}
		if got := NextDate(tc.ts); got != tc.floor+DayLength {
			t.Fatalf("NextDate(%d) = %d, want %d", tc.ts, got, tc.floor+DayLength)
		}
	}
	if !IsDate(day) || IsDate(day+1) {
		t.Fatalf("unexpected IsDate result")
	}
}

func TestIsMature(t *testing.T) {
	const today = 1_700_006_400
	now := int64(today + 3600)
	if IsMature(today-DayLength, now) {
		t.Fatalf("yesterday must not be mature")
	}
	if !IsMature(today-2*DayLength, now) {
		t.Fatalf("two days ago must be mature")
	}
	if IsMature(today, now) || IsMature(today+DayLength, now) {
		t.Fatalf("today and tomorrow must not be mature")
	}
}
