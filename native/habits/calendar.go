package habits

// DayLength is the number of seconds in a calendar day.
const DayLength int64 = 86400

// MaturityDays is the grace period after a date before its outcome can be
// settled.
const MaturityDays int64 = 2

// DateFloor truncates a unix timestamp to the start of its UTC day.
func DateFloor(ts int64) int64 {
	return ts - ts%DayLength
}

// NextDate returns the start of the day after ts.
func NextDate(ts int64) int64 {
	return DateFloor(ts) + DayLength
}

// IsDate reports whether ts lies exactly on a day boundary.
func IsDate(ts int64) bool {
	return ts%DayLength == 0
}

// IsMature reports whether the outcome of date can be settled at now.
func IsMature(date, now int64) bool {
	return DateFloor(now)-date >= MaturityDays*DayLength
}
