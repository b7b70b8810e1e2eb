package thesis

import (
	"time"

	"github.com/thesispool/thesispool/core"
	"github.com/thesispool/thesispool/core/student"
)

const (
	bachelorMonths = 3
	masterMonths   = 6
)

// NextMonthStart returns d if it is the first of a month, else the first of the following month.
func NextMonthStart(d time.Time) time.Time {
	d = core.Date(d)
	if d.Day() == 1 {
		return d
	}
	return time.Date(d.Year(), d.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}

// AddMonths returns the day before d shifted by n months, clamped to the end of the target month.
func AddMonths(n int, d time.Time) time.Time {
	d = core.Date(d)
	firstOfTarget := time.Date(d.Year(), d.Month()+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	day := d.Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
}

// Period suggests begin and due dates for a new thesis of the given student.
func Period(today time.Time, st student.Student) (begin, due time.Time) {
	months := bachelorMonths
	if st.IsMaster() {
		months = masterMonths
	}
	begin = NextMonthStart(today)
	return begin, AddMonths(months, begin)
}
