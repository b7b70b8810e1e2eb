package export

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/thesispool/thesispool/core/thesis"
)

var nowFunc = time.Now // mockable

// Deadlines renders an all-day event on the deadline of every thesis not handed in yet.
func Deadlines(theses []thesis.Thesis, appName string) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//" + appName + "//Deadlines//DE")
	cal.SetXWRCalName(appName + " Abgabetermine")

	stamp := nowFunc().UTC()
	for _, th := range theses {
		if th.IsHandedIn() {
			continue
		}
		deadline := th.Deadline()
		ev := cal.AddEvent(th.SurrogateKey.String() + "@thesispool")
		ev.SetDtStampTime(stamp)
		ev.SetAllDayStartAt(deadline)
		ev.SetAllDayEndAt(deadline.AddDate(0, 0, 1))
		ev.SetSummary(fmt.Sprintf("Abgabe %s, %s", th.Student.LastName, th.Student.FirstName))
		ev.SetDescription(fmt.Sprintf("%s\nBetreuer: %s\nStatus: %s", th.Title, th.Supervisor.ShortName(), th.Status.Label()))
	}
	return cal.Serialize()
}
