package pdf

import (
	"strconv"
	"time"

	"github.com/thesispool/thesispool/core/thesis"
)

// Form names a PDF form template.
type Form string

const (
	FormApplication  Form = "ausgabe"
	FormProlongation Form = "verlaengerung"
	FormGrading      Form = "bewertung"

	dateLayout = "02.01.2006"
	faculty    = "Fakultät für Informatik"
	facultyTag = "I"
)

var Forms = []Form{FormApplication, FormProlongation, FormGrading}

func ParseForm(s string) (Form, bool) {
	for _, f := range Forms {
		if string(f) == s {
			return f, true
		}
	}
	return "", false
}

func formatDate(t time.Time) string { return t.Format(dateLayout) }

// Fields maps a thesis onto the fields of the given form.
// The forms share field names; some of them exist in several spellings.
func Fields(th thesis.Thesis, form Form) *XFDF {
	x := NewXFDF()
	x.Set("Auswahl_Arbeit", "0")
	if th.IsMaster() {
		x.Set("Wahlt_Arbeit", "Master")
	} else {
		x.Set("Wahlt_Arbeit", "Bachelor")
	}

	x.Set("Thema_der_Arbeit", th.Title)
	x.Set("Kurztitel der Arbeit", th.Title)
	x.Set("Name, Vorname", th.Student.LastName+", "+th.Student.FirstName)
	x.Set("Matrikelnr", strconv.Itoa(th.Student.ID))
	x.Set("Matrikelnummer", strconv.Itoa(th.Student.ID))
	x.Set("Email", th.StudentEmail)
	x.Set("Fakultät Studiengang", faculty+" / "+th.Student.Program)
	x.Set("Fakultät_Studiengang", faculty+" / "+th.Student.Program)
	x.Set("Kurzzeichen_Fakultät", facultyTag)
	x.Set("Fakultät", facultyTag)

	begin, due := formatDate(th.BeginDate), formatDate(th.DueDate)
	x.Set("Beginn der Arbeit", begin)
	x.Set("Beginn_Arbeit", begin)
	x.Set("Abgabedatum", due)
	x.Set("Ende_Arbeit", due)
	x.Set("Datum_urspruengliche_Abgabe", due)

	for _, f := range []string{"Kurzzeichen1", "Kurzzeichen_erst", "Kurzzeichen_Prof"} {
		x.Set(f, th.Supervisor.Initials)
	}
	x.Set("Name Erstprüfer", th.Supervisor.ShortName())
	x.Set("Hochschullehrer/in", th.Supervisor.ShortName())
	if th.Assessor != nil {
		x.Set("Name Zweitprüfer", th.Assessor.ShortName())
		x.Set("Zweitkorrektor/in", th.Assessor.ShortName())
	}

	if th.External {
		x.Set("Ort_der_Arbeit", "außer_Hause")
		if th.ExternalWhere != "" {
			x.Set("Adresse_der_Firma", th.ExternalWhere)
		}
	} else {
		x.Set("Ort_der_Arbeit", "im Hause")
	}

	if th.Grade.Valid {
		x.Set("Note Erstprüfer", thesis.FormatGrade(th.Grade.Float64))
		x.Set("Mit Note", "1")
	}
	if th.AssessorGrade.Valid {
		x.Set("Note Zweitprüfer", thesis.FormatGrade(th.AssessorGrade.Float64))
	}
	if overall, ok := th.OverallGrade(); ok {
		x.Set("Gesamtnote", thesis.FormatGrade(overall))
	}
	if th.ExaminationDate.Valid {
		x.Set("Datum Kolloquium", formatDate(th.ExaminationDate.Time))
	}

	switch {
	case th.IsLate():
		x.Set("auswählen", "2")
	case th.WasProlonged():
		x.Set("auswählen", "1")
	default:
		x.Set("auswählen", "0")
	}
	if th.WasProlonged() {
		x.Set("Begründung_Antrag", th.ProlongationReason.String)
		x.Set("Symtome / Auswirkung", th.ProlongationReason.String)
		x.Set("Zeitraum_Verlängerung", strconv.Itoa(th.ProlongationWeeks.Int))
		x.Set("Zeitraum", "Wochen")
		x.Set("Datum_neue_Abgabe", formatDate(th.ProlongationDate.Time))
		x.Set("Datum_neuer Abgabetermin", formatDate(th.ProlongationDate.Time))
	}

	if th.RestrictionNote {
		x.Check("Sperrvermerk")
	} else {
		x.Uncheck("Sperrvermerk")
	}

	if form == FormGrading {
		x.Set("Ort_der_Arbeit", "1")
		x.Set("Datum", formatDate(th.Deadline()))
	}
	return x
}
