package thesis

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

const (
	minGrade    = 1.0
	maxPassing  = 4.0
	failedGrade = 5.0
	epsilon     = 1e-9
)

var errInvalidGrade = errors.New("grade must be between 1.0 and 4.0 with one decimal place, or 5.0")

// RoundGrade rounds g to one decimal place.
func RoundGrade(g float64) float64 {
	return math.Round(g*10) / 10
}

// ValidGrade reports whether g is a grade of the german scale:
// one decimal place, within [1.0, 4.0], or exactly 5.0.
func ValidGrade(g float64) bool {
	if math.IsNaN(g) || math.IsInf(g, 0) {
		return false
	}
	if math.Abs(g*10-math.Round(g*10)) > epsilon*10 {
		return false
	}
	r := RoundGrade(g)
	return (r >= minGrade-epsilon && r <= maxPassing+epsilon) || math.Abs(r-failedGrade) < epsilon
}

// FormatGrade formats g with one decimal and a comma separator, e.g. "1,3".
func FormatGrade(g float64) string {
	return strings.Replace(strconv.FormatFloat(g, 'f', 1, 64), ".", ",", 1)
}

// OverallGrade is the mean of the supervisor and assessor grades, or the grade alone.
func (t *Thesis) OverallGrade() (float64, bool) {
	if !t.Grade.Valid {
		return 0, false
	}
	if !t.AssessorGrade.Valid {
		return t.Grade.Float64, true
	}
	return (t.Grade.Float64 + t.AssessorGrade.Float64) / 2, true
}
