package faculty

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/thesispool/thesispool/core/student"
)

func TestFindStudent_query(t *testing.T) {
	db, err := gorm.Open(postgres.New(postgres.Config{DSN: "host=localhost dbname=faculty"}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var rec studentRecord
		return findStudent(tx, 123456, &rec)
	})
	assert.Contains(t, sql, `"firstname","lastname"`)
	assert.Contains(t, sql, `FROM "student"`)
	assert.Contains(t, sql, "WHERE id = 123456")
}

func TestStudentRecord_toStudent(t *testing.T) {
	rec := studentRecord{ID: 123456, FirstName: " Alice ", LastName: "Doe  ", Program: "IB "}
	assert.Equal(t, student.Student{ID: 123456, FirstName: "Alice", LastName: "Doe", Program: "IB"}, rec.toStudent())
}
