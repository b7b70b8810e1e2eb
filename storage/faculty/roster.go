// Package faculty reads students from the read-only faculty database.
package faculty

import (
	"context"
	"errors"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/thesispool/thesispool/core"
	"github.com/thesispool/thesispool/core/student"
)

// studentRecord mirrors the faculty `student` table.
type studentRecord struct {
	ID        int    `gorm:"column:id;primaryKey"`
	FirstName string `gorm:"column:firstname"`
	LastName  string `gorm:"column:lastname"`
	Program   string `gorm:"column:program"`
}

func (studentRecord) TableName() string { return "student" }

func (r studentRecord) toStudent() student.Student {
	return student.Student{
		ID:        r.ID,
		FirstName: core.CleanString(r.FirstName),
		LastName:  core.CleanString(r.LastName),
		Program:   core.CleanString(r.Program),
	}
}

type Roster struct {
	db *gorm.DB
}

var _ student.Roster = (*Roster)(nil) // interface compliance check

// Open connects to the faculty database. Queries are never logged.
func Open(conf *core.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(conf.Faculty.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "opening faculty db")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "getting faculty sql.DB")
	}
	sqlDB.SetMaxOpenConns(4)
	return db, nil
}

func NewRoster(db *gorm.DB) *Roster {
	return &Roster{db: db}
}

func findStudent(tx *gorm.DB, id int, rec *studentRecord) *gorm.DB {
	return tx.Select("id", "firstname", "lastname", "program").Where("id = ?", id).Take(rec)
}

func (r *Roster) FindStudent(ctx context.Context, id int) (student.Student, error) {
	var rec studentRecord
	if err := findStudent(r.db.WithContext(ctx), id, &rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return student.Student{}, student.ErrNotFound
		}
		return student.Student{}, pkgerrors.Wrap(err, "finding student")
	}
	return rec.toStudent(), nil
}
