package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/thesispool/thesispool/core"
	"github.com/thesispool/thesispool/core/student"
	"github.com/thesispool/thesispool/core/thesis"
)

const thesisTable = "thesis"

var thesisColumns = []string{
	"t.id", "t.surrogate_key", "t.title", "t.begin_date", "t.due_date", "t.external", "t.external_where",
	"t.student_email", "t.program", "t.status",
	"t.prolongation_date", "t.prolongation_reason", "t.prolongation_weeks",
	"t.handed_in_date", "t.restriction_note", "t.grade", "t.assessor_grade", "t.examination_date",
	"t.approval_status", "t.approval_date", "t.rejection_date", "t.reject_reason",
	"t.created_at", "t.updated_at",
	`st.id AS "student.id"`, `st.first_name AS "student.first_name"`,
	`st.last_name AS "student.last_name"`, `st.program AS "student.program"`,
	`sp.id AS "supervisor.id"`, `sp.first_name AS "supervisor.first_name"`,
	`sp.last_name AS "supervisor.last_name"`, `sp.initials AS "supervisor.initials"`,
	"a.id AS assessor_id", "a.first_name AS assessor_first_name",
	"a.last_name AS assessor_last_name", "a.email AS assessor_email",
	"c.id AS chairman_id", "c.first_name AS chairman_first_name",
	"c.last_name AS chairman_last_name", "c.initials AS chairman_initials",
}

type thesisRow struct {
	ID                 int                   `db:"id"`
	SurrogateKey       uuid.UUID             `db:"surrogate_key"`
	Title              string                `db:"title"`
	BeginDate          time.Time             `db:"begin_date"`
	DueDate            time.Time             `db:"due_date"`
	External           bool                  `db:"external"`
	ExternalWhere      string                `db:"external_where"`
	StudentEmail       string                `db:"student_email"`
	Program            string                `db:"program"`
	Status             thesis.Status         `db:"status"`
	ProlongationDate   null.Time             `db:"prolongation_date"`
	ProlongationReason null.String           `db:"prolongation_reason"`
	ProlongationWeeks  null.Int              `db:"prolongation_weeks"`
	HandedInDate       null.Time             `db:"handed_in_date"`
	RestrictionNote    bool                  `db:"restriction_note"`
	Grade              null.Float64          `db:"grade"`
	AssessorGrade      null.Float64          `db:"assessor_grade"`
	ExaminationDate    null.Time             `db:"examination_date"`
	ApprovalStatus     thesis.ApprovalStatus `db:"approval_status"`
	ApprovalDate       null.Time             `db:"approval_date"`
	RejectionDate      null.Time             `db:"rejection_date"`
	RejectReason       null.String           `db:"reject_reason"`
	CreatedAt          time.Time             `db:"created_at"`
	UpdatedAt          time.Time             `db:"updated_at"`

	Student    student.Student   `db:"student"`
	Supervisor thesis.Supervisor `db:"supervisor"`

	AssessorID        null.Int    `db:"assessor_id"`
	AssessorFirstName null.String `db:"assessor_first_name"`
	AssessorLastName  null.String `db:"assessor_last_name"`
	AssessorEmail     null.String `db:"assessor_email"`

	ChairmanID        null.String `db:"chairman_id"`
	ChairmanFirstName null.String `db:"chairman_first_name"`
	ChairmanLastName  null.String `db:"chairman_last_name"`
	ChairmanInitials  null.String `db:"chairman_initials"`
}

func dateOrNull(t null.Time) null.Time {
	if t.Valid {
		t.Time = core.Date(t.Time)
	}
	return t
}

func (r thesisRow) toThesis() thesis.Thesis {
	th := thesis.Thesis{
		ID:                 r.ID,
		SurrogateKey:       r.SurrogateKey,
		Title:              r.Title,
		BeginDate:          core.Date(r.BeginDate),
		DueDate:            core.Date(r.DueDate),
		External:           r.External,
		ExternalWhere:      r.ExternalWhere,
		StudentEmail:       r.StudentEmail,
		Program:            r.Program,
		Status:             r.Status,
		ProlongationDate:   dateOrNull(r.ProlongationDate),
		ProlongationReason: r.ProlongationReason,
		ProlongationWeeks:  r.ProlongationWeeks,
		HandedInDate:       dateOrNull(r.HandedInDate),
		RestrictionNote:    r.RestrictionNote,
		Grade:              r.Grade,
		AssessorGrade:      r.AssessorGrade,
		ExaminationDate:    dateOrNull(r.ExaminationDate),
		ApprovalStatus:     r.ApprovalStatus,
		ApprovalDate:       dateOrNull(r.ApprovalDate),
		RejectionDate:      dateOrNull(r.RejectionDate),
		RejectReason:       r.RejectReason,
		Student:            r.Student,
		Supervisor:         r.Supervisor,
		CreatedAt:          r.CreatedAt.UTC(),
		UpdatedAt:          r.UpdatedAt.UTC(),
	}
	if r.AssessorID.Valid {
		th.Assessor = &thesis.Assessor{
			ID:        r.AssessorID.Int,
			FirstName: r.AssessorFirstName.String,
			LastName:  r.AssessorLastName.String,
			Email:     r.AssessorEmail.String,
		}
	}
	if r.ChairmanID.Valid {
		th.Chairman = &thesis.ExcomChairman{
			ID:        r.ChairmanID.String,
			FirstName: r.ChairmanFirstName.String,
			LastName:  r.ChairmanLastName.String,
			Initials:  r.ChairmanInitials.String,
		}
	}
	return th
}

// thesisValues returns the writable thesis columns and their values.
func thesisValues(th thesis.Thesis) map[string]interface{} {
	var assessorID null.Int
	if th.Assessor != nil {
		assessorID = null.IntFrom(th.Assessor.ID)
	}
	var chairmanID null.String
	if th.Chairman != nil {
		chairmanID = null.StringFrom(th.Chairman.ID)
	}
	return map[string]interface{}{
		"title":               th.Title,
		"begin_date":          th.BeginDate,
		"due_date":            th.DueDate,
		"external":            th.External,
		"external_where":      th.ExternalWhere,
		"student_email":       th.StudentEmail,
		"program":             th.Program,
		"status":              string(th.Status),
		"prolongation_date":   th.ProlongationDate,
		"prolongation_reason": th.ProlongationReason,
		"prolongation_weeks":  th.ProlongationWeeks,
		"handed_in_date":      th.HandedInDate,
		"restriction_note":    th.RestrictionNote,
		"grade":               th.Grade,
		"assessor_grade":      th.AssessorGrade,
		"examination_date":    th.ExaminationDate,
		"approval_status":     string(th.ApprovalStatus),
		"approval_date":       th.ApprovalDate,
		"rejection_date":      th.RejectionDate,
		"reject_reason":       th.RejectReason,
		"student_id":          th.Student.ID,
		"supervisor_id":       th.Supervisor.ID,
		"assessor_id":         assessorID,
		"chairman_id":         chairmanID,
		"updated_at":          th.UpdatedAt.UTC(),
	}
}

type thesisRepository struct {
	repository
}

var _ thesis.Repository = (*thesisRepository)(nil) // interface compliance check

func NewThesisRepository(db *sqlx.DB) *thesisRepository {
	return &thesisRepository{repository{db: db}}
}

func (repo thesisRepository) selectTheses() sq.SelectBuilder {
	return psql.Select(thesisColumns...).
		From(thesisTable + " t").
		Join("student st ON st.id = t.student_id").
		Join("supervisor sp ON sp.id = t.supervisor_id").
		LeftJoin("assessor a ON a.id = t.assessor_id").
		LeftJoin("excom_chairman c ON c.id = t.chairman_id")
}

func (repo thesisRepository) getBy(ctx context.Context, exec sqlx.ExtContext, pred sq.Sqlizer) (thesis.Thesis, error) {
	query, args, err := repo.selectTheses().Where(pred).ToSql()
	if err != nil {
		return thesis.Thesis{}, errors.Wrap(err, "building query")
	}
	var row thesisRow
	if err = sqlx.GetContext(ctx, exec, &row, query, args...); err != nil {
		return thesis.Thesis{}, trapNoRowsErr(err, thesis.ErrNotFound, "getting thesis")
	}
	return row.toThesis(), nil
}

func (repo thesisRepository) CreateThesis(ctx context.Context, th thesis.Thesis, exec ...core.DBExecutor) (thesis.Thesis, error) {
	exe := repo.getExec(exec)
	vals := thesisValues(th)
	vals["surrogate_key"] = th.SurrogateKey
	vals["created_at"] = th.CreatedAt.UTC()

	query, args, err := psql.Insert(thesisTable).SetMap(vals).Suffix("RETURNING id").ToSql()
	if err != nil {
		return thesis.Thesis{}, errors.Wrap(err, "building query")
	}
	var id int
	if err = exe.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
		return thesis.Thesis{}, errors.Wrap(err, "inserting thesis")
	}
	return repo.getBy(ctx, exe, sq.Eq{"t.id": id})
}

func (repo thesisRepository) GetThesis(ctx context.Context, key uuid.UUID, exec ...core.DBExecutor) (thesis.Thesis, error) {
	return repo.getBy(ctx, repo.getExec(exec), sq.Eq{"t.surrogate_key": key})
}

func (repo thesisRepository) QueryTheses(ctx context.Context, filter thesis.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]thesis.Thesis, error) {
	qb := repo.selectTheses()
	if filter.SupervisorID != "" {
		qb = qb.Where(sq.Eq{"t.supervisor_id": filter.SupervisorID})
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		qb = qb.Where(sq.Eq{"t.status": statuses})
	}
	if filter.NotApproved {
		qb = qb.Where(sq.NotEq{"t.approval_status": string(thesis.ApprovalApproved)})
	}
	qb = qb.OrderBy(append(orderBy(ordering, "t."), "t.id ASC")...)

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []thesisRow
	if err = sqlx.SelectContext(ctx, repo.getExec(exec), &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying theses")
	}
	theses := make([]thesis.Thesis, 0, len(rows))
	for _, r := range rows {
		theses = append(theses, r.toThesis())
	}
	return theses, nil
}

func (repo thesisRepository) UpdateThesis(ctx context.Context, th thesis.Thesis, exec ...core.DBExecutor) (thesis.Thesis, error) {
	exe := repo.getExec(exec)
	query, args, err := psql.Update(thesisTable).SetMap(thesisValues(th)).Where(sq.Eq{"id": th.ID}).ToSql()
	if err != nil {
		return thesis.Thesis{}, errors.Wrap(err, "building query")
	}
	res, err := exe.ExecContext(ctx, query, args...)
	if err != nil {
		return thesis.Thesis{}, errors.Wrap(err, "updating thesis")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return thesis.Thesis{}, thesis.ErrNotFound
	}
	return repo.getBy(ctx, exe, sq.Eq{"t.id": th.ID})
}

func (repo thesisRepository) deleteWhere(ctx context.Context, exec []core.DBExecutor, pred sq.Sqlizer) (int, error) {
	query, args, err := psql.Delete(thesisTable).Where(pred).ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	res, err := repo.getExec(exec).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting theses")
	}
	n, err := res.RowsAffected()
	return int(n), errors.Wrap(err, "counting deleted theses")
}

func (repo thesisRepository) DeleteThesis(ctx context.Context, id int, exec ...core.DBExecutor) error {
	n, err := repo.deleteWhere(ctx, exec, sq.Eq{"id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return thesis.ErrNotFound
	}
	return nil
}

func (repo thesisRepository) DeleteThesesBySupervisor(ctx context.Context, supervisorID string, exec ...core.DBExecutor) (int, error) {
	return repo.deleteWhere(ctx, exec, sq.Eq{"supervisor_id": supervisorID})
}

func (repo thesisRepository) DeleteThesesByStudent(ctx context.Context, studentID int, exec ...core.DBExecutor) (int, error) {
	return repo.deleteWhere(ctx, exec, sq.Eq{"student_id": studentID})
}

func (repo thesisRepository) ClearAssessor(ctx context.Context, assessorID int, exec ...core.DBExecutor) (int, error) {
	query, args, err := psql.Update(thesisTable).
		Set("assessor_id", nil).
		Where(sq.Eq{"assessor_id": assessorID}).
		ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	res, err := repo.getExec(exec).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.Wrap(err, "clearing assessor")
	}
	n, err := res.RowsAffected()
	return int(n), errors.Wrap(err, "counting updated theses")
}
