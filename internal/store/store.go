package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/pavelanni/quizdeck/internal/model"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know.
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

type Store struct {
	db *sqlx.DB
}

// New opens the database and applies the schema. driver is "sqlite"
// (the default) or "postgres"; dsn is a file path for sqlite and a
// connection URL for postgres.
func New(driver, dsn string) (*Store, error) {
	switch driver {
	case "", DriverSQLite:
		driver = DriverSQLite
		dsn = sqliteDSN(dsn)
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if driver == DriverSQLite {
		// One writer; also keeps ":memory:" databases on a single connection.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func sqliteDSN(path string) string {
	if path == "" {
		path = "quizdeck.db"
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Driver returns the database driver name.
func (s *Store) Driver() string {
	return s.db.DriverName()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate creates missing tables and indexes. It is safe to run repeatedly.
func (s *Store) Migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS quizzes (
		id TEXT PRIMARY KEY,
		teacher_id TEXT NOT NULL,
		title TEXT NOT NULL,
		grade_level TEXT NOT NULL DEFAULT '',
		subject TEXT NOT NULL DEFAULT '',
		topic TEXT NOT NULL DEFAULT '',
		number_of_questions INTEGER NOT NULL,
		question_types TEXT NOT NULL,
		questions TEXT NOT NULL,
		teaching_insights TEXT NOT NULL DEFAULT '',
		custom_instructions TEXT,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS launched_sessions (
		id TEXT PRIMARY KEY,
		quiz_id TEXT NOT NULL REFERENCES quizzes(id),
		teacher_id TEXT NOT NULL,
		class_name TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		distribution_url TEXT NOT NULL,
		access_code TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		students_completed INTEGER NOT NULL DEFAULT 0,
		average_score INTEGER NOT NULL DEFAULT 0,
		smart_insights TEXT,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS student_results (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES launched_sessions(id),
		student_name TEXT NOT NULL,
		graded_answers TEXT NOT NULL,
		score_percentage DOUBLE PRECISION NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS store_metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_launched_sessions_teacher ON launched_sessions(teacher_id);
	CREATE INDEX IF NOT EXISTS idx_student_results_session ON student_results(session_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return s.SetMetadata(context.Background(), "schema_version", SchemaVersion)
}

type quizRow struct {
	ID                 string         `db:"id"`
	TeacherID          string         `db:"teacher_id"`
	Title              string         `db:"title"`
	GradeLevel         string         `db:"grade_level"`
	Subject            string         `db:"subject"`
	Topic              string         `db:"topic"`
	NumberOfQuestions  int            `db:"number_of_questions"`
	QuestionTypes      string         `db:"question_types"`
	Questions          string         `db:"questions"`
	TeachingInsights   string         `db:"teaching_insights"`
	CustomInstructions sql.NullString `db:"custom_instructions"`
	CreatedAt          time.Time      `db:"created_at"`
}

func (r quizRow) toModel() (model.Quiz, error) {
	q := model.Quiz{
		ID:                r.ID,
		TeacherID:         r.TeacherID,
		Title:             r.Title,
		GradeLevel:        r.GradeLevel,
		Subject:           r.Subject,
		Topic:             r.Topic,
		NumberOfQuestions: r.NumberOfQuestions,
		TeachingInsights:  r.TeachingInsights,
		CreatedAt:         r.CreatedAt,
	}
	if r.CustomInstructions.Valid {
		ci := r.CustomInstructions.String
		q.CustomInstructions = &ci
	}
	if err := json.Unmarshal([]byte(r.QuestionTypes), &q.QuestionTypes); err != nil {
		return q, fmt.Errorf("decode question types of quiz %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.Questions), &q.Questions); err != nil {
		return q, fmt.Errorf("decode questions of quiz %s: %w", r.ID, err)
	}
	return q, nil
}

type sessionRow struct {
	ID                string         `db:"id"`
	QuizID            string         `db:"quiz_id"`
	TeacherID         string         `db:"teacher_id"`
	ClassName         string         `db:"class_name"`
	Notes             string         `db:"notes"`
	DistributionURL   string         `db:"distribution_url"`
	AccessCode        sql.NullString `db:"access_code"`
	Status            string         `db:"status"`
	StudentsCompleted int            `db:"students_completed"`
	AverageScore      int            `db:"average_score"`
	SmartInsights     sql.NullString `db:"smart_insights"`
	CreatedAt         time.Time      `db:"created_at"`
}

func (r sessionRow) toModel() model.LaunchedSession {
	ls := model.LaunchedSession{
		ID:                r.ID,
		QuizID:            r.QuizID,
		TeacherID:         r.TeacherID,
		ClassName:         r.ClassName,
		Notes:             r.Notes,
		DistributionURL:   r.DistributionURL,
		AccessCode:        r.AccessCode.String,
		Status:            model.SessionStatus(r.Status),
		StudentsCompleted: r.StudentsCompleted,
		AverageScore:      r.AverageScore,
		CreatedAt:         r.CreatedAt,
	}
	if r.SmartInsights.Valid {
		si := r.SmartInsights.String
		ls.SmartInsights = &si
	}
	return ls
}

type resultRow struct {
	ID              string    `db:"id"`
	SessionID       string    `db:"session_id"`
	StudentName     string    `db:"student_name"`
	GradedAnswers   string    `db:"graded_answers"`
	ScorePercentage float64   `db:"score_percentage"`
	CreatedAt       time.Time `db:"created_at"`
}

func (r resultRow) toModel() (model.StudentResult, error) {
	res := model.StudentResult{
		ID:              r.ID,
		SessionID:       r.SessionID,
		StudentName:     r.StudentName,
		ScorePercentage: r.ScorePercentage,
		CreatedAt:       r.CreatedAt,
	}
	if err := json.Unmarshal([]byte(r.GradedAnswers), &res.GradedAnswers); err != nil {
		return res, fmt.Errorf("decode graded answers of result %s: %w", r.ID, err)
	}
	return res, nil
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func (s *Store) get(ctx context.Context, dest any, query string, args ...any) error {
	err := s.db.GetContext(ctx, dest, s.db.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// CreateQuiz stores a quiz. Empty ID and zero CreatedAt are filled in.
func (s *Store) CreateQuiz(ctx context.Context, q *model.Quiz) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now().UTC()
	}
	types, err := json.Marshal(q.QuestionTypes)
	if err != nil {
		return err
	}
	questions, err := json.Marshal(q.Questions)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.db.Rebind(
		`INSERT INTO quizzes (id, teacher_id, title, grade_level, subject, topic, number_of_questions,
		 question_types, questions, teaching_insights, custom_instructions, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		q.ID, q.TeacherID, q.Title, q.GradeLevel, q.Subject, q.Topic, q.NumberOfQuestions,
		string(types), string(questions), q.TeachingInsights, nullString(q.CustomInstructions), q.CreatedAt,
	)
	return err
}

// GetQuiz returns a quiz by ID.
func (s *Store) GetQuiz(ctx context.Context, id string) (model.Quiz, error) {
	var row quizRow
	if err := s.get(ctx, &row, `SELECT * FROM quizzes WHERE id = ?`, id); err != nil {
		return model.Quiz{}, err
	}
	return row.toModel()
}

// CreateSession stores a launched session.
func (s *Store) CreateSession(ctx context.Context, ls *model.LaunchedSession) error {
	if ls.ID == "" {
		ls.ID = uuid.NewString()
	}
	if ls.CreatedAt.IsZero() {
		ls.CreatedAt = time.Now().UTC()
	}
	if ls.Status == "" {
		ls.Status = model.StatusActive
	}
	var code *string
	if ls.AccessCode != "" {
		code = &ls.AccessCode
	}
	_, err := s.db.ExecContext(ctx, s.db.Rebind(
		`INSERT INTO launched_sessions (id, quiz_id, teacher_id, class_name, notes, distribution_url,
		 access_code, status, students_completed, average_score, smart_insights, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		ls.ID, ls.QuizID, ls.TeacherID, ls.ClassName, ls.Notes, ls.DistributionURL,
		nullString(code), ls.Status, ls.StudentsCompleted, ls.AverageScore, nullString(ls.SmartInsights), ls.CreatedAt,
	)
	return err
}

// GetSession returns a launched session by ID.
func (s *Store) GetSession(ctx context.Context, id string) (model.LaunchedSession, error) {
	var row sessionRow
	if err := s.get(ctx, &row, `SELECT * FROM launched_sessions WHERE id = ?`, id); err != nil {
		return model.LaunchedSession{}, err
	}
	return row.toModel(), nil
}

// GetLaunchedQuiz returns the student-facing view of a session joined with its quiz.
func (s *Store) GetLaunchedQuiz(ctx context.Context, sessionID string) (model.LaunchedQuiz, error) {
	var row struct {
		ID        string    `db:"id"`
		QuizID    string    `db:"quiz_id"`
		ClassName string    `db:"class_name"`
		Notes     string    `db:"notes"`
		CreatedAt time.Time `db:"created_at"`
		Title     string    `db:"title"`
		Questions string    `db:"questions"`
	}
	err := s.get(ctx, &row,
		`SELECT ls.id, ls.quiz_id, ls.class_name, ls.notes, ls.created_at, q.title, q.questions
		 FROM launched_sessions ls JOIN quizzes q ON q.id = ls.quiz_id
		 WHERE ls.id = ?`, sessionID)
	if err != nil {
		return model.LaunchedQuiz{}, err
	}
	lq := model.LaunchedQuiz{
		ID:        row.ID,
		QuizID:    row.QuizID,
		ClassName: row.ClassName,
		Notes:     row.Notes,
		CreatedAt: row.CreatedAt,
		Title:     row.Title,
	}
	if err := json.Unmarshal([]byte(row.Questions), &lq.Questions); err != nil {
		return lq, fmt.Errorf("decode questions of quiz %s: %w", row.QuizID, err)
	}
	return lq, nil
}

// ListSessions returns a teacher's sessions, newest first.
func (s *Store) ListSessions(ctx context.Context, teacherID string) ([]model.SessionSummary, error) {
	var rows []struct {
		ID                string    `db:"id"`
		QuizID            string    `db:"quiz_id"`
		ClassName         string    `db:"class_name"`
		LaunchDate        time.Time `db:"launch_date"`
		Title             string    `db:"title"`
		Status            string    `db:"status"`
		StudentsCompleted int       `db:"students_completed"`
		AverageScore      int       `db:"average_score"`
		DistributionURL   string    `db:"distribution_url"`
	}
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(
		`SELECT ls.id, ls.quiz_id, ls.class_name, ls.created_at AS launch_date, q.title, ls.status,
		 ls.students_completed, ls.average_score, ls.distribution_url
		 FROM launched_sessions ls JOIN quizzes q ON q.id = ls.quiz_id
		 WHERE ls.teacher_id = ?
		 ORDER BY ls.created_at DESC, ls.id`), teacherID)
	if err != nil {
		return nil, err
	}
	sessions := make([]model.SessionSummary, 0, len(rows))
	for _, r := range rows {
		sessions = append(sessions, model.SessionSummary{
			ID:                r.ID,
			QuizID:            r.QuizID,
			ClassName:         r.ClassName,
			LaunchDate:        r.LaunchDate,
			Title:             r.Title,
			Status:            model.SessionStatus(r.Status),
			StudentsCompleted: r.StudentsCompleted,
			AverageScore:      r.AverageScore,
			DistributionURL:   r.DistributionURL,
		})
	}
	return sessions, nil
}

// InsertResult stores a graded student attempt.
func (s *Store) InsertResult(ctx context.Context, r *model.StudentResult) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	answers, err := json.Marshal(r.GradedAnswers)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.db.Rebind(
		`INSERT INTO student_results (id, session_id, student_name, graded_answers, score_percentage, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`),
		r.ID, r.SessionID, r.StudentName, string(answers), r.ScorePercentage, r.CreatedAt,
	)
	return err
}

// ListResults returns a session's results in submission order.
func (s *Store) ListResults(ctx context.Context, sessionID string) ([]model.StudentResult, error) {
	var rows []resultRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(
		`SELECT * FROM student_results WHERE session_id = ? ORDER BY created_at, id`), sessionID)
	if err != nil {
		return nil, err
	}
	results := make([]model.StudentResult, 0, len(rows))
	for _, r := range rows {
		res, err := r.toModel()
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

// RecomputeStats sets students_completed and average_score of a session
// from its stored results in a single statement.
func (s *Store) RecomputeStats(ctx context.Context, sessionID string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(
		`UPDATE launched_sessions SET
		 students_completed = (SELECT COUNT(*) FROM student_results WHERE session_id = ?),
		 average_score = (SELECT COALESCE(ROUND(CAST(AVG(score_percentage) AS NUMERIC)), 0)
		                  FROM student_results WHERE session_id = ?)
		 WHERE id = ?`),
		sessionID, sessionID, sessionID,
	)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// UpdateSessionStatus sets the session status and, when insights is not nil,
// the stored smart insights.
func (s *Store) UpdateSessionStatus(ctx context.Context, sessionID string, status model.SessionStatus, insights *string) error {
	query := `UPDATE launched_sessions SET status = ? WHERE id = ?`
	args := []any{status, sessionID}
	if insights != nil {
		query = `UPDATE launched_sessions SET status = ?, smart_insights = ? WHERE id = ?`
		args = []any{status, *insights, sessionID}
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return err
	}
	return expectRow(res)
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
