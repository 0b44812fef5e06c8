package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pavelanni/quizdeck/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func insertTestQuiz(t *testing.T, s *Store, teacherID, title string) model.Quiz {
	t.Helper()
	q := model.Quiz{
		TeacherID:         teacherID,
		Title:             title,
		GradeLevel:        "5th grade",
		Subject:           "Science",
		Topic:             "Plants",
		NumberOfQuestions: 2,
		QuestionTypes:     []model.QuestionType{model.TypeMultipleChoice, model.TypeTrueFalse},
		Questions: []model.QuizQuestion{
			{Question: "What do plants need?", Type: model.TypeMultipleChoice, Options: []string{"Light", "Sand", "Salt", "Iron"}, CorrectAnswer: "Light", Explanation: "Photosynthesis needs light."},
			{Question: "Roots absorb water.", Type: model.TypeTrueFalse, CorrectAnswer: "True", Explanation: "They do."},
		},
		TeachingInsights: "Watch for confusion between roots and leaves.",
	}
	if err := s.CreateQuiz(context.Background(), &q); err != nil {
		t.Fatalf("insertTestQuiz: %v", err)
	}
	return q
}

func insertTestSession(t *testing.T, s *Store, q model.Quiz, className, code string) model.LaunchedSession {
	t.Helper()
	ls := model.LaunchedSession{
		QuizID:          q.ID,
		TeacherID:       q.TeacherID,
		ClassName:       className,
		DistributionURL: "https://quiz.example.com/quiz/x",
		AccessCode:      code,
	}
	if err := s.CreateSession(context.Background(), &ls); err != nil {
		t.Fatalf("insertTestSession: %v", err)
	}
	return ls
}

func insertTestResult(t *testing.T, s *Store, sessionID, name string, correct, total int) {
	t.Helper()
	answers := make([]model.GradedAnswer, total)
	for i := range answers {
		answers[i] = model.GradedAnswer{Question: fmt.Sprintf("q%d", i), IsCorrect: i < correct}
	}
	r := model.StudentResult{
		SessionID:       sessionID,
		StudentName:     name,
		GradedAnswers:   answers,
		ScorePercentage: model.ScorePercentage(answers),
	}
	if err := s.InsertResult(context.Background(), &r); err != nil {
		t.Fatalf("insertTestResult: %v", err)
	}
}

func TestNewUnsupportedDriver(t *testing.T) {
	if _, err := New("oracle", "x"); err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	insertTestQuiz(t, s, "teacher-1", "Plants")
	if err := s.Migrate(); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	if err := s.Migrate(); err != nil {
		t.Fatalf("third Migrate: %v", err)
	}
}

func TestMetadata(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	version, err := s.GetMetadata(ctx, "schema_version")
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if version != SchemaVersion {
		t.Errorf("schema_version = %q, want %q", version, SchemaVersion)
	}

	missing, err := s.GetMetadata(ctx, "nope")
	if err != nil || missing != "" {
		t.Errorf("missing key = %q, %v", missing, err)
	}

	if err := s.SetMetadata(ctx, "owner", "a"); err != nil {
		t.Fatalf("SetMetadata: %v", err)
	}
	if err := s.SetMetadata(ctx, "owner", "b"); err != nil {
		t.Fatalf("SetMetadata overwrite: %v", err)
	}
	if got, _ := s.GetMetadata(ctx, "owner"); got != "b" {
		t.Errorf("owner = %q, want b", got)
	}
}

func TestQuizCRUD(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	q := insertTestQuiz(t, s, "teacher-1", "Plants")
	if q.ID == "" {
		t.Fatal("CreateQuiz did not assign an ID")
	}

	got, err := s.GetQuiz(ctx, q.ID)
	if err != nil {
		t.Fatalf("GetQuiz: %v", err)
	}
	if got.Title != "Plants" || got.TeacherID != "teacher-1" {
		t.Errorf("got title %q teacher %q", got.Title, got.TeacherID)
	}
	if len(got.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(got.Questions))
	}
	if len(got.Questions[0].Options) != 4 {
		t.Errorf("expected 4 options, got %v", got.Questions[0].Options)
	}
	if got.Questions[1].CorrectAnswer != "True" {
		t.Errorf("expected True, got %q", got.Questions[1].CorrectAnswer)
	}
	if len(got.QuestionTypes) != 2 || got.QuestionTypes[1] != model.TypeTrueFalse {
		t.Errorf("question types = %v", got.QuestionTypes)
	}
	if got.CustomInstructions != nil {
		t.Errorf("expected nil custom instructions, got %q", *got.CustomInstructions)
	}

	// Custom instructions round-trip.
	ci := "Use farm examples"
	q2 := model.Quiz{TeacherID: "teacher-1", Title: "Farm", NumberOfQuestions: 0, CustomInstructions: &ci}
	if err := s.CreateQuiz(ctx, &q2); err != nil {
		t.Fatalf("CreateQuiz: %v", err)
	}
	got2, err := s.GetQuiz(ctx, q2.ID)
	if err != nil {
		t.Fatalf("GetQuiz: %v", err)
	}
	if got2.CustomInstructions == nil || *got2.CustomInstructions != ci {
		t.Errorf("custom instructions = %v", got2.CustomInstructions)
	}

	// Not found.
	if _, err := s.GetQuiz(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	q := insertTestQuiz(t, s, "teacher-1", "Plants")

	ls := insertTestSession(t, s, q, "Period 3", "123456")
	got, err := s.GetSession(ctx, ls.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Status != model.StatusActive {
		t.Errorf("expected active, got %q", got.Status)
	}
	if got.AccessCode != "123456" {
		t.Errorf("expected access code 123456, got %q", got.AccessCode)
	}
	if got.StudentsCompleted != 0 || got.AverageScore != 0 {
		t.Errorf("expected zero stats, got %d/%d", got.StudentsCompleted, got.AverageScore)
	}
	if got.SmartInsights != nil {
		t.Error("expected nil smart insights")
	}

	// Status change without insights keeps insights null.
	if err := s.UpdateSessionStatus(ctx, ls.ID, model.StatusClosed, nil); err != nil {
		t.Fatalf("UpdateSessionStatus: %v", err)
	}
	got, _ = s.GetSession(ctx, ls.ID)
	if got.Status != model.StatusClosed || got.SmartInsights != nil {
		t.Errorf("after close: status %q insights %v", got.Status, got.SmartInsights)
	}

	// Status change with insights.
	insights := "Class did well."
	if err := s.UpdateSessionStatus(ctx, ls.ID, model.StatusClosed, &insights); err != nil {
		t.Fatalf("UpdateSessionStatus: %v", err)
	}
	got, _ = s.GetSession(ctx, ls.ID)
	if got.SmartInsights == nil || *got.SmartInsights != insights {
		t.Errorf("smart insights = %v", got.SmartInsights)
	}

	if err := s.UpdateSessionStatus(ctx, "missing", model.StatusClosed, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetSession(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionWithoutAccessCode(t *testing.T) {
	s := newTestStore(t)
	q := insertTestQuiz(t, s, "teacher-1", "Plants")
	ls := insertTestSession(t, s, q, "Period 1", "")

	got, err := s.GetSession(context.Background(), ls.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.AccessCode != "" {
		t.Errorf("expected empty access code, got %q", got.AccessCode)
	}
}

func TestGetLaunchedQuiz(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	q := insertTestQuiz(t, s, "teacher-1", "Plants")
	ls := insertTestSession(t, s, q, "Period 3", "123456")

	lq, err := s.GetLaunchedQuiz(ctx, ls.ID)
	if err != nil {
		t.Fatalf("GetLaunchedQuiz: %v", err)
	}
	if lq.ID != ls.ID || lq.QuizID != q.ID {
		t.Errorf("ids = %q/%q", lq.ID, lq.QuizID)
	}
	if lq.Title != "Plants" || lq.ClassName != "Period 3" {
		t.Errorf("title %q class %q", lq.Title, lq.ClassName)
	}
	if len(lq.Questions) != 2 {
		t.Errorf("expected 2 questions, got %d", len(lq.Questions))
	}

	if _, err := s.GetLaunchedQuiz(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListSessions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	q := insertTestQuiz(t, s, "teacher-1", "Plants")
	other := insertTestQuiz(t, s, "teacher-2", "Rocks")

	older := model.LaunchedSession{QuizID: q.ID, TeacherID: "teacher-1", ClassName: "A", CreatedAt: time.Now().UTC().Add(-time.Hour)}
	newer := model.LaunchedSession{QuizID: q.ID, TeacherID: "teacher-1", ClassName: "B", CreatedAt: time.Now().UTC()}
	for _, ls := range []*model.LaunchedSession{&older, &newer} {
		if err := s.CreateSession(ctx, ls); err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
	}
	insertTestSession(t, s, other, "C", "")

	list, err := s.ListSessions(ctx, "teacher-1")
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(list))
	}
	if list[0].ClassName != "B" || list[1].ClassName != "A" {
		t.Errorf("expected newest first, got %q, %q", list[0].ClassName, list[1].ClassName)
	}
	if list[0].Title != "Plants" {
		t.Errorf("expected joined title, got %q", list[0].Title)
	}

	empty, err := s.ListSessions(ctx, "nobody")
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("expected empty non-nil list, got %v", empty)
	}
}

func TestRecomputeStats(t *testing.T) {
	tests := []struct {
		name      string
		scores    [][2]int // correct, total
		wantCount int
		wantAvg   int
	}{
		{"no results", nil, 0, 0},
		{"single perfect", [][2]int{{2, 2}}, 1, 100},
		{"rounds to nearest", [][2]int{{3, 3}, {3, 3}, {0, 3}}, 3, 67},
		{"half rounds up", [][2]int{{1, 4}, {0, 4}}, 2, 13},
		{"zero answers score zero", [][2]int{{0, 0}, {1, 1}}, 2, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := newTestStore(t)
			q := insertTestQuiz(t, s, "teacher-1", "Plants")
			ls := insertTestSession(t, s, q, "A", "111111")

			for i, sc := range tt.scores {
				insertTestResult(t, s, ls.ID, fmt.Sprintf("student-%d", i), sc[0], sc[1])
			}
			if err := s.RecomputeStats(ctx, ls.ID); err != nil {
				t.Fatalf("RecomputeStats: %v", err)
			}
			got, err := s.GetSession(ctx, ls.ID)
			if err != nil {
				t.Fatalf("GetSession: %v", err)
			}
			if got.StudentsCompleted != tt.wantCount {
				t.Errorf("students_completed = %d, want %d", got.StudentsCompleted, tt.wantCount)
			}
			if got.AverageScore != tt.wantAvg {
				t.Errorf("average_score = %d, want %d", got.AverageScore, tt.wantAvg)
			}
		})
	}
}

func TestRecomputeStatsMissingSession(t *testing.T) {
	s := newTestStore(t)
	if err := s.RecomputeStats(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestConcurrentResultsAndRecompute(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	q := insertTestQuiz(t, s, "teacher-1", "Plants")
	ls := insertTestSession(t, s, q, "A", "111111")

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r := model.StudentResult{
				SessionID:       ls.ID,
				StudentName:     fmt.Sprintf("student-%d", i),
				GradedAnswers:   []model.GradedAnswer{{Question: "q", IsCorrect: i%2 == 0}},
				ScorePercentage: float64(100 * ((i + 1) % 2)),
			}
			if err := s.InsertResult(ctx, &r); err != nil {
				errs <- err
				return
			}
			if err := s.RecomputeStats(ctx, ls.ID); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent write: %v", err)
	}

	got, err := s.GetSession(ctx, ls.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.StudentsCompleted != n {
		t.Errorf("students_completed = %d, want %d", got.StudentsCompleted, n)
	}
	if got.AverageScore != 50 {
		t.Errorf("average_score = %d, want 50", got.AverageScore)
	}
}

func TestListResults(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	q := insertTestQuiz(t, s, "teacher-1", "Plants")
	ls := insertTestSession(t, s, q, "A", "111111")

	results, err := s.ListResults(ctx, ls.ID)
	if err != nil {
		t.Fatalf("ListResults: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}

	insertTestResult(t, s, ls.ID, "Ana", 2, 2)
	insertTestResult(t, s, ls.ID, "Ana", 1, 2) // same name is a separate attempt

	results, err = s.ListResults(ctx, ls.ID)
	if err != nil {
		t.Fatalf("ListResults: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ScorePercentage != 100 || results[1].ScorePercentage != 50 {
		t.Errorf("scores = %v, %v", results[0].ScorePercentage, results[1].ScorePercentage)
	}
	if len(results[1].GradedAnswers) != 2 || results[1].CorrectCount() != 1 {
		t.Errorf("graded answers = %+v", results[1].GradedAnswers)
	}
}

func TestLoadSessionBundle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	q := insertTestQuiz(t, s, "teacher-1", "Plants")
	ls := insertTestSession(t, s, q, "A", "111111")
	insertTestResult(t, s, ls.ID, "Ana", 1, 2)

	b, err := s.LoadSessionBundle(ctx, ls.ID)
	if err != nil {
		t.Fatalf("LoadSessionBundle: %v", err)
	}
	if b.Session.ID != ls.ID || b.Quiz.ID != q.ID {
		t.Errorf("bundle ids = %q/%q", b.Session.ID, b.Quiz.ID)
	}
	if len(b.Results) != 1 || b.Results[0].StudentName != "Ana" {
		t.Errorf("bundle results = %+v", b.Results)
	}

	if _, err := s.LoadSessionBundle(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
