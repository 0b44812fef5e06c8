package quiz

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/pavelanni/quizdeck/internal/model"
	"github.com/pavelanni/quizdeck/internal/store"
)

type reply struct {
	raw string
	err error
}

// fakeProvider returns queued JSON replies in order, repeating the last
// one, and a fixed text reply.
type fakeProvider struct {
	mu          sync.Mutex
	jsonReplies []reply
	text        string
	textErr     error
	jsonCalls   int
	textCalls   int
	prompts     []string
}

func (p *fakeProvider) GenerateJSON(_ context.Context, prompt string) (json.RawMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prompts = append(p.prompts, prompt)
	if len(p.jsonReplies) == 0 {
		return nil, fmt.Errorf("no reply queued")
	}
	i := min(p.jsonCalls, len(p.jsonReplies)-1)
	p.jsonCalls++
	r := p.jsonReplies[i]
	if r.err != nil {
		return nil, r.err
	}
	return json.RawMessage(r.raw), nil
}

func (p *fakeProvider) GenerateText(_ context.Context, prompt string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prompts = append(p.prompts, prompt)
	p.textCalls++
	return p.text, p.textErr
}

func (p *fakeProvider) calls() (jsonCalls, textCalls int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.jsonCalls, p.textCalls
}

func newTestService(t *testing.T, p *fakeProvider) (*Service, *store.Store) {
	t.Helper()
	st, err := store.New(store.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	svc := NewService(st, p, model.AppConfig{PublicURL: "https://quiz.example.com/"})
	return svc, st
}

// mcQuizReply builds a valid quiz-authoring response with n multiple choice questions.
func mcQuizReply(n int) string {
	items := make([]map[string]any, n)
	for i := range items {
		items[i] = map[string]any{
			"question":       fmt.Sprintf("Question %d?", i+1),
			"type":           "multiple_choice",
			"options":        []string{"A", "B", "C", "D"},
			"correct_answer": "A",
			"explanation":    "A is right.",
		}
	}
	b, _ := json.Marshal(map[string]any{"quiz_content": items, "teaching_insights": "Review the basics."})
	return string(b)
}

// gradedReply builds a grading response with one entry per verdict.
func gradedReply(verdicts ...bool) string {
	items := make([]map[string]any, len(verdicts))
	for i, v := range verdicts {
		items[i] = map[string]any{
			"question":      fmt.Sprintf("Question %d?", i+1),
			"studentAnswer": "A",
			"correctAnswer": "A",
			"isCorrect":     v,
			"explanation":   "because",
		}
	}
	b, _ := json.Marshal(map[string]any{"gradedAnswers": items})
	return string(b)
}

// seedQuiz stores a quiz with n multiple choice questions for teacherID.
func seedQuiz(t *testing.T, st *store.Store, teacherID string, n int) model.Quiz {
	t.Helper()
	q := model.Quiz{
		TeacherID:         teacherID,
		Title:             "Quiz on Fractions",
		Topic:             "Fractions",
		NumberOfQuestions: n,
		QuestionTypes:     []model.QuestionType{model.TypeMultipleChoice},
	}
	for i := range n {
		q.Questions = append(q.Questions, model.QuizQuestion{
			Question:      fmt.Sprintf("Question %d?", i+1),
			Type:          model.TypeMultipleChoice,
			Options:       []string{"A", "B", "C", "D"},
			CorrectAnswer: "A",
			Explanation:   "A is right.",
		})
	}
	if err := st.CreateQuiz(context.Background(), &q); err != nil {
		t.Fatalf("seedQuiz: %v", err)
	}
	return q
}

// seedSession launches a fresh quiz of n questions and returns the launch result.
func seedSession(t *testing.T, svc *Service, st *store.Store, teacherID string, n int) model.LaunchResult {
	t.Helper()
	q := seedQuiz(t, st, teacherID, n)
	res, err := svc.Launch(context.Background(), teacherID, q.ID, LaunchInput{ClassName: "Period 2"})
	if err != nil {
		t.Fatalf("seedSession: %v", err)
	}
	return res
}

func submission(sessionID, name string, n int) model.Submission {
	sub := model.Submission{StudentName: name, SessionID: sessionID}
	for i := range n {
		sub.Answers = append(sub.Answers, model.SubmissionAnswer{
			Question:      fmt.Sprintf("Question %d?", i+1),
			StudentAnswer: "A",
			CorrectAnswer: "A",
			Type:          model.TypeMultipleChoice,
		})
	}
	return sub
}
