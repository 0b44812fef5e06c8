package model

import (
	"context"
	"time"
)

// QuestionType is the type tag of a quiz question.
type QuestionType string

const (
	TypeMultipleChoice QuestionType = "multiple_choice"
	TypeShortAnswer    QuestionType = "short_answer"
	TypeTrueFalse      QuestionType = "true_false"
	TypeFillInBlank    QuestionType = "fill_in_the_blank"
)

var validQuestionTypes = map[QuestionType]bool{
	TypeMultipleChoice: true,
	TypeShortAnswer:    true,
	TypeTrueFalse:      true,
	TypeFillInBlank:    true,
}

// IsValid reports whether t is one of the known question types.
func (t QuestionType) IsValid() bool {
	return validQuestionTypes[t]
}

// MultipleChoiceOptions is the number of options a multiple choice question carries.
const MultipleChoiceOptions = 4

// SessionStatus represents the status of a launched session.
type SessionStatus string

const (
	StatusActive SessionStatus = "active"
	StatusClosed SessionStatus = "closed"
)

// QuizQuestion is one generated question.
type QuizQuestion struct {
	Question      string       `json:"question"`
	Type          QuestionType `json:"type"`
	Options       []string     `json:"options,omitempty"`
	CorrectAnswer string       `json:"correct_answer"`
	Explanation   string       `json:"explanation"`
	Hint          string       `json:"hint,omitempty"`
}

// Quiz is a generated, persisted set of questions owned by a teacher.
type Quiz struct {
	ID                 string         `json:"id"`
	TeacherID          string         `json:"user_id"`
	Title              string         `json:"title"`
	GradeLevel         string         `json:"grade_level"`
	Subject            string         `json:"subject"`
	Topic              string         `json:"topic"`
	NumberOfQuestions  int            `json:"number_of_questions"`
	QuestionTypes      []QuestionType `json:"question_types"`
	Questions          []QuizQuestion `json:"quiz_content"`
	TeachingInsights   string         `json:"teaching_insights"`
	CustomInstructions *string        `json:"custom_instructions"`
	CreatedAt          time.Time      `json:"created_at"`
}

// LaunchedSession is one deployment of a quiz to a class.
type LaunchedSession struct {
	ID                string        `json:"id"`
	QuizID            string        `json:"quiz_id"`
	TeacherID         string        `json:"user_id"`
	ClassName         string        `json:"class_name"`
	Notes             string        `json:"notes"`
	DistributionURL   string        `json:"deployment_url"`
	AccessCode        string        `json:"access_code"`
	Status            SessionStatus `json:"status"`
	StudentsCompleted int           `json:"students_completed"`
	AverageScore      int           `json:"average_score"`
	SmartInsights     *string       `json:"smart_insights"`
	CreatedAt         time.Time     `json:"created_at"`
}

// GradedAnswer is one student answer with the grading verdict.
type GradedAnswer struct {
	Question      string `json:"question"`
	StudentAnswer string `json:"studentAnswer"`
	CorrectAnswer string `json:"correctAnswer"`
	IsCorrect     bool   `json:"isCorrect"`
	Explanation   string `json:"explanation"`
}

// StudentResult is one student's graded attempt.
type StudentResult struct {
	ID              string         `json:"id"`
	SessionID       string         `json:"deployment_id"`
	StudentName     string         `json:"student_name"`
	GradedAnswers   []GradedAnswer `json:"graded_answers"`
	ScorePercentage float64        `json:"score_percentage"`
	CreatedAt       time.Time      `json:"created_at"`
}

// CorrectCount returns how many graded answers are correct.
func (r StudentResult) CorrectCount() int {
	n := 0
	for _, a := range r.GradedAnswers {
		if a.IsCorrect {
			n++
		}
	}
	return n
}

// ScorePercentage returns 100 * correct / total, or 0 when there are no answers.
func ScorePercentage(answers []GradedAnswer) float64 {
	if len(answers) == 0 {
		return 0
	}
	correct := 0
	for _, a := range answers {
		if a.IsCorrect {
			correct++
		}
	}
	return float64(correct) / float64(len(answers)) * 100
}

// SubmissionAnswer is a single answer submitted by a student.
type SubmissionAnswer struct {
	Question      string       `json:"question"`
	StudentAnswer string       `json:"studentAnswer"`
	CorrectAnswer string       `json:"correctAnswer"`
	Type          QuestionType `json:"type"`
}

// Submission is a student's answer set for a session.
type Submission struct {
	StudentName string             `json:"studentName" validate:"required"`
	SessionID   string             `json:"sessionId" validate:"required"`
	Answers     []SubmissionAnswer `json:"answers" validate:"required,min=1"`
}

// LaunchResult is returned to the teacher after launching a quiz.
type LaunchResult struct {
	SessionID       string `json:"launchId"`
	DistributionURL string `json:"deploymentLink"`
	QRImage         string `json:"qrCodeData"`
	AccessCode      string `json:"accessCode"`
}

// LaunchedQuiz is what a student sees when opening a session link.
type LaunchedQuiz struct {
	ID        string         `json:"id"`
	QuizID    string         `json:"quiz_id"`
	ClassName string         `json:"class_name"`
	Notes     string         `json:"notes"`
	CreatedAt time.Time      `json:"created_at"`
	Title     string         `json:"title"`
	Questions []QuizQuestion `json:"quiz_content"`
}

// SessionSummary is one row of a teacher's session list.
type SessionSummary struct {
	ID                string        `json:"id"`
	QuizID            string        `json:"quiz_id"`
	ClassName         string        `json:"class_name"`
	LaunchDate        time.Time     `json:"launch_date"`
	Title             string        `json:"title"`
	Status            SessionStatus `json:"status"`
	StudentsCompleted int           `json:"students_completed"`
	AverageScore      int           `json:"average_score"`
	DistributionURL   string        `json:"deployment_url"`
}

// StudentOverview is a per-student row of a session overview.
type StudentOverview struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Score     float64 `json:"score"`
	Correct   int     `json:"correct"`
	Incorrect int     `json:"incorrect"`
	Status    string  `json:"status"`
}

// SessionOverview is the aggregated report of a launched session.
type SessionOverview struct {
	ID             string            `json:"id"`
	QuizID         string            `json:"quizId"`
	Title          string            `json:"title"`
	ClassName      string            `json:"className"`
	LaunchDate     time.Time         `json:"launchDate"`
	StudentsTaken  int               `json:"studentsTaken"`
	AverageScore   int               `json:"averageScore"`
	Status         SessionStatus     `json:"status"`
	LaunchURL      string            `json:"launchUrl"`
	QRCodeData     string            `json:"qrCodeData,omitempty"`
	AccessCode     string            `json:"accessCode"`
	TotalQuestions int               `json:"totalQuestions"`
	SmartInsights  *string           `json:"smartInsights"`
	Students       []StudentOverview `json:"students"`
}

// StatusChange is the outcome of a session status update.
type StatusChange struct {
	Status        SessionStatus `json:"status"`
	SmartInsights *string       `json:"smartInsights"`
}

// AppConfig holds runtime parameters set via CLI flags.
type AppConfig struct {
	PublicURL     string // base of distribution links, e.g. "https://app.example.com"
	PromptVariant string // grading prompt variant (strict, standard, lenient)
	GradeAttempts int    // provider attempts per grading request
	JWTSecret     string
}

type teacherCtxKey struct{}

// ContextWithTeacher stores the authenticated teacher id in the request context.
func ContextWithTeacher(ctx context.Context, teacherID string) context.Context {
	return context.WithValue(ctx, teacherCtxKey{}, teacherID)
}

// TeacherFromContext retrieves the authenticated teacher id, or "".
func TeacherFromContext(ctx context.Context) string {
	id, _ := ctx.Value(teacherCtxKey{}).(string)
	return id
}
