package prompts

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/quizdeck/internal/model"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var (
	submissionTagRegex      = regexp.MustCompile(`(?i)</?\s*submission\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

const maxAnswerRunes = 2000

// PromptVariant represents a grading prompt variant.
type PromptVariant string

const (
	// PromptStrict only accepts answers that match the canonical answer in substance and detail.
	PromptStrict PromptVariant = "strict"
	// PromptStandard is the default grading variant.
	PromptStandard PromptVariant = "standard"
	// PromptLenient accepts answers that show the right idea despite imprecise wording.
	PromptLenient PromptVariant = "lenient"
)

var validVariants = map[PromptVariant]bool{
	PromptStrict:   true,
	PromptStandard: true,
	PromptLenient:  true,
}

var (
	loadOnce       sync.Once
	loadErr        error
	quizTemplate   *template.Template
	insightsTmpl   *template.Template
	gradeTemplates map[PromptVariant]*template.Template
)

// IsValidVariant checks if a prompt variant name is valid.
func IsValidVariant(v string) bool {
	return validVariants[PromptVariant(v)]
}

// QuizData holds template data for the quiz authoring prompt.
type QuizData struct {
	Subject            string
	Topic              string
	GradeLevel         string
	NumberOfQuestions  int
	Types              []model.QuestionType
	IncludeHints       bool
	CustomInstructions string
}

// HasType reports whether t is among the requested types.
func (d QuizData) HasType(t string) bool {
	for _, have := range d.Types {
		if string(have) == t {
			return true
		}
	}
	return false
}

// TypesJSON renders the requested types as a JSON array.
func (d QuizData) TypesJSON() string {
	b, _ := json.Marshal(d.Types)
	return string(b)
}

// MissedQuestion is a question and how many students got it wrong.
type MissedQuestion struct {
	Question    string
	TimesMissed int
}

// InsightsData holds template data for the teaching-insights prompt.
type InsightsData struct {
	TotalStudents      int
	AverageScore       int
	TopStruggle        string
	MissedQuestions    []MissedQuestion
	TopStudents        []string
	MiddleTier         []string
	StrugglingStudents []string
}

type gradeData struct {
	Submission string
}

func load() error {
	loadOnce.Do(func() {
		funcs := template.FuncMap{"join": strings.Join}
		parse := func(name string) (*template.Template, error) {
			content, err := templateFS.ReadFile("templates/" + name)
			if err != nil {
				return nil, fmt.Errorf("read prompt file %s: %w", name, err)
			}
			tmpl, err := template.New(name).Funcs(funcs).Parse(string(content))
			if err != nil {
				return nil, fmt.Errorf("parse prompt template %s: %w", name, err)
			}
			return tmpl, nil
		}

		if quizTemplate, loadErr = parse("quiz.tmpl"); loadErr != nil {
			return
		}
		if insightsTmpl, loadErr = parse("insights.tmpl"); loadErr != nil {
			return
		}
		gradeTemplates = make(map[PromptVariant]*template.Template)
		for _, v := range []PromptVariant{PromptStrict, PromptStandard, PromptLenient} {
			tmpl, err := parse("grade_" + string(v) + ".tmpl")
			if err != nil {
				loadErr = err
				return
			}
			gradeTemplates[v] = tmpl
		}
	})
	return loadErr
}

// BuildQuizPrompt builds the quiz authoring prompt.
func BuildQuizPrompt(data QuizData) (string, error) {
	if err := load(); err != nil {
		return "", err
	}
	if len(data.Types) == 0 {
		return "", errors.New("at least one question type is required")
	}
	data.CustomInstructions = sanitize(data.CustomInstructions)
	return execute(quizTemplate, data)
}

// BuildGradePrompt builds the grading prompt for a submission using the given variant.
func BuildGradePrompt(variant PromptVariant, sub model.Submission) (string, error) {
	if err := load(); err != nil {
		return "", err
	}
	tmpl, ok := gradeTemplates[variant]
	if !ok {
		return "", errors.New("invalid prompt variant: " + string(variant))
	}

	clean := model.Submission{
		StudentName: sanitize(sub.StudentName),
		SessionID:   sub.SessionID,
		Answers:     make([]model.SubmissionAnswer, len(sub.Answers)),
	}
	for i, a := range sub.Answers {
		answer := sanitize(a.StudentAnswer)
		if answer == "" {
			answer = "[No answer provided]"
		}
		clean.Answers[i] = model.SubmissionAnswer{
			Question:      a.Question,
			StudentAnswer: answer,
			CorrectAnswer: a.CorrectAnswer,
			Type:          a.Type,
		}
	}
	b, err := json.MarshalIndent(clean, "", "  ")
	if err != nil {
		return "", err
	}
	return execute(tmpl, gradeData{Submission: string(b)})
}

// BuildInsightsPrompt builds the teaching-insights prompt.
func BuildInsightsPrompt(data InsightsData) (string, error) {
	if err := load(); err != nil {
		return "", err
	}
	return execute(insightsTmpl, data)
}

func execute(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

func sanitize(s string) string {
	s = submissionTagRegex.ReplaceAllString(s, "")
	s = systemInstructionsRegex.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)

	if utf8.RuneCountInString(s) > maxAnswerRunes {
		runes := []rune(s)
		s = string(runes[:maxAnswerRunes]) + " [truncated]"
	}
	return s
}
