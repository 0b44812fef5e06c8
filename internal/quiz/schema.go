package quiz

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/pavelanni/quizdeck/internal/model"
)

var (
	errNotObject = errors.New("response is not a JSON object")
	errNotArray  = errors.New("expected a JSON array")
)

// NormalizeQuestionType lower-cases t and replaces spaces and hyphens with
// underscores, so "Multiple Choice" becomes "multiple_choice".
func NormalizeQuestionType(t string) model.QuestionType {
	t = strings.ToLower(strings.TrimSpace(t))
	t = strings.NewReplacer(" ", "_", "-", "_").Replace(t)
	return model.QuestionType(t)
}

type quizOutput struct {
	QuizContent      json.RawMessage `json:"quiz_content"`
	TeachingInsights json.RawMessage `json:"teaching_insights"`
}

type questionOutput struct {
	Question      string   `json:"question"`
	Type          string   `json:"type"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
	Hint          string   `json:"hint"`
}

// decodeQuiz checks a quiz-authoring response and returns the accepted
// questions and teaching insights. want is the number of questions
// requested and allowed the requested types.
func decodeQuiz(raw json.RawMessage, want int, allowed []model.QuestionType) ([]model.QuizQuestion, string, error) {
	var out quizOutput
	if err := decodeObject(raw, &out); err != nil {
		return nil, "", err
	}
	if !isArray(out.QuizContent) {
		return nil, "", fmt.Errorf("quiz_content: %w", errNotArray)
	}
	var insights string
	if isNull(out.TeachingInsights) || json.Unmarshal(out.TeachingInsights, &insights) != nil {
		return nil, "", errors.New("teaching_insights must be a string")
	}

	var items []questionOutput
	if err := json.Unmarshal(out.QuizContent, &items); err != nil {
		return nil, "", fmt.Errorf("quiz_content: %w", err)
	}
	if len(items) != want {
		return nil, "", fmt.Errorf("quiz_content has %d questions, requested %d", len(items), want)
	}

	questions := make([]model.QuizQuestion, 0, len(items))
	for i, item := range items {
		q, err := checkQuestion(item, allowed)
		if err != nil {
			return nil, "", fmt.Errorf("question %d: %w", i, err)
		}
		questions = append(questions, q)
	}
	return questions, strings.TrimSpace(insights), nil
}

func checkQuestion(item questionOutput, allowed []model.QuestionType) (model.QuizQuestion, error) {
	q := model.QuizQuestion{
		Question:      strings.TrimSpace(item.Question),
		Type:          NormalizeQuestionType(item.Type),
		CorrectAnswer: strings.TrimSpace(item.CorrectAnswer),
		Explanation:   strings.TrimSpace(item.Explanation),
		Hint:          strings.TrimSpace(item.Hint),
	}
	switch {
	case q.Question == "":
		return q, errors.New("missing question")
	case item.Type == "":
		return q, errors.New("missing type")
	case q.CorrectAnswer == "":
		return q, errors.New("missing correct_answer")
	case q.Explanation == "":
		return q, errors.New("missing explanation")
	}
	if !q.Type.IsValid() || !slices.Contains(allowed, q.Type) {
		return q, fmt.Errorf("type %q was not requested", item.Type)
	}

	switch q.Type {
	case model.TypeMultipleChoice:
		if len(item.Options) != model.MultipleChoiceOptions {
			return q, fmt.Errorf("multiple_choice needs exactly %d options, got %d", model.MultipleChoiceOptions, len(item.Options))
		}
		q.Options = make([]string, len(item.Options))
		for i, o := range item.Options {
			q.Options[i] = strings.TrimSpace(o)
		}
	case model.TypeTrueFalse:
		switch strings.ToLower(q.CorrectAnswer) {
		case "true":
			q.CorrectAnswer = "True"
		case "false":
			q.CorrectAnswer = "False"
		default:
			return q, fmt.Errorf("true_false answer must be True or False, got %q", q.CorrectAnswer)
		}
	}
	return q, nil
}

type gradedOutput struct {
	GradedAnswers json.RawMessage `json:"gradedAnswers"`
}

type gradedAnswerOutput struct {
	Question      string `json:"question"`
	StudentAnswer string `json:"studentAnswer"`
	CorrectAnswer string `json:"correctAnswer"`
	IsCorrect     *bool  `json:"isCorrect"`
	Explanation   string `json:"explanation"`
}

// decodeGraded checks a grading response. want is the number of answers
// that were submitted.
func decodeGraded(raw json.RawMessage, want int) ([]model.GradedAnswer, error) {
	var out gradedOutput
	if err := decodeObject(raw, &out); err != nil {
		return nil, err
	}
	if !isArray(out.GradedAnswers) {
		return nil, fmt.Errorf("gradedAnswers: %w", errNotArray)
	}
	var items []gradedAnswerOutput
	if err := json.Unmarshal(out.GradedAnswers, &items); err != nil {
		return nil, fmt.Errorf("gradedAnswers: %w", err)
	}
	if len(items) != want {
		return nil, fmt.Errorf("gradedAnswers has %d entries, submitted %d", len(items), want)
	}

	answers := make([]model.GradedAnswer, 0, len(items))
	for i, item := range items {
		if item.IsCorrect == nil {
			return nil, fmt.Errorf("gradedAnswers[%d]: isCorrect must be a boolean", i)
		}
		answers = append(answers, model.GradedAnswer{
			Question:      item.Question,
			StudentAnswer: item.StudentAnswer,
			CorrectAnswer: item.CorrectAnswer,
			IsCorrect:     *item.IsCorrect,
			Explanation:   item.Explanation,
		})
	}
	return answers, nil
}

func decodeObject(raw json.RawMessage, v any) error {
	b := bytes.TrimSpace(raw)
	if len(b) == 0 || b[0] != '{' {
		return errNotObject
	}
	return json.Unmarshal(b, v)
}

func isArray(raw json.RawMessage) bool {
	b := bytes.TrimSpace(raw)
	return len(b) > 0 && b[0] == '['
}

func isNull(raw json.RawMessage) bool {
	b := bytes.TrimSpace(raw)
	return len(b) == 0 || bytes.Equal(b, []byte("null"))
}
