package quiz

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"github.com/pavelanni/quizdeck/internal/llm/prompts"
	"github.com/pavelanni/quizdeck/internal/model"
)

const (
	// NoResponsesMessage is the insight text for a session without results.
	NoResponsesMessage = "There are no student responses yet. Please wait for more students to submit the quiz."
	// InsightsFallbackMessage is used when the provider produced no insight text.
	InsightsFallbackMessage = "Smart insights could not be generated at this time. Please try again later."

	topTierMin     = 80
	middleTierMin  = 50
	maxMissedShown = 10
)

// Summarize writes a teaching-insights report for a session. It never
// fails: without results it returns NoResponsesMessage without calling the
// provider, and any provider or store problem yields InsightsFallbackMessage.
func (s *Service) Summarize(ctx context.Context, sessionID string) string {
	results, err := s.repo.ListResults(ctx, sessionID)
	if err != nil {
		slog.Error("insights: failed to load results", "session_id", sessionID, "error", err)
		return InsightsFallbackMessage
	}
	if len(results) == 0 {
		return NoResponsesMessage
	}

	prompt, err := prompts.BuildInsightsPrompt(analyzeResults(results))
	if err != nil {
		slog.Error("insights: failed to build prompt", "session_id", sessionID, "error", err)
		return InsightsFallbackMessage
	}
	text, err := s.provider.GenerateText(ctx, prompt)
	if err != nil || text == "" {
		slog.Warn("insights: provider returned nothing", "session_id", sessionID, "error", err)
		return InsightsFallbackMessage
	}
	return text
}

// analyzeResults ranks missed questions and splits students into tiers.
func analyzeResults(results []model.StudentResult) prompts.InsightsData {
	data := prompts.InsightsData{TotalStudents: len(results)}

	var sum float64
	missCount := make(map[string]int)
	var order []string
	for _, r := range results {
		sum += r.ScorePercentage

		for _, a := range r.GradedAnswers {
			if a.IsCorrect {
				continue
			}
			if _, ok := missCount[a.Question]; !ok {
				order = append(order, a.Question)
			}
			missCount[a.Question]++
		}

		pct := 0.0
		if n := len(r.GradedAnswers); n > 0 {
			pct = float64(r.CorrectCount()) / float64(n) * 100
		}
		switch {
		case pct >= topTierMin:
			data.TopStudents = append(data.TopStudents, r.StudentName)
		case pct >= middleTierMin:
			data.MiddleTier = append(data.MiddleTier, r.StudentName)
		default:
			data.StrugglingStudents = append(data.StrugglingStudents, r.StudentName)
		}
	}
	data.AverageScore = int(math.Round(sum / float64(len(results))))

	missed := make([]prompts.MissedQuestion, 0, len(order))
	for _, q := range order {
		missed = append(missed, prompts.MissedQuestion{Question: q, TimesMissed: missCount[q]})
	}
	sort.SliceStable(missed, func(i, j int) bool { return missed[i].TimesMissed > missed[j].TimesMissed })
	if len(missed) > 0 {
		data.TopStruggle = missed[0].Question
	}
	if len(missed) > maxMissedShown {
		missed = missed[:maxMissedShown]
	}
	data.MissedQuestions = missed
	return data
}
