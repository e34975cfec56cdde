package services

import (
	"strconv"
	"strings"

	"github.com/arenaworks/peerview/internal/models"
)

// ComputeScores derives initial and final scores from the answered items
// of a review against its scorecard's weighted group/section/question
// tree. Unanswered questions are excluded from both numerator and weight
// denominator (re-normalized weights), never treated as zero. Returns nil
// scores when no question is answered.
func ComputeScores(scorecard *models.Scorecard, items []models.ReviewItem) (initial, final *float64) {
	initialAnswers := map[string]string{}
	finalAnswers := map[string]string{}
	for _, item := range items {
		if item.InitialAnswer != "" {
			initialAnswers[item.ScorecardQuestionID] = item.InitialAnswer
		}
		// finalScore mirrors the initial answer until an appeal response
		// revises the item.
		answer := item.FinalAnswer
		if answer == "" {
			answer = item.InitialAnswer
		}
		if answer != "" {
			finalAnswers[item.ScorecardQuestionID] = answer
		}
	}

	return computeScore(scorecard, initialAnswers), computeScore(scorecard, finalAnswers)
}

// computeScore evaluates the weighted tree over one answer set and
// normalizes the result into [MinScore, MaxScore].
func computeScore(scorecard *models.Scorecard, answers map[string]string) *float64 {
	var total, totalWeight float64

	for _, group := range scorecard.Groups {
		groupScore, ok := groupFraction(&group, answers)
		if !ok {
			continue
		}
		total += groupScore * group.Weight
		totalWeight += group.Weight
	}

	if totalWeight == 0 {
		return nil
	}

	fraction := total / totalWeight
	score := scorecard.MinScore + fraction*(scorecard.MaxScore-scorecard.MinScore)
	score = clamp(score, scorecard.MinScore, scorecard.MaxScore)
	return &score
}

func groupFraction(group *models.ScorecardGroup, answers map[string]string) (float64, bool) {
	var total, totalWeight float64
	for _, section := range group.Sections {
		sectionScore, ok := sectionFraction(&section, answers)
		if !ok {
			continue
		}
		total += sectionScore * section.Weight
		totalWeight += section.Weight
	}
	if totalWeight == 0 {
		return 0, false
	}
	return total / totalWeight, true
}

func sectionFraction(section *models.ScorecardSection, answers map[string]string) (float64, bool) {
	var total, totalWeight float64
	for _, question := range section.Questions {
		answer, ok := answers[question.ID]
		if !ok {
			continue
		}
		value, ok := questionFraction(&question, answer)
		if !ok {
			continue
		}
		total += value * question.Weight
		totalWeight += question.Weight
	}
	if totalWeight == 0 {
		return 0, false
	}
	return total / totalWeight, true
}

// questionFraction maps an answer to [0, 1]. Scale answers interpolate
// within [ScaleMin, ScaleMax]; yes/no answers map to the bounds.
func questionFraction(question *models.ScorecardQuestion, answer string) (float64, bool) {
	switch question.Type {
	case models.QuestionTypeScale:
		value, err := strconv.ParseFloat(strings.TrimSpace(answer), 64)
		if err != nil {
			return 0, false
		}
		span := question.ScaleMax - question.ScaleMin
		if span <= 0 {
			return 0, false
		}
		return clamp((value-question.ScaleMin)/span, 0, 1), true
	case models.QuestionTypeYesNo:
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "yes", "true", "1":
			return 1, true
		case "no", "false", "0":
			return 0, true
		}
		return 0, false
	default:
		return 0, false
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
