// Package analysis turns the facts of an ended session into report fields.
package analysis

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/goodtune/wellcore/internal/storage"
)

// Quality tiers
const (
	TierBrief    = "brief"
	TierStandard = "standard"
	TierExtended = "extended"
)

// Input describes an ended session
type Input struct {
	SessionID       string
	UserID          string
	DurationSeconds int
	CeilingSeconds  int
	EndReason       string
	Transcript      string
	Feedback        string
}

// Result holds the generated report fields
type Result struct {
	QualityTier string
	Mood        storage.MoodAnalysis
	Insights    storage.Insights
	Technical   storage.TechnicalMetrics
}

// Provider analyzes sessions
type Provider interface {
	Analyze(ctx context.Context, in Input) (*Result, error)
}

var (
	positiveWords = []string{"better", "calm", "good", "grateful", "happy", "hopeful", "relaxed", "relieved"}
	negativeWords = []string{"angry", "down", "lonely", "sad", "tired", "upset", "worse"}
	anxiousWords  = []string{"anxious", "nervous", "overwhelmed", "panic", "stressed", "worried"}
)

// Heuristic is a keyword based analyzer with no external dependencies
type Heuristic struct{}

// Analyze implements Provider
func (Heuristic) Analyze(ctx context.Context, in Input) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if in.SessionID == "" {
		return nil, fmt.Errorf("analysis requires a session id")
	}

	text := strings.ToLower(in.Transcript + " " + in.Feedback)
	positive := matches(text, positiveWords)
	negative := matches(text, negativeWords)
	anxious := matches(text, anxiousWords)

	mood := storage.MoodAnalysis{Dominant: "neutral"}
	total := len(positive) + len(negative) + len(anxious)
	if total > 0 {
		mood.Score = float64(len(positive)-len(negative)-len(anxious)) / float64(total)
		switch {
		case len(anxious) >= len(positive) && len(anxious) >= len(negative):
			mood.Dominant = "anxious"
		case len(negative) > len(positive):
			mood.Dominant = "low"
		default:
			mood.Dominant = "positive"
		}
		mood.Signals = append(append(append(mood.Signals, positive...), negative...), anxious...)
		sort.Strings(mood.Signals)
	}

	tier := tierFor(in.DurationSeconds)

	return &Result{
		QualityTier: tier,
		Mood:        mood,
		Insights:    insights(tier, mood, in),
		Technical: storage.TechnicalMetrics{
			DurationSeconds: int64(in.DurationSeconds),
			CeilingSeconds:  int64(in.CeilingSeconds),
			EndReason:       in.EndReason,
			CeilingReached:  in.CeilingSeconds > 0 && in.DurationSeconds >= in.CeilingSeconds,
		},
	}, nil
}

func tierFor(seconds int) string {
	switch {
	case seconds < 120:
		return TierBrief
	case seconds < 600:
		return TierStandard
	default:
		return TierExtended
	}
}

func matches(text string, words []string) []string {
	var found []string
	for _, w := range words {
		if strings.Contains(text, w) {
			found = append(found, w)
		}
	}
	return found
}

func insights(tier string, mood storage.MoodAnalysis, in Input) storage.Insights {
	out := storage.Insights{
		Summary: fmt.Sprintf("A %s session of %d minutes with a %s tone.", tier, in.DurationSeconds/60, mood.Dominant),
	}

	switch mood.Dominant {
	case "anxious":
		out.Suggestions = append(out.Suggestions, "Try a short breathing exercise before your next session.")
	case "low":
		out.Suggestions = append(out.Suggestions, "Consider scheduling a follow-up session this week.")
	case "positive":
		out.Suggestions = append(out.Suggestions, "Note what helped today so you can return to it.")
	}
	if tier == TierBrief {
		out.Suggestions = append(out.Suggestions, "Longer sessions usually give more room to talk things through.")
	}
	if in.EndReason == "device" {
		out.Suggestions = append(out.Suggestions, "Check your camera and microphone permissions before the next call.")
	}
	return out
}
