package analysis

import (
	"context"
	"testing"
)

func TestHeuristic_Tiers(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{30, TierBrief},
		{119, TierBrief},
		{120, TierStandard},
		{599, TierStandard},
		{900, TierExtended},
	}

	for _, tt := range tests {
		res, err := Heuristic{}.Analyze(context.Background(), Input{SessionID: "s", DurationSeconds: tt.seconds})
		if err != nil {
			t.Fatalf("Analyze failed: %v", err)
		}
		if res.QualityTier != tt.want {
			t.Errorf("tier(%d) = %s, want %s", tt.seconds, res.QualityTier, tt.want)
		}
	}
}

func TestHeuristic_Mood(t *testing.T) {
	tests := []struct {
		name     string
		in       Input
		dominant string
	}{
		{"no text", Input{SessionID: "s"}, "neutral"},
		{"positive", Input{SessionID: "s", Transcript: "I feel calm and relieved"}, "positive"},
		{"low", Input{SessionID: "s", Feedback: "Still sad and tired"}, "low"},
		{"anxious", Input{SessionID: "s", Transcript: "I'm worried, stressed and a bit better"}, "anxious"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Heuristic{}.Analyze(context.Background(), tt.in)
			if err != nil {
				t.Fatalf("Analyze failed: %v", err)
			}
			if res.Mood.Dominant != tt.dominant {
				t.Errorf("dominant = %s, want %s (signals %v)", res.Mood.Dominant, tt.dominant, res.Mood.Signals)
			}
			if res.Mood.Score < -1 || res.Mood.Score > 1 {
				t.Errorf("score out of range: %f", res.Mood.Score)
			}
		})
	}
}

func TestHeuristic_Technical(t *testing.T) {
	res, err := Heuristic{}.Analyze(context.Background(), Input{
		SessionID:       "s",
		DurationSeconds: 900,
		CeilingSeconds:  900,
		EndReason:       "ceiling",
	})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if !res.Technical.CeilingReached || res.Technical.EndReason != "ceiling" {
		t.Errorf("unexpected technical metrics: %+v", res.Technical)
	}
	if res.Insights.Summary == "" {
		t.Error("expected a summary")
	}
}

func TestHeuristic_RequiresSession(t *testing.T) {
	if _, err := (Heuristic{}).Analyze(context.Background(), Input{}); err == nil {
		t.Error("expected error without session id")
	}
}
