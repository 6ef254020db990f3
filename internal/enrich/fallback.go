package enrich

import "sentientplanner.app/planner/internal/model"

// Fallback returns the deterministic analysis substituted whenever the
// inference dependency fails or returns a malformed payload. It is identical
// across calls so the degraded path stays testable as a golden value.
func Fallback() Analysis {
	return Analysis{
		Emotion:        "neutral",
		SentimentScore: 50,
		WeeklyPlan:     fallbackPlan(),
		Fallback:       true,
	}
}

func fallbackPlan() []model.DayEntry {
	return []model.DayEntry{
		{
			Day:      "Monday",
			Tasks:    []string{"Review weekly goals", "Organize workspace", "Plan the week ahead"},
			Focus:    "Organization and clarity",
			SelfCare: "Take a 15-minute walk",
		},
		{
			Day:      "Tuesday",
			Tasks:    []string{"Focus on priority tasks", "Respond to pending messages", "Document progress"},
			Focus:    "Productivity",
			SelfCare: "Practice deep breathing exercises",
		},
		{
			Day:      "Wednesday",
			Tasks:    []string{"Midweek review", "Adjust plans if needed", "Connect with a colleague"},
			Focus:    "Adaptation and connection",
			SelfCare: "Enjoy a healthy lunch mindfully",
		},
		{
			Day:      "Thursday",
			Tasks:    []string{"Continue priority work", "Prepare for end of week", "Learn something new"},
			Focus:    "Growth and momentum",
			SelfCare: "Listen to calming music",
		},
		{
			Day:      "Friday",
			Tasks:    []string{"Complete weekly tasks", "Review accomplishments", "Set intentions for next week"},
			Focus:    "Completion and reflection",
			SelfCare: "Celebrate small wins",
		},
		{
			Day:      "Saturday",
			Tasks:    []string{"Rest and recharge", "Pursue a hobby", "Spend time with loved ones"},
			Focus:    "Personal time",
			SelfCare: "Sleep in if needed",
		},
		{
			Day:      "Sunday",
			Tasks:    []string{"Gentle preparation for the week", "Meal prep", "Relaxation"},
			Focus:    "Renewal",
			SelfCare: "Practice gratitude journaling",
		},
	}
}
