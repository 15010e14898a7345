package evaluator

import (
	"fmt"
	"math/rand/v2"
	"slices"
)

// Plan levels.
const (
	LevelBeginner     = "beginner"
	LevelIntermediate = "intermediate"
	LevelAdvanced     = "advanced"
)

var behavioralQuestions = []string{
	"Tell me about a challenging project you worked on and how you handled it.",
	"Describe a time when you had to learn a new technology quickly.",
	"Give an example of how you've handled a difficult team member or stakeholder.",
	"Tell me about a time you made a mistake and how you handled it.",
	"Describe a situation where you had to meet a tight deadline.",
}

var technicalQuestions = map[string][]string{
	LevelBeginner: {
		"Explain the difference between a list and a tuple in Python.",
		"What is the difference between SQL and NoSQL databases?",
		"Explain what an API is and how it works.",
	},
	LevelIntermediate: {
		"How would you optimize a slow database query?",
		"Explain the concept of dependency injection.",
		"How would you handle a memory leak in your application?",
	},
	LevelAdvanced: {
		"Explain how you would design a distributed system for high availability.",
		"Describe how you would implement a caching strategy for a high-traffic web application.",
		"Explain the CAP theorem and its implications for distributed systems.",
	},
}

const (
	introText      = "Welcome to your technical interview. Let's start with some questions about your experience and background."
	conclusionText = "Thank you for your time. Do you have any questions for us?"
)

// GeneratePlan builds a structured interview: an introduction, three
// behavioral questions, up to five technical questions for level and a
// conclusion. Unknown levels use intermediate. A nil rng uses the global source.
func GeneratePlan(level string, rng *rand.Rand) []PlanItem {
	shuffle := rand.Shuffle
	if rng != nil {
		shuffle = rng.Shuffle
	}

	plan := []PlanItem{{ID: "introduction", Text: introText, Type: "text", TimeLimit: 120}}

	behavioral := slices.Clone(behavioralQuestions)
	shuffle(len(behavioral), func(i, j int) { behavioral[i], behavioral[j] = behavioral[j], behavioral[i] })
	for i, q := range behavioral[:3] {
		plan = append(plan, PlanItem{ID: fmt.Sprintf("behavioral_%d", i+1), Text: q, Type: "text", TimeLimit: 180})
	}

	bank, ok := technicalQuestions[level]
	if !ok {
		bank = technicalQuestions[LevelIntermediate]
	}
	technical := slices.Clone(bank)
	shuffle(len(technical), func(i, j int) { technical[i], technical[j] = technical[j], technical[i] })
	for i, q := range technical[:min(5, len(technical))] {
		plan = append(plan, PlanItem{ID: fmt.Sprintf("tech_%d", i+1), Text: q, Type: "text", TimeLimit: 240})
	}

	return append(plan, PlanItem{ID: "conclusion", Text: conclusionText, Type: "text", TimeLimit: 180})
}
