// Package service implements the orchestration business logic: goal
// routing, plan building, convoy and agent lifecycle, worker
// supervision, and the pipeline state machine.
package service

import (
	"fmt"
	"sort"
	"strings"
)

// Workflow is the recommended execution shape for a goal.
type Workflow string

const (
	WorkflowSimple  Workflow = "simple"
	WorkflowComplex Workflow = "complex"
	WorkflowTeam    Workflow = "team"
)

// RouteResult is the outcome of analyzing a goal description.
type RouteResult struct {
	RecommendedWorkflow Workflow `json:"recommendedWorkflow"`
	Confidence          float64  `json:"confidence"`
	Reasoning           string   `json:"reasoning"`
	SuggestedSkills     []string `json:"suggestedSkills"`
	EstimatedAgentCount int      `json:"estimatedAgentCount"`
}

// skillCategories maps each skill to its matching keywords. Keywords
// shorter than 4 characters are never matched and exist only as
// category-name hints.
var skillCategories = []struct {
	name     string
	keywords []string
}{
	{"testing", []string{"test", "tests", "coverage", "unit", "integration", "assert"}},
	{"debugging", []string{"debug", "crash", "error", "broken", "failing", "issue"}},
	{"refactoring", []string{"refactor", "cleanup", "restructure", "simplify", "rewrite"}},
	{"documentation", []string{"document", "docs", "readme", "comment", "explain"}},
	{"architecture", []string{"architecture", "design", "structure", "system", "framework", "infrastructure"}},
	{"frontend", []string{"frontend", "interface", "component", "styling", "layout"}},
	{"performance", []string{"performance", "optimize", "speed", "slow", "latency", "memory"}},
	{"security", []string{"security", "vulnerability", "authentication", "authorization", "sanitize"}},
}

// defaultSkill is suggested when no category scores above zero.
const defaultSkill = "debugging"

var (
	multiStepWords = []string{"and", "also", "then", "after", "before", "plus"}
	broadWords     = []string{"all", "every", "entire", "full", "complete", "whole"}
	archWords      = []string{"architecture", "system", "design", "infrastructure", "framework"}
	depthWords     = []string{"test", "debug", "fix", "refactor", "optimize"}
)

// Route analyzes a goal description and recommends a workflow size and
// skill set. It is a pure function and never fails.
func Route(description string) RouteResult {
	lower := strings.ToLower(description)
	words := tokenize(lower)

	score := complexityScore(lower, words)
	skills, scored := matchSkills(lower)

	var workflow Workflow
	var agents int
	switch {
	case score <= 2:
		workflow = WorkflowSimple
		agents = 1
	case score <= 5:
		workflow = WorkflowComplex
		agents = min(2, orDefault(scored, 1))
	default:
		workflow = WorkflowTeam
		agents = min(4, orDefault(scored, 2))
	}

	confidence := 0.4 + 0.15*float64(scored)
	if confidence > 0.95 {
		confidence = 0.95
	}

	return RouteResult{
		RecommendedWorkflow: workflow,
		Confidence:          confidence,
		Reasoning: fmt.Sprintf("complexity score %d suggests a %s workflow; matched %d skill categories",
			score, workflow, scored),
		SuggestedSkills:     skills,
		EstimatedAgentCount: agents,
	}
}

// complexityScore implements the keyword heuristic: base 1, bumped by
// connective, scope, architecture, and depth words, clamped to [1,10].
func complexityScore(lower string, words map[string]bool) int {
	score := 1
	if containsAnyWord(words, multiStepWords) {
		score += 2
	}
	if containsAnyWord(words, broadWords) {
		score += 2
	}
	if containsAnyWord(words, archWords) {
		score += 2
	}
	if containsAnyWord(words, depthWords) {
		score++
	}
	if clauseCount(lower) > 2 {
		score++
	}
	if score > 10 {
		score = 10
	}
	return score
}

// matchSkills scores each category against the description and returns
// the top 3 skill names plus the count of categories that scored.
func matchSkills(lower string) ([]string, int) {
	type scoredCategory struct {
		name  string
		score int
		order int
	}

	var matched []scoredCategory
	for i, cat := range skillCategories {
		s := 0
		for _, kw := range cat.keywords {
			if len(kw) > 3 && strings.Contains(lower, kw) {
				s++
			}
		}
		if strings.Contains(lower, cat.name) {
			s += 2
		}
		if s > 0 {
			matched = append(matched, scoredCategory{cat.name, s, i})
		}
	}

	if len(matched) == 0 {
		return []string{defaultSkill}, 0
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].score != matched[j].score {
			return matched[i].score > matched[j].score
		}
		return matched[i].order < matched[j].order
	})

	n := len(matched)
	names := make([]string, 0, 3)
	for i := 0; i < n && i < 3; i++ {
		names = append(names, matched[i].name)
	}
	return names, n
}

func tokenize(lower string) map[string]bool {
	words := map[string]bool{}
	for _, w := range strings.FieldsFunc(lower, func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	}) {
		words[w] = true
	}
	return words
}

func containsAnyWord(words map[string]bool, candidates []string) bool {
	for _, c := range candidates {
		if words[c] {
			return true
		}
	}
	return false
}

func clauseCount(s string) int {
	n := 1
	for _, r := range s {
		if r == ',' || r == ';' {
			n++
		}
	}
	return n
}

func orDefault(n, fallback int) int {
	if n == 0 {
		return fallback
	}
	return n
}
