package service

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/createsuite/createsuite/internal/domain/task"
)

// Subtask is one decomposed unit of work before persistence.
type Subtask struct {
	Title       string
	Description string
	Priority    task.Priority
	Tags        []string
}

// GoalDecomposer splits a goal into subtasks. Implementations must be
// pure so the plan builder can call them without side effects.
type GoalDecomposer interface {
	Decompose(goal, repoName string) []Subtask
}

// AgentTypeClassifier picks an agent archetype for a subtask.
type AgentTypeClassifier interface {
	Classify(title, description string) string
}

// decomposeRule binds a category regex to a subtask template. Title and
// description templates interpolate %s with repo name and goal.
type decomposeRule struct {
	category string
	pattern  *regexp.Regexp
	title    string
	desc     string
	priority task.Priority
	tags     []string
}

// rules are matched in order; every match appends a subtask.
var decomposeRules = []decomposeRule{
	{
		category: "testing",
		pattern:  regexp.MustCompile(`(?i)\btests?\b|\bcoverage\b|\bunit\b|\bintegration\b`),
		title:    "Add test coverage in %s",
		desc:     "Write or extend automated tests for %s. Goal: %s",
		priority: task.PriorityHigh,
		tags:     []string{"testing"},
	},
	{
		category: "refactor",
		pattern:  regexp.MustCompile(`(?i)\brefactor\b|\bcleanup\b|\brestructure\b|\bsimplify\b`),
		title:    "Refactor code in %s",
		desc:     "Restructure code in %s without changing behavior. Goal: %s",
		priority: task.PriorityMedium,
		tags:     []string{"refactor"},
	},
	{
		category: "bugfix",
		pattern:  regexp.MustCompile(`(?i)\bfix(es|ed)?\b|\bbugs?\b|\bbroken\b|\bcrash\b|\berrors?\b`),
		title:    "Fix reported defects in %s",
		desc:     "Diagnose and fix the defects described in the goal for %s. Goal: %s",
		priority: task.PriorityCritical,
		tags:     []string{"bugfix"},
	},
	{
		category: "documentation",
		pattern:  regexp.MustCompile(`(?i)\bdocument(ation)?\b|\bdocs\b|\breadme\b|\bcomments?\b`),
		title:    "Improve documentation in %s",
		desc:     "Write or update documentation for %s. Goal: %s",
		priority: task.PriorityLow,
		tags:     []string{"documentation"},
	},
	{
		category: "feature",
		pattern:  regexp.MustCompile(`(?i)\badd\b|\bimplement\b|\bcreate\b|\bnew\b|\bsupport\b`),
		title:    "Implement new functionality in %s",
		desc:     "Implement the new functionality described in the goal for %s. Goal: %s",
		priority: task.PriorityHigh,
		tags:     []string{"feature"},
	},
	{
		category: "performance",
		pattern:  regexp.MustCompile(`(?i)\boptimi[sz]e\b|\bperformance\b|\bslow\b|\blatency\b|\bmemory\b`),
		title:    "Optimize performance in %s",
		desc:     "Profile and optimize the hot paths in %s. Goal: %s",
		priority: task.PriorityMedium,
		tags:     []string{"performance"},
	},
	{
		category: "security",
		pattern:  regexp.MustCompile(`(?i)\bsecurity\b|\bvulnerabilit(y|ies)\b|\bauth(entication|orization)?\b|\bsanitize\b`),
		title:    "Harden security in %s",
		desc:     "Review and harden the security-sensitive paths in %s. Goal: %s",
		priority: task.PriorityCritical,
		tags:     []string{"security"},
	},
}

// RuleDecomposer is the default keyword/regex GoalDecomposer.
type RuleDecomposer struct{}

// Decompose matches the goal against the fixed category rules in order.
// If no category matches, a single generic subtask wraps the raw goal.
func (RuleDecomposer) Decompose(goal, repoName string) []Subtask {
	var subtasks []Subtask
	for _, r := range decomposeRules {
		if !r.pattern.MatchString(goal) {
			continue
		}
		subtasks = append(subtasks, Subtask{
			Title:       fmt.Sprintf(r.title, repoName),
			Description: fmt.Sprintf(r.desc, repoName, goal),
			Priority:    r.priority,
			Tags:        append([]string(nil), r.tags...),
		})
	}

	if len(subtasks) == 0 {
		subtasks = append(subtasks, Subtask{
			Title:       fmt.Sprintf("Work on goal in %s", repoName),
			Description: goal,
			Priority:    task.PriorityMedium,
			Tags:        []string{"general"},
		})
	}
	return subtasks
}

// agentTypeScores maps archetypes to their leaning keywords.
var agentTypeScores = []struct {
	name     string
	keywords []string
}{
	{"architect", []string{"architecture", "design", "plan", "structure", "system"}},
	{"debugger", []string{"debug", "test", "fix", "bug", "error", "crash"}},
	{"docs", []string{"document", "docs", "readme", "api", "comment"}},
	{"frontend", []string{"frontend", "ui", "component", "style", "layout"}},
	{"assets", []string{"asset", "image", "icon", "font", "media"}},
}

// KeywordClassifier is the default AgentTypeClassifier. Ties and
// no-match both resolve to the debugger archetype.
type KeywordClassifier struct{}

func (KeywordClassifier) Classify(title, description string) string {
	text := strings.ToLower(title + " " + description)

	best := "debugger"
	bestScore := 0
	for _, at := range agentTypeScores {
		s := 0
		for _, kw := range at.keywords {
			if strings.Contains(text, kw) {
				s++
			}
		}
		if s > bestScore {
			best = at.name
			bestScore = s
		}
	}
	return best
}
