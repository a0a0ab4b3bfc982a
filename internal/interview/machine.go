package interview

import (
	"fmt"
	"strings"
)

// Outcome tags the result of one Step call. The first three are valid
// intermediate states (confirm stays disabled), not errors.
type Outcome int

const (
	AwaitingAnswer Outcome = iota
	AwaitingExplanation
	AwaitingConfirmation
	Advanced
	BranchComplete
	ItemComplete
)

func (o Outcome) String() string {
	switch o {
	case AwaitingAnswer:
		return "awaiting_answer"
	case AwaitingExplanation:
		return "awaiting_explanation"
	case AwaitingConfirmation:
		return "awaiting_confirmation"
	case Advanced:
		return "advanced"
	case BranchComplete:
		return "branch_complete"
	case ItemComplete:
		return "item_complete"
	default:
		return "unknown"
	}
}

// Input is what the UI adapter captured since the last render: the selected
// answer(s), the free-text explanation, and whether confirm was pressed.
type Input struct {
	Answers     []string
	Explanation string
	Confirm     bool
}

// StepResult is the tagged transition outcome the adapter redraws from.
type StepResult struct {
	Outcome Outcome
	Branch  string // active branch after the step
	Node    *Node  // current node after the step; nil once the item is complete
}

// Step runs one transition of the interview for the session's current node.
// Confirmed answers are appended to the session and never revisited; there is
// no backward transition.
func (s *Session) Step(in Input) (StepResult, error) {
	if s.Complete() {
		return StepResult{Outcome: ItemComplete, Branch: s.BranchName()}, nil
	}

	node := s.node
	if len(in.Answers) == 0 {
		return s.result(AwaitingAnswer), nil
	}
	if !node.MultipleAnswers && len(in.Answers) > 1 {
		return StepResult{}, fmt.Errorf("node %q takes a single answer, got %d", node.Question, len(in.Answers))
	}
	for _, a := range in.Answers {
		if _, ok := node.Answers[a]; !ok {
			return StepResult{}, fmt.Errorf("answer %q is not an option of %q", a, node.Question)
		}
	}
	if node.RequiresExplanation(in.Answers) && strings.TrimSpace(in.Explanation) == "" {
		return s.result(AwaitingExplanation), nil
	}
	if !in.Confirm {
		return s.result(AwaitingConfirmation), nil
	}

	// Confirmed: the triple becomes immutable.
	s.Answers = append(s.Answers, Triple{
		Question:    node.Question,
		Answer:      strings.Join(in.Answers, "; "),
		Explanation: strings.TrimSpace(in.Explanation),
	})

	// Multi-choice nodes cannot discriminate a single child; the branch ends
	// after one confirmation.
	if node.MultipleAnswers {
		return s.finishBranch(""), nil
	}

	chosen := node.Answers[in.Answers[0]]
	if chosen.Next == nil {
		return s.finishBranch(chosen.Label), nil
	}
	if s.depth+1 >= s.tree.MaxDepth {
		return s.finishBranch(chosen.Label), nil
	}

	s.node = chosen.Next
	s.depth++
	return s.result(Advanced), nil
}

// finishBranch closes the active branch and either short-circuits the item
// (precheck with a terminal label), enters the next branch, or completes the
// item.
func (s *Session) finishBranch(terminalLabel string) StepResult {
	branch := s.BranchName()

	if branch == PrecheckBranch && terminalLabel != "" {
		s.shortCircuited = true
		s.complete = true
		s.node = nil
		return StepResult{Outcome: ItemComplete, Branch: branch}
	}

	s.branchIdx++
	if s.branchIdx >= len(s.tree.Branches) {
		s.complete = true
		s.node = nil
		return StepResult{Outcome: ItemComplete, Branch: branch}
	}

	next := s.tree.Branches[s.branchIdx]
	s.node = next.Root
	s.depth = 0
	return StepResult{Outcome: BranchComplete, Branch: next.Name, Node: next.Root}
}

func (s *Session) result(o Outcome) StepResult {
	return StepResult{Outcome: o, Branch: s.BranchName(), Node: s.node}
}
