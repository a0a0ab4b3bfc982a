package interview

import (
	"errors"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// ErrMalformedTree means the question tree violates its structural contract
// (missing terminal within the depth bound, unparseable node). This is a
// configuration error and must abort startup, never reach a worker.
var ErrMalformedTree = errors.New("malformed question tree")

// PrecheckBranch is the short-circuiting pre-branch: a negative answer there
// finalizes the whole item without entering the remaining branches.
const PrecheckBranch = "claim"

// branchOrder fixes the sequence branches are interviewed in. Only branches
// present in the document are used.
var branchOrder = []string{PrecheckBranch, "image", "text", "text_in_image"}

// Node is one question in a branch. Immutable after parse.
type Node struct {
	Question        string
	Explanation     string
	MultipleAnswers bool
	// MandatoryText encodes the explanation policy: "" for none, "all", or
	// the one answer that requires an explanation.
	MandatoryText string
	Answers       map[string]*Answer
	AnswerOrder   []string // sorted answer labels, for stable presentation
}

// Answer maps an answer label to either a child question or a terminal label.
type Answer struct {
	Label string // terminal label; meaningful when Next is nil
	Next  *Node
}

// Branch is one independent sub-tree, walked root to terminal.
type Branch struct {
	Name string
	Root *Node
}

// Tree is the full interview: branches in fixed order.
type Tree struct {
	Branches []Branch
	MaxDepth int
}

// ParseTree decodes the question tree YAML and validates that every branch
// terminates within maxDepth nodes.
func ParseTree(data []byte, maxDepth int) (*Tree, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTree, err)
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: document root is not a mapping", ErrMalformedTree)
	}
	root := doc.Content[0]

	roots := make(map[string]*Node)
	for i := 0; i+1 < len(root.Content); i += 2 {
		name := normalizeKey(root.Content[i])
		node, err := parseNode(root.Content[i+1], 0, maxDepth)
		if err != nil {
			return nil, fmt.Errorf("branch %s: %w", name, err)
		}
		roots[name] = node
	}

	tree := &Tree{MaxDepth: maxDepth}
	for _, name := range branchOrder {
		if node, ok := roots[name]; ok {
			tree.Branches = append(tree.Branches, Branch{Name: name, Root: node})
		}
	}
	if len(tree.Branches) == 0 {
		return nil, fmt.Errorf("%w: no known branches in document", ErrMalformedTree)
	}
	return tree, nil
}

func parseNode(n *yaml.Node, depth, maxDepth int) (*Node, error) {
	if n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	if depth >= maxDepth {
		return nil, fmt.Errorf("%w: no terminal within %d nodes", ErrMalformedTree, maxDepth)
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: question node is not a mapping", ErrMalformedTree)
	}

	node := &Node{Answers: make(map[string]*Answer)}
	var answersNode *yaml.Node
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := normalizeKey(n.Content[i])
		val := n.Content[i+1]
		switch key {
		case "question":
			node.Question = val.Value
		case "explanation":
			node.Explanation = val.Value
		case "multiple_answers":
			if err := val.Decode(&node.MultipleAnswers); err != nil {
				return nil, fmt.Errorf("%w: bad multiple_answers: %v", ErrMalformedTree, err)
			}
		case "mandatory_text":
			// false disables the policy; a string names the answers it covers
			var b bool
			if err := val.Decode(&b); err == nil {
				if b {
					node.MandatoryText = "all"
				}
			} else {
				node.MandatoryText = val.Value
			}
		case "answers":
			answersNode = val
		}
	}
	if node.Question == "" {
		return nil, fmt.Errorf("%w: node without question", ErrMalformedTree)
	}
	if answersNode == nil || answersNode.Kind != yaml.MappingNode || len(answersNode.Content) == 0 {
		return nil, fmt.Errorf("%w: node %q has no answers", ErrMalformedTree, node.Question)
	}

	for i := 0; i+1 < len(answersNode.Content); i += 2 {
		label := normalizeKey(answersNode.Content[i])
		val := answersNode.Content[i+1]
		if val.Kind == yaml.AliasNode {
			val = val.Alias
		}

		answer := &Answer{}
		switch {
		case isNullNode(val), val.Kind == yaml.MappingNode && len(val.Content) == 0:
			// bare terminal
		case val.Kind == yaml.MappingNode && hasKey(val, "label"):
			answer.Label = keyValue(val, "label")
		case val.Kind == yaml.MappingNode:
			child, err := parseNode(val, depth+1, maxDepth)
			if err != nil {
				return nil, err
			}
			answer.Next = child
		default:
			return nil, fmt.Errorf("%w: answer %q of %q is neither node nor terminal",
				ErrMalformedTree, label, node.Question)
		}
		node.Answers[label] = answer
		node.AnswerOrder = append(node.AnswerOrder, label)
	}
	sort.Strings(node.AnswerOrder)

	return node, nil
}

// normalizeKey renders mapping keys as strings, with YAML booleans mapped to
// "Yes"/"No" the way the workers see them.
func normalizeKey(n *yaml.Node) string {
	var b bool
	if n.Tag == "!!bool" && n.Decode(&b) == nil {
		if b {
			return "Yes"
		}
		return "No"
	}
	return n.Value
}

func isNullNode(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.Tag == "!!null"
}

func hasKey(mapping *yaml.Node, key string) bool {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return true
		}
	}
	return false
}

func keyValue(mapping *yaml.Node, key string) string {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1].Value
		}
	}
	return ""
}

// RequiresExplanation reports whether the node's policy demands a non-empty
// explanation for the given answer selection.
func (n *Node) RequiresExplanation(answers []string) bool {
	switch n.MandatoryText {
	case "":
		return false
	case "all":
		return true
	default:
		for _, a := range answers {
			if a == n.MandatoryText {
				return true
			}
		}
		return false
	}
}
