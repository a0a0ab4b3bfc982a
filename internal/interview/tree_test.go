package interview

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const miniTree = `
image:
  question: "Is the image genuine?"
  explanation: "A genuine image is an original image that was not altered without disclosure."
  mandatory_text: "No"
  answers:
    true: {label: genuine}
    false:
      question: "How was it altered?"
      answers:
        "Edited": {label: edited}
        "AI generated": {label: ai}
text:
  question: "Does the text faithfully represent the image?"
  multiple_answers: true
  mandatory_text: false
  answers:
    "Yes": {label: faithful}
    "No": {label: misleading}
    "I don't know": {label: unknown}
`

func TestParseTree(t *testing.T) {
	tree, err := ParseTree([]byte(miniTree), 4)
	require.NoError(t, err)
	require.Len(t, tree.Branches, 2)

	// Branch order is fixed regardless of document order
	assert.Equal(t, "image", tree.Branches[0].Name)
	assert.Equal(t, "text", tree.Branches[1].Name)

	root := tree.Branches[0].Root
	assert.Equal(t, "Is the image genuine?", root.Question)
	assert.False(t, root.MultipleAnswers)
	assert.Equal(t, "No", root.MandatoryText)

	// Boolean answer keys are normalized to Yes/No
	assert.ElementsMatch(t, []string{"No", "Yes"}, root.AnswerOrder)
	assert.Equal(t, []string{"No", "Yes"}, root.AnswerOrder, "answers are sorted")

	yes := root.Answers["Yes"]
	require.NotNil(t, yes)
	assert.Nil(t, yes.Next)
	assert.Equal(t, "genuine", yes.Label)

	no := root.Answers["No"]
	require.NotNil(t, no)
	require.NotNil(t, no.Next)
	assert.Equal(t, "How was it altered?", no.Next.Question)

	multi := tree.Branches[1].Root
	assert.True(t, multi.MultipleAnswers)
	assert.Equal(t, "", multi.MandatoryText)
}

func TestParseTreeMandatoryAll(t *testing.T) {
	doc := `
image:
  question: "Q"
  mandatory_text: true
  answers:
    "A": {label: a}
`
	tree, err := ParseTree([]byte(doc), 4)
	require.NoError(t, err)
	assert.Equal(t, "all", tree.Branches[0].Root.MandatoryText)
	assert.True(t, tree.Branches[0].Root.RequiresExplanation([]string{"A"}))
}

func TestParseTreeMissingTerminal(t *testing.T) {
	// Four nested questions with no label under a depth bound of 3
	doc := `
image:
  question: "Q1"
  answers:
    "A":
      question: "Q2"
      answers:
        "A":
          question: "Q3"
          answers:
            "A":
              question: "Q4"
              answers:
                "A": {label: deep}
`
	_, err := ParseTree([]byte(doc), 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedTree)
}

func TestParseTreeRejectsGarbage(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"no branches", `other: {question: "Q", answers: {"A": {label: x}}}`},
		{"node without question", `image: {answers: {"A": {label: x}}}`},
		{"node without answers", `image: {question: "Q"}`},
		{"scalar answer", `image: {question: "Q", answers: {"A": 7}}`},
		{"not a mapping", `- a`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTree([]byte(tt.doc), 4)
			assert.ErrorIs(t, err, ErrMalformedTree)
		})
	}
}

func TestRequiresExplanation(t *testing.T) {
	node := &Node{MandatoryText: "No"}
	assert.True(t, node.RequiresExplanation([]string{"No"}))
	assert.False(t, node.RequiresExplanation([]string{"Yes"}))

	none := &Node{}
	assert.False(t, none.RequiresExplanation([]string{"No"}))
}
