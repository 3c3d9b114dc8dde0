package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_Affirmative(t *testing.T) {
	cases := []string{
		"yes",
		"Yes!",
		"yeah sounds good",
		"sure, go ahead",
		"perfect",
		"let's do it",
		"ok that works for me",
	}

	for _, msg := range cases {
		c := Classify(msg)
		assert.Equal(t, Affirmative, c.Kind, "message: %q", msg)
		assert.True(t, c.IsGenerateConfirmation(), "message: %q", msg)
	}
}

func TestClassify_Negative(t *testing.T) {
	cases := []string{
		"no",
		"No.",
		"don't do that",
		"stop",
		"wait a second",
		"cancel this",
		"never mind",
	}

	for _, msg := range cases {
		c := Classify(msg)
		assert.Equal(t, Negative, c.Kind, "message: %q", msg)
		assert.False(t, c.IsGenerateConfirmation(), "message: %q", msg)
	}
}

// "no, don't create it yet" contains an affirmative-looking generate
// command but must not be treated as confirmation.
func TestClassify_NegationSuppressesAffirmative(t *testing.T) {
	c := Classify("no, don't create it yet")

	assert.True(t, c.Negation)
	assert.True(t, c.GenerateCmd)
	assert.False(t, c.IsGenerateConfirmation())
	assert.Equal(t, Negative, c.Kind)
}

// Positive idioms containing "no" must not flip the message negative.
func TestClassify_PositiveIdiomException(t *testing.T) {
	cases := []string{
		"no problem, let's go",
		"no worries, sounds good",
		"no issues here, go ahead",
		"no concerns, yes",
	}

	for _, msg := range cases {
		c := Classify(msg)
		assert.False(t, c.Negation, "message: %q", msg)
		assert.True(t, c.IsGenerateConfirmation(), "message: %q", msg)
	}
}

// An idiom only excuses its own "no"; a second negation still counts.
func TestClassify_IdiomPlusRealNegation(t *testing.T) {
	c := Classify("no problem, but don't create it yet")

	assert.True(t, c.Negation)
	assert.False(t, c.IsGenerateConfirmation())
}

func TestClassify_GenerateCommand(t *testing.T) {
	cases := []string{
		"generate the plan",
		"create an activity for me",
		"make it",
		"please create the plan now",
	}

	for _, msg := range cases {
		c := Classify(msg)
		assert.True(t, c.GenerateCmd, "message: %q", msg)
		assert.True(t, c.IsGenerateConfirmation(), "message: %q", msg)
	}
}

func TestClassify_GenerateCommandRequiresSameClause(t *testing.T) {
	// Verb and target separated by sentence punctuation do not match.
	c := Classify("what should I create? the plan looks odd")
	assert.False(t, c.GenerateCmd)
}

func TestClassify_Help(t *testing.T) {
	cases := []string{
		"what does it do",
		"how does smart mode work",
		"what's the difference between quick and smart",
		"what can you do",
	}

	for _, msg := range cases {
		c := Classify(msg)
		assert.Equal(t, Help, c.Kind, "message: %q", msg)
	}
}

func TestClassify_ShowOverview(t *testing.T) {
	cases := []string{
		"show me the overview again",
		"show the plan",
		"can you repeat the plan",
		"what was the plan",
	}

	for _, msg := range cases {
		c := Classify(msg)
		assert.Equal(t, ShowOverview, c.Kind, "message: %q", msg)
	}
}

func TestClassify_UnclearFallback(t *testing.T) {
	cases := []string{
		"hmm",
		"the weather is nice today",
		"banana",
	}

	for _, msg := range cases {
		c := Classify(msg)
		assert.Equal(t, Unclear, c.Kind, "message: %q", msg)
		assert.False(t, c.IsGenerateConfirmation(), "message: %q", msg)
	}
}

func TestWantsChanges(t *testing.T) {
	assert.True(t, WantsChanges("no, that's not right"))
	assert.True(t, WantsChanges("can you change the second task"))
	assert.True(t, WantsChanges("please add a cake task"))
	assert.False(t, WantsChanges("yes, perfect"))
}

func TestClassify_ContractionNormalization(t *testing.T) {
	c := Classify("Let's do it!")
	assert.True(t, c.Affirmative)
	assert.True(t, c.IsGenerateConfirmation())
}
