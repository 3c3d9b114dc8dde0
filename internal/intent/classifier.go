// Package intent classifies raw user messages into coarse control-flow
// intents. It is pure and synchronous: it decides what kind of turn this
// is, never what the plan contains (that is the gateway's job).
package intent

import (
	"regexp"
	"strings"
)

// Kind is the tagged classification of a message. Ambiguous input maps
// to Unclear rather than silently defaulting to one branch.
type Kind string

const (
	Affirmative     Kind = "affirmative"
	Negative        Kind = "negative"
	GenerateCommand Kind = "generate_command"
	Help            Kind = "help"
	ShowOverview    Kind = "show_overview"
	Unclear         Kind = "unclear"
)

// Classification carries every signal detected on a message. Kind is the
// primary tag; the booleans are kept because the controller combines
// them (negation suppresses an otherwise affirmative message).
type Classification struct {
	Kind         Kind
	Negation     bool
	Affirmative  bool
	GenerateCmd  bool
	Help         bool
	ShowOverview bool
}

// IsGenerateConfirmation reports whether this message should count as
// the user confirming a proposed plan.
func (c Classification) IsGenerateConfirmation() bool {
	return !c.Negation && (c.Affirmative || c.GenerateCmd)
}

var contractions = strings.NewReplacer(
	"let's", "lets",
	"that's", "thats",
	"it's", "its",
)

// Positive idioms that contain "no" but are not negations. Checked
// before the bare-negation match, which they override.
var positiveIdioms = []string{
	"no problem",
	"no worries",
	"no issues",
	"no concerns",
}

var (
	negationRe = regexp.MustCompile(`\b(dont|don't|not|stop|wait|cancel|never|no)\b`)

	affirmativeRe = regexp.MustCompile(`\b(yes|yeah|yep|yup|sure|ok|okay|perfect|great|absolutely|definitely)\b|sounds good|lets do it|lets go|go ahead|go for it|im comfortable|looks good|works for me`)

	// A generate verb followed by its target within the same clause
	// (no sentence punctuation between them).
	generateRe = regexp.MustCompile(`\b(generate|create|make)\b[^.!?;]*\b(plan|activity|it)\b`)

	helpRe = regexp.MustCompile(`what does it do|what do you do|how does .* work|how do you work|difference between quick and smart|whats the difference|what is the difference|how does this work|what can you do`)

	overviewRe = regexp.MustCompile(`show (me )?(the )?(plan|overview|proposal)( again)?|see (the )?(plan|overview) again|what was the plan|repeat (the )?(plan|overview)|show it again`)
)

// Classify maps a raw message to a Classification. Negation is detected
// first and, when present, suppresses an affirmative-looking message:
// "no, don't create it yet" must not read as confirmation.
func Classify(message string) Classification {
	text := normalize(message)

	c := Classification{
		Negation:     detectNegation(text),
		Affirmative:  affirmativeRe.MatchString(text),
		GenerateCmd:  generateRe.MatchString(text),
		Help:         helpRe.MatchString(text),
		ShowOverview: overviewRe.MatchString(text),
	}

	switch {
	case c.ShowOverview:
		c.Kind = ShowOverview
	case c.Help:
		c.Kind = Help
	case c.Negation:
		c.Kind = Negative
	case c.GenerateCmd:
		c.Kind = GenerateCommand
	case c.Affirmative:
		c.Kind = Affirmative
	default:
		c.Kind = Unclear
	}
	return c
}

// WantsChanges reports whether a message in the confirming state should
// send the dialogue back to gathering: an explicit negation, or a
// request to change or add something.
func WantsChanges(message string) bool {
	text := normalize(message)
	if detectNegation(text) {
		return true
	}
	return strings.Contains(text, "change") || strings.Contains(text, "add ")
}

func normalize(message string) string {
	text := strings.ToLower(strings.TrimSpace(message))
	text = strings.TrimRight(text, ".!?")
	return contractions.Replace(text)
}

func detectNegation(text string) bool {
	if !negationRe.MatchString(text) {
		return false
	}
	// An idiom exception only excuses the "no" it is part of; any other
	// negation word in the message still counts.
	stripped := text
	for _, idiom := range positiveIdioms {
		stripped = strings.ReplaceAll(stripped, idiom, "")
	}
	return negationRe.MatchString(stripped)
}
