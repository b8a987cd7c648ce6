package speech

import (
	"math/rand/v2"
	"regexp"
	"strings"
)

// Status utterances are spoken verbatim.
const (
	StatusListening  = "Listening..."
	StatusProcessing = "Processing..."
	StatusResponding = "Responding..."
)

var starters = []string{"Hmm, ", "Let's see, ", "Okay, ", "Alright, ", "Sure, ", "Got it, "}

type contraction struct {
	re   *regexp.Regexp
	with string
}

var contractions = func() []contraction {
	pairs := [][2]string{
		{"I am", "I'm"}, {"I have", "I've"}, {"I will", "I'll"},
		{"cannot", "can't"}, {"could not", "couldn't"}, {"did not", "didn't"},
		{"does not", "doesn't"}, {"do not", "don't"}, {"had not", "hadn't"},
		{"has not", "hasn't"}, {"have not", "haven't"}, {"is not", "isn't"},
		{"it is", "it's"}, {"should not", "shouldn't"}, {"that is", "that's"},
		{"they are", "they're"}, {"was not", "wasn't"}, {"were not", "weren't"},
		{"what is", "what's"}, {"will not", "won't"}, {"would not", "wouldn't"},
		{"you are", "you're"}, {"you have", "you've"}, {"you will", "you'll"},
	}
	out := make([]contraction, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, contraction{re: regexp.MustCompile(`(?i)\b` + p[0] + `\b`), with: p[1]})
	}
	return out
}()

// Conversationalize makes text sound less formal: contractions always, and
// a conversation starter 30% of the time. Status and error messages are
// left alone.
func Conversationalize(text string, rng *rand.Rand) string {
	switch text {
	case StatusListening, StatusProcessing, StatusResponding:
		return text
	}
	if strings.HasPrefix(text, "Error:") || strings.HasPrefix(text, "Sorry, I") {
		return text
	}

	if rng != nil && rng.Float64() < 0.3 && !hasStarter(text) {
		text = starters[rng.IntN(len(starters))] + text
	}
	for _, c := range contractions {
		text = c.re.ReplaceAllString(text, c.with)
	}
	return text
}

func hasStarter(text string) bool {
	for _, s := range starters {
		if strings.HasPrefix(text, s) {
			return true
		}
	}
	return false
}
