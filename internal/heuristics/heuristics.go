// Package heuristics holds the lexical pre-filters that run before any LLM
// call: compound command detection, browser-named searches and generic
// searches. The lexicon is fixed and read-only.
//
// Terms match on word boundaries and case-insensitively, so "edge" does not
// fire inside "knowledge" and "and" does not fire inside "command".
package heuristics

import (
	"regexp"
	"strings"
)

// Lexicon. Order matters: extraction uses the first listed term present.
var (
	Browsers        = []string{"safari", "chrome", "firefox", "edge", "opera", "brave"}
	SearchTerms     = []string{"search", "look up", "find", "google"}
	NavigationTerms = []string{"go to", "visit", "open"}
	QuestionWords   = []string{"what", "how", "when", "where", "who", "why"}
	FillerWords     = []string{"for", "about", "the", "website", "page"}

	openVerbs = []string{"open", "launch"}
	typeVerbs = []string{"type", "search", "look up"}
	// submitWords make typed text end with Return.
	submitWords = []string{"search", "what", "how", "when", "where", "who", "why"}
)

const trimCutset = ".,?! "

var termPatterns = map[string]*regexp.Regexp{}

func init() {
	for _, list := range [][]string{Browsers, SearchTerms, NavigationTerms, QuestionWords, FillerWords, openVerbs, typeVerbs, submitWords, {"and"}} {
		for _, term := range list {
			if _, ok := termPatterns[term]; !ok {
				termPatterns[term] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`)
			}
		}
	}
}

func pattern(term string) *regexp.Regexp {
	if re, ok := termPatterns[term]; ok {
		return re
	}
	return regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`)
}

// Contains reports whether term occurs in text as a whole word or phrase.
func Contains(text, term string) bool {
	return pattern(term).MatchString(text)
}

// ContainsAny reports whether any of terms occurs in text.
func ContainsAny(text string, terms []string) bool {
	for _, t := range terms {
		if Contains(text, t) {
			return true
		}
	}
	return false
}

// after returns the text following the first occurrence of term.
func after(text, term string) (string, bool) {
	loc := pattern(term).FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	return strings.TrimSpace(text[loc[1]:]), true
}

// Kind tags the special case a command matched.
type Kind int

const (
	// None means the command goes to single-intent classification.
	None Kind = iota
	// Compound is "open X and type/search Y".
	Compound
	// BrowserSearch names a browser alongside a search or navigation term.
	BrowserSearch
	// GenericSearch is a search phrase without a browser.
	GenericSearch
)

func (k Kind) String() string {
	switch k {
	case Compound:
		return "compound"
	case BrowserSearch:
		return "browser_search"
	case GenericSearch:
		return "generic_search"
	default:
		return "none"
	}
}

// Match is the result of Detect.
type Match struct {
	Kind Kind
	// Browser is the capitalized browser name for BrowserSearch.
	Browser string
}

// Detect classifies text into a special case. Cases are checked in priority
// order: compound, then browser search, then generic search.
func Detect(text string) Match {
	if IsCompound(text) {
		return Match{Kind: Compound}
	}
	browser := FindBrowser(text)
	if browser != "" && (ContainsAny(text, SearchTerms) || ContainsAny(text, NavigationTerms)) {
		return Match{Kind: BrowserSearch, Browser: browser}
	}
	if browser == "" && ContainsAny(text, SearchTerms) {
		return Match{Kind: GenericSearch}
	}
	return Match{Kind: None}
}

// IsCompound is the compound command pre-filter: an open verb, a type or
// search verb and the conjunction "and".
func IsCompound(text string) bool {
	return ContainsAny(text, openVerbs) && ContainsAny(text, typeVerbs) && Contains(text, "and")
}

// FindBrowser returns the first lexicon browser named in text, capitalized,
// or "" when none is named.
func FindBrowser(text string) string {
	for _, b := range Browsers {
		if Contains(text, b) {
			return Capitalize(b)
		}
	}
	return ""
}

// IsBrowser reports whether an application name refers to a browser
// ("Google Chrome" counts).
func IsBrowser(appName string) bool {
	lower := strings.ToLower(appName)
	for _, b := range Browsers {
		if strings.Contains(lower, b) {
			return true
		}
	}
	return false
}

// WantsQuery reports whether a browser command carries something to type:
// a search term, a question word, or "go to"/"visit".
func WantsQuery(text string) bool {
	return ContainsAny(text, SearchTerms) || ContainsAny(text, QuestionWords) ||
		Contains(text, "go to") || Contains(text, "visit")
}

// IsQuestion reports whether text contains a question word.
func IsQuestion(text string) bool {
	return ContainsAny(text, QuestionWords)
}

// IsSearchLike reports whether text reads as a search: a search term or a
// question word.
func IsSearchLike(text string) bool {
	return ContainsAny(text, SearchTerms) || ContainsAny(text, QuestionWords)
}

// SubmitsTyping reports whether typing text should end with Return.
func SubmitsTyping(text string) bool {
	return ContainsAny(text, submitWords)
}

// ExtractSearchOrURL pulls the query or site out of a browser command. The
// browser name is removed, then the text after the first search term (or,
// failing that, the first navigation term) is kept, leading filler words are
// dropped and punctuation is trimmed. ok is false when no lead-in term is
// present. The result may still be empty.
func ExtractSearchOrURL(text, browser string) (query string, ok bool) {
	rest := text
	if browser != "" {
		rest = pattern(strings.ToLower(browser)).ReplaceAllString(rest, "")
	}

	var result string
	for _, term := range SearchTerms {
		if r, found := after(rest, term); found {
			result, ok = r, true
			break
		}
	}
	if result == "" {
		for _, term := range NavigationTerms {
			if r, found := after(rest, term); found {
				result, ok = r, true
				break
			}
		}
	}
	if !ok {
		return "", false
	}
	return clean(result), true
}

// StripSearchLeadIn returns the query of a generic search: the text after
// the first search term, cleaned. Text without a search term is returned
// trimmed.
func StripSearchLeadIn(text string) string {
	for _, term := range SearchTerms {
		if r, found := after(text, term); found {
			return clean(r)
		}
	}
	return strings.TrimSpace(text)
}

// clean drops leading filler words (each at most once, in lexicon order)
// and surrounding punctuation.
func clean(s string) string {
	s = strings.TrimSpace(s)
	for _, w := range FillerWords {
		if len(s) > len(w) && strings.EqualFold(s[:len(w)], w) && s[len(w)] == ' ' {
			s = strings.TrimLeft(s[len(w)+1:], " ")
		}
	}
	return strings.Trim(s, trimCutset)
}

// Capitalize upper-cases the first letter and lower-cases the rest.
func Capitalize(s string) string {
	if s == "" {
		return s
	}
	lower := strings.ToLower(s)
	return strings.ToUpper(lower[:1]) + lower[1:]
}
