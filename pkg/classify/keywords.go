package classify

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// complexityKeywords are phrases whose presence is authoritative: the
// request needs tool access, no verification call required. Grouped by
// the capability they imply.
var complexityKeywords = []string{
	// tool / code execution
	"run code", "execute code", "run this script", "run a script",
	"run the tests", "execute the script", "compile", "install",
	// media generation
	"generate an image", "create an image", "generate a video",
	"create a video", "draw a picture", "generate audio",
	"text to speech",
	// web / browser / API interaction
	"web search", "search the web", "scrape", "crawl", "browse",
	"call the api", "api request", "http request", "download",
	"take a screenshot",
	// file operations
	"create a file", "write a file", "save to file", "read the file",
	"delete the file", "unzip", "edit the file",
}

// interactionVerbs pair with a URL to force the agent path; URL
// interaction needs a browser or HTTP tooling even when the request
// reads as conversational.
var interactionVerbs = []string{
	"visit", "open", "test", "click", "submit", "fetch", "screenshot",
	"navigate", "browse", "check", "load", "scrape", "crawl", "fill",
}

// complexityVerbs disqualify the trivial-greeting short-circuit: a
// short message carrying one of these still goes through verification.
var complexityVerbs = []string{
	"run", "execute", "install", "download", "build", "deploy",
	"create", "generate", "write", "fetch", "search", "open",
	"scrape", "test", "compile", "browse",
}

// taskVocabulary marks prompts that deserve a real category decision
// rather than the short-text fast heuristic.
var taskVocabulary = []string{
	"write", "implement", "prove", "solve", "story", "analyze",
	"code", "function", "essay", "poem", "calculate", "derive",
	"design", "debug", "refactor", "explain",
}

var urlPattern = regexp.MustCompile(`(?i)\bhttps?://\S+|\bwww\.\S+`)

const trivialMaxLen = 100

// matchKeywords returns the complexity keywords present in the text,
// in registration order. Matching is case-insensitive with word
// boundaries on both sides of the phrase.
func matchKeywords(text string) []string {
	lower := strings.ToLower(text)
	var matched []string
	for _, kw := range complexityKeywords {
		if containsPhrase(lower, kw) {
			matched = append(matched, kw)
		}
	}
	return matched
}

// hasURLInteraction reports whether the text pairs a URL with an
// interaction verb.
func hasURLInteraction(text string) bool {
	if !urlPattern.MatchString(text) {
		return false
	}
	lower := strings.ToLower(text)
	for _, verb := range interactionVerbs {
		if containsPhrase(lower, verb) {
			return true
		}
	}
	return false
}

// isTrivial reports whether a short text contains no complexity-adjacent
// verbs and may skip verification. Pure latency optimization.
func isTrivial(text string) bool {
	if utf8.RuneCountInString(text) > trivialMaxLen {
		return false
	}
	lower := strings.ToLower(text)
	for _, verb := range complexityVerbs {
		if containsPhrase(lower, verb) {
			return false
		}
	}
	return true
}

// isSimpleText reports whether a short text carries none of the task
// vocabulary and can be served by the simplest model family.
func isSimpleText(text string) bool {
	if utf8.RuneCountInString(text) > trivialMaxLen {
		return false
	}
	lower := strings.ToLower(text)
	for _, word := range taskVocabulary {
		if containsPhrase(lower, word) {
			return false
		}
	}
	return true
}

// containsPhrase checks for the phrase with word boundaries on both
// sides. Both arguments must already be lowercase.
func containsPhrase(text, phrase string) bool {
	from := 0
	for {
		idx := strings.Index(text[from:], phrase)
		if idx == -1 {
			return false
		}
		idx += from
		end := idx + len(phrase)
		beforeOK := idx == 0 || !isWordChar(text[idx-1])
		afterOK := end == len(text) || !isWordChar(text[end])
		if beforeOK && afterOK {
			return true
		}
		from = idx + 1
	}
}

func isWordChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_'
}
