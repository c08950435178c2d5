package gateway

import "strings"

// Entry is the part of a gateway log line a Classifier looks at
type Entry struct {
	Msg   string
	Level string
	Raw   []byte // full line; only valid during the Classify call
}

// Classification says which counters an entry contributes to
type Classification struct {
	Inference bool
	Error     bool
}

// Classifier decides how a log entry is counted
type Classifier interface {
	Classify(Entry) Classification
}

// ClassifierFunc adapts a function to the Classifier interface
type ClassifierFunc func(Entry) Classification

// Classify calls f(e)
func (f ClassifierFunc) Classify(e Entry) Classification { return f(e) }

// SubstringClassifier is a loose heuristic over free-form messages: any
// message mentioning "inference" is a request, and an "error" level or any
// message mentioning "error" is an error. Both matches are case-sensitive.
var SubstringClassifier = ClassifierFunc(func(e Entry) Classification {
	return Classification{
		Inference: strings.Contains(e.Msg, "inference"),
		Error:     e.Level == "error" || strings.Contains(e.Msg, "error"),
	}
})
