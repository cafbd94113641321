package signal

import (
	"context"
	"strings"

	"github.com/dreyhq/drey/pkg/conversation"
)

// KeywordAnalyzer is a deterministic, dependency-free Analyzer built on
// keyword heuristics. It is the shipped default when no external extraction
// service is configured, and the reference implementation tests run against.
type KeywordAnalyzer struct{}

// NewKeywordAnalyzer creates the heuristic analyzer.
func NewKeywordAnalyzer() *KeywordAnalyzer {
	return &KeywordAnalyzer{}
}

var (
	resolutionMarkers = []string{"fixed", "resolved", "done", "shipped", "sorted", "working now"}
	bugMarkers        = []string{"bug", "broken", "error", "failing", "crash", "down", "not working"}
	ownershipMarkers  = []string{"who owns", "who can", "can someone", "can anyone", "anyone know", "need someone", "who is responsible", "whose"}
	questionStarters  = []string{"who", "what", "when", "where", "why", "how", "is ", "are ", "can ", "could ", "should ", "does ", "do ", "did "}

	// topicMarkers maps a topic label to the words that imply it. First
	// match wins in iteration order below.
	topicMarkers = map[string][]string{
		"auth":     {"auth", "login", "oauth", "token", "sso", "password"},
		"infra":    {"deploy", "infra", "kubernetes", "server", "pipeline", "ci", "build"},
		"payments": {"payment", "billing", "invoice", "charge", "refund"},
		"api":      {"api", "endpoint", "request", "response", "webhook"},
		"ui":       {"ui", "frontend", "button", "page", "css", "layout"},
	}
	topicOrder = []string{"auth", "infra", "payments", "api", "ui"}
)

// Analyze classifies one message by keyword matching. It never fails; the
// error return exists to satisfy the Analyzer contract.
func (a *KeywordAnalyzer) Analyze(_ context.Context, message string, _ []string) (conversation.BehavioralSignal, error) {
	text := strings.ToLower(strings.TrimSpace(message))
	sig := DefaultSignal()
	if text == "" {
		return sig, nil
	}

	switch {
	case containsAny(text, resolutionMarkers):
		sig.Intent = conversation.IntentResolution
		sig.Confidence = 0.8
	case isQuestion(text):
		sig.Intent = conversation.IntentQuestion
		sig.Confidence = 0.8
		sig.NeedsOwner = containsAny(text, ownershipMarkers)
	case containsAny(text, bugMarkers):
		sig.Intent = conversation.IntentBugReport
		sig.Confidence = 0.7
	}

	for _, topic := range topicOrder {
		if containsAny(text, topicMarkers[topic]) {
			sig.Topic = topic
			break
		}
	}

	sig.Uncertainty = 1 - sig.Confidence
	return sig, nil
}

func isQuestion(text string) bool {
	if strings.Contains(text, "?") {
		return true
	}
	for _, starter := range questionStarters {
		if strings.HasPrefix(text, starter) {
			return true
		}
	}
	return false
}

func containsAny(text string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}
