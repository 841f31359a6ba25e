package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mindvault/mindvault/internal/note"
)

const answerPrompt = `You are a personal knowledge assistant. Answer the question using only the
provided notes. If the notes do not contain the answer, say so plainly.
Cite note paths when useful.

NOTES:
%s

QUESTION: %s

ANSWER:`

const summarizePrompt = `Summarize the following notes in a few short sentences. Keep concrete
names, dates, and decisions.

%s

SUMMARY:`

const extractFactsPrompt = `Extract personal facts from the note below. Return ONLY a JSON array,
no prose. Each element: {"category": "preference|contact|decision|goal|other",
"subject": "...", "content": "...", "confidence": 0.0-1.0}.
Return [] if there is nothing to extract.

NOTE:
%s

JSON:`

// AnswerQuestion answers a question grounded in the packed context.
func (c *Client) AnswerQuestion(ctx context.Context, question, packedContext string) (string, error) {
	if strings.TrimSpace(packedContext) == "" {
		return "I could not find anything relevant in your notes.", nil
	}
	return c.Complete(ctx, fmt.Sprintf(answerPrompt, packedContext, question))
}

// Summarize produces a short summary of the given text.
func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	return c.Complete(ctx, fmt.Sprintf(summarizePrompt, text))
}

type extractedFact struct {
	Category   string  `json:"category"`
	Subject    string  `json:"subject"`
	Content    string  `json:"content"`
	Confidence float64 `json:"confidence"`
}

// ExtractFacts asks the model for structured facts in a note. Malformed
// model output degrades to an empty slice with a warning; extraction is
// best-effort and must never fail a sync.
func (c *Client) ExtractFacts(ctx context.Context, docID, content string) ([]note.Fact, error) {
	raw, err := c.Complete(ctx, fmt.Sprintf(extractFactsPrompt, content))
	if err != nil {
		return nil, err
	}

	cleaned := stripCodeFences(raw)
	var extracted []extractedFact
	if err := json.Unmarshal([]byte(cleaned), &extracted); err != nil {
		slog.Warn("fact extraction returned malformed JSON, ignoring",
			"doc_id", docID, "error", err)
		return []note.Fact{}, nil
	}

	facts := make([]note.Fact, 0, len(extracted))
	for _, e := range extracted {
		if strings.TrimSpace(e.Content) == "" {
			continue
		}
		category := note.FactCategory(e.Category)
		switch category {
		case note.FactPreference, note.FactContact, note.FactDecision, note.FactGoal:
		default:
			category = note.FactOther
		}
		confidence := e.Confidence
		if confidence < 0 || confidence > 1 {
			confidence = 0.5
		}
		facts = append(facts, note.Fact{
			DocumentID: docID,
			Category:   category,
			Subject:    strings.TrimSpace(e.Subject),
			Content:    strings.TrimSpace(e.Content),
			Confidence: confidence,
		})
	}
	return facts, nil
}

// stripCodeFences unwraps a markdown code fence and trims surrounding
// prose, keeping only the outermost JSON array or object. Models wrap JSON
// output in fences and chatter despite instructions.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.IndexAny(s, "[{")
	if start < 0 {
		return s
	}
	var end int
	if s[start] == '[' {
		end = strings.LastIndex(s, "]")
	} else {
		end = strings.LastIndex(s, "}")
	}
	if end <= start {
		return s
	}
	return s[start : end+1]
}
