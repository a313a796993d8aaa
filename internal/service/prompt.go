package service

import (
	"fmt"
	"strings"

	"ragtutor/internal/domain"
	"ragtutor/internal/vectorstore"
)

const (
	// previewRunes bounds the chunk previews attached to an Answer.
	previewRunes = 200
	// excerptRunes bounds the context excerpt quoted by the fallback answer.
	excerptRunes = 500
)

// systemPrompt constrains the model to the supplied context only.
const systemPrompt = `You are an expert tutor teaching students from their study material.

CRITICAL RULES:
- ONLY use information from the provided context below
- DO NOT add any information from your general knowledge
- DO NOT make up or assume any facts
- If the answer is NOT in the provided context, clearly state: "I don't have that information in the current material."
- Always cite which context section you're using when possible

Your role:
- Explain concepts clearly and simply using ONLY the provided context
- Be encouraging and supportive
- Keep answers concise but complete (2-4 paragraphs)
- If you're unsure, say so rather than guessing`

// fallbackPrefix opens every degraded-mode answer.
const fallbackPrefix = "I'm having trouble connecting to the AI service right now."

// userPrompt assembles the ordinal-labeled context block and the question.
func userPrompt(question string, results []vectorstore.Result[domain.Chunk]) string {
	labeled := make([]string, 0, len(results))
	for i, r := range results {
		labeled = append(labeled, fmt.Sprintf("Context %d:\n%s", i+1, r.Meta.Text))
	}

	var b strings.Builder
	b.WriteString("Context from the study material:\n\n")
	b.WriteString(strings.Join(labeled, "\n\n"))
	b.WriteString("\n\n---\n\nStudent's Question: ")
	b.WriteString(question)
	b.WriteString("\n\nInstructions: Answer this question using ONLY the information provided in the context above. Do not use any external knowledge. If the context doesn't contain the answer, say \"I don't have that information in the current material.\"")
	return b.String()
}

// FallbackAnswer synthesizes the degraded-mode answer from already retrieved
// context. It is a pure function and never performs a network call. With an
// empty result set the excerpt block is omitted.
func FallbackAnswer(question string, results []vectorstore.Result[domain.Chunk]) string {
	var b strings.Builder
	b.WriteString(fallbackPrefix)
	if len(results) > 0 {
		b.WriteString("\n\nHowever, based on the relevant section from your study material:\n\n")
		b.WriteString(truncateRunes(results[0].Meta.Text, excerptRunes))
		b.WriteString("...")
	}
	b.WriteString("\n\nThis should help answer your question about: ")
	b.WriteString(question)
	return b.String()
}
