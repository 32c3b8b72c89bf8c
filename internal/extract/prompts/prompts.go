// Package prompts builds the five (system, user) prompt pairs the
// extractor sends to a provider. Each builder is a plain string
// concatenation, grounded on the teacher's BuildObservationPrompt /
// BuildSummaryPrompt style (internal/worker/sdk in the reference
// pack): a short fixed system prompt plus a user prompt assembled from
// truncated, labeled sections.
package prompts

import "strings"

// maxTranscriptChars bounds how much of a turn transcript is folded
// into a prompt; mirrors the teacher's truncate-long-content guard.
const maxTranscriptChars = 12000

// truncate mirrors the teacher's truncate helper: cut to maxLen and
// append a marker, never silently drop without saying so.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "... (truncated)"
}

const extractionSystemPrompt = `You are a memory extraction agent. Given a transcript of one conversation turn, identify durable facts worth remembering for future sessions: architecture decisions, preferences, error/solution pairs, progress, and similar. Respond with a JSON array of objects, each {"memory": "<fact text>", "type": "<memory type>"}. Valid types: project-brief, architecture, tech-context, product-context, session-summary, progress, project-config, error-solution, preference, learned-pattern, conversation. Respond with JSON only, no prose, no markdown fences.`

// Extraction builds the normal per-turn extraction prompt.
func Extraction(transcript string) (system, user string) {
	var b strings.Builder
	b.WriteString("Transcript:\n")
	b.WriteString(truncate(transcript, maxTranscriptChars))
	b.WriteString("\n\nExtract durable facts as a JSON array.")
	return extractionSystemPrompt, b.String()
}

const initExtractionSystemPrompt = `You are a memory extraction agent seeding a new project's memory from its source files. Given concatenated README, manifest, and config file contents, identify durable project facts: what the project is, its architecture, tech stack, and configuration conventions. Respond with a JSON array of objects, each {"memory": "<fact text>", "type": "<memory type>"}. Valid types: project-brief, architecture, tech-context, product-context, project-config. Respond with JSON only, no prose, no markdown fences.`

// InitExtraction builds the project-seeding prompt from concatenated
// project files.
func InitExtraction(files string) (system, user string) {
	var b strings.Builder
	b.WriteString("Project files:\n")
	b.WriteString(truncate(files, maxTranscriptChars))
	b.WriteString("\n\nExtract project facts as a JSON array.")
	return initExtractionSystemPrompt, b.String()
}

const summarySystemPrompt = `You are a session summarization agent. Given a window of recent conversation messages, produce exactly one compact summary fact describing what the session accomplished. Respond with a JSON array containing exactly one object {"memory": "<summary text>", "type": "session-summary"}. Respond with JSON only, no prose, no markdown fences.`

// Summary builds the session-summary prompt from a window of messages.
func Summary(messages string) (system, user string) {
	var b strings.Builder
	b.WriteString("Messages:\n")
	b.WriteString(truncate(messages, maxTranscriptChars))
	b.WriteString("\n\nProduce exactly one session-summary fact as a JSON array.")
	return summarySystemPrompt, b.String()
}

const contradictionSystemPrompt = `You are a contradiction detector for a memory store. Given a new memory and a list of candidate older memories (with ids), determine which candidates the new memory makes obsolete — i.e. which ones it logically supersedes or contradicts, not merely relates to. Respond with a JSON array of the superseded candidate ids (strings). An empty array means none are superseded. Respond with JSON only, no prose, no markdown fences.`

// Candidate is one existing memory offered to the contradiction
// prompt.
type Candidate struct {
	ID     string
	Memory string
}

// Contradiction builds the contradiction-detection prompt.
func Contradiction(newMemory string, candidates []Candidate) (system, user string) {
	var b strings.Builder
	b.WriteString("New memory:\n")
	b.WriteString(newMemory)
	b.WriteString("\n\nCandidate memories:\n")
	for _, c := range candidates {
		b.WriteString("- id=")
		b.WriteString(c.ID)
		b.WriteString(": ")
		b.WriteString(truncate(c.Memory, 500))
		b.WriteString("\n")
	}
	b.WriteString("\nReturn the ids the new memory supersedes, as a JSON array of strings.")
	return contradictionSystemPrompt, b.String()
}

const condenseSystemPrompt = `You are a memory condensation agent. Given a verbose session summary, produce exactly one compact, generalizable learned-pattern fact capturing the durable lesson. Respond with a JSON array containing exactly one object {"memory": "<condensed text>", "type": "learned-pattern"}. Respond with JSON only, no prose, no markdown fences.`

// Condense builds the condensation prompt for an overflowing
// session-summary window.
func Condense(summary string) (system, user string) {
	var b strings.Builder
	b.WriteString("Session summary:\n")
	b.WriteString(truncate(summary, maxTranscriptChars))
	b.WriteString("\n\nProduce one condensed learned-pattern fact as a JSON array.")
	return condenseSystemPrompt, b.String()
}
