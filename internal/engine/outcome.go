package engine

import "github.com/morf3uzzz/second-brain-telegram-bot/internal/model"

// OutcomeKind discriminates the result of handling one utterance or reply.
type OutcomeKind string

const (
	// OutcomeCommitted means one or more rows were written to the store.
	OutcomeCommitted OutcomeKind = "committed"
	// OutcomeNeedsInput means the engine is waiting for a free-text reply
	// or a choice before the active intake can proceed.
	OutcomeNeedsInput OutcomeKind = "needs_input"
	// OutcomeNeedsConfirmation means the engine found a near-duplicate and
	// is waiting for an add-anyway/discard decision.
	OutcomeNeedsConfirmation OutcomeKind = "needs_confirmation"
	// OutcomeAnswer carries the ask-path response text.
	OutcomeAnswer OutcomeKind = "answer"
	// OutcomeCandidateList carries ranked delete candidates.
	OutcomeCandidateList OutcomeKind = "candidates"
	// OutcomeCancelled means the user aborted and the session is idle again.
	OutcomeCancelled OutcomeKind = "cancelled"
	// OutcomeFailed means the utterance could not be processed.
	OutcomeFailed OutcomeKind = "failed"
)

// Choice data values understood by HandleChoice. The transport uses them
// verbatim as callback payloads.
const (
	ChoiceSkip           = "req:skip"
	ChoiceCancel         = "req:cancel"
	ChoicePriorityLow    = "req:priority:low"
	ChoicePriorityMedium = "req:priority:medium"
	ChoicePriorityHigh   = "req:priority:high"
	ChoiceDuplicateAdd   = "dup:add"
	ChoiceDuplicateSkip  = "dup:skip"
	ChoiceCategoryPrefix = "cat:pick:"
	ChoiceCategoryCancel = "cat:cancel"
	ChoiceDeletePrefix   = "del:pick:"
	ChoiceDeleteCancel   = "del:cancel"
	ChoiceNoteSave       = "note:save"
	ChoiceNoteCancel     = "note:cancel"
)

// Choice is one button offered alongside a prompt.
type Choice struct {
	Label string
	Data  string
}

// Outcome is the tagged result returned by every engine entry point. Which
// fields are populated depends on Kind.
type Outcome struct {
	Kind       OutcomeKind
	Category   string
	Summary    string
	Lines      []string
	Prompt     string
	Preview    string
	Choices    []Choice
	Answer     string
	Candidates []model.DeleteCandidate
	Reason     string
}

func committed(category, summary string) Outcome {
	return Outcome{Kind: OutcomeCommitted, Category: category, Summary: summary}
}

func multiCommitted(lines []string) Outcome {
	return Outcome{Kind: OutcomeCommitted, Lines: lines}
}

func needsInput(prompt string, choices ...Choice) Outcome {
	return Outcome{Kind: OutcomeNeedsInput, Prompt: prompt, Choices: choices}
}

func needsConfirmation(preview string, choices ...Choice) Outcome {
	return Outcome{Kind: OutcomeNeedsConfirmation, Preview: preview, Choices: choices}
}

func answered(text string) Outcome {
	return Outcome{Kind: OutcomeAnswer, Answer: text}
}

func cancelled() Outcome {
	return Outcome{Kind: OutcomeCancelled}
}

func failed(reason string) Outcome {
	return Outcome{Kind: OutcomeFailed, Reason: reason}
}
