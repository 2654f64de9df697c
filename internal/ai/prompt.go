package ai

import (
	"fmt"
	"strings"

	"scribely/internal/model"
)

// Task is one post-processing step: a fixed instruction applied to a whole
// transcript, producing one artifact of Kind.
type Task struct {
	Kind        model.ArtifactKind `json:"kind"`
	Title       string             `json:"title"`
	Instruction string             `json:"instruction"`
}

const groundRules = `Work only from the transcript you are given.
Do not invent names, numbers, dates or commitments that are not in it.
Answer in the language of the transcript. Format the answer as Markdown.`

// Tasks lists the available post-processing tasks in display order.
var Tasks = []Task{
	{
		Kind:  model.KindCleaned,
		Title: "Cleaned transcript",
		Instruction: `You clean up raw speech-to-text output.
Fix recognition errors, misheard technical terms and proper names, stutters and missing punctuation.
Split the text into readable paragraphs. Keep the speaker's meaning, tone and wording wherever it is not an error.
Do not summarize and do not add content. Return only the cleaned transcript.
` + groundRules,
	},
	{
		Kind:  model.KindAnalysis,
		Title: "Analysis",
		Instruction: `You analyze recorded conversations.
Classify the recording as a meeting, a lecture or a personal note, then describe its main topics,
the positions taken, decisions made, open questions and any risks raised.
` + groundRules,
	},
	{
		Kind:  model.KindSummary,
		Title: "Summary",
		Instruction: `You summarize recordings.
Write a short title line followed by at most five bullet points covering the main content.
` + groundRules,
	},
	{
		Kind:  model.KindActionItems,
		Title: "Action items",
		Instruction: `You extract action items from recordings.
List every concrete task, with its owner and deadline when they are stated, as a Markdown checklist.
If there are none, say so in one line.
` + groundRules,
	},
	{
		Kind:  model.KindQuotes,
		Title: "Quotes",
		Instruction: `You pick notable quotes from recordings.
Return up to ten verbatim quotes that best capture key ideas, each as a Markdown blockquote.
Quotes must appear word for word in the transcript.
` + groundRules,
	},
}

// LookupTask returns the task for kind.
func LookupTask(kind model.ArtifactKind) (Task, bool) {
	for _, t := range Tasks {
		if t.Kind == kind {
			return t, true
		}
	}
	return Task{}, false
}

// ParseKinds validates caller-selected task names. Each entry may itself be a
// comma-separated list. Duplicates are dropped and the first-seen order is kept.
func ParseKinds(names []string) ([]model.ArtifactKind, error) {
	var kinds []model.ArtifactKind
	seen := make(map[model.ArtifactKind]bool)
	for _, raw := range names {
		for _, name := range strings.Split(raw, ",") {
			name = strings.ToLower(strings.TrimSpace(name))
			if name == "" {
				continue
			}
			kind := model.ArtifactKind(name)
			if _, ok := LookupTask(kind); !ok {
				return nil, fmt.Errorf("unknown task %q", name)
			}
			if !seen[kind] {
				seen[kind] = true
				kinds = append(kinds, kind)
			}
		}
	}
	return kinds, nil
}

const queryInstruction = `You answer questions about a collection of transcribed recordings.
The user message holds the stored fields of one or more records followed by an instruction.
Follow the instruction using only that data. When the data does not contain the answer, say so plainly.
Format the answer as Markdown.`

// buildFieldDump renders the selected fields of each record, one block per
// record, skipping fields that are absent.
func buildFieldDump(records []model.Record, fields []string) string {
	var b strings.Builder
	for i, r := range records {
		fmt.Fprintf(&b, "=== Record %d (id: %s, created: %s, file: %s) ===\n",
			i+1, r.ID, r.CreatedAt.UTC().Format("2006-01-02 15:04:05 MST"), r.Filename)
		for _, f := range fields {
			text, ok := r.Field(f)
			if !ok {
				continue
			}
			fmt.Fprintf(&b, "--- %s ---\n%s\n", f, strings.TrimSpace(text))
		}
		b.WriteString("\n")
	}
	return b.String()
}
