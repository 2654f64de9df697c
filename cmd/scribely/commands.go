package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"scribely/internal/ai"
	"scribely/internal/apperr"
	"scribely/internal/model"
	"scribely/internal/pipeline"
	"scribely/internal/repository"
)

type TranscribeCmd struct {
	File      string   `arg:"" type:"existingfile" help:"Audio file to transcribe"`
	Task      []string `short:"t" help:"Post-processing task (cleaned, analysis, summary, action_items, quotes). Repeatable or comma-separated"`
	NoPersist bool     `help:"Do not write the record to the store"`
}

func (t *TranscribeCmd) Run(ctx *Context) error {
	tasks, err := ai.ParseKinds(t.Task)
	if err != nil {
		return err
	}

	f, err := os.Open(t.File)
	if err != nil {
		return err
	}
	defer f.Close()

	p := ctx.App.NewPipeline(!t.NoPersist)
	out, err := p.Process(ctx, pipeline.Input{
		Filename: filepath.Base(t.File),
		Body:     f,
		Tasks:    tasks,
	})
	if err != nil {
		return fmt.Errorf("%s failed: %w", apperr.Stage(err), err)
	}

	fmt.Println(out.Record.Transcript)
	for _, a := range out.Artifacts {
		fmt.Printf("\n## %s\n\n%s\n", a.Kind, a.Text)
	}

	fmt.Fprintf(os.Stderr, "\nsegments: %d", out.SegmentCount)
	if len(out.Gaps) > 0 {
		fmt.Fprintf(os.Stderr, ", untranscribed: %v", out.Gaps)
	}
	if out.Persisted {
		fmt.Fprintf(os.Stderr, ", record: %s", out.Record.ID)
	}
	fmt.Fprintln(os.Stderr)
	for _, fail := range out.Failures {
		fmt.Fprintf(os.Stderr, "warning: %s %s: %s\n", fail.Stage, fail.Kind, fail.Message)
	}
	return nil
}

type RecordsCmd struct {
	ID string `arg:"" optional:"" help:"Show one record in full"`
}

func (r *RecordsCmd) Run(ctx *Context) error {
	store := ctx.App.Records
	if store == nil {
		return errors.New("no record store available")
	}

	if r.ID != "" {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			return fmt.Errorf("invalid record id %q: %w", r.ID, err)
		}
		rec, err := store.GetByID(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("record %s not found", r.ID)
		}
		if err != nil {
			return err
		}
		printRecord(rec)
		return nil
	}

	records, err := store.List(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tFILE\tDURATION\tARTIFACTS")
	for _, rec := range records {
		kinds := make([]string, 0, len(model.PostProcessKinds))
		for _, a := range rec.Artifacts() {
			kinds = append(kinds, string(a.Kind))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			rec.ID,
			rec.CreatedAt.Local().Format(time.DateTime),
			rec.Filename,
			(time.Duration(rec.DurationMs) * time.Millisecond).Round(time.Second),
			strings.Join(kinds, ","))
	}
	return w.Flush()
}

func printRecord(rec *model.Record) {
	fmt.Printf("%s  %s  %s\n\n%s\n", rec.ID, rec.CreatedAt.Local().Format(time.DateTime), rec.Filename, rec.Transcript)
	for _, a := range rec.Artifacts() {
		fmt.Printf("\n## %s\n\n%s\n", a.Kind, a.Text)
	}
}

type QueryCmd struct {
	Instruction string   `arg:"" help:"Free-form instruction, e.g. \"list every deadline mentioned\""`
	Field       []string `short:"f" help:"Record field to include (transcript, cleaned, analysis, summary, action_items, quotes). Defaults to all"`
}

func (q *QueryCmd) Run(ctx *Context) error {
	runner := ctx.App.Querier()
	if runner == nil {
		return errors.New("no text-generation provider configured")
	}
	if ctx.App.Records == nil {
		return errors.New("no record store available")
	}

	records, err := ctx.App.Records.List(ctx)
	if err != nil {
		return err
	}

	artifact, err := runner.Ask(ctx, ai.Query{Instruction: q.Instruction, Fields: q.Field}, records)
	if err != nil {
		return err
	}
	fmt.Println(artifact.Text)
	return nil
}
