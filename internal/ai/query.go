package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"scribely/internal/model"
)

var (
	errUnknownTask = errors.New("unknown task")

	// ErrEmptyInstruction is returned by Ask when the instruction is blank.
	ErrEmptyInstruction = errors.New("instruction is required")
	// ErrNoRecords is returned by Ask when there is nothing to query.
	ErrNoRecords = errors.New("no records to query")
)

// Query is an ad-hoc instruction over selected stored fields.
type Query struct {
	Instruction string
	Fields      []string
}

// Normalize trims the instruction, validates field names and defaults the
// selection to every queryable field.
func (q *Query) Normalize() error {
	q.Instruction = strings.TrimSpace(q.Instruction)
	if q.Instruction == "" {
		return ErrEmptyInstruction
	}

	var fields []string
	seen := make(map[string]bool)
	for _, raw := range q.Fields {
		for _, f := range strings.Split(raw, ",") {
			f = strings.ToLower(strings.TrimSpace(f))
			if f == "" || seen[f] {
				continue
			}
			if !isQueryField(f) {
				return fmt.Errorf("unknown field %q", f)
			}
			seen[f] = true
			fields = append(fields, f)
		}
	}
	if len(fields) == 0 {
		fields = append(fields, model.QueryFields...)
	}
	q.Fields = fields
	return nil
}

func isQueryField(name string) bool {
	for _, f := range model.QueryFields {
		if f == name {
			return true
		}
	}
	return false
}

// Ask answers q over records and returns the response as an
// ad_hoc_query_result artifact.
func (r *Runner) Ask(ctx context.Context, q Query, records []model.Record) (model.Artifact, error) {
	if err := q.Normalize(); err != nil {
		return model.Artifact{}, err
	}
	if len(records) == 0 {
		return model.Artifact{}, ErrNoRecords
	}

	dump := buildFieldDump(records, q.Fields)
	content := dump + "Instruction: " + q.Instruction

	r.Logger.Info("Running ad-hoc query",
		zap.Int("records", len(records)),
		zap.Strings("fields", q.Fields),
		zap.Int("context_length", len(dump)))

	text, err := r.generate(ctx, model.KindQuery, queryInstruction, content)
	if err != nil {
		return model.Artifact{}, err
	}
	return model.Artifact{Kind: model.KindQuery, Text: text}, nil
}
