package service

import (
	"context"
	"errors"
	"fmt"

	"pdfagent/internal/activities"
	"pdfagent/internal/workflows"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	tclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
)

// Runner executes the indexing steps for one uploaded document. Failures are
// returned as *IndexError.
type Runner interface {
	Index(ctx context.Context, in workflows.IndexDocumentInput) (workflows.IndexDocumentOutput, error)
}

// LocalRunner calls the activities in process, in workflow order.
type LocalRunner struct {
	acts *activities.Activities
}

func NewLocalRunner(acts *activities.Activities) *LocalRunner {
	return &LocalRunner{acts: acts}
}

func (r *LocalRunner) Index(ctx context.Context, in workflows.IndexDocumentInput) (workflows.IndexDocumentOutput, error) {
	extracted, err := r.acts.ExtractDocumentActivity(ctx, activities.ExtractDocumentInput{Path: in.Path, Filename: in.Filename})
	if err != nil {
		return workflows.IndexDocumentOutput{}, &IndexError{Stage: activities.StageExtract, Err: err}
	}
	chunked, err := r.acts.ChunkDocumentActivity(ctx, activities.ChunkDocumentInput{
		DocumentID:   extracted.DocumentID,
		Filename:     extracted.Filename,
		Text:         extracted.Text,
		PageOffsets:  extracted.PageOffsets,
		PageNumbers:  extracted.PageNumbers,
		ChunkSize:    in.ChunkSize,
		ChunkOverlap: in.ChunkOverlap,
	})
	if err != nil {
		return workflows.IndexDocumentOutput{}, &IndexError{Stage: activities.StageChunk, Err: err}
	}
	embedded, err := r.acts.EmbedChunksActivity(ctx, activities.EmbedChunksInput{Operation: "embed", Chunks: chunked.Chunks})
	if err != nil {
		return workflows.IndexDocumentOutput{}, &IndexError{Stage: activities.StageEmbed, Err: err}
	}
	stored, err := r.acts.StoreChunksActivity(ctx, activities.StoreChunksInput{
		Collection: in.Collection,
		Mode:       in.Mode,
		Chunks:     chunked.Chunks,
		Vectors:    embedded.Vectors,
	})
	if err != nil {
		return workflows.IndexDocumentOutput{}, &IndexError{Stage: activities.StageStore, Err: err}
	}
	return workflows.IndexDocumentOutput{
		DocumentID: extracted.DocumentID,
		Filename:   extracted.Filename,
		Collection: stored.Collection,
		Pages:      extracted.Pages,
		Chunks:     len(chunked.Chunks),
		Total:      stored.Total,
		Provider:   embedded.ProviderName,
		Model:      embedded.Model,
	}, nil
}

// TemporalRunner runs IndexDocumentWorkflow on a worker and waits for it.
// The worker must share the index directory with this process.
type TemporalRunner struct {
	client    tclient.Client
	taskQueue string
}

func NewTemporalRunner(c tclient.Client, taskQueue string) *TemporalRunner {
	return &TemporalRunner{client: c, taskQueue: taskQueue}
}

func (r *TemporalRunner) Index(ctx context.Context, in workflows.IndexDocumentInput) (workflows.IndexDocumentOutput, error) {
	run, err := r.client.ExecuteWorkflow(ctx, tclient.StartWorkflowOptions{
		ID:                    workflows.WorkflowID(in.Filename, uuid.NewString()),
		TaskQueue:             r.taskQueue,
		WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
	}, workflows.IndexDocumentWorkflow, in)
	if err != nil {
		return workflows.IndexDocumentOutput{}, &IndexError{Stage: "start", Err: fmt.Errorf("start index workflow: %w", err)}
	}
	var out workflows.IndexDocumentOutput
	if err := run.Get(ctx, &out); err != nil {
		stage := "workflow"
		var appErr *temporal.ApplicationError
		if errors.As(err, &appErr) && appErr.Type() != "" {
			stage = appErr.Type()
			err = errors.New(appErr.Message())
		}
		return workflows.IndexDocumentOutput{}, &IndexError{Stage: stage, Err: err}
	}
	return out, nil
}
