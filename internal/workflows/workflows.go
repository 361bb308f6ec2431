package workflows

import (
	"errors"
	"path/filepath"
	"strings"
	"time"

	"pdfagent/internal/activities"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const QueryGetIndexStatus = "GetIndexStatus"

// IndexDocumentWorkflow extracts, chunks, embeds and stores one uploaded
// document. Activities are never retried. A failure is returned as a
// non-retryable application error whose type is the failing stage.
func IndexDocumentWorkflow(ctx workflow.Context, input IndexDocumentInput) (IndexDocumentOutput, error) {
	filename := input.Filename
	if filename == "" {
		filename = filepath.Base(input.Path)
	}
	status := IndexStatus{
		Filename:    filename,
		Mode:        input.Mode,
		CurrentStep: "init",
		Status:      "processing",
		Steps:       map[string]string{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetIndexStatus, func() (IndexStatus, error) {
		return status, nil
	}); err != nil {
		return IndexDocumentOutput{}, err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	begin := func(stage string) {
		status.CurrentStep = stage
		status.Steps[stage] = "processing"
	}
	fail := func(stage string, err error) (IndexDocumentOutput, error) {
		status.Status = "failed"
		status.FailReason = err.Error()
		status.Steps[stage] = "failed"
		return IndexDocumentOutput{}, temporal.NewNonRetryableApplicationError(stageMessage(stage, err), stage, err)
	}

	begin(activities.StageExtract)
	var extractOut activities.ExtractDocumentOutput
	if err := workflow.ExecuteActivity(ctx, "ExtractDocumentActivity", activities.ExtractDocumentInput{Path: input.Path, Filename: filename}).Get(ctx, &extractOut); err != nil {
		return fail(activities.StageExtract, err)
	}
	status.DocumentID = extractOut.DocumentID
	status.Steps[activities.StageExtract] = "done"

	begin(activities.StageChunk)
	var chunkOut activities.ChunkDocumentOutput
	if err := workflow.ExecuteActivity(ctx, "ChunkDocumentActivity", activities.ChunkDocumentInput{
		DocumentID:   extractOut.DocumentID,
		Filename:     extractOut.Filename,
		Text:         extractOut.Text,
		PageOffsets:  extractOut.PageOffsets,
		PageNumbers:  extractOut.PageNumbers,
		ChunkSize:    input.ChunkSize,
		ChunkOverlap: input.ChunkOverlap,
	}).Get(ctx, &chunkOut); err != nil {
		return fail(activities.StageChunk, err)
	}
	status.Steps[activities.StageChunk] = "done"

	begin(activities.StageEmbed)
	var embedOut activities.EmbedChunksOutput
	if err := workflow.ExecuteActivity(ctx, "EmbedChunksActivity", activities.EmbedChunksInput{
		Operation: "embed",
		Chunks:    chunkOut.Chunks,
	}).Get(ctx, &embedOut); err != nil {
		return fail(activities.StageEmbed, err)
	}
	status.Steps[activities.StageEmbed] = "done"

	begin(activities.StageStore)
	var storeOut activities.StoreChunksOutput
	if err := workflow.ExecuteActivity(ctx, "StoreChunksActivity", activities.StoreChunksInput{
		Collection: input.Collection,
		Mode:       input.Mode,
		Chunks:     chunkOut.Chunks,
		Vectors:    embedOut.Vectors,
	}).Get(ctx, &storeOut); err != nil {
		return fail(activities.StageStore, err)
	}
	status.Steps[activities.StageStore] = "done"

	status.CurrentStep = "done"
	status.Status = "indexed"
	return IndexDocumentOutput{
		DocumentID: extractOut.DocumentID,
		Filename:   extractOut.Filename,
		Collection: storeOut.Collection,
		Pages:      extractOut.Pages,
		Chunks:     len(chunkOut.Chunks),
		Total:      storeOut.Total,
		Provider:   embedOut.ProviderName,
		Model:      embedOut.Model,
	}, nil
}

// stageMessage keeps the innermost cause readable instead of the nested
// activity error chain.
func stageMessage(stage string, err error) string {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return stage + ": " + appErr.Message()
	}
	return stage + ": " + err.Error()
}

// WorkflowID names an index run; uploads of the same file get distinct runs.
func WorkflowID(filename, runID string) string {
	return "index-" + sanitizeID(filepath.Base(filename)) + "-" + runID
}

func sanitizeID(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "_", "-")
	s = strings.ReplaceAll(s, ".", "-")
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, " ", "-")
	return s
}
