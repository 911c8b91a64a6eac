package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Kenny1338/better-paperless-ngx/internal/bootstrap"
	"github.com/Kenny1338/better-paperless-ngx/internal/core/domain"
	"github.com/Kenny1338/better-paperless-ngx/internal/core/usecase"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var agentic bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "process <document-id>",
		Short: "Enrich a single document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseDocumentID(args[0])
			if err != nil {
				return err
			}
			return ctx.withApp(cmd.Context(), func(app *bootstrap.App) error {
				result := app.Processor(agentic).Process(cmd.Context(), id)
				return printResult(cmd, result, jsonOutput)
			})
		},
	}

	cmd.Flags().BoolVar(&agentic, "agentic", false, "Use the single-call agentic strategy")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result as JSON")
	return cmd
}

func newBatchCommand(ctx *commandContext) *cobra.Command {
	var filters []string
	var all bool
	var limit int
	var concurrency int
	var agentic bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Enrich every document matching the filters",
		Long: "Enrich every document matching the filters. Documents that already carry " +
			"the processed tag are left out unless --all is set.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := parseFilters(filters)
			if err != nil {
				return err
			}
			return ctx.withApp(cmd.Context(), func(app *bootstrap.App) error {
				filter := domain.DocumentFilter{Query: query}
				if !all {
					filter, err = usecase.ExcludeProcessed(cmd.Context(), app.Backend, app.Config.Processing.ProcessedTag, filter)
					if err != nil {
						return err
					}
				}
				ids, err := usecase.CollectDocumentIDs(cmd.Context(), app.Backend, filter, limit)
				if err != nil {
					return err
				}
				return runBatch(cmd, app, ids, agentic, concurrency, jsonOutput)
			})
		},
	}

	cmd.Flags().StringArrayVar(&filters, "filter", nil, "Backend filter as key=value, repeatable (e.g. correspondent__id=3)")
	cmd.Flags().BoolVar(&all, "all", false, "Include documents that already carry the processed tag")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of documents (0 means no limit)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Documents processed in parallel (default from config)")
	cmd.Flags().BoolVar(&agentic, "agentic", false, "Use the single-call agentic strategy")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
	return cmd
}

func newAgenticCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var concurrency int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "agentic [document-id]",
		Short: "Run the agentic strategy on one document or on all unprocessed documents",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(app *bootstrap.App) error {
				if len(args) == 1 {
					id, err := parseDocumentID(args[0])
					if err != nil {
						return err
					}
					return printResult(cmd, app.Agentic.Process(cmd.Context(), id), jsonOutput)
				}

				ids, err := app.ListUnprocessed(cmd.Context(), limit)
				if err != nil {
					return err
				}
				return runBatch(cmd, app, ids, true, concurrency, jsonOutput)
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of documents when no ID is given (0 means no limit)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Documents processed in parallel (default from config)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
	return cmd
}

func runBatch(cmd *cobra.Command, app *bootstrap.App, ids []int, agentic bool, concurrency int, jsonOutput bool) error {
	out := cmd.OutOrStdout()
	if len(ids) == 0 {
		fmt.Fprintln(out, "No documents to process")
		return nil
	}
	if concurrency <= 0 {
		concurrency = app.Config.Processing.Concurrency
	}

	results := app.Processor(agentic).ProcessBatch(cmd.Context(), ids, concurrency)
	summary := usecase.Summarize(results)
	if jsonOutput {
		if err := writeJSON(out, map[string]any{"summary": summary, "results": results}); err != nil {
			return err
		}
	} else {
		renderBatch(out, results, summary)
	}
	return batchError(summary)
}

func printResult(cmd *cobra.Command, result domain.ProcessingResult, jsonOutput bool) error {
	out := cmd.OutOrStdout()
	if jsonOutput {
		if err := writeJSON(out, result); err != nil {
			return err
		}
	} else {
		renderResult(out, result)
	}
	if !result.Success {
		return fmt.Errorf("document %d failed: %s", result.DocumentID, strings.Join(result.Errors, "; "))
	}
	return nil
}

func parseDocumentID(raw string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid document id %q", raw)
	}
	return id, nil
}

func parseFilters(filters []string) (map[string]string, error) {
	query := make(map[string]string, len(filters))
	for _, f := range filters {
		key, value, ok := strings.Cut(f, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid filter %q, expected key=value", f)
		}
		query[key] = strings.TrimSpace(value)
	}
	return query, nil
}
