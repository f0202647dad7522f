package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"yukti-backend/analyze"
	"yukti-backend/client"
	"yukti-backend/models"
	"yukti-backend/prompts"
)

func newAnalyzeCmd(opts *options) *cobra.Command {
	var (
		summary  bool
		server   string
		clinical string
	)
	cmd := &cobra.Command{
		Use:   "analyze [file]",
		Short: "Analyze a report, or summarize the stored history with --summary",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := prompts.ModeDocument
			if summary {
				mode = prompts.ModeSummary
			}
			if mode == prompts.ModeDocument && len(args) == 0 {
				return errors.New("a file is required unless --summary is set")
			}
			var file *models.Attachment
			if len(args) == 1 {
				f, err := readAttachment(args[0])
				if err != nil {
					return err
				}
				file = f
			}

			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer logger.Sync()
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.AnalyzeTimeout)
			defer cancel()

			if server != "" {
				return analyzeRemote(ctx, cmd.OutOrStdout(), client.New(server, cfg.AnalyzeTimeout, logger), mode, file, clinical)
			}

			app, closeApp, err := Open(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer closeApp()
			res, err := app.Pipeline.Run(ctx, analyze.Request{Mode: mode, File: file, ClinicalContext: clinical}, func(ev analyze.Event) {
				logger.Debug("stage", zap.String("stage", string(ev.Stage)), zap.String("detail", ev.Detail))
			})
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), res.Payload(), res.ModelUsed, res.Warnings)
		},
	}
	cmd.Flags().BoolVar(&summary, "summary", false, "Summarize the stored report history")
	cmd.Flags().StringVar(&server, "server", "", "Send the request to a running server instead of analyzing in-process")
	cmd.Flags().StringVar(&clinical, "clinical-context", "", "Clinical context overriding the stored assessment")
	return cmd
}

func analyzeRemote(ctx context.Context, w io.Writer, c *client.Client, mode prompts.Mode, file *models.Attachment, clinical string) error {
	if err := c.Health(ctx); err != nil {
		return fmt.Errorf("server health check: %w", err)
	}
	req := client.AnalyzeRequest{Mode: mode, ClinicalContext: clinical}
	if file != nil {
		req.FileName = file.Name
		req.File = file.Data
	}
	resp, err := c.Analyze(ctx, req)
	if err != nil {
		return err
	}
	return writeResult(w, resp.Result, resp.ModelUsed, resp.Warnings)
}

func writeResult(w io.Writer, result any, modelUsed string, warnings []string) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Result    any      `json:"result"`
		ModelUsed string   `json:"modelUsed"`
		Warnings  []string `json:"warnings,omitempty"`
	}{result, modelUsed, warnings})
}

// readAttachment loads a file, typing it by extension and then by content.
func readAttachment(path string) (*models.Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s is empty", path)
	}
	mt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mt == "" {
		mt = http.DetectContentType(data)
	}
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return &models.Attachment{Name: filepath.Base(path), MimeType: mt, Data: data}, nil
}
