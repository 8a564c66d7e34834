package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/joelkehle/disclosure-drafter/internal/disclosure"
	"github.com/joelkehle/disclosure-drafter/internal/intake"
	"github.com/joelkehle/disclosure-drafter/internal/render"
)

func newRenderPDFCommand(app *cliApp) *cobra.Command {
	var file, output string
	var htmlOnly bool
	cmd := &cobra.Command{
		Use:   "render-pdf",
		Short: "Render a drafted application as PDF",
		Long: "Accepts either a disclosure file (.yaml, .json) or a saved response envelope\n" +
			"(the JSON written by draft --format json) and prints it through Chromium.",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvelope(file, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if htmlOnly {
				doc, err := render.HTML(env)
				if err != nil {
					return err
				}
				return writeOutput(cmd.OutOrStdout(), output, []byte(doc))
			}
			if output == "" {
				return fmt.Errorf("--output is required for PDF output")
			}
			r := render.NewChromiumPDFRenderer(app.cfg.Render.ChromePath, app.cfg.Render.Timeout)
			pdf, err := r.Render(cmd.Context(), env)
			if err != nil {
				return err
			}
			app.logger.Info("rendered pdf", zap.String("output", output), zap.Int("bytes", len(pdf)))
			return os.WriteFile(output, pdf, 0o644)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "disclosure file or saved envelope JSON")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output path")
	cmd.Flags().BoolVar(&htmlOnly, "html", false, "write the print HTML instead of a PDF")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// loadEnvelope reads a saved envelope when the JSON has a document and
// otherwise drafts one from the disclosure.
func loadEnvelope(path string, stderr io.Writer) (disclosure.ResponseEnvelope, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		raw, err := os.ReadFile(path)
		if err != nil {
			return disclosure.ResponseEnvelope{}, err
		}
		var env disclosure.ResponseEnvelope
		if err := json.Unmarshal(raw, &env); err == nil && env.Document != "" {
			if env.DocumentMarkdown == "" {
				env = disclosure.BuildResponse(disclosure.RenderedApplication{
					Title:      env.Title,
					PatentType: env.PatentType,
					Document:   env.Document,
					Claims:     env.Claims,
					Validation: env.Validation,
				})
			}
			return env, nil
		}
	}
	d, err := intake.DecodeFile(path)
	if err != nil {
		return disclosure.ResponseEnvelope{}, err
	}
	app, err := disclosure.Process(d)
	var gateErr *disclosure.GateError
	if errors.As(err, &gateErr) {
		fmt.Fprint(stderr, disclosure.FailureReport(gateErr.Result))
		return disclosure.ResponseEnvelope{}, errInvalid
	}
	if err != nil {
		return disclosure.ResponseEnvelope{}, err
	}
	return disclosure.BuildResponse(app), nil
}
