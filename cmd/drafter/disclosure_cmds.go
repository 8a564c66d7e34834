package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/joelkehle/disclosure-drafter/internal/disclosure"
	"github.com/joelkehle/disclosure-drafter/internal/drafting"
	"github.com/joelkehle/disclosure-drafter/internal/intake"
)

var errInvalid = errors.New("disclosure failed validation")

func newValidateCommand(app *cliApp) *cobra.Command {
	var file string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a disclosure file for completeness",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := intake.DecodeFile(file)
			if err != nil {
				return err
			}
			res, err := disclosure.Validate(d)
			if err != nil {
				return err
			}
			app.logger.Debug("validated", zap.String("file", file), zap.Float64("score", res.CompletenessScore))
			out := cmd.OutOrStdout()
			if asJSON {
				if err := writeJSON(out, res); err != nil {
					return err
				}
			} else {
				fmt.Fprint(out, disclosure.FormatValidationReport(res))
			}
			if !res.IsValid {
				return errInvalid
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "disclosure file (.json, .yaml)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the validation result as JSON")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newDraftCommand(app *cliApp) *cobra.Command {
	var file, output, format string
	var polish bool
	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Draft a patent application document from a disclosure file",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := intake.DecodeFile(file)
			if err != nil {
				return err
			}
			if polish {
				p, err := app.polisher()
				if err != nil {
					return err
				}
				if p == nil {
					return fmt.Errorf("--polish needs model.enabled=true")
				}
				d = polishOrOriginal(cmd.Context(), p, d, app.logger)
			}
			rendered, err := disclosure.ProcessWithProgress(d, func(stage, message string) {
				app.logger.Debug("pipeline", zap.String("stage", stage), zap.String("message", message))
			})
			var gateErr *disclosure.GateError
			if errors.As(err, &gateErr) {
				fmt.Fprint(cmd.ErrOrStderr(), disclosure.FailureReport(gateErr.Result))
				return errInvalid
			}
			if err != nil {
				return err
			}

			var body []byte
			switch strings.ToLower(format) {
			case "text", "":
				body = []byte(rendered.Document)
			case "markdown", "md":
				body = []byte(disclosure.Markdown(rendered))
			case "json":
				body, err = json.MarshalIndent(disclosure.BuildResponse(rendered), "", "  ")
				if err != nil {
					return err
				}
				body = append(body, '\n')
			default:
				return fmt.Errorf("unknown format %q (text, markdown, json)", format)
			}
			return writeOutput(cmd.OutOrStdout(), output, body)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "disclosure file (.json, .yaml)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this path instead of stdout")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text, markdown or json")
	cmd.Flags().BoolVar(&polish, "polish", false, "rewrite disclosure prose with the configured model first")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newTemplateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "template",
		Short: "Print the disclosure template",
		// The template needs no configuration.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprint(cmd.OutOrStdout(), disclosure.Template())
			return err
		},
	}
}

func newExtractCommand(app *cliApp) *cobra.Command {
	var file, output string
	var useModel bool
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract a disclosure file from a free-text or PDF disclosure",
		Long: "Reads a text or PDF disclosure (file or stdin) and writes a YAML disclosure\n" +
			"that validate and draft accept. Labelled lines such as \"Title:\" are matched;\n" +
			"with --model the configured model extracts the fields instead.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var text string
			if file == "" || file == "-" {
				raw, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read disclosure text: %w", err)
				}
				text = string(raw)
			} else {
				src, err := intake.ReadSource(cmd.Context(), file)
				if err != nil {
					return fmt.Errorf("read %s: %w", file, err)
				}
				app.logger.Debug("read source", zap.String("method", src.Method), zap.Bool("truncated", src.Truncated))
				text = src.Text
			}

			var caller drafting.LLMCaller
			if useModel {
				var err error
				if caller, err = app.modelCaller(); err != nil {
					return err
				}
				if caller == nil {
					return fmt.Errorf("--model needs model.enabled=true")
				}
			}
			fields := drafting.NewExtractor(caller, app.logger).Extract(cmd.Context(), text)
			d := intake.ParseForm(fields, time.Now())
			if file != "" && file != "-" {
				d.Attachments = append(d.Attachments, intake.SourceAttachment(file))
			}

			var buf strings.Builder
			if err := intake.EncodeYAML(&buf, d); err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), output, []byte(buf.String()))
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "text or PDF file to read (default stdin)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write YAML to this path instead of stdout")
	cmd.Flags().BoolVar(&useModel, "model", false, "extract with the configured model")
	return cmd
}

type disclosurePolisher interface {
	PolishDisclosure(ctx context.Context, d *disclosure.Disclosure) (*disclosure.Disclosure, error)
}

// polishOrOriginal returns d unchanged when polishing fails.
func polishOrOriginal(ctx context.Context, p disclosurePolisher, d *disclosure.Disclosure, logger *zap.Logger) *disclosure.Disclosure {
	polished, err := p.PolishDisclosure(ctx, d)
	if err != nil {
		logger.Warn("polish failed, drafting from original text", zap.Error(err))
		return d
	}
	return polished
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeOutput(stdout io.Writer, path string, body []byte) error {
	if path == "" {
		_, err := stdout.Write(body)
		return err
	}
	return os.WriteFile(path, body, 0o644)
}
