package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/joelkehle/disclosure-drafter/internal/config"
	"github.com/joelkehle/disclosure-drafter/internal/drafting"
	"github.com/joelkehle/disclosure-drafter/internal/logging"
)

// Version is set at build time via ldflags.
var Version = "dev"

type cliApp struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *zap.Logger
}

func main() {
	app := &cliApp{}
	root := newRootCommand(app)
	err := root.Execute()
	if app.logger != nil {
		_ = app.logger.Sync()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCommand(app *cliApp) *cobra.Command {
	root := &cobra.Command{
		Use:           "drafter",
		Short:         "Validate patent disclosures and draft application documents",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.init()
		},
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&app.configPath, "config", "c", "", "config file (YAML); DRAFTER_* env vars override it")
	pf.StringVar(&app.logLevel, "log-level", "", "override log.level")

	root.AddCommand(
		newValidateCommand(app),
		newDraftCommand(app),
		newTemplateCommand(),
		newExtractCommand(app),
		newRenderPDFCommand(app),
		newServeCommand(app),
		newMCPCommand(app),
	)
	return root
}

func (a *cliApp) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

// modelCaller returns nil when generative drafting is disabled.
func (a *cliApp) modelCaller() (drafting.LLMCaller, error) {
	mc, err := drafting.ModelConfigFrom(a.cfg.Model)
	if errors.Is(err, drafting.ErrModelDisabled) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.logger.Info("generative drafting enabled", zap.String("model", mc.Model))
	return drafting.NewAnthropicCaller(mc), nil
}

func (a *cliApp) polisher() (*drafting.Polisher, error) {
	caller, err := a.modelCaller()
	if err != nil || caller == nil {
		return nil, err
	}
	return drafting.NewPolisher(caller, a.logger), nil
}
