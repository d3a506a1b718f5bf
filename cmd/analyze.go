package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/resume-analyzer/internal/ai"
	"github.com/spigell/resume-analyzer/internal/logger"
	"github.com/spigell/resume-analyzer/internal/metrics"
	"github.com/spigell/resume-analyzer/internal/report"
	"github.com/spigell/resume-analyzer/internal/resume"
	"github.com/spigell/resume-analyzer/internal/textsource"
)

const (
	PromptPrintReport  = "Print report"
	PromptShowSection  = "Show a section"
	PromptReportToFile = "Dump report to file"
	PromptExit         = "Exit"
	PromptBack         = "back"
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptPrintReport, PromptShowSection, PromptReportToFile, PromptExit},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Score every section of a resume (.txt, .md, .pdf or - for stdin)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		analyze(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().BoolP("auto-approve", "y", false, "print the report as JSON without the interactive menu")
	analyzeCmd.Flags().StringP("output", "o", "", "write the JSON report to this file")
	analyzeCmd.Flags().String("metrics-file", "", "write Prometheus metrics to this file in the textfile format")
	analyzeCmd.Flags().StringP("provider", "p", "", "ai provider: kimi, gemini or anthropic")

	viper.BindPFlag("provider", analyzeCmd.Flags().Lookup("provider"))
}

// analyze is the main command for the cli.
func analyze(cmd *cobra.Command, path string) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the resume-analyzer", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(redacted(config), "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	completer, err := newCompleter(ctx, config, logger)
	if err != nil {
		logger.Fatal("creating an ai client",
			zap.Error(err),
			zap.String("provider", config.Provider),
		)
	}

	recorder := metrics.New()

	analyzer, err := ai.NewAnalyzer(completer, logger, recorder, config.MaxLogLength)
	if err != nil {
		logger.Fatal("creating an analyzer", zap.Error(err))
	}

	builder, err := report.NewBuilder(analyzer, logger, report.WithRecorder(recorder))
	if err != nil {
		logger.Fatal("creating a report builder", zap.Error(err))
	}

	text := loadText(path, logger)

	logger.Info("analyzing the resume", zap.String("source", path), zap.String("model", completer.Model()))

	result := builder.Build(ctx, text, path)
	logSummary(logger, result)

	if output := cmd.Flag("output").Value.String(); output != "" {
		if err := writeReport(result, output); err != nil {
			logger.Fatal("writing the report", zap.Error(err))
		}
		logger.Info("report written", zap.String("filename", output))
	}

	if metricsFile := cmd.Flag("metrics-file").Value.String(); metricsFile != "" {
		if err := recorder.WriteTextfile(metricsFile); err != nil {
			logger.Fatal("writing metrics", zap.Error(err))
		}
		logger.Info("metrics written", zap.String("filename", metricsFile))
	}

	if cmd.Flag("auto-approve").Value.String() == "true" {
		if err := printJSON(result); err != nil {
			logger.Fatal("printing the report", zap.Error(err))
		}
		return
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if err := handleAction(action, logger, result); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func handleAction(action string, logger *zap.Logger, result *resume.Report) error {
	switch action {
	case PromptPrintReport:
		return printJSON(result)
	case PromptShowSection:
		return showSection(result)
	case PromptReportToFile:
		filename, err := dumpToTmpFile(result)
		if err != nil {
			return fmt.Errorf("dump report to file: %w", err)
		}
		logger.Info("dumping report to file", zap.String("filename", filename))
		return nil
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

// loadText never fails: an unreadable file becomes failure text, which the
// report carries as an error section.
func loadText(path string, logger *zap.Logger) string {
	text, err := textsource.Load(path)
	if err != nil {
		logger.Warn("loading the resume failed", zap.String("source", path), zap.Error(err))
		return textsource.FailureText(err)
	}

	logger.Debug("resume loaded", zap.String("source", path), zap.Int("length", len([]rune(text))))
	return text
}

func logSummary(logger *zap.Logger, result *resume.Report) {
	for _, name := range resume.OrderedNames(result.Sections) {
		section := result.Sections[name]
		logger.Info("section",
			zap.String("name", name),
			zap.Float64("score", section.Score),
			zap.Strings("suggestions", section.Suggestions),
			zap.Int("highlights", len(section.Highlights)),
		)
	}

	logger.Info("overall",
		zap.String("report_id", result.ID),
		zap.Float64("overall_score", result.OverallScore),
		zap.Int("scored_sections", result.ScoredCount()),
	)
}

func showSection(result *resume.Report) error {
	for {
		sectionPrompt := promptui.Select{
			Label: "Choose a section and press ENTER",
			Items: append(resume.OrderedNames(result.Sections), PromptBack),
		}

		_, selected, err := sectionPrompt.Run()
		if err != nil {
			return err
		}

		if selected == PromptBack {
			return nil
		}

		section, ok := result.Sections[selected]
		if !ok {
			return fmt.Errorf("there is no such section %s", selected)
		}

		if err := printJSON(section); err != nil {
			return err
		}
	}
}

func printJSON(v any) error {
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(os.Stdout, string(pretty))
	return err
}

func writeReport(result *resume.Report, filename string) error {
	pretty, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filename, append(pretty, '\n'), 0o644)
}

func dumpToTmpFile(result *resume.Report) (string, error) {
	f, err := os.CreateTemp("", app+"-*.json")
	if err != nil {
		return "", err
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		return "", err
	}

	return f.Name(), nil
}

// redacted hides credentials before the config is logged.
func redacted(config *Config) *Config {
	if config == nil {
		return nil
	}

	copied := *config
	for _, p := range []**ProviderConfig{&copied.Kimi, &copied.Gemini, &copied.Anthropic} {
		if *p == nil {
			continue
		}
		provider := **p
		if strings.TrimSpace(provider.APIKey) != "" {
			provider.APIKey = "***"
		}
		*p = &provider
	}

	return &copied
}
