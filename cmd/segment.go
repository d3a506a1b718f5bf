package cmd

import (
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/resume-analyzer/internal/logger"
	"github.com/spigell/resume-analyzer/internal/resume"
)

var segmentCmd = &cobra.Command{
	Use:   "segment <file>",
	Short: "Print the sections found in a resume without scoring them",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		segment(args[0])
	},
}

func init() {
	rootCmd.AddCommand(segmentCmd)
}

func segment(path string) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	sections := resume.Segment(loadText(path, logger))

	logger.Info("segmented resume",
		zap.String("source", path),
		zap.Strings("sections", resume.OrderedNames(sections)),
	)

	if err := printJSON(sections); err != nil {
		logger.Fatal("printing sections", zap.Error(err))
	}
}
