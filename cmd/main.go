// 指示: miu200521358
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/miu200521358/mu_autorig/pkg/adapter/io_model/report"
	"github.com/miu200521358/mu_autorig/pkg/adapter/io_model/skeleton"
	"github.com/miu200521358/mu_autorig/pkg/adapter/io_shape"
	"github.com/miu200521358/mu_autorig/pkg/adapter/mpresenter/messages"
	"github.com/miu200521358/mu_autorig/pkg/infra/base/mlogging"
	"github.com/miu200521358/mu_autorig/pkg/infra/config"
	"github.com/miu200521358/mu_autorig/pkg/shared/base/logging"
	"github.com/miu200521358/mu_autorig/pkg/usecase/minteractor"
)

// options はCLI引数を保持する。
type options struct {
	inputPath  string
	outputPath string
	configPath string
	verbose    bool
}

// main はスケルトンからリグを構築する。
func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run はCLI処理全体を実行する。
func run(args []string, out io.Writer, errOut io.Writer) error {
	opts, err := parseOptions(args, errOut)
	if err != nil {
		return err
	}
	cfg, err := config.LoadRigConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf(messages.MessageConfigFailed, err)
	}

	previous := logging.DefaultLogger()
	logger, err := newLogger(cfg, opts.verbose, errOut)
	if err != nil {
		return err
	}
	logging.SetDefaultLogger(logger)
	defer logging.SetDefaultLogger(previous)

	outputPath, err := resolveOutputPath(opts.inputPath, opts.outputPath)
	if err != nil {
		return err
	}

	usecase := minteractor.NewAutoRigUsecase(minteractor.AutoRigUsecaseDeps{
		SkeletonReader: skeleton.NewSkeletonRepository(),
		RigWriter:      report.NewRigReportRepository(),
		ShapeLibrary:   io_shape.NewShapeLibrary(),
	})

	fmt.Fprintf(out, messages.LogLoadStart+"\n", opts.inputPath)
	result, err := usecase.BuildRig(minteractor.BuildRigRequest{
		InputPath:        opts.inputPath,
		OutputPath:       outputPath,
		Settings:         cfg.RigSettings(),
		ProgressReporter: &cliProgressReporter{out: out},
	})
	if err != nil {
		return fmt.Errorf(messages.MessageBuildFailed, err)
	}

	fmt.Fprintf(out, messages.LogBuildSuccess+"\n",
		result.Context.Character, len(result.Zones), len(result.Switches()), result.Context.Scene.Len())
	if len(result.Warnings) > 0 {
		fmt.Fprintf(out, messages.LogWarningsCount+"\n", len(result.Warnings), result.Warnings)
	}
	fmt.Fprintf(out, messages.LogSaveSuccess+"\n", result.OutputPath)
	return nil
}

// parseOptions はCLI引数を解析する。
func parseOptions(args []string, errOut io.Writer) (options, error) {
	fs := flag.NewFlagSet("mu_autorig", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.Usage = func() {
		fmt.Fprintf(errOut, "%s: %s\n", messages.HelpUsageTitle, messages.HelpUsage)
		fs.PrintDefaults()
	}

	in := fs.String("in", "", messages.FlagInputTip)
	out := fs.String("out", "", messages.FlagOutputTip)
	configPath := fs.String("config", "", messages.FlagConfigTip)
	verbose := fs.Bool("verbose", false, "詳細ログを出力する")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	if *in == "" && fs.NArg() > 0 {
		*in = fs.Arg(0)
	}
	if *out == "" && fs.NArg() > 1 {
		*out = fs.Arg(1)
	}
	if *in == "" {
		return options{}, fmt.Errorf(messages.MessageInputRequired)
	}
	if !skeleton.NewSkeletonRepository().CanLoad(*in) {
		return options{}, fmt.Errorf(messages.MessageInputExtFormat, *in)
	}

	return options{inputPath: *in, outputPath: *out, configPath: *configPath, verbose: *verbose}, nil
}

// resolveOutputPath は出力パスを解決する。
func resolveOutputPath(inputPath string, outputPath string) (string, error) {
	if strings.TrimSpace(outputPath) == "" {
		return minteractor.BuildDefaultOutputPath(inputPath), nil
	}
	if !report.NewRigReportRepository().CanSave(outputPath) {
		return "", fmt.Errorf(messages.MessageOutputExtFormat, outputPath)
	}
	return outputPath, nil
}

// newLogger は設定に従ったロガーを生成する。
func newLogger(cfg config.RigConfig, verbose bool, errOut io.Writer) (*mlogging.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	logger := mlogging.NewLogger(errOut)
	logger.SetLevel(level)
	if verbose {
		logger.EnableVerbose(logging.VERBOSE_INDEX_RIG, true)
		logger.EnableVerbose(logging.VERBOSE_INDEX_GRAPH, true)
	}
	return logger, nil
}

// cliProgressReporter は省略したゾーンを標準出力へ表示する。
type cliProgressReporter struct {
	out io.Writer
}

// ReportRigProgress はリグ構築進捗を受け取る。
func (r *cliProgressReporter) ReportRigProgress(event minteractor.RigProgressEvent) {
	if r == nil || r.out == nil {
		return
	}
	if event.Type != minteractor.RigProgressEventTypeZoneSkipped {
		return
	}
	zone := event.Zone
	if event.Side != "" {
		zone += "/" + string(event.Side)
	}
	fmt.Fprintf(r.out, messages.LogZoneSkipped+"\n", zone)
}
