package cli

import (
	"strings"

	kingpin "github.com/alecthomas/kingpin/v2"
	"github.com/fatih/color"
	"github.com/pkg/errors"

	"github.com/firstissue/firstissue/classify"
	"github.com/firstissue/firstissue/labeler"
	"github.com/firstissue/firstissue/tracker"
)

var (
	runCommand = app.Command("run", "Fetch, classify and label recently-opened issues.").Default()

	runRepository    = runCommand.Flag("repo", "Repository to scan, in OWNER/NAME form").Required().Envar("FIRSTISSUE_REPO").String()
	runTrackerURL    = runCommand.Flag("tracker-url", "Base URL of the issue tracker API").Default("https://api.github.com").Envar("FIRSTISSUE_TRACKER_URL").String()
	runTrackerToken  = runCommand.Flag("github-token", "API token for the issue tracker").Required().Envar("FIRSTISSUE_GITHUB_TOKEN").String()
	runClassifierURL = runCommand.Flag("classifier-url", "Base URL of the classification service").Required().Envar("FIRSTISSUE_CLASSIFIER_URL").String()
	runClassifierTok = runCommand.Flag("classifier-token", "API token for the classification service").Envar("FIRSTISSUE_CLASSIFIER_TOKEN").String()
	runModel         = runCommand.Flag("classifier-model", "Model override for the classification service").String()

	runLabel            = runCommand.Flag("label", "Label to apply to matching issues").Default(labeler.DefaultLabel).String()
	runRulesFile        = runCommand.Flag("rules-file", "File with the classification ruleset (built-in rules when not set)").ExistingFile()
	runBatchSize        = runCommand.Flag("batch-size", "Number of issues per classification request").Default("10").Int()
	runFetchParallel    = runCommand.Flag("fetch-parallel", "Maximum concurrent tracker reads").Default("4").Int()
	runClassifyParallel = runCommand.Flag("classify-parallel", "Maximum concurrent classification requests").Default("2").Int()
	runLabelParallel    = runCommand.Flag("label-parallel", "Maximum concurrent label writes").Default("4").Int()
	runMinConfidence    = runCommand.Flag("min-confidence", "Classification results at or below this confidence are ignored").Default("0.5").Float64()
	runMaxIssues        = runCommand.Flag("max-issues", "Maximum number of issues to examine (0 = unlimited)").Default("0").Int()
	runDryRun           = runCommand.Flag("dry-run", "Log label changes without applying them").Bool()
)

func init() {
	runCommand.Action(runAction)
}

func runAction(_ *kingpin.ParseContext) error {
	ctx := rootContext()

	owner, repo, ok := strings.Cut(*runRepository, "/")
	if !ok || owner == "" || repo == "" {
		return errors.Errorf("invalid repository %q: expected OWNER/NAME", *runRepository)
	}

	logRequests := *logLevel == "debug"

	source, err := tracker.NewClient(tracker.Options{
		BaseURL:     *runTrackerURL,
		Token:       *runTrackerToken,
		Owner:       owner,
		Repo:        repo,
		LogRequests: logRequests,
	})
	if err != nil {
		return errors.Wrap(err, "unable to create tracker client")
	}

	classifier, err := classify.NewClient(classify.Options{
		BaseURL:     *runClassifierURL,
		Token:       *runClassifierTok,
		Model:       *runModel,
		LogRequests: logRequests,
	})
	if err != nil {
		return errors.Wrap(err, "unable to create classifier client")
	}

	rules, err := loadRules(*runRulesFile)
	if err != nil {
		return err
	}

	l, err := labeler.New(source, classifier, labeler.Options{
		Label:            *runLabel,
		Rules:            rules,
		BatchSize:        *runBatchSize,
		FetchParallel:    *runFetchParallel,
		ClassifyParallel: *runClassifyParallel,
		LabelParallel:    *runLabelParallel,
		MinConfidence:    *runMinConfidence,
		MaxIssues:        *runMaxIssues,
		DryRun:           *runDryRun,
	})
	if err != nil {
		return errors.Wrap(err, "unable to create labeler")
	}

	stats, err := l.Run(ctx)
	if err != nil {
		return errors.Wrapf(err, "labeling run for %v failed", *runRepository)
	}

	printRunSummary(*runRepository, stats, *runDryRun)

	return nil
}

func printRunSummary(repo string, stats *labeler.Stats, dryRun bool) {
	bold := color.New(color.Bold)

	bold.Printf("%v: ", repo) //nolint:errcheck

	switch {
	case dryRun:
		color.Yellow("dry run, %v of %v issues would be labeled", stats.Matched, stats.Fetched)
	case stats.Labeled > 0:
		color.Green("labeled %v of %v issues (%v skipped)", stats.Labeled, stats.Fetched, stats.Skipped)
	default:
		color.White("no issues to label (%v fetched, %v skipped)", stats.Fetched, stats.Skipped)
	}
}
