// Package labeler implements the batch job that fetches recently-opened
// issues, classifies them and labels the ones approachable for newcomers.
package labeler

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/firstissue/firstissue/classify"
	"github.com/firstissue/firstissue/internal/batch"
	"github.com/firstissue/firstissue/internal/fanout"
	"github.com/firstissue/firstissue/internal/logging"
	"github.com/firstissue/firstissue/internal/semaphore"
	"github.com/firstissue/firstissue/internal/timetrack"
	"github.com/firstissue/firstissue/tracker"
)

var log = logging.Module("labeler")

// DefaultLabel is the label applied to issues deemed approachable.
const DefaultLabel = "good first issue"

// IssueSource fetches issues and writes labels. *tracker.Client implements it.
type IssueSource interface {
	ListOpenIssues(ctx context.Context, page int) ([]tracker.Issue, error)
	HasLinkedPullRequest(ctx context.Context, number int) (bool, error)
	SetLabels(ctx context.Context, number int, labels []string) error
	PageSize() int
}

// Classifier assigns labels with confidence scores to documents.
// *classify.Client implements it.
type Classifier interface {
	Classify(ctx context.Context, docs []classify.Document, rules string) ([]classify.Result, error)
}

// Options controls a labeling run.
type Options struct {
	Label            string  // label to apply, DefaultLabel when empty
	Rules            string  // classification ruleset, DefaultRules when empty
	BatchSize        int     // documents per classifier call, default 10
	FetchParallel    int     // concurrent linked-PR checks, default 4
	ClassifyParallel int     // concurrent classifier calls, default 2
	LabelParallel    int     // concurrent label writes, default 4
	MinConfidence    float64 // results at or below this confidence are non-matches, default 0.5
	MaxIssues        int     // cap on fetched issues, 0 means unlimited
	DryRun           bool    // log instead of writing labels
}

func (o Options) applyDefaults() Options {
	if o.Label == "" {
		o.Label = DefaultLabel
	}

	if o.Rules == "" {
		o.Rules = DefaultRules
	}

	if o.BatchSize < 1 {
		o.BatchSize = 10
	}

	if o.FetchParallel == 0 {
		o.FetchParallel = 4
	}

	if o.ClassifyParallel == 0 {
		o.ClassifyParallel = 2
	}

	if o.LabelParallel == 0 {
		o.LabelParallel = 4
	}

	if o.MinConfidence == 0 {
		o.MinConfidence = 0.5
	}

	return o
}

// Stats summarizes a labeling run.
type Stats struct {
	Fetched  int // issues fetched from the tracker (excluding pull requests)
	Skipped  int // already labeled or with a linked pull request
	Examined int // documents sent to the classifier
	Matched  int // positively classified
	Labeled  int // labels written
}

// Labeler runs the fetch, classify and label pipeline.
type Labeler struct {
	source     IssueSource
	classifier Classifier
	opt        Options
}

// New creates a Labeler on top of the given collaborators.
func New(source IssueSource, classifier Classifier, opt Options) (*Labeler, error) {
	if source == nil {
		return nil, errors.New("issue source is required")
	}

	if classifier == nil {
		return nil, errors.New("classifier is required")
	}

	return &Labeler{
		source:     source,
		classifier: classifier,
		opt:        opt.applyDefaults(),
	}, nil
}

// Run executes the pipeline. Each stage completes fully before the next
// one starts and each stage gates its tracker or classifier calls with its
// own semaphore sized for that stage.
func (l *Labeler) Run(ctx context.Context) (*Stats, error) {
	runID := uuid.NewString()[:8]
	timer := timetrack.StartTimer()

	log(ctx).Infof("starting run %v", runID)

	stats := &Stats{}

	candidates, err := l.fetchCandidates(ctx, stats)
	if err != nil {
		return nil, errors.Wrap(err, "fetch stage failed")
	}

	matched, err := l.classifyCandidates(ctx, candidates, stats)
	if err != nil {
		return nil, errors.Wrap(err, "classify stage failed")
	}

	if err := l.labelMatches(ctx, matched, stats); err != nil {
		return nil, errors.Wrap(err, "label stage failed")
	}

	log(ctx).Infof("run %v finished in %v: fetched %v, skipped %v, examined %v, matched %v, labeled %v",
		runID, timer.Elapsed(), stats.Fetched, stats.Skipped, stats.Examined, stats.Matched, stats.Labeled)

	return stats, nil
}

// fetchCandidates pages through open issues until a short page, then drops
// pull requests, already-labeled issues and issues with a linked pull
// request in flight.
func (l *Labeler) fetchCandidates(ctx context.Context, stats *Stats) ([]tracker.Issue, error) {
	var issues []tracker.Issue

	for page := 1; ; page++ {
		pageItems, err := l.source.ListOpenIssues(ctx, page)
		if err != nil {
			return nil, err
		}

		for _, is := range pageItems {
			if is.IsPullRequest() {
				continue
			}

			issues = append(issues, is)
		}

		if len(pageItems) < l.source.PageSize() {
			break
		}

		if l.opt.MaxIssues > 0 && len(issues) >= l.opt.MaxIssues {
			break
		}
	}

	if l.opt.MaxIssues > 0 && len(issues) > l.opt.MaxIssues {
		issues = issues[:l.opt.MaxIssues]
	}

	stats.Fetched = len(issues)

	var candidates []tracker.Issue

	for _, is := range issues {
		if is.HasLabel(l.opt.Label) {
			stats.Skipped++
			continue
		}

		candidates = append(candidates, is)
	}

	if len(candidates) == 0 {
		return nil, nil
	}

	sem, err := semaphore.New(l.opt.FetchParallel, "tracker reads")
	if err != nil {
		return nil, err
	}

	linked, err := fanout.Run(ctx, sem, candidates, func(ctx context.Context, is tracker.Issue) (bool, error) {
		return l.source.HasLinkedPullRequest(ctx, is.Number)
	})
	if err != nil {
		return nil, err
	}

	var unclaimed []tracker.Issue

	for i, is := range candidates {
		if linked[i] {
			stats.Skipped++

			log(ctx).Debugf("skipping issue #%v: pull request already linked", is.Number)

			continue
		}

		unclaimed = append(unclaimed, is)
	}

	return unclaimed, nil
}

// classifyCandidates batches the candidates, fans the batches out through
// the classifier and keeps issues positively classified with sufficient
// confidence.
func (l *Labeler) classifyCandidates(ctx context.Context, candidates []tracker.Issue, stats *Stats) ([]tracker.Issue, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	docs := make([]classify.Document, 0, len(candidates))

	for _, is := range candidates {
		docs = append(docs, classify.Document{
			ID:   strconv.Itoa(is.Number),
			Text: is.Title + "\n\n" + is.Body,
		})
	}

	chunks := batch.Slice(docs, l.opt.BatchSize)
	stats.Examined = len(docs)

	sem, err := semaphore.New(l.opt.ClassifyParallel, "classifier")
	if err != nil {
		return nil, err
	}

	chunkResults, err := fanout.Run(ctx, sem, chunks, func(ctx context.Context, chunk []classify.Document) ([]classify.Result, error) {
		return l.classifier.Classify(ctx, chunk, l.opt.Rules)
	})
	if err != nil {
		return nil, err
	}

	// documents the classifier did not score stay out of this map and are
	// conservatively treated as non-matches
	scores := map[string]classify.Result{}

	for _, results := range chunkResults {
		for _, r := range results {
			scores[r.ID] = r
		}
	}

	var matched []tracker.Issue

	for _, is := range candidates {
		r, ok := scores[strconv.Itoa(is.Number)]
		if !ok {
			continue
		}

		if !strings.EqualFold(r.Label, l.opt.Label) || r.Confidence <= l.opt.MinConfidence {
			continue
		}

		log(ctx).Debugf("issue #%v matched with confidence %.2f", is.Number, r.Confidence)

		matched = append(matched, is)
	}

	stats.Matched = len(matched)

	return matched, nil
}

// labelMatches appends the configured label to each matched issue's
// existing labels.
func (l *Labeler) labelMatches(ctx context.Context, matched []tracker.Issue, stats *Stats) error {
	if len(matched) == 0 {
		return nil
	}

	sem, err := semaphore.New(l.opt.LabelParallel, "tracker writes")
	if err != nil {
		return err
	}

	_, err = fanout.Run(ctx, sem, matched, func(ctx context.Context, is tracker.Issue) (struct{}, error) {
		labels := append(is.LabelNames(), l.opt.Label)

		if l.opt.DryRun {
			log(ctx).Infof("dry run: would set labels on issue #%v to %v", is.Number, labels)
			return struct{}{}, nil
		}

		return struct{}{}, l.source.SetLabels(ctx, is.Number, labels)
	})
	if err != nil {
		return err
	}

	if !l.opt.DryRun {
		stats.Labeled = len(matched)
	}

	return nil
}
