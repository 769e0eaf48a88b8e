package labeler

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/firstissue/firstissue/classify"
	"github.com/firstissue/firstissue/internal/testlogging"
	"github.com/firstissue/firstissue/tracker"
)

type fakeSource struct {
	mu sync.Mutex

	pageSize  int
	issues    []tracker.Issue
	linkedPRs map[int]bool

	setLabels map[int][]string
	failWrite bool
}

func (f *fakeSource) PageSize() int {
	return f.pageSize
}

func (f *fakeSource) ListOpenIssues(_ context.Context, page int) ([]tracker.Issue, error) {
	start := (page - 1) * f.pageSize
	if start >= len(f.issues) {
		return nil, nil
	}

	end := start + f.pageSize
	if end > len(f.issues) {
		end = len(f.issues)
	}

	return f.issues[start:end], nil
}

func (f *fakeSource) HasLinkedPullRequest(_ context.Context, number int) (bool, error) {
	return f.linkedPRs[number], nil
}

func (f *fakeSource) SetLabels(_ context.Context, number int, labels []string) error {
	if f.failWrite {
		return errors.Errorf("write to issue #%v failed", number)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.setLabels == nil {
		f.setLabels = map[int][]string{}
	}

	f.setLabels[number] = labels

	return nil
}

type fakeClassifier struct {
	mu sync.Mutex

	scores     map[string]classify.Result
	batchSizes []int
	err        error
}

func (f *fakeClassifier) Classify(_ context.Context, docs []classify.Document, _ string) ([]classify.Result, error) {
	if f.err != nil {
		return nil, f.err
	}

	f.mu.Lock()
	f.batchSizes = append(f.batchSizes, len(docs))
	f.mu.Unlock()

	var results []classify.Result

	for _, d := range docs {
		if r, ok := f.scores[d.ID]; ok {
			results = append(results, r)
		}
	}

	return results, nil
}

func issue(number int, labels ...string) tracker.Issue {
	is := tracker.Issue{
		Number: number,
		Title:  "issue " + strconv.Itoa(number),
		Body:   "body of issue " + strconv.Itoa(number),
	}

	for _, l := range labels {
		is.Labels = append(is.Labels, tracker.Label{Name: l})
	}

	return is
}

func TestRun_EndToEnd(t *testing.T) {
	ctx := testlogging.Context(t)

	src := &fakeSource{
		pageSize: 10,
		issues:   []tracker.Issue{issue(1, "bug"), issue(2), issue(3, "docs")},
	}

	cls := &fakeClassifier{
		scores: map[string]classify.Result{
			"1": {ID: "1", Label: DefaultLabel, Confidence: 0.3},
			"2": {ID: "2", Label: DefaultLabel, Confidence: 0.9},
			"3": {ID: "3", Label: DefaultLabel, Confidence: 0.9},
		},
	}

	l, err := New(src, cls, Options{})
	require.NoError(t, err)

	stats, err := l.Run(ctx)
	require.NoError(t, err)

	require.Equal(t, 3, stats.Fetched)
	require.Equal(t, 0, stats.Skipped)
	require.Equal(t, 3, stats.Examined)
	require.Equal(t, 2, stats.Matched)
	require.Equal(t, 2, stats.Labeled)

	// exactly issues 2 and 3 get the label, appended to existing labels
	require.Equal(t, map[int][]string{
		2: {DefaultLabel},
		3: {"docs", DefaultLabel},
	}, src.setLabels)
}

func TestRun_SkipsPullRequestsAndLabeled(t *testing.T) {
	ctx := testlogging.Context(t)

	pr := issue(4)
	pr.PullRequest = map[string]interface{}{"url": "https://x"}

	src := &fakeSource{
		pageSize:  10,
		issues:    []tracker.Issue{issue(1), issue(2, DefaultLabel), issue(3), pr},
		linkedPRs: map[int]bool{3: true},
	}

	cls := &fakeClassifier{
		scores: map[string]classify.Result{
			"1": {ID: "1", Label: DefaultLabel, Confidence: 0.8},
			"2": {ID: "2", Label: DefaultLabel, Confidence: 0.8},
			"3": {ID: "3", Label: DefaultLabel, Confidence: 0.8},
		},
	}

	l, err := New(src, cls, Options{})
	require.NoError(t, err)

	stats, err := l.Run(ctx)
	require.NoError(t, err)

	// the pull request never counts as fetched; 2 is already labeled and 3
	// has a fix in flight
	require.Equal(t, 3, stats.Fetched)
	require.Equal(t, 2, stats.Skipped)
	require.Equal(t, 1, stats.Examined)
	require.Equal(t, map[int][]string{1: {DefaultLabel}}, src.setLabels)
}

func TestRun_Batching(t *testing.T) {
	ctx := testlogging.Context(t)

	var issues []tracker.Issue
	for i := 1; i <= 15; i++ {
		issues = append(issues, issue(i))
	}

	src := &fakeSource{pageSize: 100, issues: issues}
	cls := &fakeClassifier{}

	l, err := New(src, cls, Options{BatchSize: 10, ClassifyParallel: 1})
	require.NoError(t, err)

	stats, err := l.Run(ctx)
	require.NoError(t, err)

	require.Equal(t, 15, stats.Examined)
	require.Equal(t, 0, stats.Matched)
	require.ElementsMatch(t, []int{10, 5}, cls.batchSizes)
}

func TestRun_LowConfidenceAndWrongLabelIgnored(t *testing.T) {
	ctx := testlogging.Context(t)

	src := &fakeSource{pageSize: 10, issues: []tracker.Issue{issue(1), issue(2), issue(3)}}

	cls := &fakeClassifier{
		scores: map[string]classify.Result{
			"1": {ID: "1", Label: DefaultLabel, Confidence: 0.5}, // at threshold: non-match
			"2": {ID: "2", Label: "needs-triage", Confidence: 0.99},
			// 3 deliberately unscored: conservative non-match
		},
	}

	l, err := New(src, cls, Options{})
	require.NoError(t, err)

	stats, err := l.Run(ctx)
	require.NoError(t, err)

	require.Equal(t, 0, stats.Matched)
	require.Empty(t, src.setLabels)
}

func TestRun_ClassifierFailureAbortsRun(t *testing.T) {
	ctx := testlogging.Context(t)

	src := &fakeSource{pageSize: 10, issues: []tracker.Issue{issue(1)}}
	cls := &fakeClassifier{err: errors.New("classifier down")}

	l, err := New(src, cls, Options{})
	require.NoError(t, err)

	_, err = l.Run(ctx)
	require.ErrorContains(t, err, "classify stage failed")
	require.Empty(t, src.setLabels)
}

func TestRun_LabelWriteFailureAbortsRun(t *testing.T) {
	ctx := testlogging.Context(t)

	src := &fakeSource{
		pageSize:  10,
		issues:    []tracker.Issue{issue(1)},
		failWrite: true,
	}

	cls := &fakeClassifier{
		scores: map[string]classify.Result{"1": {ID: "1", Label: DefaultLabel, Confidence: 0.9}},
	}

	l, err := New(src, cls, Options{})
	require.NoError(t, err)

	_, err = l.Run(ctx)
	require.ErrorContains(t, err, "label stage failed")
}

func TestRun_DryRun(t *testing.T) {
	ctx := testlogging.Context(t)

	src := &fakeSource{pageSize: 10, issues: []tracker.Issue{issue(1)}}
	cls := &fakeClassifier{
		scores: map[string]classify.Result{"1": {ID: "1", Label: DefaultLabel, Confidence: 0.9}},
	}

	l, err := New(src, cls, Options{DryRun: true})
	require.NoError(t, err)

	stats, err := l.Run(ctx)
	require.NoError(t, err)

	require.Equal(t, 1, stats.Matched)
	require.Equal(t, 0, stats.Labeled)
	require.Empty(t, src.setLabels)
}

func TestRun_MaxIssues(t *testing.T) {
	ctx := testlogging.Context(t)

	var issues []tracker.Issue
	for i := 1; i <= 9; i++ {
		issues = append(issues, issue(i))
	}

	src := &fakeSource{pageSize: 3, issues: issues}
	cls := &fakeClassifier{}

	l, err := New(src, cls, Options{MaxIssues: 5})
	require.NoError(t, err)

	stats, err := l.Run(ctx)
	require.NoError(t, err)

	require.Equal(t, 5, stats.Fetched)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, &fakeClassifier{}, Options{})
	require.Error(t, err)

	_, err = New(&fakeSource{}, nil, Options{})
	require.Error(t, err)
}
