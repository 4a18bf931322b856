package provider

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProvider walks through a fixed sequence of poll statuses.
type scriptedProvider struct {
	createErr   error
	statuses    []ReportStatus
	statusErr   error
	body        string
	downloadErr error

	polls     int
	downloads int
}

func (p *scriptedProvider) CreateReport(_ context.Context, _ string, _, _ time.Time) (string, error) {
	if p.createErr != nil {
		return "", p.createErr
	}
	return "report-1", nil
}

func (p *scriptedProvider) GetReportStatus(_ context.Context, _ string) (*ReportStatus, error) {
	if p.statusErr != nil {
		return nil, p.statusErr
	}
	i := p.polls
	if i >= len(p.statuses) {
		i = len(p.statuses) - 1
	}
	p.polls++
	return &p.statuses[i], nil
}

func (p *scriptedProvider) DownloadReport(_ context.Context, _ string) (string, error) {
	p.downloads++
	if p.downloadErr != nil {
		return "", p.downloadErr
	}
	return p.body, nil
}

func TestFetchWaitsForDoneReport(t *testing.T) {
	p := &scriptedProvider{
		statuses: []ReportStatus{
			{Status: ReportStatusInQueue},
			{Status: ReportStatusInProgress},
			{Status: ReportStatusDone, ReportDocumentID: "doc-1"},
		},
		body: "fnsku\tquantity\nX0001\t5\n",
	}
	f := NewFetcher(p, time.Millisecond, time.Second)

	table, err := f.Fetch(context.Background(), "TEST_REPORT", time.Now().AddDate(0, -1, 0), time.Now())
	require.NoError(t, err)

	assert.Equal(t, 1, table.Len())
	assert.Equal(t, 3, p.polls)
	assert.Equal(t, 1, p.downloads)
}

func TestFetchFailsOnFatalReport(t *testing.T) {
	p := &scriptedProvider{
		statuses: []ReportStatus{
			{Status: ReportStatusInProgress},
			{Status: ReportStatusFatal},
		},
	}
	f := NewFetcher(p, time.Millisecond, time.Second)

	_, err := f.Fetch(context.Background(), "TEST_REPORT", time.Now().AddDate(0, -1, 0), time.Now())
	require.Error(t, err)
	assert.Equal(t, ErrKindProcessing, KindOf(err))
	assert.Zero(t, p.downloads)
}

func TestFetchFailsOnCancelledReport(t *testing.T) {
	p := &scriptedProvider{
		statuses: []ReportStatus{{Status: ReportStatusCancelled}},
	}
	f := NewFetcher(p, time.Millisecond, time.Second)

	_, err := f.Fetch(context.Background(), "TEST_REPORT", time.Now().AddDate(0, -1, 0), time.Now())
	require.Error(t, err)
	assert.Equal(t, ErrKindProcessing, KindOf(err))
}

func TestFetchTimesOutOnStuckReport(t *testing.T) {
	p := &scriptedProvider{
		statuses: []ReportStatus{{Status: ReportStatusInProgress}},
	}
	f := NewFetcher(p, time.Millisecond, 10*time.Millisecond)

	_, err := f.Fetch(context.Background(), "TEST_REPORT", time.Now().AddDate(0, -1, 0), time.Now())
	require.Error(t, err)
	assert.Equal(t, ErrKindTimeout, KindOf(err))
}

func TestFetchRejectsDoneWithoutDocument(t *testing.T) {
	p := &scriptedProvider{
		statuses: []ReportStatus{{Status: ReportStatusDone}},
	}
	f := NewFetcher(p, time.Millisecond, time.Second)

	_, err := f.Fetch(context.Background(), "TEST_REPORT", time.Now().AddDate(0, -1, 0), time.Now())
	require.Error(t, err)
	assert.Equal(t, ErrKindResponse, KindOf(err))
}

func TestFetchPropagatesCreateError(t *testing.T) {
	p := &scriptedProvider{
		createErr: newError(ErrKindConfiguration, "createReport", nil),
	}
	f := NewFetcher(p, time.Millisecond, time.Second)

	_, err := f.Fetch(context.Background(), "TEST_REPORT", time.Now().AddDate(0, -1, 0), time.Now())
	require.Error(t, err)
	assert.Equal(t, ErrKindConfiguration, KindOf(err))
	assert.Zero(t, p.polls)
}

func TestFetchHonorsContextDuringPolling(t *testing.T) {
	p := &scriptedProvider{
		statuses: []ReportStatus{{Status: ReportStatusInQueue}},
	}
	f := NewFetcher(p, time.Hour, 2*time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.Fetch(ctx, "TEST_REPORT", time.Now().AddDate(0, -1, 0), time.Now())
	require.Error(t, err)
	assert.Equal(t, ErrKindTimeout, KindOf(err))
	assert.Equal(t, 1, p.polls)
}

func TestFetchWrapsUnparseableDocument(t *testing.T) {
	p := &scriptedProvider{
		statuses: []ReportStatus{{Status: ReportStatusDone, ReportDocumentID: "doc-1"}},
		body:     "\n",
	}
	f := NewFetcher(p, time.Millisecond, time.Second)

	_, err := f.Fetch(context.Background(), "TEST_REPORT", time.Now().AddDate(0, -1, 0), time.Now())
	require.Error(t, err)
	assert.Equal(t, ErrKindResponse, KindOf(err))
}
