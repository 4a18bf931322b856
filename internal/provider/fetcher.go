package provider

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"reimbursement-service/internal/util"
)

// Fetcher drives one report through the provider's request/poll/download
// cycle and parses the result. It carries no retry policy; retrying a failed
// report belongs to the sync orchestrator.
type Fetcher struct {
	provider     Provider
	pollInterval time.Duration
	pollTimeout  time.Duration
	logger       *zap.Logger
}

// NewFetcher creates a report fetcher. Zero durations fall back to the
// provider defaults of 10s polls under a 300s ceiling.
func NewFetcher(p Provider, pollInterval, pollTimeout time.Duration) *Fetcher {
	if pollInterval <= 0 {
		pollInterval = 10 * time.Second
	}
	if pollTimeout <= 0 {
		pollTimeout = 300 * time.Second
	}
	return &Fetcher{
		provider:     p,
		pollInterval: pollInterval,
		pollTimeout:  pollTimeout,
		logger:       util.GetLogger(),
	}
}

// Fetch requests a report for [start, end), waits for it to complete and
// returns the parsed table.
func (f *Fetcher) Fetch(ctx context.Context, reportType string, start, end time.Time) (*Table, error) {
	ctx, span := util.StartSpan(ctx, "Fetcher.Fetch")
	defer span.End()

	began := time.Now()
	defer func() {
		util.ReportFetchDuration.WithLabelValues(reportType).Observe(time.Since(began).Seconds())
	}()

	reportID, err := f.provider.CreateReport(ctx, reportType, start, end)
	if err != nil {
		return nil, err
	}

	documentID, err := f.waitForReport(ctx, reportType, reportID)
	if err != nil {
		return nil, err
	}

	raw, err := f.provider.DownloadReport(ctx, documentID)
	if err != nil {
		return nil, err
	}

	table, err := ParseTable(raw)
	if err != nil {
		return nil, newError(ErrKindResponse, "parse", err)
	}

	f.logger.Info("Report fetched",
		zap.String("report_type", reportType),
		zap.String("report_id", reportID),
		zap.Int("rows", table.Len()),
		zap.Int("skipped", table.Skipped))
	return table, nil
}

// waitForReport polls at a fixed interval until the report is DONE, fails or
// the overall ceiling elapses.
func (f *Fetcher) waitForReport(ctx context.Context, reportType, reportID string) (string, error) {
	deadline := time.Now().Add(f.pollTimeout)
	attempts := 0
	defer func() {
		util.ReportPollAttempts.Observe(float64(attempts))
	}()

	for {
		attempts++
		status, err := f.provider.GetReportStatus(ctx, reportID)
		if err != nil {
			return "", err
		}

		switch status.Status {
		case ReportStatusDone:
			if status.ReportDocumentID == "" {
				return "", newError(ErrKindResponse, "poll",
					fmt.Errorf("report %s done but no document id", reportID))
			}
			return status.ReportDocumentID, nil
		case ReportStatusFatal, ReportStatusCancelled:
			return "", newError(ErrKindProcessing, "poll",
				fmt.Errorf("report %s (%s) ended %s", reportID, reportType, status.Status))
		}

		if time.Now().After(deadline) {
			return "", newError(ErrKindTimeout, "poll",
				fmt.Errorf("report %s (%s) still %s after %s", reportID, reportType, status.Status, f.pollTimeout))
		}

		select {
		case <-ctx.Done():
			return "", newError(ErrKindTimeout, "poll", ctx.Err())
		case <-time.After(f.pollInterval):
		}
	}
}
