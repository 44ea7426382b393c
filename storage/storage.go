// Package storage holds the row shapes shared by the collector storages.
package storage

import (
	"time"

	"github.com/and161185/csm-transport/model"
)

// FeedbackRow is one stored CSM feedback.
type FeedbackRow struct {
	ReceivedAt          time.Time
	WrapperVersion      string
	ProfileID           int
	ImpressionID        string
	ZoneID              *int
	CachedBidUsed       bool
	RequestGroupID      *string
	IsTimeout           bool
	CdbCallStartElapsed int64
	CdbCallEndElapsed   *int64
	Elapsed             *int64
}

// LogRow is one stored remote log message.
type LogRow struct {
	ReceivedAt    time.Time
	Version       string
	BundleID      string
	SessionID     string
	ProfileID     int
	ExceptionType string
	LogID         string
	Level         string
	Message       string
	LoggedAt      int64
}

// Stats counts what a storage holds.
type Stats struct {
	Feedbacks   int64 `json:"feedbacks"`
	LogMessages int64 `json:"logMessages"`
}

// FeedbackRows flattens req into one row per slot.
func FeedbackRows(req model.MetricRequest, receivedAt time.Time) []FeedbackRow {
	rows := make([]FeedbackRow, 0, len(req.Feedbacks))
	for _, fb := range req.Feedbacks {
		for _, slot := range fb.Slots {
			rows = append(rows, FeedbackRow{
				ReceivedAt:          receivedAt,
				WrapperVersion:      req.WrapperVersion,
				ProfileID:           req.ProfileID,
				ImpressionID:        slot.ImpressionID,
				ZoneID:              slot.ZoneID,
				CachedBidUsed:       slot.CachedBidUsed,
				RequestGroupID:      fb.RequestGroupID,
				IsTimeout:           fb.IsTimeout,
				CdbCallStartElapsed: fb.CdbCallStartElapsed,
				CdbCallEndElapsed:   fb.CdbCallEndElapsed,
				Elapsed:             fb.Elapsed,
			})
		}
	}
	return rows
}

// LogRows flattens logs into one row per message.
func LogRows(logs []model.RemoteLogRecords, receivedAt time.Time) []LogRow {
	var rows []LogRow
	for _, batch := range logs {
		c := batch.Context
		for _, rec := range batch.Logs {
			for _, msg := range rec.Messages {
				rows = append(rows, LogRow{
					ReceivedAt:    receivedAt,
					Version:       c.Version,
					BundleID:      c.BundleID,
					SessionID:     c.SessionID,
					ProfileID:     c.ProfileID,
					ExceptionType: c.ExceptionType,
					LogID:         c.LogID,
					Level:         string(rec.Level),
					Message:       msg,
					LoggedAt:      c.Timestamp,
				})
			}
		}
	}
	return rows
}
