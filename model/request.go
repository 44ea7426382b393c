package model

// MetricRequest is the body posted to the collector for a batch of metrics.
type MetricRequest struct {
	Feedbacks      []MetricFeedback `json:"feedbacks"`
	WrapperVersion string           `json:"wrapper_version"`
	ProfileID      int              `json:"profile_id"`
}

// MetricFeedback is the per-call part of a MetricRequest.
// Elapsed values are relative to the call start.
type MetricFeedback struct {
	Slots               []MetricSlot `json:"slots"`
	Elapsed             *int64       `json:"elapsed,omitempty"`
	IsTimeout           bool         `json:"isTimeout"`
	CdbCallStartElapsed int64        `json:"cdbCallStartElapsed"`
	CdbCallEndElapsed   *int64       `json:"cdbCallEndElapsed,omitempty"`
	RequestGroupID      *string      `json:"requestGroupId,omitempty"`
}

// MetricSlot identifies the impression a feedback is about.
type MetricSlot struct {
	ImpressionID  string `json:"impressionId"`
	ZoneID        *int   `json:"zoneId,omitempty"`
	CachedBidUsed bool   `json:"cachedBidUsed"`
}

// NewMetricRequest builds the request for a batch of metrics.
func NewMetricRequest(metrics []Metric, wrapperVersion string, profileID int) MetricRequest {
	feedbacks := make([]MetricFeedback, 0, len(metrics))
	for _, m := range metrics {
		feedbacks = append(feedbacks, newFeedback(m))
	}
	return MetricRequest{
		Feedbacks:      feedbacks,
		WrapperVersion: wrapperVersion,
		ProfileID:      profileID,
	}
}

func newFeedback(m Metric) MetricFeedback {
	fb := MetricFeedback{
		Slots: []MetricSlot{{
			ImpressionID:  m.impressionID,
			ZoneID:        ptrCopy(m.zoneID),
			CachedBidUsed: m.cachedBidUsed,
		}},
		IsTimeout:      m.cdbCallTimeout,
		RequestGroupID: ptrCopy(m.requestGroupID),
	}

	start, ok := m.CdbCallStartTimestamp()
	if !ok {
		return fb
	}
	if end, ok := m.CdbCallEndTimestamp(); ok {
		d := end - start
		fb.CdbCallEndElapsed = &d
	}
	if elapsed, ok := m.ElapsedTimestamp(); ok {
		d := elapsed - start
		fb.Elapsed = &d
	}
	return fb
}
