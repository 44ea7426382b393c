// Package model contains core data types for the project.
package model

import (
	"encoding/json"
	"fmt"
)

// Metric describes the lifecycle of one ad call slot, keyed by its impression id.
// A Metric is immutable: updates go through ToBuilder and produce a new value.
type Metric struct {
	impressionID          string
	requestGroupID        *string
	zoneID                *int
	profileID             *int
	cdbCallStartTimestamp *int64
	cdbCallEndTimestamp   *int64
	elapsedTimestamp      *int64
	cdbCallTimeout        bool
	cachedBidUsed         bool
	readyToSend           bool
}

// metricJSON is the wire form of Metric.
type metricJSON struct {
	ImpressionID          string  `json:"impressionId"`
	RequestGroupID        *string `json:"requestGroupId,omitempty"`
	ZoneID                *int    `json:"zoneId,omitempty"`
	ProfileID             *int    `json:"profileId,omitempty"`
	CdbCallStartTimestamp *int64  `json:"cdbCallStartTimestamp,omitempty"`
	CdbCallEndTimestamp   *int64  `json:"cdbCallEndTimestamp,omitempty"`
	ElapsedTimestamp      *int64  `json:"elapsedTimestamp,omitempty"`
	CdbCallTimeout        bool    `json:"isCdbCallTimeout"`
	CachedBidUsed         bool    `json:"isCachedBidUsed"`
	ReadyToSend           bool    `json:"isReadyToSend"`
}

// ImpressionID returns the identity key of the metric.
func (m Metric) ImpressionID() string { return m.impressionID }

// RequestGroupID returns the id shared by all slots of the same bid request.
func (m Metric) RequestGroupID() (string, bool) { return derefOK(m.requestGroupID) }

// ZoneID returns the zone of the slot, if known.
func (m Metric) ZoneID() (int, bool) { return derefOK(m.zoneID) }

// ProfileID returns the integration profile the call was made with.
func (m Metric) ProfileID() (int, bool) { return derefOK(m.profileID) }

// CdbCallStartTimestamp returns the call start in unix milliseconds.
func (m Metric) CdbCallStartTimestamp() (int64, bool) { return derefOK(m.cdbCallStartTimestamp) }

// CdbCallEndTimestamp returns the call end in unix milliseconds.
func (m Metric) CdbCallEndTimestamp() (int64, bool) { return derefOK(m.cdbCallEndTimestamp) }

// ElapsedTimestamp returns when the bid was consumed, in unix milliseconds.
func (m Metric) ElapsedTimestamp() (int64, bool) { return derefOK(m.elapsedTimestamp) }

func (m Metric) IsCdbCallTimeout() bool { return m.cdbCallTimeout }
func (m Metric) IsCachedBidUsed() bool  { return m.cachedBidUsed }
func (m Metric) IsReadyToSend() bool    { return m.readyToSend }

// Equal reports whether all fields of both metrics match.
func (m Metric) Equal(o Metric) bool {
	return m.impressionID == o.impressionID &&
		ptrEqual(m.requestGroupID, o.requestGroupID) &&
		ptrEqual(m.zoneID, o.zoneID) &&
		ptrEqual(m.profileID, o.profileID) &&
		ptrEqual(m.cdbCallStartTimestamp, o.cdbCallStartTimestamp) &&
		ptrEqual(m.cdbCallEndTimestamp, o.cdbCallEndTimestamp) &&
		ptrEqual(m.elapsedTimestamp, o.elapsedTimestamp) &&
		m.cdbCallTimeout == o.cdbCallTimeout &&
		m.cachedBidUsed == o.cachedBidUsed &&
		m.readyToSend == o.readyToSend
}

func (m Metric) String() string {
	return fmt.Sprintf("Metric{impressionId=%s, readyToSend=%t}", m.impressionID, m.readyToSend)
}

// ToBuilder returns a builder pre-filled with a copy of the metric.
func (m Metric) ToBuilder() *MetricBuilder {
	return &MetricBuilder{draft: m.clone()}
}

func (m Metric) MarshalJSON() ([]byte, error) {
	return json.Marshal(metricJSON{
		ImpressionID:          m.impressionID,
		RequestGroupID:        m.requestGroupID,
		ZoneID:                m.zoneID,
		ProfileID:             m.profileID,
		CdbCallStartTimestamp: m.cdbCallStartTimestamp,
		CdbCallEndTimestamp:   m.cdbCallEndTimestamp,
		ElapsedTimestamp:      m.elapsedTimestamp,
		CdbCallTimeout:        m.cdbCallTimeout,
		CachedBidUsed:         m.cachedBidUsed,
		ReadyToSend:           m.readyToSend,
	})
}

func (m *Metric) UnmarshalJSON(data []byte) error {
	var w metricJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.ImpressionID == "" {
		return fmt.Errorf("metric without impressionId")
	}
	*m = Metric{
		impressionID:          w.ImpressionID,
		requestGroupID:        w.RequestGroupID,
		zoneID:                w.ZoneID,
		profileID:             w.ProfileID,
		cdbCallStartTimestamp: w.CdbCallStartTimestamp,
		cdbCallEndTimestamp:   w.CdbCallEndTimestamp,
		elapsedTimestamp:      w.ElapsedTimestamp,
		cdbCallTimeout:        w.CdbCallTimeout,
		cachedBidUsed:         w.CachedBidUsed,
		readyToSend:           w.ReadyToSend,
	}
	return nil
}

func (m Metric) clone() Metric {
	c := m
	c.requestGroupID = ptrCopy(m.requestGroupID)
	c.zoneID = ptrCopy(m.zoneID)
	c.profileID = ptrCopy(m.profileID)
	c.cdbCallStartTimestamp = ptrCopy(m.cdbCallStartTimestamp)
	c.cdbCallEndTimestamp = ptrCopy(m.cdbCallEndTimestamp)
	c.elapsedTimestamp = ptrCopy(m.elapsedTimestamp)
	return c
}

// MetricBuilder accumulates a mutable draft of a Metric.
type MetricBuilder struct {
	draft Metric
}

// NewMetricBuilder starts a metric for the given impression id.
func NewMetricBuilder(impressionID string) *MetricBuilder {
	return &MetricBuilder{draft: Metric{impressionID: impressionID}}
}

func (b *MetricBuilder) SetRequestGroupID(v string) *MetricBuilder {
	b.draft.requestGroupID = &v
	return b
}

func (b *MetricBuilder) SetZoneID(v int) *MetricBuilder {
	b.draft.zoneID = &v
	return b
}

func (b *MetricBuilder) SetProfileID(v int) *MetricBuilder {
	b.draft.profileID = &v
	return b
}

func (b *MetricBuilder) SetCdbCallStartTimestamp(v int64) *MetricBuilder {
	b.draft.cdbCallStartTimestamp = &v
	return b
}

func (b *MetricBuilder) SetCdbCallEndTimestamp(v int64) *MetricBuilder {
	b.draft.cdbCallEndTimestamp = &v
	return b
}

func (b *MetricBuilder) SetElapsedTimestamp(v int64) *MetricBuilder {
	b.draft.elapsedTimestamp = &v
	return b
}

func (b *MetricBuilder) SetCdbCallTimeout(v bool) *MetricBuilder {
	b.draft.cdbCallTimeout = v
	return b
}

func (b *MetricBuilder) SetCachedBidUsed(v bool) *MetricBuilder {
	b.draft.cachedBidUsed = v
	return b
}

func (b *MetricBuilder) SetReadyToSend(v bool) *MetricBuilder {
	b.draft.readyToSend = v
	return b
}

// ImpressionID returns the key of the metric being built.
func (b *MetricBuilder) ImpressionID() string { return b.draft.impressionID }

// Build returns an immutable snapshot. The builder stays usable.
func (b *MetricBuilder) Build() Metric {
	return b.draft.clone()
}

func ptrCopy[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func ptrEqual[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func derefOK[T any](p *T) (T, bool) {
	if p == nil {
		var zero T
		return zero, false
	}
	return *p, true
}
