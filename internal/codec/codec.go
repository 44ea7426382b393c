// Package codec serializes queue records.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/and161185/csm-transport/internal/errs"
	"github.com/and161185/csm-transport/model"
)

// Codec converts records to and from bytes. Decode failures match errs.ErrCorruptRecord.
type Codec[T any] interface {
	Encode(v T) ([]byte, error)
	Decode(data []byte) (T, error)
}

// JSONCodec encodes records as compact JSON.
type JSONCodec[T any] struct{}

func (JSONCodec[T]) Encode(v T) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return data, nil
}

func (JSONCodec[T]) Decode(data []byte) (T, error) {
	var v T
	if len(bytes.TrimSpace(data)) == 0 {
		return v, errs.Corrupt(fmt.Errorf("empty payload"))
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&v); err != nil {
		var zero T
		return zero, errs.Corrupt(err)
	}
	if dec.More() {
		var zero T
		return zero, errs.Corrupt(fmt.Errorf("trailing data"))
	}
	return v, nil
}

// Metric is the codec used for CSM metrics.
func Metric() Codec[model.Metric] { return JSONCodec[model.Metric]{} }

// RemoteLogs is the codec used for remote log records.
func RemoteLogs() Codec[model.RemoteLogRecords] { return JSONCodec[model.RemoteLogRecords]{} }
