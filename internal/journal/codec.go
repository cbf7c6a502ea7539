package journal

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// EncodeRecord serializes a Record with msgpack, the compact binary trace
// format a checkpoint-heavy pipeline writes far more often than it's read
// back — a text format would cost more than it's worth here.
func EncodeRecord(rec Record) ([]byte, error) {
	body, err := msgpack.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode trace record: %w", err)
	}
	return body, nil
}

// DecodeRecord is the inverse of EncodeRecord.
func DecodeRecord(body []byte) (Record, error) {
	var rec Record
	if err := msgpack.Unmarshal(body, &rec); err != nil {
		return Record{}, fmt.Errorf("decode trace record: %w", err)
	}
	return rec, nil
}

// EncodeTrace serializes a whole trace (all records for one run) as a
// single msgpack array, the shape an S3-backed Journal stores per run.
func EncodeTrace(recs []Record) ([]byte, error) {
	body, err := msgpack.Marshal(recs)
	if err != nil {
		return nil, fmt.Errorf("encode trace: %w", err)
	}
	return body, nil
}

// DecodeTrace is the inverse of EncodeTrace.
func DecodeTrace(body []byte) ([]Record, error) {
	var recs []Record
	if err := msgpack.Unmarshal(body, &recs); err != nil {
		return nil, fmt.Errorf("decode trace: %w", err)
	}
	return recs, nil
}
