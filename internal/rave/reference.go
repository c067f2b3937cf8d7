package rave

import (
	"fmt"
	"sync/atomic"
	"time"
)

var refSeq atomic.Uint32

// NewReferenceNumber returns prefix verbatim when override is set; the caller
// then owns uniqueness. Otherwise it appends a time based suffix plus a
// process-wide sequence, so two calls in one process never return the same value.
func NewReferenceNumber(prefix string, override bool) string {
	if override {
		return prefix
	}

	now := time.Now()
	seq := refSeq.Add(1) & 0xffff

	return fmt.Sprintf("%s_%08x%05x%04x", prefix, now.Unix(), now.Nanosecond()/1000, seq)
}
