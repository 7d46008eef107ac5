package metrics

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecorderSnapshot(t *testing.T) {
	r := NewRecorder()
	r.FileSeen()
	r.FileSeen()
	r.FileSeen()
	r.Announced()
	r.Rejected()
	r.Failed()
	r.TimeRequest(time.Now().Add(-10 * time.Millisecond))

	s := r.Snapshot()
	assert.Equal(t, Summary{Seen: 3, Announced: 1, Rejected: 1, Failed: 1}, s)
	assert.Equal(t, "seen=3 announced=1 rejected=1 skipped=0 failed=1", s.String())

	var buf bytes.Buffer
	r.Dump(&buf)
	assert.Contains(t, buf.String(), "counter "+FilesSeen)
	assert.Contains(t, buf.String(), "timer "+ParseRequest)
}

func TestRecordersAreIndependent(t *testing.T) {
	a, b := NewRecorder(), NewRecorder()
	a.Announced()
	assert.Zero(t, b.Snapshot().Announced)
}
