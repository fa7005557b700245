package monitoring

import (
	"errors"
	"testing"
	"time"
)

type recordMonitor struct {
	errs    []error
	tags    map[string]string
	flushed bool
}

func (r *recordMonitor) CaptureException(err error, tags map[string]string) {
	r.errs = append(r.errs, err)
	r.tags = tags
}
func (r *recordMonitor) Flush(time.Duration) { r.flushed = true }

func TestCaptureException(t *testing.T) {
	mon := &recordMonitor{}
	Init(mon)
	defer Init(nil)

	CaptureException(nil, nil)
	CaptureException(errors.New("boom"), map[string]string{"module": "c1"})
	Flush(time.Second)

	if len(mon.errs) != 1 {
		t.Fatalf("expected 1 captured error got %d", len(mon.errs))
	}
	if mon.tags["module"] != "c1" {
		t.Fatalf("tags not forwarded: %v", mon.tags)
	}
	if !mon.flushed {
		t.Fatalf("flush not forwarded")
	}
}
