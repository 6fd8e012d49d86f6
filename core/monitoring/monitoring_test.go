package monitoring

import (
	"errors"
	"testing"
	"time"
)

type fakeReporter struct {
	errs    []error
	tags    []map[string]string
	flushed time.Duration
}

func (f *fakeReporter) CaptureError(err error, tags map[string]string) {
	f.errs = append(f.errs, err)
	f.tags = append(f.tags, tags)
}

func (f *fakeReporter) Flush(d time.Duration) { f.flushed = d }

func TestCaptureError(t *testing.T) {
	f := &fakeReporter{}
	SetReporter(f)
	defer SetReporter(nil)

	CaptureError(nil, nil)
	CaptureError(errors.New("boom"), map[string]string{"command": "fleet"})
	Flush(time.Second)

	if len(f.errs) != 1 || f.errs[0].Error() != "boom" {
		t.Fatalf("unexpected errors %v", f.errs)
	}
	if f.tags[0]["command"] != "fleet" {
		t.Fatalf("tags not forwarded: %v", f.tags[0])
	}
	if f.flushed != time.Second {
		t.Fatalf("flush not forwarded")
	}
}

func TestNopDefault(t *testing.T) {
	SetReporter(nil)
	if _, ok := reporter().(NopReporter); !ok {
		t.Fatalf("expected NopReporter got %T", reporter())
	}
	CaptureError(errors.New("ignored"), nil)
}
