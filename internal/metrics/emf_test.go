package metrics

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"
)

func TestNew_BoothDimension(t *testing.T) {
	initOnce.Do(func() {})
	boothID = "lobby-1"
	defer func() { boothID = "" }()

	r := New(Namespace)
	if r.namespace != Namespace {
		t.Errorf("namespace = %s, want %s", r.namespace, Namespace)
	}
	if r.dimensions["BoothID"] != "lobby-1" {
		t.Errorf("BoothID dimension = %q, want lobby-1", r.dimensions["BoothID"])
	}
}

func captureFlush(t *testing.T, build func(r *Recorder)) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(nil)

	rec := New(Namespace)
	build(rec)
	rec.Flush()

	if buf.Len() == 0 {
		return nil
	}
	var doc map[string]any
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("failed to parse EMF output as JSON: %v\nOutput: %s", err, buf.String())
	}
	return doc
}

func TestRecorder_FlushOutput(t *testing.T) {
	boothID = ""
	doc := captureFlush(t, func(r *Recorder) {
		r.Dimension("Template", "strip_2x6").
			Metric(ComposeMs, 1234.5, UnitMilliseconds).
			Metric(ShotCount, 2, UnitCount).
			Property("sessionId", "abc-123")
	})
	if doc == nil {
		t.Fatal("no output")
	}

	awsMap, ok := doc["_aws"].(map[string]any)
	if !ok {
		t.Fatal("missing _aws directive in EMF output")
	}
	if _, ok := awsMap["Timestamp"]; !ok {
		t.Error("missing Timestamp in _aws directive")
	}
	cwArr, ok := awsMap["CloudWatchMetrics"].([]any)
	if !ok || len(cwArr) == 0 {
		t.Fatal("CloudWatchMetrics should be a non-empty array")
	}
	cw := cwArr[0].(map[string]any)
	if cw["Namespace"] != Namespace {
		t.Errorf("Namespace = %v, want %s", cw["Namespace"], Namespace)
	}
	defs := cw["Metrics"].([]any)
	if first := defs[0].(map[string]any)["Name"]; first != ComposeMs {
		t.Errorf("first metric = %v, want sorted %s", first, ComposeMs)
	}

	if doc["Template"] != "strip_2x6" {
		t.Errorf("Template = %v, want strip_2x6", doc["Template"])
	}
	if doc[ComposeMs] != 1234.5 {
		t.Errorf("ComposeMs = %v, want 1234.5", doc[ComposeMs])
	}
	if doc[ShotCount] != float64(2) {
		t.Errorf("ShotCount = %v, want 2", doc[ShotCount])
	}
	if doc["sessionId"] != "abc-123" {
		t.Errorf("sessionId = %v, want abc-123", doc["sessionId"])
	}
}

func TestRecorder_FlushEmpty(t *testing.T) {
	if doc := captureFlush(t, func(*Recorder) {}); doc != nil {
		t.Errorf("expected no output for empty recorder, got: %v", doc)
	}
}

func TestRecorder_CountAndDuration(t *testing.T) {
	boothID = ""
	rec := New(Namespace).Count(FrameFallback).Duration(ComposeMs, 1500*time.Microsecond)

	if v := rec.values[FrameFallback]; v != float64(1) {
		t.Errorf("FrameFallback = %v, want 1", v)
	}
	if m := rec.metrics[FrameFallback]; m.Unit != UnitCount {
		t.Errorf("unit = %v, want Count", m.Unit)
	}
	if v := rec.values[ComposeMs]; v != 1.5 {
		t.Errorf("ComposeMs = %v, want 1.5", v)
	}
}

func TestSetBoothID(t *testing.T) {
	initOnce.Do(func() {})
	defer func() { boothID = "" }()

	SetBoothID("kiosk-2")
	if got := New(Namespace).dimensions["BoothID"]; got != "kiosk-2" {
		t.Errorf("BoothID dimension = %q, want kiosk-2", got)
	}
	SetBoothID("")
	if got := New(Namespace).dimensions["BoothID"]; got != "kiosk-2" {
		t.Errorf("SetBoothID(\"\") changed dimension to %q", got)
	}
}

func TestRecorder_DocumentPrecedence(t *testing.T) {
	boothID = ""
	r := New(Namespace).
		Property("Template", "ignored").
		Property(PrintCount, "ignored").
		Dimension("Template", "postcard_4x6").
		Metric(PrintCount, 3, UnitCount)

	doc := r.document(time.UnixMilli(42))
	if doc["Template"] != "postcard_4x6" {
		t.Errorf("Template = %v, want dimension value", doc["Template"])
	}
	if doc[PrintCount] != float64(3) {
		t.Errorf("PrintCount = %v, want metric value", doc[PrintCount])
	}
	d := doc["_aws"].(directive)
	if d.Timestamp != 42 {
		t.Errorf("Timestamp = %d, want 42", d.Timestamp)
	}
	if dims := d.CloudWatchMetrics[0].Dimensions[0]; len(dims) != 1 || dims[0] != "Template" {
		t.Errorf("Dimensions = %v, want [Template]", dims)
	}
}
