package webmonitor

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dj-oyu/yolo-live-monitor/pkg/types"
)

type publisher interface {
	ClientCount() int
	Publish(data []byte)
}

// publishWhenSubscribed delivers payload once the handler under test has
// registered its subscription. Publishing earlier would drop the payload
// since broadcasters only fan out to connected clients.
func publishWhenSubscribed(p publisher, payload []byte) {
	go func() {
		for i := 0; i < 150; i++ {
			if p.ClientCount() > 0 {
				p.Publish(payload)
				return
			}
			time.Sleep(20 * time.Millisecond)
		}
	}()
}

func getStreaming(t *testing.T, url string) *http.Response {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func readUntil(t *testing.T, body io.Reader, marker []byte) []byte {
	t.Helper()

	buf := make([]byte, 0, 4096)
	tmp := make([]byte, 256)
	for {
		n, err := body.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
			if bytes.Contains(buf, marker) {
				return buf
			}
		}
		if err != nil {
			t.Fatalf("stream ended before %q: %v", marker, err)
		}
	}
}

func readSSEData(t *testing.T, body io.Reader) []byte {
	t.Helper()

	event := string(readUntil(t, body, []byte("\n\n")))
	for _, line := range strings.Split(event, "\n") {
		if strings.HasPrefix(line, "data:") {
			return []byte(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	t.Fatalf("no data line in sse event: %q", event)
	return nil
}

func TestStreamServesMJPEG(t *testing.T) {
	f := newServerFixture(t)
	ts := httptest.NewServer(f.handler)
	defer ts.Close()

	sentinel := []byte("jpeg-frame-payload")
	publishWhenSubscribed(f.frames, sentinel)

	resp := getStreaming(t, ts.URL+"/stream")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /stream status = %d", resp.StatusCode)
	}
	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "multipart/x-mixed-replace") ||
		!strings.Contains(contentType, "boundary=frame") {
		t.Fatalf("GET /stream content-type = %q", contentType)
	}

	body := readUntil(t, resp.Body, sentinel)
	if !bytes.Contains(body, []byte("--frame\r\nContent-Type: image/jpeg\r\n\r\n")) {
		t.Fatalf("missing multipart frame header in %q", body)
	}
}

func TestStatsStreamDeliversPublishedEvents(t *testing.T) {
	f := newServerFixture(t)
	ts := httptest.NewServer(f.handler)
	defer ts.Close()

	event := types.StatsEvent{
		FrameNumber:     7,
		Frame:           []types.TallyEntry{{Label: "dog", Count: 1}},
		Cumulative:      []types.TallyEntry{{Label: "dog", Count: 1}},
		CumulativeTotal: 1,
		DistinctLabels:  1,
	}
	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	publishWhenSubscribed(f.statsChan, data)

	resp := getStreaming(t, ts.URL+"/api/stats/stream")
	if !strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		t.Fatalf("stats stream content-type = %q", resp.Header.Get("Content-Type"))
	}

	var got types.StatsEvent
	if err := json.Unmarshal(readSSEData(t, resp.Body), &got); err != nil {
		t.Fatalf("invalid event JSON: %v", err)
	}
	if got.FrameNumber != 7 || got.CumulativeTotal != 1 {
		t.Fatalf("unexpected event: %+v", got)
	}
	if len(got.Cumulative) != 1 || got.Cumulative[0].Label != "dog" {
		t.Fatalf("unexpected cumulative tally: %+v", got.Cumulative)
	}
}

func TestStatsStreamSendsSnapshotOnConnect(t *testing.T) {
	f := newServerFixture(t)
	ts := httptest.NewServer(f.handler)
	defer ts.Close()

	f.monitor.RecordStats(types.StatsEvent{
		FrameNumber:     42,
		Cumulative:      []types.TallyEntry{{Label: "cat", Count: 3}},
		CumulativeTotal: 3,
		DistinctLabels:  1,
	})

	// No publish: the first event must come from the stored snapshot.
	resp := getStreaming(t, ts.URL+"/api/stats/stream")
	if !strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		t.Fatalf("stats stream content-type = %q", resp.Header.Get("Content-Type"))
	}

	var got types.StatsEvent
	if err := json.Unmarshal(readSSEData(t, resp.Body), &got); err != nil {
		t.Fatalf("invalid event JSON: %v", err)
	}
	if got.FrameNumber != 42 || got.CumulativeTotal != 3 {
		t.Fatalf("unexpected snapshot event: %+v", got)
	}
}

func TestDetectionsStreamDeliversEvents(t *testing.T) {
	f := newServerFixture(t)
	ts := httptest.NewServer(f.handler)
	defer ts.Close()

	event := types.DetectionEvent{
		FrameNumber: 12,
		Detections: []types.Detection{
			{ClassName: "person", ClassID: 0, Confidence: 0.91},
		},
	}
	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	publishWhenSubscribed(f.detections, data)

	resp := getStreaming(t, ts.URL+"/api/detections/stream")
	if !strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		t.Fatalf("detections stream content-type = %q", resp.Header.Get("Content-Type"))
	}

	var got types.DetectionEvent
	if err := json.Unmarshal(readSSEData(t, resp.Body), &got); err != nil {
		t.Fatalf("invalid event JSON: %v", err)
	}
	if got.FrameNumber != 12 || len(got.Detections) != 1 {
		t.Fatalf("unexpected event: %+v", got)
	}
	if got.Detections[0].ClassName != "person" {
		t.Fatalf("unexpected detection: %+v", got.Detections[0])
	}
}
