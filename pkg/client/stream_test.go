package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/baalimago/go_away_boilerplate/pkg/testboil"

	"github.com/queryweaver/qw/pkg/frame"
	"github.com/queryweaver/qw/pkg/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	c, err := New(ts.URL, append([]Option{WithHTTPClient(ts.Client())}, opts...)...)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return c
}

func writeFrame(t *testing.T, w http.ResponseWriter, jsonMsg string) {
	t.Helper()
	fmt.Fprint(w, jsonMsg+frame.Boundary)
	if fl, ok := w.(http.Flusher); ok {
		fl.Flush()
	}
}

func collectAll(t *testing.T, events <-chan models.StreamEvent) ([]models.StreamMessage, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return Collect(ctx, events)
}

func Test_Query_happyPath(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeFrame(t, w, `{"type":"reasoning_step","message":"Step 1: Analyzing user query and generating SQL..."}`)
		writeFrame(t, w, `{"type":"ai_response","final_response":true,"message":"There are 3 users"}`)
	})

	msgs, err := collectAll(t, c.Query(context.Background(), "db1", models.ChatRequest{Chat: []string{"how many users?"}}))
	if err != nil {
		t.Fatalf("unexpected hard failure: %v", err)
	}
	testboil.FailTestIfDiff(t, len(msgs), 2)
	testboil.FailTestIfDiff(t, string(msgs[0].Type), "reasoning_step")
	testboil.FailTestIfDiff(t, string(msgs[1].Type), "ai_response")
	testboil.FailTestIfDiff(t, msgs[1].Message, "There are 3 users")
	if !msgs[1].Terminal() {
		t.Fatal("expected final message to be terminal")
	}
}

func Test_Query_requestShape(t *testing.T) {
	var gotBody models.ChatRequest
	var gotContentType, gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		if r.URL.Path != "/graphs/db1" {
			t.Errorf("unexpected path: %v", r.URL.Path)
		}
		writeFrame(t, w, `{"type":"ai_response","final_response":true,"message":"ok"}`)
	}, WithToken("sekret"))

	req := models.ChatRequest{
		Chat:   []string{"first question", "second question"},
		Result: []string{"first answer"},
	}
	if _, err := collectAll(t, c.Query(context.Background(), "db1", req)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testboil.FailTestIfDiff(t, gotContentType, "application/json")
	testboil.FailTestIfDiff(t, gotAuth, "Bearer sekret")
	testboil.FailTestIfDiff(t, len(gotBody.Chat), 2)
	testboil.FailTestIfDiff(t, gotBody.Chat[1], "second question")
	testboil.FailTestIfDiff(t, gotBody.Result[0], "first answer")
}

// Test_Query_chunkBoundaryIndependence splits a fixed payload at every byte
// offset, sends it as two flushed chunks and expects the identical message
// sequence every time. This covers delimiters and multi-byte runes broken
// across reads.
func Test_Query_chunkBoundaryIndependence(t *testing.T) {
	payload := `{"type":"reasoning_step","message":"Step 1"}` + frame.Boundary +
		`{"type":"ai_response","message":"héllo wörld 🦊","final_response":true}` + frame.Boundary
	want := []string{"Step 1", "héllo wörld 🦊"}

	for offset := 0; offset <= len(payload); offset++ {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, payload[:offset])
			if fl, ok := w.(http.Flusher); ok {
				fl.Flush()
			}
			fmt.Fprint(w, payload[offset:])
		})
		msgs, err := collectAll(t, c.Query(context.Background(), "db1", models.ChatRequest{Chat: []string{"q"}}))
		if err != nil {
			t.Fatalf("offset %v: unexpected error: %v", offset, err)
		}
		if len(msgs) != len(want) {
			t.Fatalf("offset %v: expected %v messages, got %v: %+v", offset, len(want), len(msgs), msgs)
		}
		for i := range want {
			if msgs[i].Message != want[i] {
				t.Fatalf("offset %v: message %v diff, want %q got %q", offset, i, want[i], msgs[i].Message)
			}
		}
	}
}

func Test_Query_trailingFrameWithoutDelimiter(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeFrame(t, w, `{"type":"reasoning_step","message":"working"}`)
		// no trailing delimiter after the last frame
		fmt.Fprint(w, `{"type":"ai_response","final_response":true,"message":"tail"}`)
	})

	msgs, err := collectAll(t, c.Query(context.Background(), "db1", models.ChatRequest{Chat: []string{"q"}}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testboil.FailTestIfDiff(t, len(msgs), 2)
	testboil.FailTestIfDiff(t, msgs[1].Message, "tail")
}

func Test_Query_malformedTrailingFrame(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeFrame(t, w, `{"type":"reasoning_step","message":"working"}`)
		fmt.Fprint(w, `{"type":"ai_resp`)
	})

	msgs, err := collectAll(t, c.Query(context.Background(), "db1", models.ChatRequest{Chat: []string{"q"}}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testboil.FailTestIfDiff(t, len(msgs), 2)
	testboil.FailTestIfDiff(t, string(msgs[1].Type), "error")
}

// A malformed frame between two valid ones yields valid, error, valid. One
// broken frame must never abort the session.
func Test_Query_malformedFrameContinues(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeFrame(t, w, `{"type":"reasoning_step","message":"one"}`)
		writeFrame(t, w, `{not json at all`)
		writeFrame(t, w, `{"type":"ai_response","final_response":true,"message":"two"}`)
	})

	msgs, err := collectAll(t, c.Query(context.Background(), "db1", models.ChatRequest{Chat: []string{"q"}}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testboil.FailTestIfDiff(t, len(msgs), 3)
	testboil.FailTestIfDiff(t, string(msgs[0].Type), "reasoning_step")
	testboil.FailTestIfDiff(t, string(msgs[1].Type), "error")
	testboil.AssertStringContains(t, msgs[1].Message, "{not json at all")
	testboil.FailTestIfDiff(t, string(msgs[2].Type), "ai_response")
}

func Test_Query_malformedFrameExcerptIsBounded(t *testing.T) {
	garbage := "{" + strings.Repeat("x", 5000)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeFrame(t, w, garbage)
	})

	msgs, err := collectAll(t, c.Query(context.Background(), "db1", models.ChatRequest{Chat: []string{"q"}}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testboil.FailTestIfDiff(t, len(msgs), 1)
	if len(msgs[0].Message) > 300 {
		t.Fatalf("error message not bounded, got %v chars", len(msgs[0].Message))
	}
}

func Test_Query_non2xxStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":"boom"}`)
	})

	msgs, err := collectAll(t, c.Query(context.Background(), "db1", models.ChatRequest{Chat: []string{"q"}}))
	if err != nil {
		t.Fatalf("status failures must not be hard errors, got: %v", err)
	}
	testboil.FailTestIfDiff(t, len(msgs), 1)
	testboil.FailTestIfDiff(t, string(msgs[0].Type), "error")
	testboil.FailTestIfDiff(t, msgs[0].Message, "boom")
}

func Test_Query_emptyGraphID(t *testing.T) {
	var gotRequests atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotRequests.Add(1)
	})

	msgs, err := collectAll(t, c.Query(context.Background(), "  ", models.ChatRequest{Chat: []string{"q"}}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testboil.FailTestIfDiff(t, len(msgs), 1)
	testboil.FailTestIfDiff(t, string(msgs[0].Type), "error")
	testboil.AssertStringContains(t, msgs[0].Message, "graph id")
	testboil.FailTestIfDiff(t, int(gotRequests.Load()), 0)
}

func Test_Query_initiationTimeout(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, WithInitTimeout(25*time.Millisecond))
	// Cleanups run LIFO: this must be registered after the server's Close so
	// the handler is released before Close waits for it
	t.Cleanup(func() { close(release) })

	msgs, err := collectAll(t, c.Query(context.Background(), "db1", models.ChatRequest{Chat: []string{"q"}}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testboil.FailTestIfDiff(t, len(msgs), 1)
	testboil.FailTestIfDiff(t, string(msgs[0].Type), "error")
	testboil.AssertStringContains(t, msgs[0].Message, "no response from server")
}

// The streaming phase has no fixed timeout, a server which delivers slowly
// but steadily must not trip the initiation bound.
func Test_Query_slowStreamOutlivesInitTimeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeFrame(t, w, `{"type":"reasoning_step","message":"one"}`)
		time.Sleep(80 * time.Millisecond)
		writeFrame(t, w, `{"type":"ai_response","final_response":true,"message":"two"}`)
	}, WithInitTimeout(25*time.Millisecond))

	msgs, err := collectAll(t, c.Query(context.Background(), "db1", models.ChatRequest{Chat: []string{"q"}}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testboil.FailTestIfDiff(t, len(msgs), 2)
}

func Test_Query_transportFailureMidStream(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		// Announce more data than is written, the server closing the
		// connection then surfaces as an unexpected EOF client-side
		w.Header().Set("Content-Length", "4096")
		writeFrame(t, w, `{"type":"reasoning_step","message":"one"}`)
	})

	events := c.Query(context.Background(), "db1", models.ChatRequest{Chat: []string{"q"}})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	msgs, err := Collect(ctx, events)
	if err == nil {
		t.Fatal("expected a hard transport failure")
	}
	testboil.AssertStringContains(t, err.Error(), "transport failure")
	// the informational error message must arrive before the hard failure
	testboil.FailTestIfDiff(t, len(msgs), 2)
	testboil.FailTestIfDiff(t, string(msgs[0].Type), "reasoning_step")
	testboil.FailTestIfDiff(t, string(msgs[1].Type), "error")
	testboil.AssertStringContains(t, msgs[1].Message, "connection lost mid-stream")
}

// Cancelling after N messages means the consumer observes exactly N, however
// much more the transport had buffered.
func Test_Query_cancelMidStream(t *testing.T) {
	serverDone := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeFrame(t, w, `{"type":"reasoning_step","message":"one"}`)
		writeFrame(t, w, `{"type":"reasoning_step","message":"two"}`)
		<-r.Context().Done()
		close(serverDone)
	})

	ctx, cancel := context.WithCancel(context.Background())
	events := c.Query(ctx, "db1", models.ChatRequest{Chat: []string{"q"}})

	var got []models.StreamMessage
	for i := 0; i < 2; i++ {
		ev := <-events
		msg, ok := ev.(models.StreamMessage)
		if !ok {
			t.Fatalf("expected message, got: %T %v", ev, ev)
		}
		got = append(got, msg)
	}
	cancel()

	for ev := range events {
		t.Fatalf("received event after cancellation: %v", ev)
	}
	testboil.FailTestIfDiff(t, len(got), 2)

	select {
	case <-serverDone:
	case <-time.After(2 * time.Second):
		t.Fatal("connection not released after cancellation")
	}
}

func Test_Query_returnsOnContextCancel(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeFrame(t, w, `{"type":"reasoning_step","message":"one"}`)
		<-r.Context().Done()
	})
	testboil.ReturnsOnContextCancel(t, func(ctx context.Context) {
		for range c.Query(ctx, "db1", models.ChatRequest{Chat: []string{"q"}}) {
		}
	}, time.Second)
}

func Test_Confirm(t *testing.T) {
	var gotBody models.ConfirmRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/graphs/db1/confirm" {
			t.Errorf("unexpected path: %v", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		writeFrame(t, w, `{"type":"reasoning_step","message":"Step 2: Executing confirmed SQL query"}`)
		writeFrame(t, w, `{"type":"query_result","data":[["ok"]]}`)
	})

	req := models.ConfirmRequest{
		SQLQuery:     "DROP TABLE users",
		Confirmation: models.ConfirmationAccepted,
		Chat:         []string{"drop the users table"},
	}
	msgs, err := collectAll(t, c.Confirm(context.Background(), "db1", req))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testboil.FailTestIfDiff(t, len(msgs), 2)
	testboil.FailTestIfDiff(t, string(msgs[1].Type), "query_result")
	testboil.FailTestIfDiff(t, gotBody.Confirmation, "CONFIRM")
	testboil.FailTestIfDiff(t, gotBody.SQLQuery, "DROP TABLE users")
}

func Test_Confirm_missingSQL(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should be sent")
	})
	msgs, err := collectAll(t, c.Confirm(context.Background(), "db1", models.ConfirmRequest{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testboil.FailTestIfDiff(t, len(msgs), 1)
	testboil.AssertStringContains(t, msgs[0].Message, "sql query")
}

func Test_ConnectDatabase(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/database" {
			t.Errorf("unexpected path: %v", r.URL.Path)
		}
		writeFrame(t, w, `{"type":"reasoning_step","message":"Step 1: Starting database connection"}`)
		writeFrame(t, w, `{"type":"final_result","success":true,"message":"Database connected and schema loaded successfully"}`)
	})

	msgs, err := collectAll(t, c.ConnectDatabase(context.Background(), models.ConnectRequest{URL: "postgres://localhost/app"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testboil.FailTestIfDiff(t, len(msgs), 2)
	testboil.FailTestIfDiff(t, string(msgs[1].Type), "final_result")
	if !msgs[1].Success {
		t.Fatal("expected success")
	}
}

func Test_ConnectDatabase_emptyURL(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should be sent")
	})
	msgs, err := collectAll(t, c.ConnectDatabase(context.Background(), models.ConnectRequest{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testboil.FailTestIfDiff(t, len(msgs), 1)
	testboil.FailTestIfDiff(t, string(msgs[0].Type), "error")
}
