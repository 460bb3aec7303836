package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/unicode"

	"github.com/queryweaver/qw/pkg/frame"
	"github.com/queryweaver/qw/pkg/models"
)

const (
	readChunkSize   = 4096
	maxFrameExcerpt = 100
	maxErrorBody    = 64 * 1024
)

// Query starts a streaming query session against graphID. The current query
// goes last in req.Chat, previous turns before it. The returned channel
// yields every decoded message in arrival order and closes when the session
// reaches its terminal state. Failures before and during streaming surface as
// error-typed messages, a broken transport additionally yields an error value
// after its message. Cancel ctx to abort the session, no further events are
// delivered after cancellation.
func (c *Client) Query(ctx context.Context, graphID string, req models.ChatRequest) <-chan models.StreamEvent {
	return c.stream(ctx, "/graphs/"+url.PathEscape(graphID), req, validateGraphID(graphID))
}

// Confirm answers a destructive_confirmation message. The operation only
// executes when req.Confirmation is models.ConfirmationAccepted, any other
// value makes the server cancel it. Delivery semantics match Query.
func (c *Client) Confirm(ctx context.Context, graphID string, req models.ConfirmRequest) <-chan models.StreamEvent {
	err := validateGraphID(graphID)
	if err == nil && strings.TrimSpace(req.SQLQuery) == "" {
		err = errors.New("confirm request carries no sql query")
	}
	return c.stream(ctx, "/graphs/"+url.PathEscape(graphID)+"/confirm", req, err)
}

// ConnectDatabase connects the server to a new database and streams the
// connection progress. Delivery semantics match Query.
func (c *Client) ConnectDatabase(ctx context.Context, req models.ConnectRequest) <-chan models.StreamEvent {
	var err error
	if strings.TrimSpace(req.URL) == "" {
		err = errors.New("database url must not be empty")
	}
	return c.stream(ctx, "/database", req, err)
}

// Collect drains events into the ordered list of messages it produced, for
// callers which don't need incremental delivery. A hard transport failure is
// returned alongside the messages received up to that point, cancellation is
// reported through ctx.Err().
func Collect(ctx context.Context, events <-chan models.StreamEvent) ([]models.StreamMessage, error) {
	var msgs []models.StreamMessage
	for {
		select {
		case <-ctx.Done():
			return msgs, ctx.Err()
		case ev, open := <-events:
			if !open {
				return msgs, nil
			}
			switch t := ev.(type) {
			case models.StreamMessage:
				msgs = append(msgs, t)
			case error:
				return msgs, t
			}
		}
	}
}

// stream sets up the session goroutine. validationErr short-circuits the
// session into a single error message without any network call, keeping the
// errors-are-data contract even for requests which never leave the client.
func (c *Client) stream(ctx context.Context, path string, body any, validationErr error) <-chan models.StreamEvent {
	out := make(chan models.StreamEvent)
	log := c.logger.With("session", uuid.NewString(), "path", path)
	go func() {
		defer close(out)
		if validationErr != nil {
			log.Debug("request rejected before send", "error", validationErr)
			emit(ctx, out, errorMessage(validationErr.Error()))
			return
		}
		c.run(ctx, log, path, body, out)
	}()
	return out
}

func (c *Client) run(ctx context.Context, log *slog.Logger, path string, body any, out chan<- models.StreamEvent) {
	payload, err := json.Marshal(body)
	if err != nil {
		emit(ctx, out, errorMessage(fmt.Sprintf("failed to encode request body: %v", err)))
		return
	}

	// reqCtx outlives initiation and governs the body reads, cancelling it
	// on return is what releases the connection
	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		emit(ctx, out, errorMessage(fmt.Sprintf("failed to create request: %v", err)))
		return
	}
	c.setHeaders(req, true)

	res, err := c.initiate(req, cancel)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Debug("initiation failed", "error", err)
		emit(ctx, out, errorMessage(err.Error()))
		return
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		log.Debug("server rejected request", "status", res.StatusCode)
		emit(ctx, out, errorMessage(models.ExtractErrorMessage(errBody, res.Status)))
		return
	}
	if res.Body == http.NoBody {
		emit(ctx, out, errorMessage("server response carried no body"))
		return
	}

	c.decodeLoop(ctx, log, res.Body, out)
}

// initiate executes the request, bounded by the initiation timeout. cancel
// must abort the request, it is used to reap the Do call when the timer wins.
func (c *Client) initiate(req *http.Request, cancel context.CancelFunc) (*http.Response, error) {
	type result struct {
		res *http.Response
		err error
	}
	resCh := make(chan result, 1)
	go func() {
		res, err := c.client.Do(req)
		resCh <- result{res, err}
	}()

	timer := time.NewTimer(c.initTimeout)
	defer timer.Stop()
	select {
	case r := <-resCh:
		if r.err != nil {
			return nil, fmt.Errorf("failed to reach server: %w", r.err)
		}
		return r.res, nil
	case <-timer.C:
		cancel()
		if r := <-resCh; r.res != nil {
			r.res.Body.Close()
		}
		return nil, fmt.Errorf("no response from server within %v", c.initTimeout)
	}
}

// decodeLoop pulls chunks from body until the stream ends, threading the
// frame remainder between reads. The UTF-8 decoder holds back multi-byte
// runes split across chunk boundaries so the splitter only ever sees whole
// runes.
func (c *Client) decodeLoop(ctx context.Context, log *slog.Logger, body io.Reader, out chan<- models.StreamEvent) {
	reader := unicode.UTF8.NewDecoder().Reader(body)
	buf := make([]byte, readChunkSize)
	remainder := ""
	frameCount := 0
	for {
		if ctx.Err() != nil {
			return
		}
		n, readErr := reader.Read(buf)
		if n > 0 {
			remainder += string(buf[:n])
			var frames []string
			frames, remainder = frame.Split(remainder, frame.Boundary)
			for _, f := range frames {
				frameCount++
				if !emit(ctx, out, decodeFrame(f)) {
					return
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("stream read failed", "error", readErr, "frames", frameCount)
			if !emit(ctx, out, errorMessage(fmt.Sprintf("connection lost mid-stream: %v", readErr))) {
				return
			}
			emit(ctx, out, fmt.Errorf("transport failure after %v frames: %w", frameCount, readErr))
			return
		}
	}

	// The server may omit the delimiter after the final frame
	if tail := strings.TrimSpace(remainder); tail != "" {
		frameCount++
		emit(ctx, out, decodeFrame(tail))
	}
	log.Debug("stream drained", "frames", frameCount)
}

// decodeFrame never fails, a malformed frame becomes an error message with a
// bounded excerpt of the offending text and the session continues.
func decodeFrame(f string) models.StreamMessage {
	var msg models.StreamMessage
	if err := json.Unmarshal([]byte(f), &msg); err != nil {
		excerpt := models.Excerpt(strings.TrimSpace(f), maxFrameExcerpt)
		return errorMessage(fmt.Sprintf("failed to decode frame: %v, frame: %v", err, excerpt))
	}
	return msg
}

func errorMessage(description string) models.StreamMessage {
	return models.StreamMessage{Type: models.MessageTypeError, Message: description}
}

// emit delivers ev unless the session got cancelled first. The channel is
// unbuffered on purpose, the consumer paces the decode loop.
func emit(ctx context.Context, out chan<- models.StreamEvent, ev models.StreamEvent) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
