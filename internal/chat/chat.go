// Package chat drives an interactive conversation with one graph: it threads
// the query/answer history across turns, renders the streamed messages and
// walks the user through destructive-operation confirmations.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/user"
	"slices"
	"strings"
	"time"

	"github.com/baalimago/go_away_boilerplate/pkg/ancli"
	"github.com/baalimago/go_away_boilerplate/pkg/debug"
	"github.com/baalimago/go_away_boilerplate/pkg/misc"
	"github.com/briandowns/spinner"

	"github.com/queryweaver/qw/internal/utils"
	"github.com/queryweaver/qw/pkg/models"
)

// Streamer is the slice of the protocol client the handler needs.
type Streamer interface {
	Query(ctx context.Context, graphID string, req models.ChatRequest) <-chan models.StreamEvent
	Confirm(ctx context.Context, graphID string, req models.ConfirmRequest) <-chan models.StreamEvent
}

type Handler struct {
	q        Streamer
	graphID  string
	username string
	raw      bool
	debug    bool
	out      io.Writer
	// confirmFunc decides whether a destructive operation should execute,
	// overridable for testing since the default prompts the terminal
	confirmFunc func(models.StreamMessage) (bool, error)

	queries []string
	results []string
}

func New(q Streamer, graphID string, raw bool) *Handler {
	username := "user"
	if currentUser, err := user.Current(); err == nil {
		username = currentUser.Username
	}
	h := &Handler{
		q:        q,
		graphID:  graphID,
		username: username,
		raw:      raw,
		debug:    misc.Truthy(os.Getenv("DEBUG")),
		out:      os.Stdout,
	}
	h.confirmFunc = h.promptConfirmation
	return h
}

// Run loops reading questions from the terminal until the user quits.
func (h *Handler) Run(ctx context.Context) error {
	ancli.Okf("chatting with graph '%v', exit with 'q', 'quit' or ctrl+c\n", h.graphID)
	for {
		fmt.Fprintf(h.out, "%v: ", ancli.ColoredMessage(ancli.CYAN, h.username))
		input, err := utils.ReadUserInput()
		if err != nil {
			if errors.Is(err, utils.ErrUserInitiatedExit) {
				return nil
			}
			return err
		}
		if input == "" {
			continue
		}
		if err := h.Ask(ctx, input); err != nil {
			if errors.Is(err, utils.ErrUserInitiatedExit) {
				return nil
			}
			return err
		}
	}
}

// Ask runs one conversation turn: query, consume the stream and, when the
// server halts for confirmation, prompt and finish the turn through the
// confirm endpoint.
func (h *Handler) Ask(ctx context.Context, query string) error {
	h.queries = append(h.queries, query)
	if h.debug {
		ancli.PrintOK(fmt.Sprintf("chat history: %v\n", debug.IndentedJsonFmt(h.queries)))
	}
	events := h.q.Query(ctx, h.graphID, models.ChatRequest{
		Chat:   slices.Clone(h.queries),
		Result: slices.Clone(h.results),
	})
	confirm, err := h.consume(events)
	if err != nil {
		return err
	}
	if confirm == nil {
		return nil
	}

	accepted, err := h.confirmFunc(*confirm)
	if err != nil {
		return err
	}
	if !accepted {
		ancli.Noticef("operation cancelled, nothing was executed\n")
		return nil
	}
	events = h.q.Confirm(ctx, h.graphID, models.ConfirmRequest{
		SQLQuery:     confirm.SQLQuery,
		Confirmation: models.ConfirmationAccepted,
		Chat:         slices.Clone(h.queries),
	})
	_, err = h.consume(events)
	return err
}

// consume prints every streamed message until the channel closes. A
// destructive_confirmation message stops consumption and is handed back to
// the caller, a transport failure is returned as error.
func (h *Handler) consume(events <-chan models.StreamEvent) (*models.StreamMessage, error) {
	var spin *spinner.Spinner
	if !h.raw {
		spin = spinner.New(spinner.CharSets[11], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
		spin.Start()
		defer pauseSpinner(spin)
	}

	msgCount := 0
	errCount := 0
	lastError := ""
	for ev := range events {
		switch t := ev.(type) {
		case models.StreamMessage:
			msgCount++
			if t.Type == models.MessageTypeError {
				errCount++
				lastError = t.Message
			}
			if confirm := h.printMessage(spin, t); confirm != nil {
				return confirm, nil
			}
		case error:
			pauseSpinner(spin)
			return nil, t
		}
	}
	// A session which produced nothing but error messages never got an
	// answer, the turn failed even though the channel closed cleanly
	if msgCount > 0 && msgCount == errCount {
		return nil, fmt.Errorf("query failed: %v", lastError)
	}
	return nil, nil
}

func (h *Handler) printMessage(spin *spinner.Spinner, msg models.StreamMessage) *models.StreamMessage {
	switch msg.Type {
	case models.MessageTypeReasoningStep:
		if spin != nil {
			spin.Suffix = " " + msg.Message
			return nil
		}
		fmt.Fprintf(h.out, "%v\n", msg.Message)
	case models.MessageTypeSQLQuery:
		pauseSpinner(spin)
		fmt.Fprintf(h.out, "%v: %v\n", ancli.ColoredMessage(ancli.BLUE, "sql"), rawToString(msg.Data))
		resumeSpinner(spin)
	case models.MessageTypeQueryResult:
		pauseSpinner(spin)
		fmt.Fprintf(h.out, "%v: %v\n", ancli.ColoredMessage(ancli.BLUE, "result"), rawToString(msg.Data))
		resumeSpinner(spin)
	case models.MessageTypeAIResponse, models.MessageTypeFollowupQuestions:
		pauseSpinner(spin)
		rendered := utils.RenderMarkdown(msg.Message, h.raw)
		if !strings.HasSuffix(rendered, "\n") {
			rendered += "\n"
		}
		fmt.Fprint(h.out, rendered)
		h.results = append(h.results, msg.Message)
	case models.MessageTypeDestructiveConfirmation:
		pauseSpinner(spin)
		return &msg
	case models.MessageTypeHealingAttempt, models.MessageTypeHealingSuccess, models.MessageTypeSchemaRefresh:
		pauseSpinner(spin)
		ancli.Noticef("%v\n", msg.Message)
		resumeSpinner(spin)
	case models.MessageTypeFinalResult:
		pauseSpinner(spin)
		fmt.Fprintf(h.out, "%v\n", msg.Message)
	case models.MessageTypeError:
		pauseSpinner(spin)
		ancli.PrintErr(msg.Message + "\n")
		resumeSpinner(spin)
	default:
		pauseSpinner(spin)
		fmt.Fprintf(h.out, "%v\n", msg.Message)
		resumeSpinner(spin)
	}
	return nil
}

func (h *Handler) promptConfirmation(msg models.StreamMessage) (bool, error) {
	fmt.Fprint(h.out, utils.RenderMarkdown(msg.Message, h.raw))
	fmt.Fprintf(h.out, "%v [y/N]: ", ancli.ColoredMessage(ancli.MAGENTA, "execute this operation?"))
	input, err := utils.ReadUserInput()
	if err != nil {
		return false, err
	}
	input = strings.ToLower(input)
	return input == "y" || input == "yes", nil
}

// rawToString unwraps json strings for display, anything structured is shown
// as-is.
func rawToString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func pauseSpinner(spin *spinner.Spinner) {
	if spin != nil && spin.Active() {
		spin.Stop()
	}
}

func resumeSpinner(spin *spinner.Spinner) {
	if spin != nil && !spin.Active() {
		spin.Start()
	}
}
