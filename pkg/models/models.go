// Package models holds the wire types of the QueryWeaver text2sql API:
// the request bodies the client submits and the typed messages the server
// streams back.
package models

import (
	"encoding/json"
	"fmt"
)

// MessageType tags a StreamMessage with its kind.
type MessageType string

const (
	// MessageTypeReasoningStep is an informational progress update.
	MessageTypeReasoningStep MessageType = "reasoning_step"
	// MessageTypeSQLQuery carries the generated SQL plus the analysis
	// metadata (confidence, ambiguities, missing information).
	MessageTypeSQLQuery MessageType = "sql_query"
	// MessageTypeQueryResult carries the raw result set of an executed query.
	MessageTypeQueryResult MessageType = "query_result"
	// MessageTypeAIResponse is the user-readable answer. Usually the last
	// message of a query session.
	MessageTypeAIResponse MessageType = "ai_response"
	// MessageTypeFollowupQuestions is sent instead of an answer when the
	// question was off-topic or under-specified.
	MessageTypeFollowupQuestions MessageType = "followup_questions"
	// MessageTypeDestructiveConfirmation halts the session until the caller
	// echoes the SQL back through a ConfirmRequest.
	MessageTypeDestructiveConfirmation MessageType = "destructive_confirmation"
	// MessageTypeHealingAttempt reports that a failed query was rewritten.
	MessageTypeHealingAttempt MessageType = "healing_attempt"
	// MessageTypeHealingSuccess reports that the rewritten query succeeded.
	MessageTypeHealingSuccess MessageType = "healing_success"
	// MessageTypeSchemaRefresh reports a graph schema refresh after a
	// schema-modifying statement.
	MessageTypeSchemaRefresh MessageType = "schema_refresh"
	// MessageTypeFinalResult terminates a database connect session.
	MessageTypeFinalResult MessageType = "final_result"
	// MessageTypeError is any failure surfaced as data.
	MessageTypeError MessageType = "error"
)

// StreamMessage is one decoded frame of a streaming response. The server
// populates different subsets of the fields depending on Type, everything
// besides Type and Message is kind-specific.
type StreamMessage struct {
	Type          MessageType `json:"type"`
	Message       string      `json:"message,omitempty"`
	FinalResponse bool        `json:"final_response,omitempty"`

	// sql_query and query_result fields
	Data        json.RawMessage `json:"data,omitempty"`
	Confidence  json.RawMessage `json:"conf,omitempty"`
	Missing     string          `json:"miss,omitempty"`
	Ambiguity   string          `json:"amb,omitempty"`
	Explanation string          `json:"exp,omitempty"`
	IsValid     bool            `json:"is_valid,omitempty"`

	// destructive_confirmation fields, SQLQuery must be echoed back through
	// a ConfirmRequest for the operation to execute
	SQLQuery      string `json:"sql_query,omitempty"`
	OperationType string `json:"operation_type,omitempty"`

	// followup_questions fields
	MissingInformation string `json:"missing_information,omitempty"`
	Ambiguities        string `json:"ambiguities,omitempty"`

	// healing_attempt fields
	OriginalError string `json:"original_error,omitempty"`
	HealedSQL     string `json:"healed_sql,omitempty"`

	// final_result field
	Success bool `json:"success,omitempty"`
}

// Terminal reports whether the server flagged this message as the last
// meaningful one of the session. The stream may still close without any
// terminal message, end of sequence is always signalled by channel closure.
func (m StreamMessage) Terminal() bool {
	return m.FinalResponse || m.Type == MessageTypeFinalResult
}

// StreamEvent is what a streaming session emits: either a StreamMessage or,
// after a transport-level failure mid-stream, an error. Channel closure means
// the session reached its terminal state.
type StreamEvent any

// ChatRequest is the body of POST /graphs/{graphID}. Chat holds every user
// query of the conversation in order, the current one last. Result holds the
// answers of previous turns.
type ChatRequest struct {
	Chat         []string `json:"chat"`
	Result       []string `json:"result,omitempty"`
	Instructions string   `json:"instructions,omitempty"`
}

// ConfirmationAccepted is the only Confirmation value the server executes a
// destructive operation for, anything else cancels it.
const ConfirmationAccepted = "CONFIRM"

// ConfirmRequest is the body of POST /graphs/{graphID}/confirm, answering a
// destructive_confirmation message.
type ConfirmRequest struct {
	SQLQuery     string   `json:"sql_query"`
	Confirmation string   `json:"confirmation"`
	Chat         []string `json:"chat"`
}

// ConnectRequest is the body of POST /database. Type is optional, the server
// infers it from the URL scheme when empty.
type ConnectRequest struct {
	URL  string `json:"url"`
	Type string `json:"type,omitempty"`
}

// FlexID is a node identifier which the server emits either as a JSON string
// or as a number, depending on which loader produced the schema. It always
// decodes to its textual form.
type FlexID string

func (f *FlexID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id is neither string nor number: %w", err)
	}
	*f = FlexID(n.String())
	return nil
}

// SchemaNode is one table/entity node of a graph schema.
type SchemaNode struct {
	ID     FlexID          `json:"id"`
	Name   string          `json:"name"`
	Labels []string        `json:"labels,omitempty"`
	Props  json.RawMessage `json:"props,omitempty"`
}

// SchemaEdge is one relation between two schema nodes.
type SchemaEdge struct {
	Source string          `json:"source"`
	Target string          `json:"target"`
	Type   string          `json:"type,omitempty"`
	Props  json.RawMessage `json:"props,omitempty"`
}

// Schema is the full node/edge view of one graph, as returned by
// GET /graphs/{graphID}/data.
type Schema struct {
	Nodes []SchemaNode `json:"nodes"`
	Edges []SchemaEdge `json:"edges"`
}
