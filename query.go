package main

import (
	"context"
	"errors"
	"strings"

	"github.com/queryweaver/qw/internal/chat"
	"github.com/queryweaver/qw/internal/utils"
	"github.com/queryweaver/qw/pkg/client"
)

// queryCmd runs one conversation turn and exits. Piped stdin is appended to
// the query text so files and logs can be handed along.
func queryCmd(ctx context.Context, c *client.Client, graphID string, raw bool, args []string) error {
	if err := requireGraph(graphID); err != nil {
		return err
	}
	query := strings.TrimSpace(strings.Join(args, " "))
	stdin, err := utils.ReadStdin()
	if err != nil {
		return err
	}
	if stdin != "" {
		query = strings.TrimSpace(query + "\n" + stdin)
	}
	if query == "" {
		return errors.New("no query text given, usage: qw q <text>")
	}
	return chat.New(c, graphID, raw).Ask(ctx, query)
}
