package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/baalimago/go_away_boilerplate/pkg/ancli"

	"github.com/queryweaver/qw/pkg/client"
	"github.com/queryweaver/qw/pkg/models"
)

// connectCmd loads a database into the server. The server streams its
// progress while it introspects the schema, which can take a while on large
// databases.
func connectCmd(ctx context.Context, c *client.Client, args []string) error {
	if len(args) == 0 {
		return errors.New("no database url given, usage: qw connect <url> [type]")
	}
	req := models.ConnectRequest{URL: args[0]}
	if len(args) > 1 {
		req.Type = args[1]
	}
	msgCount := 0
	errCount := 0
	lastError := ""
	for ev := range c.ConnectDatabase(ctx, req) {
		switch t := ev.(type) {
		case models.StreamMessage:
			msgCount++
			if t.Type == models.MessageTypeError {
				errCount++
				lastError = t.Message
				ancli.PrintErr(t.Message + "\n")
				continue
			}
			fmt.Println(t.Message)
		case error:
			return t
		}
	}
	if msgCount > 0 && msgCount == errCount {
		return fmt.Errorf("connect failed: %v", lastError)
	}
	return nil
}
