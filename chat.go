package main

import (
	"context"

	"github.com/queryweaver/qw/internal/chat"
	"github.com/queryweaver/qw/pkg/client"
)

func chatCmd(ctx context.Context, c *client.Client, graphID string, raw bool) error {
	if err := requireGraph(graphID); err != nil {
		return err
	}
	return chat.New(c, graphID, raw).Run(ctx)
}
