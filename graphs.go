package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/baalimago/go_away_boilerplate/pkg/ancli"

	"github.com/queryweaver/qw/pkg/client"
)

func graphsCmd(ctx context.Context, c *client.Client) error {
	graphs, err := c.ListGraphs(ctx)
	if err != nil {
		return err
	}
	if len(graphs) == 0 {
		ancli.Noticef("no graphs found, load one with 'qw connect <url>'\n")
		return nil
	}
	for _, graph := range graphs {
		fmt.Println(graph)
	}
	return nil
}

func schemaCmd(ctx context.Context, c *client.Client, graphID string) error {
	if err := requireGraph(graphID); err != nil {
		return err
	}
	schema, err := c.GetSchema(ctx, graphID)
	if err != nil {
		return err
	}
	for _, node := range schema.Nodes {
		fmt.Printf("%v: %v", ancli.ColoredMessage(ancli.BLUE, "table"), node.Name)
		if len(node.Labels) > 0 {
			fmt.Printf(" [%v]", strings.Join(node.Labels, ", "))
		}
		fmt.Println()
	}
	for _, edge := range schema.Edges {
		fmt.Printf("%v: %v -> %v", ancli.ColoredMessage(ancli.CYAN, "relation"), edge.Source, edge.Target)
		if edge.Type != "" {
			fmt.Printf(" (%v)", edge.Type)
		}
		fmt.Println()
	}
	return nil
}

func refreshCmd(ctx context.Context, c *client.Client, graphID string) error {
	if err := requireGraph(graphID); err != nil {
		return err
	}
	if err := c.RefreshSchema(ctx, graphID); err != nil {
		return err
	}
	ancli.Okf("schema of '%v' refreshed\n", graphID)
	return nil
}

func deleteCmd(ctx context.Context, c *client.Client, graphID string) error {
	if err := requireGraph(graphID); err != nil {
		return err
	}
	if err := c.DeleteGraph(ctx, graphID); err != nil {
		return err
	}
	ancli.Okf("graph '%v' deleted\n", graphID)
	return nil
}
