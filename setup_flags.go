package main

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/queryweaver/qw/internal/utils"
)

type flagSet struct {
	url     string
	graph   string
	token   string
	raw     bool
	timeout time.Duration
}

var defaultFlags = flagSet{
	timeout: 30 * time.Second,
}

// parseFlags parses args into a flagSet plus the remaining command words.
// Short/long pairs are mutually exclusive.
func parseFlags(defaults flagSet, args []string) (flagSet, []string, error) {
	fs := flag.NewFlagSet("qw", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	url := fs.String("url", defaults.url, "Set the QueryWeaver server url.")

	gShort := fs.String("G", defaults.graph, "Set the graph to query. Mutually exclusive with graph flag.")
	gLong := fs.String("graph", defaults.graph, "Set the graph to query. Mutually exclusive with G flag.")

	tShort := fs.String("T", defaults.token, "Set the bearer token sent with every request. Mutually exclusive with token flag.")
	tLong := fs.String("token", defaults.token, "Set the bearer token sent with every request. Mutually exclusive with T flag.")

	rawShort := fs.Bool("r", defaults.raw, "Set to true to print raw output (no animation, no markdown rendering).")
	rawLong := fs.Bool("raw", defaults.raw, "Set to true to print raw output (no animation, no markdown rendering).")

	toShort := fs.Duration("to", defaults.timeout, "Set how long to wait for the server to start responding. Mutually exclusive with timeout flag.")
	toLong := fs.Duration("timeout", defaults.timeout, "Set how long to wait for the server to start responding. Mutually exclusive with to flag.")

	if err := fs.Parse(args); err != nil {
		return defaults, nil, err
	}

	graph, err := utils.ReturnNonDefault(*gShort, *gLong, defaults.graph)
	if err != nil {
		return defaults, nil, flagError(err, "G", "graph")
	}
	token, err := utils.ReturnNonDefault(*tShort, *tLong, defaults.token)
	if err != nil {
		return defaults, nil, flagError(err, "T", "token")
	}
	timeout, err := utils.ReturnNonDefault(*toShort, *toLong, defaults.timeout)
	if err != nil {
		return defaults, nil, flagError(err, "to", "timeout")
	}
	raw := *rawShort || *rawLong

	return flagSet{
		url:     *url,
		graph:   graph,
		token:   token,
		raw:     raw,
		timeout: timeout,
	}, fs.Args(), nil
}

func flagError(err error, shortFlag, longFlag string) error {
	return fmt.Errorf("flags '-%v' and '-%v': %w", shortFlag, longFlag, err)
}
