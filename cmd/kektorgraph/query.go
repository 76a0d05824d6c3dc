package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sanonone/kektorgraph/pkg/client"
	"github.com/sanonone/kektorgraph/pkg/query"
)

var (
	queryFile string
	remote    string
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Run one traversal from a YAML or JSON file and print the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := readQuery(queryFile)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if remote != "" {
			return remoteQuery(ctx, q, cmd.OutOrStdout())
		}

		eng, _, _, err := openEngine(ctx)
		if err != nil {
			return err
		}
		defer eng.Close()

		res, err := eng.Traverse(ctx, q)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	queryCmd.Flags().StringVarP(&queryFile, "file", "f", "-", "Query file (YAML or JSON), - for stdin")
	queryCmd.Flags().StringVar(&remote, "remote", "", "Send the query to a running server at host:port instead of opening the backends")
}

// readQuery decodes a query document. JSON documents are valid YAML.
func readQuery(path string) (query.Query, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return query.Query{}, fmt.Errorf("failed to open query: %w", err)
		}
		defer f.Close()
		r = f
	}
	var q query.Query
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&q); err != nil {
		return query.Query{}, fmt.Errorf("failed to parse query: %w", err)
	}
	return q, nil
}

func remoteQuery(ctx context.Context, q query.Query, w io.Writer) error {
	host, portStr, err := net.SplitHostPort(remote)
	if err != nil {
		return fmt.Errorf("invalid --remote %q: %w", remote, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid --remote port %q: %w", portStr, err)
	}
	res, err := client.New(host, port).Traverse(ctx, client.TraverseRequest{
		ID:          q.ID,
		Start:       q.Start,
		Steps:       q.Steps,
		TimeoutMs:   q.Timeout.Milliseconds(),
		MaxFrontier: q.MaxFrontier,
	})
	if err != nil {
		return err
	}
	return printJSON(w, res)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
