package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sanonone/kektorgraph/pkg/core/types"
	"github.com/sanonone/kektorgraph/pkg/fetcher"
)

var (
	loadFile    string
	loadBackend string
	loadBatch   int
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Bulk load JSON-lines edges into a configured backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		eng, cfg, logger, err := openEngine(ctx)
		if err != nil {
			return err
		}
		defer eng.Close()

		name := loadBackend
		if name == "" {
			name = cfg.DefaultBackend
		}
		if name == "" {
			name = cfg.Backends[0].Name
		}
		f, ok := eng.Registry().Get(name)
		if !ok {
			return fmt.Errorf("unknown backend %q", name)
		}
		w, ok := fetcher.Writer(f)
		if !ok {
			return fmt.Errorf("backend %q does not accept writes", name)
		}

		var r io.Reader = os.Stdin
		if loadFile != "-" {
			file, err := os.Open(loadFile)
			if err != nil {
				return err
			}
			defer file.Close()
			r = file
		}
		n, err := loadEdges(r, w, loadBatch)
		logger.Info("Edges loaded", "backend", name, "count", n)
		return err
	},
}

func init() {
	loadCmd.Flags().StringVarP(&loadFile, "file", "f", "-", "JSON-lines edge file, - for stdin")
	loadCmd.Flags().StringVarP(&loadBackend, "backend", "b", "", "Target backend (defaults to the default backend)")
	loadCmd.Flags().IntVar(&loadBatch, "batch", 1000, "Edges per write batch")
}

// loadEdges streams one JSON edge per line into w in batches and returns
// the number of edges written.
func loadEdges(r io.Reader, w fetcher.EdgeWriter, batch int) (int, error) {
	if batch <= 0 {
		batch = 1000
	}
	dec := json.NewDecoder(bufio.NewReader(r))
	buf := make([]types.Edge, 0, batch)
	written := 0
	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		if err := w.AddEdges(buf); err != nil {
			return err
		}
		written += len(buf)
		buf = buf[:0]
		return nil
	}

	for line := 1; ; line++ {
		var e types.Edge
		err := dec.Decode(&e)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return written, fmt.Errorf("edge %d: %w", line, err)
		}
		if e.Src.IsZero() || e.Tgt.IsZero() || e.Label == "" {
			return written, fmt.Errorf("edge %d: src, tgt and label are required", line)
		}
		buf = append(buf, e)
		if len(buf) == batch {
			if err := flush(); err != nil {
				return written, err
			}
		}
	}
	return written, flush()
}
