package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/brettbedarf/codetree/filetree"
	"github.com/brettbedarf/codetree/workspace"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var treeDepth int

var treeCmd = &cobra.Command{
	Use:   "tree [root]",
	Short: "Print the directory tree",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("depth") {
			cfg.MaxDepth = max(treeDepth, 1)
		}

		root := ""
		if len(args) > 0 {
			root = args[0]
		}
		ctx := cmd.Context()
		provider, err := openProvider(ctx, root)
		if err != nil {
			return err
		}

		ws := workspace.New(cfg, provider)
		defer ws.Close()
		if err := ws.Open(ctx); err != nil {
			return err
		}
		if err := ws.Tree().ExpandAll(ctx, cfg.MaxDepth); err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), provider.Root())
		printTree(cmd.OutOrStdout(), ws.Tree().Visible())
		return nil
	},
}

func init() {
	treeCmd.Flags().IntVarP(&treeDepth, "depth", "d", 2, "Number of directory levels to print")
}

func printTree(w io.Writer, rows []*filetree.Node) {
	for _, n := range rows {
		indent := strings.Repeat("  ", n.Depth())
		if n.Data.IsDir() {
			fmt.Fprintf(w, "%s%s/\n", indent, n.Name())
			continue
		}
		fmt.Fprintf(w, "%s%s (%s)\n", indent, n.Name(), humanize.Bytes(uint64(max(n.Data.Size, 0))))
	}
}
