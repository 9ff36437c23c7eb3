package main

import (
	"fmt"
	"io"

	"github.com/brettbedarf/codetree/document"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	catInfo     bool
	normalizeTo string
	writeBOM    bool
)

var catCmd = &cobra.Command{
	Use:   "cat <path>",
	Short: "Print a document, or its details with --info",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		provider, p, err := openDocumentProvider(ctx, args[0])
		if err != nil {
			return err
		}

		buf, info, err := document.Read(ctx, provider, p, document.OptionsFromConfig(cfg))
		if err != nil {
			return err
		}
		if catInfo {
			printInfo(cmd.OutOrStdout(), info)
			return nil
		}
		_, err = buf.WriteTo(cmd.OutOrStdout())
		return err
	},
}

var normalizeCmd = &cobra.Command{
	Use:   "normalize <path>",
	Short: "Rewrite a document with uniform line endings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		le, err := document.ParseLineEnding(normalizeTo)
		if err != nil {
			return err
		}
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		provider, p, err := openDocumentProvider(ctx, args[0])
		if err != nil {
			return err
		}

		opts := document.OptionsFromConfig(cfg)
		buf, before, err := document.Read(ctx, provider, p, opts)
		if err != nil {
			return err
		}
		opts.LineEnding = le
		opts.BOM = writeBOM || before.BOM
		after, err := document.Write(ctx, provider, p, buf, opts)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d lines, %s -> %s\n",
			after.Path, after.Lines, eolName(before.EOL, before.MixedEOL), eolName(after.EOL, after.MixedEOL))
		return nil
	},
}

func init() {
	catCmd.Flags().BoolVar(&catInfo, "info", false, "Print encoding, size and line ending details instead of the text")
	normalizeCmd.Flags().StringVar(&normalizeTo, "eol", "lf", "Line ending to write: lf, crlf, cr or keep")
	normalizeCmd.Flags().BoolVar(&writeBOM, "bom", false, "Write a UTF-8 byte order mark")
}

func eolName(eol string, mixed bool) string {
	name := map[string]string{"\n": "lf", "\r\n": "crlf", "\r": "cr"}[eol]
	if mixed {
		name += " (mixed)"
	}
	return name
}

func printInfo(w io.Writer, info document.Info) {
	fmt.Fprintf(w, "path:        %s\n", info.Path)
	fmt.Fprintf(w, "encoding:    %s\n", info.Encoding)
	fmt.Fprintf(w, "bom:         %t\n", info.BOM)
	fmt.Fprintf(w, "size:        %s\n", humanize.Bytes(uint64(max(info.Bytes, 0))))
	fmt.Fprintf(w, "lines:       %s\n", humanize.Comma(int64(info.Lines)))
	fmt.Fprintf(w, "eol:         %s\n", eolName(info.EOL, info.MixedEOL))
	fmt.Fprintf(w, "fingerprint: %016x\n", info.Fingerprint)
}
