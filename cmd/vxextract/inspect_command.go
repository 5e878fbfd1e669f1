package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"vxextract/internal/cart"
	"vxextract/internal/packing"
)

type inspectView struct {
	Path     string          `json:"path"`
	Metadata cart.Metadata   `json:"metadata"`
	Header   *packing.Header `json:"-"`
	Verified bool            `json:"verified,omitempty"`
}

func newInspectCommand() *cobra.Command {
	var keyHex string
	var verify bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "inspect FILE...",
		Short: "Print the metadata of CaRT containers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []cart.Option
			if keyHex = strings.TrimSpace(keyHex); keyHex != "" {
				key, err := hex.DecodeString(keyHex)
				if err != nil {
					return fmt.Errorf("--key: %w", err)
				}
				opts = append(opts, cart.WithKey(key))
			}

			views := make([]inspectView, 0, len(args))
			for _, path := range args {
				view, err := inspectFile(path, verify, opts)
				if err != nil {
					return fmt.Errorf("inspect %s: %w", path, err)
				}
				views = append(views, view)
			}
			if asJSON {
				return writeJSON(cmd, views)
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for i, view := range views {
				if i > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprintln(out, renderInspect(view, colorize))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&keyHex, "key", "", "Hex RC4 key for containers packed with an override key")
	cmd.Flags().BoolVar(&verify, "verify", false, "Decode the payload and check it against the footer digests")
	addJSONFlag(cmd, &asJSON)
	return cmd
}

func inspectFile(path string, verify bool, opts []cart.Option) (inspectView, error) {
	view := inspectView{Path: path}
	f, err := os.Open(path)
	if err != nil {
		return view, err
	}
	defer f.Close()
	if !cart.IsContainer(f) {
		return view, fmt.Errorf("%w: not a CaRT container", cart.ErrFormat)
	}
	if verify {
		view.Metadata, err = verifyContainer(f, opts)
		view.Verified = err == nil
	} else {
		view.Metadata, err = cart.ReadFileMetadata(path, opts...)
	}
	if err != nil {
		return view, err
	}
	if len(view.Metadata.Header) > 0 {
		var header packing.Header
		if err := view.Metadata.DecodeHeader(&header); err == nil {
			view.Header = &header
		}
	}
	return view, nil
}

func verifyContainer(f *os.File, opts []cart.Option) (cart.Metadata, error) {
	info, err := f.Stat()
	if err != nil {
		return cart.Metadata{}, err
	}
	return cart.Unpack(f, info.Size(), io.Discard, opts...)
}

func renderInspect(view inspectView, colorize bool) string {
	lines := renderSectionHeader(view.Path, colorize)
	lines = append(lines,
		renderField("Version", fmt.Sprintf("%d", view.Metadata.Version)),
		renderField("Key", view.Metadata.KeyKind),
	)
	if h := view.Header; h != nil {
		lines = append(lines,
			renderField("Source", h.Source),
			renderField("Family", h.Family),
			renderField("Sample", h.SamplePath),
			renderField("URL", h.SourceURL),
			renderField("Date", h.Date),
		)
	} else if len(view.Metadata.Header) > 0 {
		lines = append(lines, renderField("Header", string(view.Metadata.Header)))
	}
	footer := view.Metadata.Footer
	lines = append(lines,
		renderField("Length", footer.Length),
		renderField("MD5", footer.MD5),
		renderField("SHA1", footer.SHA1),
		renderField("SHA256", footer.SHA256),
	)
	if view.Verified {
		verified := "payload matches footer"
		if colorize {
			verified = ansiGreen + verified + ansiReset
		}
		lines = append(lines, renderField("Verified", verified))
	}
	return strings.Join(lines, "\n")
}
