package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"clarvis-be/pkg/client"
	"clarvis-be/pkg/studymaterial"

	"github.com/spf13/cobra"
)

type pageFlags struct {
	file  string
	url   string
	title string
	text  string
}

func (p *pageFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.file, "page-file", "", "JSON file with the page context")
	cmd.Flags().StringVar(&p.url, "page-url", "", "URL of the page")
	cmd.Flags().StringVar(&p.title, "page-title", "", "Title of the page")
	cmd.Flags().StringVar(&p.text, "page-text", "", "Text content of the page")
}

func (p *pageFlags) set() bool {
	return p.file != "" || p.url != ""
}

func (p *pageFlags) provider() client.PageProvider {
	if p.file != "" {
		return client.FilePage{Path: p.file}
	}
	return client.StaticPage{Context: studymaterial.PageContext{
		Title: p.title,
		URL:   p.url,
		Text:  p.text,
	}}
}

// load returns the page, or its stand-in with a warning when the page cannot
// be read. Nil means no page was given.
func (p *pageFlags) load(ctx context.Context, out io.Writer) (*studymaterial.PageContext, error) {
	if !p.set() {
		return nil, nil
	}
	pc, err := p.provider().Page(ctx)
	var inaccessible *client.PageInaccessibleError
	if errors.As(err, &inaccessible) {
		fmt.Fprintln(out, yellow("⚠ "+err.Error()))
		return &inaccessible.Context, nil
	}
	return pc, err
}
