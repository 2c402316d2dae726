package stdout

import (
	"context"
	"fmt"
	"io"
	"os"

	"subforge/internal/publishers"
)

type Publisher struct{}

func (p *Publisher) Publish(_ context.Context, doc *publishers.Document, config map[string]interface{}) error {
	payload, err := publishers.Render(doc, config)
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if w, ok := config["_writer"].(io.Writer); ok {
		out = w
	}
	fmt.Fprintf(out, "========== %s ==========\n", doc.Subscription)
	fmt.Fprintln(out, payload)
	fmt.Fprintln(out, "============================================")
	return nil
}

func init() {
	publishers.Register("stdout", func() publishers.Publisher { return &Publisher{} })
}
