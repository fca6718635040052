package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"linkstash/internal/domain"
	"linkstash/internal/platform"
)

// Resolver produces a preview for a URL.
type Resolver interface {
	Resolve(ctx context.Context, rawURL string) domain.LinkPreview
}

// Dependencies holds all services and configuration for command execution.
type Dependencies struct {
	Ctx      context.Context
	Stdout   io.Writer
	Stderr   io.Writer
	Log      logrus.FieldLogger
	Resolver Resolver
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	Config  string `short:"C" default:"./configs" help:"Directory holding config.yaml"`
	Verbose bool   `short:"v" help:"Log pipeline steps to stderr"`

	Resolve  ResolveCmd  `cmd:"" help:"Resolve previews for one or more URLs"`
	Classify ClassifyCmd `cmd:"" help:"Show the platform each URL is classified as"`
}

// ClassifyCmd is the "classify" subcommand.
type ClassifyCmd struct {
	URLs []string `arg:"" name:"urls" help:"URLs to classify"`
}

// Run prints one "platform<TAB>url" line per URL.
func (c *ClassifyCmd) Run(deps *Dependencies) error {
	for _, u := range c.URLs {
		fmt.Fprintf(deps.Stdout, "%s\t%s\n", platform.Classify(u), u)
	}
	return nil
}

// ResolveCmd is the "resolve" subcommand.
type ResolveCmd struct {
	URLs         []string `arg:"" name:"urls" help:"URLs to resolve"`
	Out          string   `short:"o" help:"Directory to write preview images to"`
	Concurrency  int      `short:"c" default:"4" help:"Concurrent resolutions"`
	NoScreenshot bool     `name:"no-screenshot" help:"Skip the headless browser fallback"`
}

// Run resolves every URL and prints the previews in argument order.
func (c *ResolveCmd) Run(deps *Dependencies) error {
	if c.Out != "" {
		if err := os.MkdirAll(c.Out, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}

	previews := make([]domain.LinkPreview, len(c.URLs))
	g, ctx := errgroup.WithContext(deps.Ctx)
	if c.Concurrency > 0 {
		g.SetLimit(c.Concurrency)
	}
	for i, u := range c.URLs {
		g.Go(func() error {
			previews[i] = deps.Resolver.Resolve(ctx, u)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, p := range previews {
		imagePath, err := c.writeImage(i, p)
		if err != nil {
			return err
		}
		printPreview(deps.Stdout, c.URLs[i], p, imagePath)
	}
	return nil
}

func (c *ResolveCmd) writeImage(index int, p domain.LinkPreview) (string, error) {
	if c.Out == "" || !p.HasImage() {
		return "", nil
	}
	name := fmt.Sprintf("%02d-%s%s", index+1, string(p.Platform), imageExt(p.Image))
	path := filepath.Join(c.Out, name)
	if err := os.WriteFile(path, p.Image, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

func imageExt(data []byte) string {
	switch http.DetectContentType(data) {
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/png":
		return ".png"
	default:
		return ".bin"
	}
}

func printPreview(w io.Writer, rawURL string, p domain.LinkPreview, imagePath string) {
	fmt.Fprintln(w, rawURL)
	fmt.Fprintf(w, "  platform:    %s\n", p.Platform)
	printField(w, "title", p.Title)
	printField(w, "description", p.Description)
	printField(w, "author", p.Author)
	switch {
	case imagePath != "":
		fmt.Fprintf(w, "  image:       %s (%d bytes)\n", imagePath, len(p.Image))
	case p.HasImage():
		fmt.Fprintf(w, "  image:       %d bytes\n", len(p.Image))
	default:
		fmt.Fprintln(w, "  image:       none")
	}
}

func printField(w io.Writer, name string, v *string) {
	if v == nil {
		return
	}
	value := strings.ReplaceAll(*v, "\n", " ")
	fmt.Fprintf(w, "  %-12s %s\n", name+":", value)
}
