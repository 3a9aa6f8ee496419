package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"clarvis-be/pkg/studymaterial"
)

var ErrPageInaccessible = errors.New("cannot access this page type")

var restrictedSchemes = []string{"chrome://", "chrome-extension://", "edge://"}

// PageInaccessibleError carries the stand-in context for a page whose
// content cannot be read.
type PageInaccessibleError struct {
	Context studymaterial.PageContext
}

func (e *PageInaccessibleError) Error() string {
	return fmt.Sprintf("%v: %s", ErrPageInaccessible, e.Context.URL)
}

func (e *PageInaccessibleError) Is(target error) bool {
	return target == ErrPageInaccessible
}

// PageProvider supplies the page the user is looking at.
type PageProvider interface {
	Page(ctx context.Context) (*studymaterial.PageContext, error)
}

// StaticPage provides a fixed page, e.g. one built from command line flags.
type StaticPage struct {
	Context studymaterial.PageContext
}

func (p StaticPage) Page(context.Context) (*studymaterial.PageContext, error) {
	pc := p.Context
	if err := checkAccessible(pc.URL, pc.Title); err != nil {
		return nil, err
	}
	if pc.Timestamp == "" {
		pc.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	return &pc, nil
}

// FilePage reads a page context JSON document, as written by a content extractor.
type FilePage struct {
	Path string
}

func (p FilePage) Page(ctx context.Context) (*studymaterial.PageContext, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, fmt.Errorf("read page context: %w", err)
	}
	var pc studymaterial.PageContext
	if err := json.Unmarshal(data, &pc); err != nil {
		return nil, fmt.Errorf("decode page context %s: %w", p.Path, err)
	}
	return StaticPage{Context: pc}.Page(ctx)
}

func checkAccessible(url, title string) error {
	restricted := url == ""
	for _, scheme := range restrictedSchemes {
		if strings.HasPrefix(url, scheme) {
			restricted = true
		}
	}
	if !restricted {
		return nil
	}
	if title == "" {
		title = "Restricted Page"
	}
	if url == "" {
		url = "about:blank"
	}
	return &PageInaccessibleError{Context: studymaterial.PageContext{
		Title:       title,
		URL:         url,
		Description: "This page type does not allow content script access.",
		MainContent: "Content cannot be extracted from this page.",
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}}
}
