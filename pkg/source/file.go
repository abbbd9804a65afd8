package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// File reads creators from a JSON file holding either an array of creators
// or an object {"creators": [...]}.
type File struct {
	path string
}

// NewFile creates a file source.
func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Name() SourceType { return SourceFile }

func (f *File) Collect(ctx context.Context) ([]Creator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read creators file: %w", err)
	}
	creators, err := DecodeCreators(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.path, err)
	}
	for i := range creators {
		if creators[i].Source == "" {
			creators[i].Source = SourceFile
		}
	}
	return creators, nil
}

// DecodeCreators accepts a JSON array of creators or {"creators": [...]}.
// Posts without an id get one derived from their position.
func DecodeCreators(data []byte) ([]Creator, error) {
	var creators []Creator
	if err := json.Unmarshal(data, &creators); err != nil {
		var wrapped struct {
			Creators []Creator `json:"creators"`
		}
		if err2 := json.Unmarshal(data, &wrapped); err2 != nil {
			return nil, err
		}
		creators = wrapped.Creators
	}
	for i := range creators {
		c := &creators[i]
		if c.ID == "" {
			return nil, fmt.Errorf("creator %d: missing id", i)
		}
		if c.Handle == "" {
			c.Handle = c.ID
		}
		for j := range c.Posts {
			if c.Posts[j].ID == "" {
				c.Posts[j].ID = fmt.Sprintf("%s-%d", c.ID, j+1)
			}
			if c.Posts[j].AuthorID == "" {
				c.Posts[j].AuthorID = c.ID
			}
		}
	}
	return creators, nil
}
