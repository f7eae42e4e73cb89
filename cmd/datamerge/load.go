// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/sam-fredrickson/datamerge/value"
)

// document is one decoded input file.
type document struct {
	file  string
	codec value.Codec
	value value.Value
}

// loadDocuments reads and decodes files concurrently. The returned documents
// keep the order of files, and the first failure cancels the remaining reads.
func loadDocuments(ctx context.Context, files []string) ([]document, error) {
	docs := make([]document, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			doc, err := loadDocument(file)
			if err != nil {
				return err
			}
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}

func loadDocument(file string) (document, error) {
	codec, err := value.CodecForFile(file)
	if err != nil {
		return document{}, fmt.Errorf("failed to read %s: %w", file, err)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return document{}, fmt.Errorf("failed to read %s: %w", file, err)
	}
	v, err := codec.Decode(data)
	if err != nil {
		return document{}, fmt.Errorf("failed to decode %s as %s: %w", file, codec.Name(), err)
	}
	return document{file: file, codec: codec, value: v}, nil
}

func documentValues(docs []document) []value.Value {
	out := make([]value.Value, len(docs))
	for i, d := range docs {
		out[i] = d.value
	}
	return out
}
