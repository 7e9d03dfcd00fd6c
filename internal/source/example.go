package source

import (
	"context"

	"rownest/internal/catalog"
	"rownest/internal/config"
	"rownest/internal/nest"
)

// Example serves the built-in album rows.
type Example struct{}

func NewExample(context.Context, config.Source) (Source, error) { return Example{}, nil }

func (Example) Rows(context.Context) ([]nest.Row, error) { return catalog.AlbumRows(), nil }

func (Example) Close() error { return nil }
