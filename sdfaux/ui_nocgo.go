//go:build tinygo || !cgo

package sdfaux

import (
	"context"
	"errors"
	"log/slog"

	"github.com/soypat/sdfgraph/glreload"
	"github.com/soypat/sdfgraph/nodegraph"
)

type UIConfig struct {
	Context   context.Context
	Settings  Settings
	Load      func() (nodegraph.Graph, nodegraph.NodeID, error)
	Reload    <-chan struct{}
	Validator glreload.Validator
	Logger    *slog.Logger
}

func UI(cfg UIConfig) error {
	return errors.New("require cgo for UI rendering")
}
