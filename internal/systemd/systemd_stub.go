//go:build !linux

package systemd

import (
	"context"

	"unitwatch/internal/unit"
)

type Source struct{}

func Connect(context.Context) (*Source, error) { return nil, ErrUnsupported }

func (*Source) ListUnits(context.Context) ([]unit.Record, error) { return nil, ErrUnsupported }

func (*Source) Close() error { return nil }
