package spatial

import (
	"io"
	"log/slog"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mercator(p orb.Point) orb.Point {
	return project.WGS84.ToMercator(p)
}
