package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/fasthttp/router"
	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/royalcat/osmgaz/geomodel"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
)

const MaxBodySize = 4 * 1000 * 1000 // 4MB

// MaxBatch caps the number of points in a single batch request.
const MaxBatch = 1000

var meter = otel.Meter("github.com/royalcat/osmgaz/server")

type Resolver interface {
	Resolve(ctx context.Context, lonlat orb.Point) (*geomodel.Result, error)
}

type Config struct {
	Address string
	// Timeout bounds a single point resolution. Zero means no limit.
	Timeout time.Duration
	// Threads bounds concurrent resolutions within one batch request.
	Threads int
}

type Server struct {
	resolver Resolver
	cfg      Config
	log      *slog.Logger
	base     context.Context

	metricSingleCallCount metric.Int64Counter
	metricBatchCallCount  metric.Int64Counter
	metricResolved        metric.Int64Counter
	metricFailed          metric.Int64Counter
}

func New(ctx context.Context, resolver Resolver, cfg Config, log *slog.Logger) (*Server, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Threads <= 0 {
		cfg.Threads = 4
	}

	s := &Server{
		resolver: resolver,
		cfg:      cfg,
		log:      log.With("component", "server"),
		base:     ctx,
	}

	var err error
	s.metricSingleCallCount, err = meter.Int64Counter("http_toponyms_call_total")
	if err != nil {
		return nil, err
	}
	s.metricBatchCallCount, err = meter.Int64Counter("http_toponyms_batch_call_total")
	if err != nil {
		return nil, err
	}
	s.metricResolved, err = meter.Int64Counter("points_resolved_total")
	if err != nil {
		return nil, err
	}
	s.metricFailed, err = meter.Int64Counter("points_failed_total")
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) Router() *router.Router {
	r := router.New()
	r.GET("/toponyms/{lon}/{lat}", s.ToponymsHandler)
	r.POST("/toponyms", s.BatchToponymsHandler)
	r.GET("/healthz", func(ctx *fasthttp.RequestCtx) { ctx.SetStatusCode(http.StatusOK) })
	r.Handle(http.MethodGet, "/metrics", fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler()))
	return r
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	server := &fasthttp.Server{
		ReadTimeout:        5 * time.Second,
		MaxRequestBodySize: MaxBodySize,
		Handler:            s.Router().Handler,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", "address", s.cfg.Address)
		errCh <- server.ListenAndServe(s.cfg.Address)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen on %s: %w", s.cfg.Address, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return server.ShutdownWithContext(shutdownCtx)
}

var reqPointsPool = sync.Pool{
	New: func() any {
		return []orb.Point{}
	},
}

var bufPool = sync.Pool{
	New: func() any {
		return &bytes.Buffer{}
	},
}

func (s *Server) resolve(p orb.Point) (*geomodel.Result, error) {
	ctx := s.base
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}
	return s.resolver.Resolve(ctx, p)
}

func validPoint(p orb.Point) error {
	lon, lat := p.Lon(), p.Lat()
	if math.IsNaN(lon) || math.IsNaN(lat) || math.IsInf(lon, 0) || math.IsInf(lat, 0) {
		return errors.New("coordinates must be finite")
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("longitude %v out of range", lon)
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude %v out of range", lat)
	}
	return nil
}

func writeJSON(ctx *fasthttp.RequestCtx, v any) {
	buf := bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufPool.Put(buf)

	if err := json.NewEncoder(buf).Encode(v); err != nil {
		ctx.Response.SetStatusCode(http.StatusInternalServerError)
		ctx.Response.SetBodyString("failed to marshal response")
		return
	}
	ctx.Response.Header.SetContentType("application/json")
	ctx.Response.SetStatusCode(http.StatusOK)
	ctx.Response.SetBody(buf.Bytes())
}

func (s *Server) ToponymsHandler(ctx *fasthttp.RequestCtx) {
	s.metricSingleCallCount.Add(s.base, 1)

	lonS, _ := ctx.UserValue("lon").(string)
	latS, _ := ctx.UserValue("lat").(string)

	lon, err := strconv.ParseFloat(lonS, 64)
	if err != nil {
		ctx.Response.SetStatusCode(http.StatusBadRequest)
		ctx.Response.SetBodyString("invalid longitude")
		return
	}
	lat, err := strconv.ParseFloat(latS, 64)
	if err != nil {
		ctx.Response.SetStatusCode(http.StatusBadRequest)
		ctx.Response.SetBodyString("invalid latitude")
		return
	}
	p := orb.Point{lon, lat}
	if err := validPoint(p); err != nil {
		ctx.Response.SetStatusCode(http.StatusBadRequest)
		ctx.Response.SetBodyString(err.Error())
		return
	}

	res, err := s.resolve(p)
	if err != nil {
		s.metricFailed.Add(s.base, 1)
		s.log.Error("failed to resolve point", "lon", lon, "lat", lat, "error", err)
		ctx.Response.SetStatusCode(http.StatusInternalServerError)
		ctx.Response.SetBodyString("failed to resolve point")
		return
	}
	s.metricResolved.Add(s.base, 1)

	writeJSON(ctx, res)
}

func (s *Server) BatchToponymsHandler(ctx *fasthttp.RequestCtx) {
	s.metricBatchCallCount.Add(s.base, 1)

	req := reqPointsPool.Get().([]orb.Point)
	req = req[:0]
	defer func() { reqPointsPool.Put(req[:0]) }()

	req, err := parsePoints(ctx.Request.Body(), req)
	if err != nil {
		ctx.Response.SetStatusCode(http.StatusBadRequest)
		ctx.Response.SetBodyString("failed to parse request: " + err.Error())
		return
	}
	if len(req) > MaxBatch {
		ctx.Response.SetStatusCode(http.StatusRequestEntityTooLarge)
		ctx.Response.SetBodyString(fmt.Sprintf("at most %d points per request", MaxBatch))
		return
	}
	for i, p := range req {
		if err := validPoint(p); err != nil {
			ctx.Response.SetStatusCode(http.StatusBadRequest)
			ctx.Response.SetBodyString(fmt.Sprintf("point %d: %s", i, err))
			return
		}
	}

	res := make([]*geomodel.Result, len(req))
	g := errgroup.Group{}
	g.SetLimit(s.cfg.Threads)
	for i, p := range req {
		g.Go(func() error {
			r, err := s.resolve(p)
			if err != nil {
				return fmt.Errorf("point %d: %w", i, err)
			}
			res[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.metricFailed.Add(s.base, 1)
		s.log.Error("failed to resolve batch", "points", len(req), "error", err)
		ctx.Response.SetStatusCode(http.StatusInternalServerError)
		ctx.Response.SetBodyString("failed to resolve points")
		return
	}
	s.metricResolved.Add(s.base, int64(len(req)))

	writeJSON(ctx, res)
}
