package dingosdk

import (
	"context"
	"time"

	"github.com/yuhaijun999/dingo-sdk/codec"
	"github.com/yuhaijun999/dingo-sdk/document"
	"github.com/yuhaijun999/dingo-sdk/internal/resource"
	"github.com/yuhaijun999/dingo-sdk/rpc"
	"github.com/yuhaijun999/dingo-sdk/topology"
	"github.com/yuhaijun999/dingo-sdk/vector"
)

// Client is the entry point for the SDK: one Upsert/Search/BatchQuery call
// resolves to one Task, fanned out across whatever regions the topology
// cache reports and merged back into a single result.
type Client struct {
	cache      topology.Cache
	controller rpc.Controller
	executor   *rpc.Executor
	resources  *resource.Controller

	logger  *Logger
	metrics MetricsCollector

	exprCodec codec.Codec
}

// New builds a Client from the two required external collaborators plus
// any Options. The returned Client owns a background worker pool; call
// Close when done with it.
func New(cache topology.Cache, controller rpc.Controller, opts ...Option) *Client {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	res := resource.NewController(o.resourceConfig)

	return &Client{
		cache:      cache,
		controller: rpc.NewBoundedController(controller, res),
		executor:   rpc.NewExecutor(o.fanoutWorkers),
		resources:  res,
		logger:     o.logger,
		metrics:    o.metrics,
		exprCodec:  codec.Default,
	}
}

// Close shuts down the Client's fanout worker pool. It does not close the
// topology cache or RPC controller supplied by the caller.
func (c *Client) Close() {
	c.executor.Close()
}

// Upsert inserts or updates vectors in the index described by desc.
func (c *Client) Upsert(ctx context.Context, desc *vector.IndexDescriptor, vectors []vector.VectorWithId) error {
	start := time.Now()
	task := vector.NewUpsertTask(c.cache, c.controller, c.executor, desc, vectors, c.logger)

	if err := task.Init(); err != nil {
		c.metrics.RecordUpsert(time.Since(start), err)
		return wrapTaskError("Upsert", err)
	}

	done := make(chan error, 1)
	task.DoAsync(ctx, func(err error) { done <- err })

	select {
	case err := <-done:
		c.metrics.RecordUpsert(time.Since(start), err)
		if err != nil {
			return wrapTaskError("Upsert", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Search fans query vectors out to every partition of desc and returns the
// merged, top-K-truncated (or full, if param.EnableRangeSearch) results.
func (c *Client) Search(ctx context.Context, desc *vector.IndexDescriptor, param vector.SearchParam, queries []vector.VectorWithId) ([]vector.SearchResult, error) {
	start := time.Now()
	task := vector.NewSearchTask(c.cache, c.controller, c.executor, desc, param, queries, c.exprCodec, c.logger)

	if err := task.Init(); err != nil {
		c.metrics.RecordSearch(0, time.Since(start), err)
		return nil, wrapTaskError("Search", err)
	}

	done := make(chan struct {
		results []vector.SearchResult
		err     error
	}, 1)
	task.DoAsync(ctx, func(results []vector.SearchResult, err error) {
		done <- struct {
			results []vector.SearchResult
			err     error
		}{results, err}
	})

	select {
	case r := <-done:
		c.metrics.RecordSearch(len(desc.PartitionIDs), time.Since(start), r.err)
		if r.err != nil {
			return nil, wrapTaskError("Search", r.err)
		}
		return r.results, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// BatchQuery resolves a batch of document ids into their surviving
// documents. Ids the server can't find are silently dropped from the
// result, matching document.BatchQueryTask's contract.
func (c *Client) BatchQuery(ctx context.Context, desc *document.IndexDescriptor, param document.QueryParam) ([]document.DocWithId, error) {
	start := time.Now()
	task := document.NewBatchQueryTask(c.cache, c.controller, c.executor, desc, param, c.logger)

	if err := task.Init(); err != nil {
		c.metrics.RecordBatchQuery(len(param.DocIDs), 0, time.Since(start), err)
		return nil, wrapTaskError("BatchQuery", err)
	}

	done := make(chan struct {
		result []document.DocWithId
		err    error
	}, 1)
	task.DoAsync(ctx, func(result []document.DocWithId, err error) {
		done <- struct {
			result []document.DocWithId
			err    error
		}{result, err}
	})

	select {
	case r := <-done:
		c.metrics.RecordBatchQuery(len(param.DocIDs), len(r.result), time.Since(start), r.err)
		if r.err != nil {
			return nil, wrapTaskError("BatchQuery", r.err)
		}
		return r.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
