// Package dingosdk is a client-side SDK for a distributed, range-partitioned
// vector/document database. It implements the request-fanout and
// result-aggregation engine: given a key or a partition set resolved through
// an external topology cache, it issues one RPC per region through an
// external transport, latches the first error across the fan-out, and merges
// the surviving per-region results.
//
// # Scope
//
// This module owns none of the storage, indexing, or consensus machinery of
// the database it talks to. It depends on two collaborators supplied by the
// caller:
//
//   - topology.Cache resolves a byte key (or range) to the region(s) that
//     own it.
//   - rpc.Controller performs one blocking, per-region RPC.
//
// # Quick start
//
//	client := dingosdk.New(cache, controller,
//	    dingosdk.WithMaxConcurrentRPCs(64),
//	    dingosdk.WithLogger(dingosdk.NewJSONLogger(slog.LevelInfo)),
//	)
//	defer client.Close()
//
//	err := client.Upsert(ctx, vectorDesc, vectors)
//	results, err := client.Search(ctx, vectorDesc, param, queries)
//	docs, err := client.BatchQuery(ctx, docDesc, document.QueryParam{DocIDs: ids})
package dingosdk
