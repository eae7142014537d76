// Command dingo-bench drives an ingest benchmark against a dataset
// directory: load vectors with the dataset package, upsert them through
// a Client, and report throughput. With no real cluster to point at, it
// wires an in-memory topology/RPC pair from internal/testutil so the
// fanout, aggregation and dataset-loader code paths run end to end;
// point -format and -dir at a real corpus to exercise them.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	dingosdk "github.com/yuhaijun999/dingo-sdk"
	"github.com/yuhaijun999/dingo-sdk/dataset"
	"github.com/yuhaijun999/dingo-sdk/dataset/manifest"
	"github.com/yuhaijun999/dingo-sdk/internal/keycodec"
	"github.com/yuhaijun999/dingo-sdk/internal/testutil"
	"github.com/yuhaijun999/dingo-sdk/metricsprom"
	"github.com/yuhaijun999/dingo-sdk/rpc"
	"github.com/yuhaijun999/dingo-sdk/topology"
	"github.com/yuhaijun999/dingo-sdk/vector"
)

func main() {
	var (
		dir           = flag.String("dir", "", "directory of *.json dataset files")
		format        = flag.String("format", "json", "dataset format: json")
		batchSize     = flag.Int("batch", 0, "batch size (0 = size against available memory)")
		partitions    = flag.Int("partitions", 4, "number of synthetic partitions to fan across")
		metricsAddr   = flag.String("metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9090)")
		corpus        = flag.String("corpus", "", "dataset name recorded in the published run summary, e.g. sift-128")
		runID         = flag.String("run-id", "", "unique identifier for this run, e.g. a git sha or timestamp")
		resultsBucket = flag.String("results-bucket", "", "if set with -results-table, publish a run summary to this S3 bucket")
		resultsPrefix = flag.String("results-prefix", "runs", "S3 key prefix for published run summaries")
		resultsTable  = flag.String("results-table", "", "if set with -results-bucket, DynamoDB table tracking each corpus's latest published run")
	)
	flag.Parse()

	if *dir == "" {
		fmt.Fprintln(os.Stderr, "dingo-bench: -dir is required")
		os.Exit(2)
	}

	cfg := runConfig{
		dir:           *dir,
		format:        *format,
		batchSize:     *batchSize,
		partitions:    *partitions,
		metricsAddr:   *metricsAddr,
		corpus:        *corpus,
		runID:         *runID,
		resultsBucket: *resultsBucket,
		resultsPrefix: *resultsPrefix,
		resultsTable:  *resultsTable,
	}
	if err := run(cfg); err != nil {
		fmt.Fprintln(os.Stderr, "dingo-bench:", err)
		os.Exit(1)
	}
}

// runConfig collects the CLI flags into one value so run doesn't grow
// an ever-longer positional parameter list as the harness gains more
// optional publishing destinations.
type runConfig struct {
	dir, format           string
	batchSize, partitions int
	metricsAddr           string
	corpus, runID         string
	resultsBucket         string
	resultsPrefix         string
	resultsTable          string
}

// runSummary is the JSON shape published to the results manifest.
type runSummary struct {
	Corpus    string  `json:"corpus"`
	RunID     string  `json:"run_id"`
	Upserted  int     `json:"upserted"`
	Dimension int     `json:"dimension"`
	Elapsed   string  `json:"elapsed"`
	RatePerS  float64 `json:"rate_per_s"`
}

func run(cfg runConfig) error {
	dir, format, batchSize, partitions, metricsAddr := cfg.dir, cfg.format, cfg.batchSize, cfg.partitions, cfg.metricsAddr
	ctx := context.Background()

	ds, err := openDataset(format, dir)
	if err != nil {
		return err
	}
	if err := ds.Init(ctx); err != nil {
		return fmt.Errorf("init dataset: %w", err)
	}

	desc, cache, controller := syntheticCluster(partitions)

	registry := prometheus.NewRegistry()
	collector := metricsprom.New(registry)
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		go func() {
			_ = http.ListenAndServe(metricsAddr, mux)
		}()
	}

	client := dingosdk.New(cache, controller,
		dingosdk.WithLogger(dingosdk.NewTextLogger(slog.LevelInfo)),
		dingosdk.WithMetricsCollector(collector),
	)
	defer client.Close()

	loader := dataset.NewLoader(ds, batchSize)
	loader.Run(ctx)

	start := time.Now()
	var upserted int
	for batch := range loader.Batches() {
		if err := client.Upsert(ctx, desc, batch.Vectors); err != nil {
			return fmt.Errorf("upsert batch: %w", err)
		}
		upserted += len(batch.Vectors)
	}
	if err := loader.Err(); err != nil {
		return fmt.Errorf("dataset loader: %w", err)
	}

	elapsed := time.Since(start)
	rate := float64(upserted) / elapsed.Seconds()
	fmt.Printf("upserted %d vectors (dim=%d) in %s (%.1f/s)\n", upserted, ds.Dimension(), elapsed, rate)

	if cfg.resultsBucket != "" && cfg.resultsTable != "" {
		summary := runSummary{
			Corpus:    cfg.corpus,
			RunID:     cfg.runID,
			Upserted:  upserted,
			Dimension: ds.Dimension(),
			Elapsed:   elapsed.String(),
			RatePerS:  rate,
		}
		key, err := publishResults(ctx, cfg, summary)
		if err != nil {
			return fmt.Errorf("publish results: %w", err)
		}
		fmt.Printf("published run summary to s3://%s/%s\n", cfg.resultsBucket, key)
	}
	return nil
}

// publishResults uploads summary to S3 and advances the corpus's
// latest-run pointer in DynamoDB, using the ambient AWS configuration
// (environment, shared config file, or instance role) rather than
// requiring the caller to hand-build clients.
func publishResults(ctx context.Context, cfg runConfig, summary runSummary) (string, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return "", fmt.Errorf("load AWS config: %w", err)
	}
	s3Client := s3.NewFromConfig(awsCfg)
	ddbClient := dynamodb.NewFromConfig(awsCfg)

	body, err := json.Marshal(summary)
	if err != nil {
		return "", fmt.Errorf("marshal run summary: %w", err)
	}

	runID := cfg.runID
	if runID == "" {
		runID = fmt.Sprintf("run-%d-vectors-%d", summary.Upserted, time.Now().UnixNano())
	}

	pub := manifest.NewPublisher(s3Client, ddbClient, cfg.resultsBucket, cfg.resultsPrefix, cfg.resultsTable)
	key, err := pub.PublishRun(ctx, cfg.corpus, runID, body)
	if err != nil && !errors.Is(err, manifest.ErrConcurrentPublish) {
		return "", err
	}
	return key, nil
}

func openDataset(format, dir string) (dataset.Dataset, error) {
	switch format {
	case "json":
		return dataset.NewJSONLoader(dir, dataset.DefaultFieldMapping, ""), nil
	default:
		return nil, fmt.Errorf("unsupported -format %q", format)
	}
}

// syntheticCluster builds a topology.Cache and rpc.Controller carving the
// keyspace into n partitions, one region each, all served by a handler
// that accepts writes unconditionally. It stands in for a real cluster
// so the benchmark exercises the fanout and routing paths without one.
func syntheticCluster(n int) (*vector.IndexDescriptor, topology.Cache, rpc.Controller) {
	if n < 1 {
		n = 1
	}

	partitionIDs := make([]int64, n)
	regions := make([]topology.Region, n)
	for i := 0; i < n; i++ {
		partitionIDs[i] = int64(i)
		regions[i] = topology.Region{
			RegionID: int64(i + 1),
			StartKey: keycodec.EncodeStart(keycodec.TagVector, int64(i)),
			EndKey:   keycodec.EncodeEnd(keycodec.TagVector, int64(i)),
		}
	}

	desc := &vector.IndexDescriptor{
		ID:           1,
		Kind:         vector.IndexKindFlat,
		PartitionIDs: partitionIDs,
	}

	cache := topology.NewMemCache(nil, regions...)
	controller := &testutil.FakeController{
		Handler: func(region topology.Region, method string, req, resp any) error {
			switch r := resp.(type) {
			case *vector.AddResponse:
				*r = vector.AddResponse{}
				return nil
			default:
				return errors.New("dingo-bench: unexpected RPC in synthetic cluster: " + method)
			}
		},
	}
	return desc, cache, controller
}
