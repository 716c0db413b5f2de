package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"

	flags "github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"

	"github.com/axiomhq/tdigest"
	"github.com/axiomhq/tdigest/keyspace"
)

type options struct {
	Compression  int       `short:"c" long:"compression" default:"400" description:"digest compression"`
	Count        int       `short:"n" long:"count" default:"1000000" description:"number of samples"`
	Distribution string    `short:"d" long:"distribution" default:"uniform" choice:"uniform" choice:"normal" choice:"exponential" description:"sample distribution"`
	Seed         int64     `long:"seed" default:"1" description:"random seed"`
	Quantiles    []float64 `short:"q" long:"quantile" default:"0.01" default:"0.5" default:"0.99" description:"quantiles to print"`
	Snapshot     string    `long:"snapshot" description:"save to and restore from this bbolt file"`
	Rewrite      string    `long:"rewrite" description:"write a replay log to this file"`
	Verbose      bool      `short:"v" long:"verbose" description:"debug logging"`
}

const key = "demo"

func main() {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	log := logrus.New()
	if opts.Verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	if err := run(opts, log); err != nil {
		log.WithError(err).Fatal("demo failed")
	}
}

func run(opts options, log *logrus.Logger) error {
	ks := keyspace.New(keyspace.WithLogger(log))
	if err := ks.Create(key, opts.Compression); err != nil {
		return err
	}

	next := generator(opts.Distribution, rand.New(rand.NewSource(opts.Seed)))
	batch := make([]tdigest.Sample, 0, 1000)
	for i := 0; i < opts.Count; i++ {
		batch = append(batch, tdigest.Sample{Value: next(), Weight: 1})
		if len(batch) == cap(batch) || i == opts.Count-1 {
			if _, err := ks.Add(key, batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := ks.Compress(key); err != nil {
		return err
	}

	info, err := ks.Info(key)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"distribution": opts.Distribution,
		"centroids":    info.Centroids,
		"bytes":        info.MemoryUsage,
	}).Info("digest built")

	if err := report(ks, opts.Quantiles); err != nil {
		return err
	}

	if opts.Snapshot != "" {
		store, err := keyspace.OpenBoltStore(opts.Snapshot)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		if err := ks.Snapshot(ctx, store); err != nil {
			return err
		}
		restored := keyspace.New(keyspace.WithLogger(log))
		if err := restored.Restore(ctx, store); err != nil {
			return err
		}
		fmt.Println("restored from", opts.Snapshot)
		if err := report(restored, opts.Quantiles); err != nil {
			return err
		}
	}

	if opts.Rewrite != "" {
		f, err := os.Create(opts.Rewrite)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := ks.Rewrite(f); err != nil {
			return err
		}
	}
	return nil
}

func report(ks *keyspace.Keyspace, qs []float64) error {
	values, ok, err := ks.Quantile(key, qs)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("empty digest")
		return nil
	}
	cdfs, _ := ks.CDF(key, values)
	for i, q := range qs {
		fmt.Printf("q=%-6v value=%-12.6g cdf=%.6f\n", q, values[i], cdfs[i])
	}
	return nil
}

func generator(distribution string, r *rand.Rand) func() float64 {
	switch distribution {
	case "normal":
		return r.NormFloat64
	case "exponential":
		return r.ExpFloat64
	default:
		return r.Float64
	}
}
