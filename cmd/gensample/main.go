package main

import (
	"bufio"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/spf13/cobra"
	"github.com/zeebo/errs"
)

type options struct {
	dir         string
	ratings     int
	products    int
	corruptRate float64
	seed        int64
}

func main() {
	var opts options
	root := &cobra.Command{
		Use:          "gensample",
		Short:        "Write a sample ratings CSV and a gzip metadata feed with corrupt lines",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return generate(opts)
		},
	}
	flags := root.Flags()
	flags.StringVar(&opts.dir, "dir", "data/input", "output directory")
	flags.IntVar(&opts.ratings, "ratings", 1000, "number of ratings to generate")
	flags.IntVar(&opts.products, "products", 50, "number of products in the metadata feed")
	flags.Float64Var(&opts.corruptRate, "corrupt-rate", 0.1, "share of metadata lines written in a malformed form")
	flags.Int64Var(&opts.seed, "seed", 1, "random seed")
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

var titles = []string{
	"Everyday Italian, Volume 1",
	"Schindler's List",
	"The 1980's Hits",
	"Rock '80s Anthology",
	"Casablanca",
	"Mr. Smith Goes to Washington",
}

func generate(opts options) error {
	rng := rand.New(rand.NewSource(opts.seed))
	asins := make([]string, opts.products)
	for i := range asins {
		asins[i] = fmt.Sprintf("B%09d", i+1)
	}

	if err := writeRatings(filepath.Join(opts.dir, "ratings", "part-00000.csv"), rng, asins, opts.ratings); err != nil {
		return err
	}
	corrupt, err := writeMetadata(filepath.Join(opts.dir, "metadata", "part-00000.json.gz"), rng, asins, opts.corruptRate)
	if err != nil {
		return err
	}
	fmt.Printf("generated %d ratings and %d products (%d in legacy repr form) in %s\n", opts.ratings, opts.products, corrupt, opts.dir)
	return nil
}

func create(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	return os.Create(path)
}

func writeRatings(path string, rng *rand.Rand, asins []string, n int) (err error) {
	f, err := create(path)
	if err != nil {
		return err
	}
	defer func() { err = errs.Combine(err, f.Close()) }()

	w := bufio.NewWriter(f)
	// 2013-01-01 .. 2014-12-31
	start := time.Date(2013, 1, 1, 0, 0, 0, 0, time.UTC).Unix()
	span := int64(2 * 365 * 24 * 3600)
	for i := 0; i < n; i++ {
		// a few ratings point at products without metadata
		asin := asins[rng.Intn(len(asins))]
		if rng.Intn(20) == 0 {
			asin = fmt.Sprintf("X%09d", rng.Intn(1000))
		}
		rating := float64(1+rng.Intn(5)) - 0.5*float64(rng.Intn(2))
		if _, err := fmt.Fprintf(w, "U%06d,%s,%.1f,%d\n", rng.Intn(n/4+1), asin, rating, start+rng.Int63n(span)); err != nil {
			return err
		}
	}
	return w.Flush()
}

func writeMetadata(path string, rng *rand.Rand, asins []string, corruptRate float64) (corrupt int, err error) {
	f, err := create(path)
	if err != nil {
		return 0, err
	}
	defer func() { err = errs.Combine(err, f.Close()) }()

	zw := gzip.NewWriter(f)
	w := bufio.NewWriter(zw)
	for _, asin := range asins {
		title := titles[rng.Intn(len(titles))]
		price := float64(rng.Intn(3000)) / 100
		var line string
		if rng.Float64() < corruptRate {
			// python repr with an unescaped apostrophe, as the upstream dump produced
			line = fmt.Sprintf("{'asin': '%s', 'title': '%s', 'price': %.2f, 'categories': [['Movies & TV', 'Movies']]}", asin, title, price)
			corrupt++
		} else {
			line = fmt.Sprintf("{\"asin\": %q, \"title\": %q, \"price\": %.2f, \"categories\": [[\"Movies & TV\", \"Movies\"]]}", asin, title, price)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return corrupt, err
		}
	}
	if err := w.Flush(); err != nil {
		return corrupt, err
	}
	return corrupt, zw.Close()
}
