// Command fphgen builds a perfect-hash set from a newline-delimited key
// file and reports the parameter bundle and build statistics it produced.
// It exists to exercise the library's introspection hooks through a real
// external surface rather than a test-only method.
package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/renzibei/go-fph"
)

var (
	bucketFactor  float64
	maxLoadFactor float64
	bucketParam   string
	hashName      string
	useMeta       bool
	verbose       bool
)

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	root := &cobra.Command{
		Use:   "fphgen [keyfile]",
		Short: "Build a perfect-hash set from a key file and print its parameters",
		Args:  cobra.MaximumNArgs(1),
		RunE:  run,
	}
	root.Flags().Float64Var(&bucketFactor, "bucket-factor", 2.0, "target keys-per-bucket ratio")
	root.Flags().Float64Var(&maxLoadFactor, "max-load-factor", 0, "target load factor (0 picks the default for --bucket-param)")
	root.Flags().StringVar(&bucketParam, "bucket-param", "32", "displacement width: 8, 16, 32, or 64")
	root.Flags().StringVar(&hashName, "hash", "xxhash", "hash family: xxhash or murmur3")
	root.Flags().BoolVar(&useMeta, "meta", false, "build the meta variant instead of the dynamic variant")
	root.Flags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	if err := root.Execute(); err != nil {
		log.Fatal().Err(err).Msg("fphgen failed")
	}
}

func run(cmd *cobra.Command, args []string) error {
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	var in *os.File
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("fphgen: %w", err)
		}
		defer f.Close()
		in = f
	} else {
		in = os.Stdin
	}

	keys, err := readKeys(in)
	if err != nil {
		return err
	}
	log.Debug().Int("keys", len(keys)).Msg("read key file")

	hasher, err := stringHasher(hashName)
	if err != nil {
		return err
	}

	switch bucketParam {
	case "8":
		return buildAndReport[uint8](keys, hasher)
	case "16":
		return buildAndReport[uint16](keys, hasher)
	case "32":
		return buildAndReport[uint32](keys, hasher)
	case "64":
		return buildAndReport[uint64](keys, hasher)
	default:
		return fmt.Errorf("fphgen: unsupported --bucket-param %q (want 8, 16, 32, or 64)", bucketParam)
	}
}

func stringHasher(name string) (fph.Hasher[string], error) {
	switch name {
	case "xxhash":
		return fph.NewStringHasher(), nil
	case "murmur3":
		return fph.NewMurmur3StringHasher(), nil
	default:
		return nil, fmt.Errorf("fphgen: unsupported --hash %q (want xxhash or murmur3)", name)
	}
}

func readKeys(f *os.File) ([]string, error) {
	var keys []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		keys = append(keys, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("fphgen: reading keys: %w", err)
	}
	return keys, nil
}

func buildAndReport[D fph.BucketParam](keys []string, hasher fph.Hasher[string]) error {
	opts := []fph.Option[string, struct{}, D]{
		fph.WithHasher[string, struct{}, D](hasher),
		fph.WithBucketFactor[string, struct{}, D](bucketFactor),
	}
	if maxLoadFactor > 0 {
		opts = append(opts, fph.WithMaxLoadFactor[string, struct{}, D](maxLoadFactor))
	}

	var stats fph.Stats
	var bucketCount, slotCount int
	var loadFactor float64

	if useMeta {
		s, err := fph.NewMetaSet[string, D](len(keys), opts...)
		if err != nil {
			return fmt.Errorf("fphgen: build failed: %w", err)
		}
		defer s.Close()
		for _, k := range keys {
			if _, err := s.Insert(k); err != nil {
				return fmt.Errorf("fphgen: insert failed: %w", err)
			}
		}
		stats = s.Stats()
		bucketCount = s.BucketCount()
		slotCount = s.SlotCount()
		loadFactor = s.LoadFactor()
	} else {
		s, err := fph.NewSet[string, D](len(keys), opts...)
		if err != nil {
			return fmt.Errorf("fphgen: build failed: %w", err)
		}
		defer s.Close()
		for _, k := range keys {
			if _, err := s.Insert(k); err != nil {
				return fmt.Errorf("fphgen: insert failed: %w", err)
			}
		}
		stats = s.Stats()
		bucketCount = s.BucketCount()
		slotCount = s.SlotCount()
		loadFactor = s.LoadFactor()
	}

	fmt.Printf("keys=%d bucket_count=%d slot_count=%d load_factor=%.4f seed_attempts=%d bucket_factor_tries=%d\n",
		len(keys), bucketCount, slotCount, loadFactor, stats.SeedAttempts, stats.BucketFactorTries)
	return nil
}
