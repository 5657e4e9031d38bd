package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/stat"

	"spacenet/internal/simulate"
	"spacenet/pkg/config"
	"spacenet/pkg/decoding"
	"spacenet/pkg/visualization"
	"spacenet/pkg/volume"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "spacenet.yaml", "YAML configuration file (defaults are used when missing)")
	writeConfig := flag.Bool("write-config", false, "Write the default configuration to -config and exit")
	penalty := flag.String("penalty", "", "Override the penalty: smooth-lasso or tv-l1")
	classify := flag.Bool("classify", false, "Decode thresholded labels instead of the continuous response")
	numCores := flag.Int("cores", 0, "Override the number of path tasks solved in parallel")
	outputDir := flag.String("slices-dir", "", "Override the directory receiving the coefficient-map slices")
	flag.Parse()

	if *writeConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Default configuration written to: %s\n", *configPath)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *penalty != "" {
		cfg.Estimator.Penalty = *penalty
	}
	if *classify {
		cfg.Estimator.Classification = true
	}
	if *numCores > 0 {
		cfg.Estimator.NumCores = *numCores
	}
	if *outputDir != "" {
		cfg.Output.Dir = *outputDir
	}

	level := slog.LevelInfo
	if cfg.Output.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	dcfg, err := cfg.Decoding()
	if err != nil {
		log.Fatalf("Invalid estimator configuration: %v", err)
	}
	dcfg.Logger = logger

	fmt.Println("================================")
	fmt.Println("SPACENET: SPATIALLY REGULARISED DECODING (TV-L1 / GRAPH-NET)")
	fmt.Println("================================")

	sim := cfg.Simulation
	ds, err := simulate.Generate(simulate.Options{
		Shape:          sim.Shape,
		TrainSamples:   sim.TrainSamples,
		TestSamples:    sim.TestSamples,
		Smoothing:      sim.Smoothing,
		SNR:            sim.SNR,
		Classification: cfg.Estimator.Classification,
		Seed:           sim.Seed,
	})
	if err != nil {
		log.Fatalf("Simulation failed: %v", err)
	}
	fmt.Printf("Simulated %d train / %d test samples on a %v grid\n", sim.TrainSamples, sim.TestSamples, sim.Shape)

	est, err := decoding.New(dcfg)
	if err != nil {
		log.Fatalf("Invalid estimator configuration: %v", err)
	}

	masker := volume.NewArrayMasker(ds.Mask)
	fmt.Printf("Fitting %s decoder with %s loss...\n", dcfg.Penalty, dcfg.Loss)
	startTime := time.Now()
	model, err := est.FitVolumes(masker, ds.TrainImages, ds.YTrain)
	if err != nil {
		log.Fatalf("Fit failed: %v", err)
	}
	fitTime := time.Since(startTime)

	fmt.Printf("\nFit completed successfully in %.2f seconds!\n", fitTime.Seconds())
	fmt.Printf("Selected alpha: %.5g (per task: %v)\n", model.Alpha, model.BestAlphas)

	nonZero := 0
	for _, w := range model.Coef[0] {
		if w != 0 {
			nonZero++
		}
	}
	fmt.Printf("Non-zero weights: %d of %d\n", nonZero, model.NFeatures())
	fmt.Printf("Correlation with the true map: %.3f\n", stat.Correlation(model.Coef[0], ds.Weights, nil))

	if len(ds.TestImages) > 0 {
		pred, err := model.PredictVolumes(ds.TestImages)
		if err != nil {
			log.Fatalf("Prediction failed: %v", err)
		}
		fmt.Printf("\nHeld-out performance:\n")
		fmt.Printf("=====================\n")
		if cfg.Estimator.Classification {
			fmt.Printf("Accuracy: %.2f%%\n", 100*accuracy(pred, ds.YTest))
		} else {
			fmt.Printf("R^2: %.3f\n", stat.RSquaredFrom(pred, ds.YTest, nil))
		}
	}

	// Export coefficient-map slices along all axes
	if cfg.Output.SaveSlices {
		fmt.Println("\nExporting coefficient-map slices along all axes...")
		maps, err := model.CoefVolumes(nil)
		if err != nil {
			log.Fatalf("Failed to build coefficient maps: %v", err)
		}
		viewer, err := visualization.NewViewer(maps[0])
		if err != nil {
			log.Printf("Warning: slices not exported: %v", err)
			return
		}
		for _, axis := range []string{"x", "y", "z"} {
			axisDir := filepath.Join(cfg.Output.Dir, axis)
			paths, err := viewer.SaveSliceSequence(axis, axisDir)
			if err != nil {
				log.Printf("Warning: Failed to save %s-axis slices: %v", axis, err)
				continue
			}
			fmt.Printf("Saved %d %s-axis slices to: %s\n", len(paths), axis, axisDir)
		}
	}
}

func accuracy(pred, truth []float64) float64 {
	correct := 0
	for i := range pred {
		if pred[i] == truth[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(pred))
}
