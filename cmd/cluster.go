package cmd

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/kozaktomas/face-cluster/internal/cluster"
	"github.com/kozaktomas/face-cluster/internal/fingerprint"
	"github.com/kozaktomas/face-cluster/internal/identity"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var clusterCmd = &cobra.Command{
	Use:   "cluster <file|dir>...",
	Short: "Find the dominant person in local image files",
	Long: `Extract a face from every image, cluster the faces and print the images
that best represent the person appearing most often.

Directories are walked recursively for jpg, png, gif, bmp, tiff and webp files.

Examples:
  # Cluster a folder of photos
  face-cluster cluster ./photos

  # Looser clustering, return 10 images, JSON output
  face-cluster cluster --eps 0.5 --min-pts 4 --top-k 10 --json ./photos

  # Approximate neighbour search for large batches
  face-cluster cluster --index hnsw --search-width 128 ./photos`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCluster,
}

func init() {
	rootCmd.AddCommand(clusterCmd)

	clusterCmd.Flags().Float64("eps", cluster.DefaultEps, "DBSCAN neighbourhood radius")
	clusterCmd.Flags().Int("min-pts", cluster.DefaultMinPts, "DBSCAN minimum neighbourhood size, including the point itself")
	clusterCmd.Flags().Int("cap", cluster.DefaultCap, "Upper bound on PCA components")
	clusterCmd.Flags().Int("top-k", cluster.DefaultTopK, "Number of representative images to return")
	clusterCmd.Flags().String("index", cluster.IndexLinear, "Neighbour search: linear (exact) or hnsw (approximate)")
	clusterCmd.Flags().Int("search-width", cluster.DefaultSearchWidth, "Candidates fetched per hnsw query")
	clusterCmd.Flags().Bool("exclude-noise", false, "Never pick the noise label as dominant")
	clusterCmd.Flags().Int("concurrency", 0, "Number of parallel extraction requests (0 = config)")
	clusterCmd.Flags().Bool("json", false, "Output as JSON")
}

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tif", ".tiff", ".webp"}

// collectImages expands directories into their image files. Explicit file arguments are
// kept whatever their extension.
func collectImages(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && slices.Contains(imageExtensions, strings.ToLower(filepath.Ext(path))) {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", arg, err)
		}
	}
	return paths, nil
}

// readInputs loads every path. Unreadable files become failed inputs.
func readInputs(paths []string) []identity.Input {
	inputs := make([]identity.Input, len(paths))
	for i, p := range paths {
		data, err := os.ReadFile(p)
		inputs[i] = identity.Input{Data: data, Err: err}
	}
	return inputs
}

// clusterParams applies the flags the user set on top of the configured parameters.
func clusterParams(cmd *cobra.Command, base cluster.Params) (cluster.Params, error) {
	p := base
	flags := cmd.Flags()
	if flags.Changed("eps") {
		p.Eps = mustGetFloat64(cmd, "eps")
	}
	if flags.Changed("min-pts") {
		p.MinPts = mustGetInt(cmd, "min-pts")
	}
	if flags.Changed("cap") {
		p.Cap = mustGetInt(cmd, "cap")
	}
	if flags.Changed("top-k") {
		p.TopK = mustGetInt(cmd, "top-k")
	}
	if flags.Changed("index") {
		p.Index = mustGetString(cmd, "index")
	}
	if flags.Changed("search-width") {
		p.SearchWidth = mustGetInt(cmd, "search-width")
	}
	if flags.Changed("exclude-noise") {
		p.ExcludeNoise = mustGetBool(cmd, "exclude-noise")
	}
	return p, p.Validate()
}

type clusterImage struct {
	Path  string  `json:"path"`
	Score float64 `json:"score"`
}

type clusterSkipped struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

type clusterOutput struct {
	RunID         string            `json:"run_id"`
	Images        int               `json:"images"`
	DominantLabel int               `json:"dominant_label"`
	DominantSize  int               `json:"dominant_size"`
	Clusters      []cluster.Summary `json:"clusters"`
	Top           []clusterImage    `json:"top"`
	Skipped       []clusterSkipped  `json:"skipped"`
}

func newClusterOutput(report *identity.Report, paths []string) clusterOutput {
	res := report.Result
	out := clusterOutput{
		RunID:         report.RunID,
		Images:        len(paths),
		DominantLabel: res.Dominant.Label,
		DominantSize:  res.Dominant.Count,
		Clusters:      res.Clusters,
		Top:           make([]clusterImage, 0, len(res.Ranked)),
		Skipped:       make([]clusterSkipped, 0, len(res.Skipped)),
	}
	for _, r := range res.Ranked {
		out.Top = append(out.Top, clusterImage{Path: paths[r.Index], Score: r.Score})
	}
	for _, s := range res.Skipped {
		out.Skipped = append(out.Skipped, clusterSkipped{Path: paths[s.Index], Reason: s.Reason})
	}
	return out
}

func printClusterOutput(out clusterOutput) {
	label := fmt.Sprintf("%d", out.DominantLabel)
	if out.DominantLabel == cluster.NoiseLabel {
		label = "noise"
	}
	fmt.Printf("\nDominant cluster: %s (%d of %d images)\n", label, out.DominantSize, out.Images)

	fmt.Println("\nClusters:")
	for _, c := range out.Clusters {
		fmt.Printf("  %5d: %d\n", c.Label, c.Count)
	}

	fmt.Printf("\nTop %d images:\n", len(out.Top))
	for i, img := range out.Top {
		fmt.Printf("  %2d. %.4f  %s\n", i+1, img.Score, img.Path)
	}

	if len(out.Skipped) > 0 {
		fmt.Printf("\nSkipped: %d\n", len(out.Skipped))
		for _, s := range out.Skipped {
			fmt.Printf("  - %s: %s\n", s.Path, s.Reason)
		}
	}
}

func runCluster(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	params, err := clusterParams(cmd, cfg.Params())
	if err != nil {
		return err
	}
	concurrency := cfg.Embedding.Concurrency
	if c := mustGetInt(cmd, "concurrency"); c > 0 {
		concurrency = c
	}
	jsonOutput := mustGetBool(cmd, "json")

	paths, err := collectImages(args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no images found in %s", strings.Join(args, ", "))
	}

	client := fingerprint.NewEmbeddingClient(cfg.Embedding.URL, cfg.Embedding.Timeout)
	svc := identity.NewService(fingerprint.NewFaceExtractor(client, cfg.Embedding.MaxImageSize), concurrency)

	var onDone func()
	if !jsonOutput {
		bar := progressbar.NewOptions(len(paths),
			progressbar.OptionSetDescription("Extracting faces"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("images"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
		onDone = func() { bar.Add(1) }
	}

	report, err := svc.Identify(cmd.Context(), readInputs(paths), params, onDone)
	if err != nil {
		return fmt.Errorf("clustering %d images: %w", len(paths), err)
	}

	out := newClusterOutput(report, paths)
	if jsonOutput {
		return outputJSON(out)
	}
	printClusterOutput(out)
	return nil
}
