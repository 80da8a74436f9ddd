// Command-line interface to segmentation snapshot files.
// Provides inspect, compact, and convert commands for the tile format.

package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/RioBao/CTViewerV2-sub000/segmentation/store"
	"github.com/RioBao/CTViewerV2-sub000/viewer"
)

var (
	// Display usage if true.
	showHelp = flag.Bool("help", false, "")

	// Run in verbose mode if true.
	runVerbose = flag.Bool("verbose", false, "")

	// Path to a TOML config file.  Leave unset for defaults.
	configFile = flag.String("config", "", "")

	// Compression for written snapshot files.
	compression = flag.String("compression", "zstd", "")

	// Cubic tile edge for rebuilt snapshots.
	tileEdge = flag.Int("tile", int(store.DefaultTileEdge), "")
)

const helpMessage = `
segtool is a command-line interface to segmentation mask snapshot files

Usage: segtool [options] <command>

      -config      =string   Path to TOML config file.  Leave unset for defaults.
      -compression =string   Compression for written snapshots: none, snappy, zstd.
      -tile        =number   Cubic tile edge for rebuilt snapshots.
      -verbose     (flag)    Run in verbose mode.
  -h, -help        (flag)    Show help message

Commands:

	help
	inspect <snapshot file>
	compact <snapshot file> <output file>
	convert <snapshot file> <output file>
`

func main() {
	flag.BoolVar(showHelp, "h", false, "Show help message")
	flag.Usage = func() {
		fmt.Printf(helpMessage)
	}
	flag.Parse()

	if flag.NArg() >= 1 && strings.ToLower(flag.Args()[0]) == "help" {
		*showHelp = true
	}
	if *showHelp || flag.NArg() == 0 {
		flag.Usage()
		os.Exit(0)
	}

	cfg, err := viewer.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	cfg.Log.SetLogger()
	if *runVerbose {
		viewer.Verbose = true
		viewer.SetLogMode(viewer.DebugMode)
	} else {
		viewer.SetLogMode(viewer.InfoMode)
	}

	if err := doCommand(cfg, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	viewer.Shutdown()
}

func doCommand(cfg viewer.Config, args []string) error {
	switch args[0] {
	case "inspect":
		return doInspect(args)
	case "compact":
		return doCompact(cfg, args)
	case "convert":
		return doConvert(args)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// doInspect prints a snapshot file's header and per-volume statistics.
func doInspect(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("inspect command must be followed by the path to a snapshot file")
	}
	snap, err := store.ReadSnapshotFile(args[1])
	if err != nil {
		return err
	}
	var encoded int64
	for i := range snap.Tiles {
		encoded += snap.Tiles[i].Data.NumVoxels()
	}
	fmt.Printf("Snapshot %s\n", snap.ID)
	fmt.Printf("  created:    %s\n", snap.Created)
	fmt.Printf("  format:     %s\n", snap.Format)
	fmt.Printf("  dimensions: %d x %d x %d\n", snap.Dimensions[0], snap.Dimensions[1], snap.Dimensions[2])
	fmt.Printf("  labels:     %s\n", snap.ClassDataType)
	fmt.Printf("  tile edge:  %d\n", snap.TileEdge)
	fmt.Printf("  tiles:      %d non-empty, %d voxels encoded\n", len(snap.Tiles), encoded)
	return nil
}

// doCompact rebuilds a snapshot through a live volume, dropping tiles
// that decode to all zero and re-encoding at the configured tile edge.
func doCompact(cfg viewer.Config, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("compact command must be followed by input and output snapshot paths")
	}
	snap, err := store.ReadSnapshotFile(args[1])
	if err != nil {
		return err
	}
	s := store.New(cfg)
	defer s.Dispose()
	if err := s.Restore(snap); err != nil {
		return err
	}
	rebuilt, err := s.Snapshot(int32(*tileEdge))
	if err != nil {
		return err
	}
	compress, err := parseCompression(*compression)
	if err != nil {
		return err
	}
	if err := store.WriteSnapshotFile(args[2], rebuilt, compress); err != nil {
		return err
	}
	stats, err := s.Stats()
	if err != nil {
		return err
	}
	fmt.Printf("Compacted %s -> %s: %d tiles in, %d tiles out.\n", args[1], args[2],
		len(snap.Tiles), len(rebuilt.Tiles))
	fmt.Printf("%s\n", stats)
	return nil
}

// doConvert rewrites a snapshot file under a different compression
// without touching its tiles.
func doConvert(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("convert command must be followed by input and output snapshot paths")
	}
	snap, err := store.ReadSnapshotFile(args[1])
	if err != nil {
		return err
	}
	compress, err := parseCompression(*compression)
	if err != nil {
		return err
	}
	if err := store.WriteSnapshotFile(args[2], snap, compress); err != nil {
		return err
	}
	fmt.Printf("Converted %s -> %s with %s.\n", args[1], args[2], compress)
	return nil
}

func parseCompression(s string) (viewer.Compression, error) {
	switch strings.ToLower(s) {
	case "none", "uncompressed":
		return viewer.Uncompressed, nil
	case "snappy":
		return viewer.Snappy, nil
	case "zstd":
		return viewer.Zstd, nil
	}
	return viewer.Uncompressed, fmt.Errorf("unknown compression %q; use none, snappy, or zstd", s)
}
