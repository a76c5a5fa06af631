package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
)

// Exit codes of the CLI.
const (
	exitOK    = 0
	exitUsage = 2
	exitParse = 3
	exitIO    = 4
)

var (
	hf         bool
	configPath string
	logLevel   string
	formatFlag string
	workerFlag int
	resume     bool

	inputPath string
	outputDir string
	minZoom   int
	maxZoom   int
	layerFlag string
)

func InitFlag() {
	flag.BoolVar(&hf, "h", false, "this help")
	flag.StringVar(&configPath, "c", "", "set config `file`")
	flag.StringVar(&logLevel, "l", "info", "set log level (default: info)")
	flag.StringVar(&formatFlag, "f", "", "output format: dir or mbtiles")
	flag.IntVar(&workerFlag, "w", 0, "concurrent tile writers")
	flag.BoolVar(&resume, "resume", false, "skip tiles whose file already exists")
	flag.Usage = usage
	flag.Parse()

	if hf {
		flag.Usage()
		os.Exit(exitOK)
	}

	args := flag.Args()
	if len(args) < 4 || len(args) > 5 {
		flag.Usage()
		os.Exit(exitUsage)
	}
	inputPath = args[0]
	outputDir = args[1]
	minZoom = parseZoom(args[2])
	maxZoom = parseZoom(args[3])
	if len(args) == 5 {
		layerFlag = args[4]
	}
}

func parseZoom(arg string) int {
	z, err := strconv.Atoi(arg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid zoom %q\n", arg)
		flag.Usage()
		os.Exit(exitUsage)
	}
	return z
}

func usage() {
	fmt.Fprintf(os.Stderr, `vtiler version: vtiler/v0.1.0
Usage: vtiler [-h] [-c filename] [-l logLevel] [-f dir|mbtiles] [-w workers] [-resume] <input.geojson> <output_dir> <min_zoom> <max_zoom> [layer_name]
`)
	flag.PrintDefaults()
}
