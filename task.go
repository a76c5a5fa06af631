package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/teris-io/shortid"
	pb "gopkg.in/cheggaaa/pb.v1"

	"vtiler/geojson"
	"vtiler/mvt"
	"vtiler/tileset"
)

func InitTask() {
	start := time.Now()

	data, err := os.ReadFile(inputPath)
	if err != nil {
		log.Errorf("unable to read input %s: %s", inputPath, err)
		os.Exit(exitIO)
	}

	ts, err := tileset.Generate(data, minZoom, maxZoom, resolveLayerName())
	if err != nil {
		exitGenerate(err)
	}
	if ts.Empty() {
		log.Warnf("input %s contained no usable features", inputPath)
	}
	log.Infof("generated %d tiles for zoom %d..%d", ts.Count(), minZoom, maxZoom)

	task := NewTask(ts)
	SafeExitInst.Register(task.AbortFun)

	if err := task.Run(); err != nil {
		log.Errorf("write failed: %s", err)
		os.Exit(exitIO)
	}

	secs := time.Since(start).Seconds()
	log.Printf("%.3fs finished...", secs)
}

func exitGenerate(err error) {
	var perr *geojson.ParseError
	var rerr *tileset.RangeError
	var eerr *mvt.EncodeError
	switch {
	case errors.As(err, &perr):
		log.Errorf("parse error: %s", perr)
		os.Exit(exitParse)
	case errors.As(err, &rerr):
		log.Errorf("%s", rerr)
		usage()
		os.Exit(exitUsage)
	case errors.As(err, &eerr):
		log.Errorf("encode error (this is a bug): %s", eerr)
		os.Exit(1)
	default:
		log.Errorf("%s", err)
		os.Exit(1)
	}
}

// Task writes a generated TileSet to disk or to an mbtiles archive.
type Task struct {
	ID          string
	Set         *tileset.TileSet
	OutDir      string
	Format      string
	Resume      bool
	workerCount int
	tileWG      sync.WaitGroup
	abortOnce   sync.Once
	abort       chan struct{}
	workers     chan struct{}

	errMu    sync.Mutex
	firstErr error
}

func NewTask(ts *tileset.TileSet) *Task {
	id, _ := shortid.Generate()
	task := &Task{
		ID:          id,
		Set:         ts,
		OutDir:      outputDir,
		Format:      outputFormat(),
		Resume:      resume,
		workerCount: workerCount(),
	}
	task.abort = make(chan struct{})
	task.workers = make(chan struct{}, task.workerCount)
	return task
}

// AbortFun stops tile dispatch; registered with the safe-exit listener.
func (task *Task) AbortFun() {
	task.abortOnce.Do(func() { close(task.abort) })
}

func (task *Task) setErr(err error) {
	task.errMu.Lock()
	defer task.errMu.Unlock()
	if task.firstErr == nil {
		task.firstErr = err
	}
}

func (task *Task) aborted() bool {
	select {
	case <-task.abort:
		return true
	default:
		return false
	}
}

// Run writes all artifacts plus the metadata document.
func (task *Task) Run() error {
	if err := os.MkdirAll(task.OutDir, os.ModePerm); err != nil {
		return errors.Wrap(err, "create output directory")
	}

	switch strings.ToLower(task.Format) {
	case "", "dir":
		if err := task.writeFiles(); err != nil {
			return err
		}
		md := buildMetadata(task.Set, metadataName(), conf.Layer.Description)
		return writeMetadataFile(filepath.Join(task.OutDir, "metadata.json"), md)
	case "mbtiles":
		return task.writeMBTiles()
	}
	return errors.Errorf("unknown output format %q", task.Format)
}

// writeFiles saves the {z}/{x}/{y}.pbf tree with a worker pool, one
// progress bar per zoom level.
func (task *Task) writeFiles() error {
	tiles := task.Set.Tiles()
	for lo := 0; lo < len(tiles); {
		hi := lo
		z := zoomOf(tiles[lo].Path)
		for hi < len(tiles) && zoomOf(tiles[hi].Path) == z {
			hi++
		}
		if err := task.writeZoom(z, tiles[lo:hi]); err != nil {
			return err
		}
		lo = hi
	}
	task.tileWG.Wait()
	return task.firstErr
}

func (task *Task) writeZoom(z string, tiles []tileset.Tile) error {
	bar := pb.New(len(tiles)).Prefix(fmt.Sprintf("Zoom %s : ", z))
	bar.SetRefreshRate(time.Second)
	bar.Start()

	for _, tile := range tiles {
		select {
		case task.workers <- struct{}{}:
			bar.Increment()
			task.tileWG.Add(1)
			go task.tileWriter(tile)
		case <-task.abort:
			log.Infof("Task %s got canceled.", task.ID)
			task.tileWG.Wait()
			bar.Finish()
			return errors.New("aborted")
		}
	}
	task.tileWG.Wait()
	bar.FinishPrint(fmt.Sprintf("Task %s Zoom %s finished ~", task.ID, z))
	return task.firstErr
}

func (task *Task) tileWriter(tile tileset.Tile) {
	defer func() {
		task.tileWG.Done()
		<-task.workers
	}()

	full := filepath.Join(task.OutDir, filepath.FromSlash(tile.Path))
	if task.Resume && fileExists(full) {
		log.Debugf("tile %s exists, skipped", tile.Path)
		return
	}
	if err := saveTileFile(task.OutDir, tile.Path, tile.Data); err != nil {
		log.Errorf("save tile %s error ~ %s", tile.Path, err)
		task.setErr(err)
	}
}

// writeMBTiles stores the whole set in a single sqlite archive. Tile data
// is gzipped and rows use the TMS y axis, matching what tile servers
// expect from an mbtiles file.
func (task *Task) writeMBTiles() error {
	name := task.Set.Metadata().LayerName
	path := filepath.Join(task.OutDir, name+".mbtiles")
	if !task.Resume && fileExists(path) {
		os.Remove(path)
	}

	db, err := mbtilesOpen(path)
	if err != nil {
		return errors.Wrap(err, "open mbtiles")
	}

	bar := pb.New(task.Set.Count()).Prefix(fmt.Sprintf("Task %s : ", task.ID))
	bar.SetRefreshRate(time.Second)
	bar.Start()

	for _, tile := range task.Set.Tiles() {
		if task.aborted() {
			log.Infof("Task %s got canceled.", task.ID)
			break
		}
		z, x, y, err := splitTilePath(tile.Path)
		if err != nil {
			mbtilesClose(db)
			return err
		}
		data, err := gzipBytes(tile.Data)
		if err != nil {
			mbtilesClose(db)
			return err
		}
		if err := mbtilesWriteTile(db, z, x, y, data); err != nil {
			mbtilesClose(db)
			return errors.Wrapf(err, "write tile %s", tile.Path)
		}
		bar.Increment()
	}
	bar.Finish()

	md := buildMetadata(task.Set, metadataName(), conf.Layer.Description)
	if err := mbtilesWriteMetadata(db, md.pairs()); err != nil {
		mbtilesClose(db)
		return errors.Wrap(err, "write mbtiles metadata")
	}
	return mbtilesClose(db)
}

func metadataName() string {
	if conf.Layer.Name != "" {
		return conf.Layer.Name
	}
	base := filepath.Base(inputPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func zoomOf(tilePath string) string {
	return tilePath[:strings.IndexByte(tilePath, '/')]
}
