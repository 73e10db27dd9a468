package main

import (
	"flag"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/fsnotify/fsnotify"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"gigmeter/models"
	"gigmeter/pkg/analysis"
	"gigmeter/pkg/vision"
)

// Global DB handle for helper funcs
var db *gorm.DB

var engine *analysis.Engine

// global flags (parsed in main)
var (
	verbose  bool
	budgetMs int
)

// MIME mapping to avoid opening files repeatedly
var extMime = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

// preload caches
type preloadState struct {
	framesByFile map[string]*models.FrameCapture // fileName -> capture
	mu           sync.RWMutex
}

func newPreloadState() *preloadState {
	return &preloadState{framesByFile: make(map[string]*models.FrameCapture, 1024)}
}

func (ps *preloadState) getFrame(name string) (*models.FrameCapture, bool) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	f, ok := ps.framesByFile[name]
	return f, ok
}
func (ps *preloadState) putFrame(f *models.FrameCapture) {
	ps.mu.Lock()
	ps.framesByFile[f.FileName] = f
	ps.mu.Unlock()
}

func mustInitDBFromEnv() *gorm.DB {
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatalf("DB_DSN must be set in environment to run this tool")
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	return gdb
}

// Main: scans a directory of captured frames, runs OCR + fare analysis,
// persists captures and offers, optional watch mode for live capture feeds.
func main() {
	dirFlag := flag.String("dir", "frames/incoming", "directory to scan for captured frames")
	userID := flag.Uint("user-id", 0, "User ID to assign captures to (if omitted attempts admin)")
	dryRun := flag.Bool("dry-run", false, "Skip all DB writes; just list / optionally analyze (see --simulate)")
	simulate := flag.Bool("simulate", false, "In dry-run: actually run OCR+analysis to show extracted offers")
	watch := flag.Bool("watch", false, "Watch directory for new frames")
	workers := flag.Int("workers", 0, "Worker pool size (default NumCPU)")
	flag.BoolVar(&verbose, "verbose", false, "Verbose per-frame logging")
	flag.IntVar(&budgetMs, "budget-ms", 500, "Soft per-frame processing budget in milliseconds (logged, never fatal)")
	flag.Parse()

	engine = analysis.NewEngine(engineConfigFromEnv())

	if *dryRun {
		log.Printf("Dry-run: scanning %s (no DB interaction)", *dirFlag)
		files := listFrameFiles(*dirFlag)
		log.Printf("Found %d candidate frames", len(files))
		if *simulate {
			for _, f := range files {
				lines, w, h, err := vision.ReadFrame(filepath.Join(*dirFlag, f))
				if err != nil {
					logV("OCR fail %s: %v", f, err)
					continue
				}
				res := engine.Analyze(lines, w, h)
				logV("ANALYZE %s doublePing=%v\n%s", f, res.DoublePing, analysis.FormatResult(res))
			}
		}
		return
	}

	db = mustInitDBFromEnv()
	user := resolveUser(*userID)
	ps := preloadAll(user)
	log.Printf("Preloaded: frames=%d", len(ps.framesByFile))

	files := listFrameFiles(*dirFlag)
	log.Printf("Scanning %d frames (workers=%d)", len(files), effectiveWorkers(*workers))
	runWorkerPool(*dirFlag, user, ps, files, effectiveWorkers(*workers))

	if *watch {
		if err := watchDirectory(*dirFlag, user, ps, effectiveWorkers(*workers)); err != nil {
			log.Fatalf("watch failed: %v", err)
		}
	}
}

func engineConfigFromEnv() analysis.Config {
	cfg := analysis.DefaultConfig()
	if v := os.Getenv("COST_PER_KM"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.CostPerKm = f
		}
	}
	if v := os.Getenv("PROFIT_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.ProfitThreshold = f
		}
	}
	return cfg
}

func effectiveWorkers(w int) int {
	if w <= 0 {
		return runtime.NumCPU()
	}
	return w
}

func logV(format string, args ...any) {
	if verbose {
		log.Printf(format, args...)
	}
}

// preloadAll fetches existing captures to minimize per-frame queries.
func preloadAll(user models.User) *preloadState {
	ps := newPreloadState()
	var frames []models.FrameCapture
	if err := db.Where("user_id = ?", user.ID).Find(&frames).Error; err == nil {
		for i := range frames {
			f := frames[i]
			ps.framesByFile[f.FileName] = &f
		}
	}
	return ps
}

// resolveUser finds the target user either by explicit id or by admin username.
func resolveUser(id uint) models.User {
	var u models.User
	if id != 0 {
		if err := db.First(&u, id).Error; err != nil {
			log.Fatalf("failed to find user id %d: %v", id, err)
		}
		return u
	}
	if err := db.Where("username = ?", "admin").First(&u).Error; err != nil {
		log.Fatalf("no --user-id provided and admin user not found: %v", err)
	}
	return u
}

func listFrameFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !isSupportedExt(e.Name()) {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out
}

func watchDirectory(dir string, user models.User, ps *preloadState, workers int) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return err
	}
	log.Printf("Watching %s (debounced) ...", dir)

	fileCh := make(chan string, 256)
	go func() {
		// simple debounce map of pending frames; capture tools write in chunks
		pending := map[string]time.Time{}
		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					close(fileCh)
					return
				}
				if ev.Op&fsnotify.Create == fsnotify.Create {
					name := filepath.Base(ev.Name)
					if !isSupportedExt(name) {
						continue
					}
					pending[name] = time.Now()
				}
			case <-ticker.C:
				now := time.Now()
				for name, t := range pending {
					if now.Sub(t) > 300*time.Millisecond { // stable
						fileCh <- name
						delete(pending, name)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					close(fileCh)
					return
				}
				log.Printf("watch error: %v", err)
			}
		}
	}()

	// Use worker pool for watch events too
	go runWorkerPool(dir, user, ps, nil, workers, fileCh)
	// block forever (Ctrl+C to exit)
	select {}
}

func isSupportedExt(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".webp":
		return true
	}
	return false
}

// worker pool orchestrator
func runWorkerPool(dir string, user models.User, ps *preloadState, initial []string, workers int, extraCh ...<-chan string) {
	fileCh := make(chan string, 1024)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range fileCh {
				processSingleFrame(dir, name, user, ps)
			}
		}()
	}
	// feed initial
	go func() {
		for _, f := range initial {
			fileCh <- f
		}
		// also relay from extra channels if provided
		for _, ch := range extraCh {
			go func(c <-chan string) {
				for n := range c {
					fileCh <- n
				}
			}(ch)
		}
		// if no extraCh (scan only) close when done
		if len(extraCh) == 0 {
			close(fileCh)
		}
	}()
	if len(extraCh) == 0 {
		wg.Wait()
	}
}

// processSingleFrame runs OCR + analysis for one capture and persists the
// outcome idempotently (by user+filename, preloaded cache first).
func processSingleFrame(dir, name string, user models.User, ps *preloadState) {
	if _, ok := ps.getFrame(name); ok {
		logV("SKIP frame already processed %s", name)
		return
	}
	filePath := filepath.Join(dir, name)

	started := time.Now()
	frame := models.FrameCapture{
		UserID:      user.ID,
		FileName:    name,
		StorePath:   filepath.ToSlash(filePath),
		ContentType: extMime[strings.ToLower(filepath.Ext(name))],
	}

	lines, w, h, err := vision.ReadFrame(filePath)
	if err != nil {
		frame.Failed = true
		frame.FailedReason = err.Error()
		if dberr := createFrame(&frame, ps); dberr != nil {
			log.Printf("ERROR create frame %s: %v", name, dberr)
		}
		logV("OCR fail %s: %v", name, err)
		return
	}

	res := engine.Analyze(lines, w, h)
	frame.Width = w
	frame.Height = h
	frame.LineCount = len(lines)
	frame.DoublePing = res.DoublePing
	if err := createFrame(&frame, ps); err != nil {
		log.Printf("ERROR create frame %s: %v", name, err)
		return
	}

	offers := 0
	for _, fr := range []*analysis.FareResult{res.Rapido, res.Uber} {
		if fr == nil {
			continue
		}
		fid := frame.ID
		rec := models.OfferRecord{
			UserID:      user.ID,
			FrameID:     &fid,
			Platform:    fr.Platform.String(),
			BaseFare:    fr.BaseFare,
			Bonus:       fr.Bonus,
			PickupKm:    fr.PickupKm,
			DropKm:      fr.DropKm,
			ProfitPerKm: fr.ProfitPerKm(),
			Profitable:  fr.Profitable(),
			Blocked:     fr.Blocked,
			Confidence:  fr.Confidence,
			SeenAt:      time.Now(),
		}
		if err := db.Create(&rec).Error; err != nil {
			if !isUniqueConstraintError(err) {
				log.Printf("ERROR create offer %s/%s: %v", name, rec.Platform, err)
			}
			continue
		}
		offers++
	}
	log.Printf("FRAME id=%d file=%s lines=%d offers=%d doublePing=%v", frame.ID, name, frame.LineCount, offers, frame.DoublePing)

	if elapsed := time.Since(started); elapsed > time.Duration(budgetMs)*time.Millisecond {
		log.Printf("SLOW frame %s took %s (budget %dms)", name, elapsed, budgetMs)
	}

	// Move the processed frame out of the incoming directory so new captures are processed only once
	if err := moveToProcessed(filePath, name); err != nil {
		log.Printf("WARN failed to move processed frame %s: %v", name, err)
	} else {
		logV("moved processed %s", name)
	}
}

// createFrame persists a capture handling create races via the unique index.
func createFrame(frame *models.FrameCapture, ps *preloadState) error {
	if err := db.Create(frame).Error; err != nil {
		if isUniqueConstraintError(err) {
			var existing models.FrameCapture
			if err2 := db.Where("user_id = ? AND file_name = ?", frame.UserID, frame.FileName).First(&existing).Error; err2 != nil {
				return err2
			}
			*frame = existing
			ps.putFrame(frame)
			return nil
		}
		return err
	}
	ps.putFrame(frame)
	return nil
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "duplicate key") || strings.Contains(s, "unique constraint") || strings.Contains(s, "already exists")
}

// moveToProcessed moves a frame into the processed directory next to the
// incoming one. It attempts an atomic rename and falls back to copy+remove;
// oversized frames are downscaled to keep the archive bounded.
func moveToProcessed(srcFullPath, name string) error {
	const maxBytes = 1_000_000 // 1 MB budget
	processedDir := filepath.Join(filepath.Dir(filepath.Dir(srcFullPath)), "processed")
	if err := os.MkdirAll(processedDir, 0o755); err != nil {
		return err
	}
	dst := filepath.Join(processedDir, name)

	fi, err := os.Stat(srcFullPath)
	if err != nil {
		return err
	}
	// Fast path: already small enough -> attempt rename/copy
	if fi.Size() <= maxBytes {
		if err := os.Rename(srcFullPath, dst); err == nil {
			return nil
		}
		return copyRemove(srcFullPath, dst)
	}
	img, err := imaging.Open(srcFullPath)
	if err != nil { // fallback to raw move if cannot decode
		if err := os.Rename(srcFullPath, dst); err == nil {
			return nil
		}
		return copyRemove(srcFullPath, dst)
	}
	// Estimate scale factor based on sqrt(max/current) (size roughly scales with area)
	scale := math.Sqrt(float64(maxBytes) / float64(fi.Size()))
	if scale > 0.95 {
		scale = 0.95
	}
	if scale < 0.1 {
		scale = 0.1
	}
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	newW := int(math.Max(1, math.Round(float64(w)*scale)))
	newH := int(math.Max(1, math.Round(float64(h)*scale)))
	img = imaging.Resize(img, newW, newH, imaging.Lanczos)
	if err := imaging.Save(img, dst); err != nil {
		if err := os.Rename(srcFullPath, dst); err == nil {
			return nil
		}
		return copyRemove(srcFullPath, dst)
	}
	_ = os.Remove(srcFullPath)
	return nil
}

func copyRemove(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	_ = out.Close()
	if err := os.Remove(src); err != nil {
		return err
	}
	return nil
}
