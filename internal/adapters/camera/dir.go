package camera

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// DirDriver replays the JPEG files of a directory in name order, looping
// forever. It paces frames at the profile's frame rate and holds at most
// Buffers frames outstanding, like a driver with a fixed buffer pool.
type DirDriver struct {
	dir string

	mu          sync.Mutex
	files       []string
	next        int
	open        bool
	interval    time.Duration
	lastGrab    time.Time
	outstanding int
	buffers     int
	// gen counts Opens; releases from an earlier open are ignored.
	gen int
}

// NewDirDriver creates a driver reading from dir.
func NewDirDriver(dir string) *DirDriver {
	return &DirDriver{dir: dir}
}

// Open lists the directory.
func (d *DirDriver) Open(p Profile) error {
	var files []string
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.Type().IsRegular() && (ext == ".jpg" || ext == ".jpeg") {
			files = append(files, filepath.Join(d.dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return fmt.Errorf("no jpeg files in %s", d.dir)
	}
	sort.Strings(files)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.files = files
	d.next = 0
	d.open = true
	d.outstanding = 0
	d.gen++
	d.buffers = p.Buffers
	if d.buffers <= 0 {
		d.buffers = 1
	}
	d.interval = 0
	if p.FrameRate > 0 {
		d.interval = time.Duration(float64(time.Second) / p.FrameRate)
	}
	return nil
}

// Grab returns the next file's contents.
func (d *DirDriver) Grab(timeout time.Duration) ([]byte, func(), error) {
	d.mu.Lock()
	if !d.open {
		d.mu.Unlock()
		return nil, nil, fmt.Errorf("camera not open")
	}
	if d.outstanding >= d.buffers {
		d.mu.Unlock()
		return nil, nil, fmt.Errorf("all %d buffers in use", d.buffers)
	}

	wait := time.Duration(0)
	if !d.lastGrab.IsZero() && d.interval > 0 {
		wait = d.interval - time.Since(d.lastGrab)
	}
	if wait > timeout {
		d.mu.Unlock()
		time.Sleep(timeout)
		return nil, nil, ErrTimeout
	}
	path := d.files[d.next]
	d.next = (d.next + 1) % len(d.files)
	d.outstanding++
	gen := d.gen
	d.mu.Unlock()

	if wait > 0 {
		time.Sleep(wait)
	}

	data, err := os.ReadFile(path)

	d.mu.Lock()
	d.lastGrab = time.Now()
	if err != nil {
		if d.gen == gen {
			d.outstanding--
		}
		d.mu.Unlock()
		return nil, nil, err
	}
	d.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			d.mu.Lock()
			if d.gen == gen {
				d.outstanding--
			}
			d.mu.Unlock()
		})
	}
	return data, release, nil
}

// Close marks the driver closed.
func (d *DirDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = false
	return nil
}
