package kpv

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

var errWalkCancelled = errors.New("walk cancelled")

func isImage(file string) bool {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".png", ".jpg", ".jpeg", ".gif":
		return true
	}
	return false
}

type imagePath struct {
	index int
	path  string
}

// filepath.Walk visits files in lexical order, which is the frame order
func (e *Encoder) findImages(ctx context.Context, base string) (<-chan imagePath, <-chan error, error) {
	info, err := os.Stat(base)
	if err != nil {
		return nil, nil, err
	}
	if !info.IsDir() {
		return nil, nil, errors.New("not a directory")
	}

	out := make(chan imagePath)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errc)
		var i int
		errc <- filepath.Walk(base, func(file string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}

			// Ignore any hidden files or directories, otherwise we end up fighting with things like Spotlight, etc.
			if info.Name()[0] == '.' {
				if info.Mode().IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			// Only the top directory holds frames
			if info.Mode().IsDir() {
				if file != base {
					return filepath.SkipDir
				}
				return nil
			}

			if !info.Mode().IsRegular() || !isImage(file) {
				return nil
			}

			select {
			case out <- imagePath{index: i, path: file}:
			case <-ctx.Done():
				return errWalkCancelled
			}
			i++

			return nil
		})
	}()
	return out, errc, nil
}

func decodeImage(file string) (image.Image, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}

	return m, nil
}

// A failure cancels the rest of the pipeline, the worker then keeps draining
// its input so the walk finishes
func (e *Encoder) imageWorker(ctx context.Context, cancel context.CancelFunc, in <-chan imagePath) (<-chan Source, <-chan error, error) {
	out := make(chan Source)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errc)
		var failed bool
		for p := range in {
			if failed {
				continue
			}

			m, err := decodeImage(p.path)
			if err != nil {
				errc <- err
				cancel()
				failed = true
				continue
			}

			select {
			case out <- Source{Index: p.index, Name: filepath.Base(p.path), Image: m}:
			case <-ctx.Done():
				failed = true
			}
		}
	}()
	return out, errc, nil
}

func mergeSources(cs ...<-chan Source) <-chan Source {
	var wg sync.WaitGroup
	out := make(chan Source)
	wg.Add(len(cs))
	for _, c := range cs {
		go func(c <-chan Source) {
			for s := range c {
				out <- s
			}
			wg.Done()
		}(c)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// reorder puts the output of the image workers back into frame order. Once
// ctx is cancelled it closes its output and discards anything else that
// arrives.
func reorder(ctx context.Context, cs ...<-chan Source) <-chan Source {
	in := mergeSources(cs...)
	out := make(chan Source)
	go func() {
		defer func() {
			for range in {
			}
		}()
		defer close(out)

		pending := make(map[int]Source)
		next := 0
		for {
			var s Source
			select {
			case v, ok := <-in:
				if !ok {
					return
				}
				s = v
			case <-ctx.Done():
				return
			}

			pending[s.Index] = s
			for {
				p, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				select {
				case out <- p:
				case <-ctx.Done():
					return
				}
				next++
			}
		}
	}()
	return out
}

// The walk stopping because something else failed is not the error to report
func waitForPipeline(errs ...<-chan error) error {
	errc := mergeErrors(errs...)
	for err := range errc {
		if err != nil && err != errWalkCancelled {
			return err
		}
	}
	return nil
}

func mergeErrors(cs ...<-chan error) <-chan error {
	var wg sync.WaitGroup
	out := make(chan error, len(cs))
	wg.Add(len(cs))
	for _, c := range cs {
		go func(c <-chan error) {
			for n := range c {
				out <- n
			}
			wg.Done()
		}(c)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// EncodeDirectory encodes every image in dir, in lexical order of file
// name, to a container at outFile. audioFile may be empty for silence.
func (e *Encoder) EncodeDirectory(dir, audioFile, outFile string) (int, error) {
	base, err := filepath.Abs(dir)
	if err != nil {
		return 0, err
	}

	var audio io.Reader
	if audioFile != "" {
		f, err := os.Open(audioFile)
		if err != nil {
			return 0, err
		}
		defer f.Close()
		audio = f
	}

	out, err := os.Create(outFile)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	ctx, cancelFunc := context.WithCancel(context.Background())
	defer cancelFunc()

	var errcList []<-chan error

	paths, errc, err := e.findImages(ctx, base)
	if err != nil {
		return 0, err
	}
	errcList = append(errcList, errc)

	var sources []<-chan Source
	for i := 0; i < runtime.NumCPU(); i++ {
		s, errc, err := e.imageWorker(ctx, cancelFunc, paths)
		if err != nil {
			return 0, err
		}
		sources = append(sources, s)
		errcList = append(errcList, errc)
	}

	// A failed image cancels ctx, so Encode may stop early or see the images
	// run out; either way the pipeline error is the one that matters
	n, err := e.Encode(ctx, reorder(ctx, sources...), audio, out)
	if err != nil {
		cancelFunc()
	}

	if perr := waitForPipeline(errcList...); perr != nil {
		return n, perr
	}
	if err != nil {
		return n, err
	}

	return n, out.Close()
}
