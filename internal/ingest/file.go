package ingest

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"

	"github.com/tphakala/train-spotter/internal/errors"
	"github.com/tphakala/train-spotter/internal/logger"
)

// StdinPath selects standard input.
const StdinPath = "-"

// maxLineBytes bounds a single JSON record. Longer lines are skipped.
const maxLineBytes = 4 << 20

// FileSource reads one JSON frame per line.
type FileSource struct {
	path    string
	reader  io.Reader
	opts    options
	maxLine int

	lines   int
	skipped int
}

// NewFileSource reads from path, or from stdin when path is "-".
func NewFileSource(path string, opts ...Option) *FileSource {
	return &FileSource{path: path, opts: newOptions(opts), maxLine: maxLineBytes}
}

// NewReaderSource reads JSON lines from r.
func NewReaderSource(name string, r io.Reader, opts ...Option) *FileSource {
	return &FileSource{path: name, reader: r, opts: newOptions(opts), maxLine: maxLineBytes}
}

// Name returns "file".
func (s *FileSource) Name() string { return "file" }

// Run reads until end of input or ctx is cancelled. Blank lines are
// ignored; malformed and oversized lines are logged and skipped. Only read
// errors end the run early.
func (s *FileSource) Run(ctx context.Context, handle FrameHandler) error {
	r := s.reader
	if r == nil {
		if s.path == StdinPath {
			r = os.Stdin
		} else {
			f, err := os.Open(s.path)
			if err != nil {
				return errors.FileError(err, s.path)
			}
			defer f.Close() //nolint:errcheck // read only
			r = f
		}
	}

	br := bufio.NewReaderSize(r, 64*1024)
	var buf []byte

	for {
		if ctx.Err() != nil {
			return nil
		}

		line, oversized, err := s.readLine(br, buf[:0])
		buf = line
		if err != nil && !errors.Is(err, io.EOF) {
			return errors.New(err).
				Component("ingest").
				Category(errors.CategoryFileIO).
				Context("line", s.lines+1).
				Build()
		}
		if errors.Is(err, io.EOF) && len(line) == 0 && !oversized {
			break
		}
		s.lines++

		switch trimmed := bytes.TrimSpace(line); {
		case oversized:
			s.skipOversized()
		case len(trimmed) == 0:
		default:
			if frame, ok := s.opts.decode(s.Name(), trimmed); ok {
				handle(&frame)
			} else {
				s.skipped++
			}
		}

		if errors.Is(err, io.EOF) {
			break
		}
	}

	s.opts.log.Info("detection input exhausted",
		logger.String("path", s.path),
		logger.Int("lines", s.lines),
		logger.Int("skipped", s.skipped))
	return nil
}

// readLine appends the next line to buf. When the line exceeds maxLine
// the remainder is discarded and oversized is set. err is io.EOF on the
// last line.
func (s *FileSource) readLine(br *bufio.Reader, buf []byte) (line []byte, oversized bool, err error) {
	for {
		chunk, isPrefix, readErr := br.ReadLine()
		if readErr != nil {
			return buf, oversized, readErr
		}
		if !oversized {
			if len(buf)+len(chunk) > s.maxLine {
				oversized = true
				buf = buf[:0]
			} else {
				buf = append(buf, chunk...)
			}
		}
		if !isPrefix {
			return buf, oversized, nil
		}
	}
}

func (s *FileSource) skipOversized() {
	s.skipped++
	if s.opts.metrics != nil {
		s.opts.metrics.RecordDecodeError(s.Name())
	}
	s.opts.log.Warn("skipping oversized detection record",
		logger.String("path", s.path),
		logger.Int("line", s.lines),
		logger.Int("max_bytes", s.maxLine))
}

// Lines returns the number of lines read.
func (s *FileSource) Lines() int { return s.lines }

// Skipped returns the number of malformed lines.
func (s *FileSource) Skipped() int { return s.skipped }
