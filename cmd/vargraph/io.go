package main

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/bio/encoding/fasta"
	"github.com/grailbio/vargraph/graph"
	"github.com/klauspost/compress/gzip"
)

// openInput opens a possibly gzip-compressed local file for reading.
func openInput(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.E(err, "opening "+path)
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close() // nolint: errcheck
		return nil, errors.E(err, "opening "+path)
	}
	return &gzReadCloser{gz: gz, f: f}, nil
}

type gzReadCloser struct {
	gz *gzip.Reader
	f  *os.File
}

func (g *gzReadCloser) Read(p []byte) (int, error) { return g.gz.Read(p) }

func (g *gzReadCloser) Close() error {
	if err := g.gz.Close(); err != nil {
		g.f.Close() // nolint: errcheck
		return err
	}
	return g.f.Close()
}

// output is a buffered write target: a base/file destination, or stdout when
// the path is empty.
type output struct {
	bw    *bufio.Writer
	close func() error
}

func (o *output) Writer() io.Writer { return o.bw }

func (o *output) Close() error {
	if err := o.bw.Flush(); err != nil {
		return err
	}
	return o.close()
}

func createOutput(path string) (*output, error) {
	if path == "" {
		return &output{bw: bufio.NewWriter(os.Stdout), close: func() error { return nil }}, nil
	}
	ctx := vcontext.Background()
	f, err := file.Create(ctx, path)
	if err != nil {
		return nil, errors.E(err, "creating "+path)
	}
	return &output{
		bw:    bufio.NewWriter(f.Writer(ctx)),
		close: func() error { return f.Close(ctx) },
	}, nil
}

// openFasta opens a reference, using the .fai index when one sits next to
// the file and loading the sequences into memory otherwise.
func openFasta(path string) (fasta.Fasta, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.E(err, "opening "+path)
	}
	idx, err := os.Open(path + ".fai")
	if err == nil {
		defer idx.Close() // nolint: errcheck
		fa, err := fasta.NewIndexed(f, idx)
		if err != nil {
			f.Close() // nolint: errcheck
			return nil, nil, errors.E(err, "indexing "+path)
		}
		return fa, f.Close, nil
	}
	defer f.Close() // nolint: errcheck
	fa, err := fasta.New(f)
	if err != nil {
		return nil, nil, errors.E(err, "reading "+path)
	}
	return fa, func() error { return nil }, nil
}

// openManager loads a graph-definition file.
func openManager(path string) (*graph.Manager, error) {
	in, err := openInput(path)
	if err != nil {
		return nil, err
	}
	defer in.Close() // nolint: errcheck
	m := graph.NewManager()
	if err := m.Open(bufio.NewReader(in)); err != nil {
		return nil, err
	}
	return m, nil
}
