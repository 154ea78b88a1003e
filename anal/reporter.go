// Copyright (c) Ilia Kravets, 2015. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

package anal

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"my/mdbook/errs"
)

type Reporter struct {
	outDir   string
	analyzer *Analyzer
}

func NewReporter(a *Analyzer) *Reporter {
	return &Reporter{analyzer: a, outDir: "."}
}

func (r *Reporter) SetOutputDir(path string) (err error) {
	defer errs.PassE(&err)
	r.outDir = path
	errs.CheckE(os.MkdirAll(r.outDir, 0755))
	return
}
func (r *Reporter) SaveAll() (err error) {
	defer errs.PassE(&err)
	errs.CheckE(r.SaveBookSizeHistogram())
	errs.CheckE(r.SaveOrderCollisionsHistogram())
	return
}

func (r *Reporter) create(name string, fill func(io.Writer)) {
	file, err := os.OpenFile(filepath.Join(r.outDir, name), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	errs.CheckE(err)
	defer func() { errs.CheckE(file.Close()) }()
	fill(file)
}

func (r *Reporter) SaveBookSizeHistogram() (err error) {
	defer errs.PassE(&err)
	bsh := r.analyzer.BookSizeHist()
	r.create("book_size_hist.tsv", func(w io.Writer) {
		_, err := fmt.Fprintf(w, "size\tbooks\tsample\n")
		errs.CheckE(err)
		for _, bsv := range bsh {
			_, err = fmt.Fprintf(w, "%d\t%d\t%v\n", bsv.Levels, bsv.Books, bsv.Sample)
			errs.CheckE(err)
		}
	})
	return
}
func (r *Reporter) SaveOrderCollisionsHistogram() (err error) {
	defer errs.PassE(&err)
	for i, ohs := range r.analyzer.OrdersHashCollisionHist() {
		r.create(fmt.Sprintf("order_collision_hist_%d.tsv", i), func(w io.Writer) {
			_, err := fmt.Fprintf(w, "maxCollisions\tbuckets\n")
			errs.CheckE(err)
			for _, h := range ohs {
				_, err = fmt.Fprintf(w, "%d\t%d\n", h.Bin, h.Count)
				errs.CheckE(err)
			}
		})
	}
	return
}
