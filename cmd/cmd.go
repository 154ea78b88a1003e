// Copyright (c) Ilia Kravets, 2015. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

// Package cmd holds the subcommands. Each one registers itself with
// Registry from init and runs from ParsingFinished when it was selected.
package cmd

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"

	"my/mdbook/config"
	"my/mdbook/datamgr"
	"my/mdbook/decmux"
	"my/mdbook/feed"
)

type Extender interface {
	ConfigParser(*flags.Parser)
	ParsingFinished() error
}

type ExtenderRegistry interface {
	Extender
	Register(Extender)
	Extenders() []Extender
}

type extenderRegistry struct {
	extenders []Extender
}

func (r *extenderRegistry) Register(e Extender) {
	r.extenders = append(r.extenders, e)
}

func (r *extenderRegistry) Extenders() []Extender {
	return r.extenders
}

func (r *extenderRegistry) ConfigParser(parser *flags.Parser) {
	for _, e := range r.extenders {
		e.ConfigParser(parser)
	}
}

func (r *extenderRegistry) ParsingFinished() (err error) {
	for _, e := range r.extenders {
		err = e.ParsingFinished()
		if err != nil {
			break
		}
	}
	return
}

var Registry = extenderRegistry{}

var logger = zap.NewNop()

// SetLogger is called by main once the logging flags are known.
func SetLogger(l *zap.Logger) {
	logger = l
}

// interruptible is canceled on SIGINT or SIGTERM.
func interruptible() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

type configOpts struct {
	ConfigFileName string `long:"config" short:"c" required:"y" value-name:"FILE" description:"yaml, toml or json config file"`
}

func (o *configOpts) load() (*config.Snapshot, error) {
	st, err := config.LoadFile(o.ConfigFileName)
	if err != nil {
		return nil, err
	}
	return st.Snapshot(), nil
}

var errNoInput = errors.New("need --input or --date")

type inputOpts struct {
	InputFileNames []string `long:"input" short:"i" value-name:"PCAP_FILE" description:"capture to replay, may be repeated"`
	Date           string   `long:"date" short:"d" value-name:"YYYYMMDD" description:"replay the captures of the day found on replay.search_path"`
}

// files resolves the captures and their latencies: the explicit inputs, or
// those of the date, venue by venue.
func (o *inputOpts) files(s *config.Snapshot) ([]string, decmux.Latencies, error) {
	lat, err := decmux.LatenciesFromConfig(s)
	if err != nil {
		return nil, lat, err
	}
	if len(o.InputFileNames) > 0 {
		return o.InputFileNames, lat, nil
	}
	if o.Date == "" {
		return nil, lat, errNoInput
	}
	date, err := time.Parse("20060102", o.Date)
	if err != nil {
		return nil, lat, err
	}
	byVenue, skipped, err := decmux.FilesFromConfig(s, date)
	if err != nil {
		return nil, lat, err
	}
	for _, err := range skipped {
		logger.Warn("replay files skipped", zap.Error(err))
	}
	var files []string
	for _, v := range feed.Venues() {
		files = append(files, byVenue[v]...)
	}
	if len(files) == 0 {
		return nil, lat, errNoInput
	}
	return files, lat, nil
}

func newManager(s *config.Snapshot) (*datamgr.Manager, error) {
	dm, err := datamgr.New(s, datamgr.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	for _, err := range dm.Errors() {
		logger.Warn("feed skipped", zap.Error(err))
	}
	return dm, nil
}

// createOutput opens name for writing; "" yields nil.
func createOutput(name string) (io.WriteCloser, error) {
	if name == "" {
		return nil, nil
	}
	return os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
}
