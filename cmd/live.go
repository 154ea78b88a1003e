// Copyright (c) Ilia Kravets, 2016. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

package cmd

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"my/mdbook/errs"
	"my/mdbook/rec"
)

type cmdLive struct {
	configOpts
	MetricsAddr   string `long:"metrics-addr" default:":9100" value-name:"HOST:PORT" description:"serve prometheus metrics here, empty to disable"`
	TobFileName   string `long:"tob" value-name:"FILE" description:"write top of book changes"`
	LogLastSales  bool   `long:"last-sales" description:"log consolidated last sale changes"`
	shouldExecute bool
}

func (c *cmdLive) Execute(args []string) error {
	c.shouldExecute = true
	return nil
}

func (c *cmdLive) ConfigParser(parser *flags.Parser) {
	parser.AddCommand("live", "build books from live multicast", "", c)
}

func init() {
	var c cmdLive
	Registry.Register(&c)
}

func (c *cmdLive) ParsingFinished() (err error) {
	if !c.shouldExecute {
		return
	}
	defer errs.PassE(&err)
	s, err := c.load()
	errs.CheckE(err)
	dm, err := newManager(s)
	errs.CheckE(err)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	metrics, err := rec.NewMetrics(reg)
	errs.CheckE(err)
	dm.Register(metrics)

	ls := rec.NewLastSales()
	if c.LogLastSales {
		ls.OnChange(func(cs rec.Consolidated) {
			logger.Info("last sale",
				zap.String("symbol", cs.Symbol.Name),
				zap.Stringer("venue", cs.Venue),
				zap.Stringer("price", cs.Price),
				zap.Uint32("size", cs.Size),
				zap.Stringer("time", cs.Time))
		})
	}
	dm.Register(ls)

	out, err := createOutput(c.TobFileName)
	errs.CheckE(err)
	if out != nil {
		w := bufio.NewWriter(out)
		defer func() {
			errs.CheckE(w.Flush())
			errs.CheckE(out.Close())
		}()
		dm.Register(rec.NewTobLogger(w))
	}

	ctx, cancel := interruptible()
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	ctx, stop := context.WithCancel(ctx)
	defer stop()
	if c.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              c.MetricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			err := srv.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
		g.Go(func() error {
			<-ctx.Done()
			sctx, scancel := context.WithTimeout(context.Background(), time.Second)
			defer scancel()
			return srv.Shutdown(sctx)
		})
		logger.Info("serving metrics", zap.String("addr", c.MetricsAddr))
	}
	g.Go(func() error {
		defer stop()
		return dm.ReadData(ctx)
	})
	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	errs.CheckE(err)
	return
}
