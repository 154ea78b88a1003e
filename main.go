// Copyright (c) Ilia Kravets, 2015. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

package main

import (
	"fmt"
	"os"
	"runtime/pprof"

	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"my/mdbook/cmd"
	"my/mdbook/errs"
)

// newLogger logs to stderr, or to a size-rotated file when name is set.
func newLogger(name string, verbose bool) *zap.Logger {
	level := zap.InfoLevel
	if verbose {
		level = zap.DebugLevel
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var ws zapcore.WriteSyncer = zapcore.Lock(os.Stderr)
	enc := zapcore.NewConsoleEncoder(encCfg)
	if name != "" {
		ws = zapcore.AddSync(&lumberjack.Logger{
			Filename:   name,
			MaxSize:    100,
			MaxBackups: 5,
			Compress:   true,
		})
		enc = zapcore.NewJSONEncoder(encCfg)
	}
	return zap.New(zapcore.NewCore(enc, ws, level), zap.AddCaller())
}

func main() {
	var err error

	var opts struct {
		LogFileName string `short:"l" long:"log" value-name:"FILE" description:"log file, stderr if not set"`
		Verbose     bool   `short:"v" long:"verbose" description:"debug logging"`
		ProfileCpu  string `long:"profile-cpu" value-name:"FILE"`
		ProfileMem  string `long:"profile-mem" value-name:"FILE"`
	}

	parser := flags.NewParser(&opts, flags.PassDoubleDash|flags.HelpFlag)
	cmd.Registry.ConfigParser(parser)
	_, err = parser.Parse()
	if e, ok := err.(*flags.Error); ok && e.Type != flags.ErrUnknown {
		fmt.Printf("%s\n", e.Message)
		if e.Type == flags.ErrHelp {
			os.Exit(0)
		} else {
			os.Exit(1)
		}
	}
	errs.CheckE(err)

	logger := newLogger(opts.LogFileName, opts.Verbose)
	defer logger.Sync()
	cmd.SetLogger(logger)

	if opts.ProfileCpu != "" {
		profFile, err := os.Create(opts.ProfileCpu)
		errs.CheckE(err)
		errs.CheckE(pprof.StartCPUProfile(profFile))
		defer pprof.StopCPUProfile()
	}

	if err = cmd.Registry.ParsingFinished(); err != nil {
		logger.Error("command failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}

	if opts.ProfileMem != "" {
		profFile, err := os.Create(opts.ProfileMem)
		errs.CheckE(err)
		errs.CheckE(pprof.WriteHeapProfile(profFile))
		profFile.Close()
	}
}
