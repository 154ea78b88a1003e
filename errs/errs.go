// Copyright (c) Ilia Kravets, 2015. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

// Package errs turns failed checks into panics that are recovered at an API
// boundary and returned as plain errors.
package errs

import (
	"fmt"
	"runtime"
	"strconv"
)

type CheckerError interface {
	error
	OrigError() error
	Args() []interface{}
	Location() (file string, line int)
	Checker() Checker
}

type checkerError struct {
	err     error
	args    []interface{}
	file    string
	line    int
	checker Checker
}

func newCheckerError(callerDepth int, checker Checker, err error, args []interface{}) *checkerError {
	e := &checkerError{
		err:     err,
		args:    args,
		checker: checker,
	}
	_, e.file, e.line, _ = runtime.Caller(callerDepth + 1)
	return e
}
func (e *checkerError) Error() string {
	fileStr, lineStr, errStr := "<?>", "<?>", "<nil>"
	if e.file != "" {
		fileStr = e.file
	}
	if e.line != 0 {
		lineStr = strconv.Itoa(e.line)
	}
	if e.err != nil {
		errStr = e.err.Error()
	}
	return fmt.Sprintf("check failed at %s:%s (err:%s, args=%v)", fileStr, lineStr, errStr, e.args)
}
func (e *checkerError) Unwrap() error {
	return e.err
}
func (e *checkerError) OrigError() error {
	return e.err
}
func (e *checkerError) Args() []interface{} {
	return e.args
}
func (e *checkerError) Location() (string, int) {
	return e.file, e.line
}
func (e *checkerError) Checker() Checker {
	return e.checker
}

type Checker interface {
	CheckE(err error, v ...interface{})
	Check(cond bool, v ...interface{})
	PassE(errptr *error)
	Catch(func(CheckerError))
}

type checkerLight struct {
	baseCallerDepth int
}

func NewCheckerLight(baseCallerDepth int) Checker {
	return &checkerLight{
		baseCallerDepth: baseCallerDepth,
	}
}

func (c *checkerLight) CheckE(err error, args ...interface{}) {
	if err != nil {
		panic(newCheckerError(c.baseCallerDepth+1, c, err, args))
	}
}
func (c *checkerLight) Check(cond bool, args ...interface{}) {
	if !cond {
		panic(newCheckerError(c.baseCallerDepth+1, c, nil, args))
	}
}

// PassE must be deferred directly. Panics not raised by a checker are
// re-raised untouched.
func (c *checkerLight) PassE(errptr *error) {
	r := recover()
	if r == nil {
		return
	}
	ce, ok := r.(*checkerError)
	if !ok {
		panic(r)
	}
	if errptr == nil {
		return
	}
	if ce.err != nil {
		*errptr = ce.err
	} else {
		*errptr = ce
	}
}
func (c *checkerLight) Catch(f func(CheckerError)) {
	r := recover()
	if r == nil {
		return
	}
	ce, ok := r.(*checkerError)
	if !ok {
		panic(r)
	}
	f(ce)
}

var defaultChecker = NewCheckerLight(1)

func CheckE(err error, args ...interface{}) {
	defaultChecker.CheckE(err, args...)
}
func Check(cond bool, args ...interface{}) {
	defaultChecker.Check(cond, args...)
}

// PassE cannot forward to defaultChecker: recover only works in the deferred
// function itself.
func PassE(errptr *error) {
	r := recover()
	if r == nil {
		return
	}
	ce, ok := r.(*checkerError)
	if !ok {
		panic(r)
	}
	if errptr == nil {
		return
	}
	if ce.err != nil {
		*errptr = ce.err
	} else {
		*errptr = ce
	}
}
