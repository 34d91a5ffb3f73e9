// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package lar runs the LArSoft lar executable.
package lar // import "github.com/go-lpc/hittune/lar"

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/sbinet/pmon"
)

// Job describes one invocation of lar.
type Job struct {
	FCL    string // FHiCL configuration
	Input  string // input art/ROOT file, or a list of files
	Output string // output art/ROOT file (optional)
	TFile  string // TFileService output file (optional)

	// Options holds extra command-line options, split shell-style.
	// When empty, all events are processed.
	Options string

	// Log is the file receiving the standard output and error of lar.
	// When empty, the output of lar is forwarded to the runner logger.
	Log string
}

// Args returns the command-line arguments of a lar job.
// Inputs that are not ROOT files are handled as lists of files.
func Args(job Job) ([]string, error) {
	if job.FCL == "" {
		return nil, fmt.Errorf("lar: missing FHiCL file")
	}
	if job.Input == "" {
		return nil, fmt.Errorf("lar: missing input file")
	}

	args := []string{"-c", job.FCL}
	switch {
	case strings.HasSuffix(job.Input, ".root"):
		args = append(args, "-s", job.Input)
	default:
		args = append(args, "--source-list", job.Input)
	}
	if job.Output != "" {
		args = append(args, "-o", job.Output)
	}
	if job.TFile != "" {
		args = append(args, "-T", job.TFile)
	}

	switch opts := strings.TrimSpace(job.Options); opts {
	case "":
		args = append(args, "-n", "-1")
	default:
		vs, err := shellquote.Split(opts)
		if err != nil {
			return nil, fmt.Errorf("lar: could not split options %q: %w", opts, err)
		}
		args = append(args, vs...)
	}

	return args, nil
}

// Runner runs lar jobs.
type Runner struct {
	Exe string // lar executable (default: lar from $PATH)
	Dir string // working directory of the jobs

	Monitor bool          // enable pmon monitoring of the jobs
	Freq    time.Duration // pmon sampling interval

	msg *log.Logger
}

// NewRunner creates a runner of lar jobs, logging to msg.
func NewRunner(msg *log.Logger) *Runner {
	if msg == nil {
		msg = log.New(os.Stdout, "lar: ", 0)
	}
	return &Runner{
		Exe:  "lar",
		Freq: 1 * time.Second,
		msg:  msg,
	}
}

// Run runs the provided job until completion or until ctx is done.
func (r *Runner) Run(ctx context.Context, job Job) error {
	args, err := Args(job)
	if err != nil {
		return err
	}

	exe := r.Exe
	if exe == "" {
		exe = "lar"
	}

	cmd := exec.CommandContext(ctx, exe, args...)
	cmd.Dir = r.Dir

	var out io.Writer = r.msg.Writer()
	if job.Log != "" {
		f, err := os.Create(job.Log)
		if err != nil {
			return fmt.Errorf("lar: could not create log file: %w", err)
		}
		defer f.Close()
		out = f
	}
	cmd.Stdout = out
	cmd.Stderr = out

	r.msg.Printf("running command: %s", shellquote.Join(append([]string{exe}, args...)...))
	err = cmd.Start()
	if err != nil {
		return fmt.Errorf("lar: could not start %q: %w", exe, err)
	}

	if r.Monitor {
		stop, err := r.monitor(cmd, job)
		if err != nil {
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
			return err
		}
		defer stop()
	}

	err = cmd.Wait()
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("lar: job %q interrupted: %w", job.FCL, ctx.Err())
		}
		return fmt.Errorf("lar: could not run job %q: %w", job.FCL, err)
	}

	return nil
}

func (r *Runner) monitor(cmd *exec.Cmd, job Job) (func(), error) {
	pid := cmd.Process.Pid
	p, err := pmon.Monitor(pid)
	if err != nil {
		return nil, fmt.Errorf("lar: could not start monitoring (pid=%d): %w", pid, err)
	}

	name := job.Log
	if name == "" {
		name = filepath.Join(r.Dir, strings.TrimSuffix(filepath.Base(job.FCL), ".fcl")+".log")
	}
	fname := strings.TrimSuffix(name, ".log") + "-pmon.log"
	f, err := os.Create(fname)
	if err != nil {
		return nil, fmt.Errorf("lar: could not create pmon log file: %w", err)
	}
	p.W = f
	p.Freq = r.Freq

	go func() {
		err := p.Run()
		if err != nil {
			r.msg.Printf("could not monitor pid=%d: %+v", pid, err)
		}
	}()

	return func() {
		err := p.Kill()
		if err != nil {
			r.msg.Printf("could not stop monitoring pid=%d: %+v", pid, err)
		}
		_ = f.Close()
	}, nil
}
