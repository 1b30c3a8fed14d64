// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command sgemm offloads C := A*B + C to the compute device and checks the
// result against the host oracle.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/LynnColeArt/zegemm"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/exceptions"
	"github.com/janpfeifer/must"
	"github.com/muesli/termenv"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

var (
	flagM        = flag.Int("m", 16, "Rows of A and C.")
	flagN        = flag.Int("n", 16, "Columns of B and C.")
	flagK        = flag.Int("k", 16, "Columns of A and rows of B.")
	flagKernel   = flag.String("kernel", "", "SPIR-V program file. Defaults to the built-in kernels.")
	flagFlags    = flag.String("build_flags", zegemm.DefaultBuildFlags, "Build flags used when loading the program.")
	flagStrategy = flag.String("strategy", zegemm.TilesFromHostLoop.String(), "Tile coordinate source: group-id or host-loop.")
	flagCorrupt  = flag.Float64("corrupt", 0, "Fraction of device result cells to perturb before checking, to exercise failure reporting.")
	flagRuns     = flag.Int("runs", 1, "Number of offloads to run.")
	flagSeed     = flag.Int64("seed", 1, "Seed for the random operands.")
	flagTimeout  = flag.Duration("timeout", 0, "Maximum wait for device completion; 0 waits forever.")
	flagAsync    = flag.Bool("async", false, "Use an asynchronous queue.")
	flagLogDir   = flag.String("log_dir", "", "Directory to write per-run results to as JSON.")
	flagVersion  = flag.Bool("version", false, "Print the version and exit.")
)

var (
	passStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	failStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	infoStyle = lipgloss.NewStyle().Faint(true).PaddingLeft(2)
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if *flagVersion {
		fmt.Println("sgemm", zegemm.BuildDescription())
		return
	}

	var err error
	if exception := exceptions.TryCatch[error](func() { err = run() }); exception != nil {
		err = exception
	}
	if err != nil {
		klog.Errorf("sgemm failed: %+v", err)
		fmt.Fprintln(os.Stderr, failStyle.Render(err.Error()))
		os.Exit(zegemm.ExitCode(err))
	}
}

func run() error {
	strategy := must.M1(zegemm.ParseTileStrategy(*flagStrategy))
	var program []byte
	if *flagKernel != "" {
		program = must.M1(os.ReadFile(*flagKernel))
	}
	if *flagRuns < 1 {
		return fmt.Errorf("-runs must be at least 1, got %d", *flagRuns)
	}
	rng := rand.New(rand.NewSource(*flagSeed))
	m, n, k := *flagM, *flagN, *flagK

	a := must.M1(zegemm.RandomMatrix(m, k, rng, 0, 1))
	b := must.M1(zegemm.RandomMatrix(k, n, rng, 0, 1))
	c := must.M1(zegemm.RandomMatrix(m, n, rng, 0, 1))
	defer a.Release()
	defer b.Release()
	defer c.Release()

	// Host sanity check: the naive loop must agree with the trusted library
	// before the device result is judged against it.
	naive, trusted := c.Clone(), c.Clone()
	must.M(zegemm.MatrixSGEMM(zegemm.ReferenceSGEMM, 1, a, b, 1, naive))
	fmt.Printf("sgemm%dx%dx%d multiplication is done\n", m, n, k)
	must.M(zegemm.MatrixSGEMM(zegemm.TrustedSGEMM, 1, a, b, 1, trusted))
	fmt.Println("trusted sgemm multiplication is done")
	if cmp := must.M1(zegemm.CompareMatrices(naive, trusted)); !cmp.Pass {
		return cmp.Err()
	}
	naive.Release()

	cfg := zegemm.DefaultDeviceConfig()
	cfg.SubmitTimeout = *flagTimeout
	if *flagAsync {
		cfg.QueueMode = zegemm.QueueModeAsynchronous
	}
	session, err := zegemm.Open(zegemm.SessionOptions{Config: cfg})
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			klog.Warningf("failed to close session: %v", err)
		}
	}()
	fmt.Println(infoStyle.Render(session.Device.String()))

	var bar *progressbar.ProgressBar
	if *flagRuns > 1 {
		term := termenv.NewOutput(os.Stdout)
		term.HideCursor()
		defer term.ShowCursor()
		bar = progressbar.NewOptions(*flagRuns,
			progressbar.OptionSetDescription("offload"),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("runs"),
			progressbar.OptionSetTheme(progressbar.ThemeASCII),
			progressbar.OptionClearOnFinish(),
		)
	}

	runLog := must.M1(zegemm.NewRunLog(*flagLogDir, fmt.Sprintf("sgemm_%dx%dx%d", m, n, k)))
	opts := zegemm.OffloadOptions{Program: program, BuildFlags: *flagFlags, Strategy: strategy}
	var elapsed time.Duration
	for i := 0; i < *flagRuns; i++ {
		name := fmt.Sprintf("run %d", i+1)
		device := c.Clone()
		start := time.Now()
		err := zegemm.Offload(context.Background(), session, a, b, device, opts)
		took := time.Since(start)
		elapsed += took

		var cmp zegemm.Comparison
		if err == nil {
			if *flagCorrupt > 0 {
				changed := device.Corrupt(rng, *flagCorrupt)
				klog.V(1).Infof("perturbed %d device result cells", changed)
			}
			cmp = must.M1(zegemm.CompareMatrices(device, trusted))
		}
		device.Release()
		if lerr := runLog.Record(zegemm.NewRunResult(name, m, n, k, strategy, took, cmp, err)); lerr != nil {
			klog.Warningf("failed to log %s: %v", name, lerr)
		}
		if err == nil && !cmp.Pass {
			err = cmp.Err()
		}
		if err != nil {
			if bar != nil {
				_ = bar.Finish()
			}
			return err
		}
		if bar != nil {
			_ = bar.Add(1)
		} else {
			fmt.Println(passStyle.Render(cmp.String()))
		}
	}
	if bar != nil {
		fmt.Println(passStyle.Render("PASS") + fmt.Sprintf(" %d runs", *flagRuns))
		zegemm.WriteSummary(os.Stdout, runLog.Results())
	}
	if f := runLog.File(); f != "" {
		fmt.Println(infoStyle.Render("results written to " + f))
	}
	allocated, peak := session.Context.MemoryStats()
	fmt.Println(infoStyle.Render(fmt.Sprintf("%s tiles, %s per run, device memory %s in use, peak %s",
		strategy, elapsed/time.Duration(*flagRuns), humanize.IBytes(uint64(allocated)), humanize.IBytes(uint64(peak)))))
	return nil
}
