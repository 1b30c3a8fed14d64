// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command hello launches the hello_world kernel using the device's
// suggested group size as the group count.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/LynnColeArt/zegemm"
	"github.com/gomlx/exceptions"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"
)

var (
	flagKernel      = flag.String("kernel", "", "SPIR-V program file. Defaults to the built-in kernels.")
	flagThreadWidth = flag.Int("threadwidth", 8, "Row width used to number the invocations.")
	flagGlobal      = flag.Int("global", 0, "Global size along x passed to the group size suggestion.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	err := exceptions.TryCatch[error](hello)
	if err != nil {
		klog.Errorf("hello failed: %+v", err)
		fmt.Fprintln(os.Stderr, "FAIL:", err)
		os.Exit(zegemm.ExitCode(err))
	}
	fmt.Fprintln(os.Stderr, "PASSED")
}

func hello() {
	program := zegemm.BuiltinProgram()
	if *flagKernel != "" {
		program = must.M1(os.ReadFile(*flagKernel))
	}

	session := must.M1(zegemm.Open(zegemm.SessionOptions{}))
	defer func() { must.M(session.Close()) }()

	module := must.M1(session.Context.LoadModule(program, zegemm.DefaultBuildFlags))
	defer func() { must.M(module.Destroy()) }()
	kernel := must.M1(module.Kernel(zegemm.KernelHelloWorld))
	defer func() { must.M(kernel.Destroy()) }()

	suggested := must.M1(kernel.SuggestGroupSize(*flagGlobal, 0, 0))
	fmt.Printf("suggested_group_size_x=%d, suggested_group_size_y=%d, suggested_group_size_z=%d\n",
		suggested.X, suggested.Y, suggested.Z)
	must.M(kernel.SetArgumentValue(0, zegemm.ParamInt32.Size(), *flagThreadWidth))

	cl := session.CommandList
	must.M(cl.AppendLaunchKernel(kernel, suggested))
	must.M(cl.Close())
	must.M(session.Queue.Execute(context.Background(), cl))
	must.M(cl.Reset())
}
