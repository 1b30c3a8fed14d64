// Copyright ©2019 The Gonum Authors. All rights reserved.
// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package zegemm offloads single-precision matrix multiplication to a
// compute device and verifies the result against a host reference.
//
// The device is an emulated GPU running on the host CPU: kernels are Go
// functions executed across a grid of independent work-groups, and the
// host drives it through a Level-Zero shaped API:
//
//   - Drivers, AcquireDevice and NewContext discover the device and create
//     an execution context owning device memory.
//   - LoadModule accepts a SPIR-V program image; Module.Kernel resolves an
//     entry point and Kernel.SetArgumentValue binds its arguments.
//   - NewSurface allocates 2-D float32 images; command lists record uploads,
//     barriers, kernel launches and downloads.
//   - A Queue executes closed command lists, synchronously or not.
//
// PlanSGEMM computes the 16x16 tile grid for C += A*B and records the
// launches, either one launch over the full grid with tiles taken from the
// work-group id, or one single-invocation launch per tile with the tile
// origin bound by the host. Offload runs the whole sequence on a Session.
//
// ReferenceSGEMM, TrustedSGEMM and Compare form the verification side: the
// device result must agree with the oracle to a relative error of
// CorrectnessThreshold in every cell.
package zegemm
