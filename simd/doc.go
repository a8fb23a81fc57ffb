// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package simd provides the lane-vector primitives used by the inter-sequence
// alignment kernel.  A Vec holds one signed 8- or 16-bit cell per lane, and
// one lane serves one read: the kernel advances every read through the same
// dynamic-programming cell at once.
//
// The operation set is deliberately narrow: broadcast from scalar, saturating
// add/sub, element-wise max, compares producing a lane bitmask, blend by
// mask, and an any-lane predicate.  Vector width (128, 256 or 512 bits) is
// fixed when the consumer sizes its vectors with Lanes; this portable backend
// lowers every op to a scalar loop the compiler can unroll.
package simd
