// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package simd_test

import (
	"testing"

	"github.com/grailbio/vargraph/simd"
	"github.com/stretchr/testify/assert"
)

func TestLanes(t *testing.T) {
	assert.Equal(t, 16, simd.Lanes[int8](simd.Bits128))
	assert.Equal(t, 32, simd.Lanes[int8](simd.Bits256))
	assert.Equal(t, 64, simd.Lanes[int8](simd.Bits512))
	assert.Equal(t, 8, simd.Lanes[int16](simd.Bits128))
	assert.Equal(t, 32, simd.Lanes[int16](simd.Bits512))
}

func TestSaturation(t *testing.T) {
	assert.Equal(t, int8(127), simd.AddSat(int8(120), int8(100)))
	assert.Equal(t, int8(-128), simd.SubSat(int8(-120), int8(100)))
	assert.Equal(t, int8(20), simd.AddSat(int8(120), int8(-100)))
	assert.Equal(t, int16(32767), simd.AddSat(int16(32000), int16(8000)))
	assert.Equal(t, int16(-32768), simd.SubSat(int16(-32000), int16(8000)))
}

func TestVecOps(t *testing.T) {
	a := simd.Vec[int8]{1, 2, 3, 4}
	b := simd.Vec[int8]{4, 3, 2, 1}
	dst := simd.MakeVec[int8](4)

	dst.MaxV(a, b)
	assert.Equal(t, simd.Vec[int8]{4, 3, 3, 4}, dst)

	dst.AddSatV(a, b)
	assert.Equal(t, simd.Vec[int8]{5, 5, 5, 5}, dst)

	dst.SubSatS(a, 2)
	assert.Equal(t, simd.Vec[int8]{-1, 0, 1, 2}, dst)

	dst.Fill(9)
	assert.Equal(t, simd.Vec[int8]{9, 9, 9, 9}, dst)
}

func TestMasks(t *testing.T) {
	a := simd.Vec[int8]{1, 5, 3, 7}
	b := simd.Vec[int8]{2, 5, 1, 6}

	gt := a.GtV(b)
	assert.Equal(t, simd.Mask(0b1100), gt)
	assert.True(t, gt.Any())
	assert.False(t, gt.Test(0))
	assert.True(t, gt.Test(2))

	eq := a.EqV(b)
	assert.Equal(t, simd.Mask(0b0010), eq)

	lt := a.LtV(b)
	assert.Equal(t, simd.Mask(0b0001), lt)

	dst := simd.MakeVec[int8](4)
	dst.BlendV(a, gt)
	assert.Equal(t, simd.Vec[int8]{0, 0, 3, 7}, dst)
	dst.BlendS(-1, eq)
	assert.Equal(t, simd.Vec[int8]{0, -1, 3, 7}, dst)

	var none simd.Mask
	assert.False(t, none.Any())
}

// The kernel relies on saturating arithmetic keeping biased cells pinned at
// the representable floor instead of wrapping.
func TestBiasFloor(t *testing.T) {
	s := simd.MakeVec[int8](8)
	s.Fill(simd.MinVal[int8]())
	s.SubSatS(s, 10)
	for _, v := range s {
		assert.Equal(t, int8(-128), v)
	}
}
