// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package simd

import (
	"math"
	"unsafe"
)

// Elem is the set of cell types the alignment kernel instantiates over.
type Elem interface {
	~int8 | ~int16
}

// VecBits selects the simulated register width.
type VecBits int

// Supported register widths.
const (
	Bits128 VecBits = 128
	Bits256 VecBits = 256
	Bits512 VecBits = 512
)

// Lanes returns the number of T-sized lanes in a register of the given width.
func Lanes[T Elem](bits VecBits) int {
	var z T
	return int(bits) / 8 / int(unsafe.Sizeof(z))
}

// MinVal returns the smallest representable value of T.
func MinVal[T Elem]() T {
	var z T
	if unsafe.Sizeof(z) == 1 {
		v := int8(math.MinInt8)
		return T(v)
	}
	v := int16(math.MinInt16)
	return T(v)
}

// MaxVal returns the largest representable value of T.
func MaxVal[T Elem]() T {
	var z T
	if unsafe.Sizeof(z) == 1 {
		v := int8(math.MaxInt8)
		return T(v)
	}
	v := int16(math.MaxInt16)
	return T(v)
}

// AddSat returns a+b with signed saturation.
func AddSat[T Elem](a, b T) T {
	s := int32(a) + int32(b)
	if s > int32(MaxVal[T]()) {
		return MaxVal[T]()
	}
	if s < int32(MinVal[T]()) {
		return MinVal[T]()
	}
	return T(s)
}

// SubSat returns a-b with signed saturation.
func SubSat[T Elem](a, b T) T {
	s := int32(a) - int32(b)
	if s > int32(MaxVal[T]()) {
		return MaxVal[T]()
	}
	if s < int32(MinVal[T]()) {
		return MinVal[T]()
	}
	return T(s)
}

// Vec is one lane vector.  Its length is the lane count chosen at
// construction and never changes afterwards.
type Vec[T Elem] []T

// MakeVec returns a zeroed vector of n lanes.
func MakeVec[T Elem](n int) Vec[T] {
	return make(Vec[T], n)
}

// Fill broadcasts v to every lane of dst.
func (dst Vec[T]) Fill(v T) {
	for i := range dst {
		dst[i] = v
	}
}

// CopyFrom copies a into dst.
func (dst Vec[T]) CopyFrom(a Vec[T]) {
	copy(dst, a)
}

// AddSatV sets dst = a + b lane-wise with saturation.  dst may alias a or b.
func (dst Vec[T]) AddSatV(a, b Vec[T]) {
	for i := range dst {
		dst[i] = AddSat(a[i], b[i])
	}
}

// SubSatS sets dst = a - s lane-wise with saturation.  dst may alias a.
func (dst Vec[T]) SubSatS(a Vec[T], s T) {
	for i := range dst {
		dst[i] = SubSat(a[i], s)
	}
}

// MaxV sets dst = max(a, b) lane-wise.  dst may alias a or b.
func (dst Vec[T]) MaxV(a, b Vec[T]) {
	for i := range dst {
		if a[i] >= b[i] {
			dst[i] = a[i]
		} else {
			dst[i] = b[i]
		}
	}
}

// Mask is a lane bitmask; bit i corresponds to lane i.  Lane counts never
// exceed 64 so one word always suffices.
type Mask uint64

// Any reports whether any lane bit is set.
func (m Mask) Any() bool { return m != 0 }

// Test reports whether the bit for the given lane is set.
func (m Mask) Test(lane int) bool { return m&(1<<uint(lane)) != 0 }

// GtV returns the mask of lanes where a > b.
func (a Vec[T]) GtV(b Vec[T]) Mask {
	var m Mask
	for i := range a {
		if a[i] > b[i] {
			m |= 1 << uint(i)
		}
	}
	return m
}

// EqV returns the mask of lanes where a == b.
func (a Vec[T]) EqV(b Vec[T]) Mask {
	var m Mask
	for i := range a {
		if a[i] == b[i] {
			m |= 1 << uint(i)
		}
	}
	return m
}

// LtV returns the mask of lanes where a < b.
func (a Vec[T]) LtV(b Vec[T]) Mask {
	return b.GtV(a)
}

// BlendV copies a's lanes into dst where the mask is set.
func (dst Vec[T]) BlendV(a Vec[T], m Mask) {
	for i := range dst {
		if m.Test(i) {
			dst[i] = a[i]
		}
	}
}

// BlendS sets dst's lanes to s where the mask is set.
func (dst Vec[T]) BlendS(s T, m Mask) {
	for i := range dst {
		if m.Test(i) {
			dst[i] = s
		}
	}
}
