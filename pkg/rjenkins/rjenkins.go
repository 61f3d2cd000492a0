// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

// Package rjenkins implements Bob Jenkins' "lookup2" 12-byte-block string
// hash in the exact form Ceph exposes as ceph_str_hash_rjenkins. Placement
// group selection (spec.md §4.3, invariant 4) depends on this function
// being bit-exact: changing it breaks placement compatibility with data
// written under a previous version.
package rjenkins

// mix is Jenkins' internal state-mixing step, applied verbatim.
func mix(a, b, c uint32) (uint32, uint32, uint32) {
	a -= b
	a -= c
	a ^= c >> 13
	b -= c
	b -= a
	b ^= a << 8
	c -= a
	c -= b
	c ^= b >> 13
	a -= b
	a -= c
	a ^= c >> 12
	b -= c
	b -= a
	b ^= a << 16
	c -= a
	c -= b
	c ^= b >> 13
	a -= b
	a -= c
	a ^= c >> 13
	b -= c
	b -= a
	b ^= a << 8
	c -= a
	c -= b
	c ^= b >> 13
	return a, b, c
}

// Hash computes ceph_str_hash_rjenkins(str) and is the "rjenkins" referred
// to throughout spec.md (pg_select, scenario D).
func Hash(str string) uint32 {
	k := []byte(str)
	length := uint32(len(k))

	a := uint32(0x9e3779b9)
	b := a
	c := uint32(0)

	for len(k) >= 12 {
		a += uint32(k[0]) + uint32(k[1])<<8 + uint32(k[2])<<16 + uint32(k[3])<<24
		b += uint32(k[4]) + uint32(k[5])<<8 + uint32(k[6])<<16 + uint32(k[7])<<24
		c += uint32(k[8]) + uint32(k[9])<<8 + uint32(k[10])<<16 + uint32(k[11])<<24
		a, b, c = mix(a, b, c)
		k = k[12:]
	}

	c += length
	switch len(k) {
	case 11:
		c += uint32(k[10]) << 24
		fallthrough
	case 10:
		c += uint32(k[9]) << 16
		fallthrough
	case 9:
		c += uint32(k[8]) << 8
		fallthrough
	case 8:
		b += uint32(k[7]) << 24
		fallthrough
	case 7:
		b += uint32(k[6]) << 16
		fallthrough
	case 6:
		b += uint32(k[5]) << 8
		fallthrough
	case 5:
		b += uint32(k[4])
		fallthrough
	case 4:
		a += uint32(k[3]) << 24
		fallthrough
	case 3:
		a += uint32(k[2]) << 16
		fallthrough
	case 2:
		a += uint32(k[1]) << 8
		fallthrough
	case 1:
		a += uint32(k[0])
	}
	_, _, c = mix(a, b, c)

	return c
}
