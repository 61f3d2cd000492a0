// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package ec

// gf256 implements GF(2^8) arithmetic with the Reed-Solomon reducing
// polynomial x^8+x^4+x^3+x^2+1 (0x11d), shared by the NSYS and CLAY
// black-box encoders below for their Vandermonde-matrix linear algebra.
const gf256Poly = 0x11d

var (
	gfExp [510]byte
	gfLog [256]int
)

func init() {
	x := 1
	for i := 0; i < 255; i++ {
		gfExp[i] = byte(x)
		gfLog[x] = i
		x <<= 1
		if x&0x100 != 0 {
			x ^= gf256Poly
		}
	}
	for i := 255; i < 510; i++ {
		gfExp[i] = gfExp[i-255]
	}
}

func gfMul(a, b byte) byte {
	if a == 0 || b == 0 {
		return 0
	}
	return gfExp[gfLog[a]+gfLog[b]]
}

func gfDiv(a, b byte) byte {
	if a == 0 {
		return 0
	}
	return gfExp[(gfLog[a]-gfLog[b]+255)%255]
}

// gfMatrix is a dense matrix over GF(256), row-major.
type gfMatrix struct {
	rows, cols int
	data       []byte
}

func newGFMatrix(rows, cols int) *gfMatrix {
	return &gfMatrix{rows: rows, cols: cols, data: make([]byte, rows*cols)}
}

func (m *gfMatrix) at(r, c int) byte     { return m.data[r*m.cols+c] }
func (m *gfMatrix) set(r, c int, v byte) { m.data[r*m.cols+c] = v }

// vandermonde builds a rows x cols Vandermonde-style matrix over GF(256)
// using powers of distinct non-zero field elements 1..rows, suitable as a
// generator matrix for a non-systematic linear code: row i, column j is
// (i+1)^j.
func vandermonde(rows, cols int) *gfMatrix {
	m := newGFMatrix(rows, cols)
	for r := 0; r < rows; r++ {
		x := byte(r + 1)
		val := byte(1)
		for c := 0; c < cols; c++ {
			m.set(r, c, val)
			val = gfMul(val, x)
		}
	}
	return m
}

// subMatrix extracts the rows named by idx (all columns).
func (m *gfMatrix) subMatrix(idx []int) *gfMatrix {
	out := newGFMatrix(len(idx), m.cols)
	for i, r := range idx {
		copy(out.data[i*m.cols:(i+1)*m.cols], m.data[r*m.cols:(r+1)*m.cols])
	}
	return out
}

// invert computes the inverse of a square GF(256) matrix via Gauss-Jordan
// elimination with partial pivoting. The caller must ensure m is
// invertible (true for any k rows of a Vandermonde matrix, by the MDS
// property).
func (m *gfMatrix) invert() (*gfMatrix, error) {
	n := m.rows
	aug := newGFMatrix(n, 2*n)
	for r := 0; r < n; r++ {
		copy(aug.data[r*2*n:r*2*n+n], m.data[r*m.cols:r*m.cols+n])
		aug.set(r, n+r, 1)
	}
	for col := 0; col < n; col++ {
		pivot := -1
		for r := col; r < n; r++ {
			if aug.at(r, col) != 0 {
				pivot = r
				break
			}
		}
		if pivot < 0 {
			return nil, errSingularMatrix
		}
		if pivot != col {
			for c := 0; c < 2*n; c++ {
				aug.data[col*2*n+c], aug.data[pivot*2*n+c] = aug.data[pivot*2*n+c], aug.data[col*2*n+c]
			}
		}
		inv := gfDiv(1, aug.at(col, col))
		for c := 0; c < 2*n; c++ {
			aug.set(col, c, gfMul(aug.at(col, c), inv))
		}
		for r := 0; r < n; r++ {
			if r == col {
				continue
			}
			factor := aug.at(r, col)
			if factor == 0 {
				continue
			}
			for c := 0; c < 2*n; c++ {
				aug.set(r, c, aug.at(r, c)^gfMul(factor, aug.at(col, c)))
			}
		}
	}
	out := newGFMatrix(n, n)
	for r := 0; r < n; r++ {
		copy(out.data[r*n:(r+1)*n], aug.data[r*2*n+n:r*2*n+2*n])
	}
	return out, nil
}

// mulBytes computes m * vec where vec has one byte per column of m, per
// output row (used to decode one byte position at a time across shards).
func (m *gfMatrix) mulBytes(shards [][]byte, outIdx, n int) []byte {
	out := make([]byte, n)
	for pos := 0; pos < n; pos++ {
		var acc byte
		for c := 0; c < m.cols; c++ {
			acc ^= gfMul(m.at(outIdx, c), shards[c][pos])
		}
		out[pos] = acc
	}
	return out
}
