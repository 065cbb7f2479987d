// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package bitword_test

import (
	"math/rand"
	"testing"

	"github.com/grailbio/laid/bitword"
	"github.com/grailbio/testutil/expect"
)

func TestSetTestClear(t *testing.T) {
	words := make([]uint64, 3)
	bitword.Set(words, 0)
	expect.EQ(t, words[0], uint64(1)<<63)
	expect.True(t, bitword.Test(words, 0))
	expect.False(t, bitword.Test(words, 1))

	bitword.Set(words, 63)
	bitword.Set(words, 64)
	expect.EQ(t, words[0], uint64(1)<<63|1)
	expect.EQ(t, words[1], uint64(1)<<63)

	bitword.Clear(words, 0)
	expect.False(t, bitword.Test(words, 0))
	expect.True(t, bitword.Test(words, 63))
	expect.EQ(t, bitword.Count(words), 2)
}

func TestWordsFor(t *testing.T) {
	expect.EQ(t, bitword.WordsFor(0), 0)
	expect.EQ(t, bitword.WordsFor(1), 1)
	expect.EQ(t, bitword.WordsFor(64), 1)
	expect.EQ(t, bitword.WordsFor(65), 2)
	expect.EQ(t, bitword.WordsFor(128), 2)
}

func TestLeadingMask(t *testing.T) {
	expect.EQ(t, bitword.LeadingMask(0), uint64(0))
	expect.EQ(t, bitword.LeadingMask(1), uint64(1)<<63)
	expect.EQ(t, bitword.LeadingMask(8), uint64(0xff)<<56)
	expect.EQ(t, bitword.LeadingMask(64), ^uint64(0))
}

func TestExtractDeposit(t *testing.T) {
	words := make([]uint64, 2)
	bitword.Deposit(words, 5, 3, 0b101)
	expect.EQ(t, bitword.Extract(words, 5, 3), uint64(0b101))
	expect.True(t, bitword.Test(words, 5))
	expect.False(t, bitword.Test(words, 6))
	expect.True(t, bitword.Test(words, 7))

	// A field flush against the end of a word.
	bitword.Deposit(words, 60, 4, 0b1111)
	expect.EQ(t, bitword.Extract(words, 60, 4), uint64(0b1111))
	expect.EQ(t, words[1], uint64(0))

	// Overwrite clears stale bits.
	bitword.Deposit(words, 60, 4, 0b0110)
	expect.EQ(t, bitword.Extract(words, 60, 4), uint64(0b0110))
}

func TestReverse(t *testing.T) {
	expect.EQ(t, bitword.Reverse(0b1, 1), uint64(0b1))
	expect.EQ(t, bitword.Reverse(0b01, 2), uint64(0b10))
	expect.EQ(t, bitword.Reverse(0b110, 3), uint64(0b011))
	expect.EQ(t, bitword.Reverse(0b1011, 4), uint64(0b1101))
}

func naiveTranspose(block [64]uint64) [64]uint64 {
	var out [64]uint64
	for r := 0; r < 64; r++ {
		for c := 0; c < 64; c++ {
			if block[r]&(1<<uint(63-c)) != 0 {
				out[c] |= 1 << uint(63-r)
			}
		}
	}
	return out
}

func TestTranspose64(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for iter := 0; iter < 20; iter++ {
		var block [64]uint64
		for i := range block {
			block[i] = rng.Uint64()
		}
		want := naiveTranspose(block)
		got := block
		bitword.Transpose64(&got)
		expect.EQ(t, got, want)

		// Transposing twice is the identity.
		bitword.Transpose64(&got)
		expect.EQ(t, got, block)
	}
}

func BenchmarkCount(b *testing.B) {
	words := make([]uint64, 1024)
	rng := rand.New(rand.NewSource(1))
	for i := range words {
		words[i] = rng.Uint64()
	}
	b.ResetTimer()
	tot := 0
	for i := 0; i < b.N; i++ {
		tot += bitword.Count(words)
	}
	_ = tot
}
