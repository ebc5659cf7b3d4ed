package codec

import (
	"fmt"
	"testing"
)

func BenchmarkEncode(b *testing.B) {
	sizes := []int{16, 256, 4096, 65536}
	for _, size := range sizes {
		positions := make([]int, size)
		for i := range positions {
			positions[i] = (i * 37) % Max
		}
		b.Run(fmt.Sprintf("positions_%d", size), func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(size * Width))
			for i := 0; i < b.N; i++ {
				text, err := Encode(positions)
				if err != nil {
					b.Fatal(err)
				}
				_ = text
			}
		})
	}
}

func BenchmarkDecode(b *testing.B) {
	sizes := []int{16, 256, 4096, 65536}
	for _, size := range sizes {
		positions := make([]int, size)
		for i := range positions {
			positions[i] = (i * 37) % Max
		}
		text, err := Encode(positions)
		if err != nil {
			b.Fatal(err)
		}
		b.Run(fmt.Sprintf("positions_%d", size), func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				decoded, err := Decode(text)
				if err != nil {
					b.Fatal(err)
				}
				_ = decoded
			}
		})
	}
}
