package moderation

import (
	"fmt"
	"strings"
	"testing"
)

func BenchmarkNewModerator(b *testing.B) {
	words := make([]string, 100_000)
	for i := range words {
		words[i] = fmt.Sprintf("blacklisted%d", i)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := NewModerator(words, '*', nil); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkModerator_Censor(b *testing.B) {
	data, err := NewEmbeddedLoader().LoadAll(DefaultDictionary)
	if err != nil {
		b.Fatal(err)
	}
	mod, err := NewModerator(data.Words, '*', nil)
	if err != nil {
		b.Fatal(err)
	}
	message := strings.Repeat("hello there, what a sh1t day for a putain de badger ", 8)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mod.Censor(message)
	}
}
