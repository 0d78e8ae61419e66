package moderation

import (
	"fmt"
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func BenchmarkModerator_Censor(b *testing.B) {
	req := require.New(b)
	log := logs.GetLoggerFromLevel(slog.LevelError)

	words := make([]string, 0, 100_000)
	for i := 0; i < 100_000; i++ {
		words = append(words, fmt.Sprintf("word%dx", i))
	}
	mod, err := NewModerator(words, replacementChar, log)
	req.NoError(err)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mod.Censor("The quick brown fox jumps over word42x and the lazy dog")
	}
}
