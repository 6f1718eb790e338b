package providers

import (
	"context"
	"time"
)

const (
	simulatedChunkSize = 24
	simulatedChunkGap  = 10 * time.Millisecond
)

// SimulateStream delivers text through onChunk in fixed-size pieces with a
// small pacing delay, for backends without incremental delivery. Chunk
// boundaries are an artifact of the simulation and carry no meaning. The
// handler is invoked at least once, even for empty text.
func SimulateStream(ctx context.Context, text string, onChunk ChunkHandler) error {
	if text == "" {
		return onChunk("")
	}

	runes := []rune(text)
	for i := 0; i < len(runes); i += simulatedChunkSize {
		end := i + simulatedChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		if err := onChunk(string(runes[i:end])); err != nil {
			return err
		}
		if end == len(runes) {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(simulatedChunkGap):
		}
	}
	return nil
}
