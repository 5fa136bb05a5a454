package pipeline

import (
	"image"

	"github.com/corona10/goimagehash"
	"github.com/rs/zerolog/log"
)

// duplicateThreshold is the largest difference-hash distance at which two
// images count as near duplicates.
const duplicateThreshold = 10

// imageHash returns the perceptual hash of img, or nil when it cannot be
// hashed.
func imageHash(img image.Image) *goimagehash.ImageHash {
	if img == nil {
		return nil
	}
	hash, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return nil
	}
	return hash
}

// markDuplicates points every result at the first earlier result, in input
// order, whose image is a near duplicate. Unhashed results are never marked
// and never matched.
func markDuplicates(results []*ImageResult) {
	var seen []*ImageResult
	for _, res := range results {
		if res == nil || res.hash == nil {
			continue
		}
		for _, prev := range seen {
			dist, err := res.hash.Distance(prev.hash)
			if err == nil && dist <= duplicateThreshold {
				res.DuplicateOf = prev.Path
				log.Info().Str("file", res.Path).Str("duplicateOf", prev.Path).Msg("near duplicate image")
				break
			}
		}
		if res.DuplicateOf == "" {
			seen = append(seen, res)
		}
	}
}
