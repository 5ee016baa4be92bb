package stats

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"testing"

	"github.com/MeKo-Tech/bannerscan/internal/record"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// genRecords generates a mix of ok and failed records with random confidences.
func genRecords() gopter.Gen {
	return gen.SliceOfN(25, gopter.CombineGens(
		gen.Bool(),
		gen.SliceOfN(6, gen.Float64Range(0, 1)),
		gen.SliceOfN(4, gen.Float64Range(0, 1)),
	)).Map(func(rows [][]interface{}) []record.ImageRecord {
		out := make([]record.ImageRecord, len(rows))
		for i, vals := range rows {
			failed, _ := vals[0].(bool)
			people, _ := vals[1].([]float64)
			banners, _ := vals[2].([]float64)
			id := fmt.Sprintf("img_%03d.jpg", i)
			if failed {
				out[i] = failedRecord(id)
			} else {
				out[i] = okRecord(id, people, banners)
			}
		}
		return out
	})
}

// TestAccumulate_PermutationInvariant verifies statistics serialize identically
// for every ordering of the same records.
func TestAccumulate_PermutationInvariant(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("permuted input gives byte-identical JSON", prop.ForAll(
		func(records []record.ImageRecord, seed int64) bool {
			shuffled := make([]record.ImageRecord, len(records))
			copy(shuffled, records)
			rng := rand.New(rand.NewSource(seed))
			rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

			a, err := json.Marshal(Accumulate(records))
			if err != nil {
				return false
			}
			b, err := json.Marshal(Accumulate(shuffled))
			if err != nil {
				return false
			}
			return bytes.Equal(a, b)
		},
		genRecords(),
		gen.Int64(),
	))

	properties.Property("counts add up", prop.ForAll(
		func(records []record.ImageRecord) bool {
			s := Accumulate(records)
			return s.TotalImagesProcessed+s.FailedImages == len(records) &&
				len(s.FailedImageIDs) == s.FailedImages &&
				s.ImagesWithPeople <= s.TotalImagesProcessed &&
				s.MinPeopleInSingleImage <= s.MaxPeopleInSingleImage
		},
		genRecords(),
	))

	properties.TestingRun(t)
}
