package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/jra3/tasksync/internal/model"
)

// Hash computes a stable digest of a normalized payload for use as a
// three-way-merge base. Every field that affects equality is part of
// the struct (and therefore the serialization); nothing irrelevant is
// included. Field order in model.NormalizedPayload is fixed, so
// encoding/json's struct-field serialization is already stable; labels
// and the lack of map types mean no further sorting is needed here
// (labels are sorted by the caller in NormalizeLocal/NormalizeRemote).
func Hash(payload model.NormalizedPayload) string {
	// json.Marshal never fails on a NormalizedPayload: no channels,
	// funcs, or cyclic structures.
	data, err := json.Marshal(payload)
	if err != nil {
		panic(fmt.Sprintf("normalize: marshal normalized payload: %v", err))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
