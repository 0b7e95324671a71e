package round

import (
	"bytes"
	"fmt"

	"github.com/fluxline/multisig/pkg/party"
	"github.com/fxamacker/cbor/v2"
)

var canonicalEncMode cbor.EncMode

func init() {
	mode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	canonicalEncMode = mode
}

// CanonicalEncode returns the canonical wire encoding of a content. Every
// recipient of equal content computes equal bytes, regardless of how the
// sender serialized it, so these encodings can be compared across parties
// during echo rounds.
func CanonicalEncode(content Content) ([]byte, error) {
	data, err := canonicalEncMode.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("round: canonical encode: %w", err)
	}
	return data, nil
}

// AgreeBroadcast evaluates one echo round.
//
// selfViews maps each original sender to the canonical encoding of the
// content we received from it. reports maps each echoing party, ourselves
// included, to the encodings it claims to have received, keyed the same
// way. For each sender the value reported by at least quorum parties wins;
// senders without such a value equivocated or failed to reach enough
// parties, and are returned in blamed.
//
// The agreed value may differ from our own view when the sender
// equivocated towards us specifically: the caller must then re-validate
// and adopt the agreed content, so that all honest parties continue with
// identical state.
func AgreeBroadcast(selfViews map[party.ID][]byte, reports map[party.ID]map[party.ID][]byte, quorum int) (agreed map[party.ID][]byte, blamed party.IDSlice) {
	agreed = make(map[party.ID][]byte, len(selfViews))
	var culprits []party.ID
	for sender := range selfViews {
		counts := make(map[string]int)
		for _, report := range reports {
			view, ok := report[sender]
			if !ok {
				continue
			}
			counts[string(view)]++
		}

		best := ""
		bestCount := 0
		for view, count := range counts {
			if count > bestCount || (count == bestCount && view < best) {
				best, bestCount = view, count
			}
		}

		if bestCount < quorum {
			culprits = append(culprits, sender)
			continue
		}
		agreed[sender] = []byte(best)
	}
	return agreed, party.NewIDSlice(culprits)
}

// Changed returns the senders whose agreed value differs from our own view.
func Changed(selfViews, agreed map[party.ID][]byte) []party.ID {
	var changed []party.ID
	for sender, view := range selfViews {
		if agreedView, ok := agreed[sender]; ok && !bytes.Equal(view, agreedView) {
			changed = append(changed, sender)
		}
	}
	return changed
}
