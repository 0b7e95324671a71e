package round

import (
	"testing"

	"github.com/fluxline/multisig/pkg/party"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgreeBroadcast(t *testing.T) {
	viewA, viewB := []byte("content-a"), []byte("content-b")

	self := map[party.ID][]byte{"p1": viewA, "p2": viewA}
	agreeing := map[party.ID]map[party.ID][]byte{
		"me": self,
		"p1": {"p1": viewA, "p2": viewA},
		"p2": {"p1": viewA, "p2": viewA},
	}
	agreed, blamed := AgreeBroadcast(self, agreeing, 2)
	require.Empty(t, blamed)
	assert.Equal(t, viewA, agreed["p1"])
	assert.Empty(t, Changed(self, agreed))

	// p1 reached us with one value and the others with another: the quorum
	// value wins and we must adopt it.
	outvoted := map[party.ID]map[party.ID][]byte{
		"me": self,
		"p1": {"p1": viewB, "p2": viewA},
		"p2": {"p1": viewB, "p2": viewA},
	}
	agreed, blamed = AgreeBroadcast(self, outvoted, 2)
	require.Empty(t, blamed)
	assert.Equal(t, viewB, agreed["p1"])
	assert.Equal(t, []party.ID{"p1"}, Changed(self, agreed))

	// No value reaches quorum: the sender is blamed.
	split := map[party.ID]map[party.ID][]byte{
		"me": self,
		"p1": {"p1": viewB, "p2": viewA},
		"p2": {"p1": []byte("content-c"), "p2": viewA},
	}
	_, blamed = AgreeBroadcast(self, split, 2)
	assert.Equal(t, party.IDSlice{"p1"}, blamed)
}
