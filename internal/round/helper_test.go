package round

import (
	"encoding/hex"
	"testing"

	"github.com/fluxline/multisig/pkg/math/curve"
	"github.com/fluxline/multisig/pkg/party"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInfo() Info {
	return Info{
		ProtocolID:       "test/protocol",
		FinalRoundNumber: 3,
		CeremonyID:       7,
		SelfID:           "a",
		PartyIDs:         []party.ID{"c", "a", "b"},
		Threshold:        1,
		Group:            curve.Secp256k1{},
	}
}

func TestNewSessionValidation(t *testing.T) {
	_, err := NewSession(validInfo())
	require.NoError(t, err)

	noSelf := validInfo()
	noSelf.SelfID = "d"
	_, err = NewSession(noSelf)
	assert.Error(t, err)

	duplicates := validInfo()
	duplicates.PartyIDs = []party.ID{"a", "a", "b"}
	_, err = NewSession(duplicates)
	assert.Error(t, err)

	badThreshold := validInfo()
	badThreshold.Threshold = 3
	_, err = NewSession(badThreshold)
	assert.Error(t, err)

	negativeThreshold := validInfo()
	negativeThreshold.Threshold = -1
	_, err = NewSession(negativeThreshold)
	assert.Error(t, err)
}

// Participant ids feed both the cbor echo maps and the Shamir
// interpolation domain, so degenerate ids must be rejected up front
// instead of surfacing later as blame on honest parties.
func TestNewSessionRejectsDegenerateIDs(t *testing.T) {
	nonUTF8 := validInfo()
	nonUTF8.PartyIDs = []party.ID{party.ID([]byte{0xff, 0xfe}), "a", "b"}
	_, err := NewSession(nonUTF8)
	assert.Error(t, err, "non-UTF-8 ids cannot key cbor maps")

	orderBytes := validInfo()
	order, _ := hex.DecodeString("fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141")
	orderBytes.PartyIDs = []party.ID{party.ID(order), "a", "b"}
	_, err = NewSession(orderBytes)
	assert.Error(t, err, "ids reducing to the group order must be rejected")

	zeroScalar := validInfo()
	zeroScalar.PartyIDs = []party.ID{"", "a", "b"}
	_, err = NewSession(zeroScalar)
	assert.Error(t, err, "the empty id maps to the zero scalar")

	clashing := validInfo()
	clashing.PartyIDs = []party.ID{"\x00a", "a", "b"}
	_, err = NewSession(clashing)
	assert.Error(t, err, "a leading zero byte yields the same scalar as the bare id")
}

func TestSSIDBindsCeremonyID(t *testing.T) {
	first, err := NewSession(validInfo())
	require.NoError(t, err)

	otherInfo := validInfo()
	otherInfo.CeremonyID = 8
	second, err := NewSession(otherInfo)
	require.NoError(t, err)

	assert.NotEqual(t, first.SSID(), second.SSID())
}

func TestHashForIDDiffersPerParty(t *testing.T) {
	h, err := NewSession(validInfo())
	require.NoError(t, err)
	assert.NotEqual(t, h.HashForID("a").Sum(), h.HashForID("b").Sum())
}

func TestMessageIsFor(t *testing.T) {
	broadcast := Message{From: "a", Broadcast: true}
	assert.True(t, broadcast.IsFor("b"))
	assert.False(t, broadcast.IsFor("a"))

	private := Message{From: "a", To: "b"}
	assert.True(t, private.IsFor("b"))
	assert.False(t, private.IsFor("c"))
}
