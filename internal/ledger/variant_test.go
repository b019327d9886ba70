package ledger

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/aromance/internal/model"
)

func TestVariantDecoding(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantTag     string
		wantPayload string
		wantErr     bool
	}{
		{"unit variant", `{"Completed":null}`, "Completed", "null", false},
		{"payload variant", `{"BasicReviewer":{"stake":300000}}`, "BasicReviewer", `{"stake":300000}`, false},
		{"whitespace", ` { "Ok" : "abc" } `, "Ok", `"abc"`, false},
		{"two keys", `{"Ok":1,"Err":"x"}`, "", "", true},
		{"empty object", `{}`, "", "", true},
		{"not an object", `"Completed"`, "", "", true},
		{"invalid json", `{"Ok":`, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v Variant
			err := json.Unmarshal([]byte(tt.input), &v)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTag, v.Tag)
			assert.JSONEq(t, tt.wantPayload, string(v.Payload))
		})
	}
}

func TestVariantEncoding(t *testing.T) {
	raw, err := json.Marshal(Tagged("Pending"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"Pending":null}`, string(raw))

	tier, err := encodeStakeTier(model.StakeTier{Role: model.RoleSeller, Level: model.LevelElite}, 3_000_000)
	require.NoError(t, err)
	raw, err = json.Marshal(tier)
	require.NoError(t, err)
	assert.JSONEq(t, `{"EliteSeller":{"stake":3000000}}`, string(raw))

	_, err = json.Marshal(Variant{})
	assert.Error(t, err)
}

func TestOpt(t *testing.T) {
	raw, err := json.Marshal(OptString(""))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))

	raw, err = json.Marshal(Some("did:icp:aromance:u"))
	require.NoError(t, err)
	assert.Equal(t, `["did:icp:aromance:u"]`, string(raw))

	var o Opt[uint64]
	require.NoError(t, json.Unmarshal([]byte("[42]"), &o))
	assert.True(t, o.Set)
	assert.Equal(t, uint64(42), *o.Ptr())

	require.NoError(t, json.Unmarshal([]byte("[]"), &o))
	assert.Nil(t, o.Ptr())

	assert.Error(t, json.Unmarshal([]byte("[1,2]"), &o))
}

func TestNanos(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 5, time.UTC)
	assert.Equal(t, at, FromNanos(Nanos(at)))
	assert.Equal(t, uint64(0), Nanos(time.Time{}))
	assert.True(t, FromNanos(0).IsZero())

	assert.Equal(t, uint64(0), Nanos(time.Date(1969, 12, 31, 23, 59, 59, 0, time.UTC)), "pre-epoch times clamp instead of wrapping")
	assert.Equal(t, uint64(0), Nanos(time.Unix(0, 0)))
	assert.Equal(t, uint64(1), Nanos(time.Unix(0, 1)))
	assert.Equal(t, time.Unix(0, math.MaxInt64).UTC(), FromNanos(math.MaxUint64))
}

func TestProfileWireRoundTripKeepsStake(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	rec, err := model.NewStakeRecord(950_000, model.StakeTier{Role: model.RoleReviewer, Level: model.LevelPremium}, now)
	require.NoError(t, err)

	p := model.NewUserProfile("w1", now)
	p.DID = model.DIDFor("w1")
	p.Verification = model.Premium
	p.Stake = &rec

	w, err := toWireProfile(p)
	require.NoError(t, err)
	raw, err := json.Marshal(w)
	require.NoError(t, err)

	assert.Contains(t, string(raw), `"verification_status":{"Premium":null}`)
	assert.Contains(t, string(raw), `"tier":{"PremiumReviewer":{"stake":950000}}`)
	assert.Contains(t, string(raw), `"did":["did:icp:aromance:w1"]`)

	var back wireProfile
	require.NoError(t, json.Unmarshal(raw, &back))
	got, err := fromWireProfile(back)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestDecodeRejectsUnknownTags(t *testing.T) {
	_, err := decodeStakeTier(Tagged("GoldReviewer"))
	assert.ErrorIs(t, err, model.ErrUnknownStakeTier)

	_, err = decodeTransactionStatus(Tagged("Lost"))
	assert.Error(t, err)

	_, err = decodeVerification(Tagged("Platinum"))
	assert.Error(t, err)
}
