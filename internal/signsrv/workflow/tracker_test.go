package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/inkform/inkform/internal/signsrv/sigengine"
)

func sigBy(identity string, signedAt time.Time) *sigengine.Signature {
	return &sigengine.Signature{
		SignerInfo: sigengine.SignerInfo{
			Identity:  identity,
			Timestamp: signedAt.UTC().Format(time.RFC3339Nano),
		},
	}
}

func TestStatusNoSignatures(t *testing.T) {
	st := Status("doc-1", nil, []string{"alice", "bob"}, []string{"carol"})
	assert.Equal(t, StatusPending, st.Status)
	assert.False(t, st.AllRequiredSigned)
	assert.Equal(t, 0, st.CompletionPercentage)
	assert.Equal(t, []string{"alice", "bob"}, st.PendingSigners)
	assert.Empty(t, st.SignedIdentities)
	assert.Empty(t, st.LastSignedAt)
}

func TestStatusPartial(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	collected := []*sigengine.Signature{
		sigBy("alice", base),
		sigBy("carol", base.Add(time.Hour)),
	}
	st := Status("doc-1", collected, []string{"alice", "bob"}, []string{"carol"})
	assert.Equal(t, StatusPending, st.Status)
	assert.False(t, st.AllRequiredSigned)
	// 2 of 3 roster slots signed
	assert.Equal(t, 67, st.CompletionPercentage)
	assert.Equal(t, []string{"bob"}, st.PendingSigners)
	assert.Equal(t, []string{"alice", "carol"}, st.SignedIdentities)
	assert.Equal(t, base.Add(time.Hour).Format(time.RFC3339Nano), st.LastSignedAt)
}

func TestStatusCompleted(t *testing.T) {
	base := time.Now().UTC()
	collected := []*sigengine.Signature{
		sigBy("alice", base),
		sigBy("bob", base.Add(time.Minute)),
	}
	st := Status("doc-1", collected, []string{"alice", "bob"}, nil)
	assert.Equal(t, StatusCompleted, st.Status)
	assert.True(t, st.AllRequiredSigned)
	assert.Equal(t, 100, st.CompletionPercentage)
	assert.Empty(t, st.PendingSigners)
	assert.Equal(t, 2, st.SignatureCount)
}

func TestStatusOptionalOnlyDoesNotComplete(t *testing.T) {
	collected := []*sigengine.Signature{sigBy("carol", time.Now())}
	st := Status("doc-1", collected, []string{"alice"}, []string{"carol"})
	assert.Equal(t, StatusPending, st.Status)
	assert.Equal(t, 50, st.CompletionPercentage)
	assert.Equal(t, []string{"alice"}, st.PendingSigners)
}

func TestStatusDuplicateSignaturesCountOnce(t *testing.T) {
	base := time.Now().UTC()
	collected := []*sigengine.Signature{
		sigBy("alice", base),
		sigBy("alice", base.Add(time.Minute)),
	}
	st := Status("doc-1", collected, []string{"alice", "bob"}, nil)
	assert.Equal(t, 50, st.CompletionPercentage)
	assert.Equal(t, []string{"alice"}, st.SignedIdentities)
	assert.Equal(t, 2, st.SignatureCount)
}

func TestStatusEmptyRoster(t *testing.T) {
	st := Status("doc-1", nil, nil, nil)
	assert.Equal(t, StatusCompleted, st.Status)
	assert.Equal(t, 100, st.CompletionPercentage)
}
