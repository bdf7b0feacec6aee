package auditlog

import (
	"bytes"
	"crypto/ed25519"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvents() []Event {
	return []Event{
		{Event: EventKeyGenerated, SignerIdentity: "alice@example.com", KeyID: "00112233aabbccdd"},
		{Event: EventRequestCreated, DocumentID: "doc-1", RequestID: "req-1"},
		{Event: EventDocumentSigned, DocumentID: "doc-1", SignerIdentity: "alice@example.com", SignatureID: "sig-1"},
		{Event: EventVerification, DocumentID: "doc-1", Outcome: "valid"},
	}
}

func TestWriterAndVerify(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "audit.jsonl")

	pubKey, privKey, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	writer, err := NewWriter(logPath, 3, privKey)
	require.NoError(t, err)
	defer writer.Close()

	for _, e := range testEvents() {
		require.NoError(t, writer.Record(e))
	}
	require.NoError(t, writer.Flush())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4)

	// every recorded event got a timestamp
	var entry Entry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.NotEmpty(t, entry.Payload.At)
	assert.Empty(t, entry.PrevHash)

	require.NoError(t, Verify(bytes.NewReader(data), pubKey))
}

func TestVerifyDetectsTampering(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "audit.jsonl")

	pubKey, privKey, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	writer, err := NewWriter(logPath, 1, privKey)
	require.NoError(t, err)
	for _, e := range testEvents() {
		require.NoError(t, writer.Record(e))
	}
	require.NoError(t, writer.Close())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)

	// edit a recorded document ID
	tampered := bytes.Replace(data, []byte(`"doc-1"`), []byte(`"doc-9"`), 1)
	require.NotEqual(t, data, tampered)
	err = Verify(bytes.NewReader(tampered), pubKey)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hash mismatch")

	// drop an entry from the middle of the chain
	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	require.Len(t, lines, 4)
	truncated := bytes.Join(append(lines[:1], lines[2:]...), []byte("\n"))
	err = Verify(bytes.NewReader(truncated), pubKey)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prevHash mismatch")
}

func TestWriterResumesChainAcrossReopen(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "audit.jsonl")

	pubKey, privKey, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	writer, err := NewWriter(logPath, 1, privKey)
	require.NoError(t, err)
	require.NoError(t, writer.Record(Event{Event: EventKeyGenerated, KeyID: "k1"}))
	require.NoError(t, writer.Record(Event{Event: EventDocumentSigned, DocumentID: "doc-1"}))
	require.NoError(t, writer.Close())

	// a second writer on the same path continues the chain
	writer, err = NewWriter(logPath, 1, privKey)
	require.NoError(t, err)
	require.NoError(t, writer.Record(Event{Event: EventVerification, DocumentID: "doc-1", Outcome: "valid"}))
	require.NoError(t, writer.Close())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	require.NoError(t, Verify(bytes.NewReader(data), pubKey))

	var prev, resumed Entry
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &prev))
	require.NoError(t, json.Unmarshal([]byte(lines[2]), &resumed))
	assert.Equal(t, prev.Hash, resumed.PrevHash)
}

func TestVerifyWrongKey(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "audit.jsonl")

	_, privKey, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	otherPub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	writer, err := NewWriter(logPath, 1, privKey)
	require.NoError(t, err)
	require.NoError(t, writer.Record(Event{Event: EventKeyGenerated, KeyID: "k1"}))
	require.NoError(t, writer.Close())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	err = Verify(bytes.NewReader(data), otherPub)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signature verification failed")
}

func TestNewWriterRejectsBadKey(t *testing.T) {
	_, err := NewWriter(filepath.Join(t.TempDir(), "audit.jsonl"), 1, []byte("short"))
	require.Error(t, err)
}

func TestRecordAfterClose(t *testing.T) {
	_, privKey, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	writer, err := NewWriter(filepath.Join(t.TempDir(), "audit.jsonl"), 1, privKey)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	require.Error(t, writer.Record(Event{Event: EventKeyGenerated}))
}
