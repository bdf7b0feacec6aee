package auditlog

import (
	"bufio"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
)

// Verify checks an audit log stream against the signing public key: every
// entry's hash, the chain linkage, and the Ed25519 signature. Returns the
// first defect found.
func Verify(r io.Reader, pubKey ed25519.PublicKey) error {
	if len(pubKey) != ed25519.PublicKeySize {
		return fmt.Errorf("invalid ed25519 public key size: got %d", len(pubKey))
	}

	scanner := bufio.NewScanner(r)
	const maxScanTokenSize = 1024 * 1024
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, maxScanTokenSize)

	lineNum := 0
	expectedPrevHash := ""

	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()

		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			return fmt.Errorf("line %d: invalid JSON: %w", lineNum, err)
		}

		hashData, err := json.Marshal(hashInput{Payload: entry.Payload, PrevHash: entry.PrevHash})
		if err != nil {
			return fmt.Errorf("line %d: failed to marshal hash input: %w", lineNum, err)
		}
		computedHash := fmt.Sprintf("%x", sha256.Sum256(hashData))
		if entry.Hash != computedHash {
			return fmt.Errorf("line %d: hash mismatch", lineNum)
		}

		if entry.PrevHash != expectedPrevHash {
			return fmt.Errorf("line %d: prevHash mismatch", lineNum)
		}

		signData, err := json.Marshal(signInput{Payload: entry.Payload, PrevHash: entry.PrevHash, Hash: entry.Hash})
		if err != nil {
			return fmt.Errorf("line %d: failed to marshal signature input: %w", lineNum, err)
		}
		signature, err := base64.StdEncoding.DecodeString(entry.Signature)
		if err != nil {
			return fmt.Errorf("line %d: invalid base64 signature: %w", lineNum, err)
		}
		if !ed25519.Verify(pubKey, signData, signature) {
			return fmt.Errorf("line %d: signature verification failed", lineNum)
		}

		expectedPrevHash = entry.Hash
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read stream: %w", err)
	}
	return nil
}
