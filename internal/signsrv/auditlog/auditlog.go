// Package auditlog writes a tamper-evident record of signing activity. Each
// entry carries the hash of its predecessor and an Ed25519 signature over the
// entry, so truncation, reordering, or edits are detectable after the fact.
package auditlog

import (
	"bufio"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"os"
	"sync"
	"time"

	jsonitor "github.com/json-iterator/go"
)

var json = jsonitor.ConfigCompatibleWithStandardLibrary

// Event names recorded by the signing service.
const (
	EventKeyGenerated   = "key.generated"
	EventKeyRevoked     = "key.revoked"
	EventKeyDeleted     = "key.deleted"
	EventDocumentSigned = "document.signed"
	EventVerification   = "document.verified"
	EventRequestCreated = "request.created"
	EventRequestClosed  = "request.closed"
)

// Event is one audit record. Only fields relevant to the event are set.
type Event struct {
	Event          string `json:"event"`
	At             string `json:"at"`
	DocumentID     string `json:"documentId,omitempty"`
	SignerIdentity string `json:"signerIdentity,omitempty"`
	KeyID          string `json:"keyId,omitempty"`
	SignatureID    string `json:"signatureId,omitempty"`
	RequestID      string `json:"requestId,omitempty"`
	Outcome        string `json:"outcome,omitempty"`
	Detail         string `json:"detail,omitempty"`
}

// Entry is a single signed entry in the hash chain.
type Entry struct {
	Payload   Event  `json:"payload"`
	PrevHash  string `json:"prevHash"`
	Hash      string `json:"hash"`
	Signature string `json:"signature"`
}

type hashInput struct {
	Payload  Event  `json:"payload"`
	PrevHash string `json:"prevHash"`
}

type signInput struct {
	Payload  Event  `json:"payload"`
	PrevHash string `json:"prevHash"`
	Hash     string `json:"hash"`
}

// Writer appends signed entries to a JSONL audit log file.
type Writer struct {
	file          *os.File
	path          string
	flushInterval int
	mu            sync.Mutex
	buffer        []Entry
	prevHash      string
	privKey       ed25519.PrivateKey
	closed        bool
}

// NewWriter opens (or creates) the audit log at path. flushInterval is the
// number of entries buffered before a write; 1 writes every entry through.
// The private key must be a full Ed25519 private key. Reopening an existing
// log resumes its hash chain from the last entry on disk.
func NewWriter(path string, flushInterval int, privKey ed25519.PrivateKey) (*Writer, error) {
	if len(privKey) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid private key: must be %d bytes, got %d", ed25519.PrivateKeySize, len(privKey))
	}
	if flushInterval < 1 {
		flushInterval = 1
	}
	prevHash, err := lastChainHash(path)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &Writer{
		file:          f,
		path:          path,
		flushInterval: flushInterval,
		buffer:        make([]Entry, 0, flushInterval),
		prevHash:      prevHash,
		privKey:       privKey,
	}, nil
}

// lastChainHash returns the hash of the final entry in an existing log file,
// or "" for a missing or empty file.
func lastChainHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	last := ""
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			return "", fmt.Errorf("existing audit log is not parseable: %w", err)
		}
		last = entry.Hash
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read existing audit log: %w", err)
	}
	return last, nil
}

// Record appends an event to the chain. The event timestamp is stamped here
// if unset.
func (w *Writer) Record(event Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("audit log is closed")
	}
	if event.At == "" {
		event.At = time.Now().UTC().Format(time.RFC3339Nano)
	}

	entry := Entry{
		Payload:  event,
		PrevHash: w.prevHash,
	}

	dataToHash, err := json.Marshal(hashInput{Payload: entry.Payload, PrevHash: entry.PrevHash})
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}
	hash := sha256.Sum256(dataToHash)
	entry.Hash = fmt.Sprintf("%x", hash[:])
	w.prevHash = entry.Hash

	dataToSign, err := json.Marshal(signInput{Payload: entry.Payload, PrevHash: entry.PrevHash, Hash: entry.Hash})
	if err != nil {
		return fmt.Errorf("failed to marshal sign input: %w", err)
	}
	entry.Signature = base64.StdEncoding.EncodeToString(ed25519.Sign(w.privKey, dataToSign))

	w.buffer = append(w.buffer, entry)
	if len(w.buffer) >= w.flushInterval {
		return w.flushLocked()
	}
	return nil
}

func (w *Writer) flushLocked() error {
	for _, entry := range w.buffer {
		b, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to marshal entry: %w", err)
		}
		if _, err := w.file.Write(append(b, '\n')); err != nil {
			return fmt.Errorf("failed to write entry: %w", err)
		}
	}
	w.buffer = w.buffer[:0]
	return nil
}

// Flush writes any buffered entries through to the file.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

// Close flushes remaining entries and closes the file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	if err := w.flushLocked(); err != nil {
		return err
	}
	err := w.file.Close()
	w.closed = true
	return err
}
