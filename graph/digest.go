package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// StateDigest returns a content hash of a scheduling state, formatted as
// "sha256:<hex>".
//
// Two states have the same digest exactly when they marshal to the same
// JSON. Map keys are sorted by encoding/json, so the digest does not depend
// on map iteration order. It is used to check replays for determinism and is
// attached to every bar_complete event.
func StateDigest(s *State) (string, error) {
	if s == nil {
		s = NewState()
	}
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to marshal state: %w", err)
	}
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}

// EventsDigest hashes an event sequence the same way.
func EventsDigest(events []Event) (string, error) {
	if events == nil {
		events = []Event{}
	}
	data, err := json.Marshal(events)
	if err != nil {
		return "", fmt.Errorf("failed to marshal events: %w", err)
	}
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}
