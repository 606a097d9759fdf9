package state

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/hollowsignal/haunted-console/server/internal/domain/spirit"
)

// persistedBlob is the external form written to durable storage. It
// covers the persisted preferences plus the haunting fields that
// survive across sessions. Not a stable format across versions.
type persistedBlob struct {
	Version        int                `json:"version"`
	VisitCount     int                `json:"visit_count"`
	TotalPlayMS    int64              `json:"total_play_ms"`
	LastVisitUnix  int64              `json:"last_visit_unix"`
	SecretUnlocked bool               `json:"secret_unlocked"`
	Personality    spirit.Personality `json:"personality"`
	FearProfile    map[string]float64 `json:"fear_profile"`
	Fragments      []string           `json:"fragments"`
}

const blobVersion = 1

// Serialize renders the persistable subset of the store as JSON.
// Set-valued fields go out as sorted slices so the blob is stable.
func (s *Store) Serialize() ([]byte, error) {
	s.mu.RLock()
	blob := persistedBlob{
		Version:        blobVersion,
		VisitCount:     intField(s.fields, FieldVisitCount),
		TotalPlayMS:    int64Field(s.fields, FieldTotalPlayMS),
		LastVisitUnix:  int64Field(s.fields, FieldLastVisitUnix),
		SecretUnlocked: boolField(s.fields, FieldSecretUnlocked),
	}
	if p, ok := s.fields[FieldPersonality].(spirit.Personality); ok {
		blob.Personality = p
	}
	if fp, ok := s.fields[FieldFearProfile].(spirit.FearProfile); ok {
		blob.FearProfile = make(map[string]float64, len(fp))
		for c, w := range fp {
			blob.FearProfile[string(c)] = w
		}
	}
	if set, ok := s.fields[FieldFragmentsFound].(map[string]bool); ok {
		for id := range set {
			blob.Fragments = append(blob.Fragments, id)
		}
		sort.Strings(blob.Fragments)
	}
	s.mu.RUnlock()

	data, err := json.Marshal(blob)
	if err != nil {
		return nil, fmt.Errorf("serialize state: %w", err)
	}
	return data, nil
}

// DeserializeInto restores the allow-listed persisted subset from an
// external blob and nothing else: session-only fields keep their
// in-memory values no matter what the blob claims. Values are
// sanitised on the way in (personality clamped, fear profile
// renormalized, fragment set rebuilt), which bounds the damage of a
// hand-edited or corrupted save.
func (s *Store) DeserializeInto(data []byte) error {
	var blob persistedBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		return fmt.Errorf("deserialize state: %w", err)
	}

	if blob.VisitCount >= 0 {
		s.Set(FieldVisitCount, blob.VisitCount)
	}
	if blob.TotalPlayMS >= 0 {
		s.Set(FieldTotalPlayMS, blob.TotalPlayMS)
	}
	if blob.LastVisitUnix > 0 {
		s.Set(FieldLastVisitUnix, blob.LastVisitUnix)
	}
	s.Set(FieldSecretUnlocked, blob.SecretUnlocked)

	if blob.Personality != (spirit.Personality{}) {
		s.Set(FieldPersonality, blob.Personality.Clamped())
	}

	fp := spirit.DefaultFearProfile()
	if len(blob.FearProfile) > 0 {
		fp = make(spirit.FearProfile, len(blob.FearProfile))
		for c, w := range blob.FearProfile {
			fp[spirit.FearCategory(c)] = w
		}
		fp.Normalize()
	}
	s.Set(FieldFearProfile, fp)

	fragments := make(map[string]bool, len(blob.Fragments))
	for _, id := range blob.Fragments {
		if id != "" {
			fragments[id] = true
		}
	}
	s.Set(FieldFragmentsFound, fragments)

	return nil
}

func intField(fields map[Field]interface{}, f Field) int {
	v, _ := fields[f].(int)
	return v
}

func int64Field(fields map[Field]interface{}, f Field) int64 {
	v, _ := fields[f].(int64)
	return v
}

func boolField(fields map[Field]interface{}, f Field) bool {
	v, _ := fields[f].(bool)
	return v
}
