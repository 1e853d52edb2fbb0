package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEncodeEventWrapsPayload(t *testing.T) {
	at := time.Date(2025, 9, 1, 8, 30, 0, 0, time.FixedZone("UZT", 5*3600))
	raw, err := encodeEvent(SubjectMarksImported, at, map[string]interface{}{"updated": 3})
	require.NoError(t, err)

	var decoded struct {
		Subject    string                 `json:"subject"`
		OccurredAt time.Time              `json:"occurredAt"`
		Data       map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, SubjectMarksImported, decoded.Subject)
	require.Equal(t, time.UTC, decoded.OccurredAt.Location())
	require.True(t, decoded.OccurredAt.Equal(at))
	require.Equal(t, float64(3), decoded.Data["updated"])
}

func TestNilConnectionPublishesNothing(t *testing.T) {
	publisher := NewEventPublisher(nil, testLogger())
	require.IsType(t, noopEventPublisher{}, publisher)
	require.NotPanics(t, func() {
		publisher.Publish(context.Background(), SubjectYearRolledOver, nil)
	})
}
