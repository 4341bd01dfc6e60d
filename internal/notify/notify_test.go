package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewJSONHandler(&buf, nil)))

	err := n.Notify(context.Background(), Notification{
		UserID:  "buyer-1",
		Kind:    KindRejected,
		OrderID: "o1",
		Message: "stock issue",
	})
	require.NoError(t, err)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "buyer-1", line["user_id"])
	assert.Equal(t, "order_rejected", line["kind"])
	assert.Equal(t, "stock issue", line["message"])
}

func TestKafkaNotifierWriterConfig(t *testing.T) {
	k := NewKafkaNotifier("b1:9092,b2:9092", "notifications", slog.Default())
	defer k.Close()

	assert.Equal(t, "notifications", k.writer.Topic)
	assert.Equal(t, 50*time.Millisecond, k.writer.BatchTimeout)
}
