package archive

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLines_Extract(t *testing.T) {
	input := strings.Join([]string{
		`{"subject":"First","from":"a@x.com","to":"b@x.com"}`,
		``,
		`not json at all`,
		`{"subject":"Second","from":"a@x.com","to":"b@x.com"}`,
	}, "\n")

	records, err := JSONLines{}.Extract(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "First", records[0]["subject"])
	// 坏行不丢弃，包成 _raw 交给导入管道计为失败
	assert.Equal(t, "not json at all", records[1]["_raw"])
	assert.Equal(t, "Second", records[2]["subject"])
}

func TestJSONLines_EmptyStream(t *testing.T) {
	records, err := JSONLines{}.Extract(context.Background(), strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestJSONLines_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := JSONLines{}.Extract(ctx, strings.NewReader(`{"a":1}`))
	assert.Error(t, err)
}

func TestJSONLines_Kind(t *testing.T) {
	assert.Equal(t, "jsonl", JSONLines{}.Kind())
}
