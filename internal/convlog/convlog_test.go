package convlog

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "logs", "conversations.db")
	s, err := Open(path)
	require.NoError(t, err)
	return s, path
}

func TestAppendAndList(t *testing.T) {
	s, _ := openTemp(t)
	defer s.Close()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Append(ctx, Record{
			SessionID: "s1",
			UserInput: fmt.Sprintf("query %d", i),
			Response:  json.RawMessage(fmt.Sprintf(`{"n":%d}`, i)),
		}))
	}

	all, err := s.List(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "query 2", all[0].UserInput, "newest first")
	assert.Equal(t, "query 0", all[2].UserInput)
	assert.JSONEq(t, `{"n":2}`, string(all[0].Response))
	assert.False(t, all[0].Timestamp.IsZero())

	two, err := s.List(2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
}

func TestPersistsAcrossOpen(t *testing.T) {
	s, path := openTemp(t)
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.Append(context.Background(), Record{Timestamp: ts, SessionID: "abc", UserInput: "stolen bike"}))
	require.NoError(t, s.Close())

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.List(10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "abc", got[0].SessionID)
	assert.True(t, ts.Equal(got[0].Timestamp))
	assert.Equal(t, "null", string(got[0].Response))
}

func TestAppendCancelled(t *testing.T) {
	s, _ := openTemp(t)
	defer s.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Append(ctx, Record{UserInput: "x"}), context.Canceled)
}

func TestNop(t *testing.T) {
	var sink Sink = Nop{}
	require.NoError(t, sink.Append(context.Background(), Record{}))
	got, err := sink.List(5)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, sink.Close())
}
