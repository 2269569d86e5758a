package fake

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClient_RecordsMessages(t *testing.T) {
	c := New()
	require.NoError(t, c.Send(context.Background(), "+391", "a"))
	require.NoError(t, c.Send(context.Background(), "+392", "b"))

	sent := c.Sent()
	require.Equal(t, []Message{{To: "+391", Body: "a"}, {To: "+392", Body: "b"}}, sent)

	sent[0].Body = "changed"
	require.Equal(t, "a", c.Sent()[0].Body)
}
