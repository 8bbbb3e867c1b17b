package cmd

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enoch-sit/project-1-xx/internal/ai"
	"github.com/enoch-sit/project-1-xx/internal/config"
	"github.com/enoch-sit/project-1-xx/internal/history"
	"github.com/enoch-sit/project-1-xx/internal/stream"
)

func TestHealthURL(t *testing.T) {
	assert.Equal(t, "http://localhost:8000/health", healthURL("http://localhost:8000/chat/completions"))
	assert.Equal(t, "https://example.com/v1/health", healthURL("https://example.com/v1/chat/completions/"))
	assert.Equal(t, "http://localhost:8000/health", healthURL("http://localhost:8000"))
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "(not set)", maskKey(""))
	assert.Equal(t, "****", maskKey("short"))
	assert.Equal(t, "sk-1...7890", maskKey("sk-1234567890"))
}

func TestBuildPrompt(t *testing.T) {
	assert.Equal(t, "hi", buildPrompt("hi", ""))
	assert.Equal(t, "data", buildPrompt("", "data"))
	assert.Equal(t, "explain\n\n```\nx := 1\n```", buildPrompt("explain", "x := 1"))
}

func TestPresentFlags(t *testing.T) {
	f := presentFlags{mode: "typewriter", speedMs: 15}
	opts, err := f.chatOptions(true)
	require.NoError(t, err)
	assert.Len(t, opts, 2)

	_, err = (&presentFlags{mode: "fast"}).chatOptions(true)
	assert.Error(t, err)

	_, err = (&presentFlags{speedMs: -1}).chatOptions(true)
	assert.Error(t, err)

	opts, err = (&presentFlags{}).chatOptions(true)
	require.NoError(t, err)
	assert.Empty(t, opts)
}

// doneTransport answers every request with an immediately finished stream.
type doneTransport struct{}

func (doneTransport) SendStreamingRequest(context.Context, []ai.Message, ai.RequestOptions) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("data: [DONE]\n")), nil
}

func replyMode(t *testing.T, f presentFlags, tty bool) stream.Mode {
	t.Helper()
	cfg := config.Default()
	cfg.StreamMode = config.ModeTypewriter
	opts, err := f.chatOptions(tty)
	require.NoError(t, err)
	reply, err := ai.NewClientWithTransport(doneTransport{}, cfg).Chat(context.Background(), nil, nil, opts...)
	require.NoError(t, err)
	return reply.Mode
}

func TestPresentFlags_PipedOutputIsInstant(t *testing.T) {
	assert.Equal(t, stream.ModeInstant, replyMode(t, presentFlags{}, false))
	assert.Equal(t, stream.ModeTypewriter, replyMode(t, presentFlags{}, true))
	assert.Equal(t, stream.ModeTypewriter, replyMode(t, presentFlags{mode: "typewriter"}, false))
}

func TestChatCommand(t *testing.T) {
	conv := history.New("m", "instant")
	conv.Turns = []ai.Message{{Role: ai.RoleUser, Content: "hi"}}
	var opts []ai.ChatOption

	msg, err := chatCommand("/mode typewriter", &opts, conv)
	require.NoError(t, err)
	assert.Contains(t, msg, "typewriter")
	assert.Len(t, opts, 1)

	_, err = chatCommand("/mode loud", &opts, conv)
	assert.Error(t, err)

	_, err = chatCommand("/speed 20", &opts, conv)
	require.NoError(t, err)
	assert.Len(t, opts, 2)

	_, err = chatCommand("/speed zero", &opts, conv)
	assert.Error(t, err)

	_, err = chatCommand("/clear", &opts, conv)
	require.NoError(t, err)
	assert.Empty(t, conv.Turns)

	_, err = chatCommand("/nope", &opts, conv)
	assert.Error(t, err)
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "abcdefgh", shortID("abcdefgh-1234"))
	assert.Equal(t, "abc", shortID("abc"))
}
