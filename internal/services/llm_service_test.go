package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap/zaptest"
)

// fakeModel records the last call and answers with reply.
type fakeModel struct {
	reply string
	err   error

	messages []llms.MessageContent
	opts     llms.CallOptions
}

func (f *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	f.opts = llms.CallOptions{}
	for _, o := range options {
		o(&f.opts)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.reply}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestLLMService_Complete(t *testing.T) {
	model := &fakeModel{reply: "hello"}
	s := &LLMService{Client: model, MaxTokens: 512, Log: zaptest.NewLogger(t)}

	got, err := s.Complete(context.Background(), CompletionRequest{System: "be brief", User: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
	require.Len(t, model.messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, model.messages[1].Role)
	assert.Equal(t, 512, model.opts.MaxTokens)
	assert.False(t, model.opts.JSONMode)

	_, err = s.Complete(context.Background(), CompletionRequest{User: "json please", JSON: true, MaxTokens: 50})
	require.NoError(t, err)
	require.Len(t, model.messages, 1, "no system message when System is empty")
	assert.Equal(t, 50, model.opts.MaxTokens)
	assert.True(t, model.opts.JSONMode)
}

func TestComplete_Folding(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		err     error
		json    bool
		want    string
		wantErr bool
	}{
		{name: "plain text is trimmed", reply: "  Dear team,\n", want: "Dear team,"},
		{name: "provider error", err: errors.New("429 quota"), wantErr: true},
		{name: "empty answer", reply: "   ", wantErr: true},
		{name: "json", reply: `{"a":1}`, json: true, want: `{"a":1}`},
		{name: "fenced json", reply: "```json\n{\"a\":1}\n```", json: true, want: `{"a":1}`},
		{name: "malformed json", reply: "Sure! {a:1}", json: true, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &LLMService{Client: &fakeModel{reply: tt.reply, err: tt.err}}
			c := Complete(context.Background(), s, CompletionRequest{User: "x", JSON: tt.json})
			if tt.wantErr {
				assert.False(t, c.OK())
				assert.Equal(t, "fallback", c.Or("fallback"))
				return
			}
			require.NoError(t, c.Err)
			assert.Equal(t, tt.want, c.Or("fallback"))
		})
	}
}

func TestExtractJobDetails_TruncatesInput(t *testing.T) {
	model := &fakeModel{reply: `{"company_name":"Acme"}`}
	s := &LLMService{Client: model}

	got, err := s.ExtractJobDetails(context.Background(), strings.Repeat("x", 25000))
	require.NoError(t, err)
	assert.JSONEq(t, `{"company_name":"Acme"}`, got)
	assert.True(t, model.opts.JSONMode)

	user := model.messages[1].Parts[0].(llms.TextContent).Text
	assert.Len(t, user, 20000)
}

func TestTruncateUTF8(t *testing.T) {
	assert.Equal(t, "abc", truncateUTF8("abc", 10))
	assert.Equal(t, "ab", truncateUTF8("abc", 2))

	// "é" is two bytes; cutting inside it drops the whole rune.
	s := strings.Repeat("é", 3)
	got := truncateUTF8(s, 5)
	assert.Equal(t, "éé", got)
	assert.True(t, utf8.ValidString(got))
	assert.Empty(t, truncateUTF8("é", 1))

	model := &fakeModel{reply: `{}`}
	_, err := (&LLMService{Client: model}).ExtractJobDetails(context.Background(), strings.Repeat("€", 7000))
	require.NoError(t, err)
	user := model.messages[1].Parts[0].(llms.TextContent).Text
	assert.True(t, utf8.ValidString(user))
	assert.Len(t, user, 19998)
}
