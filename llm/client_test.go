package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentflowhq/agentflow/agent"
)

func TestError_FormatsWithAndWithoutStatusCode(t *testing.T) {
	withStatus := &Error{kind: KindService, message: "boom", statusCode: 503}
	assert.Equal(t, "ServiceError (status 503): boom", withStatus.Error())

	withoutStatus := &Error{kind: KindAuth, message: "bad key"}
	assert.Equal(t, "AuthError: bad key", withoutStatus.Error())
}

func TestError_KindAndStatusCodeAccessors(t *testing.T) {
	err := &Error{kind: KindRateLimit, statusCode: 429}
	assert.Equal(t, "RateLimitError", err.Kind())
	assert.Equal(t, 429, err.StatusCode())
}

func TestError_UnwrapReturnsCause(t *testing.T) {
	cause := assert.AnError
	err := &Error{kind: KindNetwork, cause: cause}
	assert.Equal(t, cause, err.Unwrap())
}

func TestErrorConstructors_SetExpectedKind(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind Kind
	}{
		{"auth", AuthError("x", nil), KindAuth},
		{"rate limit", RateLimitError("x", nil), KindRateLimit},
		{"validation", ValidationError("x", nil), KindValidation},
		{"service", ServiceError(500, "x", nil), KindService},
		{"network", NetworkError("x", nil), KindNetwork},
		{"llm", LLMError("x", nil), KindLLM},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var e *Error
			assert.ErrorAs(t, tc.err, &e)
			assert.Equal(t, string(tc.kind), e.Kind())
		})
	}
}

func TestBaseClient_ReportsConfiguredWindowAndReserve(t *testing.T) {
	b := baseClient{model: "m", contextWindow: 4096, reserveCompletion: 512}
	assert.Equal(t, 4096, b.ContextWindow())
	assert.Equal(t, 512, b.ReserveCompletion())
}

func TestRequireCallback_ErrorsOnNilOnChunk(t *testing.T) {
	assert.Error(t, requireCallback(nil))
}

func TestRequireCallback_AcceptsNonNilOnChunk(t *testing.T) {
	assert.NoError(t, requireCallback(func(agent.StreamedChunk) {}))
}
