package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestRoundTrip(t *testing.T) {
	req := &OperationRequest{
		JobID:       "42",
		OperationID: "7",
		Request:     "1+1",
	}
	buf, err := req.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"job_id":"42","operation_id":"7","request":"1+1"}`, string(buf))
	got, err := DecodeRequest(buf)
	require.NoError(t, err)
	assert.Equal(t, req, got)
}

func TestResultRoundTrip(t *testing.T) {
	res := &OperationResult{
		JobID:       "42",
		OperationID: "7",
		Result:      "2",
	}
	buf, err := res.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"job_id":"42","operation_id":"7","result":"2"}`, string(buf))
	got, err := DecodeResult(buf)
	require.NoError(t, err)
	assert.Equal(t, res, got)
}

func TestResultRoundTripEmpty(t *testing.T) {
	// An empty result string is a legal payload, not an absent field.
	res := &OperationResult{
		JobID:       "42",
		OperationID: "7",
		Result:      "",
	}
	buf, err := res.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"job_id":"42","operation_id":"7","result":""}`, string(buf))
	got, err := DecodeResult(buf)
	require.NoError(t, err)
	assert.Equal(t, res, got)
}

func TestRoundTripUnicode(t *testing.T) {
	req := &OperationRequest{
		JobID:       "1",
		OperationID: "2",
		Request:     `"π" + " ≈ 3.14159"`,
	}
	buf, err := req.Encode()
	require.NoError(t, err)
	got, err := DecodeRequest(buf)
	require.NoError(t, err)
	assert.Equal(t, req, got)
}

func TestDecodeStrict(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		_, err := DecodeRequest(nil)
		assert.ErrorIs(t, err, ErrEmptyPayload)
		_, err = DecodeResult([]byte{})
		assert.ErrorIs(t, err, ErrEmptyPayload)
	})
	t.Run("UnknownField", func(t *testing.T) {
		_, err := DecodeRequest([]byte(`{"job_id":"1","operation_id":"2","request":"1+1","extra":true}`))
		assert.Error(t, err)
		_, err = DecodeResult([]byte(`{"job_id":"1","operation_id":"2","result":"2","extra":true}`))
		assert.Error(t, err)
	})
	t.Run("TrailingData", func(t *testing.T) {
		_, err := DecodeRequest([]byte(`{"job_id":"1","operation_id":"2","request":"1+1"} {}`))
		assert.Error(t, err)
	})
	t.Run("NotJSON", func(t *testing.T) {
		_, err := DecodeRequest([]byte("not json"))
		assert.Error(t, err)
	})
	t.Run("MissingFields", func(t *testing.T) {
		// Absent fields decode to empty strings, they are not an error.
		got, err := DecodeResult([]byte(`{}`))
		require.NoError(t, err)
		assert.Equal(t, &OperationResult{}, got)
	})
}
