package messaging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendValidation(t *testing.T) {
	sender := NewTwilioSender("AC123", "token", "", nil)

	err := sender.Send(context.Background(), OutboundSMS{Body: "hi"})
	require.Error(t, err, "missing recipient must fail")

	err = sender.Send(context.Background(), OutboundSMS{To: "+972501234567", Body: "hi"})
	require.Error(t, err, "missing from must fail when no default is set")

	err = sender.Send(context.Background(), OutboundSMS{To: "+972501234567", From: "+14155550100", Body: "   "})
	require.Error(t, err, "blank body must fail")

	unconfigured := NewTwilioSender("", "", "+14155550100", nil)
	err = unconfigured.Send(context.Background(), OutboundSMS{To: "+972501234567", Body: "hi"})
	require.Error(t, err, "missing credentials must fail")
}

func TestFormatTwilioError(t *testing.T) {
	assert.Equal(t, "status 500", formatTwilioError(500, nil))
	assert.Equal(t, "status 400 code 21211: invalid 'To' number",
		formatTwilioError(400, []byte(`{"code":21211,"message":"invalid 'To' number"}`)))
	assert.Equal(t, "status 502: upstream blew up", formatTwilioError(502, []byte("upstream blew up")))
}
